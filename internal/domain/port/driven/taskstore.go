package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
)

// ErrTaskStatusConflict indicates the task status changed between read and write.
var ErrTaskStatusConflict = errors.New("task status changed concurrently")

// TaskStore defines the driven port for task lookups and status updates.
// Task CRUD lives in the tracker; tracklink only reads tasks and moves them
// along the status machine.
type TaskStore interface {
	Add(ctx context.Context, task model.Task) (model.Task, error)
	GetByKey(ctx context.Context, key string) (*model.Task, error)
	GetByID(ctx context.Context, id int64) (*model.Task, error)
	// UpdateStatus writes to only if the stored status still equals from.
	// Returns ErrTaskStatusConflict otherwise.
	UpdateStatus(ctx context.Context, id int64, from, to model.TaskStatus) error
}
