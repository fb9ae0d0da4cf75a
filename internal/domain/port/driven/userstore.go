package driven

import (
	"context"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
)

// UserStore resolves platform users. Lookups return (nil, nil) on a miss.
type UserStore interface {
	Add(ctx context.Context, user model.User) (model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}
