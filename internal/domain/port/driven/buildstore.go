package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
)

// Sentinel errors returned by BuildStore implementations.
var (
	// ErrBuildNotFound indicates the requested build does not exist.
	ErrBuildNotFound = errors.New("build not found")

	// ErrBuildFinalized indicates the build already reached a terminal status.
	ErrBuildFinalized = errors.New("build already finished")

	// ErrDeploymentExists indicates the build already produced a deployment.
	ErrDeploymentExists = errors.New("deployment already exists for build")
)

// BuildStore defines the driven port for builds and their deployments.
type BuildStore interface {
	Create(ctx context.Context, build model.Build) (model.Build, error)
	// Get returns (nil, nil) when the build does not exist.
	Get(ctx context.Context, id int64) (*model.Build, error)
	// Finish moves a RUNNING or PENDING build to a terminal status.
	// Returns ErrBuildNotFound or ErrBuildFinalized.
	Finish(ctx context.Context, id int64, result model.BuildResult) (model.Build, error)
	// ListUnfinished returns builds still RUNNING or PENDING, oldest first.
	ListUnfinished(ctx context.Context) ([]model.Build, error)

	// CreateDeployment returns ErrDeploymentExists when the build already has one.
	CreateDeployment(ctx context.Context, deployment model.Deployment) (model.Deployment, error)
	GetDeploymentByBuild(ctx context.Context, buildID int64) (*model.Deployment, error)
}
