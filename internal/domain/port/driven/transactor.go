package driven

import "context"

// Stores groups the stores bound to one transaction.
type Stores struct {
	Repos   RepoStore
	Commits CommitStore
	PRs     PRStore
	Tasks   TaskStore
	Users   UserStore
	Builds  BuildStore
}

// Transactor runs fn inside a single database transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(Stores) error) error
}
