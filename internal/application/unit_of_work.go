package application

import "context"

// UnitOfWork scopes record writes and the cache eviction they trigger to
// one database transaction. the postgres implementation carries the tx in
// the returned context; a Begin on a context that already holds a tx opens
// a savepoint instead.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error

	// Rollback is a no-op once the transaction has been committed.
	Rollback(ctx context.Context) error
}

// RunInTransaction runs fn inside a unit of work. an error from fn, or from
// an eviction fn performs, rolls the write back.
func RunInTransaction(ctx context.Context, uow UnitOfWork, fn func(ctx context.Context) error) error {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = uow.Rollback(txCtx) }()

	if err := fn(txCtx); err != nil {
		return err
	}
	return uow.Commit(txCtx)
}
