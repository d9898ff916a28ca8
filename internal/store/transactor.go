package store

import "context"

// TxScope exposes stores bound to one transaction.
type TxScope interface {
	Tasks() TaskStore
	Users() UserStore
	Completions() CompletionStore
	Invites() InviteStore

	// Savepoint runs fn in a nested unit of work. If fn returns an error its
	// writes are discarded and the error is returned, but the enclosing
	// transaction stays usable.
	Savepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// Transactor runs functions inside a transaction. fn's writes are committed
// when it returns nil and rolled back otherwise.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx TxScope) error) error
}
