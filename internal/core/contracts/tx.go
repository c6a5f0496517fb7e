package contracts

import "context"

// TxManager runs fn inside one database transaction carried by ctx.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
