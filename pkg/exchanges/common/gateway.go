package common

import "context"

// Gateway abstracts a venue that accepts market orders.
type Gateway interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}
