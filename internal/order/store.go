package order

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence contract for orders. Transitions are applied
// as a single conditional update guarded by the expected current
// status; the guard failing (applied == false) means another writer got
// there first or the caller's view of the order is stale.
type Store interface {
	// Insert persists a new order together with its outbox event in
	// one transaction.
	Insert(ctx context.Context, o *Order, outboxEvent []byte) error

	Get(ctx context.Context, id uuid.UUID) (*Order, error)

	// ApplyTransition moves the order from one status to another iff
	// its current status still equals from, writing the outbox event
	// in the same transaction. A non-empty proofURL is stored as the
	// delivery proof in the same statement. Returns applied == false
	// when the status guard matched no row.
	ApplyTransition(ctx context.Context, id uuid.UUID, from, to Status, proofURL string, outboxEvent []byte) (bool, error)

	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]View, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, listingID *uuid.UUID) ([]View, error)
	ListAll(ctx context.Context) ([]View, error)
}
