package listing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrListingNotFound = errors.New("listing not found")

type Listing struct {
	ID          uuid.UUID `json:"id"`
	SellerID    uuid.UUID `json:"seller_id"`
	Title       string    `json:"title"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	IsPublished bool      `json:"is_published"`
}

// Service is the read-only listing lookup consumed by order creation.
// Listing management itself lives outside this service.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Listing, error) {
	var l Listing
	err := s.pool.QueryRow(ctx, `
		SELECT id, seller_id, title, price, currency, is_published
		FROM listings
		WHERE id = $1`,
		id,
	).Scan(&l.ID, &l.SellerID, &l.Title, &l.Price, &l.Currency, &l.IsPublished)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return &l, nil
}
