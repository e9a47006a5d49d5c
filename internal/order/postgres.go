package order

import (
	"context"
	"errors"
	"fmt"

	"yalegn/orders-service/internal/events"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const orderColumns = `
	o.id, o.buyer_id, o.seller_id, o.listing_id, o.quantity,
	o.total_price, o.currency,
	o.account_number, o.account_owner, o.selected_bank, o.payment_sender_link,
	COALESCE(o.delivery_proof_url, ''), o.order_status, o.created_at, o.updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(
		&o.ID, &o.BuyerID, &o.SellerID, &o.ListingID, &o.Quantity,
		&o.TotalPrice, &o.Currency,
		&o.Payment.AccountNumber, &o.Payment.AccountOwner,
		&o.Payment.SelectedBank, &o.Payment.PaymentSenderLink,
		&o.DeliveryProofURL, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
}

func (s *PostgresStore) Insert(ctx context.Context, o *Order, outboxEvent []byte) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, buyer_id, seller_id, listing_id, quantity,
			total_price, currency,
			account_number, account_owner, selected_bank, payment_sender_link,
			order_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`,
		o.ID, o.BuyerID, o.SellerID, o.ListingID, o.Quantity,
		o.TotalPrice, o.Currency,
		o.Payment.AccountNumber, o.Payment.AccountOwner,
		o.Payment.SelectedBank, o.Payment.PaymentSenderLink,
		o.Status, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_outbox (event_type, payload)
		VALUES ($1, $2)`,
		events.TypeOrderCreated, outboxEvent,
	)
	if err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	row := s.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.id = $1`, id)
	if err := scanOrder(row, &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// ApplyTransition is the optimistic-concurrency write: the status guard
// in the WHERE clause makes the read-validate-write sequence safe
// without row locks. Zero rows affected means a concurrent writer won.
func (s *PostgresStore) ApplyTransition(ctx context.Context, id uuid.UUID, from, to Status, proofURL string, outboxEvent []byte) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var tag pgconn.CommandTag
	if proofURL != "" {
		tag, err = tx.Exec(ctx, `
			UPDATE orders
			SET order_status = $3, delivery_proof_url = $4, updated_at = NOW()
			WHERE id = $1 AND order_status = $2`,
			id, from, to, proofURL)
	} else {
		tag, err = tx.Exec(ctx, `
			UPDATE orders
			SET order_status = $3, updated_at = NOW()
			WHERE id = $1 AND order_status = $2`,
			id, from, to)
	}
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_outbox (event_type, payload)
		VALUES ($1, $2)`,
		events.TypeOrderStatusChanged, outboxEvent,
	)
	if err != nil {
		return false, fmt.Errorf("insert outbox: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]View, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`,
			l.title, l.price,
			u.name, u.email
		FROM orders o
		JOIN listings l ON l.id = o.listing_id
		JOIN users u ON u.id = o.seller_id
		WHERE o.buyer_id = $1
		ORDER BY o.created_at DESC`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("query buyer orders: %w", err)
	}
	defer rows.Close()

	var result []View
	for rows.Next() {
		var v View
		var ls ListingSummary
		var seller PartySummary
		if err := rows.Scan(
			&v.ID, &v.BuyerID, &v.SellerID, &v.ListingID, &v.Quantity,
			&v.TotalPrice, &v.Currency,
			&v.Payment.AccountNumber, &v.Payment.AccountOwner,
			&v.Payment.SelectedBank, &v.Payment.PaymentSenderLink,
			&v.DeliveryProofURL, &v.Status, &v.CreatedAt, &v.UpdatedAt,
			&ls.Title, &ls.Price,
			&seller.Name, &seller.Email,
		); err != nil {
			return nil, err
		}
		ls.ID = v.ListingID
		seller.ID = v.SellerID
		v.Listing = &ls
		v.Seller = &seller
		result = append(result, v)
	}
	return result, rows.Err()
}

func (s *PostgresStore) ListBySeller(ctx context.Context, sellerID uuid.UUID, listingID *uuid.UUID) ([]View, error) {
	query := `
		SELECT ` + orderColumns + `,
			l.title, l.price,
			u.name, u.email
		FROM orders o
		JOIN listings l ON l.id = o.listing_id
		JOIN users u ON u.id = o.buyer_id
		WHERE o.seller_id = $1`
	args := []any{sellerID}
	if listingID != nil {
		query += ` AND o.listing_id = $2`
		args = append(args, *listingID)
	}
	query += ` ORDER BY o.created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query seller orders: %w", err)
	}
	defer rows.Close()

	var result []View
	for rows.Next() {
		var v View
		var ls ListingSummary
		var buyer PartySummary
		if err := rows.Scan(
			&v.ID, &v.BuyerID, &v.SellerID, &v.ListingID, &v.Quantity,
			&v.TotalPrice, &v.Currency,
			&v.Payment.AccountNumber, &v.Payment.AccountOwner,
			&v.Payment.SelectedBank, &v.Payment.PaymentSenderLink,
			&v.DeliveryProofURL, &v.Status, &v.CreatedAt, &v.UpdatedAt,
			&ls.Title, &ls.Price,
			&buyer.Name, &buyer.Email,
		); err != nil {
			return nil, err
		}
		ls.ID = v.ListingID
		buyer.ID = v.BuyerID
		v.Listing = &ls
		v.Buyer = &buyer
		result = append(result, v)
	}
	return result, rows.Err()
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]View, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`,
			l.title, l.price,
			b.name, b.email,
			se.name, se.email
		FROM orders o
		JOIN listings l ON l.id = o.listing_id
		JOIN users b ON b.id = o.buyer_id
		JOIN users se ON se.id = o.seller_id
		ORDER BY o.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query all orders: %w", err)
	}
	defer rows.Close()

	var result []View
	for rows.Next() {
		var v View
		var ls ListingSummary
		var buyer, seller PartySummary
		if err := rows.Scan(
			&v.ID, &v.BuyerID, &v.SellerID, &v.ListingID, &v.Quantity,
			&v.TotalPrice, &v.Currency,
			&v.Payment.AccountNumber, &v.Payment.AccountOwner,
			&v.Payment.SelectedBank, &v.Payment.PaymentSenderLink,
			&v.DeliveryProofURL, &v.Status, &v.CreatedAt, &v.UpdatedAt,
			&ls.Title, &ls.Price,
			&buyer.Name, &buyer.Email,
			&seller.Name, &seller.Email,
		); err != nil {
			return nil, err
		}
		ls.ID = v.ListingID
		buyer.ID = v.BuyerID
		seller.ID = v.SellerID
		v.Listing = &ls
		v.Buyer = &buyer
		v.Seller = &seller
		result = append(result, v)
	}
	return result, rows.Err()
}
