package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"yalegn/orders-service/internal/events"
	"yalegn/orders-service/internal/listing"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidInput      = errors.New("invalid input")
)

// ListingSource resolves the listing an order is placed against.
type ListingSource interface {
	Get(ctx context.Context, id uuid.UUID) (*listing.Listing, error)
}

// Notifier is a best-effort write sink. Implementations must not
// return errors to the caller; a lost notification never fails the
// order mutation it describes.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind, title, body string, payload map[string]any)
	NotifyAdmins(ctx context.Context, kind, title, body string, payload map[string]any)
}

// StatusBroadcaster pushes status changes to websocket subscribers.
type StatusBroadcaster interface {
	BroadcastOrderUpdate(orderID string, status string)
}

type Service struct {
	store    Store
	listings ListingSource
	notifier Notifier
	updates  StatusBroadcaster
	logger   *slog.Logger
}

func NewService(store Store, listings ListingSource, notifier Notifier, updates StatusBroadcaster, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		listings: listings,
		notifier: notifier,
		updates:  updates,
		logger:   logger,
	}
}

type CreateParams struct {
	BuyerID    uuid.UUID
	ListingID  uuid.UUID
	Quantity   int
	TotalPrice float64
	Currency   Currency
	Payment    PaymentDetails
}

func (p CreateParams) validate() error {
	if p.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	if p.TotalPrice <= 0 {
		return fmt.Errorf("%w: total price must be positive", ErrInvalidInput)
	}
	if !p.Currency.Valid() {
		return fmt.Errorf("%w: unknown currency %q", ErrInvalidInput, p.Currency)
	}
	if p.Payment.AccountNumber == "" || p.Payment.AccountOwner == "" ||
		p.Payment.SelectedBank == "" || p.Payment.PaymentSenderLink == "" {
		return fmt.Errorf("%w: payment details are incomplete", ErrInvalidInput)
	}
	return nil
}

// Create places an order in PENDING_PAYMENT. No payment is captured
// here: the buyer declares a bank transfer via the payment details and
// an admin verifies it out-of-band before advancing the order.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Order, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	l, err := s.listings.Get(ctx, params.ListingID)
	if err != nil {
		return nil, err
	}
	if !l.IsPublished {
		return nil, fmt.Errorf("%w: listing is not published", ErrInvalidInput)
	}
	if l.SellerID == params.BuyerID {
		return nil, fmt.Errorf("%w: cannot order your own listing", ErrInvalidInput)
	}

	now := time.Now().UTC()
	o := &Order{
		ID:         uuid.New(),
		BuyerID:    params.BuyerID,
		SellerID:   l.SellerID,
		ListingID:  params.ListingID,
		Quantity:   params.Quantity,
		TotalPrice: params.TotalPrice,
		Currency:   params.Currency,
		Payment:    params.Payment,
		Status:     StatusPendingPayment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	payload, err := json.Marshal(events.OrderCreatedEvent{
		EventID:    uuid.New().String(),
		OrderID:    o.ID.String(),
		BuyerID:    o.BuyerID.String(),
		SellerID:   o.SellerID.String(),
		ListingID:  o.ListingID.String(),
		Quantity:   o.Quantity,
		TotalPrice: o.TotalPrice,
		Currency:   string(o.Currency),
		CreatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	if err := s.store.Insert(ctx, o, payload); err != nil {
		return nil, err
	}

	s.notifier.NotifyAdmins(ctx, "order_created",
		"New order awaiting payment review",
		fmt.Sprintf("Order %s for %.2f %s needs payment verification", o.ID, o.TotalPrice, o.Currency),
		map[string]any{"order_id": o.ID.String()})

	return o, nil
}

// AdminAdvance moves an order to target on behalf of an admin. The
// transition is applied with a status guard so that of two concurrent
// attempts exactly one wins; the loser sees ErrInvalidTransition.
func (s *Service) AdminAdvance(ctx context.Context, actor Identity, orderID uuid.UUID, target Status) (*Order, error) {
	if actor.Role != RoleAdmin {
		return nil, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, target)
	}

	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(RoleAdmin, o.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}

	if err := s.apply(ctx, actor, o, target, ""); err != nil {
		return nil, err
	}

	title := "Order status updated"
	body := fmt.Sprintf("Order %s is now %s", o.ID, o.Status)
	meta := map[string]any{"order_id": o.ID.String(), "status": string(o.Status)}
	s.notifier.Notify(ctx, o.BuyerID, "order_status", title, body, meta)
	s.notifier.Notify(ctx, o.SellerID, "order_status", title, body, meta)

	return o, nil
}

// SellerUploadProof records the delivery proof URL and forces the order
// to DELIVERED in the same update. Only the order's own seller may call
// it, and only while payment has been received or delivery is pending.
func (s *Service) SellerUploadProof(ctx context.Context, actor Identity, orderID uuid.UUID, proofURL string) (*Order, error) {
	if actor.Role != RoleSeller {
		return nil, fmt.Errorf("%w: seller role required", ErrForbidden)
	}
	if proofURL == "" {
		return nil, fmt.Errorf("%w: proof url is required", ErrInvalidInput)
	}

	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.SellerID != actor.UserID {
		return nil, fmt.Errorf("%w: not the seller of this order", ErrForbidden)
	}
	if !CanTransition(RoleSeller, o.Status, StatusDelivered) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusDelivered)
	}

	if err := s.apply(ctx, actor, o, StatusDelivered, proofURL); err != nil {
		return nil, err
	}
	o.DeliveryProofURL = proofURL

	meta := map[string]any{"order_id": o.ID.String(), "proof_url": proofURL}
	s.notifier.Notify(ctx, o.BuyerID, "order_delivered",
		"Delivery proof uploaded",
		fmt.Sprintf("The seller marked order %s as delivered", o.ID), meta)
	s.notifier.NotifyAdmins(ctx, "order_delivered",
		"Delivery proof uploaded",
		fmt.Sprintf("Order %s awaits buyer confirmation", o.ID), meta)

	return o, nil
}

// BuyerConfirmDelivery completes a delivered order. Completing unlocks
// the review flow for the listing on the buyer side; that flow lives
// outside this service and only hears about it via the notification.
func (s *Service) BuyerConfirmDelivery(ctx context.Context, actor Identity, orderID uuid.UUID) (*Order, error) {
	if actor.Role != RoleBuyer {
		return nil, fmt.Errorf("%w: buyer role required", ErrForbidden)
	}

	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != actor.UserID {
		return nil, fmt.Errorf("%w: not the buyer of this order", ErrForbidden)
	}
	if !CanTransition(RoleBuyer, o.Status, StatusCompleted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusCompleted)
	}

	if err := s.apply(ctx, actor, o, StatusCompleted, ""); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, o.SellerID, "order_completed",
		"Order completed",
		fmt.Sprintf("The buyer confirmed delivery of order %s", o.ID),
		map[string]any{"order_id": o.ID.String(), "listing_id": o.ListingID.String()})

	return o, nil
}

// apply performs the guarded status update, mutates o to the new
// status on success and broadcasts it to websocket subscribers.
func (s *Service) apply(ctx context.Context, actor Identity, o *Order, target Status, proofURL string) error {
	from := o.Status
	payload, err := json.Marshal(events.OrderStatusChangedEvent{
		EventID:   uuid.New().String(),
		OrderID:   o.ID.String(),
		ActorID:   actor.UserID.String(),
		ActorRole: string(actor.Role),
		From:      string(from),
		To:        string(target),
		ChangedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	applied, err := s.store.ApplyTransition(ctx, o.ID, from, target, proofURL, payload)
	if err != nil {
		return err
	}
	if !applied {
		// Lost the race: someone moved the order off `from` first.
		return fmt.Errorf("%w: order no longer in %s", ErrInvalidTransition, from)
	}

	o.Status = target
	o.UpdatedAt = time.Now().UTC()

	s.logger.Info("order status changed",
		"order_id", o.ID, "from", from, "to", target, "actor_role", actor.Role)
	s.updates.BroadcastOrderUpdate(o.ID.String(), string(target))
	return nil
}

// Get returns a single order, visible only to its buyer, its seller or
// an admin. Outsiders get not-found rather than forbidden so order ids
// leak nothing.
func (s *Service) Get(ctx context.Context, actor Identity, orderID uuid.UUID) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleAdmin && o.BuyerID != actor.UserID && o.SellerID != actor.UserID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]View, error) {
	return s.store.ListByBuyer(ctx, buyerID)
}

func (s *Service) ListForSeller(ctx context.Context, sellerID uuid.UUID, listingID *uuid.UUID) ([]View, error) {
	return s.store.ListBySeller(ctx, sellerID, listingID)
}

// ListForAdmin returns every order with full payment details for the
// manual review queue.
func (s *Service) ListForAdmin(ctx context.Context, actor Identity) ([]View, error) {
	if actor.Role != RoleAdmin {
		return nil, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return s.store.ListAll(ctx)
}
