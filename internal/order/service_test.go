package order

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"yalegn/orders-service/internal/listing"

	"github.com/google/uuid"
)

// memStore implements Store in memory. ApplyTransition takes the same
// compare-and-swap stance as the SQL implementation: the status guard
// is checked and the write applied under one lock.
type memStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*Order
	outbox [][]byte
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[uuid.UUID]*Order)}
}

func (m *memStore) Insert(ctx context.Context, o *Order, outboxEvent []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	m.outbox = append(m.outbox, outboxEvent)
	return nil
}

func (m *memStore) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ApplyTransition(ctx context.Context, id uuid.UUID, from, to Status, proofURL string, outboxEvent []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	if proofURL != "" {
		o.DeliveryProofURL = proofURL
	}
	m.outbox = append(m.outbox, outboxEvent)
	return true, nil
}

func (m *memStore) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []View
	for _, o := range m.orders {
		if o.BuyerID == buyerID {
			out = append(out, View{Order: *o})
		}
	}
	return out, nil
}

func (m *memStore) ListBySeller(ctx context.Context, sellerID uuid.UUID, listingID *uuid.UUID) ([]View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []View
	for _, o := range m.orders {
		if o.SellerID != sellerID {
			continue
		}
		if listingID != nil && o.ListingID != *listingID {
			continue
		}
		out = append(out, View{Order: *o})
	}
	return out, nil
}

func (m *memStore) ListAll(ctx context.Context) ([]View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []View
	for _, o := range m.orders {
		out = append(out, View{Order: *o})
	}
	return out, nil
}

type fakeListings struct {
	listings map[uuid.UUID]*listing.Listing
}

func (f *fakeListings) Get(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return nil, listing.ErrListingNotFound
	}
	return l, nil
}

type sentNotification struct {
	UserID uuid.UUID
	Kind   string
	Admins bool
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifier) Notify(ctx context.Context, userID uuid.UUID, kind, title, body string, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{UserID: userID, Kind: kind})
}

func (f *fakeNotifier) NotifyAdmins(ctx context.Context, kind, title, body string, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{Kind: kind, Admins: true})
}

type fakeBroadcaster struct {
	mu      sync.Mutex
	updates []string
}

func (f *fakeBroadcaster) BroadcastOrderUpdate(orderID string, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, status)
}

type fixture struct {
	svc      *Service
	store    *memStore
	notifier *fakeNotifier

	buyerID   uuid.UUID
	sellerID  uuid.UUID
	listingID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	buyerID := uuid.New()
	sellerID := uuid.New()
	listingID := uuid.New()

	store := newMemStore()
	notifier := &fakeNotifier{}
	listings := &fakeListings{listings: map[uuid.UUID]*listing.Listing{
		listingID: {
			ID:          listingID,
			SellerID:    sellerID,
			Title:       "Handwoven basket",
			Price:       100,
			Currency:    "ETB",
			IsPublished: true,
		},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &fixture{
		svc:       NewService(store, listings, notifier, &fakeBroadcaster{}, logger),
		store:     store,
		notifier:  notifier,
		buyerID:   buyerID,
		sellerID:  sellerID,
		listingID: listingID,
	}
}

func (f *fixture) buyer() Identity  { return Identity{UserID: f.buyerID, Role: RoleBuyer} }
func (f *fixture) seller() Identity { return Identity{UserID: f.sellerID, Role: RoleSeller} }
func (f *fixture) admin() Identity  { return Identity{UserID: uuid.New(), Role: RoleAdmin} }

func (f *fixture) createOrder(t *testing.T) *Order {
	t.Helper()
	o, err := f.svc.Create(context.Background(), CreateParams{
		BuyerID:    f.buyerID,
		ListingID:  f.listingID,
		Quantity:   1,
		TotalPrice: 100,
		Currency:   CurrencyETB,
		Payment: PaymentDetails{
			AccountNumber:     "1000123456789",
			AccountOwner:      "Abebe Kebede",
			SelectedBank:      "CBE",
			PaymentSenderLink: "https://uploads.example/receipt-1.png",
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func (f *fixture) statusOf(t *testing.T, id uuid.UUID) Status {
	t.Helper()
	o, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	return o.Status
}

func TestHappyPathToCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.createOrder(t)
	if o.Status != StatusPendingPayment {
		t.Fatalf("new order status = %s, want PENDING_PAYMENT", o.Status)
	}
	if o.SellerID != f.sellerID {
		t.Fatalf("seller id not sourced from listing")
	}

	if _, err := f.svc.AdminAdvance(ctx, f.admin(), o.ID, StatusPaymentReceived); err != nil {
		t.Fatalf("admin advance to PAYMENT_RECEIVED: %v", err)
	}
	if got := f.statusOf(t, o.ID); got != StatusPaymentReceived {
		t.Fatalf("status = %s, want PAYMENT_RECEIVED", got)
	}

	updated, err := f.svc.SellerUploadProof(ctx, f.seller(), o.ID, "https://proof/1")
	if err != nil {
		t.Fatalf("seller upload proof: %v", err)
	}
	if updated.Status != StatusDelivered {
		t.Fatalf("status = %s, want DELIVERED", updated.Status)
	}
	if updated.DeliveryProofURL != "https://proof/1" {
		t.Fatalf("proof url = %q", updated.DeliveryProofURL)
	}

	if _, err := f.svc.BuyerConfirmDelivery(ctx, f.buyer(), o.ID); err != nil {
		t.Fatalf("buyer confirm delivery: %v", err)
	}
	if got := f.statusOf(t, o.ID); got != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", got)
	}
}

func TestCancelledIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.createOrder(t)
	if _, err := f.svc.AdminAdvance(ctx, f.admin(), o.ID, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := f.svc.AdminAdvance(ctx, f.admin(), o.ID, StatusPaymentReceived)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("advance after cancel: got %v, want ErrInvalidTransition", err)
	}
	if got := f.statusOf(t, o.ID); got != StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", got)
	}
}

func TestProofBeforePaymentRejected(t *testing.T) {
	f := newFixture(t)

	o := f.createOrder(t)
	_, err := f.svc.SellerUploadProof(context.Background(), f.seller(), o.ID, "https://proof/early")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("proof before payment: got %v, want ErrInvalidTransition", err)
	}
	if got := f.statusOf(t, o.ID); got != StatusPendingPayment {
		t.Fatalf("status = %s, want PENDING_PAYMENT", got)
	}
}

func TestConfirmByStrangerForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.createOrder(t)
	if _, err := f.svc.AdminAdvance(ctx, f.admin(), o.ID, StatusPaymentReceived); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SellerUploadProof(ctx, f.seller(), o.ID, "https://proof/1"); err != nil {
		t.Fatal(err)
	}

	stranger := Identity{UserID: uuid.New(), Role: RoleBuyer}
	_, err := f.svc.BuyerConfirmDelivery(ctx, stranger, o.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("confirm by stranger: got %v, want ErrForbidden", err)
	}
	if got := f.statusOf(t, o.ID); got != StatusDelivered {
		t.Fatalf("status = %s, want DELIVERED", got)
	}
}

func TestProofByWrongSellerForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.createOrder(t)
	if _, err := f.svc.AdminAdvance(ctx, f.admin(), o.ID, StatusPaymentReceived); err != nil {
		t.Fatal(err)
	}

	impostor := Identity{UserID: uuid.New(), Role: RoleSeller}
	_, err := f.svc.SellerUploadProof(ctx, impostor, o.ID, "https://proof/fake")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("proof by impostor: got %v, want ErrForbidden", err)
	}
	if got := f.statusOf(t, o.ID); got != StatusPaymentReceived {
		t.Fatalf("status = %s, want PAYMENT_RECEIVED", got)
	}
}

func TestAdminAdvanceRequiresAdminRole(t *testing.T) {
	f := newFixture(t)

	o := f.createOrder(t)
	_, err := f.svc.AdminAdvance(context.Background(), f.buyer(), o.ID, StatusPaymentReceived)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("advance by buyer: got %v, want ErrForbidden", err)
	}
}

func TestNoOpAdvanceRejected(t *testing.T) {
	f := newFixture(t)

	o := f.createOrder(t)
	_, err := f.svc.AdminAdvance(context.Background(), f.admin(), o.ID, StatusPendingPayment)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("no-op advance: got %v, want ErrInvalidTransition", err)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payment := PaymentDetails{
		AccountNumber:     "1000123456789",
		AccountOwner:      "Abebe Kebede",
		SelectedBank:      "CBE",
		PaymentSenderLink: "https://uploads.example/receipt-1.png",
	}

	cases := []struct {
		name    string
		params  CreateParams
		wantErr error
	}{
		{
			name: "zero quantity",
			params: CreateParams{
				BuyerID: f.buyerID, ListingID: f.listingID,
				Quantity: 0, TotalPrice: 100, Currency: CurrencyETB, Payment: payment,
			},
			wantErr: ErrInvalidInput,
		},
		{
			name: "zero price",
			params: CreateParams{
				BuyerID: f.buyerID, ListingID: f.listingID,
				Quantity: 1, TotalPrice: 0, Currency: CurrencyETB, Payment: payment,
			},
			wantErr: ErrInvalidInput,
		},
		{
			name: "unknown currency",
			params: CreateParams{
				BuyerID: f.buyerID, ListingID: f.listingID,
				Quantity: 1, TotalPrice: 100, Currency: "EUR", Payment: payment,
			},
			wantErr: ErrInvalidInput,
		},
		{
			name: "missing payment details",
			params: CreateParams{
				BuyerID: f.buyerID, ListingID: f.listingID,
				Quantity: 1, TotalPrice: 100, Currency: CurrencyETB,
			},
			wantErr: ErrInvalidInput,
		},
		{
			name: "unknown listing",
			params: CreateParams{
				BuyerID: f.buyerID, ListingID: uuid.New(),
				Quantity: 1, TotalPrice: 100, Currency: CurrencyETB, Payment: payment,
			},
			wantErr: listing.ErrListingNotFound,
		},
		{
			name: "self purchase",
			params: CreateParams{
				BuyerID: f.sellerID, ListingID: f.listingID,
				Quantity: 1, TotalPrice: 100, Currency: CurrencyETB, Payment: payment,
			},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.params)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestConcurrentAdvanceExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.createOrder(t)
	if _, err := f.svc.AdminAdvance(ctx, f.admin(), o.ID, StatusPaymentReceived); err != nil {
		t.Fatal(err)
	}

	targets := []Status{StatusDeliveryPending, StatusCancelled}
	errs := make([]error, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target Status) {
			defer wg.Done()
			_, errs[i] = f.svc.AdminAdvance(ctx, f.admin(), o.ID, target)
		}(i, target)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrInvalidTransition):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("got %d wins and %d losses, want exactly one of each", wins, losses)
	}

	final := f.statusOf(t, o.ID)
	if final != StatusDeliveryPending && final != StatusCancelled {
		t.Fatalf("final status = %s", final)
	}
}

func TestGetScopedToParties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.createOrder(t)

	if _, err := f.svc.Get(ctx, f.buyer(), o.ID); err != nil {
		t.Fatalf("buyer get: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.seller(), o.ID); err != nil {
		t.Fatalf("seller get: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.admin(), o.ID); err != nil {
		t.Fatalf("admin get: %v", err)
	}

	stranger := Identity{UserID: uuid.New(), Role: RoleBuyer}
	if _, err := f.svc.Get(ctx, stranger, o.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("stranger get: got %v, want ErrOrderNotFound", err)
	}
}

func TestListForAdminRequiresAdmin(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.ListForAdmin(context.Background(), f.seller()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
}

func TestNotificationsOnProofUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.createOrder(t)
	if _, err := f.svc.AdminAdvance(ctx, f.admin(), o.ID, StatusPaymentReceived); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SellerUploadProof(ctx, f.seller(), o.ID, "https://proof/1"); err != nil {
		t.Fatal(err)
	}

	var buyerNotified, adminsNotified bool
	for _, n := range f.notifier.sent {
		if n.Kind != "order_delivered" {
			continue
		}
		if n.Admins {
			adminsNotified = true
		} else if n.UserID == f.buyerID {
			buyerNotified = true
		}
	}
	if !buyerNotified || !adminsNotified {
		t.Fatalf("proof upload must notify buyer and admins, got %+v", f.notifier.sent)
	}
}
