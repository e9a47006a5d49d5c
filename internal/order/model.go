package order

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPendingPayment  Status = "PENDING_PAYMENT"
	StatusPaymentReceived Status = "PAYMENT_RECEIVED"
	StatusDeliveryPending Status = "DELIVERY_PENDING"
	StatusDelivered       Status = "DELIVERED"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusPaymentReceived, StatusDeliveryPending,
		StatusDelivered, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are permitted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Currency string

const (
	CurrencyETB Currency = "ETB"
	CurrencyUSD Currency = "USD"
)

func (c Currency) Valid() bool {
	return c == CurrencyETB || c == CurrencyUSD
}

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller || r == RoleAdmin
}

// Identity is the resolved caller of an operation. It arrives from the
// session layer already authenticated and is trusted verbatim.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

// PaymentDetails is the bank-transfer evidence the buyer supplies at
// checkout. It is written once at creation and reviewed by an admin
// out-of-band; the service never verifies it.
type PaymentDetails struct {
	AccountNumber     string `json:"account_number"`
	AccountOwner      string `json:"account_owner"`
	SelectedBank      string `json:"selected_bank"`
	PaymentSenderLink string `json:"payment_sender_link"`
}

type Order struct {
	ID               uuid.UUID      `json:"id"`
	BuyerID          uuid.UUID      `json:"buyer_id"`
	SellerID         uuid.UUID      `json:"seller_id"`
	ListingID        uuid.UUID      `json:"listing_id"`
	Quantity         int            `json:"quantity"`
	TotalPrice       float64        `json:"total_price"`
	Currency         Currency       `json:"currency"`
	Payment          PaymentDetails `json:"payment_details"`
	DeliveryProofURL string         `json:"delivery_proof_url,omitempty"`
	Status           Status         `json:"order_status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// PartySummary is the counterparty contact shown alongside an order.
type PartySummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

type ListingSummary struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Price float64   `json:"price"`
}

// View is an order joined with the summaries the reading side is
// entitled to see. List queries fill only the relevant parties.
type View struct {
	Order
	Listing *ListingSummary `json:"listing,omitempty"`
	Buyer   *PartySummary   `json:"buyer,omitempty"`
	Seller  *PartySummary   `json:"seller,omitempty"`
}
