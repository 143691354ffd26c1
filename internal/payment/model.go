package payment

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType tags which kind of business entity a transaction funds.
// Together with EntityID it forms a polymorphic reference that the database
// does not enforce.
type PaymentType string

const (
	PaymentTypeInspection   PaymentType = "inspection"
	PaymentTypeConsultation PaymentType = "consultation"
	PaymentTypeOrder        PaymentType = "order"
)

// referencePrefixes is the registry of known payment types. A new type needs
// a row here and a row in the callback table.
var referencePrefixes = map[PaymentType]string{
	PaymentTypeInspection:   "PAY_INSP",
	PaymentTypeConsultation: "PAY_CONS",
	PaymentTypeOrder:        "PAY_ORD",
}

func (t PaymentType) IsValid() bool {
	_, ok := referencePrefixes[t]
	return ok
}

// Prefix returns the fixed reference prefix, or "" for unknown types.
func (t PaymentType) Prefix() string {
	return referencePrefixes[t]
}

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// IsTerminal reports whether the status can no longer change. Failed is not
// terminal: a later verification may still succeed.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess
}

// Transaction is one payment attempt. Rows are never deleted.
type Transaction struct {
	ID               int64                  `json:"id"`
	Reference        string                 `json:"reference"`
	PaymentType      PaymentType            `json:"paymentType"`
	EntityID         uint                   `json:"entityId"`
	UserID           uint                   `json:"userId"`
	AmountMajor      decimal.Decimal        `json:"amount"`
	AmountMinor      int64                  `json:"amountMinor"`
	Currency         string                 `json:"currency"`
	Provider         string                 `json:"provider"`
	AuthorizationURL string                 `json:"authorizationUrl,omitempty"`
	AccessCode       string                 `json:"accessCode,omitempty"`
	CustomerEmail    string                 `json:"customerEmail"`
	CustomerName     string                 `json:"customerName,omitempty"`
	CustomerPhone    string                 `json:"customerPhone,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	ProviderResponse json.RawMessage        `json:"providerResponse,omitempty"`
	Status           Status                 `json:"status"`
	PaidAt           *time.Time             `json:"paidAt,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

// CreateSessionInput is what a business module supplies to start a payment.
type CreateSessionInput struct {
	PaymentType PaymentType
	EntityID    uint
	UserID      uint
	AmountMajor decimal.Decimal
	Email       string
	FirstName   string
	LastName    string
	Phone       string
	Metadata    map[string]interface{}
}

// Session is everything needed to redirect a payer to the provider checkout.
type Session struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorizationUrl"`
	AccessCode       string `json:"accessCode"`
	AmountMinor      int64  `json:"amount"`
	Currency         string `json:"currency"`
	Provider         string `json:"provider"`
}

// Verification is the outcome of VerifyPaymentTransaction.
type Verification struct {
	Success     bool        `json:"success"`
	Reference   string      `json:"reference"`
	AmountMinor int64       `json:"amount"`
	Status      Status      `json:"status"`
	EntityID    uint        `json:"entityId"`
	EntityType  PaymentType `json:"entityType"`
	PaidAt      *time.Time  `json:"paidAt,omitempty"`
}

func verificationFromTransaction(tx *Transaction) *Verification {
	return &Verification{
		Success:     tx.Status == StatusSuccess,
		Reference:   tx.Reference,
		AmountMinor: tx.AmountMinor,
		Status:      tx.Status,
		EntityID:    tx.EntityID,
		EntityType:  tx.PaymentType,
		PaidAt:      tx.PaidAt,
	}
}
