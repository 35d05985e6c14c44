package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// KYCStatus is the customer's identity verification state, provided by the
// external customer service.
type KYCStatus string

const (
	KYCUnverified KYCStatus = "UNVERIFIED"
	KYCPending    KYCStatus = "PENDING"
	KYCVerified   KYCStatus = "VERIFIED"
)

// Transaction is a historical transaction record as returned by the
// transaction-history query interface. Only the fields the engine reads.
type Transaction struct {
	TransactionID uuid.UUID       `json:"transaction_id" db:"transaction_id"`
	OrganizationID uuid.UUID      `json:"organization_id" db:"organization_id"`
	CustomerID    uuid.UUID       `json:"customer_id" db:"customer_id"`
	AccountID     uuid.UUID       `json:"account_id" db:"account_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Currency      string          `json:"currency" db:"currency"`
	Type          string          `json:"type" db:"type"`
	Country       string          `json:"country,omitempty" db:"country"`
	OccurredAt    time.Time       `json:"occurred_at" db:"occurred_at"`
}

// EvaluationRequest is the input to EvaluateTransaction
type EvaluationRequest struct {
	OrganizationID     uuid.UUID       `json:"organization_id"`
	BranchID           *uuid.UUID      `json:"branch_id,omitempty"`
	CustomerID         uuid.UUID       `json:"customer_id"`
	AccountID          uuid.UUID       `json:"account_id"`
	TransactionID      *uuid.UUID      `json:"transaction_id,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	TransactionType    string          `json:"transaction_type"`
	DestinationCountry string          `json:"destination_country,omitempty"`
	CustomerName       string          `json:"customer_name"`
	KYCStatus          KYCStatus       `json:"kyc_status"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// Validate rejects malformed evaluation input before any sub-check runs.
func (r EvaluationRequest) Validate() error {
	if r.OrganizationID == uuid.Nil {
		return NewError(KindInvalidInput, "organization id is required")
	}
	if r.CustomerID == uuid.Nil {
		return NewError(KindInvalidInput, "customer id is required")
	}
	if r.AccountID == uuid.Nil {
		return NewError(KindInvalidInput, "account id is required")
	}
	if r.Amount.LessThanOrEqual(decimal.Zero) {
		return NewError(KindInvalidInput, "amount must be positive")
	}
	if len(r.Currency) != 3 {
		return NewError(KindInvalidInput, "currency must be an ISO 4217 code")
	}
	if strings.TrimSpace(r.TransactionType) == "" {
		return NewError(KindInvalidInput, "transaction type is required")
	}
	return nil
}

// TransactionContext is the flat, dot-path addressable view of an evaluation
// the rule engine conditions read. Built once per evaluation.
type TransactionContext struct {
	values map[string]ContextValue
}

// ContextValue is a typed value in the rule-evaluation context
type ContextValue struct {
	Kind   ValueKind
	Number decimal.Decimal
	Str    string
	Bool   bool
}

// NewTransactionContext builds the context from the request plus computed
// sub-results (velocity is attached after the fan-out completes).
func NewTransactionContext(req EvaluationRequest) *TransactionContext {
	ctx := &TransactionContext{values: make(map[string]ContextValue, 16)}
	ctx.SetNumber("amount", req.Amount)
	ctx.SetString("currency", req.Currency)
	ctx.SetString("transaction_type", req.TransactionType)
	ctx.SetString("destination_country", req.DestinationCountry)
	ctx.SetString("kyc_status", string(req.KYCStatus))
	ctx.SetString("organization_id", req.OrganizationID.String())
	ctx.SetString("customer_id", req.CustomerID.String())
	ctx.SetString("account_id", req.AccountID.String())
	for k, v := range req.Metadata {
		ctx.SetString("metadata."+k, v)
	}
	return ctx
}

func (c *TransactionContext) SetNumber(field string, v decimal.Decimal) {
	c.values[field] = ContextValue{Kind: ValueNumber, Number: v}
}

func (c *TransactionContext) SetString(field string, v string) {
	c.values[field] = ContextValue{Kind: ValueString, Str: v}
}

func (c *TransactionContext) SetBool(field string, v bool) {
	c.values[field] = ContextValue{Kind: ValueBool, Bool: v}
}

// AttachVelocity exposes the velocity sub-result to velocity-type rules.
func (c *TransactionContext) AttachVelocity(v VelocityResult) {
	c.SetNumber("velocity.count", decimal.NewFromInt(int64(v.Count)))
	c.SetNumber("velocity.total_amount", v.TotalAmount)
	c.SetBool("velocity.breached", v.Breached)
}

// Lookup returns the value at a dot-path field, if present.
func (c *TransactionContext) Lookup(field string) (ContextValue, bool) {
	v, ok := c.values[field]
	return v, ok
}
