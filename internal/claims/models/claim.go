// Package models holds the claim aggregate, its lifecycle state machine and
// the request shapes accepted by the claim service.
package models

import (
	"encoding/json"
	"math/big"
	"regexp"
	"time"

	photos "ezclaim/internal/photos/models"
	tags "ezclaim/internal/tags/models"
	dErrors "ezclaim/pkg/domain-errors"
)

// EntityType is the logical type recorded on stored claims and audit events.
const EntityType = "Claim"

// Claim is the stored claim document. PhotoIDs and TagIDs are weak
// references; PasswordHash never leaves the service.
type Claim struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Status       Status      `json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	Amount       json.Number `json:"amount,omitempty"`
	Currency     string      `json:"currency,omitempty"`
	Payout       *PayoutInfo `json:"payout,omitempty"`
	Recipient    string      `json:"recipient,omitempty"`
	ExpenseAt    *time.Time  `json:"expenseAt,omitempty"`
	PasswordHash string      `json:"passwordHash,omitempty"`
	PhotoIDs     []string    `json:"photoIds"`
	TagIDs       []string    `json:"tagIds"`
}

func (c Claim) EntityID() string {
	return c.ID
}

// HasPassword reports whether anonymous access requires a password.
func (c *Claim) HasPassword() bool {
	return c.PasswordHash != ""
}

// PayoutInfo is the bank destination of a reimbursement.
type PayoutInfo struct {
	BankName      string `json:"bankName,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	IBAN          string `json:"iban,omitempty"`
	SWIFT         string `json:"swift,omitempty"`
	RoutingNumber string `json:"routingNumber,omitempty"`
	BankAddress   string `json:"bankAddress,omitempty"`
}

// ClaimView is a claim with its references resolved. Stale references are
// omitted rather than reported.
type ClaimView struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      Status         `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	Amount      json.Number    `json:"amount,omitempty"`
	Currency    string         `json:"currency,omitempty"`
	Payout      *PayoutInfo    `json:"payout,omitempty"`
	Recipient   string         `json:"recipient,omitempty"`
	ExpenseAt   *time.Time     `json:"expenseAt,omitempty"`
	Protected   bool           `json:"protected"`
	Photos      []photos.Photo `json:"photos"`
	Tags        []tags.Tag     `json:"tags"`
}

// NewView copies the public fields of c.
func NewView(c *Claim, ph []photos.Photo, tg []tags.Tag) *ClaimView {
	if ph == nil {
		ph = []photos.Photo{}
	}
	if tg == nil {
		tg = []tags.Tag{}
	}
	return &ClaimView{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		Amount:      c.Amount,
		Currency:    c.Currency,
		Payout:      c.Payout,
		Recipient:   c.Recipient,
		ExpenseAt:   c.ExpenseAt,
		Protected:   c.HasPassword(),
		Photos:      ph,
		Tags:        tg,
	}
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidateAmount requires a decimal number greater than zero.
func ValidateAmount(n json.Number) error {
	r, ok := new(big.Rat).SetString(string(n))
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "amount must be a decimal number")
	}
	if r.Sign() <= 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be greater than zero")
	}
	return nil
}

// ValidateCurrency requires an ISO 4217 style code.
func ValidateCurrency(code string) error {
	if !currencyPattern.MatchString(code) {
		return dErrors.Newf(dErrors.CodeValidation, "currency %q must be a three-letter ISO code", code)
	}
	return nil
}
