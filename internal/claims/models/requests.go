package models

import (
	"encoding/json"
	"strings"
	"time"

	dErrors "ezclaim/pkg/domain-errors"
	platformstrings "ezclaim/pkg/platform/strings"
)

// CreateRequest is the body of POST /api/claims.
type CreateRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Status      Status      `json:"status,omitempty"`
	PhotoIDs    []string    `json:"photoIds,omitempty"`
	TagIDs      []string    `json:"tagIds,omitempty"`
	Amount      json.Number `json:"amount,omitempty"`
	Currency    string      `json:"currency,omitempty"`
	Payout      *PayoutInfo `json:"payout,omitempty"`
	Recipient   string      `json:"recipient,omitempty"`
	ExpenseAt   *time.Time  `json:"expenseAt,omitempty"`
	Password    string      `json:"password,omitempty"`
}

// Validate trims and checks the request. Status and currency are optional;
// the service fills their defaults.
func (r *CreateRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Recipient = strings.TrimSpace(r.Recipient)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	r.PhotoIDs = platformstrings.NormalizeIDs(r.PhotoIDs)
	r.TagIDs = platformstrings.NormalizeIDs(r.TagIDs)

	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if r.Amount == "" {
		return dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	if err := ValidateAmount(r.Amount); err != nil {
		return err
	}
	if r.Payout == nil {
		return dErrors.New(dErrors.CodeValidation, "payout is required")
	}
	if r.ExpenseAt == nil {
		return dErrors.New(dErrors.CodeValidation, "expenseAt is required")
	}
	if r.Status != "" {
		status, err := ParseStatus(string(r.Status))
		if err != nil {
			return err
		}
		r.Status = status
	}
	if r.Currency != "" {
		if err := ValidateCurrency(r.Currency); err != nil {
			return err
		}
	}
	return nil
}

// PatchRequest is the body of PATCH /api/claims/{id}. Nil fields are left
// unchanged. Password authorizes anonymous callers on protected claims.
type PatchRequest struct {
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	Status      *Status      `json:"status,omitempty"`
	Amount      *json.Number `json:"amount,omitempty"`
	Currency    *string      `json:"currency,omitempty"`
	Payout      *PayoutInfo  `json:"payout,omitempty"`
	Recipient   *string      `json:"recipient,omitempty"`
	ExpenseAt   *time.Time   `json:"expenseAt,omitempty"`
	Password    *string      `json:"password,omitempty"`
}

func (r *PatchRequest) Validate() error {
	if r.Status != nil {
		status, err := ParseStatus(string(*r.Status))
		if err != nil {
			return err
		}
		r.Status = &status
	}
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if title == "" {
			return dErrors.New(dErrors.CodeValidation, "title cannot be blank")
		}
		r.Title = &title
	}
	if r.Amount != nil {
		if err := ValidateAmount(*r.Amount); err != nil {
			return err
		}
	}
	if r.Currency != nil {
		code := strings.ToUpper(strings.TrimSpace(*r.Currency))
		if err := ValidateCurrency(code); err != nil {
			return err
		}
		r.Currency = &code
	}
	return nil
}

// ChangesFields reports whether any non-status field is set.
func (r *PatchRequest) ChangesFields() bool {
	return r.Title != nil || r.Description != nil || r.Amount != nil || r.Currency != nil ||
		r.Payout != nil || r.Recipient != nil || r.ExpenseAt != nil
}

// Filter narrows a claim search. The zero value matches every claim.
type Filter struct {
	Status Status
}

// Page is one page of resolved claims.
type Page struct {
	Items []*ClaimView `json:"items"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Size  int          `json:"size"`
}
