package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "ezclaim/pkg/domain-errors"
)

func validCreate() *CreateRequest {
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	return &CreateRequest{
		Title:     "Lunch",
		Amount:    json.Number("18.90"),
		Payout:    &PayoutInfo{IBAN: "CH93"},
		ExpenseAt: &at,
	}
}

func TestCreateRequestValidate(t *testing.T) {
	t.Run("normalizes", func(t *testing.T) {
		req := validCreate()
		req.Title = "  Lunch "
		req.Currency = " usd"
		req.Status = "approved"
		req.PhotoIDs = []string{" p1", "p1", "", "p2"}

		require.NoError(t, req.Validate())
		assert.Equal(t, "Lunch", req.Title)
		assert.Equal(t, "USD", req.Currency)
		assert.Equal(t, StatusApproved, req.Status)
		assert.Equal(t, []string{"p1", "p2"}, req.PhotoIDs)
	})

	cases := map[string]func(*CreateRequest){
		"blank title":    func(r *CreateRequest) { r.Title = " " },
		"missing amount": func(r *CreateRequest) { r.Amount = "" },
		"zero amount":    func(r *CreateRequest) { r.Amount = "0.00" },
		"garbage amount": func(r *CreateRequest) { r.Amount = "12,50" },
		"missing payout": func(r *CreateRequest) { r.Payout = nil },
		"missing date":   func(r *CreateRequest) { r.ExpenseAt = nil },
		"unknown status": func(r *CreateRequest) { r.Status = "LOST" },
		"bad currency":   func(r *CreateRequest) { r.Currency = "EURO" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validCreate()
			mutate(req)
			err := req.Validate()
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
		})
	}
}

func TestPatchRequest(t *testing.T) {
	var req PatchRequest
	require.NoError(t, json.Unmarshal([]byte(`{"status":"withdraw","password":"pw"}`), &req))
	require.NoError(t, req.Validate())
	assert.Equal(t, StatusWithdraw, *req.Status)
	assert.False(t, req.ChangesFields())

	blank := " "
	req.Title = &blank
	assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))

	var fields PatchRequest
	require.NoError(t, json.Unmarshal([]byte(`{"recipient":"Jane","currency":"chf"}`), &fields))
	require.NoError(t, fields.Validate())
	assert.True(t, fields.ChangesFields())
	assert.Equal(t, "CHF", *fields.Currency)
}
