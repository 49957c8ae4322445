package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/atmx/settlement-engine/internal/fixed"
	"github.com/atmx/settlement-engine/internal/ledger"
	"github.com/atmx/settlement-engine/internal/model"
	"github.com/atmx/settlement-engine/internal/oracle"
	"github.com/atmx/settlement-engine/internal/store"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.ErrAlreadyEntered, http.StatusConflict},
		{fmt.Errorf("%w: 0xabc", model.ErrUnknownAgreement), http.StatusNotFound},
		{store.ErrNotFound, http.StatusNotFound},
		{model.ErrNotLong, http.StatusForbidden},
		{fixed.ErrOverflow, http.StatusUnprocessableEntity},
		{oracle.ErrNoPrice, http.StatusBadGateway},
		{ledger.ErrInvalidAmount, http.StatusPaymentRequired},
		{fmt.Errorf("collect payout: %w", model.ErrInsufficientAllowance), http.StatusPaymentRequired},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
