package services

import (
	"bytes"
	"strings"
	"testing"

	"detailhub/internal/domain"
)

func TestEarningsStatement(t *testing.T) {
	h := newHarness(t)
	b := h.completed("prov-1")
	if _, err := h.core.Bookings.CustomerConfirm(h.ctx, customerActor, b.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	h.completed("prov-1")

	earnings, err := h.core.Payouts.GetProviderEarnings(h.ctx, "prov-1", nil, nil)
	if err != nil {
		t.Fatalf("earnings: %v", err)
	}
	if earnings.Released.Count != 1 || earnings.Released.AmountCents != 13231 || earnings.Pending.Count != 1 {
		t.Fatalf("earnings = %+v", earnings)
	}

	pdf, name, err := h.core.Statements.EarningsStatement(h.ctx, providerActor, "prov-1", nil, nil)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) || !strings.HasPrefix(name, "STATEMENT_prov-1_") {
		t.Fatalf("unexpected statement %q (%d bytes)", name, len(pdf))
	}

	other := domain.Actor{ID: "prov-2", Role: domain.RoleProvider}
	if _, _, err := h.core.Statements.EarningsStatement(h.ctx, other, "prov-1", nil, nil); !domain.IsAuthorization(err) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}
