package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestCanTransition_TerminalStatusesRejectEverything(t *testing.T) {
	all := []Transition{
		TransitionConfirmPayment, TransitionAssign, TransitionArrive, TransitionComplete,
		TransitionCustomerConfirm, TransitionAutoConfirm, TransitionDispute,
		TransitionResolveDispute, TransitionRefund, TransitionCancel,
	}
	for _, st := range []Status{StatusRefunded, StatusCancelled} {
		for _, tr := range all {
			if CanTransition(tr, st) {
				t.Fatalf("%s should not be legal from terminal %s", tr, st)
			}
		}
	}
}

func TestCanTransition_Table(t *testing.T) {
	cases := []struct {
		tr   Transition
		from Status
		want bool
	}{
		{TransitionArrive, StatusConfirmed, true},
		{TransitionArrive, StatusProviderAssigned, true},
		{TransitionArrive, StatusInProgress, false},
		{TransitionComplete, StatusInProgress, true},
		{TransitionComplete, StatusConfirmed, false},
		{TransitionDispute, StatusCompleted, true},
		{TransitionDispute, StatusDisputed, false},
		{TransitionRefund, StatusDisputed, true},
		{TransitionRefund, StatusPendingPayment, false},
		{TransitionCancel, StatusPendingPayment, true},
		{TransitionCancel, StatusInProgress, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.tr, tc.from); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.tr, tc.from, got, tc.want)
		}
	}
}

func TestCheckTransition_ErrorCarriesContext(t *testing.T) {
	err := CheckTransition(TransitionComplete, StatusCancelled)
	if err == nil {
		t.Fatalf("expected error")
	}
	var ste StateTransitionError
	if !errors.As(err, &ste) {
		t.Fatalf("expected StateTransitionError, got %T", err)
	}
	if ste.Current != StatusCancelled || ste.Transition != TransitionComplete {
		t.Fatalf("unexpected error fields: %+v", ste)
	}
	if !strings.Contains(err.Error(), "COMPLETE") || !strings.Contains(err.Error(), "CANCELLED") {
		t.Fatalf("message should name transition and status, got %q", err.Error())
	}
}
