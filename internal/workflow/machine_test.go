package workflow

import (
	"testing"

	"github.com/herbtrace/herbtrace-backend/internal/domain"
)

func TestCanonicalForwardPath(t *testing.T) {
	path := []domain.BatchStatus{
		domain.StatusPending,
		domain.StatusProcessing,
		domain.StatusProcessed,
		domain.StatusTesting,
		domain.StatusTested,
		domain.StatusApproved,
		domain.StatusCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		if !IsLegalTransition(path[i], path[i+1]) {
			t.Fatalf("%s -> %s should be legal", path[i], path[i+1])
		}
	}
	if !IsLegalTransition(domain.StatusTested, domain.StatusRejected) {
		t.Fatalf("tested -> rejected should be legal")
	}
}

func TestTerminalStatesHaveNoSuccessors(t *testing.T) {
	for _, status := range []domain.BatchStatus{domain.StatusRejected, domain.StatusCompleted} {
		if !IsTerminal(status) {
			t.Fatalf("%s should be terminal", status)
		}
		for _, to := range []domain.BatchStatus{
			domain.StatusPending, domain.StatusProcessing, domain.StatusProcessed,
			domain.StatusTesting, domain.StatusTested, domain.StatusApproved, domain.StatusCompleted,
		} {
			if IsLegalTransition(status, to) {
				t.Fatalf("%s -> %s should be illegal", status, to)
			}
		}
	}
}

func TestNoSkippingStages(t *testing.T) {
	illegal := []struct{ from, to domain.BatchStatus }{
		{domain.StatusPending, domain.StatusProcessed},
		{domain.StatusPending, domain.StatusRejected},
		{domain.StatusProcessing, domain.StatusTesting},
		{domain.StatusProcessed, domain.StatusTested},
		{domain.StatusTesting, domain.StatusApproved},
	}
	for _, tc := range illegal {
		if IsLegalTransition(tc.from, tc.to) {
			t.Fatalf("%s -> %s should be illegal", tc.from, tc.to)
		}
	}
}

func TestTransitionOwnership(t *testing.T) {
	cases := []struct {
		role     domain.Role
		from, to domain.BatchStatus
		owns     bool
	}{
		{domain.RoleCollector, domain.StatusPending, domain.StatusProcessing, true},
		{domain.RoleProcessor, domain.StatusProcessing, domain.StatusProcessed, true},
		{domain.RoleLaboratory, domain.StatusProcessed, domain.StatusTesting, true},
		{domain.RoleLaboratory, domain.StatusTesting, domain.StatusTested, true},
		{domain.RoleRegulator, domain.StatusTested, domain.StatusApproved, true},
		{domain.RoleRegulator, domain.StatusTested, domain.StatusRejected, true},
		{domain.RoleRegulator, domain.StatusApproved, domain.StatusCompleted, true},
		{domain.RoleProcessor, domain.StatusPending, domain.StatusProcessing, false},
		{domain.RoleCollector, domain.StatusTested, domain.StatusApproved, false},
		{domain.RoleLaboratory, domain.StatusTested, domain.StatusRejected, false},
	}
	for _, tc := range cases {
		if got := OwnsTransition(tc.role, tc.from, tc.to); got != tc.owns {
			t.Fatalf("OwnsTransition(%s, %s, %s) = %v, want %v", tc.role, tc.from, tc.to, got, tc.owns)
		}
	}
}
