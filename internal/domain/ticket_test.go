package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    TicketStatus
		to      TicketStatus
		allowed bool
	}{
		{"open to in_progress", TicketStatusOpen, TicketStatusInProgress, true},
		{"open to closed", TicketStatusOpen, TicketStatusClosed, true},
		{"open to resolved skips work", TicketStatusOpen, TicketStatusResolved, false},
		{"in_progress to resolved", TicketStatusInProgress, TicketStatusResolved, true},
		{"in_progress to closed", TicketStatusInProgress, TicketStatusClosed, false},
		{"resolved to closed", TicketStatusResolved, TicketStatusClosed, true},
		{"resolved to in_progress", TicketStatusResolved, TicketStatusInProgress, false},
		{"closed is terminal", TicketStatusClosed, TicketStatusOpen, false},
		{"reopen not reachable via transition", TicketStatusResolved, TicketStatusOpen, false},
		{"no self transition", TicketStatusOpen, TicketStatusOpen, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.allowed {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestCanReopen(t *testing.T) {
	if !CanReopen(TicketStatusResolved) {
		t.Error("resolved tickets must be reopenable")
	}
	if !CanReopen(TicketStatusClosed) {
		t.Error("closed tickets must be reopenable")
	}
	if CanReopen(TicketStatusOpen) {
		t.Error("open tickets cannot be reopened")
	}
	if CanReopen(TicketStatusInProgress) {
		t.Error("in_progress tickets cannot be reopened")
	}
}

func TestSLAHours(t *testing.T) {
	tests := []struct {
		priority   TicketPriority
		response   int
		resolution int
	}{
		{TicketPriorityCritical, 1, 4},
		{TicketPriorityUrgent, 2, 8},
		{TicketPriorityHigh, 4, 24},
		{TicketPriorityMedium, 8, 48},
		{TicketPriorityLow, 24, 72},
		{TicketPriority("unknown"), 8, 48},
	}
	for _, tt := range tests {
		response, resolution := SLAHours(tt.priority)
		if response != tt.response || resolution != tt.resolution {
			t.Errorf("SLAHours(%s) = (%d, %d), want (%d, %d)",
				tt.priority, response, resolution, tt.response, tt.resolution)
		}
	}
}

func TestPriorityRank(t *testing.T) {
	order := []TicketPriority{
		TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh,
		TicketPriorityUrgent, TicketPriorityCritical,
	}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("expected %s to rank below %s", order[i-1], order[i])
		}
	}
	if TicketPriority("bogus").Rank() != TicketPriorityMedium.Rank() {
		t.Error("unknown priorities should rank as medium")
	}
}
