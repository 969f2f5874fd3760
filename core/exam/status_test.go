package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Advance(t *testing.T) {
	tests := []struct {
		from     Status
		want     Status
		wantNext bool
	}{
		{StatusDraft, StatusScheduled, true},
		{StatusScheduled, StatusOngoing, true},
		{StatusOngoing, StatusCompleted, true},
		{StatusCompleted, StatusCompleted, false},
		{StatusCancelled, StatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			next, ok := tt.from.Next()
			assert.Equal(t, tt.want, next)
			assert.Equal(t, tt.wantNext, ok)
			assert.Equal(t, tt.want, tt.from.Advance())
		})
	}
}

func TestStatus_Cancel(t *testing.T) {
	tests := []struct {
		from Status
		want Status
	}{
		{StatusDraft, StatusCancelled},
		{StatusScheduled, StatusCancelled},
		{StatusOngoing, StatusCancelled},
		{StatusCompleted, StatusCompleted},
		{StatusCancelled, StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.Cancel())
		})
	}
}

func TestStatus_terminalIsFixedPoint(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		assert.True(t, s.IsTerminal())
		assert.Empty(t, s.Transitions())
		for _, to := range Statuses {
			assert.False(t, s.CanTransition(to), "%s -> %s", s, to)
		}
	}
}

func TestStatus_Transitions(t *testing.T) {
	assert.Equal(t, []Status{StatusScheduled, StatusCancelled}, StatusDraft.Transitions())
	assert.True(t, StatusOngoing.CanTransition(StatusCompleted))
	assert.False(t, StatusDraft.CanTransition(StatusOngoing), "statuses cannot be skipped")
	assert.False(t, StatusScheduled.CanTransition(StatusDraft), "statuses cannot go back")
	assert.False(t, Status("ARCHIVED").IsValid())
}
