package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanWithdrawalTransition(t *testing.T) {
	tests := []struct {
		name string
		from WithdrawalStatus
		to   WithdrawalStatus
		want bool
	}{
		{name: "approve", from: WithdrawalPending, to: WithdrawalCompleted, want: true},
		{name: "reject", from: WithdrawalPending, to: WithdrawalRejected, want: true},
		{name: "start payment", from: WithdrawalCompleted, to: WithdrawalProcessing, want: true},
		{name: "gateway success", from: WithdrawalProcessing, to: WithdrawalPaid, want: true},
		{name: "compensating rollback", from: WithdrawalProcessing, to: WithdrawalCompleted, want: true},
		{name: "never back to pending", from: WithdrawalProcessing, to: WithdrawalPending, want: false},
		{name: "completed cannot revert", from: WithdrawalCompleted, to: WithdrawalPending, want: false},
		{name: "paid is terminal", from: WithdrawalPaid, to: WithdrawalProcessing, want: false},
		{name: "rejected is terminal", from: WithdrawalRejected, to: WithdrawalPending, want: false},
		{name: "skip approval", from: WithdrawalPending, to: WithdrawalProcessing, want: false},
		{name: "skip payment", from: WithdrawalCompleted, to: WithdrawalPaid, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanWithdrawalTransition(tt.from, tt.to))
		})
	}
}

func TestWithdrawalStatusTerminal(t *testing.T) {
	assert.True(t, WithdrawalPaid.IsTerminal())
	assert.True(t, WithdrawalRejected.IsTerminal())
	assert.False(t, WithdrawalPending.IsTerminal())
	assert.False(t, WithdrawalCompleted.IsTerminal())
	assert.False(t, WithdrawalProcessing.IsTerminal())
}
