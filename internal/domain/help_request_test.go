package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"active to responded_to", HelpRequestActive, HelpRequestRespondedTo, true},
		{"active to resolved", HelpRequestActive, HelpRequestResolved, true},
		{"active to false_alarm", HelpRequestActive, HelpRequestFalseAlarm, true},
		{"responded_to to resolved", HelpRequestRespondedTo, HelpRequestResolved, true},
		{"responded_to to false_alarm", HelpRequestRespondedTo, HelpRequestFalseAlarm, true},
		// 终态不可变
		{"resolved to responded_to", HelpRequestResolved, HelpRequestRespondedTo, false},
		{"resolved to false_alarm", HelpRequestResolved, HelpRequestFalseAlarm, false},
		{"false_alarm to resolved", HelpRequestFalseAlarm, HelpRequestResolved, false},
		// 没有任何回到 active 的路径
		{"responded_to to active", HelpRequestRespondedTo, HelpRequestActive, false},
		{"resolved to active", HelpRequestResolved, HelpRequestActive, false},
		// responded_to 不能重复进入
		{"responded_to to responded_to", HelpRequestRespondedTo, HelpRequestRespondedTo, false},
		{"unknown target", HelpRequestActive, "archived", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(HelpRequestActive))
	assert.False(t, IsTerminal(HelpRequestRespondedTo))
	assert.True(t, IsTerminal(HelpRequestResolved))
	assert.True(t, IsTerminal(HelpRequestFalseAlarm))
}
