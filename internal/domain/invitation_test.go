package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvitationIsUsable(t *testing.T) {
	now := time.Now().UTC()

	inv := &Invitation{
		Status:    InvitationPending,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	assert.True(t, inv.IsUsable(now))

	// 过期邀请不可用：status 仍为 pending（无后台清理），由读取时判定
	inv.ExpiresAt = now.Add(-time.Minute)
	assert.False(t, inv.IsUsable(now))

	inv.ExpiresAt = now.Add(24 * time.Hour)
	inv.Status = InvitationAccepted
	assert.False(t, inv.IsUsable(now))

	inv.Status = InvitationExpired
	assert.False(t, inv.IsUsable(now))
}
