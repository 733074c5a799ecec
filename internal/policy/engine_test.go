package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyDecisions(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	cases := []struct {
		role   string
		action string
		want   bool
	}{
		{"client", ActionJobsCreate, true},
		{"client", ActionProposalsCreate, false},
		{"client", ActionUsersList, false},
		{"freelancer", ActionProposalsCreate, true},
		{"freelancer", ActionJobsCreate, false},
		{"freelancer", ActionProposalsDecide, false},
		{"support", ActionTicketsList, true},
		{"support", ActionUsersManage, false},
		{"qa", ActionUsersList, true},
		{"qa", ActionMessagesSend, false},
		{"admin", ActionUsersManage, true},
		{"admin", "anything:at-all", true},
		{"", ActionActivitiesList, false},
		{"guest", ActionActivitiesList, false},
	}
	for _, tc := range cases {
		got, err := engine.Allow(ctx, tc.role, tc.action)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s -> %s", tc.role, tc.action)
	}
}

func TestNewEngineRejectsBadPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package broken\nallow {")
	require.Error(t, err)
}
