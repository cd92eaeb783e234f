package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeBucket(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{
			name: "truncates seconds",
			in:   time.Date(2026, 9, 1, 10, 15, 42, 0, time.UTC),
			want: "20260901-1015",
		},
		{
			name: "minute boundary starts a new bucket",
			in:   time.Date(2026, 9, 1, 10, 16, 0, 0, time.UTC),
			want: "20260901-1016",
		},
		{
			name: "last instant of the minute stays in it",
			in:   time.Date(2026, 9, 1, 10, 15, 59, 999999999, time.UTC),
			want: "20260901-1015",
		},
		{
			name: "converts local time to UTC first",
			in:   time.Date(2026, 9, 1, 12, 15, 30, 0, time.FixedZone("CEST", 2*3600)),
			want: "20260901-1015",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TimeBucket(tt.in))
		})
	}
}

func TestBucketBounds(t *testing.T) {
	start, end, err := BucketBounds("20260901-1015")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 9, 1, 10, 15, 0, 0, time.UTC), start)
	assert.Equal(t, time.Minute, end.Sub(start))

	// Every instant inside the bucket maps back to the same key.
	assert.Equal(t, "20260901-1015", TimeBucket(start))
	assert.Equal(t, "20260901-1015", TimeBucket(end.Add(-time.Nanosecond)))
	assert.Equal(t, "20260901-1016", TimeBucket(end))

	_, _, err = BucketBounds("not-a-bucket")
	assert.Error(t, err)
}

func TestNormalizeAction(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"BLOCK", ActionBlocked},
		{"block", ActionBlocked},
		{"Blocked", ActionBlocked},
		{"ALLOW", ActionAllowed},
		{"allowed", ActionAllowed},
		{"COUNT", ActionCounted},
		{"counted", ActionCounted},
		{"  BLOCK  ", ActionBlocked},
		{"CAPTCHA", "captcha"}, // unknown actions lowercase but stay invalid
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAction(tt.raw))
		})
	}
}

func TestValidators(t *testing.T) {
	assert.True(t, IsValidSeverity(0))
	assert.True(t, IsValidSeverity(5))
	assert.False(t, IsValidSeverity(-1))
	assert.False(t, IsValidSeverity(6))

	assert.True(t, IsValidSourceType(SourceTypeWAFEvent))
	assert.True(t, IsValidSourceType(SourceTypeAttackCampaign))
	assert.False(t, IsValidSourceType("firewall"))

	assert.True(t, IsValidChannel(ChannelBlocklist))
	assert.False(t, IsValidChannel("pager"))

	assert.True(t, IsValidAction(ActionBlocked))
	assert.True(t, IsValidAction(ActionCounted))
	assert.False(t, IsValidAction("captcha"))
	assert.False(t, IsValidAction(NormalizeAction("CAPTCHA")))

	assert.True(t, IsTerminalJobStatus(JobStatusCompleted))
	assert.True(t, IsTerminalJobStatus(JobStatusFailed))
	assert.False(t, IsTerminalJobStatus(JobStatusOnHold))
	assert.False(t, IsTerminalJobStatus(JobStatusRunning))
}

func TestEscalationChannel(t *testing.T) {
	ref := "TICKET-42"
	esc := &Escalation{
		Notification: ChannelState{Completed: true},
		Ticket:       ChannelState{Completed: true, Ref: &ref},
	}

	assert.True(t, esc.Channel(ChannelNotification).Completed)
	require.NotNil(t, esc.Channel(ChannelTicket).Ref)
	assert.Equal(t, ref, *esc.Channel(ChannelTicket).Ref)
	assert.False(t, esc.Channel(ChannelBlocklist).Completed)
	assert.Equal(t, ChannelState{}, esc.Channel("pager"))
}
