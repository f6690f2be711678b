package moderation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/callummance/marshal/guildmodels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1700000000, 0)

func newTestEngine(t *testing.T, platform *recordingPlatform, policies *memoryPolicies) *Engine {
	t.Helper()
	e, err := NewEngine(policies, platform, Config{SpamCacheSize: 64})
	require.NoError(t, err)
	return e
}

func message(i int, at time.Time) MessageCreated {
	return MessageCreated{
		GuildID:   testGuild,
		ChannelID: "300000000000000003",
		MessageID: "msg" + string(rune('a'+i)),
		Author:    Member{GuildID: testGuild, UserID: testUser},
		Text:      "hello",
		Timestamp: at,
	}
}

func TestSpamBurstTriggersOnceAndClears(t *testing.T) {
	platform := newRecordingPlatform()
	policies := newMemoryPolicies()
	policies.set(func(p *guildmodels.GuildPolicy) {
		p.Spam = guildmodels.SpamRule{Enabled: true, Action: guildmodels.ActionKick}
	})
	e := newTestEngine(t, platform, policies)

	for i := 0; i < 4; i++ {
		e.HandleMessage(context.Background(), message(i, epoch.Add(time.Duration(i)*time.Second)))
	}
	assert.Equal(t, 0, platform.Count("kick"))
	assert.Equal(t, 4, e.Spam().WindowLen(testGuild, testUser))

	e.HandleMessage(context.Background(), message(4, epoch.Add(4*time.Second)))
	assert.Equal(t, 1, platform.Count("kick"))
	assert.Equal(t, 0, e.Spam().WindowLen(testGuild, testUser))

	//a new burst is needed to trigger again
	for i := 5; i < 9; i++ {
		e.HandleMessage(context.Background(), message(i, epoch.Add(5*time.Second)))
	}
	assert.Equal(t, 1, platform.Count("kick"))
	e.HandleMessage(context.Background(), message(9, epoch.Add(5*time.Second)))
	assert.Equal(t, 2, platform.Count("kick"))
}

func TestSpamWindowExpiresOldMessages(t *testing.T) {
	d, err := NewSpamDetector(16)
	require.NoError(t, err)
	rule := guildmodels.SpamRule{Enabled: true, Action: guildmodels.ActionMute}
	for i := 0; i < 20; i++ {
		dec := d.Evaluate(testGuild, testUser, epoch.Add(time.Duration(i)*1500*time.Millisecond), rule)
		assert.False(t, dec.Triggered, "message %d", i)
		d.Commit(dec)
	}
	//1.5s spacing keeps 4 messages inside the horizon
	assert.Equal(t, 4, d.WindowLen(testGuild, testUser))
}

func TestSpamTrackedWhileDisabled(t *testing.T) {
	d, err := NewSpamDetector(16)
	require.NoError(t, err)
	off := guildmodels.SpamRule{}
	for i := 0; i < 4; i++ {
		d.Commit(d.Evaluate(testGuild, testUser, epoch, off))
	}
	dec := d.Evaluate(testGuild, testUser, epoch, off)
	assert.False(t, dec.Triggered)
	assert.Equal(t, 5, dec.Count())

	on := guildmodels.SpamRule{Enabled: true, Action: guildmodels.ActionBan}
	dec = d.Evaluate(testGuild, testUser, epoch, on)
	assert.True(t, dec.Triggered)
	assert.Equal(t, guildmodels.ActionBan, dec.Action)
}

func TestSpamEvaluateDoesNotRecord(t *testing.T) {
	d, err := NewSpamDetector(16)
	require.NoError(t, err)
	d.Evaluate(testGuild, testUser, epoch, guildmodels.SpamRule{})
	assert.Equal(t, 0, d.WindowLen(testGuild, testUser))
}

func TestSpamWindowClearedWhenEnforcementFails(t *testing.T) {
	platform := newRecordingPlatform()
	platform.fail["kick"] = fmt.Errorf("missing kick permission: %w", ErrPermissionDenied)
	policies := newMemoryPolicies()
	policies.set(func(p *guildmodels.GuildPolicy) {
		p.Spam = guildmodels.SpamRule{Enabled: true, Action: guildmodels.ActionKick}
		p.LogSink.ChannelID = "400000000000000004"
	})
	e := newTestEngine(t, platform, policies)
	for i := 0; i < 5; i++ {
		e.HandleMessage(context.Background(), message(i, epoch))
	}
	assert.Equal(t, 0, platform.Count("kick"))
	assert.Equal(t, 0, e.Spam().WindowLen(testGuild, testUser))
	assert.Equal(t, 1, platform.Count("send"))
}

func TestSpamWindowsAreBounded(t *testing.T) {
	d, err := NewSpamDetector(2)
	require.NoError(t, err)
	for _, uid := range []string{"a", "b", "c"} {
		d.Commit(d.Evaluate(testGuild, uid, epoch, guildmodels.SpamRule{}))
	}
	assert.Equal(t, 0, d.WindowLen(testGuild, "a"))
	assert.Equal(t, 1, d.WindowLen(testGuild, "c"))
}
