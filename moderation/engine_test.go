package moderation

import (
	"context"
	"testing"

	"github.com/callummance/marshal/guildmodels"
	"github.com/stretchr/testify/assert"
)

func TestFilteredMessagesAreNotReactedTo(t *testing.T) {
	platform := newRecordingPlatform()
	policies := filterPolicies(guildmodels.ActionMute)
	policies.set(func(p *guildmodels.GuildPolicy) {
		p.ContentFilter.Enabled = true
		p.ContentFilter.Terms = []string{"badword"}
		p.ToggleReactionRule(testUser, "👀")
	})
	e := newTestEngine(t, platform, policies)

	e.HandleMessage(context.Background(), offensive(0, epoch))
	assert.Equal(t, 1, platform.Count("delete"))
	assert.Equal(t, 0, platform.Count("react"))

	e.HandleMessage(context.Background(), message(1, epoch))
	assert.Equal(t, 1, platform.Count("react"))
}

func TestAutoremoveMessages(t *testing.T) {
	platform := newRecordingPlatform()
	policies := newMemoryPolicies()
	policies.set(func(p *guildmodels.GuildPolicy) {
		p.AutoremoveMessages.Add(testUser)
		p.ToggleReactionRule(testUser, "👀")
	})
	e := newTestEngine(t, platform, policies)
	e.HandleMessage(context.Background(), message(0, epoch))
	assert.Equal(t, []string{"delete:300000000000000003:msga"}, platform.Calls())
}

func TestAutoremoveReactions(t *testing.T) {
	platform := newRecordingPlatform()
	policies := newMemoryPolicies()
	policies.set(func(p *guildmodels.GuildPolicy) {
		p.AddAutoremoveReaction(testUser, "wave:123")
	})
	e := newTestEngine(t, platform, policies)
	ev := ReactionAdded{GuildID: testGuild, ChannelID: chanA, MessageID: "m1", UserID: testUser, Emoji: "wave:123"}
	e.HandleReaction(context.Background(), ev)
	ev.Emoji = "👍"
	e.HandleReaction(context.Background(), ev)
	assert.Equal(t, []string{"unreact:" + chanA + ":m1:wave:123:" + testUser}, platform.Calls())
}

func TestExternalAppGuard(t *testing.T) {
	platform := newRecordingPlatform(chanA, "300000000000000003")
	policies := newMemoryPolicies()
	e := newTestEngine(t, platform, policies)
	_, err := e.Lockdown().Activate(context.Background(), testGuild, guildmodels.ActionKick, "300000000000000003")
	assert.NoError(t, err)

	m := message(0, epoch)
	m.Author = Member{GuildID: testGuild, UserID: "app", Bot: true}
	m.ExternalAppInvoker = testUser
	e.HandleMessage(context.Background(), m)
	assert.Equal(t, 1, platform.Count("kick"))
	assert.Equal(t, 1, platform.Count("delete"))

	m.ChannelID = chanA
	e.HandleMessage(context.Background(), m)
	assert.Equal(t, 1, platform.Count("kick"))
}

func TestBotMessagesSkipSpamAndFilter(t *testing.T) {
	platform := newRecordingPlatform()
	policies := filterPolicies(guildmodels.ActionKick)
	e := newTestEngine(t, platform, policies)
	m := offensive(0, epoch)
	m.Author.Bot = true
	e.HandleMessage(context.Background(), m)
	assert.Empty(t, platform.Calls())
	assert.Equal(t, 0, e.Spam().WindowLen(testGuild, testUser))
}
