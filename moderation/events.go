package moderation

import (
	"context"
	"time"

	"github.com/callummance/marshal/guildmodels"
)

//Member is the observed state of a guild member
type Member struct {
	GuildID string
	UserID  string
	Nick    string
	Roles   []string
	Bot     bool
}

//MessageCreated is a message posted in a guild channel
type MessageCreated struct {
	GuildID   string
	ChannelID string
	MessageID string
	Author    Member
	Text      string
	Timestamp time.Time
	//Set to the ID of the member who invoked a user-installed application, if that is what produced the message
	ExternalAppInvoker string
}

//ReactionAdded is a reaction added to a message in a guild channel
type ReactionAdded struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	//Unicode glyph, or name:id for custom emoji
	Emoji string
}

//MemberUpdated carries a member's state after an update, and before it if the platform knew it
type MemberUpdated struct {
	Before *Member
	After  Member
}

//Policies is the policy store as seen by the rules
type Policies interface {
	Get(guildID string) *guildmodels.GuildPolicy
	Mutate(ctx context.Context, guildID string, fn func(*guildmodels.GuildPolicy) error) error
}
