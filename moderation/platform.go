package moderation

import (
	"context"
	"errors"
	"time"
)

//ErrPermissionDenied is returned by a Platform when the bot lacks the permission needed for a call
var ErrPermissionDenied = errors.New("permission denied")

//ErrNotFound is returned by a Platform when the target of a call no longer exists
var ErrNotFound = errors.New("not found")

//Permission bits used by the moderation rules
const (
	PermissionAddReactions    int64 = 1 << 6
	PermissionSendMessages    int64 = 1 << 11
	PermissionUseExternalApps int64 = 1 << 50
)

//Channel is a guild channel which can carry permission overwrites
type Channel struct {
	ID   string
	Name string
}

//Platform is the set of chat platform calls the moderation rules need. Implementations wrap expected failures
//with ErrPermissionDenied or ErrNotFound so that callers can treat them as non-fatal.
type Platform interface {
	SendMessage(ctx context.Context, channelID, content string) error
	ExecuteWebhook(ctx context.Context, webhookURL, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
	RemoveReaction(ctx context.Context, channelID, messageID, emoji, userID string) error

	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
	//FindRole returns the ID of the first role with the given name, or ErrNotFound
	FindRole(ctx context.Context, guildID, name string) (string, error)
	CreateRole(ctx context.Context, guildID, name string) (string, error)

	GuildChannels(ctx context.Context, guildID string) ([]Channel, error)
	//ChannelOverwrite returns the role's overwrite masks in a channel, both zero if it has none
	ChannelOverwrite(ctx context.Context, channelID, roleID string) (allow, deny int64, err error)
	//SetChannelOverwrite replaces the role's overwrite in a channel, deleting it when both masks are zero
	SetChannelOverwrite(ctx context.Context, channelID, roleID string, allow, deny int64) error

	EditNickname(ctx context.Context, guildID, userID, nick string) error
	KickMember(ctx context.Context, guildID, userID, reason string) error
	BanMember(ctx context.Context, guildID, userID, reason string) error
	TimeoutMember(ctx context.Context, guildID, userID string, until time.Time) error
}

//isExpected returns true for platform failures which should be logged and skipped rather than propagated
func isExpected(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNotFound)
}
