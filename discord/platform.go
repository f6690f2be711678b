package discord

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/marshal/moderation"
)

//RESTPlatform carries out moderation calls over the discord REST api
type RESTPlatform struct {
	s *discordgo.Session
}

//NewRESTPlatform wraps a session. The session does not need an open gateway connection.
func NewRESTPlatform(s *discordgo.Session) *RESTPlatform {
	return &RESTPlatform{s: s}
}

func (p *RESTPlatform) SendMessage(_ context.Context, channelID, content string) error {
	_, err := p.s.ChannelMessageSend(channelID, content)
	return classify("send message", err)
}

//ExecuteWebhook posts to a webhook given its full URL (…/webhooks/<id>/<token>)
func (p *RESTPlatform) ExecuteWebhook(_ context.Context, webhookURL, content string) error {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return err
	}
	_, err = p.s.WebhookExecute(id, token, false, &discordgo.WebhookParams{Content: content})
	return classify("execute webhook", err)
}

func (p *RESTPlatform) DeleteMessage(_ context.Context, channelID, messageID string) error {
	return classify("delete message", p.s.ChannelMessageDelete(channelID, messageID))
}

func (p *RESTPlatform) AddReaction(_ context.Context, channelID, messageID, emoji string) error {
	return classify("add reaction", p.s.MessageReactionAdd(channelID, messageID, emoji))
}

func (p *RESTPlatform) RemoveReaction(_ context.Context, channelID, messageID, emoji, userID string) error {
	return classify("remove reaction", p.s.MessageReactionRemove(channelID, messageID, emoji, userID))
}

func (p *RESTPlatform) AddRole(_ context.Context, guildID, userID, roleID string) error {
	return classify("add role", p.s.GuildMemberRoleAdd(guildID, userID, roleID))
}

func (p *RESTPlatform) RemoveRole(_ context.Context, guildID, userID, roleID string) error {
	return classify("remove role", p.s.GuildMemberRoleRemove(guildID, userID, roleID))
}

func (p *RESTPlatform) FindRole(_ context.Context, guildID, name string) (string, error) {
	roles, err := p.s.GuildRoles(guildID)
	if err != nil {
		return "", classify("list roles", err)
	}
	for _, role := range roles {
		if role.Name == name {
			return role.ID, nil
		}
	}
	return "", fmt.Errorf("role %v: %w", name, moderation.ErrNotFound)
}

//CreateRole creates a role with no permissions of its own
func (p *RESTPlatform) CreateRole(_ context.Context, guildID, name string) (string, error) {
	var perms int64
	role, err := p.s.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:        name,
		Permissions: &perms,
	})
	if err != nil {
		return "", classify("create role", err)
	}
	return role.ID, nil
}

//GuildChannels lists every channel in a guild which can carry overwrites. Threads inherit from their parent and
//are left out.
func (p *RESTPlatform) GuildChannels(_ context.Context, guildID string) ([]moderation.Channel, error) {
	channels, err := p.s.GuildChannels(guildID)
	if err != nil {
		return nil, classify("list channels", err)
	}
	res := make([]moderation.Channel, 0, len(channels))
	for _, ch := range channels {
		switch ch.Type {
		case discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread, discordgo.ChannelTypeGuildNewsThread:
			continue
		}
		res = append(res, moderation.Channel{ID: ch.ID, Name: ch.Name})
	}
	return res, nil
}

//ChannelOverwrite always reads the channel over REST, since the cached state may not yet reflect our own edits
func (p *RESTPlatform) ChannelOverwrite(_ context.Context, channelID, roleID string) (int64, int64, error) {
	ch, err := p.s.Channel(channelID)
	if err != nil {
		return 0, 0, classify("fetch channel", err)
	}
	for _, ow := range ch.PermissionOverwrites {
		if ow.ID == roleID && ow.Type == discordgo.PermissionOverwriteTypeRole {
			return ow.Allow, ow.Deny, nil
		}
	}
	return 0, 0, nil
}

func (p *RESTPlatform) SetChannelOverwrite(_ context.Context, channelID, roleID string, allow, deny int64) error {
	if allow == 0 && deny == 0 {
		err := p.s.ChannelPermissionDelete(channelID, roleID)
		return classify("delete overwrite", err)
	}
	err := p.s.ChannelPermissionSet(channelID, roleID, discordgo.PermissionOverwriteTypeRole, allow, deny)
	return classify("set overwrite", err)
}

func (p *RESTPlatform) EditNickname(_ context.Context, guildID, userID, nick string) error {
	return classify("edit nickname", p.s.GuildMemberNickname(guildID, userID, nick))
}

func (p *RESTPlatform) KickMember(_ context.Context, guildID, userID, reason string) error {
	return classify("kick member", p.s.GuildMemberDeleteWithReason(guildID, userID, reason))
}

func (p *RESTPlatform) BanMember(_ context.Context, guildID, userID, reason string) error {
	return classify("ban member", p.s.GuildBanCreateWithReason(guildID, userID, reason, 0))
}

func (p *RESTPlatform) TimeoutMember(_ context.Context, guildID, userID string, until time.Time) error {
	return classify("time out member", p.s.GuildMemberTimeout(guildID, userID, &until))
}

func parseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range parts {
		if part == "webhooks" && i+2 < len(parts) {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("webhook url %v has no id and token", raw)
}
