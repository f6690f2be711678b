package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/marshal/moderation"
)

//MemberOf converts a discordgo member into the form used by the moderation rules
func MemberOf(guildID string, m *discordgo.Member) moderation.Member {
	res := moderation.Member{GuildID: guildID}
	if m == nil {
		return res
	}
	if m.GuildID != "" {
		res.GuildID = m.GuildID
	}
	if m.User != nil {
		res.UserID = m.User.ID
		res.Bot = m.User.Bot
	}
	res.Nick = m.Nick
	res.Roles = append([]string(nil), m.Roles...)
	return res
}

//MessageEvent converts a message into a moderation event. A bot message sent in reply to an interaction whose
//author is not a member of the guild came from a user-installed application, and the invoking user is recorded.
func MessageEvent(s *discordgo.Session, m *discordgo.MessageCreate) moderation.MessageCreated {
	ev := moderation.MessageCreated{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		Text:      m.Content,
		Timestamp: m.Timestamp,
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	author := m.Member
	if author == nil {
		author = &discordgo.Member{}
	}
	authorCopy := *author
	authorCopy.User = m.Author
	ev.Author = MemberOf(m.GuildID, &authorCopy)

	if m.Author != nil && m.Author.Bot && m.Interaction != nil && m.Interaction.User != nil {
		if !isGuildMember(s, m.GuildID, m.Author.ID) {
			ev.ExternalAppInvoker = m.Interaction.User.ID
		}
	}
	return ev
}

//ReactionEvent converts a reaction into a moderation event, keying custom emoji as name:id
func ReactionEvent(r *discordgo.MessageReactionAdd) moderation.ReactionAdded {
	return moderation.ReactionAdded{
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.APIName(),
	}
}

//MemberUpdateEvent converts a member update into a moderation event
func MemberUpdateEvent(m *discordgo.GuildMemberUpdate) moderation.MemberUpdated {
	ev := moderation.MemberUpdated{After: MemberOf(m.GuildID, m.Member)}
	if m.BeforeUpdate != nil {
		before := MemberOf(m.GuildID, m.BeforeUpdate)
		ev.Before = &before
	}
	return ev
}

func isGuildMember(s *discordgo.Session, guildID, userID string) bool {
	if s == nil || s.State == nil {
		return true
	}
	if _, err := s.State.Member(guildID, userID); err == nil {
		return true
	}
	_, err := s.GuildMember(guildID, userID)
	return err == nil
}
