package discord

import (
	"github.com/bwmarrin/discordgo"
)

//GuildOwnerID returns the ID of the guild's owner, preferring the cached guild
func (d *EventSource) GuildOwnerID(guildID string) (string, error) {
	s := d.Session()
	if g, err := s.State.Guild(guildID); err == nil {
		return g.OwnerID, nil
	}
	g, err := s.Guild(guildID)
	if err != nil {
		return "", classify("fetch guild", err)
	}
	return g.OwnerID, nil
}

//GuildRoles lists the roles of a guild
func (d *EventSource) GuildRoles(guildID string) ([]*discordgo.Role, error) {
	roles, err := d.Session().GuildRoles(guildID)
	return roles, classify("list roles", err)
}

//MemberPermissions computes the guild-level permissions granted by a set of roles
func (d *EventSource) MemberPermissions(guildID string, roleIDs []string) (int64, error) {
	roles, err := d.GuildRoles(guildID)
	if err != nil {
		return 0, err
	}
	held := make(map[string]bool, len(roleIDs)+1)
	for _, id := range roleIDs {
		held[id] = true
	}
	//everyone role
	held[guildID] = true
	var perms int64
	for _, role := range roles {
		if held[role.ID] {
			perms |= role.Permissions
		}
	}
	return perms, nil
}

//Reply sends a response to a message
func (d *EventSource) Reply(msg *discordgo.Message, resp *discordgo.MessageSend) error {
	resp.Reference = &discordgo.MessageReference{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
	}
	_, err := d.Session().ChannelMessageSendComplex(msg.ChannelID, resp)
	return classify("send reply", err)
}
