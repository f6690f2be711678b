package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const memberPageSize int = 1000

//GuildMemberResult represents an item fetched using the a GuildMembersIter.
type GuildMemberResult struct {
	Member *discordgo.Member
	Error  error
}

type memberPager func(guildID, after string, limit int) ([]*discordgo.Member, error)

//GuildMembersIter returns a new iterator through the members in a given discord guild. The channel is closed once
//every member has been returned, after an error result, or when ctx is done.
func (e *EventSource) GuildMembersIter(ctx context.Context, guildID string) <-chan GuildMemberResult {
	s := e.Session()
	return iterMembers(ctx, guildID, func(guildID, after string, limit int) ([]*discordgo.Member, error) {
		return s.GuildMembers(guildID, after, limit)
	})
}

func iterMembers(ctx context.Context, guildID string, fetch memberPager) <-chan GuildMemberResult {
	ch := make(chan GuildMemberResult)
	go func() {
		defer close(ch)
		after := "0"
		for {
			page, err := fetch(guildID, after, memberPageSize)
			if err != nil {
				logrus.Warnf("Failed to fetch page of guild members from discord api: %v", err)
				select {
				case ch <- GuildMemberResult{Error: classify("list members", err)}:
				case <-ctx.Done():
				}
				return
			}
			//An empty page means we've seen everyone
			if len(page) == 0 {
				return
			}
			for _, m := range page {
				select {
				case ch <- GuildMemberResult{Member: m}:
				case <-ctx.Done():
					return
				}
			}
			if len(page) < memberPageSize {
				return
			}
			after = maxUID(page)
		}
	}()
	return ch
}

//maxUID finds the largest snowflake in a page. Snowflakes are compared numerically, as longer IDs are newer.
func maxUID(members []*discordgo.Member) string {
	maxuid := "0"
	for _, member := range members {
		if member.User == nil {
			continue
		}
		id := member.User.ID
		if len(id) > len(maxuid) || (len(id) == len(maxuid) && id > maxuid) {
			maxuid = id
		}
	}
	return maxuid
}
