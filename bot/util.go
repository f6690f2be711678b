package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const listPageSize = 5

var userRegex = regexp.MustCompile(`^(?:<@!?(\d+)>|(\d{15,21}))$`)

//interpretUserString accepts a user mention or a bare user ID
func interpretUserString(userStr string) (string, bool) {
	matches := userRegex.FindStringSubmatch(strings.TrimSpace(userStr))
	switch {
	case matches == nil:
		return "", false
	case matches[1] != "":
		return matches[1], true
	default:
		return matches[2], true
	}
}

var channelRegex = regexp.MustCompile(`^(?:<#(\d+)>|(\d{15,21}))$`)

//interpretChannelString accepts a channel mention or a bare channel ID
func interpretChannelString(chanStr string) (string, bool) {
	matches := channelRegex.FindStringSubmatch(strings.TrimSpace(chanStr))
	switch {
	case matches == nil:
		return "", false
	case matches[1] != "":
		return matches[1], true
	default:
		return matches[2], true
	}
}

//Allows @mentions, bare IDs, double quotation marked role names or role names only made up from letters
var roleRegex = regexp.MustCompile(`^\s*(?:<@&(\d+)>|(\d{15,21})|"([^"]*)"|(\w+))\s*$`)

//interpretRoleString finds the role referred to by roleStr, returning nil if there is no such role in the guild
func (b *Marshal) interpretRoleString(roleStr string, guildID string) (*discordgo.Role, error) {
	matches := roleRegex.FindStringSubmatch(roleStr)
	if matches == nil {
		return nil, fmt.Errorf("%v was not a valid role string format", roleStr)
	}
	guildRoles, err := b.gateway.GuildRoles(guildID)
	if err != nil {
		logrus.Warnf("Failed to fetch guild roles for guild id %v", guildID)
		return nil, err
	}
	var rid, roleName string
	switch {
	case matches[1] != "":
		rid = matches[1]
	case matches[2] != "":
		rid = matches[2]
	case matches[3] != "":
		roleName = matches[3]
	default:
		roleName = matches[4]
	}
	for _, guildRole := range guildRoles {
		if (rid != "" && guildRole.ID == rid) || (roleName != "" && guildRole.Name == roleName) {
			return guildRole, nil
		}
	}
	return nil, nil
}

//This is kind of greedy, but RE2 has no class for the emoji presentation characters
const unicodeEmojiRegex = `([^\sA-Za-z0-9<>@#:]{1,8})`

var emojiRegex = regexp.MustCompile(`^(?:<(a?):([^:]+):(\d+)>|` + unicodeEmojiRegex + `)$`)

//interpretEmoji returns the form of an emoji used by the api: the glyph itself, or name:id for guild emoji
func interpretEmoji(emojiStr string) (string, bool) {
	matches := emojiRegex.FindStringSubmatch(strings.TrimSpace(emojiStr))
	switch {
	case matches == nil:
		return "", false
	case matches[3] != "":
		//Discord guild emoji
		return fmt.Sprintf("%v:%v", matches[2], matches[3]), true
	default:
		//Unicode emoji
		return matches[4], true
	}
}

//displayEmoji converts an api emoji name back into something which renders in a message
func displayEmoji(apiName string) string {
	if i := strings.LastIndex(apiName, ":"); i > 0 {
		return fmt.Sprintf("<:%v>", apiName)
	}
	return apiName
}

//parseOption reads a key:value token, returning false if the key doesn't match
func parseOption(token, key string) (string, bool) {
	prefix := key + ":"
	if !strings.HasPrefix(strings.ToLower(token), prefix) {
		return "", false
	}
	return token[len(prefix):], true
}

//parsePage reads an optional 1-based page number
func parsePage(tokens []string) (int, error) {
	if len(tokens) == 0 {
		return 1, nil
	}
	page, err := strconv.Atoi(tokens[0])
	if err != nil || page < 1 {
		return 0, fmt.Errorf("`%v` is not a page number", tokens[0])
	}
	return page, nil
}

//pageBounds returns the slice bounds of a page of total entries, and the number of pages
func pageBounds(total, page int) (int, int, int, error) {
	pages := (total + listPageSize - 1) / listPageSize
	if pages < 1 {
		pages = 1
	}
	if page > pages {
		return 0, 0, pages, fmt.Errorf("page %d is out of range, there are %d pages", page, pages)
	}
	start := (page - 1) * listPageSize
	end := start + listPageSize
	if end > total {
		end = total
	}
	return start, end, pages, nil
}

//restAfter returns whatever follows the first n whitespace-separated words of s
func restAfter(s string, n int) string {
	s = strings.TrimSpace(s)
	for i := 0; i < n; i++ {
		idx := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' })
		if idx < 0 {
			return ""
		}
		s = strings.TrimSpace(s[idx:])
	}
	return s
}
