package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/marshal/guildmodels"
	"github.com/sirupsen/logrus"
)

const logSyntax string = "`$log #channel` or `$log <webhook url>`"

//handleLog sets where moderation notices for the guild are posted
//command format: $log <channel|webhook>
func (b *Marshal) handleLog(inv *invocation) CommandResponse {
	tokens := inv.tokens()
	if len(tokens) != 1 {
		return inv.syntaxError("Wrong number of arguments", logSyntax)
	}
	var desc string
	err := b.Store.Mutate(b.ctx, inv.guildID(), func(p *guildmodels.GuildPolicy) error {
		if chID, ok := interpretChannelString(tokens[0]); ok {
			desc = fmt.Sprintf("Moderation notices will now be posted in <#%v>.", chID)
			return p.SetLogChannel(chID)
		}
		desc = "Moderation notices will now be posted to the webhook."
		return p.SetLogWebhook(strings.Trim(tokens[0], "<>"))
	})
	if err != nil {
		return inv.failed(err, logSyntax)
	}
	return inv.success(desc, nil)
}

//handleStatus summarises the guild's moderation settings
func (b *Marshal) handleStatus(inv *invocation) CommandResponse {
	s := b.Store.Summary(inv.guildID())
	spam := "off"
	if s.SpamEnabled {
		spam = fmt.Sprintf("on (%v)", s.SpamAction)
	}
	lockdown := "off"
	if s.ExternalAppEnabled {
		lockdown = fmt.Sprintf("%v channels (scope %v)", s.LockedChannels, s.ExternalAppScope)
	}
	filter := "off"
	if s.FilterEnabled {
		filter = fmt.Sprintf("on (%v, strict: %v)", s.FilterAction, s.FilterStrict)
	}
	data := map[string]string{
		"Spam protection":         spam,
		"External app lockdown":   lockdown,
		"Content filter":          filter,
		"Filtered terms":          fmt.Sprint(s.FilteredTerms),
		"Exempt users":            fmt.Sprint(s.ExemptUsers),
		"Exempt roles":            fmt.Sprint(s.ExemptRoles),
		"Recent offenders":        fmt.Sprint(s.PendingOffenders),
		"Forced nicknames":        fmt.Sprint(s.ForcedNicknames),
		"Role blocks":             fmt.Sprint(s.RoleBlocks),
		"Auto-react rules":        fmt.Sprint(s.ReactionRules),
		"Removed message authors": fmt.Sprint(s.AutoremoveMessages),
		"Removed reactions":       fmt.Sprint(s.AutoremoveReactions),
		"Log configured":          fmt.Sprint(s.LogSinkSet),
	}
	return inv.info("Moderation status", "", data)
}

/**************************
/     Utility Functions
/**************************/

//adminPermissions lets a member configure the bot if they have any one of them
const adminPermissions int64 = discordgo.PermissionAdministrator | discordgo.PermissionManageServer

func (b *Marshal) isFromAdmin(msg *discordgo.MessageCreate) (bool, error) {
	//Works if from dev
	if b.isDev(msg.Author.ID) {
		return true, nil
	}
	//Works if from server owner
	ownerID, err := b.gateway.GuildOwnerID(msg.GuildID)
	if err != nil {
		logrus.Warnf("Failed to fetch guild owner from Discord API when checking if user %v is admin for server %v", msg.Author.ID, msg.GuildID)
		return false, err
	} else if ownerID == msg.Author.ID {
		return true, nil
	}
	//Works if user has a role granting manage server
	if msg.Member == nil {
		return false, nil
	}
	perms, err := b.gateway.MemberPermissions(msg.GuildID, msg.Member.Roles)
	if err != nil {
		logrus.Warnf("Failed to compute permissions when checking if user %v is admin for server %v", msg.Author.ID, msg.GuildID)
		return false, err
	}
	return perms&adminPermissions != 0, nil
}

func (b *Marshal) isDev(userID string) bool {
	return b.devUID != "" && userID == b.devUID
}
