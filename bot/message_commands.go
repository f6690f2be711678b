package bot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/callummance/marshal/guildmodels"
)

const autoreactSyntax string = "`$autoreact <emoji> @user`, `$autoreact list` or `$autoreact remove all`"

//handleAutoreact toggles, lists or clears the reactions added to members' messages
func (b *Marshal) handleAutoreact(inv *invocation) CommandResponse {
	tokens := inv.tokens()
	gid := inv.guildID()
	switch {
	case len(tokens) == 1 && strings.EqualFold(tokens[0], "list"):
		rules := b.Store.Get(gid).ReactionRules
		if len(rules) == 0 {
			return inv.unchanged("No auto-react rules are set.")
		}
		uids := make([]string, 0, len(rules))
		for uid := range rules {
			uids = append(uids, uid)
		}
		sort.Strings(uids)
		var lines []string
		for _, uid := range uids {
			lines = append(lines, fmt.Sprintf("<@%v> → %v", uid, displayEmoji(rules[uid])))
		}
		return inv.info("Auto-react rules", strings.Join(lines, "\n"), nil)

	case len(tokens) == 2 && strings.EqualFold(tokens[0], "remove") && strings.EqualFold(tokens[1], "all"):
		if len(b.Store.Get(gid).ReactionRules) == 0 {
			return inv.unchanged("No auto-react rules are set.")
		}
		if resp := b.confirm(inv, "Remove **every** auto-react rule in this server? React ✅ to confirm or ❌ to cancel."); resp != nil {
			return resp
		}
		var removed int
		err := b.Store.Mutate(b.ctx, gid, func(p *guildmodels.GuildPolicy) error {
			removed = p.ClearReactionRules()
			return nil
		})
		if err != nil {
			return inv.failed(err, autoreactSyntax)
		}
		return inv.success(fmt.Sprintf("Removed %d auto-react rules.", removed), nil)

	case len(tokens) == 2:
		emoji, ok := interpretEmoji(tokens[0])
		if !ok {
			return inv.syntaxError(fmt.Sprintf("`%v` is not an emoji", tokens[0]), autoreactSyntax)
		}
		uid, ok := interpretUserString(tokens[1])
		if !ok {
			return inv.syntaxError(fmt.Sprintf("`%v` is not a user", tokens[1]), autoreactSyntax)
		}
		var active bool
		err := b.Store.Mutate(b.ctx, gid, func(p *guildmodels.GuildPolicy) error {
			active = p.ToggleReactionRule(uid, emoji)
			return nil
		})
		if err != nil {
			return inv.failed(err, autoreactSyntax)
		}
		if active {
			return inv.success(fmt.Sprintf("Now reacting to messages from <@%v> with %v.", uid, displayEmoji(emoji)), nil)
		}
		return inv.success(fmt.Sprintf("Stopped reacting to messages from <@%v>.", uid), nil)

	default:
		return inv.syntaxError("Wrong number of arguments", autoreactSyntax)
	}
}

const autoremoveSyntax string = "`$autoremove messages @user [off]`, `$autoremove reactions <emoji> @user [off]` or `$autoremove reactions @user off`"

//handleAutoremove starts or stops deleting a member's messages or reactions as soon as they are posted
func (b *Marshal) handleAutoremove(inv *invocation) CommandResponse {
	tokens := inv.tokens()
	if len(tokens) < 2 {
		return inv.syntaxError("Wrong number of arguments", autoremoveSyntax)
	}
	off := strings.EqualFold(tokens[len(tokens)-1], "off")
	if off {
		tokens = tokens[:len(tokens)-1]
	}
	switch strings.ToLower(tokens[0]) {
	case "messages":
		if len(tokens) != 2 {
			return inv.syntaxError("Wrong number of arguments", autoremoveSyntax)
		}
		uid, ok := interpretUserString(tokens[1])
		if !ok {
			return inv.syntaxError(fmt.Sprintf("`%v` is not a user", tokens[1]), autoremoveSyntax)
		}
		return b.autoremoveMessages(inv, uid, off)
	case "reactions":
		var emoji, userStr string
		switch len(tokens) {
		case 2:
			userStr = tokens[1]
		case 3:
			userStr = tokens[2]
			var ok bool
			if emoji, ok = interpretEmoji(tokens[1]); !ok {
				return inv.syntaxError(fmt.Sprintf("`%v` is not an emoji", tokens[1]), autoremoveSyntax)
			}
		default:
			return inv.syntaxError("Wrong number of arguments", autoremoveSyntax)
		}
		uid, ok := interpretUserString(userStr)
		if !ok {
			return inv.syntaxError(fmt.Sprintf("`%v` is not a user", userStr), autoremoveSyntax)
		}
		if emoji == "" && !off {
			return inv.syntaxError("Please specify an emoji, or use `off` to stop removing all of them", autoremoveSyntax)
		}
		return b.autoremoveReactions(inv, uid, emoji, off)
	default:
		return inv.syntaxError(fmt.Sprintf("Unknown mode `%v`", tokens[0]), autoremoveSyntax)
	}
}

func (b *Marshal) autoremoveMessages(inv *invocation, uid string, off bool) CommandResponse {
	var changed bool
	err := b.Store.Mutate(b.ctx, inv.guildID(), func(p *guildmodels.GuildPolicy) error {
		if off {
			changed = p.AutoremoveMessages.Remove(uid)
		} else {
			changed = p.AutoremoveMessages.Add(uid)
		}
		return nil
	})
	switch {
	case err != nil:
		return inv.failed(err, autoremoveSyntax)
	case !changed && off:
		return inv.unchanged(fmt.Sprintf("Messages from <@%v> were not being removed.", uid))
	case !changed:
		return inv.unchanged(fmt.Sprintf("Messages from <@%v> are already being removed.", uid))
	case off:
		return inv.success(fmt.Sprintf("Stopped removing messages from <@%v>.", uid), nil)
	default:
		return inv.success(fmt.Sprintf("Now removing every message from <@%v>.", uid), nil)
	}
}

func (b *Marshal) autoremoveReactions(inv *invocation, uid, emoji string, off bool) CommandResponse {
	var removed int
	var added bool
	err := b.Store.Mutate(b.ctx, inv.guildID(), func(p *guildmodels.GuildPolicy) error {
		switch {
		case off && emoji == "":
			removed = p.RemoveAllAutoremoveReactions(uid)
		case off:
			if p.RemoveAutoremoveReaction(uid, emoji) {
				removed = 1
			}
		default:
			added = p.AddAutoremoveReaction(uid, emoji)
		}
		return nil
	})
	if err != nil {
		return inv.failed(err, autoremoveSyntax)
	}
	switch {
	case off && removed == 0:
		return inv.unchanged(fmt.Sprintf("No reactions from <@%v> were being removed.", uid))
	case off && emoji == "":
		return inv.success(fmt.Sprintf("Stopped removing all %d reaction rules for <@%v>.", removed, uid), nil)
	case off:
		return inv.success(fmt.Sprintf("Stopped removing %v reactions from <@%v>.", displayEmoji(emoji), uid), nil)
	case !added:
		return inv.unchanged(fmt.Sprintf("%v reactions from <@%v> are already being removed.", displayEmoji(emoji), uid))
	default:
		return inv.success(fmt.Sprintf("Now removing %v reactions from <@%v>.", displayEmoji(emoji), uid), nil)
	}
}
