package bot

import (
	"fmt"
	"strings"

	"github.com/callummance/marshal/guildmodels"
)

const filterSyntax string = "```" +
	`$filter on|off
$filter strict on|off
$filter action <mute|kick|timeout|ban>
$filter add <term>
$filter remove <term>
$filter list
$filter exempt|unexempt user @user
$filter exempt|unexempt role @role` +
	"```"

//handleFilter configures the forbidden term filter
func (b *Marshal) handleFilter(inv *invocation) CommandResponse {
	tokens := inv.tokens()
	if len(tokens) == 0 {
		return inv.syntaxError("Wrong number of arguments", filterSyntax)
	}
	switch sub := strings.ToLower(tokens[0]); sub {
	case "on", "off":
		if len(tokens) != 1 {
			return inv.syntaxError("Wrong number of arguments", filterSyntax)
		}
		return b.setFilterFlag(inv, "Content filter", sub == "on", func(f *guildmodels.ContentFilterRule) *bool { return &f.Enabled })
	case "strict":
		if len(tokens) != 2 || (!strings.EqualFold(tokens[1], "on") && !strings.EqualFold(tokens[1], "off")) {
			return inv.syntaxError("Expected `on` or `off`", filterSyntax)
		}
		return b.setFilterFlag(inv, "Strict matching", strings.EqualFold(tokens[1], "on"), func(f *guildmodels.ContentFilterRule) *bool { return &f.Strict })
	case "action":
		if len(tokens) != 2 {
			return inv.syntaxError("Wrong number of arguments", filterSyntax)
		}
		return b.setFilterAction(inv, tokens[1])
	case "add", "remove":
		term := restAfter(inv.args, 1)
		if term == "" {
			return inv.syntaxError("Missing term", filterSyntax)
		}
		if sub == "add" {
			return b.addFilterTerm(inv, term)
		}
		return b.removeFilterTerm(inv, term)
	case "list":
		return b.listFilterTerms(inv)
	case "exempt", "unexempt":
		if len(tokens) < 3 {
			return inv.syntaxError("Wrong number of arguments", filterSyntax)
		}
		return b.filterExemption(inv, sub == "exempt", strings.ToLower(tokens[1]), restAfter(inv.args, 2))
	default:
		return inv.syntaxError(fmt.Sprintf("Unknown filter setting `%v`", tokens[0]), filterSyntax)
	}
}

func (b *Marshal) setFilterFlag(inv *invocation, name string, on bool, field func(*guildmodels.ContentFilterRule) *bool) CommandResponse {
	var changed bool
	err := b.Store.Mutate(b.ctx, inv.guildID(), func(p *guildmodels.GuildPolicy) error {
		flag := field(&p.ContentFilter)
		changed = *flag != on
		*flag = on
		return nil
	})
	state := "off"
	if on {
		state = "on"
	}
	switch {
	case err != nil:
		return inv.failed(err, filterSyntax)
	case !changed:
		return inv.unchanged(fmt.Sprintf("%v is already %v.", name, state))
	default:
		return inv.success(fmt.Sprintf("%v is now %v.", name, state), nil)
	}
}

func (b *Marshal) setFilterAction(inv *invocation, keyword string) CommandResponse {
	action, err := guildmodels.ParseAction(keyword, guildmodels.FilterActions)
	if err != nil {
		return inv.failed(err, filterSyntax)
	}
	err = b.Store.Mutate(b.ctx, inv.guildID(), func(p *guildmodels.GuildPolicy) error {
		p.ContentFilter.Action = action
		return nil
	})
	if err != nil {
		return inv.failed(err, filterSyntax)
	}
	return inv.success(fmt.Sprintf("Repeat offenders will now be punished with **%v**.", action), nil)
}

func (b *Marshal) addFilterTerm(inv *invocation, term string) CommandResponse {
	var added bool
	err := b.Store.Mutate(b.ctx, inv.guildID(), func(p *guildmodels.GuildPolicy) (err error) {
		added, err = p.ContentFilter.AddTerm(term)
		return err
	})
	switch {
	case err != nil:
		return inv.failed(err, filterSyntax)
	case !added:
		return inv.unchanged(fmt.Sprintf("`%v` is already filtered.", term))
	default:
		return inv.success(fmt.Sprintf("Added `%v` to the filter.", term), nil)
	}
}

func (b *Marshal) removeFilterTerm(inv *invocation, term string) CommandResponse {
	var removed bool
	err := b.Store.Mutate(b.ctx, inv.guildID(), func(p *guildmodels.GuildPolicy) error {
		removed = p.ContentFilter.RemoveTerm(term)
		return nil
	})
	switch {
	case err != nil:
		return inv.failed(err, filterSyntax)
	case !removed:
		return inv.unchanged(fmt.Sprintf("`%v` was not filtered.", term))
	default:
		return inv.success(fmt.Sprintf("Removed `%v` from the filter.", term), nil)
	}
}

func (b *Marshal) listFilterTerms(inv *invocation) CommandResponse {
	f := b.Store.Get(inv.guildID()).ContentFilter
	terms := "none"
	if len(f.Terms) > 0 {
		quoted := make([]string, len(f.Terms))
		for i, t := range f.Terms {
			quoted[i] = fmt.Sprintf("`%v`", t)
		}
		terms = strings.Join(quoted, ", ")
	}
	data := map[string]string{
		"Enabled":      fmt.Sprint(f.Enabled),
		"Strict":       fmt.Sprint(f.Strict),
		"Action":       f.Action.String(),
		"Exempt users": fmt.Sprint(len(f.ExemptUsers)),
		"Exempt roles": fmt.Sprint(len(f.ExemptRoles)),
	}
	return inv.info("Filtered terms", terms, data)
}

func (b *Marshal) filterExemption(inv *invocation, exempt bool, kind, target string) CommandResponse {
	var id, mention string
	switch kind {
	case "user":
		uid, ok := interpretUserString(target)
		if !ok {
			return inv.syntaxError(fmt.Sprintf("`%v` is not a user", target), filterSyntax)
		}
		id, mention = uid, fmt.Sprintf("<@%v>", uid)
	case "role":
		role, err := b.interpretRoleString(target, inv.guildID())
		if err != nil {
			return inv.failed(err, filterSyntax)
		} else if role == nil {
			return inv.syntaxError(fmt.Sprintf("No role matching `%v` exists", target), filterSyntax)
		}
		id, mention = role.ID, fmt.Sprintf("<@&%v>", role.ID)
	default:
		return inv.syntaxError("Expected `user` or `role`", filterSyntax)
	}

	var changed bool
	err := b.Store.Mutate(b.ctx, inv.guildID(), func(p *guildmodels.GuildPolicy) error {
		set := &p.ContentFilter.ExemptUsers
		if kind == "role" {
			set = &p.ContentFilter.ExemptRoles
		}
		if exempt {
			changed = set.Add(id)
		} else {
			changed = set.Remove(id)
		}
		return nil
	})
	switch {
	case err != nil:
		return inv.failed(err, filterSyntax)
	case !changed && exempt:
		return inv.unchanged(fmt.Sprintf("%v is already exempt.", mention))
	case !changed:
		return inv.unchanged(fmt.Sprintf("%v was not exempt.", mention))
	case exempt:
		return inv.success(fmt.Sprintf("%v is now exempt from the filter.", mention), nil)
	default:
		return inv.success(fmt.Sprintf("%v is no longer exempt from the filter.", mention), nil)
	}
}
