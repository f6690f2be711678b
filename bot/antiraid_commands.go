package bot

import (
	"fmt"
	"strings"

	"github.com/callummance/marshal/guildmodels"
	"github.com/callummance/marshal/moderation"
)

const antiraidSyntax string = "```" +
	`$antiraid spam on do:<mute|kick|ban>
$antiraid spam off
$antiraid external_app on do:<mute|kick|ban> channels:<channel|all>
$antiraid external_app off` +
	"```"

//handleAntiraid configures the spam rule and the external app lockdown
//command format: $antiraid <spam|external_app> <on|off> [options]
func (b *Marshal) handleAntiraid(inv *invocation) CommandResponse {
	tokens := inv.tokens()
	if len(tokens) < 2 {
		return inv.syntaxError("Wrong number of arguments", antiraidSyntax)
	}
	rule, toggle, opts := strings.ToLower(tokens[0]), strings.ToLower(tokens[1]), tokens[2:]
	switch {
	case rule == "spam" && toggle == "on":
		return b.spamOn(inv, opts)
	case rule == "spam" && toggle == "off" && len(opts) == 0:
		return b.spamOff(inv)
	case rule == "external_app" && toggle == "on":
		return b.externalAppOn(inv, opts)
	case rule == "external_app" && toggle == "off" && len(opts) == 0:
		return b.externalAppOff(inv)
	default:
		return inv.syntaxError(fmt.Sprintf("Unknown antiraid setting `%v %v`", tokens[0], tokens[1]), antiraidSyntax)
	}
}

//parseDo reads the do:<action> option
func parseDo(opts []string) (guildmodels.Action, bool, error) {
	for _, opt := range opts {
		if kw, ok := parseOption(opt, "do"); ok {
			action, err := guildmodels.ParseAction(kw, guildmodels.AntiraidActions)
			return action, true, err
		}
	}
	return guildmodels.ActionNone, false, nil
}

func (b *Marshal) spamOn(inv *invocation, opts []string) CommandResponse {
	if len(opts) != 1 {
		return inv.syntaxError("Expected exactly one `do:` option", antiraidSyntax)
	}
	action, found, err := parseDo(opts)
	if !found {
		return inv.syntaxError("Missing `do:` option", antiraidSyntax)
	} else if err != nil {
		return inv.failed(err, antiraidSyntax)
	}
	err = b.Store.Mutate(b.ctx, inv.guildID(), func(p *guildmodels.GuildPolicy) error {
		p.Spam = guildmodels.SpamRule{Enabled: true, Action: action}
		return nil
	})
	if err != nil {
		return inv.failed(err, antiraidSyntax)
	}
	return inv.success(fmt.Sprintf("Spam protection is on. Members sending %d messages within %v will be punished with **%v**.",
		moderation.SpamThreshold, moderation.SpamHorizon, action), nil)
}

func (b *Marshal) spamOff(inv *invocation) CommandResponse {
	if !b.Store.Get(inv.guildID()).Spam.Enabled {
		return inv.unchanged("Spam protection is already off.")
	}
	err := b.Store.Mutate(b.ctx, inv.guildID(), func(p *guildmodels.GuildPolicy) error {
		p.Spam = guildmodels.SpamRule{}
		return nil
	})
	if err != nil {
		return inv.failed(err, antiraidSyntax)
	}
	return inv.success("Spam protection is off.", nil)
}

func (b *Marshal) externalAppOn(inv *invocation, opts []string) CommandResponse {
	if len(opts) != 2 {
		return inv.syntaxError("Expected `do:` and `channels:` options", antiraidSyntax)
	}
	action, found, err := parseDo(opts)
	if !found {
		return inv.syntaxError("Missing `do:` option", antiraidSyntax)
	} else if err != nil {
		return inv.failed(err, antiraidSyntax)
	}
	var scope string
	for _, opt := range opts {
		if v, ok := parseOption(opt, "channels"); ok {
			scope = v
		}
	}
	switch {
	case scope == "":
		return inv.syntaxError("Missing `channels:` option", antiraidSyntax)
	case strings.EqualFold(scope, guildmodels.ScopeAllChannels):
		scope = guildmodels.ScopeAllChannels
		prompt := "This will stop everyone using external apps in **every** channel. React ✅ to confirm or ❌ to cancel."
		if resp := b.confirm(inv, prompt); resp != nil {
			return resp
		}
	default:
		chID, ok := interpretChannelString(scope)
		if !ok {
			return inv.syntaxError(fmt.Sprintf("`%v` is not a channel", scope), antiraidSyntax)
		}
		scope = chID
	}

	res, err := b.Engine.Lockdown().Activate(b.ctx, inv.guildID(), action, scope)
	if err != nil {
		return inv.failed(err, antiraidSyntax)
	}
	data := map[string]string{
		"Action":          action.String(),
		"Locked channels": fmt.Sprint(len(res.Touched)),
	}
	if len(res.Skipped) > 0 {
		data["Skipped channels"] = mentionChannels(res.Skipped)
		return inv.partial(fmt.Sprintf("Locked %d channels, but could not change %d of them.", len(res.Touched), len(res.Skipped)), data)
	}
	return inv.success(fmt.Sprintf("External apps are locked down in %d channels.", len(res.Touched)), data)
}

func (b *Marshal) externalAppOff(inv *invocation) CommandResponse {
	if !b.Store.Get(inv.guildID()).ExternalApp.Enabled {
		return inv.unchanged("The external app lockdown is not active.")
	}
	res, err := b.Engine.Lockdown().Deactivate(b.ctx, inv.guildID())
	if err != nil {
		return inv.failed(err, antiraidSyntax)
	}
	if len(res.Skipped) > 0 {
		data := map[string]string{"Skipped channels": mentionChannels(res.Skipped)}
		return inv.partial(fmt.Sprintf("Lifted the lockdown in %d channels; %d could not be restored.", len(res.Touched), len(res.Skipped)), data)
	}
	return inv.success(fmt.Sprintf("Lifted the external app lockdown in %d channels.", len(res.Touched)), nil)
}

func mentionChannels(ids []string) string {
	mentions := make([]string, len(ids))
	for i, id := range ids {
		mentions[i] = fmt.Sprintf("<#%v>", id)
	}
	return strings.Join(mentions, " ")
}
