package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/callummance/marshal/discord"
	"github.com/callummance/marshal/guildmodels"
	"github.com/callummance/marshal/moderation"
	"github.com/sirupsen/logrus"
)

const forcenickSyntax string = "`$forcenick @user <nickname>`, `$forcenick @user off` or `$forcenick list [page]`"

//handleForcenick pins a member's nickname, reapplying it whenever they change it
func (b *Marshal) handleForcenick(inv *invocation) CommandResponse {
	tokens := inv.tokens()
	if len(tokens) == 0 {
		return inv.syntaxError("Wrong number of arguments", forcenickSyntax)
	}
	if strings.EqualFold(tokens[0], "list") {
		return b.listForcedNicknames(inv, tokens[1:])
	}
	uid, ok := interpretUserString(tokens[0])
	if !ok {
		return inv.syntaxError(fmt.Sprintf("`%v` is not a user", tokens[0]), forcenickSyntax)
	}
	nick := restAfter(inv.args, 1)
	if nick == "" {
		return inv.syntaxError("Missing nickname", forcenickSyntax)
	}

	if strings.EqualFold(nick, "off") {
		var cleared bool
		err := b.Store.Mutate(b.ctx, inv.guildID(), func(p *guildmodels.GuildPolicy) error {
			cleared = p.ClearForcedNickname(uid)
			return nil
		})
		switch {
		case err != nil:
			return inv.failed(err, forcenickSyntax)
		case !cleared:
			return inv.unchanged(fmt.Sprintf("<@%v> did not have a forced nickname.", uid))
		default:
			return inv.success(fmt.Sprintf("<@%v> may change their nickname again.", uid), nil)
		}
	}

	err := b.Store.Mutate(b.ctx, inv.guildID(), func(p *guildmodels.GuildPolicy) error {
		return p.ForceNickname(uid, nick)
	})
	if err != nil {
		return inv.failed(err, forcenickSyntax)
	}
	if err := b.platform.EditNickname(b.ctx, inv.guildID(), uid, nick); err != nil {
		logrus.Warnf("Failed to apply forced nickname to user %v due to error %v", uid, err)
		return inv.partial(
			fmt.Sprintf("Saved the nickname for <@%v> but could not apply it yet: %v", uid, err),
			map[string]string{"Nickname": nick},
		)
	}
	return inv.success(fmt.Sprintf("<@%v> will now always be called **%v**.", uid, nick), nil)
}

func (b *Marshal) listForcedNicknames(inv *invocation, pageArgs []string) CommandResponse {
	page, err := parsePage(pageArgs)
	if err != nil {
		return inv.syntaxError(err.Error(), forcenickSyntax)
	}
	entries := b.Store.Get(inv.guildID()).ForcedNicknameEntries()
	start, end, pages, err := pageBounds(len(entries), page)
	if err != nil {
		return inv.syntaxError(err.Error(), forcenickSyntax)
	}
	if len(entries) == 0 {
		return inv.info("Forced nicknames", "No nicknames are being forced.", nil)
	}
	var lines []string
	for _, e := range entries[start:end] {
		lines = append(lines, fmt.Sprintf("<@%v> → %v", e[0], e[1]))
	}
	return inv.info(fmt.Sprintf("Forced nicknames (page %d of %d)", page, pages), strings.Join(lines, "\n"), nil)
}

const roleSyntax string = "`$role @role block from:@user`, `$role @role unblock from:@user` or `$role block list [page]`"

//handleRole stops members from holding a role, taking it away whenever it is granted
func (b *Marshal) handleRole(inv *invocation) CommandResponse {
	tokens := inv.tokens()
	if len(tokens) >= 2 && strings.EqualFold(tokens[0], "block") && strings.EqualFold(tokens[1], "list") {
		return b.listRoleBlocks(inv, tokens[2:])
	}
	if len(tokens) < 3 {
		return inv.syntaxError("Wrong number of arguments", roleSyntax)
	}
	verb := strings.ToLower(tokens[len(tokens)-2])
	if verb != "block" && verb != "unblock" {
		return inv.syntaxError(fmt.Sprintf("Expected `block` or `unblock`, got `%v`", tokens[len(tokens)-2]), roleSyntax)
	}
	userStr, ok := parseOption(tokens[len(tokens)-1], "from")
	if !ok {
		return inv.syntaxError("Missing `from:` option", roleSyntax)
	}
	uid, ok := interpretUserString(userStr)
	if !ok {
		return inv.syntaxError(fmt.Sprintf("`%v` is not a user", userStr), roleSyntax)
	}
	roleStr := strings.Join(tokens[:len(tokens)-2], " ")
	role, err := b.interpretRoleString(roleStr, inv.guildID())
	if err != nil {
		return inv.failed(err, roleSyntax)
	} else if role == nil {
		return inv.syntaxError(fmt.Sprintf("No role matching `%v` exists", roleStr), roleSyntax)
	}

	var changed bool
	err = b.Store.Mutate(b.ctx, inv.guildID(), func(p *guildmodels.GuildPolicy) error {
		if verb == "block" {
			changed = p.BlockRole(role.ID, uid)
		} else {
			changed = p.UnblockRole(role.ID, uid)
		}
		return nil
	})
	switch {
	case err != nil:
		return inv.failed(err, roleSyntax)
	case !changed && verb == "block":
		return inv.unchanged(fmt.Sprintf("<@%v> is already blocked from <@&%v>.", uid, role.ID))
	case !changed:
		return inv.unchanged(fmt.Sprintf("<@%v> was not blocked from <@&%v>.", uid, role.ID))
	case verb == "unblock":
		return inv.success(fmt.Sprintf("<@%v> may hold <@&%v> again.", uid, role.ID), nil)
	}

	//Take the role away now in case they already have it
	err = b.platform.RemoveRole(b.ctx, inv.guildID(), uid, role.ID)
	if err != nil && !errors.Is(err, moderation.ErrNotFound) {
		logrus.Warnf("Failed to remove newly blocked role %v from user %v due to error %v", role.ID, uid, err)
		return inv.partial(fmt.Sprintf("<@%v> is blocked from <@&%v>, but I could not remove it from them: %v", uid, role.ID, err), nil)
	}
	return inv.success(fmt.Sprintf("<@%v> is now blocked from holding <@&%v>.", uid, role.ID), nil)
}

func (b *Marshal) listRoleBlocks(inv *invocation, pageArgs []string) CommandResponse {
	page, err := parsePage(pageArgs)
	if err != nil {
		return inv.syntaxError(err.Error(), roleSyntax)
	}
	entries := b.Store.Get(inv.guildID()).RoleBlockEntries()
	start, end, pages, err := pageBounds(len(entries), page)
	if err != nil {
		return inv.syntaxError(err.Error(), roleSyntax)
	}
	if len(entries) == 0 {
		return inv.info("Role blocks", "Nobody is blocked from any role.", nil)
	}
	var lines []string
	for _, e := range entries[start:end] {
		lines = append(lines, fmt.Sprintf("<@&%v> ✗ <@%v>", e[0], e[1]))
	}
	return inv.info(fmt.Sprintf("Role blocks (page %d of %d)", page, pages), strings.Join(lines, "\n"), nil)
}

const muteSyntax string = "`$mute @user [reason]`"

//handleMute gives a member the muted role, creating it if the guild doesn't have one yet
func (b *Marshal) handleMute(inv *invocation) CommandResponse {
	tokens := inv.tokens()
	if len(tokens) == 0 {
		return inv.syntaxError("Wrong number of arguments", muteSyntax)
	}
	uid, ok := interpretUserString(tokens[0])
	if !ok {
		return inv.syntaxError(fmt.Sprintf("`%v` is not a user", tokens[0]), muteSyntax)
	}
	if err := b.Engine.Enforcer().Mute(b.ctx, inv.guildID(), uid); err != nil {
		return inv.failed(err, muteSyntax)
	}
	desc := fmt.Sprintf("Muted <@%v>.", uid)
	if reason := restAfter(inv.args, 1); reason != "" {
		desc = fmt.Sprintf("Muted <@%v>: %v", uid, reason)
	}
	return inv.success(desc, nil)
}

const unmuteSyntax string = "`$unmute @user`"

//handleUnmute takes the muted role away from a member
func (b *Marshal) handleUnmute(inv *invocation) CommandResponse {
	tokens := inv.tokens()
	if len(tokens) != 1 {
		return inv.syntaxError("Wrong number of arguments", unmuteSyntax)
	}
	uid, ok := interpretUserString(tokens[0])
	if !ok {
		return inv.syntaxError(fmt.Sprintf("`%v` is not a user", tokens[0]), unmuteSyntax)
	}
	err := b.Engine.Enforcer().Unmute(b.ctx, inv.guildID(), uid)
	switch {
	case errors.Is(err, moderation.ErrNotFound):
		return inv.unchanged(fmt.Sprintf("This server has no %v role, so nobody is muted.", moderation.MutedRoleName))
	case err != nil:
		return inv.failed(err, unmuteSyntax)
	default:
		return inv.success(fmt.Sprintf("Unmuted <@%v>.", uid), nil)
	}
}

//handleReconcile checks every member of the guild against the forced nicknames and role blocks
func (b *Marshal) handleReconcile(inv *invocation) CommandResponse {
	policy := b.Store.Get(inv.guildID())
	if len(policy.ForcedNicknames) == 0 && len(policy.RoleBlocks) == 0 {
		return inv.unchanged("There are no forced nicknames or role blocks to check.")
	}
	var checked, nicknames, roles int
	var fetchErr error
	for res := range b.gateway.GuildMembersIter(b.ctx, inv.guildID()) {
		if res.Error != nil {
			fetchErr = res.Error
			break
		}
		checked++
		fix := b.Engine.Reconcile(b.ctx, discord.MemberOf(inv.guildID(), res.Member))
		if fix.NicknameReset {
			nicknames++
		}
		roles += len(fix.RolesRemoved)
	}
	data := map[string]string{
		"Members checked": fmt.Sprint(checked),
		"Nicknames reset": fmt.Sprint(nicknames),
		"Roles removed":   fmt.Sprint(roles),
	}
	if fetchErr != nil {
		if checked == 0 {
			return inv.failed(fetchErr, "")
		}
		return inv.partial(fmt.Sprintf("Stopped after %d members as the member list could not be fetched: %v", checked, fetchErr), data)
	}
	if nicknames == 0 && roles == 0 {
		return inv.info("Reconciled", fmt.Sprintf("All %d members already conform.", checked), data)
	}
	return inv.success(fmt.Sprintf("Corrected %d nicknames and removed %d blocked roles.", nicknames, roles), data)
}
