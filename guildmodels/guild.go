package guildmodels

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

//CurrentPolicyVersion is the schema version written with every policy record
const CurrentPolicyVersion = 1

//GuildPolicy contains the moderation configuration for a discord guild managed by this bot
type GuildPolicy struct {
	GuildID string `gorethink:"id" json:"guild_id" yaml:"guild_id"`
	Version int    `gorethink:"version" json:"version" yaml:"version"`
	//user ID -> reaction glyph
	ReactionRules map[string]string `gorethink:"reaction_rules" json:"reaction_rules" yaml:"reaction_rules,omitempty"`
	Spam          SpamRule          `gorethink:"spam" json:"spam" yaml:"spam"`
	ExternalApp   ExternalAppRule   `gorethink:"external_app" json:"external_app" yaml:"external_app"`
	//user ID -> nickname
	ForcedNicknames map[string]string `gorethink:"forced_nicknames" json:"forced_nicknames" yaml:"forced_nicknames,omitempty"`
	//role ID -> users who may not hold it
	RoleBlocks          map[string]IDSet  `gorethink:"role_blocks" json:"role_blocks" yaml:"role_blocks,omitempty"`
	AutoremoveMessages  IDSet             `gorethink:"autoremove_messages" json:"autoremove_messages" yaml:"autoremove_messages,omitempty"`
	AutoremoveReactions []ReactionBlock   `gorethink:"autoremove_reactions" json:"autoremove_reactions" yaml:"autoremove_reactions,omitempty"`
	LogSink             LogSink           `gorethink:"log_sink" json:"log_sink" yaml:"log_sink"`
	ContentFilter       ContentFilterRule `gorethink:"content_filter" json:"content_filter" yaml:"content_filter"`
}

//ReactionBlock is a (user, glyph) pair whose reactions are stripped as soon as they are added
type ReactionBlock struct {
	UserID string `gorethink:"user_id" json:"user_id" yaml:"user_id"`
	Emoji  string `gorethink:"emoji" json:"emoji" yaml:"emoji"`
}

//LogSink is where moderation notices for a guild are posted. At most one of the fields is set.
type LogSink struct {
	ChannelID  string `gorethink:"channel_id,omitempty" json:"channel_id,omitempty" yaml:"channel_id,omitempty"`
	WebhookURL string `gorethink:"webhook_url,omitempty" json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
}

//IsSet returns true if either a channel or a webhook has been configured
func (s LogSink) IsSet() bool {
	return s.ChannelID != "" || s.WebhookURL != ""
}

//DefaultPolicy returns an otherwise-empty policy with a given guild ID
func DefaultPolicy(gid string) *GuildPolicy {
	p := &GuildPolicy{
		GuildID: gid,
		Version: CurrentPolicyVersion,
	}
	p.Normalize()
	return p
}

//Normalize fills in missing sub-structures and repairs records which break the policy invariants.
//It returns a human-readable note for every repair made so that the caller can log them.
func (p *GuildPolicy) Normalize() []string {
	var notes []string
	if p.Version != CurrentPolicyVersion {
		if p.Version != 0 {
			notes = append(notes, fmt.Sprintf("migrated policy from version %d to %d", p.Version, CurrentPolicyVersion))
		}
		p.Version = CurrentPolicyVersion
	}
	if p.ReactionRules == nil {
		p.ReactionRules = make(map[string]string)
	}
	if p.ForcedNicknames == nil {
		p.ForcedNicknames = make(map[string]string)
	}
	if p.RoleBlocks == nil {
		p.RoleBlocks = make(map[string]IDSet)
	}
	for roleID, users := range p.RoleBlocks {
		if len(users) == 0 {
			delete(p.RoleBlocks, roleID)
		}
	}
	if p.Spam.Enabled && !containsAction(AntiraidActions, p.Spam.Action) {
		notes = append(notes, fmt.Sprintf("disabled spam rule with unknown action %q", p.Spam.Action))
		p.Spam = SpamRule{}
	}
	notes = append(notes, p.ExternalApp.normalize()...)
	notes = append(notes, p.ContentFilter.normalize()...)
	if p.LogSink.ChannelID != "" && p.LogSink.WebhookURL != "" {
		notes = append(notes, "log sink had both a channel and a webhook; keeping the webhook")
		p.LogSink.ChannelID = ""
	}
	return notes
}

//Clone returns a deep copy of the policy
func (p *GuildPolicy) Clone() *GuildPolicy {
	c := *p
	c.ReactionRules = copyStringMap(p.ReactionRules)
	c.ForcedNicknames = copyStringMap(p.ForcedNicknames)
	c.RoleBlocks = make(map[string]IDSet, len(p.RoleBlocks))
	for k, v := range p.RoleBlocks {
		c.RoleBlocks[k] = v.Clone()
	}
	c.AutoremoveMessages = p.AutoremoveMessages.Clone()
	c.AutoremoveReactions = append([]ReactionBlock(nil), p.AutoremoveReactions...)
	c.ExternalApp = p.ExternalApp.clone()
	c.ContentFilter = p.ContentFilter.clone()
	return &c
}

/**************************
/     Reaction rules
/**************************/

//ToggleReactionRule sets the auto-react glyph for a user, or removes it if one is already set.
//It returns true if the rule is now active.
func (p *GuildPolicy) ToggleReactionRule(userID, emoji string) bool {
	if _, ok := p.ReactionRules[userID]; ok {
		delete(p.ReactionRules, userID)
		return false
	}
	p.ReactionRules[userID] = emoji
	return true
}

//ClearReactionRules removes every auto-react rule, returning how many there were
func (p *GuildPolicy) ClearReactionRules() int {
	n := len(p.ReactionRules)
	p.ReactionRules = make(map[string]string)
	return n
}

/**************************
/     Forced nicknames
/**************************/

//ForceNickname records a nickname which should be re-applied whenever the member changes it
func (p *GuildPolicy) ForceNickname(userID, nick string) error {
	if err := ValidateNickname(nick); err != nil {
		return err
	}
	p.ForcedNicknames[userID] = nick
	return nil
}

//ClearForcedNickname stops forcing a nickname, returning false if none was set
func (p *GuildPolicy) ClearForcedNickname(userID string) bool {
	if _, ok := p.ForcedNicknames[userID]; !ok {
		return false
	}
	delete(p.ForcedNicknames, userID)
	return true
}

//ForcedNicknameEntries returns forced nicknames sorted by user ID so that listings page consistently
func (p *GuildPolicy) ForcedNicknameEntries() [][2]string {
	res := make([][2]string, 0, len(p.ForcedNicknames))
	for uid, nick := range p.ForcedNicknames {
		res = append(res, [2]string{uid, nick})
	}
	sort.Slice(res, func(i, j int) bool { return res[i][0] < res[j][0] })
	return res
}

/**************************
/     Role blocks
/**************************/

//BlockRole forbids a user from holding a role. Returns false if the block already existed.
func (p *GuildPolicy) BlockRole(roleID, userID string) bool {
	users := p.RoleBlocks[roleID]
	if !users.Add(userID) {
		return false
	}
	p.RoleBlocks[roleID] = users
	return true
}

//UnblockRole lifts a role block, dropping the role entry once nobody is blocked from it
func (p *GuildPolicy) UnblockRole(roleID, userID string) bool {
	users, ok := p.RoleBlocks[roleID]
	if !ok || !users.Remove(userID) {
		return false
	}
	if len(users) == 0 {
		delete(p.RoleBlocks, roleID)
	} else {
		p.RoleBlocks[roleID] = users
	}
	return true
}

//BlockedRoles returns the subset of held roles which the user is not allowed to hold
func (p *GuildPolicy) BlockedRoles(userID string, held []string) []string {
	var res []string
	for _, roleID := range held {
		if p.RoleBlocks[roleID].Has(userID) {
			res = append(res, roleID)
		}
	}
	return res
}

//RoleBlockEntries returns every (role, user) block pair sorted by role then user
func (p *GuildPolicy) RoleBlockEntries() [][2]string {
	var res [][2]string
	for roleID, users := range p.RoleBlocks {
		for _, uid := range users {
			res = append(res, [2]string{roleID, uid})
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i][0] != res[j][0] {
			return res[i][0] < res[j][0]
		}
		return res[i][1] < res[j][1]
	})
	return res
}

/**************************
/     Autoremove
/**************************/

//AddAutoremoveReaction starts stripping a glyph from a user's reactions
func (p *GuildPolicy) AddAutoremoveReaction(userID, emoji string) bool {
	if p.ShouldRemoveReaction(userID, emoji) {
		return false
	}
	p.AutoremoveReactions = append(p.AutoremoveReactions, ReactionBlock{UserID: userID, Emoji: emoji})
	return true
}

//RemoveAutoremoveReaction stops stripping a single glyph
func (p *GuildPolicy) RemoveAutoremoveReaction(userID, emoji string) bool {
	for i, rb := range p.AutoremoveReactions {
		if rb.UserID == userID && rb.Emoji == emoji {
			p.AutoremoveReactions = append(p.AutoremoveReactions[:i], p.AutoremoveReactions[i+1:]...)
			return true
		}
	}
	return false
}

//RemoveAllAutoremoveReactions stops stripping every glyph for a user, returning how many rules were removed
func (p *GuildPolicy) RemoveAllAutoremoveReactions(userID string) int {
	kept := p.AutoremoveReactions[:0]
	removed := 0
	for _, rb := range p.AutoremoveReactions {
		if rb.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, rb)
	}
	p.AutoremoveReactions = kept
	return removed
}

//ShouldRemoveReaction returns true if the given reaction by the given user should be stripped
func (p *GuildPolicy) ShouldRemoveReaction(userID, emoji string) bool {
	for _, rb := range p.AutoremoveReactions {
		if rb.UserID == userID && rb.Emoji == emoji {
			return true
		}
	}
	return false
}

/**************************
/     Log sink
/**************************/

//SetLogChannel directs notices to a channel, replacing any webhook
func (p *GuildPolicy) SetLogChannel(channelID string) error {
	if err := ValidateID("channel", channelID); err != nil {
		return err
	}
	p.LogSink = LogSink{ChannelID: channelID}
	return nil
}

//SetLogWebhook directs notices to a webhook, replacing any channel
func (p *GuildPolicy) SetLogWebhook(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return &ValidationError{Field: "webhook", Value: rawURL, Reason: "not an http(s) url"}
	}
	if !strings.Contains(u.Path, "/webhooks/") {
		return &ValidationError{Field: "webhook", Value: rawURL, Reason: "not a webhook url"}
	}
	p.LogSink = LogSink{WebhookURL: rawURL}
	return nil
}

func copyStringMap(m map[string]string) map[string]string {
	res := make(map[string]string, len(m))
	for k, v := range m {
		res[k] = v
	}
	return res
}

func containsAction(actions []Action, a Action) bool {
	for _, candidate := range actions {
		if candidate == a {
			return true
		}
	}
	return false
}
