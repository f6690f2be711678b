package guildmodels

//PolicySummary holds read-only counts used for status displays
type PolicySummary struct {
	GuildID             string
	SpamEnabled         bool
	SpamAction          Action
	ExternalAppEnabled  bool
	ExternalAppScope    string
	LockedChannels      int
	FilterEnabled       bool
	FilterStrict        bool
	FilterAction        Action
	FilteredTerms       int
	ExemptUsers         int
	ExemptRoles         int
	PendingOffenders    int
	ForcedNicknames     int
	RoleBlocks          int
	ReactionRules       int
	AutoremoveMessages  int
	AutoremoveReactions int
	LogSinkSet          bool
}

//Summarize counts the contents of a policy
func (p *GuildPolicy) Summarize() PolicySummary {
	blocks := 0
	for _, users := range p.RoleBlocks {
		blocks += len(users)
	}
	return PolicySummary{
		GuildID:             p.GuildID,
		SpamEnabled:         p.Spam.Enabled,
		SpamAction:          p.Spam.Action,
		ExternalAppEnabled:  p.ExternalApp.Enabled,
		ExternalAppScope:    p.ExternalApp.Scope,
		LockedChannels:      len(p.ExternalApp.Channels),
		FilterEnabled:       p.ContentFilter.Enabled,
		FilterStrict:        p.ContentFilter.Strict,
		FilterAction:        p.ContentFilter.Action,
		FilteredTerms:       len(p.ContentFilter.Terms),
		ExemptUsers:         len(p.ContentFilter.ExemptUsers),
		ExemptRoles:         len(p.ContentFilter.ExemptRoles),
		PendingOffenders:    len(p.ContentFilter.OffenseLedger),
		ForcedNicknames:     len(p.ForcedNicknames),
		RoleBlocks:          blocks,
		ReactionRules:       len(p.ReactionRules),
		AutoremoveMessages:  len(p.AutoremoveMessages),
		AutoremoveReactions: len(p.AutoremoveReactions),
		LogSinkSet:          p.LogSink.IsSet(),
	}
}
