package moderation

import (
	"context"
	"errors"

	"github.com/callummance/marshal/guildmodels"
	"github.com/sirupsen/logrus"
)

//LockdownManager denies the everyone role the use of external applications in a set of channels, remembering
//each channel's prior state so that it can be put back exactly.
type LockdownManager struct {
	policies Policies
	platform Platform
}

//LockdownResult lists the channels an activation or deactivation changed, and those it had to skip
type LockdownResult struct {
	Touched []string
	Skipped []string
}

//NewLockdownManager creates a lockdown manager
func NewLockdownManager(policies Policies, platform Platform) *LockdownManager {
	return &LockdownManager{policies: policies, platform: platform}
}

//Activate enables the external app rule with the given action over scope, which is either a channel ID or
//guildmodels.ScopeAllChannels. An existing lockdown is rolled back first. Channels which cannot be changed are
//skipped. If the new state cannot be saved, every channel changed here is restored and the error returned.
func (l *LockdownManager) Activate(ctx context.Context, guildID string, action guildmodels.Action, scope string) (*LockdownResult, error) {
	if _, err := guildmodels.ParseAction(string(action), guildmodels.AntiraidActions); err != nil {
		return nil, err
	}
	targets, err := l.targets(ctx, guildID, scope)
	if err != nil {
		return nil, err
	}
	if l.policies.Get(guildID).ExternalApp.Enabled {
		if _, err := l.Deactivate(ctx, guildID); err != nil {
			return nil, err
		}
	}

	res := &LockdownResult{}
	snapshot := make(map[string]guildmodels.PermState, len(targets))
	for _, chID := range targets {
		prior, err := l.deny(ctx, chID, guildID)
		if err != nil {
			logrus.WithFields(logrus.Fields{"guild": guildID, "channel": chID}).
				Warnf("Failed to lock down channel due to error %v", err)
			res.Skipped = append(res.Skipped, chID)
			continue
		}
		snapshot[chID] = prior
		res.Touched = append(res.Touched, chID)
		lockdownChannels.WithLabelValues("locked").Inc()
	}

	err = l.policies.Mutate(ctx, guildID, func(p *guildmodels.GuildPolicy) error {
		p.ExternalApp = guildmodels.ExternalAppRule{
			Enabled:            true,
			Action:             action,
			Scope:              scope,
			Channels:           append(guildmodels.IDSet(nil), res.Touched...),
			PermissionSnapshot: snapshot,
		}
		return nil
	})
	if err != nil {
		logrus.Errorf("Failed to save lockdown for guild %v due to error %v; rolling back", guildID, err)
		for _, chID := range res.Touched {
			if rerr := l.restore(ctx, chID, guildID, snapshot[chID]); rerr != nil {
				logrus.Warnf("Failed to roll back channel %v due to error %v", chID, rerr)
			}
		}
		return nil, err
	}
	return res, nil
}

//Deactivate restores the prior state of every locked channel and clears the rule. Deleted channels are skipped.
//Deactivating a guild with no active lockdown does nothing.
func (l *LockdownManager) Deactivate(ctx context.Context, guildID string) (*LockdownResult, error) {
	rule := l.policies.Get(guildID).ExternalApp
	res := &LockdownResult{}
	if !rule.Enabled {
		return res, nil
	}
	for _, chID := range rule.Channels {
		state, ok := rule.PermissionSnapshot[chID]
		if !ok {
			state = guildmodels.PermUnset
		}
		if err := l.restore(ctx, chID, guildID, state); err != nil {
			if !errors.Is(err, ErrNotFound) {
				logrus.WithFields(logrus.Fields{"guild": guildID, "channel": chID}).
					Warnf("Failed to restore channel due to error %v", err)
			}
			res.Skipped = append(res.Skipped, chID)
			continue
		}
		res.Touched = append(res.Touched, chID)
		lockdownChannels.WithLabelValues("restored").Inc()
	}
	err := l.policies.Mutate(ctx, guildID, func(p *guildmodels.GuildPolicy) error {
		p.ExternalApp.Disable()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (l *LockdownManager) targets(ctx context.Context, guildID, scope string) ([]string, error) {
	if scope != guildmodels.ScopeAllChannels {
		if err := guildmodels.ValidateID("channel", scope); err != nil {
			return nil, err
		}
	}
	channels, err := l.platform.GuildChannels(ctx, guildID)
	if err != nil {
		return nil, err
	}
	var res []string
	for _, ch := range channels {
		if scope == guildmodels.ScopeAllChannels || ch.ID == scope {
			res = append(res, ch.ID)
		}
	}
	if scope != guildmodels.ScopeAllChannels && len(res) == 0 {
		return nil, &guildmodels.ValidationError{Field: "channel", Value: scope, Reason: "no such channel in this server"}
	}
	return res, nil
}

//deny sets the permission to deny for the everyone role, whose ID is the guild ID, returning its prior state
func (l *LockdownManager) deny(ctx context.Context, chID, everyoneID string) (guildmodels.PermState, error) {
	allow, deny, err := l.platform.ChannelOverwrite(ctx, chID, everyoneID)
	if err != nil {
		return "", err
	}
	prior := guildmodels.PermStateOf(allow, deny, PermissionUseExternalApps)
	allow, deny = guildmodels.PermDeny.Apply(allow, deny, PermissionUseExternalApps)
	if err := l.platform.SetChannelOverwrite(ctx, chID, everyoneID, allow, deny); err != nil {
		return "", err
	}
	return prior, nil
}

//restore puts the permission back to state, leaving every other bit of the overwrite as it currently is
func (l *LockdownManager) restore(ctx context.Context, chID, everyoneID string, state guildmodels.PermState) error {
	allow, deny, err := l.platform.ChannelOverwrite(ctx, chID, everyoneID)
	if err != nil {
		return err
	}
	allow, deny = state.Apply(allow, deny, PermissionUseExternalApps)
	return l.platform.SetChannelOverwrite(ctx, chID, everyoneID, allow, deny)
}
