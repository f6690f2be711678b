package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/callummance/marshal/guildmodels"
	"github.com/sirupsen/logrus"
)

//MutedRoleName is the name of the role used to mute members
const MutedRoleName = "Muted"

//TimeoutDuration is how long the timeout action suspends a member for
const TimeoutDuration = 5 * time.Minute

//Enforcer applies punishments to members. It never returns platform failures from Enforce; they are logged and
//reported to the guild's log sink instead.
type Enforcer struct {
	platform Platform
	notifier *Notifier
	now      func() time.Time
}

//NewEnforcer creates an enforcer reporting through notifier
func NewEnforcer(platform Platform, notifier *Notifier) *Enforcer {
	return &Enforcer{platform: platform, notifier: notifier, now: time.Now}
}

//Enforce applies action to member, reporting the outcome to the guild's log sink
func (e *Enforcer) Enforce(ctx context.Context, member Member, action guildmodels.Action, reason string) {
	log := logrus.WithFields(logrus.Fields{
		"guild":  member.GuildID,
		"user":   member.UserID,
		"action": action,
	})
	var err error
	switch action {
	case guildmodels.ActionMute:
		err = e.Mute(ctx, member.GuildID, member.UserID)
	case guildmodels.ActionKick:
		err = e.platform.KickMember(ctx, member.GuildID, member.UserID, reason)
	case guildmodels.ActionBan:
		err = e.platform.BanMember(ctx, member.GuildID, member.UserID, reason)
	case guildmodels.ActionTimeout:
		err = e.platform.TimeoutMember(ctx, member.GuildID, member.UserID, e.now().Add(TimeoutDuration))
	default:
		log.Debugf("No enforcement action configured, skipping (%v)", reason)
		return
	}
	if err != nil {
		enforcements.WithLabelValues(string(action), "failed").Inc()
		if isExpected(err) {
			log.Warnf("Failed to enforce rule due to error %v", err)
		} else {
			log.Errorf("Failed to enforce rule due to error %v", err)
		}
		e.notifier.Notify(ctx, member.GuildID, fmt.Sprintf("Failed to %v <@%v> (%v): %v", action, member.UserID, reason, err))
		return
	}
	enforcements.WithLabelValues(string(action), "applied").Inc()
	log.Infof("Enforced rule: %v", reason)
	e.notifier.Notify(ctx, member.GuildID, fmt.Sprintf("Applied %v to <@%v>: %v", action, member.UserID, reason))
}

//Mute assigns the guild's muted role to a member, creating the role first if needed
func (e *Enforcer) Mute(ctx context.Context, guildID, userID string) error {
	roleID, err := e.MutedRole(ctx, guildID)
	if err != nil {
		return err
	}
	return e.platform.AddRole(ctx, guildID, userID, roleID)
}

//Unmute takes the muted role away from a member. It is an error if the guild has no muted role.
func (e *Enforcer) Unmute(ctx context.Context, guildID, userID string) error {
	roleID, err := e.platform.FindRole(ctx, guildID, MutedRoleName)
	if err != nil {
		return err
	}
	return e.platform.RemoveRole(ctx, guildID, userID, roleID)
}

//MutedRole returns the ID of the guild's muted role. If there is none, the role is created and denied sending
//messages and adding reactions in every channel; failures on individual channels are ignored.
func (e *Enforcer) MutedRole(ctx context.Context, guildID string) (string, error) {
	roleID, err := e.platform.FindRole(ctx, guildID, MutedRoleName)
	if err == nil {
		return roleID, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	logrus.Infof("Creating %v role for guild %v", MutedRoleName, guildID)
	roleID, err = e.platform.CreateRole(ctx, guildID, MutedRoleName)
	if err != nil {
		return "", err
	}
	channels, err := e.platform.GuildChannels(ctx, guildID)
	if err != nil {
		logrus.Warnf("Failed to list channels for guild %v due to error %v; muted role has no overwrites", guildID, err)
		return roleID, nil
	}
	for _, ch := range channels {
		err := e.platform.SetChannelOverwrite(ctx, ch.ID, roleID, 0, PermissionSendMessages|PermissionAddReactions)
		if err != nil {
			logrus.Debugf("Failed to deny muted role in channel %v due to error %v", ch.ID, err)
		}
	}
	return roleID, nil
}
