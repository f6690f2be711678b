package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/callummance/marshal/guildmodels"
	"github.com/sirupsen/logrus"
)

//Config holds the tunables of an Engine
type Config struct {
	//Maximum number of spam windows held in memory
	SpamCacheSize int
}

//Engine routes platform events to the moderation rules of the guild they came from.
//Its handlers are not safe for concurrent use; events are expected to arrive one at a time.
type Engine struct {
	policies   Policies
	platform   Platform
	spam       *SpamDetector
	filter     *ContentFilter
	lockdown   *LockdownManager
	enforcer   *Enforcer
	reconciler *Reconciler
	notifier   *Notifier
}

//NewEngine creates an engine and all of its rules
func NewEngine(policies Policies, platform Platform, cfg Config) (*Engine, error) {
	spam, err := NewSpamDetector(cfg.SpamCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create spam detector: %w", err)
	}
	notifier := NewNotifier(policies, platform)
	return &Engine{
		policies:   policies,
		platform:   platform,
		spam:       spam,
		filter:     NewContentFilter(policies),
		lockdown:   NewLockdownManager(policies, platform),
		enforcer:   NewEnforcer(platform, notifier),
		reconciler: NewReconciler(policies, platform),
		notifier:   notifier,
	}, nil
}

//Lockdown returns the external app lockdown manager
func (e *Engine) Lockdown() *LockdownManager { return e.lockdown }

//Enforcer returns the punishment enforcer
func (e *Engine) Enforcer() *Enforcer { return e.enforcer }

//Notifier returns the log sink notifier
func (e *Engine) Notifier() *Notifier { return e.notifier }

//Spam returns the spam detector
func (e *Engine) Spam() *SpamDetector { return e.spam }

//Reconcile brings a single member in line with the guild's forced nicknames and role blocks
func (e *Engine) Reconcile(ctx context.Context, m Member) Reconciliation {
	return e.reconciler.Reconcile(ctx, m)
}

//HandleMessage runs a new message through the spam detector, the content filter, the external app guard, the
//autoremove rules and finally auto-react.
func (e *Engine) HandleMessage(ctx context.Context, ev MessageCreated) {
	eventsProcessed.WithLabelValues("message").Inc()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	policy := e.policies.Get(ev.GuildID)
	deleted := false

	if !ev.Author.Bot {
		e.checkSpam(ctx, policy, ev)
		deleted = e.checkFilter(ctx, policy, ev)
	}
	if !deleted {
		deleted = e.checkExternalApp(ctx, policy, ev)
	}
	if !deleted && policy.AutoremoveMessages.Has(ev.Author.UserID) {
		if err := e.platform.DeleteMessage(ctx, ev.ChannelID, ev.MessageID); err != nil {
			logrus.Warnf("Failed to autoremove message %v due to error %v", ev.MessageID, err)
		} else {
			deleted = true
		}
	}
	if !deleted {
		if glyph, ok := policy.ReactionRules[ev.Author.UserID]; ok {
			if err := e.platform.AddReaction(ctx, ev.ChannelID, ev.MessageID, glyph); err != nil {
				logrus.Warnf("Failed to auto-react to message %v due to error %v", ev.MessageID, err)
			}
		}
	}
}

//HandleReaction strips reactions covered by an autoremove rule
func (e *Engine) HandleReaction(ctx context.Context, ev ReactionAdded) {
	eventsProcessed.WithLabelValues("reaction").Inc()
	if !e.policies.Get(ev.GuildID).ShouldRemoveReaction(ev.UserID, ev.Emoji) {
		return
	}
	if err := e.platform.RemoveReaction(ctx, ev.ChannelID, ev.MessageID, ev.Emoji, ev.UserID); err != nil {
		logrus.Warnf("Failed to autoremove reaction %v by %v due to error %v", ev.Emoji, ev.UserID, err)
	}
}

//HandleMemberUpdate reconciles a member after their nickname or roles changed
func (e *Engine) HandleMemberUpdate(ctx context.Context, ev MemberUpdated) {
	eventsProcessed.WithLabelValues("member_update").Inc()
	e.reconciler.Reconcile(ctx, ev.After)
}

func (e *Engine) checkSpam(ctx context.Context, policy *guildmodels.GuildPolicy, ev MessageCreated) {
	dec := e.spam.Evaluate(ev.GuildID, ev.Author.UserID, ev.Timestamp, policy.Spam)
	if dec.Triggered {
		spamTriggers.Inc()
		logrus.WithFields(logrus.Fields{
			"guild":  ev.GuildID,
			"user":   ev.Author.UserID,
			"action": dec.Action,
		}).Info("Spam threshold reached")
		reason := fmt.Sprintf("sent %d messages within %v", dec.Count(), SpamHorizon)
		e.enforcer.Enforce(ctx, ev.Author, dec.Action, reason)
	}
	e.spam.Commit(dec)
}

//checkFilter returns true if the message was deleted
func (e *Engine) checkFilter(ctx context.Context, policy *guildmodels.GuildPolicy, ev MessageCreated) bool {
	dec := e.filter.Evaluate(&policy.ContentFilter, ev.Author, ev.Text, ev.Timestamp)
	if !dec.Matched {
		return false
	}
	filterMatches.Inc()
	log := logrus.WithFields(logrus.Fields{
		"guild": ev.GuildID,
		"user":  ev.Author.UserID,
		"term":  dec.Term,
	})
	deleted := true
	if err := e.platform.DeleteMessage(ctx, ev.ChannelID, ev.MessageID); err != nil {
		log.Warnf("Failed to delete filtered message due to error %v", err)
		deleted = false
	}
	if dec.Punish {
		filterEscalations.Inc()
		log.WithField("action", dec.Action).Info("Filter offense threshold reached")
		reason := fmt.Sprintf("used forbidden terms %d times within %v", len(dec.Ledger), OffenseHorizon)
		e.enforcer.Enforce(ctx, ev.Author, dec.Action, reason)
	}
	if err := e.filter.Commit(ctx, ev.GuildID, ev.Author.UserID, dec, ev.Timestamp); err != nil {
		log.Errorf("Failed to save offense ledger due to error %v", err)
		e.notifier.Notify(ctx, ev.GuildID, fmt.Sprintf("Failed to save content filter offenses for <@%v>: %v", ev.Author.UserID, err))
	}
	return deleted
}

//checkExternalApp returns true if the message was deleted
func (e *Engine) checkExternalApp(ctx context.Context, policy *guildmodels.GuildPolicy, ev MessageCreated) bool {
	if ev.ExternalAppInvoker == "" || !policy.ExternalApp.Restricts(ev.ChannelID) {
		return false
	}
	logrus.WithFields(logrus.Fields{
		"guild":   ev.GuildID,
		"user":    ev.ExternalAppInvoker,
		"channel": ev.ChannelID,
	}).Info("External app used in restricted channel")
	invoker := Member{GuildID: ev.GuildID, UserID: ev.ExternalAppInvoker}
	e.enforcer.Enforce(ctx, invoker, policy.ExternalApp.Action, "used an external app in a restricted channel")
	if err := e.platform.DeleteMessage(ctx, ev.ChannelID, ev.MessageID); err != nil {
		logrus.Warnf("Failed to delete external app message %v due to error %v", ev.MessageID, err)
		return false
	}
	return true
}
