package moderation

import (
	"context"

	"github.com/sirupsen/logrus"
)

//Notifier posts moderation notices to a guild's configured log sink
type Notifier struct {
	policies Policies
	platform Platform
}

//NewNotifier creates a notifier which looks up sinks in the given policies
func NewNotifier(policies Policies, platform Platform) *Notifier {
	return &Notifier{policies: policies, platform: platform}
}

//Notify posts a message to the guild's log sink. Guilds without a sink are skipped, and delivery failures are
//only logged.
func (n *Notifier) Notify(ctx context.Context, guildID, message string) {
	sink := n.policies.Get(guildID).LogSink
	var err error
	switch {
	case sink.WebhookURL != "":
		err = n.platform.ExecuteWebhook(ctx, sink.WebhookURL, message)
	case sink.ChannelID != "":
		err = n.platform.SendMessage(ctx, sink.ChannelID, message)
	default:
		return
	}
	if err != nil {
		logrus.WithField("guild", guildID).Warnf("Failed to deliver moderation notice due to error %v", err)
	}
}
