package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const (
	confirmEmoji = "✅"
	declineEmoji = "❌"
)

//ConfirmationTimeout is how long an operator has to answer a confirmation prompt
const ConfirmationTimeout = 30 * time.Second

type confirmation struct {
	userID string
	answer chan bool
}

//AwaitConfirmation posts a prompt in a channel and waits for userID to react to it with a tick or a cross.
//It returns false if the user declines, or if nobody answers before the timeout or ctx is done.
func (d *EventSource) AwaitConfirmation(ctx context.Context, channelID, userID, prompt string, timeout time.Duration) (bool, error) {
	s := d.Session()
	msg, err := s.ChannelMessageSend(channelID, prompt)
	if err != nil {
		return false, classify("send confirmation prompt", err)
	}
	pending := &confirmation{userID: userID, answer: make(chan bool, 1)}
	d.confirmMu.Lock()
	d.confirmations[msg.ID] = pending
	d.confirmMu.Unlock()
	defer func() {
		d.confirmMu.Lock()
		delete(d.confirmations, msg.ID)
		d.confirmMu.Unlock()
	}()

	for _, emoji := range []string{confirmEmoji, declineEmoji} {
		if err := s.MessageReactionAdd(channelID, msg.ID, emoji); err != nil {
			logrus.Warnf("Failed to add %v to confirmation prompt due to error %v", emoji, err)
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	var ok bool
	select {
	case ok = <-pending.answer:
	case <-timer.C:
		logrus.Infof("Confirmation prompt %v timed out", msg.ID)
		_, _ = s.ChannelMessageEdit(channelID, msg.ID, prompt+"\n*Timed out, nothing was changed.*")
	case <-ctx.Done():
	}
	return ok, nil
}

//deliverConfirmation passes a reaction to a waiting confirmation prompt, returning true if it was one
func (d *EventSource) deliverConfirmation(r *discordgo.MessageReactionAdd) bool {
	d.confirmMu.Lock()
	pending, ok := d.confirmations[r.MessageID]
	d.confirmMu.Unlock()
	if !ok {
		return false
	}
	if r.UserID != pending.userID {
		return true
	}
	var answer bool
	switch r.Emoji.Name {
	case confirmEmoji:
		answer = true
	case declineEmoji:
		answer = false
	default:
		return true
	}
	select {
	case pending.answer <- answer:
	default:
	}
	return true
}
