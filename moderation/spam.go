package moderation

import (
	"time"

	"github.com/callummance/marshal/guildmodels"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	//SpamThreshold is the number of messages within SpamHorizon which triggers the spam rule
	SpamThreshold = 5
	//SpamHorizon is the length of the trailing window messages are counted over
	SpamHorizon = 5 * time.Second
	//DefaultSpamCacheSize bounds the number of (guild, user) windows held in memory
	DefaultSpamCacheSize = 10000
)

type spamKey struct {
	guildID string
	userID  string
}

//SpamDetector keeps a rolling window of message timestamps for every recently active member.
//Windows are never persisted; the least recently active are evicted once the cache is full.
type SpamDetector struct {
	windows *lru.Cache[spamKey, []time.Time]
}

//SpamDecision is the outcome of evaluating one message against the spam rule
type SpamDecision struct {
	key       spamKey
	window    []time.Time
	Triggered bool
	Action    guildmodels.Action
}

//Count is the number of messages in the window including the evaluated one
func (d SpamDecision) Count() int {
	return len(d.window)
}

//NewSpamDetector creates a detector holding at most size windows
func NewSpamDetector(size int) (*SpamDetector, error) {
	if size <= 0 {
		size = DefaultSpamCacheSize
	}
	cache, err := lru.New[spamKey, []time.Time](size)
	if err != nil {
		return nil, err
	}
	return &SpamDetector{windows: cache}, nil
}

//Evaluate works out what the window would look like after a message at ts, and whether the rule fires.
//Nothing is recorded until the decision is passed to Commit.
func (d *SpamDetector) Evaluate(guildID, userID string, ts time.Time, rule guildmodels.SpamRule) SpamDecision {
	key := spamKey{guildID: guildID, userID: userID}
	prev, _ := d.windows.Peek(key)
	window := make([]time.Time, 0, len(prev)+1)
	for _, t := range prev {
		if ts.Sub(t) <= SpamHorizon {
			window = append(window, t)
		}
	}
	window = append(window, ts)
	return SpamDecision{
		key:       key,
		window:    window,
		Triggered: rule.Enabled && len(window) >= SpamThreshold,
		Action:    rule.Action,
	}
}

//Commit records a decision, clearing the member's window if the rule fired
func (d *SpamDetector) Commit(dec SpamDecision) {
	if dec.Triggered {
		d.windows.Remove(dec.key)
		return
	}
	d.windows.Add(dec.key, dec.window)
}

//WindowLen returns the number of messages currently counted for a member
func (d *SpamDetector) WindowLen(guildID, userID string) int {
	w, _ := d.windows.Peek(spamKey{guildID: guildID, userID: userID})
	return len(w)
}
