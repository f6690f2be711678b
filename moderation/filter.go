package moderation

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/callummance/marshal/guildmodels"
	"golang.org/x/text/unicode/norm"
)

const (
	//OffenseThreshold is the number of filter matches within OffenseHorizon which escalates to a punishment
	OffenseThreshold = 5
	//OffenseHorizon is how long a filter match counts towards escalation
	OffenseHorizon = 600 * time.Second
)

//FilterDecision is the outcome of checking one message against the content filter
type FilterDecision struct {
	Matched bool
	Term    string
	//Offense ledger for the author after this match, already pruned
	Ledger []time.Time
	Punish bool
	Action guildmodels.Action
}

//ContentFilter checks messages for forbidden terms and keeps each member's offense ledger up to date
type ContentFilter struct {
	policies Policies
}

//NewContentFilter creates a filter which persists ledgers through policies
func NewContentFilter(policies Policies) *ContentFilter {
	return &ContentFilter{policies: policies}
}

//Evaluate decides whether a message matches and whether the author should now be punished.
//It does not change any state.
func (f *ContentFilter) Evaluate(rule *guildmodels.ContentFilterRule, author Member, text string, ts time.Time) FilterDecision {
	if !rule.Enabled || rule.IsExempt(author.UserID, author.Roles) {
		return FilterDecision{}
	}
	term, ok := MatchTerm(rule.Terms, text, rule.Strict)
	if !ok {
		return FilterDecision{}
	}
	ledger := pruneLedger(rule.OffenseLedger[author.UserID], ts)
	ledger = append(ledger, ts)
	return FilterDecision{
		Matched: true,
		Term:    term,
		Ledger:  ledger,
		Punish:  len(ledger) >= OffenseThreshold,
		Action:  rule.Action,
	}
}

//Commit persists the author's ledger following a match, resetting it if a punishment fired.
//Expired entries of other members are dropped at the same time.
func (f *ContentFilter) Commit(ctx context.Context, guildID, userID string, dec FilterDecision, ts time.Time) error {
	if !dec.Matched {
		return nil
	}
	return f.policies.Mutate(ctx, guildID, func(p *guildmodels.GuildPolicy) error {
		ledgers := p.ContentFilter.OffenseLedger
		for uid, l := range ledgers {
			if pruned := pruneLedger(l, ts); len(pruned) == 0 {
				delete(ledgers, uid)
			} else {
				ledgers[uid] = pruned
			}
		}
		if dec.Punish {
			delete(ledgers, userID)
		} else {
			ledgers[userID] = dec.Ledger
		}
		return nil
	})
}

//MatchTerm returns the first term found in text. In strict mode both sides are NFKC folded, lower-cased and
//stripped of everything but letters and digits; terms which strip down to nothing never match.
func MatchTerm(terms []string, text string, strict bool) (string, bool) {
	var haystack string
	if strict {
		haystack = foldStrict(text)
	} else {
		haystack = strings.ToLower(text)
	}
	for _, term := range terms {
		var needle string
		if strict {
			needle = foldStrict(term)
		} else {
			needle = strings.ToLower(term)
		}
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, needle) {
			return term, true
		}
	}
	return "", false
}

func foldStrict(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

//pruneLedger returns the entries no older than OffenseHorizon at now, in a new slice
func pruneLedger(ledger []time.Time, now time.Time) []time.Time {
	res := make([]time.Time, 0, len(ledger)+1)
	for _, t := range ledger {
		if now.Sub(t) <= OffenseHorizon {
			res = append(res, t)
		}
	}
	return res
}
