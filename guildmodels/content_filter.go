package guildmodels

import (
	"fmt"
	"strings"
	"time"
)

//ContentFilterRule configures forbidden-term scanning and records the offense history used to escalate
type ContentFilterRule struct {
	Enabled     bool     `gorethink:"enabled" json:"enabled" yaml:"enabled"`
	Strict      bool     `gorethink:"strict" json:"strict" yaml:"strict"`
	Action      Action   `gorethink:"action" json:"action" yaml:"action,omitempty"`
	Terms       []string `gorethink:"terms" json:"terms" yaml:"terms,omitempty"`
	ExemptUsers IDSet    `gorethink:"exempt_users" json:"exempt_users" yaml:"exempt_users,omitempty"`
	ExemptRoles IDSet    `gorethink:"exempt_roles" json:"exempt_roles" yaml:"exempt_roles,omitempty"`
	//user ID -> times of recent offenses, oldest first
	OffenseLedger map[string][]time.Time `gorethink:"offense_ledger" json:"offense_ledger" yaml:"offense_ledger,omitempty"`
}

//AddTerm appends a forbidden term, ignoring case-insensitive duplicates
func (f *ContentFilterRule) AddTerm(term string) (bool, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return false, &ValidationError{Field: "term", Reason: "must not be empty"}
	}
	if f.HasTerm(term) {
		return false, nil
	}
	f.Terms = append(f.Terms, term)
	return true, nil
}

//RemoveTerm deletes a forbidden term, matching case-insensitively
func (f *ContentFilterRule) RemoveTerm(term string) bool {
	term = strings.TrimSpace(term)
	for i, t := range f.Terms {
		if strings.EqualFold(t, term) {
			f.Terms = append(f.Terms[:i], f.Terms[i+1:]...)
			return true
		}
	}
	return false
}

//HasTerm returns true if the term is already forbidden
func (f *ContentFilterRule) HasTerm(term string) bool {
	for _, t := range f.Terms {
		if strings.EqualFold(t, term) {
			return true
		}
	}
	return false
}

//IsExempt returns true if the user, or any of their roles, is exempt from filtering
func (f *ContentFilterRule) IsExempt(userID string, roles []string) bool {
	return f.ExemptUsers.Has(userID) || f.ExemptRoles.HasAny(roles)
}

func (f *ContentFilterRule) normalize() []string {
	var notes []string
	if f.OffenseLedger == nil {
		f.OffenseLedger = make(map[string][]time.Time)
	}
	for uid, ledger := range f.OffenseLedger {
		if len(ledger) == 0 {
			delete(f.OffenseLedger, uid)
		}
	}
	if f.Action != ActionNone && !containsAction(FilterActions, f.Action) {
		notes = append(notes, fmt.Sprintf("content filter had unknown action %q; matches will only delete messages", f.Action))
		f.Action = ActionNone
	}
	return notes
}

func (f ContentFilterRule) clone() ContentFilterRule {
	c := f
	c.Terms = append([]string(nil), f.Terms...)
	c.ExemptUsers = f.ExemptUsers.Clone()
	c.ExemptRoles = f.ExemptRoles.Clone()
	c.OffenseLedger = make(map[string][]time.Time, len(f.OffenseLedger))
	for k, v := range f.OffenseLedger {
		c.OffenseLedger[k] = append([]time.Time(nil), v...)
	}
	return c
}
