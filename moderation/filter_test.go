package moderation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/callummance/marshal/guildmodels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchTermModes(t *testing.T) {
	terms := []string{"badword"}
	_, ok := MatchTerm(terms, "b a d w o r d", true)
	assert.True(t, ok)
	_, ok = MatchTerm(terms, "b a d w o r d", false)
	assert.False(t, ok)

	_, ok = MatchTerm(terms, "what a BadWord", false)
	assert.True(t, ok)
	_, ok = MatchTerm(terms, "B.A.D-W_O_R_D!", true)
	assert.True(t, ok)
	//fullwidth letters fold to ascii under NFKC
	_, ok = MatchTerm(terms, "ｂａｄｗｏｒｄ", true)
	assert.True(t, ok)
}

func TestMatchTermIgnoresEmptyStrictTerms(t *testing.T) {
	_, ok := MatchTerm([]string{"!!!", "   "}, "!!! anything", true)
	assert.False(t, ok)
	term, ok := MatchTerm([]string{"!!!"}, "!!! anything", false)
	assert.True(t, ok)
	assert.Equal(t, "!!!", term)
}

func filterPolicies(action guildmodels.Action) *memoryPolicies {
	policies := newMemoryPolicies()
	policies.set(func(p *guildmodels.GuildPolicy) {
		p.ContentFilter.Enabled = true
		p.ContentFilter.Action = action
		p.ContentFilter.Terms = []string{"badword"}
	})
	return policies
}

func offensive(i int, at time.Time) MessageCreated {
	m := message(i, at)
	m.Text = "you badword"
	return m
}

func TestFilterEscalatesAfterFiveMatches(t *testing.T) {
	platform := newRecordingPlatform()
	policies := filterPolicies(guildmodels.ActionTimeout)
	e := newTestEngine(t, platform, policies)

	for i := 0; i < 4; i++ {
		e.HandleMessage(context.Background(), offensive(i, epoch.Add(time.Duration(i)*time.Minute)))
	}
	assert.Equal(t, 4, platform.Count("delete"))
	assert.Equal(t, 0, platform.Count("timeout"))
	assert.Len(t, policies.Get(testGuild).ContentFilter.OffenseLedger[testUser], 4)

	e.HandleMessage(context.Background(), offensive(4, epoch.Add(4*time.Minute)))
	assert.Equal(t, 1, platform.Count("timeout"))
	assert.Len(t, policies.Get(testGuild).ContentFilter.OffenseLedger[testUser], 0)
	assert.Equal(t, 5, policies.saves)
}

func TestFilterExpiredMatchesDoNotCount(t *testing.T) {
	platform := newRecordingPlatform()
	policies := filterPolicies(guildmodels.ActionKick)
	e := newTestEngine(t, platform, policies)

	e.HandleMessage(context.Background(), offensive(0, epoch))
	for i := 1; i < 4; i++ {
		e.HandleMessage(context.Background(), offensive(i, epoch.Add(time.Duration(100*i)*time.Second)))
	}
	//the first match is 700s old by now
	e.HandleMessage(context.Background(), offensive(4, epoch.Add(700*time.Second)))
	assert.Equal(t, 0, platform.Count("kick"))
	assert.Len(t, policies.Get(testGuild).ContentFilter.OffenseLedger[testUser], 4)
}

func TestFilterSkipsExemptMembers(t *testing.T) {
	platform := newRecordingPlatform()
	policies := newMemoryPolicies()
	policies.set(func(p *guildmodels.GuildPolicy) {
		p.ContentFilter.Enabled = true
		p.ContentFilter.Terms = []string{"badword"}
		p.ContentFilter.ExemptRoles = guildmodels.IDSet{"500000000000000005"}
	})
	e := newTestEngine(t, platform, policies)
	m := offensive(0, epoch)
	m.Author.Roles = []string{"500000000000000005"}
	e.HandleMessage(context.Background(), m)
	assert.Equal(t, 0, platform.Count("delete"))
	assert.Equal(t, 0, policies.saves)
}

func TestFilterResetsLedgerWhenEnforcementFails(t *testing.T) {
	platform := newRecordingPlatform()
	platform.fail["kick"] = fmt.Errorf("kick: %w", ErrPermissionDenied)
	policies := filterPolicies(guildmodels.ActionKick)
	e := newTestEngine(t, platform, policies)
	for i := 0; i < 5; i++ {
		e.HandleMessage(context.Background(), offensive(i, epoch.Add(time.Duration(i)*time.Second)))
	}
	assert.Equal(t, 0, platform.Count("kick"))
	assert.Len(t, policies.Get(testGuild).ContentFilter.OffenseLedger[testUser], 0)
	assert.Equal(t, 5, policies.saves)
}

func TestFilterCommitPropagatesPersistenceFailure(t *testing.T) {
	policies := filterPolicies(guildmodels.ActionKick)
	f := NewContentFilter(policies)
	rule := policies.Get(testGuild).ContentFilter
	dec := f.Evaluate(&rule, Member{UserID: testUser}, "badword", epoch)
	require.True(t, dec.Matched)

	policies.failErr = errors.New("disk full")
	err := f.Commit(context.Background(), testGuild, testUser, dec, epoch)
	assert.ErrorIs(t, err, policies.failErr)
	assert.Empty(t, policies.Get(testGuild).ContentFilter.OffenseLedger[testUser])
}

func TestFilterCommitPrunesOtherMembers(t *testing.T) {
	policies := newMemoryPolicies()
	policies.set(func(p *guildmodels.GuildPolicy) {
		p.ContentFilter.Enabled = true
		p.ContentFilter.Terms = []string{"badword"}
		p.ContentFilter.OffenseLedger["stale"] = []time.Time{epoch.Add(-time.Hour)}
	})
	f := NewContentFilter(policies)
	rule := policies.Get(testGuild).ContentFilter
	dec := f.Evaluate(&rule, Member{UserID: testUser}, "badword", epoch)
	require.NoError(t, f.Commit(context.Background(), testGuild, testUser, dec, epoch))
	ledger := policies.Get(testGuild).ContentFilter.OffenseLedger
	assert.NotContains(t, ledger, "stale")
	assert.Len(t, ledger[testUser], 1)
}
