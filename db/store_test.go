package db

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/callummance/marshal/guildmodels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGuild = "123456789012345678"

type memoryBackend struct {
	mu      sync.Mutex
	saved   map[string]*guildmodels.GuildPolicy
	saves   int
	failErr error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{saved: make(map[string]*guildmodels.GuildPolicy)}
}

func (m *memoryBackend) LoadPolicies(_ context.Context) ([]*guildmodels.GuildPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []*guildmodels.GuildPolicy
	for _, p := range m.saved {
		res = append(res, p.Clone())
	}
	return res, nil
}

func (m *memoryBackend) SavePolicy(_ context.Context, p *guildmodels.GuildPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.saves++
	m.saved[p.GuildID] = p.Clone()
	return nil
}

func (m *memoryBackend) Close() error { return nil }

func TestGetReturnsDefaultWithoutStoring(t *testing.T) {
	store := NewPolicyStore(newMemoryBackend())
	p := store.Get(testGuild)
	assert.Equal(t, testGuild, p.GuildID)
	assert.False(t, p.Spam.Enabled)
	assert.False(t, store.Exists(testGuild))
}

func TestMutateCreatesAndPersists(t *testing.T) {
	backend := newMemoryBackend()
	store := NewPolicyStore(backend)
	err := store.Mutate(context.Background(), testGuild, func(p *guildmodels.GuildPolicy) error {
		return p.ForceNickname("42", "Alice")
	})
	require.NoError(t, err)
	assert.True(t, store.Exists(testGuild))
	assert.Equal(t, "Alice", store.Get(testGuild).ForcedNicknames["42"])
	assert.Equal(t, "Alice", backend.saved[testGuild].ForcedNicknames["42"])
}

func TestMutateValidationFailureChangesNothing(t *testing.T) {
	backend := newMemoryBackend()
	store := NewPolicyStore(backend)
	require.NoError(t, store.Mutate(context.Background(), testGuild, func(p *guildmodels.GuildPolicy) error {
		return p.ForceNickname("42", "Alice")
	}))
	err := store.Mutate(context.Background(), testGuild, func(p *guildmodels.GuildPolicy) error {
		p.ClearForcedNickname("42")
		return p.ForceNickname("43", "this nickname is far too long to ever be accepted")
	})
	var verr *guildmodels.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Alice", store.Get(testGuild).ForcedNicknames["42"])
	assert.Equal(t, 1, backend.saves)
}

func TestMutatePersistenceFailureIsReported(t *testing.T) {
	backend := newMemoryBackend()
	store := NewPolicyStore(backend)
	backend.failErr = errors.New("disk full")
	err := store.Mutate(context.Background(), testGuild, func(p *guildmodels.GuildPolicy) error {
		p.Spam.Enabled = true
		p.Spam.Action = guildmodels.ActionKick
		return nil
	})
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, testGuild, perr.GuildID)
	assert.ErrorIs(t, err, backend.failErr)
	assert.False(t, store.Get(testGuild).Spam.Enabled)
}

func TestPublishedPolicyIsNotModifiedByLaterMutations(t *testing.T) {
	store := NewPolicyStore(newMemoryBackend())
	require.NoError(t, store.Mutate(context.Background(), testGuild, func(p *guildmodels.GuildPolicy) error {
		p.BlockRole("r1", "u1")
		return nil
	}))
	before := store.Get(testGuild)
	require.NoError(t, store.Mutate(context.Background(), testGuild, func(p *guildmodels.GuildPolicy) error {
		p.BlockRole("r1", "u2")
		return nil
	}))
	assert.Len(t, before.RoleBlocks["r1"], 1)
	assert.Len(t, store.Get(testGuild).RoleBlocks["r1"], 2)
}

func TestLoadRepairsAndFlushes(t *testing.T) {
	backend := newMemoryBackend()
	broken := guildmodels.DefaultPolicy(testGuild)
	broken.LogSink = guildmodels.LogSink{ChannelID: "1", WebhookURL: "https://discord.com/api/webhooks/1/x"}
	backend.saved[testGuild] = broken

	store := NewPolicyStore(backend)
	require.NoError(t, store.Load(context.Background()))
	sink := store.Get(testGuild).LogSink
	assert.False(t, sink.ChannelID != "" && sink.WebhookURL != "")

	require.NoError(t, store.Close(context.Background()))
	assert.Equal(t, 1, backend.saves)
	assert.Equal(t, sink, backend.saved[testGuild].LogSink)
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	store := NewPolicyStore(newMemoryBackend())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Mutate(context.Background(), testGuild, func(p *guildmodels.GuildPolicy) error {
				p.AutoremoveMessages.Add(string(rune('a' + i%26)) + string(rune('a'+i/26)))
				return nil
			})
		}(i)
	}
	wg.Wait()
	assert.Len(t, store.Get(testGuild).AutoremoveMessages, 50)
}
