package moderation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/callummance/marshal/guildmodels"
)

const (
	testGuild = "100000000000000001"
	testUser  = "200000000000000002"
)

type overwrite struct {
	allow, deny int64
}

//recordingPlatform is an in-memory Platform which records every successful call
type recordingPlatform struct {
	mu         sync.Mutex
	calls      []string
	channels   []Channel
	overwrites map[string]overwrite
	roles      map[string]string
	nextRole   int
	//method name -> error returned instead of performing the call
	fail map[string]error
	//channel ID -> error returned by overwrite calls on that channel
	failChannel map[string]error
}

func newRecordingPlatform(channelIDs ...string) *recordingPlatform {
	p := &recordingPlatform{
		overwrites:  make(map[string]overwrite),
		roles:       make(map[string]string),
		fail:        make(map[string]error),
		failChannel: make(map[string]error),
	}
	for _, id := range channelIDs {
		p.channels = append(p.channels, Channel{ID: id, Name: "chan-" + id})
	}
	return p
}

func (p *recordingPlatform) record(method string, args ...interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.fail[method]; ok {
		return err
	}
	call := method
	for _, a := range args {
		call += fmt.Sprintf(":%v", a)
	}
	p.calls = append(p.calls, call)
	return nil
}

func (p *recordingPlatform) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *recordingPlatform) Count(method string) int {
	n := 0
	for _, c := range p.Calls() {
		if c == method || strings.HasPrefix(c, method+":") {
			n++
		}
	}
	return n
}

func (p *recordingPlatform) SendMessage(_ context.Context, channelID, content string) error {
	return p.record("send", channelID, content)
}

func (p *recordingPlatform) ExecuteWebhook(_ context.Context, webhookURL, content string) error {
	return p.record("webhook", webhookURL, content)
}

func (p *recordingPlatform) DeleteMessage(_ context.Context, channelID, messageID string) error {
	return p.record("delete", channelID, messageID)
}

func (p *recordingPlatform) AddReaction(_ context.Context, channelID, messageID, emoji string) error {
	return p.record("react", channelID, messageID, emoji)
}

func (p *recordingPlatform) RemoveReaction(_ context.Context, channelID, messageID, emoji, userID string) error {
	return p.record("unreact", channelID, messageID, emoji, userID)
}

func (p *recordingPlatform) AddRole(_ context.Context, guildID, userID, roleID string) error {
	return p.record("addrole", guildID, userID, roleID)
}

func (p *recordingPlatform) RemoveRole(_ context.Context, guildID, userID, roleID string) error {
	return p.record("removerole", guildID, userID, roleID)
}

func (p *recordingPlatform) FindRole(_ context.Context, _ string, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.roles[name]; ok {
		return id, nil
	}
	return "", fmt.Errorf("role %v: %w", name, ErrNotFound)
}

func (p *recordingPlatform) CreateRole(_ context.Context, guildID, name string) (string, error) {
	if err := p.record("createrole", guildID, name); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextRole++
	id := fmt.Sprintf("9000000000000000%02d", p.nextRole)
	p.roles[name] = id
	return id, nil
}

func (p *recordingPlatform) GuildChannels(_ context.Context, _ string) ([]Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.fail["channels"]; ok {
		return nil, err
	}
	return append([]Channel(nil), p.channels...), nil
}

func (p *recordingPlatform) ChannelOverwrite(_ context.Context, channelID, roleID string) (int64, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasChannel(channelID) {
		return 0, 0, fmt.Errorf("channel %v: %w", channelID, ErrNotFound)
	}
	ow := p.overwrites[channelID+"/"+roleID]
	return ow.allow, ow.deny, nil
}

func (p *recordingPlatform) SetChannelOverwrite(_ context.Context, channelID, roleID string, allow, deny int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failChannel[channelID]; ok {
		return err
	}
	if !p.hasChannel(channelID) {
		return fmt.Errorf("channel %v: %w", channelID, ErrNotFound)
	}
	key := channelID + "/" + roleID
	if allow == 0 && deny == 0 {
		delete(p.overwrites, key)
	} else {
		p.overwrites[key] = overwrite{allow: allow, deny: deny}
	}
	p.calls = append(p.calls, fmt.Sprintf("overwrite:%v:%v:%d:%d", channelID, roleID, allow, deny))
	return nil
}

func (p *recordingPlatform) EditNickname(_ context.Context, guildID, userID, nick string) error {
	return p.record("nick", guildID, userID, nick)
}

func (p *recordingPlatform) KickMember(_ context.Context, guildID, userID, _ string) error {
	return p.record("kick", guildID, userID)
}

func (p *recordingPlatform) BanMember(_ context.Context, guildID, userID, _ string) error {
	return p.record("ban", guildID, userID)
}

func (p *recordingPlatform) TimeoutMember(_ context.Context, guildID, userID string, _ time.Time) error {
	return p.record("timeout", guildID, userID)
}

func (p *recordingPlatform) hasChannel(id string) bool {
	for _, ch := range p.channels {
		if ch.ID == id {
			return true
		}
	}
	return false
}

func (p *recordingPlatform) overwriteOf(channelID, roleID string) (overwrite, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ow, ok := p.overwrites[channelID+"/"+roleID]
	return ow, ok
}

//memoryPolicies is a Policies with the same copy-then-publish behaviour as the real store
type memoryPolicies struct {
	mu       sync.Mutex
	policies map[string]*guildmodels.GuildPolicy
	failErr  error
	saves    int
}

func newMemoryPolicies() *memoryPolicies {
	return &memoryPolicies{policies: make(map[string]*guildmodels.GuildPolicy)}
}

func (m *memoryPolicies) Get(guildID string) *guildmodels.GuildPolicy {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.policies[guildID]; ok {
		return p
	}
	return guildmodels.DefaultPolicy(guildID)
}

func (m *memoryPolicies) Mutate(_ context.Context, guildID string, fn func(*guildmodels.GuildPolicy) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next *guildmodels.GuildPolicy
	if p, ok := m.policies[guildID]; ok {
		next = p.Clone()
	} else {
		next = guildmodels.DefaultPolicy(guildID)
	}
	if err := fn(next); err != nil {
		return err
	}
	if m.failErr != nil {
		return m.failErr
	}
	m.saves++
	m.policies[guildID] = next
	return nil
}

func (m *memoryPolicies) set(fn func(*guildmodels.GuildPolicy)) {
	p := guildmodels.DefaultPolicy(testGuild)
	fn(p)
	m.mu.Lock()
	m.policies[testGuild] = p
	m.mu.Unlock()
}
