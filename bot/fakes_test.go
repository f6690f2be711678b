package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/marshal/db"
	"github.com/callummance/marshal/discord"
	"github.com/callummance/marshal/guildmodels"
	"github.com/callummance/marshal/moderation"
	"github.com/stretchr/testify/require"
)

const (
	testGuild   = "100000000000000001"
	testAdmin   = "200000000000000002"
	testUser    = "200000000000000003"
	testChannel = "300000000000000004"
	testRole    = "400000000000000005"
)

//fakeGateway stands in for the discord connection
type fakeGateway struct {
	ownerID   string
	roles     []*discordgo.Role
	perms     int64
	members   []*discordgo.Member
	memberErr error
	//Answer given to every confirmation prompt
	confirm bool
	prompts []string
	replies []*discordgo.MessageSend
}

func (g *fakeGateway) Session() *discordgo.Session { return nil }

func (g *fakeGateway) GuildOwnerID(string) (string, error) { return g.ownerID, nil }

func (g *fakeGateway) GuildRoles(string) ([]*discordgo.Role, error) { return g.roles, nil }

func (g *fakeGateway) MemberPermissions(string, []string) (int64, error) { return g.perms, nil }

func (g *fakeGateway) GuildMembersIter(ctx context.Context, guildID string) <-chan discord.GuildMemberResult {
	ch := make(chan discord.GuildMemberResult, len(g.members)+1)
	for _, m := range g.members {
		ch <- discord.GuildMemberResult{Member: m}
	}
	if g.memberErr != nil {
		ch <- discord.GuildMemberResult{Error: g.memberErr}
	}
	close(ch)
	return ch
}

func (g *fakeGateway) AwaitConfirmation(_ context.Context, _, _, prompt string, _ time.Duration) (bool, error) {
	g.prompts = append(g.prompts, prompt)
	return g.confirm, nil
}

func (g *fakeGateway) Reply(_ *discordgo.Message, resp *discordgo.MessageSend) error {
	g.replies = append(g.replies, resp)
	return nil
}

//stubPlatform is an in-memory moderation.Platform recording every successful call
type stubPlatform struct {
	mu         sync.Mutex
	calls      []string
	channels   []moderation.Channel
	overwrites map[string][2]int64
	roles      map[string]string
	fail       map[string]error
}

func newStubPlatform(channelIDs ...string) *stubPlatform {
	p := &stubPlatform{
		overwrites: make(map[string][2]int64),
		roles:      make(map[string]string),
		fail:       make(map[string]error),
	}
	for _, id := range channelIDs {
		p.channels = append(p.channels, moderation.Channel{ID: id, Name: "chan-" + id})
	}
	return p
}

func (p *stubPlatform) record(method string, args ...interface{}) error {
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

//callsTo returns every recorded call of a method
func (p *stubPlatform) callsTo(method string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var res []string
	for _, c := range p.calls {
		if strings.HasPrefix(c, method+":") {
			res = append(res, c)
		}
	}
	return res
}

func (p *stubPlatform) SendMessage(_ context.Context, channelID, content string) error {
	return p.record("send", channelID, content)
}

func (p *stubPlatform) ExecuteWebhook(_ context.Context, webhookURL, content string) error {
	return p.record("webhook", webhookURL, content)
}

func (p *stubPlatform) DeleteMessage(_ context.Context, channelID, messageID string) error {
	return p.record("delete", channelID, messageID)
}

func (p *stubPlatform) AddReaction(_ context.Context, channelID, messageID, emoji string) error {
	return p.record("react", channelID, messageID, emoji)
}

func (p *stubPlatform) RemoveReaction(_ context.Context, channelID, messageID, emoji, userID string) error {
	return p.record("unreact", channelID, messageID, emoji, userID)
}

func (p *stubPlatform) AddRole(_ context.Context, guildID, userID, roleID string) error {
	return p.record("addrole", guildID, userID, roleID)
}

func (p *stubPlatform) RemoveRole(_ context.Context, guildID, userID, roleID string) error {
	return p.record("removerole", guildID, userID, roleID)
}

func (p *stubPlatform) FindRole(_ context.Context, _, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.roles[name]; ok {
		return id, nil
	}
	return "", fmt.Errorf("role %v: %w", name, moderation.ErrNotFound)
}

func (p *stubPlatform) CreateRole(_ context.Context, guildID, name string) (string, error) {
	if err := p.record("createrole", guildID, name); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := fmt.Sprintf("5000000000000000%02d", len(p.roles))
	p.roles[name] = id
	return id, nil
}

func (p *stubPlatform) GuildChannels(context.Context, string) ([]moderation.Channel, error) {
	return p.channels, nil
}

func (p *stubPlatform) ChannelOverwrite(_ context.Context, channelID, roleID string) (int64, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ow := p.overwrites[channelID+"/"+roleID]
	return ow[0], ow[1], nil
}

func (p *stubPlatform) SetChannelOverwrite(_ context.Context, channelID, roleID string, allow, deny int64) error {
	if err := p.record("overwrite", channelID, roleID, allow, deny); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if allow == 0 && deny == 0 {
		delete(p.overwrites, channelID+"/"+roleID)
	} else {
		p.overwrites[channelID+"/"+roleID] = [2]int64{allow, deny}
	}
	return nil
}

func (p *stubPlatform) EditNickname(_ context.Context, guildID, userID, nick string) error {
	return p.record("nick", guildID, userID, nick)
}

func (p *stubPlatform) KickMember(_ context.Context, guildID, userID, _ string) error {
	return p.record("kick", guildID, userID)
}

func (p *stubPlatform) BanMember(_ context.Context, guildID, userID, _ string) error {
	return p.record("ban", guildID, userID)
}

func (p *stubPlatform) TimeoutMember(_ context.Context, guildID, userID string, _ time.Time) error {
	return p.record("timeout", guildID, userID)
}

//failingBackend loads nothing and refuses every save
type failingBackend struct{}

func (failingBackend) LoadPolicies(context.Context) ([]*guildmodels.GuildPolicy, error) { return nil, nil }

func (failingBackend) SavePolicy(context.Context, *guildmodels.GuildPolicy) error {
	return errors.New("disk on fire")
}

func (failingBackend) Close() error { return nil }

type testBot struct {
	*Marshal
	gw       *fakeGateway
	platform *stubPlatform
}

func newTestBotWithBackend(t *testing.T, backend db.Backend) *testBot {
	t.Helper()
	store := db.NewPolicyStore(backend)
	require.NoError(t, store.Load(context.Background()))
	m := newMarshal(store, Config{DevUID: testAdmin})
	t.Cleanup(m.Close)

	platform := newStubPlatform(testChannel, "300000000000000005")
	engine, err := moderation.NewEngine(store, platform, moderation.Config{})
	require.NoError(t, err)
	gw := &fakeGateway{
		ownerID: "999999999999999999",
		roles:   []*discordgo.Role{{ID: testRole, Name: "Helpers"}},
	}
	m.Engine = engine
	m.platform = platform
	m.gateway = gw
	return &testBot{Marshal: m, gw: gw, platform: platform}
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	backend, err := db.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	return newTestBotWithBackend(t, backend)
}

func commandMessage(authorID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "600000000000000006",
		ChannelID: testChannel,
		GuildID:   testGuild,
		Content:   content,
		Author:    &discordgo.User{ID: authorID},
		Member:    &discordgo.Member{},
	}}
}

//run executes a command as the developer user
func (tb *testBot) run(content string) CommandResponse {
	return tb.handleCommand(commandMessage(testAdmin, content))
}

func (tb *testBot) policy() *guildmodels.GuildPolicy {
	return tb.Store.Get(testGuild)
}
