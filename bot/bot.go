package bot

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/marshal/db"
	"github.com/callummance/marshal/discord"
	"github.com/callummance/marshal/moderation"
	"github.com/sirupsen/logrus"
)

const defaultPrefix = "$"

//Config holds the bot's settings
type Config struct {
	Token string
	//Command prefix, defaults to $
	Prefix string
	//User who may run commands in every guild
	DevUID string
	//If non-empty, events from any other guild are ignored
	AllowedGuilds []string
	QueueSize     int
	Engine        moderation.Config
}

//gateway is the subset of the discord connection used by the command handlers
type gateway interface {
	Session() *discordgo.Session
	GuildOwnerID(guildID string) (string, error)
	GuildRoles(guildID string) ([]*discordgo.Role, error)
	MemberPermissions(guildID string, roleIDs []string) (int64, error)
	GuildMembersIter(ctx context.Context, guildID string) <-chan discord.GuildMemberResult
	AwaitConfirmation(ctx context.Context, channelID, userID, prompt string, timeout time.Duration) (bool, error)
	Reply(msg *discordgo.Message, resp *discordgo.MessageSend) error
}

//Marshal represents an instance of the discord bot, containing handles to the various external connections.
type Marshal struct {
	DiscordConnection *discord.EventSource
	Store             *db.PolicyStore
	Engine            *moderation.Engine

	gateway  gateway
	platform moderation.Platform
	prefix   string
	devUID   string
	allowed  map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
}

//Init creates a new Marshal instance on top of a loaded policy store. Call Start to begin receiving events.
func Init(store *db.PolicyStore, cfg Config) (*Marshal, error) {
	res := newMarshal(store, cfg)

	//Start discord connection
	disc, err := discord.NewDiscordListener(res, discord.Options{Token: cfg.Token, QueueSize: cfg.QueueSize})
	if err != nil {
		logrus.Errorf("Cannot start bot due to error initializing discord connection: %v", err)
		return nil, err
	}
	platform := discord.NewRESTPlatform(disc.Session())
	engine, err := moderation.NewEngine(store, platform, cfg.Engine)
	if err != nil {
		logrus.Errorf("Cannot start bot due to error initializing moderation engine: %v", err)
		return nil, err
	}

	res.DiscordConnection = disc
	res.gateway = disc
	res.platform = platform
	res.Engine = engine
	return res, nil
}

func newMarshal(store *db.PolicyStore, cfg Config) *Marshal {
	ctx, cancel := context.WithCancel(context.Background())
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	allowed := make(map[string]bool, len(cfg.AllowedGuilds))
	for _, gid := range cfg.AllowedGuilds {
		if gid = strings.TrimSpace(gid); gid != "" {
			allowed[gid] = true
		}
	}
	return &Marshal{
		Store:   store,
		prefix:  prefix,
		devUID:  cfg.DevUID,
		allowed: allowed,
		ctx:     ctx,
		cancel:  cancel,
	}
}

//Start connects to the discord gateway
func (b *Marshal) Start() error {
	return b.DiscordConnection.Open()
}

//BotAddURL generates a URL that can be used to add the bot to a server
func (b *Marshal) BotAddURL() (*url.URL, error) {
	return b.DiscordConnection.BotAddURL()
}

//Close cleanly terminates the bot instance, waiting for queued events to finish. The store is left open.
func (b *Marshal) Close() {
	logrus.Info("Terminating bot...")
	b.cancel()
	if b.DiscordConnection != nil {
		b.DiscordConnection.Close()
	}
}

//HandleMessage is called upon every recieved message. Every message is checked against the moderation rules, and
//those starting with the prefix are then run as commands.
func (b *Marshal) HandleMessage(msg *discordgo.MessageCreate) {
	if !b.guildAllowed(msg.GuildID) {
		return
	}
	b.Engine.HandleMessage(b.ctx, discord.MessageEvent(b.gateway.Session(), msg))
	if msg.Author != nil && !msg.Author.Bot && strings.HasPrefix(msg.Content, b.prefix) {
		b.handleCommand(msg)
	}
}

//HandleReactionAdd is called upon every reaction added in a guild
func (b *Marshal) HandleReactionAdd(r *discordgo.MessageReactionAdd) {
	if !b.guildAllowed(r.GuildID) {
		return
	}
	b.Engine.HandleReaction(b.ctx, discord.ReactionEvent(r))
}

//HandleMemberUpdate is called whenever a member's nickname or roles change
func (b *Marshal) HandleMemberUpdate(m *discordgo.GuildMemberUpdate) {
	if !b.guildAllowed(m.GuildID) {
		return
	}
	b.Engine.HandleMemberUpdate(b.ctx, discord.MemberUpdateEvent(m))
}

func (b *Marshal) guildAllowed(guildID string) bool {
	return len(b.allowed) == 0 || b.allowed[guildID]
}
