package discord

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const botScope = "bot"
const permissions = discordgo.PermissionAllText | discordgo.PermissionAllChannel |
	discordgo.PermissionKickMembers | discordgo.PermissionBanMembers | discordgo.PermissionManageRoles |
	discordgo.PermissionManageNicknames | discordgo.PermissionModerateMembers
const defaultQueueSize = 256

//EventHandler is a struct which can handle all the events the discord listener generates.
type EventHandler interface {
	HandleMessage(*discordgo.MessageCreate)
	HandleReactionAdd(*discordgo.MessageReactionAdd)
	HandleMemberUpdate(*discordgo.GuildMemberUpdate)
}

//Options configures the connection to the gateway
type Options struct {
	Token string
	//Number of events which may be waiting for the handler before the gateway blocks
	QueueSize int
}

//EventSource represents a connection to the Discord gateway. Events are handed to the handler one at a time, in
//the order they arrived, from a single goroutine.
type EventSource struct {
	discordClient *discordgo.Session
	handler       EventHandler

	queueMu sync.RWMutex
	queue   chan func()
	closed  bool
	done    chan struct{}

	confirmMu sync.Mutex
	//prompt message ID -> pending confirmation
	confirmations map[string]*confirmation
}

//NewDiscordListener initializes an EventSource. Nothing is received until Open is called, so that the session can
//be used to build the handler's dependencies first.
func NewDiscordListener(handler EventHandler, opts Options) (*EventSource, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("no discord bot token was provided")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}

	//Create new client
	dc, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		logrus.Warnf("Failed to create Discord gateway client due to %v", err)
		return nil, err
	}
	//Handlers only enqueue, so run them inline on the gateway goroutine to keep arrival order
	dc.SyncEvents = true
	dc.StateEnabled = true
	dc.State.TrackMembers = true

	dispatch := newEventSource(dc, handler, opts.QueueSize)

	//Register event handlers
	dc.AddHandler(dispatch.dispatchMessageCreateEvent)
	dc.AddHandler(dispatch.dispatchReactionAddEvent)
	dc.AddHandler(dispatch.dispatchMemberUpdateEvent)

	//Register intents
	dc.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions | discordgo.IntentsGuildMembers | discordgo.IntentsMessageContent
	return dispatch, nil
}

//Open starts the event loop and connects to the gateway
func (d *EventSource) Open() error {
	go d.loop()
	err := d.discordClient.Open()
	if err != nil {
		logrus.Errorf("Failed to connect to discord websockets gateway; encountered error %v", err)
		d.stopQueue()
		<-d.done
		return err
	}
	return nil
}

func newEventSource(dc *discordgo.Session, handler EventHandler, queueSize int) *EventSource {
	return &EventSource{
		discordClient: dc,
		handler:       handler,
		queue:         make(chan func(), queueSize),
		done:          make(chan struct{}),
		confirmations: make(map[string]*confirmation),
	}
}

//BotAddURL generates a URL that can be used to add the bot to a server
func (d *EventSource) BotAddURL() (*url.URL, error) {
	user, err := d.discordClient.User("@me")
	if err != nil {
		return nil, err
	}
	clientID := user.ID

	url, err := url.Parse("https://discord.com/api/oauth2/authorize")
	if err != nil {
		return nil, err
	}
	q := url.Query()
	q.Set("client_id", clientID)
	q.Set("scope", botScope)
	q.Set("permissions", fmt.Sprintf("%d", permissions))
	url.RawQuery = q.Encode()

	return url, nil
}

//Close cleanly terminates the Discord connection, then waits for every queued event to be handled
func (d *EventSource) Close() {
	logrus.Info("Terminating discord event listener...")
	_ = d.discordClient.Close()
	d.stopQueue()
	<-d.done
}

//Session returns a handle to the underlying discordgo session
func (d *EventSource) Session() *discordgo.Session {
	return d.discordClient
}

func (d *EventSource) stopQueue() {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
}

func (d *EventSource) enqueue(fn func()) {
	d.queueMu.RLock()
	defer d.queueMu.RUnlock()
	if d.closed {
		return
	}
	d.queue <- fn
}

func (d *EventSource) loop() {
	defer close(d.done)
	for fn := range d.queue {
		d.run(fn)
	}
}

func (d *EventSource) run(fn func()) {
	//Prevent panic from crashing the whole bot
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Bot handler thread panicked: %v", r)
		}
	}()
	fn()
}

func (d *EventSource) isSelf(s *discordgo.Session, userID string) bool {
	return s.State != nil && s.State.User != nil && s.State.User.ID == userID
}

func (d *EventSource) dispatchMessageCreateEvent(s *discordgo.Session, m *discordgo.MessageCreate) {
	//Ignore messages created by bot
	if m.Author == nil || d.isSelf(s, m.Author.ID) {
		logrus.Debug("Got a message from self; Ignoring.")
		return
	}
	if m.GuildID == "" {
		return
	}
	d.enqueue(func() { d.handler.HandleMessage(m) })
}

func (d *EventSource) dispatchReactionAddEvent(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if d.isSelf(s, r.UserID) || r.GuildID == "" {
		return
	}
	//Confirmations bypass the queue, since the loop may be blocked waiting for them
	if d.deliverConfirmation(r) {
		return
	}
	d.enqueue(func() { d.handler.HandleReactionAdd(r) })
}

func (d *EventSource) dispatchMemberUpdateEvent(s *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	if m.Member == nil || m.User == nil {
		return
	}
	d.enqueue(func() { d.handler.HandleMemberUpdate(m) })
}
