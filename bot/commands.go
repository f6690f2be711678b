package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/marshal/db"
	"github.com/callummance/marshal/discord"
	"github.com/callummance/marshal/guildmodels"
	"github.com/sirupsen/logrus"
)

type commandHandler func(b *Marshal, inv *invocation) CommandResponse

var commandTable = map[string]commandHandler{
	"autoreact":  (*Marshal).handleAutoreact,
	"antiraid":   (*Marshal).handleAntiraid,
	"forcenick":  (*Marshal).handleForcenick,
	"autoremove": (*Marshal).handleAutoremove,
	"log":        (*Marshal).handleLog,
	"role":       (*Marshal).handleRole,
	"filter":     (*Marshal).handleFilter,
	"mute":       (*Marshal).handleMute,
	"unmute":     (*Marshal).handleUnmute,
	"reconcile":  (*Marshal).handleReconcile,
	"status":     (*Marshal).handleStatus,
}

//invocation is a single run of a command
type invocation struct {
	msg *discordgo.MessageCreate
	//Command name including the prefix
	command string
	//Everything after the command name
	args string
}

func (inv *invocation) guildID() string {
	return inv.msg.GuildID
}

func (inv *invocation) tokens() []string {
	return strings.Fields(inv.args)
}

func (inv *invocation) success(description string, data map[string]string) CommandResponse {
	return ResponseSuccess{command: inv.command, commandMsg: inv.msg.Content, description: description, data: data, timestamp: time.Now()}
}

func (inv *invocation) partial(description string, data map[string]string) CommandResponse {
	return ResponsePartialSuccess{command: inv.command, commandMsg: inv.msg.Content, description: description, data: data, timestamp: time.Now()}
}

func (inv *invocation) unchanged(description string) CommandResponse {
	return ResponseUnchanged{command: inv.command, commandMsg: inv.msg.Content, description: description, timestamp: time.Now()}
}

func (inv *invocation) info(title, description string, data map[string]string) CommandResponse {
	return ResponseInfo{command: inv.command, commandMsg: inv.msg.Content, title: title, description: description, data: data, timestamp: time.Now()}
}

func (inv *invocation) syntaxError(description, syntax string) CommandResponse {
	return ResponseSyntaxError{command: inv.command, commandMsg: inv.msg.Content, description: description, syntax: syntax, timestamp: time.Now()}
}

func (inv *invocation) declined() CommandResponse {
	return ResponseDeclined{command: inv.command, commandMsg: inv.msg.Content, timestamp: time.Now()}
}

//failed converts an error into a response: bad input becomes a syntax error, everything else an internal error
func (inv *invocation) failed(err error, syntax string) CommandResponse {
	var verr *guildmodels.ValidationError
	if errors.As(err, &verr) {
		return inv.syntaxError(verr.Error(), syntax)
	}
	data := map[string]string{}
	var perr *db.PersistenceError
	if errors.As(err, &perr) {
		data["Cause"] = "The change could not be saved"
	}
	return ResponseInternalError{command: inv.command, commandMsg: inv.msg.Content, description: err.Error(), data: data, timestamp: time.Now()}
}

//handleCommand runs a prefixed message as a command and replies with the result, which is also returned.
//Messages naming no known command are ignored and nil is returned.
func (b *Marshal) handleCommand(msg *discordgo.MessageCreate) CommandResponse {
	words := strings.SplitN(strings.TrimPrefix(msg.Content, b.prefix), " ", 2)
	name := strings.ToLower(words[0])
	handler, ok := commandTable[name]
	if !ok {
		return nil
	}
	inv := &invocation{msg: msg, command: b.prefix + name}
	if len(words) > 1 {
		inv.args = strings.TrimSpace(words[1])
	}

	var result CommandResponse
	isFromAdmin, err := b.isFromAdmin(msg)
	if err != nil {
		logrus.Warnf("Failed to check if message came from admin due to error %v", err)
		result = inv.failed(err, "")
	} else if !isFromAdmin {
		result = ResponseNotAllowed{
			command:     inv.command,
			commandMsg:  msg.Content,
			description: "Only the server owner or members with Manage Server can configure moderation.",
			timestamp:   time.Now(),
		}
	} else {
		result = handler(b, inv)
	}
	b.respond(inv, result)
	return result
}

//respond logs the result, replies to the command and posts completed commands to the moderation log
func (b *Marshal) respond(inv *invocation, result CommandResponse) {
	result.WriteToLog()
	if err := b.gateway.Reply(inv.msg.Message, result.DiscordResponse()); err != nil {
		logrus.Errorf("Failed to send response to command due to error %v", err)
	}
	if entry := result.LogEntry(); entry != "" {
		b.Engine.Notifier().Notify(b.ctx, inv.guildID(), fmt.Sprintf("<@%v> used `%v`: %v", inv.msg.Author.ID, inv.msg.Content, entry))
	}
}

//confirm asks the command's author to confirm a destructive change. It returns nil if they did, or the response
//to send otherwise.
func (b *Marshal) confirm(inv *invocation, prompt string) CommandResponse {
	ok, err := b.gateway.AwaitConfirmation(b.ctx, inv.msg.ChannelID, inv.msg.Author.ID, prompt, discord.ConfirmationTimeout)
	if err != nil {
		logrus.Warnf("Failed to ask for confirmation due to error %v", err)
		return inv.failed(err, "")
	}
	if !ok {
		return inv.declined()
	}
	return nil
}
