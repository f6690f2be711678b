package bot

import (
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const (
	successMessageColour int = 0x28bd00
	warnMessageColour    int = 0xbdb900
	errorMessageColour   int = 0xbd1b00
	infoMessageColour    int = 0x1b6fbd
)

//CommandResponse represents the result of a command which can be both communicated over discord and written to the log.
type CommandResponse interface {
	DiscordResponse() *discordgo.MessageSend
	WriteToLog()
	//LogEntry is posted to the guild's moderation log after the command, or is empty if the command changed nothing
	LogEntry() string
}

//ResponseSuccess will be returned when a command has been successfully completed
type ResponseSuccess struct {
	//The base command name
	command string
	//The entire text contents of the message
	commandMsg string
	//A human-readable summary of what was done
	description string
	//Extra fields to include in the embed
	data map[string]string
	//The time the success was logged at
	timestamp time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseSuccess) DiscordResponse() *discordgo.MessageSend {
	return embedMessage("Done!", r.description, successMessageColour, r.timestamp, r.data)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseSuccess) WriteToLog() {
	logrus.Infof("%v Completed command %v successfully.", logLineLabel(r.timestamp), r.commandMsg)
}

func (r ResponseSuccess) LogEntry() string {
	return r.description
}

//ResponsePartialSuccess will be returned when a command has executed but with issues
type ResponsePartialSuccess struct {
	command     string
	commandMsg  string
	description string
	data        map[string]string
	timestamp   time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponsePartialSuccess) DiscordResponse() *discordgo.MessageSend {
	description := fmt.Sprintf("Completed %v command but with errors: \n%v", r.command, r.description)
	return embedMessage("Partial success...", description, warnMessageColour, r.timestamp, r.data)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponsePartialSuccess) WriteToLog() {
	logrus.Infof("%v Completed command %v but with errors: %v | data: %v", logLineLabel(r.timestamp), r.commandMsg, r.description, r.data)
}

func (r ResponsePartialSuccess) LogEntry() string {
	return r.description
}

//ResponseUnchanged will be returned when a command was valid but there was nothing for it to do
type ResponseUnchanged struct {
	command     string
	commandMsg  string
	description string
	timestamp   time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseUnchanged) DiscordResponse() *discordgo.MessageSend {
	return embedMessage("Nothing to do", r.description, warnMessageColour, r.timestamp, nil)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseUnchanged) WriteToLog() {
	logrus.Infof("%v Command %v changed nothing: %v", logLineLabel(r.timestamp), r.commandMsg, r.description)
}

func (r ResponseUnchanged) LogEntry() string {
	return ""
}

//ResponseSyntaxError will be returned when there was an issue with the user's input
type ResponseSyntaxError struct {
	command     string
	commandMsg  string
	description string
	//A description of the correct syntax
	syntax    string
	timestamp time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseSyntaxError) DiscordResponse() *discordgo.MessageSend {
	description := fmt.Sprintf("Sorry, but there was a problem with the data you supplied for the %v command: \n%v", r.command, r.description)
	fields := map[string]string{
		"Your command":   r.commandMsg,
		"Correct syntax": r.syntax,
	}
	return embedMessage("Uh-oh, there was something wrong with that command", description, errorMessageColour, r.timestamp, fields)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseSyntaxError) WriteToLog() {
	logrus.Infof("%v Syntax error in command %v: %v", logLineLabel(r.timestamp), r.commandMsg, r.description)
}

func (r ResponseSyntaxError) LogEntry() string {
	return ""
}

//ResponseInternalError will be returned when there was some kind of error within the bot or when communicating with
//APIs, including failing to save a change
type ResponseInternalError struct {
	command     string
	commandMsg  string
	description string
	data        map[string]string
	timestamp   time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseInternalError) DiscordResponse() *discordgo.MessageSend {
	description := fmt.Sprintf("Oops! I encountered an error whilst running your %v command, so nothing was changed. Please try again later.", r.command)
	data := map[string]string{"Error": r.description}
	for k, v := range r.data {
		data[k] = v
	}
	return embedMessage("Oops, something went wrong", description, errorMessageColour, r.timestamp, data)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseInternalError) WriteToLog() {
	logrus.Warnf("%v Internal error whilst executing command %v: %v | data: %v", logLineLabel(r.timestamp), r.commandMsg, r.description, r.data)
}

func (r ResponseInternalError) LogEntry() string {
	return ""
}

//ResponseNotAllowed will be returned when a user tried to run a command without being a server manager
type ResponseNotAllowed struct {
	command     string
	commandMsg  string
	description string
	timestamp   time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseNotAllowed) DiscordResponse() *discordgo.MessageSend {
	fields := map[string]string{
		"Reason":  r.description,
		"Command": r.commandMsg,
	}
	return embedMessage("Not allowed", "I'm sorry Dave, I can't let you do that...", errorMessageColour, r.timestamp, fields)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseNotAllowed) WriteToLog() {
	logrus.Infof("%v Rejected command `%v` as the sender did not have the correct priveliges | description: %v", logLineLabel(r.timestamp), r.commandMsg, r.description)
}

func (r ResponseNotAllowed) LogEntry() string {
	return ""
}

//ResponseDeclined will be returned when a confirmation prompt was declined or timed out
type ResponseDeclined struct {
	command    string
	commandMsg string
	timestamp  time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseDeclined) DiscordResponse() *discordgo.MessageSend {
	return embedMessage("Cancelled", fmt.Sprintf("The %v command was not confirmed, so nothing was changed.", r.command), warnMessageColour, r.timestamp, nil)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseDeclined) WriteToLog() {
	logrus.Infof("%v Command %v was not confirmed", logLineLabel(r.timestamp), r.commandMsg)
}

func (r ResponseDeclined) LogEntry() string {
	return ""
}

//ResponseInfo will be returned by read-only commands such as listings
type ResponseInfo struct {
	command     string
	commandMsg  string
	title       string
	description string
	data        map[string]string
	timestamp   time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseInfo) DiscordResponse() *discordgo.MessageSend {
	return embedMessage(r.title, r.description, infoMessageColour, r.timestamp, r.data)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseInfo) WriteToLog() {
	logrus.Debugf("%v Answered query %v", logLineLabel(r.timestamp), r.commandMsg)
}

func (r ResponseInfo) LogEntry() string {
	return ""
}

/////////////////////
//Utility Functions//
/////////////////////
func embedMessage(title, description string, colour int, t time.Time, fields map[string]string) *discordgo.MessageSend {
	embed := discordgo.MessageEmbed{
		Title:       title,
		Type:        discordgo.EmbedTypeRich,
		Description: description,
		Timestamp:   t.Format(time.RFC3339),
		Color:       colour,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Log ID: %d", t.UnixNano()),
		},
		Fields: stringMapToFields(fields),
	}
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{&embed},
	}
}

func logLineLabel(t time.Time) string {
	return fmt.Sprintf("#%v# | ", t.UnixNano())
}

//stringMapToFields converts a map to embed fields, sorted by name so that responses are stable
func stringMapToFields(fields map[string]string) []*discordgo.MessageEmbedField {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	var res []*discordgo.MessageEmbedField
	for _, name := range names {
		res = append(res, &discordgo.MessageEmbedField{
			Name:   name,
			Value:  fields[name],
			Inline: false,
		})
	}
	return res
}
