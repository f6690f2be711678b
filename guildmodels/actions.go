package guildmodels

import (
	"fmt"
	"strings"
)

//Action is a punishment which can be applied to a member by an automated rule
type Action string

const (
	//ActionNone means no action has been configured
	ActionNone Action = ""
	//ActionMute assigns the guild's muted role
	ActionMute Action = "mute"
	//ActionKick removes the member from the guild
	ActionKick Action = "kick"
	//ActionBan bans the member from the guild
	ActionBan Action = "ban"
	//ActionTimeout suspends the member's ability to interact for a fixed period
	ActionTimeout Action = "timeout"
)

//AntiraidActions lists the actions accepted by the spam and external app rules
var AntiraidActions = []Action{ActionMute, ActionKick, ActionBan}

//FilterActions lists the actions accepted by the content filter
var FilterActions = []Action{ActionMute, ActionKick, ActionTimeout, ActionBan}

//ParseAction interprets an action keyword, only accepting those in allowed.
func ParseAction(keyword string, allowed []Action) (Action, error) {
	kw := Action(strings.ToLower(strings.TrimSpace(keyword)))
	for _, a := range allowed {
		if kw == a {
			return a, nil
		}
	}
	return ActionNone, &ValidationError{
		Field:  "action",
		Value:  keyword,
		Reason: fmt.Sprintf("must be one of %v", allowed),
	}
}

//Valid returns true iff the action is one of the known punishments
func (a Action) Valid() bool {
	switch a {
	case ActionMute, ActionKick, ActionBan, ActionTimeout:
		return true
	}
	return false
}

func (a Action) String() string {
	if a == ActionNone {
		return "none"
	}
	return string(a)
}
