package guildmodels

import (
	"fmt"
	"regexp"
)

//MaxNicknameLength is the longest nickname the platform will accept
const MaxNicknameLength = 32

//ValidationError is returned when operator input is malformed. It is always produced before any state is mutated.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %v: %v", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %v %q: %v", e.Field, e.Value, e.Reason)
}

var snowflakeRegex = regexp.MustCompile(`^\d{15,21}$`)

//ValidateID checks that a string looks like a platform snowflake ID
func ValidateID(field, id string) error {
	if !snowflakeRegex.MatchString(id) {
		return &ValidationError{Field: field, Value: id, Reason: "not a valid id"}
	}
	return nil
}

//ValidateNickname rejects empty nicknames and those longer than MaxNicknameLength characters
func ValidateNickname(nick string) error {
	if nick == "" {
		return &ValidationError{Field: "nickname", Reason: "must not be empty"}
	}
	if len([]rune(nick)) > MaxNicknameLength {
		return &ValidationError{
			Field:  "nickname",
			Value:  nick,
			Reason: fmt.Sprintf("longer than %d characters", MaxNicknameLength),
		}
	}
	return nil
}
