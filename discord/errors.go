package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/marshal/moderation"
)

//classify wraps expected REST failures with the matching moderation sentinel so that callers can skip them
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return fmt.Errorf("failed to %v: %w", op, err)
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return fmt.Errorf("failed to %v: %w: %v", op, moderation.ErrPermissionDenied, err)
		case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMember,
			discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownRole:
			return fmt.Errorf("failed to %v: %w: %v", op, moderation.ErrNotFound, err)
		}
	}
	if restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("failed to %v: %w: %v", op, moderation.ErrPermissionDenied, err)
		case http.StatusNotFound:
			return fmt.Errorf("failed to %v: %w: %v", op, moderation.ErrNotFound, err)
		}
	}
	return fmt.Errorf("failed to %v: %w", op, err)
}
