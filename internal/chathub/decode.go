package chathub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"duochat/backend/internal/config"
	"duochat/backend/internal/models"
	"duochat/backend/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

func newPayloadValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Decode parses one raw frame read from c into a Command. It runs on the
// connection's reader goroutine, so payload validation and the friend check
// never hold up the hub loop.
func (m *ManagerService) Decode(ctx context.Context, c Client, raw []byte) Command {
	cmd := Command{Client: c}

	var frame models.Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		cmd.Err = ErrMalformedFrame
		return cmd
	}
	cmd.Event = frame.Event

	switch frame.Event {
	case models.EventJoinConversation:
		var p models.JoinConversationPayload
		cmd.Err = m.decodePayload(frame, &p)
		if cmd.Err == nil && p.Counterpart() == "" {
			cmd.Err = invalid(frame.Event, "counterpartUserId is required")
		}
		cmd.Payload = p

	case models.EventMessageSend:
		var p models.SendMessagePayload
		cmd.Err = m.decodePayload(frame, &p)
		if cmd.Err == nil {
			cmd.Err = m.authorizeSend(ctx, c.GetUserID(), p.RecipientID)
		}
		cmd.Payload = p

	case models.EventUserTyping:
		var p models.TypingPayload
		cmd.Err = m.decodePayload(frame, &p)
		cmd.Payload = p

	case models.EventMessageRead:
		var p models.ReadPayload
		cmd.Err = m.decodePayload(frame, &p)
		if cmd.Err == nil && len(p.IDs()) == 0 {
			cmd.Err = invalid(frame.Event, "messageIds is required")
		}
		cmd.Payload = p

	case models.EventGetStatus:
		var p models.StatusRequestPayload
		cmd.Err = m.decodePayload(frame, &p)
		cmd.Payload = p

	default:
		cmd.Err = fmt.Errorf("%w: %s", ErrUnknownEvent, frame.Event)
	}
	return cmd
}

func (m *ManagerService) decodePayload(frame models.Frame, dst any) error {
	data := frame.Data
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage("{}")
	}

	if err := json.Unmarshal(data, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return invalid(frame.Event, fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type))
		}
		return invalid(frame.Event, "data must be an object")
	}

	if err := m.validate.Struct(dst); err != nil {
		return invalid(frame.Event, describeValidation(err))
	}
	return nil
}

func (m *ManagerService) authorizeSend(ctx context.Context, sender, recipient string) error {
	if m.authorizer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, config.AuthorizeTimeout)
	defer cancel()

	ok, err := m.authorizer.AreFriends(ctx, sender, recipient)
	switch {
	case errors.Is(err, storage.ErrSenderNotFound):
		return ErrUnknownSender
	case errors.Is(err, storage.ErrUserNotFound):
		return ErrUnknownUser
	case err != nil:
		logrus.WithFields(logrus.Fields{
			"function":  "authorizeSend",
			"sender":    sender,
			"recipient": recipient,
		}).WithError(err).Error("Friend lookup failed")
		return ErrSendUnavailable
	case !ok:
		return ErrNotFriends
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := lo.Map(verrs, func(fe validator.FieldError, _ int) string {
		switch fe.Tag() {
		case "required":
			return fe.Field() + " is required"
		case "min":
			return fmt.Sprintf("%s needs at least %s entries", fe.Field(), fe.Param())
		case "max":
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		default:
			return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		}
	})
	return strings.Join(msgs, ", ")
}

func invalid(event, detail string) error {
	return fmt.Errorf("%w for %s: %s", ErrInvalidPayload, event, detail)
}
