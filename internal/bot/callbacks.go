package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"reportbot/internal/model"
)

const (
	cbDelete = "delete"
	cbCancel = "noop"
)

// handleCallback answers the buttons of the delete confirmation by editing
// the confirmation message in place.
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil || cb.From == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	if !b.cfg.IsUserAllowed(cb.From.ID) {
		return
	}

	parts := strings.SplitN(cb.Data, ":", 2)
	if len(parts) != 2 {
		return
	}
	action := parts[0]
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return
	}

	b.log.Info("callback",
		"action", action,
		"id", id,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cbCancel:
		b.edit(chatID, messageID, "Cancelled.")
	case cbDelete:
		b.edit(chatID, messageID, b.deleteEvent(ctx, chatID, id))
	}
}

// deleteEvent removes an event of a channel in chatID and returns the
// text to show.
func (b *Bot) deleteEvent(ctx context.Context, chatID, id int64) string {
	ev, err := b.store.GetEvent(ctx, id)
	if err != nil {
		return fmt.Sprintf("Event #%d not found.", id)
	}
	ch, err := b.store.GetChannel(ctx, ev.Base().ChannelID)
	if err != nil || ch.ChatID != chatID {
		return fmt.Sprintf("Event #%d not found.", id)
	}

	deleted, err := b.store.DeleteEvent(ctx, id)
	if err != nil {
		return fmt.Sprintf("Error deleting event: %v", err)
	}
	if !deleted {
		return fmt.Sprintf("Event #%d not found.", id)
	}
	b.log.Info("event deleted", "channel_id", ch.ID, "event_id", id)
	return fmt.Sprintf("Event #%d \"%s\" deleted.", id, model.EventTitle(ev))
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	if _, err := b.api.Request(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		b.log.Error("edit message", "chat_id", chatID, "error", err)
	}
}
