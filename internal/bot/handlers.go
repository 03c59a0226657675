package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"reportbot/internal/model"
	"reportbot/internal/storage"
	"reportbot/internal/window"
)

func (b *Bot) handleStart(dest model.Destination) {
	b.reply(dest, `Welcome to Report Bot!

I track daily reports in this chat and remind whoever is late.

Quick start:
1. /register - start tracking this chat (or topic)
2. /track <name> - reply to a member's message to track them
3. /add_simple <keyword> <HH:MM> - require a daily report

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(dest model.Destination) {
	b.reply(dest, `Channel:
/register [title] - register this chat or topic
/pause - stop reminders here
/resume - resume reminders

Members:
/track <name> [store:<id>] - track the author of the replied message
/untrack - stop tracking the author of the replied message
/users - list tracked members

Events:
/add_simple <keyword> <HH:MM> [photos]
/add_dated <YYYY-MM-DD> <keyword> <HH:MM> [photos]
/add_checkout <keyword> <HH:MM> <keyword> <HH:MM> [photos] [publish HH:MM]
/add_window <HH:MM> <HH:MM>
/add_keyword_window <keyword> <HH:MM> <HH:MM> [description]
/events - list events
/remove <id> - delete an event

Members sharing a name count as one: a report from any of them is enough.`)
}

// channelFor returns the channel registered for dest, replying with the
// reason when there is none.
func (b *Bot) channelFor(ctx context.Context, dest model.Destination) (*model.Channel, bool) {
	ch, err := b.store.FindChannel(ctx, dest)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(dest, "This chat is not registered. Use /register first.")
		return nil, false
	}
	if err != nil {
		b.reply(dest, fmt.Sprintf("Error: %v", err))
		return nil, false
	}
	return ch, true
}

func (b *Bot) handleRegister(ctx context.Context, dest model.Destination, args, chatTitle string) {
	ch, err := b.store.FindChannel(ctx, dest)
	switch {
	case err == nil:
		if !ch.IsActive {
			if err := b.store.SetChannelActive(ctx, ch.ID, true); err != nil {
				b.reply(dest, fmt.Sprintf("Error: %v", err))
				return
			}
		}
		b.reply(dest, fmt.Sprintf("Channel #%d \"%s\" is already registered.", ch.ID, ch.Title))
		return
	case !errors.Is(err, storage.ErrNotFound):
		b.reply(dest, fmt.Sprintf("Error: %v", err))
		return
	}

	title := args
	if title == "" {
		title = chatTitle
	}
	if title == "" {
		title = fmt.Sprintf("chat %d", dest.ChatID)
	}

	ch = &model.Channel{ChatID: dest.ChatID, ThreadID: dest.ThreadID, Title: title, IsActive: true}
	if err := b.store.CreateChannel(ctx, ch); err != nil {
		b.reply(dest, fmt.Sprintf("Failed to register channel: %v", err))
		return
	}
	b.log.Info("channel registered", "channel_id", ch.ID, "chat_id", ch.ChatID, "thread_id", ch.ThreadID)
	b.reply(dest, fmt.Sprintf("Channel #%d \"%s\" registered.\nUse /track to add members and /add_simple to add an event.", ch.ID, ch.Title))
}

func (b *Bot) handleSetActive(ctx context.Context, dest model.Destination, active bool) {
	ch, ok := b.channelFor(ctx, dest)
	if !ok {
		return
	}
	if err := b.store.SetChannelActive(ctx, ch.ID, active); err != nil {
		b.reply(dest, fmt.Sprintf("Error: %v", err))
		return
	}
	state := "paused"
	if active {
		state = "resumed"
	}
	b.reply(dest, fmt.Sprintf("Channel #%d \"%s\" %s.", ch.ID, ch.Title, state))
}

// target is the author of the replied message, or the sender when the
// command is not a reply.
func target(msg *message) *tgbotapi.User {
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		return msg.ReplyToMessage.From
	}
	return msg.From
}

func (b *Bot) handleTrack(ctx context.Context, msg *message, args string) {
	dest := msg.destination()
	ch, ok := b.channelFor(ctx, dest)
	if !ok {
		return
	}

	user := target(msg)
	name, storeID := ParseTrackArgs(args)
	if name == "" {
		name = strings.TrimSpace(user.FirstName + " " + user.LastName)
	}

	u := &model.TrackedUser{
		ChannelID:   ch.ID,
		UserID:      user.ID,
		Username:    user.UserName,
		DisplayName: name,
		StoreID:     storeID,
	}
	if err := b.store.AddTrackedUser(ctx, u); err != nil {
		b.reply(dest, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(dest, fmt.Sprintf("Tracking %s as \"%s\".", u.Mention(), u.DisplayName))
}

func (b *Bot) handleUntrack(ctx context.Context, msg *message) {
	dest := msg.destination()
	ch, ok := b.channelFor(ctx, dest)
	if !ok {
		return
	}

	user := target(msg)
	u, err := b.store.FindTrackedUser(ctx, ch.ID, user.ID)
	if err != nil {
		b.reply(dest, "This member is not tracked.")
		return
	}
	if err := b.store.RemoveTrackedUser(ctx, ch.ID, user.ID); err != nil {
		b.reply(dest, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(dest, fmt.Sprintf("Stopped tracking %s.", u.Mention()))
}

func (b *Bot) handleUsers(ctx context.Context, dest model.Destination) {
	ch, ok := b.channelFor(ctx, dest)
	if !ok {
		return
	}
	users, err := b.store.ListTrackedUsers(ctx, ch.ID)
	if err != nil {
		b.reply(dest, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(dest, FormatUserList(users))
}

func (b *Bot) handleAddEvent(ctx context.Context, msg *message, cmd, args string) {
	dest := msg.destination()
	ch, ok := b.channelFor(ctx, dest)
	if !ok {
		return
	}

	ev, err := ParseEvent(cmd, args)
	if err != nil {
		b.reply(dest, err.Error())
		return
	}

	switch e := ev.(type) {
	case *model.EphemeralEvent:
		today := window.New(b.cfg.Location).Today(time.Now())
		if e.Date.Before(today) {
			b.reply(dest, fmt.Sprintf("Date %s is in the past.", e.Date))
			return
		}
	case *model.KeywordWindowEvent:
		if reply := msg.ReplyToMessage; reply != nil && len(reply.Photo) > 0 {
			e.ReferencePhoto = reply.Photo[len(reply.Photo)-1].FileID
		}
	}

	ev.Base().ChannelID = ch.ID
	if err := b.store.CreateEvent(ctx, ev); err != nil {
		b.reply(dest, fmt.Sprintf("Failed to save event: %v", err))
		return
	}
	b.log.Info("event created", "channel_id", ch.ID, "event", model.RefOf(ev).String())
	b.reply(dest, "Event added:\n"+FormatEvent(ev))
}

func (b *Bot) handleEvents(ctx context.Context, dest model.Destination) {
	ch, ok := b.channelFor(ctx, dest)
	if !ok {
		return
	}
	events, err := b.store.ListChannelEvents(ctx, ch.ID)
	if err != nil {
		b.reply(dest, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(dest, FormatEventList(ch, events))
}

// channelEvent returns event id if it belongs to ch.
func (b *Bot) channelEvent(ctx context.Context, ch *model.Channel, id int64) (model.Event, bool) {
	ev, err := b.store.GetEvent(ctx, id)
	if err != nil || ev.Base().ChannelID != ch.ID {
		return nil, false
	}
	return ev, true
}

func (b *Bot) handleRemove(ctx context.Context, dest model.Destination, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(dest, "Usage: /remove <id>")
		return
	}
	ch, ok := b.channelFor(ctx, dest)
	if !ok {
		return
	}
	ev, ok := b.channelEvent(ctx, ch, id)
	if !ok {
		b.reply(dest, fmt.Sprintf("Event #%d not found.", id))
		return
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, delete", fmt.Sprintf("%s:%d", cbDelete, id)),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", cbCancel+":0"),
		),
	)
	text := fmt.Sprintf("Delete #%d \"%s\"? Its reports are deleted too.", id, model.EventTitle(ev))
	if err := b.send(dest, text, markup); err != nil {
		b.log.Error("send delete confirmation", "error", err)
	}
}
