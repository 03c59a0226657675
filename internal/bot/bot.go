package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"reportbot/internal/config"
	"reportbot/internal/intake"
	"reportbot/internal/model"
	"reportbot/internal/notify"
	"reportbot/internal/storage"
	"reportbot/internal/window"
)

const (
	pollTimeout = 30
	retryDelay  = 3 * time.Second
)

type telegramAPI interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot is the Telegram side of the service: it delivers notifications,
// records reports posted in registered channels and serves admin commands.
type Bot struct {
	api      telegramAPI
	store    storage.Storage
	recorder *intake.Recorder
	cfg      *config.Config
	log      *slog.Logger
}

// New creates a Bot with the given Telegram token, storage, and config.
func New(token string, store storage.Storage, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:      api,
		store:    store,
		recorder: intake.NewRecorder(store, window.New(cfg.Location), cfg.DayOffPhrase, log),
		cfg:      cfg,
		log:      log,
	}, nil
}

// update is the subset of a Bot API update the bot consumes. Messages are
// decoded with their forum thread, which tgbotapi.Message does not carry.
type update struct {
	UpdateID      int                     `json:"update_id"`
	Message       *message                `json:"message"`
	CallbackQuery *tgbotapi.CallbackQuery `json:"callback_query"`
}

type message struct {
	tgbotapi.Message
	MessageThreadID int  `json:"message_thread_id"`
	IsTopicMessage  bool `json:"is_topic_message"`
}

// destination is the chat and topic the message was posted in. Reply
// threads outside forum topics belong to the chat itself.
func (m *message) destination() model.Destination {
	dest := model.Destination{ChatID: m.Chat.ID}
	if m.IsTopicMessage {
		dest.ThreadID = m.MessageThreadID
	}
	return dest
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
// A poll in flight is finished before Run returns.
func (b *Bot) Run(ctx context.Context) {
	offset := 0
	for ctx.Err() == nil {
		updates, err := b.getUpdates(offset)
		if err != nil {
			b.log.Error("get updates", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}
		for _, u := range updates {
			offset = u.UpdateID + 1
			b.handleUpdate(ctx, u)
		}
	}
}

func (b *Bot) getUpdates(offset int) ([]update, error) {
	params := tgbotapi.Params{}
	params.AddNonZero("offset", offset)
	params.AddNonZero("timeout", pollTimeout)
	params["allowed_updates"] = `["message","callback_query"]`

	resp, err := b.api.MakeRequest("getUpdates", params)
	if err != nil {
		return nil, err
	}
	var updates []update
	if err := json.Unmarshal(resp.Result, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return updates, nil
}

func (b *Bot) handleUpdate(ctx context.Context, u update) {
	if u.CallbackQuery != nil {
		b.handleCallback(ctx, u.CallbackQuery)
		return
	}
	msg := u.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	if !msg.IsCommand() {
		b.handleReport(ctx, msg)
		return
	}
	if !b.cfg.IsUserAllowed(msg.From.ID) {
		b.reply(msg.destination(), "Access denied.")
		return
	}
	b.handleCommand(ctx, msg)
}

// handleReport passes a regular group message to report intake.
func (b *Bot) handleReport(ctx context.Context, msg *message) {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	photos := 0
	if len(msg.Photo) > 0 {
		photos = 1
	}

	results, err := b.recorder.Record(ctx, intake.Message{
		Dest:       msg.destination(),
		UserID:     msg.From.ID,
		MessageID:  msg.MessageID,
		Text:       text,
		PhotoCount: photos,
		SentAt:     msg.Time(),
	})
	if err != nil {
		b.log.Error("record message", "chat_id", msg.Chat.ID, "user_id", msg.From.ID, "error", err)
		return
	}
	for _, r := range results {
		b.log.Info("report recorded",
			"chat_id", msg.Chat.ID,
			"user_id", msg.From.ID,
			"event", r.Event.String(),
			"action", string(r.Action),
		)
	}
}

// Deliver sends text to a chat or forum topic. Errors reported by the Bot
// API mean the message was not posted and wrap notify.ErrRejected; any
// other failure leaves the outcome unknown.
func (b *Bot) Deliver(_ context.Context, dest model.Destination, text string) error {
	return b.send(dest, text, nil)
}

func (b *Bot) send(dest model.Destination, text string, markup any) error {
	params := tgbotapi.Params{
		"chat_id":                  strconv.FormatInt(dest.ChatID, 10),
		"text":                     text,
		"disable_web_page_preview": "true",
	}
	params.AddNonZero("message_thread_id", dest.ThreadID)
	if markup != nil {
		raw, err := json.Marshal(markup)
		if err != nil {
			return fmt.Errorf("encode reply markup: %w", err)
		}
		params["reply_markup"] = string(raw)
	}

	if _, err := b.api.MakeRequest("sendMessage", params); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			return fmt.Errorf("%w: %d %s", notify.ErrRejected, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (b *Bot) reply(dest model.Destination, text string) {
	if err := b.send(dest, text, nil); err != nil {
		b.log.Error("send message", "chat_id", dest.ChatID, "thread_id", dest.ThreadID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	dest := msg.destination()

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", dest.ChatID, "thread_id", dest.ThreadID)

	switch cmd {
	case "start":
		b.handleStart(dest)
	case "help":
		b.handleHelp(dest)
	case "register":
		b.handleRegister(ctx, dest, args, msg.Chat.Title)
	case "pause":
		b.handleSetActive(ctx, dest, false)
	case "resume":
		b.handleSetActive(ctx, dest, true)
	case "track":
		b.handleTrack(ctx, msg, args)
	case "untrack":
		b.handleUntrack(ctx, msg)
	case "users":
		b.handleUsers(ctx, dest)
	case cmdAddSimple, cmdAddDated, cmdAddCheckout, cmdAddWindow, cmdAddKeywordWindow:
		b.handleAddEvent(ctx, msg, cmd, args)
	case "events":
		b.handleEvents(ctx, dest)
	case "remove":
		b.handleRemove(ctx, dest, args)
	default:
		b.reply(dest, "Unknown command. Use /help for a list of commands.")
	}
}
