package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"reportbot/internal/config"
	"reportbot/internal/intake"
	"reportbot/internal/model"
	"reportbot/internal/notify"
	"reportbot/internal/storage"
	"reportbot/internal/window"
)

// --- mocks ---

type sentMsg struct {
	ChatID   int64
	ThreadID int
	Text     string
	Markup   string
}

type mockAPI struct {
	mu      sync.Mutex
	sent    []sentMsg
	edits   []string
	updates string
	sendErr error
}

func (m *mockAPI) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch endpoint {
	case "getUpdates":
		result := m.updates
		if result == "" {
			result = "[]"
		}
		return &tgbotapi.APIResponse{Ok: true, Result: json.RawMessage(result)}, nil
	case "sendMessage":
		if m.sendErr != nil {
			return nil, m.sendErr
		}
		chatID, _ := strconv.ParseInt(params["chat_id"], 10, 64)
		threadID, _ := strconv.Atoi(params["message_thread_id"])
		m.sent = append(m.sent, sentMsg{
			ChatID:   chatID,
			ThreadID: threadID,
			Text:     params["text"],
			Markup:   params["reply_markup"],
		})
	}
	return &tgbotapi.APIResponse{Ok: true, Result: json.RawMessage("{}")}, nil
}

func (m *mockAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if edit, ok := c.(tgbotapi.EditMessageTextConfig); ok {
		m.mu.Lock()
		m.edits = append(m.edits, edit.Text)
		m.mu.Unlock()
	}
	return &tgbotapi.APIResponse{Ok: true, Result: json.RawMessage("true")}, nil
}

func (m *mockAPI) last() sentMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMsg{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockAPI) lastText() string {
	return m.last().Text
}

func (m *mockAPI) lastEdit() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.edits) == 0 {
		return ""
	}
	return m.edits[len(m.edits)-1]
}

func (m *mockAPI) allTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, s := range m.sent {
		out[i] = s.Text
	}
	return out
}

func (m *mockAPI) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.edits = nil
}

// --- helpers ---

const (
	testChat   = int64(-100300)
	testThread = 5
	adminID    = int64(1)
	memberID   = int64(2)
)

var testDest = model.Destination{ChatID: testChat, ThreadID: testThread}

var ignoreUserID = cmpopts.IgnoreFields(model.TrackedUser{}, "ID")

func newTestBot(t *testing.T) (*Bot, *mockAPI, *storage.SQLite) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		AllowedUsers: []int64{adminID},
		Location:     time.UTC,
		DayOffPhrase: "day off",
	}
	api := &mockAPI{}
	b := &Bot{
		api:      api,
		store:    store,
		recorder: intake.NewRecorder(store, window.New(cfg.Location), cfg.DayOffPhrase, log),
		cfg:      cfg,
		log:      log,
	}
	return b, api, store
}

func makeMsg(from int64, text string) *message {
	msg := &message{
		Message: tgbotapi.Message{
			MessageID: 10,
			From:      &tgbotapi.User{ID: from, UserName: fmt.Sprintf("user%d", from), FirstName: "User"},
			Chat:      &tgbotapi.Chat{ID: testChat, Type: "supergroup", Title: "Stores"},
			Date:      int(time.Now().Unix()),
			Text:      text,
		},
		MessageThreadID: testThread,
		IsTopicMessage:  true,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return msg
}

func command(b *Bot, from int64, text string) {
	b.handleUpdate(context.Background(), update{Message: makeMsg(from, text)})
}

func seedChannel(t *testing.T, store *storage.SQLite) *model.Channel {
	t.Helper()
	ch := &model.Channel{ChatID: testChat, ThreadID: testThread, Title: "Stores", IsActive: true}
	if err := store.CreateChannel(context.Background(), ch); err != nil {
		t.Fatalf("seed channel: %v", err)
	}
	return ch
}

func seedEvent(t *testing.T, store *storage.SQLite, ev model.Event) model.Event {
	t.Helper()
	if err := store.CreateEvent(context.Background(), ev); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return ev
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("reply missing %q, got:\n%s", want, got)
	}
}

// --- delivery ---

func TestDeliver(t *testing.T) {
	ctx := context.Background()

	t.Run("posts into the thread", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		if err := b.Deliver(ctx, testDest, "hello"); err != nil {
			t.Fatalf("deliver: %v", err)
		}
		want := sentMsg{ChatID: testChat, ThreadID: testThread, Text: "hello"}
		if diff := cmp.Diff(want, api.last()); diff != "" {
			t.Errorf("sent (-want +got):\n%s", diff)
		}
	})

	t.Run("no thread for plain chats", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		if err := b.Deliver(ctx, model.Destination{ChatID: testChat}, "hello"); err != nil {
			t.Fatalf("deliver: %v", err)
		}
		if diff := cmp.Diff(0, api.last().ThreadID); diff != "" {
			t.Errorf("thread (-want +got):\n%s", diff)
		}
	})

	t.Run("api error is a rejection", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		api.sendErr = &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was kicked"}
		err := b.Deliver(ctx, testDest, "hello")
		if !errors.Is(err, notify.ErrRejected) {
			t.Errorf("err = %v, want ErrRejected", err)
		}
	})

	t.Run("transport error is not a rejection", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		api.sendErr = errors.New("connection reset by peer")
		err := b.Deliver(ctx, testDest, "hello")
		if err == nil || errors.Is(err, notify.ErrRejected) {
			t.Errorf("err = %v, want non-rejection error", err)
		}
	})
}

func TestGetUpdatesDecodesThread(t *testing.T) {
	b, api, _ := newTestBot(t)
	api.updates = `[
		{"update_id": 7, "message": {"message_id": 1, "date": 1715335200, "text": "hi",
			"chat": {"id": -100300, "type": "supergroup"}, "from": {"id": 2, "is_bot": false, "first_name": "A"},
			"message_thread_id": 5, "is_topic_message": true}},
		{"update_id": 8, "message": {"message_id": 2, "date": 1715335200, "text": "re",
			"chat": {"id": -100300, "type": "supergroup"}, "from": {"id": 2, "is_bot": false, "first_name": "A"},
			"message_thread_id": 1}}
	]`

	updates, err := b.getUpdates(0)
	if err != nil {
		t.Fatalf("get updates: %v", err)
	}
	if diff := cmp.Diff(2, len(updates)); diff != "" {
		t.Fatalf("update count (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(testDest, updates[0].Message.destination()); diff != "" {
		t.Errorf("topic message destination (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(model.Destination{ChatID: testChat}, updates[1].Message.destination()); diff != "" {
		t.Errorf("reply thread destination (-want +got):\n%s", diff)
	}
}

// --- commands ---

func TestHandleCommand(t *testing.T) {
	b, api, _ := newTestBot(t)

	cmds := []struct {
		text     string
		contains string
	}{
		{"/start", "Welcome"},
		{"/help", "/add_checkout"},
		{"/events", "not registered"},
		{"/unknown_cmd", "Unknown command"},
	}
	for _, tc := range cmds {
		api.reset()
		command(b, adminID, tc.text)
		requireContains(t, api.lastText(), tc.contains)
	}
}

func TestAccessDenied(t *testing.T) {
	b, api, store := newTestBot(t)
	command(b, memberID, "/register")
	requireContains(t, api.lastText(), "Access denied")

	if _, err := store.FindChannel(context.Background(), testDest); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("channel should not exist, err = %v", err)
	}
}

func TestHandleRegister(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)

	command(b, adminID, "/register")
	requireContains(t, api.lastText(), "registered")
	if diff := cmp.Diff(testThread, api.last().ThreadID); diff != "" {
		t.Errorf("reply thread (-want +got):\n%s", diff)
	}

	ch, err := store.FindChannel(ctx, testDest)
	if err != nil {
		t.Fatalf("find channel: %v", err)
	}
	if diff := cmp.Diff("Stores", ch.Title); diff != "" {
		t.Errorf("title (-want +got):\n%s", diff)
	}

	command(b, adminID, "/pause")
	requireContains(t, api.lastText(), "paused")
	ch, _ = store.FindChannel(ctx, testDest)
	if ch.IsActive {
		t.Error("channel should be paused")
	}

	command(b, adminID, "/register Other")
	requireContains(t, api.lastText(), "already registered")
	ch, _ = store.FindChannel(ctx, testDest)
	if !ch.IsActive {
		t.Error("register should reactivate a paused channel")
	}
}

func TestHandleTrack(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)
	ch := seedChannel(t, store)

	msg := makeMsg(adminID, "/track Store 1 store:S-01")
	msg.ReplyToMessage = &tgbotapi.Message{From: &tgbotapi.User{ID: memberID, UserName: "cashier"}}
	b.handleUpdate(ctx, update{Message: msg})
	requireContains(t, api.lastText(), "Tracking @cashier as \"Store 1\"")

	u, err := store.FindTrackedUser(ctx, ch.ID, memberID)
	if err != nil {
		t.Fatalf("find tracked user: %v", err)
	}
	want := model.TrackedUser{ChannelID: ch.ID, UserID: memberID, Username: "cashier", DisplayName: "Store 1", StoreID: "S-01"}
	if diff := cmp.Diff(want, *u, ignoreUserID); diff != "" {
		t.Errorf("tracked user (-want +got):\n%s", diff)
	}

	command(b, adminID, "/users")
	requireContains(t, api.lastText(), "Store 1 (@cashier) store S-01")

	untrack := makeMsg(adminID, "/untrack")
	untrack.ReplyToMessage = &tgbotapi.Message{From: &tgbotapi.User{ID: memberID}}
	b.handleUpdate(ctx, update{Message: untrack})
	requireContains(t, api.lastText(), "Stopped tracking @cashier")

	b.handleUpdate(ctx, update{Message: untrack})
	requireContains(t, api.lastText(), "not tracked")
}

func TestHandleAddEvent(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		text     string
		contains string
		created  bool
	}{
		{"simple", "/add_simple report 10:00 1", "daily \"report\" by 10:00 (1 photo)", true},
		{"dated", "/add_dated 2999-01-01 inventory 18:00", "on 2999-01-01 \"inventory\"", true},
		{"dated in the past", "/add_dated 2000-01-01 inventory 18:00", "in the past", false},
		{"checkout", "/add_checkout open 09:00 close 21:00 2 22:30", "summary at 22:30", true},
		{"window", "/add_window 08:00 09:00", "photo between 08:00 and 09:00", true},
		{"keyword window", "/add_keyword_window shelf 12:00 13:00 front shelves", "- front shelves", true},
		{"inverted window", "/add_window 09:00 08:00", "must be before", false},
		{"bad usage", "/add_simple report", "usage: /add_simple", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, api, store := newTestBot(t)
			ch := seedChannel(t, store)

			command(b, adminID, tc.text)
			requireContains(t, api.lastText(), tc.contains)

			events, err := store.ListChannelEvents(ctx, ch.ID)
			if err != nil {
				t.Fatalf("list events: %v", err)
			}
			if diff := cmp.Diff(tc.created, len(events) == 1); diff != "" {
				t.Errorf("created (-want +got):\n%s", diff)
			}
		})
	}
}

func TestKeywordWindowReferencePhoto(t *testing.T) {
	ctx := context.Background()
	b, _, store := newTestBot(t)
	ch := seedChannel(t, store)

	msg := makeMsg(adminID, "/add_keyword_window shelf 12:00 13:00")
	msg.ReplyToMessage = &tgbotapi.Message{Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}}}
	b.handleUpdate(ctx, update{Message: msg})

	events, err := store.ListEvents(ctx, ch.ID, model.KindKeywordWindow)
	if err != nil || len(events) != 1 {
		t.Fatalf("list events: %v (%d)", err, len(events))
	}
	if diff := cmp.Diff("large", events[0].(*model.KeywordWindowEvent).ReferencePhoto); diff != "" {
		t.Errorf("reference photo (-want +got):\n%s", diff)
	}
}

func TestHandleEvents(t *testing.T) {
	b, api, store := newTestBot(t)
	ch := seedChannel(t, store)

	command(b, adminID, "/events")
	requireContains(t, api.lastText(), "No events")

	seedEvent(t, store, &model.SimpleEvent{EventBase: model.EventBase{ChannelID: ch.ID}, Keyword: "report", Deadline: model.MustTime("10:00")})
	command(b, adminID, "/events")
	requireContains(t, api.lastText(), "#1 daily \"report\" by 10:00")
}

func TestRemoveWithConfirmation(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)
	ch := seedChannel(t, store)
	ev := seedEvent(t, store, &model.SimpleEvent{EventBase: model.EventBase{ChannelID: ch.ID}, Keyword: "report", Deadline: model.MustTime("10:00")})
	id := ev.Base().ID

	command(b, adminID, "/remove 99")
	requireContains(t, api.lastText(), "Event #99 not found")

	command(b, adminID, fmt.Sprintf("/remove %d", id))
	requireContains(t, api.lastText(), "Delete #1 \"report\"?")
	requireContains(t, api.last().Markup, fmt.Sprintf("delete:%d", id))

	cb := &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: adminID},
		Data:    fmt.Sprintf("delete:%d", id),
		Message: &tgbotapi.Message{MessageID: 11, Chat: &tgbotapi.Chat{ID: testChat}},
	}
	b.handleCallback(ctx, cb)
	requireContains(t, api.lastEdit(), "Event #1 \"report\" deleted.")

	if _, err := store.GetEvent(ctx, id); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("event should be gone, err = %v", err)
	}

	b.handleCallback(ctx, cb)
	requireContains(t, api.lastEdit(), "not found")
}

func TestHandleCallback(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		from     int64
		data     string
		chatID   int64
		wantEdit string
	}{
		{"invalid data format", adminID, "nocolon", testChat, ""},
		{"invalid id", adminID, "delete:abc", testChat, ""},
		{"cancel", adminID, "noop:0", testChat, "Cancelled."},
		{"other chat", adminID, "delete:1", 42, "Event #1 not found."},
		{"not an admin", memberID, "delete:1", testChat, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, api, store := newTestBot(t)
			ch := seedChannel(t, store)
			seedEvent(t, store, &model.WindowEvent{EventBase: model.EventBase{ChannelID: ch.ID}, Start: model.MustTime("08:00"), End: model.MustTime("09:00")})

			b.handleCallback(ctx, &tgbotapi.CallbackQuery{
				ID:      "cb",
				From:    &tgbotapi.User{ID: tc.from},
				Data:    tc.data,
				Message: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: tc.chatID}},
			})
			if diff := cmp.Diff(tc.wantEdit, api.lastEdit()); diff != "" {
				t.Errorf("edit (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(0, len(api.allTexts())); diff != "" {
				t.Errorf("expected no text messages (-want +got):\n%s", diff)
			}
			if _, err := store.GetEvent(ctx, 1); err != nil {
				t.Errorf("event should survive: %v", err)
			}
		})
	}
}

// --- report intake ---

func TestReportIntake(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)
	ch := seedChannel(t, store)
	if err := store.AddTrackedUser(ctx, &model.TrackedUser{ChannelID: ch.ID, UserID: memberID, DisplayName: "Store 1"}); err != nil {
		t.Fatalf("track user: %v", err)
	}
	ev := seedEvent(t, store, &model.SimpleEvent{
		EventBase: model.EventBase{ChannelID: ch.ID},
		Keyword:   "report",
		Deadline:  model.MustTime("23:59"),
		MinPhotos: 1,
	})

	msg := makeMsg(memberID, "")
	msg.Caption = "Reports for today"
	msg.Photo = []tgbotapi.PhotoSize{{FileID: "a"}, {FileID: "b"}}
	b.handleUpdate(ctx, update{Message: msg})

	today := window.New(time.UTC).Today(msg.Time())
	ok, err := store.HasSubmission(ctx, model.RefOf(ev), memberID, today, model.PhaseReport)
	if err != nil {
		t.Fatalf("has submission: %v", err)
	}
	if !ok {
		t.Error("photo with caption should count as a submission")
	}
	if diff := cmp.Diff(0, len(api.allTexts())); diff != "" {
		t.Errorf("intake should not reply (-want +got):\n%s", diff)
	}

	other := makeMsg(memberID, "report")
	other.IsTopicMessage = false
	b.handleUpdate(ctx, update{Message: other})
	subs, err := store.ListSubmissions(ctx, model.RefOf(ev), today)
	if err != nil {
		t.Fatalf("list submissions: %v", err)
	}
	if diff := cmp.Diff(1, len(subs)); diff != "" {
		t.Errorf("submissions (-want +got):\n%s", diff)
	}
}
