package broadcast

import (
	"context"
	"errors"
	"testing"

	"github.com/example/tagbot/internal/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

type fakeMembers map[int64][]string

func (f fakeMembers) ListUsernames(_ context.Context, chatID int64) ([]string, error) {
	if chatID < 0 {
		return nil, errors.New("db down")
	}
	return f[chatID], nil
}

func TestFormatMentions(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want string
	}{
		{name: "empty", in: nil, want: ""},
		{name: "adds at", in: []string{"@alice", "bob"}, want: "@alice @bob"},
		{name: "dedup after normalize", in: []string{"alice", "@alice", "bob", "bob"}, want: "@alice @bob"},
		{name: "skips blanks", in: []string{"", "  ", "carol"}, want: "@carol"},
		{name: "case sensitive", in: []string{"Alice", "alice"}, want: "@Alice @alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatMentions(tt.in); got != tt.want {
				t.Fatalf("FormatMentions(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestComposeMessage(t *testing.T) {
	if got := ComposeMessage("@a", "hi"); got != "@a hi" {
		t.Fatalf("got %q", got)
	}
	if got := ComposeMessage("", "hi"); got != "hi" {
		t.Fatalf("got %q", got)
	}
	if got := ComposeMessage("@a", ""); got != "@a" {
		t.Fatalf("got %q", got)
	}
}

func TestDeliverStandupScenario(t *testing.T) {
	sender := &fakeSender{}
	b := New(sender, fakeMembers{100: {"@alice", "bob"}}, logger.Discard())

	if err := b.Deliver(context.Background(), 100, "Standup"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.ChatID != 100 || msg.Text != "@alice @bob Standup" {
		t.Fatalf("sent %d %q", msg.ChatID, msg.Text)
	}
}

func TestDeliverSkipsEmptyBody(t *testing.T) {
	sender := &fakeSender{}
	b := New(sender, fakeMembers{}, logger.Discard())
	if err := b.Deliver(context.Background(), 100, ""); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected nothing sent, got %v", sender.sent)
	}
}

func TestDeliverErrors(t *testing.T) {
	b := New(&fakeSender{}, fakeMembers{}, logger.Discard())
	if err := b.Deliver(context.Background(), -1, "x"); err == nil {
		t.Fatal("expected lookup error")
	}

	b = New(&fakeSender{err: errors.New("blocked")}, fakeMembers{100: {"a"}}, logger.Discard())
	if err := b.Deliver(context.Background(), 100, "x"); err == nil {
		t.Fatal("expected send error")
	}
}
