package bot

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/example/tagbot/internal/broadcast"
	"github.com/example/tagbot/internal/reminder"
	"github.com/example/tagbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// API is the subset of *tgbotapi.BotAPI the bot relies on
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Registrar records the chat and sender of every message
type Registrar interface {
	Register(ctx context.Context, in reminder.Interaction)
}

// Commands runs reminder and member commands
type Commands interface {
	Create(ctx context.Context, actor reminder.Actor, hhmm, text string) reminder.Result
	Edit(ctx context.Context, actor reminder.Actor, hhmm, text string) reminder.Result
	Cancel(ctx context.Context, actor reminder.Actor) reminder.Result
	List(ctx context.Context, chatID int64) ([]models.Reminder, error)
	AddMember(ctx context.Context, actor reminder.Actor, chatName, username string) reminder.Result
	RemoveMember(ctx context.Context, actor reminder.Actor, username string) reminder.Result
	ImportMembers(ctx context.Context, actor reminder.Actor, chatName string, usernames []string) reminder.Result
}

// Bot represents the Telegram bot application
type Bot struct {
	api         API
	config      *BotConfig
	registrar   Registrar
	commands    Commands
	broadcaster *broadcast.Broadcaster
	loc         *time.Location
	log         *logrus.Logger
	httpClient  *http.Client

	wg sync.WaitGroup
}

// New creates a new bot instance
func New(
	api API,
	config *BotConfig,
	registrar Registrar,
	commands Commands,
	broadcaster *broadcast.Broadcaster,
	loc *time.Location,
	log *logrus.Logger,
) *Bot {
	if config == nil {
		config = DefaultConfig()
	}
	return &Bot{
		api:         api,
		config:      config,
		registrar:   registrar,
		commands:    commands,
		broadcaster: broadcaster,
		loc:         loc,
		log:         log,
		httpClient:  &http.Client{Timeout: config.DownloadTimeout},
	}
}

// Start polls Telegram for updates until ctx is canceled, handling each
// update in its own goroutine
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.config.PollTimeout

	updates := b.api.GetUpdatesChan(updateConfig)
	b.log.Info("Listening for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.wg.Add(1)
			go func(u tgbotapi.Update) {
				defer b.wg.Done()
				b.handleUpdate(ctx, u)
			}(update)
		}
	}
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithField("update_id", update.UpdateID).Errorf("Recovered from panic in update handler: %v", r)
		}
	}()

	message := update.Message
	if message == nil || message.Chat == nil {
		return
	}

	if message.From != nil {
		b.registrar.Register(ctx, reminder.Interaction{
			ChatID:       message.Chat.ID,
			ChatTitle:    message.Chat.Title,
			ChatUsername: message.Chat.UserName,
			Username:     message.From.UserName,
		})
	}

	var err error
	switch {
	case message.IsCommand():
		err = b.HandleCommand(ctx, message)
	case message.Document != nil && isImportCaption(message.Caption):
		err = b.handleImportUsers(ctx, message)
	}
	if err != nil {
		b.log.WithError(err).WithField("chat_id", message.Chat.ID).Error("Failed to handle message")
	}
}

// sendMessage sends a prepared message and logs failures
func (b *Bot) sendMessage(msg tgbotapi.MessageConfig) error {
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).WithField("chat_id", msg.ChatID).Warn("Failed to send message")
		return err
	}
	return nil
}

func (b *Bot) reply(chatID int64, text string) error {
	return b.sendMessage(tgbotapi.NewMessage(chatID, text))
}
