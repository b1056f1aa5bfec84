package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/example/tagbot/internal/excel"
	"github.com/example/tagbot/internal/reminder"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const importCommand = "/importusers"

var (
	// HH:MM followed by the free-form reminder text
	reminderArgs = regexp.MustCompile(`(?s)^(\d{2}:\d{2})\s+(.+)$`)
	// a single @handle
	usernameArg = regexp.MustCompile(`^@\w+$`)
)

const (
	textStart         = "Hello! Use /remind HH:MM \"Content\" to set a daily reminder."
	textStorageFailed = "Something went wrong while saving. Please try again later."
	textNoHandle      = "You need a Telegram username to be mentioned. Set one in Telegram settings and try again!"
)

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	var err error
	switch message.Command() {
	case "start":
		err = b.reply(message.Chat.ID, textStart)
	case "help":
		err = b.handleHelp(message)
	case "remind":
		err = b.handleRemind(ctx, message)
	case "editremind":
		err = b.handleEditRemind(ctx, message)
	case "cancelremind":
		err = b.handleCancelRemind(ctx, message)
	case "listremind":
		err = b.handleListRemind(ctx, message)
	case "tagall":
		err = b.handleTagAll(ctx, message)
	case "adduser":
		err = b.handleAddUser(ctx, message)
	case "removeuser":
		err = b.handleRemoveUser(ctx, message)
	case "importusers":
		err = b.reply(message.Chat.ID, "Attach a .xlsx or .csv file with one username per row and put /importusers in its caption.")
	}
	return err
}

func (b *Bot) handleHelp(message *tgbotapi.Message) error {
	text := "Available commands:\n" +
		"/remind HH:MM <text> - set your daily reminder for this group\n" +
		"/editremind HH:MM <text> - change time and text of your reminder\n" +
		"/cancelremind - cancel your reminder\n" +
		"/listremind - show reminders of this group\n" +
		"/tagall - mention every registered member\n" +
		"/adduser @name - add a member to the list\n" +
		"/removeuser @name - remove a member from the list\n" +
		"/importusers - caption of a .xlsx/.csv member list\n\n" +
		fmt.Sprintf("Times are 24-hour, %s time.", b.loc.String())
	return b.reply(message.Chat.ID, text)
}

func actorOf(message *tgbotapi.Message) reminder.Actor {
	actor := reminder.Actor{ChatID: message.Chat.ID}
	if message.From != nil {
		actor.UserID = message.From.ID
		actor.Username = message.From.UserName
	}
	return actor
}

func chatName(message *tgbotapi.Message) string {
	return reminder.GroupName(message.Chat.Title, message.Chat.UserName)
}

// parseReminderArgs splits "HH:MM text" into its parts
func parseReminderArgs(args string) (hhmm, text string, ok bool) {
	m := reminderArgs.FindStringSubmatch(strings.TrimSpace(args))
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

// failureText maps an unsuccessful outcome to the reply shown in the chat
func failureText(res reminder.Result, action, usage string) string {
	switch res.Outcome {
	case reminder.OutcomePermissionDenied:
		return fmt.Sprintf("You do not have permission to %s.", action)
	case reminder.OutcomeNotRegistered:
		if res.Missing == "group" {
			return "Group is not registered. Please try again!"
		}
		return "You are not registered. Please try again!"
	case reminder.OutcomeInvalidInput:
		return "Usage: " + usage
	default:
		return textStorageFailed
	}
}

func (b *Bot) handleRemind(ctx context.Context, message *tgbotapi.Message) error {
	const usage = "/remind HH:MM <text> (24-hour time, e.g. 09:00)"
	hhmm, text, ok := parseReminderArgs(message.CommandArguments())
	if !ok {
		return b.reply(message.Chat.ID, "Usage: "+usage)
	}

	actor := actorOf(message)
	res := b.commands.Create(ctx, actor, hhmm, text)
	if !res.OK() {
		if res.Outcome == reminder.OutcomeNotRegistered && actor.Username == "" {
			return b.reply(message.Chat.ID, textNoHandle)
		}
		return b.reply(message.Chat.ID, failureText(res, "set reminders", usage))
	}

	reply := fmt.Sprintf("New reminder set at %s with content: \"%s\".", hhmm, text)
	if res.Replaced {
		reply = fmt.Sprintf("Your previous reminder was replaced. Reminder set at %s with content: \"%s\".", hhmm, text)
	}
	return b.reply(message.Chat.ID, reply)
}

func (b *Bot) handleEditRemind(ctx context.Context, message *tgbotapi.Message) error {
	const usage = "/editremind HH:MM <text> (24-hour time, e.g. 09:00)"
	hhmm, text, ok := parseReminderArgs(message.CommandArguments())
	if !ok {
		return b.reply(message.Chat.ID, "Usage: "+usage)
	}

	res := b.commands.Edit(ctx, actorOf(message), hhmm, text)
	switch {
	case res.OK():
		return b.reply(message.Chat.ID, fmt.Sprintf("Reminder edited to %s with content: \"%s\".", hhmm, text))
	case res.Outcome == reminder.OutcomeNotFound:
		return b.reply(message.Chat.ID, "You have no reminder in this group. Use /remind HH:MM <text> to set one.")
	default:
		return b.reply(message.Chat.ID, failureText(res, "edit reminders", usage))
	}
}

func (b *Bot) handleCancelRemind(ctx context.Context, message *tgbotapi.Message) error {
	res := b.commands.Cancel(ctx, actorOf(message))
	switch {
	case res.OK():
		return b.reply(message.Chat.ID, "Your reminder has been canceled.")
	case res.Outcome == reminder.OutcomeNotFound:
		return b.reply(message.Chat.ID, "You have no reminder to cancel.")
	default:
		return b.reply(message.Chat.ID, failureText(res, "cancel reminders", "/cancelremind"))
	}
}

func (b *Bot) handleListRemind(ctx context.Context, message *tgbotapi.Message) error {
	reminders, err := b.commands.List(ctx, message.Chat.ID)
	if err != nil {
		b.log.WithError(err).WithField("chat_id", message.Chat.ID).Error("Failed to list reminders")
		return b.reply(message.Chat.ID, textStorageFailed)
	}
	if len(reminders) == 0 {
		return b.reply(message.Chat.ID, "No reminders in this group.")
	}

	var text strings.Builder
	text.WriteString("Daily reminders:\n")
	for _, r := range reminders {
		text.WriteString(fmt.Sprintf("%s %s: %s\n", r.Time, r.Username, r.Text))
	}
	return b.reply(message.Chat.ID, strings.TrimRight(text.String(), "\n"))
}

func (b *Bot) handleTagAll(ctx context.Context, message *tgbotapi.Message) error {
	mentions, err := b.broadcaster.Mentions(ctx, message.Chat.ID)
	if err != nil {
		return err
	}
	if mentions == "" {
		return b.reply(message.Chat.ID, "No members to tag.")
	}
	return b.reply(message.Chat.ID, mentions)
}

func (b *Bot) handleAddUser(ctx context.Context, message *tgbotapi.Message) error {
	username := strings.TrimSpace(message.CommandArguments())
	if !usernameArg.MatchString(username) {
		return b.reply(message.Chat.ID, "Usage: /adduser @name")
	}
	name := strings.TrimPrefix(username, "@")

	res := b.commands.AddMember(ctx, actorOf(message), chatName(message), username)
	switch {
	case !res.OK():
		return b.reply(message.Chat.ID, failureText(res, "add members", "/adduser @name"))
	case res.Changed:
		return b.reply(message.Chat.ID, fmt.Sprintf("Member %s added to the list.", name))
	default:
		return b.reply(message.Chat.ID, fmt.Sprintf("Member %s already exists in the list.", name))
	}
}

func (b *Bot) handleRemoveUser(ctx context.Context, message *tgbotapi.Message) error {
	username := strings.TrimSpace(message.CommandArguments())
	if !usernameArg.MatchString(username) {
		return b.reply(message.Chat.ID, "Usage: /removeuser @name")
	}
	name := strings.TrimPrefix(username, "@")

	res := b.commands.RemoveMember(ctx, actorOf(message), username)
	switch {
	case !res.OK():
		return b.reply(message.Chat.ID, failureText(res, "remove members", "/removeuser @name"))
	case res.Changed:
		return b.reply(message.Chat.ID, fmt.Sprintf("Member %s removed from the list.", name))
	default:
		return b.reply(message.Chat.ID, fmt.Sprintf("Member %s is not in the list.", name))
	}
}

func isImportCaption(caption string) bool {
	fields := strings.Fields(caption)
	if len(fields) == 0 {
		return false
	}
	cmd := fields[0]
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd == importCommand
}

// handleImportUsers downloads the attached member list and registers every handle in it
func (b *Bot) handleImportUsers(ctx context.Context, message *tgbotapi.Message) error {
	doc := message.Document
	if b.config.ImportMaxBytes > 0 && int64(doc.FileSize) > b.config.ImportMaxBytes {
		return b.reply(message.Chat.ID, "The file is too large.")
	}

	data, err := b.downloadFile(ctx, doc.FileID)
	if err != nil {
		b.log.WithError(err).WithField("chat_id", message.Chat.ID).Error("Failed to download member list")
		return b.reply(message.Chat.ID, "Could not download the file. Please try again!")
	}

	parsed, err := excel.ParseMembers(bytes.NewReader(data), doc.FileName)
	if err != nil {
		return b.reply(message.Chat.ID, fmt.Sprintf("Could not read the file: %v", err))
	}

	res := b.commands.ImportMembers(ctx, actorOf(message), chatName(message), parsed.Usernames)
	if !res.OK() {
		return b.reply(message.Chat.ID, failureText(res, "add members", "/importusers"))
	}

	text := fmt.Sprintf("Imported %d new members, %d skipped.", res.Added, res.Skipped)
	if len(parsed.Invalid) > 0 {
		text += fmt.Sprintf("\nIgnored %d invalid rows:\n%s", len(parsed.Invalid), strings.Join(parsed.Invalid, "\n"))
	}
	return b.reply(message.Chat.ID, text)
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	limit := b.config.ImportMaxBytes
	if limit <= 0 {
		limit = DefaultConfig().ImportMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d bytes", limit)
	}
	return data, nil
}
