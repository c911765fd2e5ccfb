package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mroshb/group_quiz_bot/internal/metrics"
	"github.com/mroshb/group_quiz_bot/internal/models"
	"github.com/mroshb/group_quiz_bot/internal/transport"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
	"github.com/mroshb/group_quiz_bot/pkg/logger"
)

// EventDispatcher queues inbound group events.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev models.GroupEvent) bool
}

// Bot is the Telegram transport: it sends quiz messages to group chats and
// turns group updates into quiz events. Group addresses are chat ids in
// decimal.
type Bot struct {
	api   *tgbotapi.BotAPI
	pacer *transport.Pacer

	stopOnce sync.Once
	done     chan struct{}
}

func InitBot(token string, debug bool, minInterval time.Duration) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = debug

	logger.Info("Authorized on account", "username", api.Self.UserName)

	return &Bot{
		api:   api,
		pacer: transport.NewPacer(minInterval),
		done:  make(chan struct{}),
	}, nil
}

// SendText sends Markdown text to a chat, retrying once as plain text when
// Telegram rejects the markup.
func (b *Bot) SendText(ctx context.Context, address, text string) (err error) {
	defer func() { metrics.MessageSent("telegram", err) }()

	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid telegram chat id")
	}
	if err := b.pacer.Wait(ctx, address); err != nil {
		return errors.Wrap(err, errors.ErrCodeTransport, "send rate wait")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err = b.api.Send(msg); err == nil {
		return nil
	}
	logger.Debug("Markdown send rejected, retrying as plain text", "chat_id", chatID, "error", err)

	msg.ParseMode = ""
	if _, err := b.api.Send(msg); err != nil {
		return errors.Wrap(err, errors.ErrCodeTransport, "telegram send failed")
	}
	return nil
}

// Listen starts the long-poll update listener feeding dispatcher.
func (b *Bot) Listen(dispatcher EventDispatcher) {
	go b.startUpdateListener(dispatcher)
}

func (b *Bot) startUpdateListener(dispatcher EventDispatcher) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message"}

	for {
		logger.Info("Starting update listener...")
		updates := b.api.GetUpdatesChan(u)

		for update := range updates {
			for _, ev := range EventsFromUpdate(update, b.api.Self.ID) {
				dispatcher.Dispatch(context.Background(), ev)
			}
		}

		select {
		case <-b.done:
			return
		case <-time.After(5 * time.Second):
			logger.Warn("Update channel closed, restarting listener")
		}
	}
}

// Stop ends the update listener.
func (b *Bot) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.api.StopReceivingUpdates()
	})
}

// EventsFromUpdate maps a group chat update to quiz events. Private chats,
// channels and messages from bots, including botID itself, yield nothing.
func EventsFromUpdate(update tgbotapi.Update, botID int64) []models.GroupEvent {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !(msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()) {
		return nil
	}
	groupID := strconv.FormatInt(msg.Chat.ID, 10)

	var events []models.GroupEvent
	for _, member := range msg.NewChatMembers {
		if member.IsBot || member.ID == botID {
			continue
		}
		events = append(events, models.GroupEvent{
			Kind:            models.EventJoined,
			GroupID:         groupID,
			ParticipantID:   strconv.FormatInt(member.ID, 10),
			ParticipantName: displayName(&member),
		})
	}
	if left := msg.LeftChatMember; left != nil && !left.IsBot {
		events = append(events, models.GroupEvent{
			Kind:            models.EventLeft,
			GroupID:         groupID,
			ParticipantID:   strconv.FormatInt(left.ID, 10),
			ParticipantName: displayName(left),
		})
	}

	if msg.From == nil || msg.From.IsBot {
		return events
	}
	text := messageText(msg)
	if text == "" {
		return events
	}
	return append(events, models.GroupEvent{
		Kind:            models.EventMessage,
		GroupID:         groupID,
		ParticipantID:   strconv.FormatInt(msg.From.ID, 10),
		ParticipantName: displayName(msg.From),
		Text:            text,
		MessageID:       fmt.Sprintf("%s:%d", groupID, msg.MessageID),
	})
}

// messageText turns "/iniciar@QuizBot" style commands into plain command
// words so they parse like typed ones.
func messageText(msg *tgbotapi.Message) string {
	if msg.IsCommand() {
		return strings.TrimSpace(msg.Command() + " " + msg.CommandArguments())
	}
	return strings.TrimSpace(msg.Text)
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		name = u.UserName
	}
	return name
}
