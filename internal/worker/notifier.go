package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ferrybook/internal/events"
	"ferrybook/internal/metrics"
	"ferrybook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// MessageSender delivers Markdown text to a Telegram chat.
type MessageSender interface {
	SendMarkdown(chatID int64, text string) (tgbotapi.Message, error)
}

// Notification is one operator message waiting for delivery.
type Notification struct {
	EventType string    `json:"event_type"`
	Text      string    `json:"text"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NotifiedEvents are the events that reach the operator chat.
var NotifiedEvents = []string{
	events.EventBookingCancelled,
	events.EventBookingExpired,
	events.EventBookingCompleted,
	events.EventRefundRequested,
	events.EventScheduleDateState,
}

// TelegramNotifier forwards domain events to the operator chat.
type TelegramNotifier struct {
	sender        MessageSender
	chatID        int64
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan Notification
	deadLetterKey string
	sleep         func(context.Context, time.Duration) error
	logger        *zerolog.Logger
}

// NewTelegramNotifier builds a notifier with sane defaults. redisClient may be nil.
func NewTelegramNotifier(sender MessageSender, chatID int64, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *TelegramNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &TelegramNotifier{
		sender:        sender,
		chatID:        chatID,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan Notification, models.NotifierQueueSize),
		deadLetterKey: "ferrybook:notifications:deadletter",
		sleep:         sleepContext,
		logger:        logger,
	}
}

// Subscribe registers the notifier on the bus.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(n.HandleEvent, NotifiedEvents...)
}

// HandleEvent formats the event and queues it without blocking the publisher.
func (n *TelegramNotifier) HandleEvent(event *events.Event) error {
	text, err := FormatEvent(event)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}

	msg := Notification{EventType: event.Type, Text: text, CreatedAt: time.Now()}
	select {
	case n.queue <- msg:
	default:
		metrics.IncNotification("dropped")
		n.logger.Warn().Str("event", event.Type).Msg("notification queue full, message dropped")
	}
	return nil
}

// Start delivers queued notifications until ctx is cancelled.
func (n *TelegramNotifier) Start(ctx context.Context) {
	n.logger.Info().Int64("chat_id", n.chatID).Msg("Telegram notifier started")
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.queue:
			n.deliver(ctx, msg)
		}
	}
}

func (n *TelegramNotifier) deliver(ctx context.Context, msg Notification) {
	attempts, err := n.retryPolicy.Do(ctx, n.sleep, func(attempt int) error {
		_, err := n.sender.SendMarkdown(n.chatID, msg.Text)
		if err != nil {
			n.logger.Debug().Err(err).Int("attempt", attempt).Str("event", msg.EventType).Msg("notification attempt failed")
		}
		return err
	})
	msg.Attempts = attempts
	if err == nil {
		metrics.IncNotification("sent")
		return
	}

	metrics.IncNotification("failed")
	msg.LastError = err.Error()
	n.logger.Error().Err(err).Int("attempts", attempts).Str("event", msg.EventType).Msg("notification delivery failed")
	n.pushDeadLetter(ctx, msg)
}

func (n *TelegramNotifier) pushDeadLetter(ctx context.Context, msg Notification) {
	if n.redis == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := n.redis.LPush(context.WithoutCancel(ctx), n.deadLetterKey, data).Err(); err != nil {
		n.logger.Warn().Err(err).Msg("deadletter push failed")
	}
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// FormatEvent renders an operator message. Events nobody needs to see return "".
func FormatEvent(event *events.Event) (string, error) {
	switch event.Type {
	case events.EventBookingCancelled, events.EventBookingExpired, events.EventBookingCompleted:
		var p events.BookingEventPayload
		if err := event.Decode(&p); err != nil {
			return "", fmt.Errorf("decode %s: %w", event.Type, err)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "*Booking %s* is now %s\n", escape(p.BookingCode), escape(p.Status))
		fmt.Fprintf(&b, "Departure: %s, schedule #%d, %d passenger(s)", p.DepartureDate, p.ScheduleID, p.PassengerCount)
		if p.Notes != "" {
			fmt.Fprintf(&b, "\nNote: %s", escape(p.Notes))
		}
		if p.ChangedBy != "" {
			fmt.Fprintf(&b, "\nBy: %s", escape(p.ChangedBy))
		}
		return b.String(), nil

	case events.EventRefundRequested:
		var p events.RefundEventPayload
		if err := event.Decode(&p); err != nil {
			return "", fmt.Errorf("decode %s: %w", event.Type, err)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "*Refund requested* for %s\n", escape(p.BookingCode))
		fmt.Fprintf(&b, "Amount: %d (%.0f%%)", p.RefundAmount, p.Percentage)
		if p.Reason != "" {
			fmt.Fprintf(&b, "\nReason: %s", escape(p.Reason))
		}
		return b.String(), nil

	case events.EventScheduleDateState:
		var p events.ScheduleDatePayload
		if err := event.Decode(&p); err != nil {
			return "", fmt.Errorf("decode %s: %w", event.Type, err)
		}
		if p.Status == string(models.DateAvailable) {
			return "", nil
		}
		text := fmt.Sprintf("*Schedule #%d* on %s is %s", p.ScheduleID, p.Date, escape(p.Status))
		if p.Reason != "" {
			text += "\nReason: " + escape(p.Reason)
		}
		if p.ExpiresAt != "" {
			text += "\nUntil: " + p.ExpiresAt
		}
		return text, nil
	}
	return "", nil
}
