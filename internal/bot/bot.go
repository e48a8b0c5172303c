package bot

import (
	"context"
	"os"
	"time"

	"ferrybook/internal/config"
	"ferrybook/internal/domain"
	"ferrybook/internal/metrics"
	"ferrybook/internal/models"
	"ferrybook/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Services are the application services reachable from bot commands.
type Services struct {
	Bookings  *service.BookingService
	Schedules *service.ScheduleService
	Sweeps    *service.SweepService
}

// Bot answers harbour staff commands in Telegram. Only accounts listed in
// the staff config are served; everyone else gets a refusal.
type Bot struct {
	client domain.TelegramClient
	staff  map[int64]models.Actor
	svc    Services
	logger *zerolog.Logger
}

func NewBot(client domain.TelegramClient, staff []config.TelegramStaff, svc Services, logger *zerolog.Logger) (*Bot, error) {
	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	actors := make(map[int64]models.Actor, len(staff))
	for _, s := range staff {
		actorType, err := models.ParseActorType(s.ActorType)
		if err != nil {
			return nil, err
		}
		actors[s.TelegramID] = models.Actor{Type: actorType, ID: s.ActorID}
	}

	return &Bot{
		client: client,
		staff:  actors,
		svc:    svc,
		logger: logger,
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.client.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.client.GetSelf().UserName).Int("staff", len(b.staff)).Msg("operator bot started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("operator bot stopping")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

// Stop stops receiving Telegram updates (best-effort).
func (b *Bot) Stop() {
	if b == nil || b.client == nil {
		return
	}
	b.client.StopReceivingUpdates()
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() { metrics.ObserveBotUpdate(time.Since(start)) }()

	if update.Message == nil || update.Message.From == nil {
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	l := b.logger.With().
		Str("request_id", uuid.NewString()).
		Int64("telegram_id", update.Message.From.ID).
		Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(update.Message.Chat.ID, func() {
		b.handleMessage(updateCtx, update.Message)
	})
}

func (b *Bot) withRecovery(chatID int64, handler func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncBotCommand("panic", "error")
			b.logger.Error().Interface("panic", r).Msg("recovered from panic in update handler")
			b.reply(chatID, genericErrorMessage)
		}
	}()
	handler()
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.client.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send reply")
	}
}
