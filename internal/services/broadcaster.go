package services

import (
	"context"
	"fmt"
	"github.com/asaskevich/EventBus"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/events"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/flow"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/logger"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type apiInterface interface {
	Send(chattable botApi.Chattable) (botApi.Message, error)
}

type userLister interface {
	GetIDs(ctx context.Context) ([]int64, error)
}

// Broadcaster fans an admin message out to every known user, paced under
// Telegram's bulk-send limit.
type Broadcaster struct {
	api     apiInterface
	users   userLister
	limiter *rate.Limiter
}

func NewBroadcaster(bus EventBus.Bus, api apiInterface, users userLister, messagesPerSecond float64) (*Broadcaster, error) {

	if api == nil {
		return nil, errors.New("api is nil")
	}

	if users == nil {
		return nil, errors.New("users repository is nil")
	}

	if messagesPerSecond <= 0 {
		return nil, errors.New("messages per second must be greater than zero")
	}

	b := &Broadcaster{
		api:     api,
		users:   users,
		limiter: rate.NewLimiter(rate.Limit(messagesPerSecond), 1),
	}

	if err := bus.Subscribe(events.BroadcastRequestedTopic, b.onBroadcastRequested); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Broadcaster) onBroadcastRequested(event events.BroadcastRequested) {

	ids, err := b.users.GetIDs(context.Background())
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("couldn't list broadcast recipients: %v", err)
		b.report(event.AdminChatID, "Рассылка не выполнена: внутренняя ошибка.")
		return
	}

	text := flow.EscapeMarkdownV2(event.Text, false)
	sent := 0

	for _, id := range ids {
		if err := b.limiter.Wait(context.Background()); err != nil {
			log.Errorf("broadcast rate limiter: %v", err)
			break
		}

		msg := botApi.NewMessage(id, text)
		msg.ParseMode = botApi.ModeMarkdownV2

		if _, err := b.api.Send(msg); err != nil {
			metrics.BroadcastDeliveriesCounter.WithLabelValues("failed").Inc()
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeTgApi).
				Errorf("couldn't broadcast to user=%v: %v", id, err)
			continue
		}
		metrics.BroadcastDeliveriesCounter.WithLabelValues("sent").Inc()
		sent++
	}

	log.Infof("broadcast finished: %v of %v delivered", sent, len(ids))
	b.report(event.AdminChatID, fmt.Sprintf("Рассылка выполнена. Отправлено: %d пользователям.", sent))
}

func (b *Broadcaster) report(adminChatID int64, text string) {
	if _, err := b.api.Send(botApi.NewMessage(adminChatID, text)); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeTgApi).
			Errorf("couldn't send broadcast report: %v", err)
	}
}
