package bot

import (
	"context"
	"fmt"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/entities"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/events"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/flow"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/logger"
	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type callbackAnswerer interface {
	Request(chattable botApi.Chattable) (*botApi.APIResponse, error)
}

type pendingPayment struct {
	OrderTag string
	Method   string
}

// startPaymentClaim opens the receipt window after the user pressed a
// payment button. The keyboard is removed so the photo can be sent without
// the buttons in the way.
func (b *Bot) startPaymentClaim(ctx *userContext, userID int64, method string) {

	orderTag := fmt.Sprintf("%d-%d", userID, time.Now().Unix())
	b.pendingReceipts.Set(strconv.FormatInt(userID, 10),
		pendingPayment{OrderTag: orderTag, Method: method}, gocache.DefaultExpiration)

	msg := botApi.NewMessage(ctx.chatID, textSendReceipt)
	msg.ReplyMarkup = botApi.NewRemoveKeyboard(false)
	_, _ = sendWithLogError(b.api, msg)
}

func (b *Bot) hasPendingReceipt(userID int64) bool {
	_, found := b.pendingReceipts.Get(strconv.FormatInt(userID, 10))
	return found
}

// handleReceipt forwards the user's receipt to the admin together with an
// inline confirm/decline keyboard and persists a pending claim.
func (b *Bot) handleReceipt(message *botApi.Message) {

	userID := message.From.ID
	cached, found := b.pendingReceipts.Get(strconv.FormatInt(userID, 10))
	if !found {
		return
	}
	pending := cached.(pendingPayment)

	forward := botApi.NewForward(b.opts.AdminID, message.Chat.ID, message.MessageID)
	if _, err := b.api.Send(forward); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeTgApi).
			Errorf("couldn't forward receipt to admin: %v", err)
		_, _ = sendWithLogError(b.api, botApi.NewMessage(message.Chat.ID, textReceiptSendFailed))
		return
	}

	control := botApi.NewMessage(b.opts.AdminID,
		fmt.Sprintf("Платёж от user_id=%d, order=%s, method=%s", userID, pending.OrderTag, pending.Method))
	control.ReplyMarkup = botApi.NewInlineKeyboardMarkup(
		botApi.NewInlineKeyboardRow(
			botApi.NewInlineKeyboardButtonData("Подтвердить", "pay:ok:"+strconv.FormatInt(userID, 10)+":"+pending.OrderTag),
			botApi.NewInlineKeyboardButtonData("Отклонить", "pay:no:"+strconv.FormatInt(userID, 10)+":"+pending.OrderTag),
		),
	)
	_, _ = sendWithLogError(b.api, control)

	claim := entities.NewPaymentClaim(userID, pending.OrderTag, pending.Method)
	if err := b.repositories.Claims.Add(context.Background(), *claim); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("couldn't save payment claim: %v", err)
	}

	b.pendingReceipts.Delete(strconv.FormatInt(userID, 10))
	_, _ = sendWithLogError(b.api, botApi.NewMessage(message.Chat.ID, textReceiptSent))
}

// handleCallback answers the query exactly once: Telegram rejects a second
// answer for the same callback ID.
func (b *Bot) handleCallback(callback *botApi.CallbackQuery) {

	parts := strings.Split(callback.Data, ":")
	if len(parts) != 4 || parts[0] != "pay" {
		b.answerCallback(callback.ID, "")
		return
	}

	if callback.From.ID != b.opts.AdminID {
		b.answerCallback(callback.ID, textAdminOnly)
		return
	}

	userID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		log.Errorf("bad callback data %q: %v", callback.Data, err)
		b.answerCallback(callback.ID, "")
		return
	}
	orderTag := parts[3]

	switch parts[1] {
	case "ok":
		b.confirmClaim(userID, orderTag)
	case "no":
		b.declineClaim(userID, orderTag)
	}
	b.answerCallback(callback.ID, "")
}

func (b *Bot) confirmClaim(userID int64, orderTag string) {

	if deliverable := b.script.Deliverable; deliverable != "" {
		doc := botApi.NewDocument(userID, botApi.FilePath(filepath.Join(b.opts.AssetsDir, deliverable)))
		if _, err := b.api.Send(doc); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeTgApi).
				Errorf("couldn't send deliverable to user %v: %v", userID, err)
		}
	}

	userMsg := botApi.NewMessage(userID, flow.EscapeMarkdownV2(textPaymentConfirmed, false))
	userMsg.ParseMode = botApi.ModeMarkdownV2
	if completion, ok := b.script.Completion(); ok {
		userMsg.Text = flow.EscapeMarkdownV2(completion.Text, completion.Preformatted)
	}
	_, _ = sendWithLogError(b.api, userMsg)

	if err := b.repositories.Claims.SetStatus(context.Background(), orderTag, entities.ClaimConfirmed); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("couldn't confirm claim: %v", err)
	}

	_, _ = sendWithLogError(b.api, botApi.NewMessage(b.opts.AdminID,
		fmt.Sprintf("Оплата подтверждена для user=%d order=%s", userID, orderTag)))
}

func (b *Bot) declineClaim(userID int64, orderTag string) {

	_, _ = sendWithLogError(b.api, botApi.NewMessage(userID, textPaymentDeclined))

	if err := b.repositories.Claims.SetStatus(context.Background(), orderTag, entities.ClaimDeclined); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("couldn't decline claim: %v", err)
	}

	_, _ = sendWithLogError(b.api, botApi.NewMessage(b.opts.AdminID,
		fmt.Sprintf("Отклонено для user=%d order=%s", userID, orderTag)))
}

func (b *Bot) onClaimExpired(event events.ClaimExpired) {
	msg := botApi.NewMessage(event.Claim.UserID, textClaimExpired)
	if _, err := b.api.Send(msg); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeTgApi).
			Errorf("error occured while sending message: %v", err)
	}
}

func (b *Bot) answerCallback(callbackID string, text string) {
	answerer, ok := b.api.(callbackAnswerer)
	if !ok {
		return
	}
	if _, err := answerer.Request(botApi.NewCallback(callbackID, text)); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeTgApi).
			Errorf("couldn't answer callback: %v", err)
	}
}
