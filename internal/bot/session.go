package bot

import (
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/flow"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/logger"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/metrics"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"path/filepath"
	"strings"
)

// enterStep moves the chat onto a script step and sends its attachment,
// text and keyboard.
func (b *Bot) enterStep(ctx *userContext, stepID string) {

	step, ok := b.script.Step(stepID)
	if !ok {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeFlow).
			Errorf("step %v not found, chat %v", stepID, ctx.chatID)
		_, _ = sendWithLogError(b.api, botApi.NewMessage(ctx.chatID, textStepNotFound))
		return
	}

	ctx.stepID = stepID
	metrics.StepTransitionsCounter.WithLabelValues(stepID).Inc()

	if step.Attachment != "" {
		doc := botApi.NewDocument(ctx.chatID, botApi.FilePath(filepath.Join(b.opts.AssetsDir, step.Attachment)))
		_, _ = sendWithLogError(b.api, doc)
	}

	if step.Text == "" {
		return
	}

	msg := botApi.NewMessage(ctx.chatID, flow.EscapeMarkdownV2(step.Text, step.Preformatted))
	msg.ParseMode = botApi.ModeMarkdownV2
	if len(step.Answers) > 0 {
		msg.ReplyMarkup = replyKeyboardFromRows(step.KeyboardRows())
	} else {
		msg.ReplyMarkup = botApi.NewRemoveKeyboard(false)
	}
	_, _ = sendWithLogError(b.api, msg)
}

// advanceFlow matches the user's reply against the current step's buttons
// and performs the bound action. An unmatched reply re-prompts and stays
// where it is.
func (b *Bot) advanceFlow(ctx *userContext, userID int64, input string) {

	step, ok := b.script.Step(ctx.stepID)
	if !ok {
		ctx.stepID = ""
		_, _ = sendWithLogError(b.api, botApi.NewMessage(ctx.chatID, textStepNotFound))
		return
	}

	answer, found := step.Match(input)
	if !found {
		metrics.UnmatchedRepliesCounter.Inc()
		log.Infof("unmatched reply from user=%v step=%v text=%.100q labels=%v",
			userID, step.ID, input, step.Labels())
		_, _ = sendWithLogError(b.api, botApi.NewMessage(ctx.chatID, textUseButtons))
		return
	}

	if b.opts.PaymentLabelPrefix != "" &&
		strings.HasPrefix(flow.NormalizeLabel(answer.Label), flow.NormalizeLabel(b.opts.PaymentLabelPrefix)) {
		b.startPaymentClaim(ctx, userID, answer.Label)
		return
	}

	switch answer.Action.Type {
	case flow.ActionGoto:
		b.enterStep(ctx, answer.Action.Target)
	case flow.ActionRaw:
		msg := botApi.NewMessage(ctx.chatID, flow.EscapeMarkdownV2(answer.Action.Payload, false))
		msg.ParseMode = botApi.ModeMarkdownV2
		_, _ = sendWithLogError(b.api, msg)
	case flow.ActionMedia:
		for _, file := range answer.Action.Files {
			photo := botApi.NewPhoto(ctx.chatID, botApi.FilePath(filepath.Join(b.opts.AssetsDir, file)))
			_, _ = sendWithLogError(b.api, photo)
		}
		if answer.Action.Target != "" {
			b.enterStep(ctx, answer.Action.Target)
		}
	default:
		_, _ = sendWithLogError(b.api, botApi.NewMessage(ctx.chatID, textUnknownAction))
	}
}

// Every step keyboard carries the registration button, so the form stays
// reachable from anywhere in the script.
func replyKeyboardFromRows(rows [][]string) botApi.ReplyKeyboardMarkup {
	rows = append(rows, []string{applyCommandName})
	return botApi.NewReplyKeyboard(lo.Map(rows, func(row []string, _ int) []botApi.KeyboardButton {
		return lo.Map(row, func(label string, _ int) botApi.KeyboardButton {
			return botApi.NewKeyboardButton(label)
		})
	})...)
}
