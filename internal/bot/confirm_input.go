package bot

import (
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/flow"
)

const (
	confirmYes = "Да, всё верно"
	confirmNo  = "Нет, отменить"
)

type confirmInput struct {
	chatID   int64
	summary  func() string
	onFinish func(confirmed bool)
}

func newConfirmInput(chatID int64, summary func() string, onFinish func(confirmed bool)) *confirmInput {
	return &confirmInput{chatID: chatID, summary: summary, onFinish: onFinish}
}

func (a *confirmInput) InitMessage() botApi.Chattable {
	msg := botApi.NewMessage(a.chatID, a.summary())
	msg.ReplyMarkup = confirmKeyboard()
	return msg
}

func (a *confirmInput) HandleInput(input string) botApi.Chattable {

	switch flow.NormalizeLabel(input) {
	case flow.NormalizeLabel(confirmYes):
		a.onFinish(true)
	case flow.NormalizeLabel(confirmNo):
		a.onFinish(false)
	default:
		return botApi.NewMessage(a.chatID, "Ответьте кнопкой: подтвердить или отменить.")
	}
	return nil
}

func confirmKeyboard() botApi.ReplyKeyboardMarkup {
	return botApi.NewReplyKeyboard(
		botApi.NewKeyboardButtonRow(
			botApi.NewKeyboardButton(confirmYes),
			botApi.NewKeyboardButton(confirmNo),
		))
}
