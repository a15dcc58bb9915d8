package bot

import (
	"context"
	"encoding/json"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/entities"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/logger"
	log "github.com/sirupsen/logrus"
	"strconv"
	"strings"
)

const applyCommandName = "Оставить заявку"

const (
	minAge = 1
	maxAge = 120
)

type applyCommand struct {
	api                  apiInterface
	chatID               int64
	registrations        registrationRepository
	inputHandlers        []inputHandler
	curHandlerIndex      int
	name                 string
	age                  int
	confirmed            bool
	finishCallback       func()
	finalMessageKeyboard *botApi.ReplyKeyboardMarkup
}

func newApplyCommand(api apiInterface, chatID int64, registrations registrationRepository) *applyCommand {

	cmd := &applyCommand{api: api, chatID: chatID, registrations: registrations}

	name := newNameInput(chatID, func(name string) {
		cmd.name = strings.TrimSpace(name)
		cmd.curHandlerIndex++
	})

	age := newAgeInput(chatID, func(input string) {
		cmd.age, _ = strconv.Atoi(strings.TrimSpace(input))
		cmd.curHandlerIndex++
	})

	confirm := newConfirmInput(chatID, func() string { return cmd.summary() }, func(confirmed bool) {
		cmd.confirmed = confirmed
		cmd.curHandlerIndex++
	})

	cmd.inputHandlers = []inputHandler{name, age, confirm}
	return cmd
}

func (c *applyCommand) WithFinishCallback(callback func()) {
	c.finishCallback = callback
}

func (c *applyCommand) WithKeyboardOnFinalMessage(keyboard botApi.ReplyKeyboardMarkup) {
	c.finalMessageKeyboard = &keyboard
}

func (c *applyCommand) SaveState() ([]byte, error) {

	return json.Marshal(&struct {
		CurHandlerIndex int
		Name            string
		Age             int
	}{
		CurHandlerIndex: c.curHandlerIndex,
		Name:            c.name,
		Age:             c.age,
	})
}

func (c *applyCommand) LoadState(data []byte) error {

	aux := &struct {
		CurHandlerIndex int
		Name            string
		Age             int
	}{}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.curHandlerIndex = aux.CurHandlerIndex
	c.name = aux.Name
	c.age = aux.Age
	return nil
}

func (c *applyCommand) Run() {
	_, _ = sendWithLogError(c.api, c.inputHandlers[0].InitMessage())
}

func (c *applyCommand) OnUserInput(input string) {

	previousIndex := c.curHandlerIndex
	msg := c.inputHandlers[c.curHandlerIndex].HandleInput(input)

	handlerChanged := previousIndex != c.curHandlerIndex
	allHandlersFinished := c.curHandlerIndex >= len(c.inputHandlers)

	if !handlerChanged {
		_, _ = sendWithLogError(c.api, msg)
		return
	}

	if !allHandlersFinished {
		_, _ = sendWithLogError(c.api, c.inputHandlers[c.curHandlerIndex].InitMessage())
		return
	}

	c.finish()
	if c.finishCallback != nil {
		c.finishCallback()
	}
}

func (c *applyCommand) summary() string {
	return "Проверьте заявку:\nИмя: " + c.name + "\nВозраст: " + strconv.Itoa(c.age)
}

func (c *applyCommand) finish() {

	msg := botApi.NewMessage(c.chatID, "")
	if c.finalMessageKeyboard != nil {
		msg.ReplyMarkup = c.finalMessageKeyboard
	}

	if !c.confirmed {
		msg.Text = "Заявка отменена."
		_, _ = sendWithLogError(c.api, msg)
		return
	}

	registration := entities.NewRegistration(c.chatID, c.name, c.age)
	if err := c.registrations.Add(context.Background(), *registration); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Error(err)
		msg.Text = "Внутренняя ошибка!"
		_, _ = sendWithLogError(c.api, msg)
		return
	}

	msg.Text = "Заявка принята! Мы свяжемся с вами."
	_, _ = sendWithLogError(c.api, msg)
}

func newNameInput(chatID int64, onFinish func(input string)) *textInput {
	input := newTextInput(chatID, "Как вас зовут?", onFinish)
	input.AddValidation(validation{
		function: func(input string) bool {
			trimmed := strings.TrimSpace(input)
			return trimmed != "" && len([]rune(trimmed)) <= 100
		},
		errorMessage: "Введите имя (не длиннее 100 символов).",
	})
	return input
}

func newAgeInput(chatID int64, onFinish func(input string)) *textInput {
	input := newTextInput(chatID, "Сколько вам лет?", onFinish)
	input.AddValidation(validation{
		function: func(input string) bool {
			age, err := strconv.Atoi(strings.TrimSpace(input))
			return err == nil && age >= minAge && age <= maxAge
		},
		errorMessage: "Введите возраст числом от 1 до 120.",
	})
	return input
}
