package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/asaskevich/EventBus"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/entities"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/events"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/flow"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/logger"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/metrics"
	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"slices"
	"strings"
	"sync"
	"time"
)

type Repositories struct {
	Users         userRepository
	Registrations registrationRepository
	Claims        claimRepository
	Data          dataRepository
}

type userRepository interface {
	Add(ctx context.Context, user entities.User) error
}

type registrationRepository interface {
	Add(ctx context.Context, registration entities.Registration) error
}

type claimRepository interface {
	Add(ctx context.Context, claim entities.PaymentClaim) error
	SetStatus(ctx context.Context, orderTag string, status entities.ClaimStatus) error
}

type dataRepository interface {
	Save(ctx context.Context, id string, data []byte) error
	LoadAndRemove(ctx context.Context, id string) ([]byte, error)
}

type Options struct {
	AdminID            int64
	AssetsDir          string
	PaymentLabelPrefix string
	ReceiptWindow      time.Duration
}

type Bot struct {
	api             apiInterface
	client          *botApi.BotAPI
	mu              sync.Mutex
	userContexts    map[int64]*userContext
	bus             EventBus.Bus
	script          *flow.Script
	repositories    Repositories
	pendingReceipts *gocache.Cache
	opts            Options
}

const backToMenuCommandName = "В главное меню"

var globalCommands = []string{applyCommandName, backToMenuCommandName}

func NewBot(token string, bus EventBus.Bus, script *flow.Script, repositories Repositories, opts Options) (*Bot, error) {

	api, err := botApi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Infof("Authorized on account %s", api.Self.UserName)

	err = botApi.SetLogger(log.StandardLogger())
	if err != nil {
		return nil, err
	}

	if bus == nil {
		return nil, errors.New("bus is nil")
	}

	if script == nil {
		return nil, errors.New("script is nil")
	}

	if repositories.Users == nil {
		return nil, errors.New("users repository is nil")
	}

	if repositories.Registrations == nil {
		return nil, errors.New("registrations repository is nil")
	}

	if repositories.Claims == nil {
		return nil, errors.New("claims repository is nil")
	}

	if repositories.Data == nil {
		return nil, errors.New("data repository is nil")
	}

	if opts.ReceiptWindow <= 0 {
		opts.ReceiptWindow = 24 * time.Hour
	}

	createdBot := &Bot{
		api:             api,
		client:          api,
		userContexts:    make(map[int64]*userContext),
		bus:             bus,
		script:          script,
		repositories:    repositories,
		pendingReceipts: gocache.New(opts.ReceiptWindow, 10*time.Minute),
		opts:            opts,
	}

	err = bus.Subscribe(events.ClaimExpiredTopic, createdBot.onClaimExpired)
	if err != nil {
		return nil, err
	}
	return createdBot, nil
}

// API exposes the underlying client so other services can send messages
// over the same bot account.
func (b *Bot) API() *botApi.BotAPI {
	return b.client
}

func (b *Bot) Run() {

	err := b.loadUserContexts()
	if err != nil {
		log.Errorf("Error loading user contexts: %v", err)
	}

	updateConfig := botApi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := b.client.GetUpdatesChan(updateConfig)

	for update := range updates {

		if update.CallbackQuery != nil {
			metrics.HandledUpdatesCounter.WithLabelValues("callback").Inc()
			go b.handleCallback(update.CallbackQuery)
			continue
		}

		if update.Message == nil {
			continue
		}

		if update.Message.Chat.IsGroup() || update.Message.Chat.IsSuperGroup() {
			continue
		}

		metrics.HandledUpdatesCounter.WithLabelValues("message").Inc()
		go b.handleMessage(update.Message)
	}
}

func (b *Bot) Stop() {
	err := b.saveUserContexts()
	if err != nil {
		log.Errorf("Error saving user contexts: %v", err)
	}
}

func (b *Bot) handleMessage(message *botApi.Message) {

	b.rememberUser(message.From)

	if (message.Photo != nil || message.Document != nil) && b.hasPendingReceipt(message.From.ID) {
		b.handleReceipt(message)
		return
	}

	cmd := message.Command()
	if cmd == "" && slices.Contains(globalCommands, message.Text) {
		cmd = message.Text
	}

	if cmd != "" {
		b.handleCommand(message.From, message.Chat, cmd, message.CommandArguments())
	} else {
		b.handleInput(message.From, message.Chat, message.Text)
	}
}

func (b *Bot) handleCommand(user *botApi.User, chat *botApi.Chat, command string, args string) {

	var response botApi.Chattable
	var ctx = b.contextFor(user.ID, chat.ID)

	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	switch command {
	case "start":
		ctx.AbortCommand()
		ctx.awaitingBroadcast = false
		b.enterStep(ctx, b.script.Entry)
	case applyCommandName, "apply":
		ctx.RunCommand(newApplyCommand(b.api, chat.ID, b.repositories.Registrations), applyCommandName)
	case backToMenuCommandName, "menu":
		ctx.AbortCommand()
		ctx.awaitingBroadcast = false
		ctx.stepID = ""
		messageResponse := botApi.NewMessage(chat.ID, textBackToMenu)
		messageResponse.ReplyMarkup = defaultReplyKeyboard()
		response = messageResponse
	case "whoami":
		response = botApi.NewMessage(chat.ID, fmt.Sprintf("Ваш user_id: %d", user.ID))
	case "broadcast":
		response = b.handleBroadcastCommand(ctx, user.ID, chat.ID, args)
	default:
		response = botApi.NewMessage(chat.ID, textUnknownCommand)
	}

	if response == nil {
		return
	}

	_, _ = sendWithLogError(b.api, response)
}

func (b *Bot) handleInput(user *botApi.User, chat *botApi.Chat, input string) {

	b.mu.Lock()
	ctx := b.userContexts[user.ID]
	b.mu.Unlock()

	if ctx == nil {
		_, _ = sendWithLogError(b.api, botApi.NewMessage(chat.ID, textStartFirst))
		return
	}

	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	if ctx.awaitingBroadcast && user.ID == b.opts.AdminID {
		if strings.TrimSpace(input) == "" {
			_, _ = sendWithLogError(b.api, botApi.NewMessage(chat.ID, textEmptyBroadcast))
			return
		}
		ctx.awaitingBroadcast = false
		b.publishBroadcast(chat.ID, input)
		return
	}

	if ctx.HasRunningCommand() {
		ctx.OnUserInput(input)
		return
	}

	if ctx.stepID != "" {
		b.advanceFlow(ctx, user.ID, input)
		return
	}

	_, _ = sendWithLogError(b.api, botApi.NewMessage(chat.ID, textStartFirst))
}

func (b *Bot) handleBroadcastCommand(ctx *userContext, userID int64, chatID int64, args string) botApi.Chattable {

	if userID != b.opts.AdminID {
		return botApi.NewMessage(chatID, textAdminOnly)
	}

	payload := strings.TrimSpace(args)
	if payload != "" {
		b.publishBroadcast(chatID, payload)
		return nil
	}

	ctx.awaitingBroadcast = true
	return botApi.NewMessage(chatID, textBroadcastPrompt)
}

func (b *Bot) publishBroadcast(adminChatID int64, text string) {
	b.bus.Publish(events.BroadcastRequestedTopic, events.BroadcastRequested{
		AdminChatID: adminChatID,
		Text:        text,
	})
}

func (b *Bot) rememberUser(user *botApi.User) {
	if user == nil {
		return
	}
	if err := b.repositories.Users.Add(context.Background(), entities.NewUser(user.ID, user.UserName)); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("couldn't remember user: %v", err)
	}
}

func (b *Bot) contextFor(userID int64, chatID int64) *userContext {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx := b.userContexts[userID]
	if ctx == nil {
		ctx = newUserContext(chatID)
		b.userContexts[userID] = ctx
	}
	return ctx
}

func (b *Bot) saveUserContexts() error {
	b.mu.Lock()
	data, err := json.Marshal(b.userContexts)
	b.mu.Unlock()
	if err != nil {
		return err
	}
	return b.repositories.Data.Save(context.Background(), "user_contexts", data)
}

func (b *Bot) loadUserContexts() error {
	data, err := b.repositories.Data.LoadAndRemove(context.Background(), "user_contexts")
	if err != nil || data == nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err = json.Unmarshal(data, &b.userContexts); err != nil {
		return err
	}

	var errs []error
	for i, ctx := range b.userContexts {

		if ctx.curCommandName == "" {
			continue
		}

		if ctx.curCommandName != applyCommandName {
			errs = append(errs, fmt.Errorf("unknown command: %v", ctx.curCommandName))
			delete(b.userContexts, i)
			continue
		}

		cmd := newApplyCommand(b.api, ctx.chatID, b.repositories.Registrations)
		if err = cmd.LoadState(ctx.curCommandState); err != nil {
			errs = append(errs, err)
			delete(b.userContexts, i)
			continue
		}

		ctx.ResumeCommandAfterBotRestart(cmd)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func defaultReplyKeyboard() botApi.ReplyKeyboardMarkup {
	return botApi.NewReplyKeyboard(
		botApi.NewKeyboardButtonRow(
			botApi.NewKeyboardButton(applyCommandName),
		),
	)
}

func keyboardWithExit() botApi.ReplyKeyboardMarkup {
	return botApi.NewReplyKeyboard(
		botApi.NewKeyboardButtonRow(
			botApi.NewKeyboardButton(backToMenuCommandName),
		),
	)
}
