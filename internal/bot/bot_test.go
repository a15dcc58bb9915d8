package bot

import (
	"context"
	"github.com/asaskevich/EventBus"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/entities"
	"github.com/goingbraindeadisolated/tg-yearend-helper-bot/internal/flow"
	gocache "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"sync"
	"testing"
	"time"
)

type mockApi struct {
	mu           sync.Mutex
	SentMessages []botApi.Chattable
}

func (m *mockApi) Send(chattable botApi.Chattable) (botApi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = append(m.SentMessages, chattable)
	return botApi.Message{}, nil
}

func (m *mockApi) lastMessageText(t *testing.T) string {
	t.Helper()
	if len(m.SentMessages) == 0 {
		t.Fatal("no messages were sent")
	}
	msg, ok := m.SentMessages[len(m.SentMessages)-1].(botApi.MessageConfig)
	if !ok {
		t.Fatalf("last sent chattable is %T, not MessageConfig", m.SentMessages[len(m.SentMessages)-1])
	}
	return msg.Text
}

type mockRegistrationsRepo struct {
	Registrations []entities.Registration
}

func (m *mockRegistrationsRepo) Add(_ context.Context, registration entities.Registration) error {
	m.Registrations = append(m.Registrations, registration)
	return nil
}

type mockUsersRepo struct {
	mu    sync.Mutex
	Users []entities.User
}

func (m *mockUsersRepo) Add(_ context.Context, user entities.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users = append(m.Users, user)
	return nil
}

type mockClaimsRepo struct {
	Claims   []entities.PaymentClaim
	Statuses map[string]entities.ClaimStatus
}

func (m *mockClaimsRepo) Add(_ context.Context, claim entities.PaymentClaim) error {
	m.Claims = append(m.Claims, claim)
	return nil
}

func (m *mockClaimsRepo) SetStatus(_ context.Context, orderTag string, status entities.ClaimStatus) error {
	if m.Statuses == nil {
		m.Statuses = make(map[string]entities.ClaimStatus)
	}
	m.Statuses[orderTag] = status
	return nil
}

type mockDataRepo struct {
	Saved map[string][]byte
}

func (m *mockDataRepo) Save(_ context.Context, id string, data []byte) error {
	if m.Saved == nil {
		m.Saved = make(map[string][]byte)
	}
	m.Saved[id] = data
	return nil
}

func (m *mockDataRepo) LoadAndRemove(_ context.Context, id string) ([]byte, error) {
	data := m.Saved[id]
	delete(m.Saved, id)
	return data, nil
}

func testScript() *flow.Script {
	script := &flow.Script{
		Entry:          "1",
		CompletionStep: "3",
		Deliverable:    "guide.pdf",
		Steps: []flow.Step{
			{
				ID:   "1",
				Text: "Привет!",
				Answers: []flow.Answer{
					{Label: "Дальше", Action: flow.Action{Type: flow.ActionGoto, Target: "2"}},
					{Label: "Реквизиты", Action: flow.Action{Type: flow.ActionRaw, Payload: "Карта 0000"}},
				},
			},
			{
				ID:   "2",
				Text: "Оплата",
				Answers: []flow.Answer{
					{Label: "Оплатил картой", Action: flow.Action{Type: flow.ActionGoto, Target: "3"}},
				},
			},
			{ID: "3", Text: "Спасибо!"},
		},
	}
	return script
}

func testBot(api *mockApi) (*Bot, *mockClaimsRepo, *mockRegistrationsRepo) {
	claims := &mockClaimsRepo{}
	registrations := &mockRegistrationsRepo{}
	b := &Bot{
		api:          api,
		userContexts: make(map[int64]*userContext),
		bus:          EventBus.New(),
		script:       testScript(),
		repositories: Repositories{
			Users:         &mockUsersRepo{},
			Registrations: registrations,
			Claims:        claims,
			Data:          &mockDataRepo{},
		},
		pendingReceipts: gocache.New(time.Hour, time.Hour),
		opts: Options{
			AdminID:            999,
			AssetsDir:          "./assets",
			PaymentLabelPrefix: "оплатил",
			ReceiptWindow:      time.Hour,
		},
	}
	return b, claims, registrations
}

func Test_ApplyCommand_HappyPath(t *testing.T) {
	api := &mockApi{}
	repo := &mockRegistrationsRepo{}
	finished := false

	cmd := newApplyCommand(api, 42, repo)
	cmd.WithFinishCallback(func() { finished = true })

	cmd.Run()
	cmd.OnUserInput("Иван")
	cmd.OnUserInput("30")
	cmd.OnUserInput(confirmYes)

	assert.True(t, finished)
	assert.Len(t, repo.Registrations, 1)
	assert.Equal(t, "Иван", repo.Registrations[0].Name)
	assert.Equal(t, 30, repo.Registrations[0].Age)
	assert.Equal(t, int64(42), repo.Registrations[0].UserID)
}

func Test_ApplyCommand_InvalidAgeReprompts(t *testing.T) {
	api := &mockApi{}
	repo := &mockRegistrationsRepo{}

	cmd := newApplyCommand(api, 42, repo)
	cmd.Run()
	cmd.OnUserInput("Иван")

	cmd.OnUserInput("тридцать")
	assert.Equal(t, "Введите возраст числом от 1 до 120.", api.lastMessageText(t))
	assert.Equal(t, 1, cmd.curHandlerIndex)

	cmd.OnUserInput("200")
	assert.Equal(t, "Введите возраст числом от 1 до 120.", api.lastMessageText(t))
	assert.Equal(t, 1, cmd.curHandlerIndex)

	cmd.OnUserInput("30")
	assert.Equal(t, 2, cmd.curHandlerIndex)
}

func Test_ApplyCommand_EmptyNameReprompts(t *testing.T) {
	api := &mockApi{}
	cmd := newApplyCommand(api, 42, &mockRegistrationsRepo{})

	cmd.Run()
	cmd.OnUserInput("   ")

	assert.Equal(t, "Введите имя (не длиннее 100 символов).", api.lastMessageText(t))
	assert.Equal(t, 0, cmd.curHandlerIndex)
}

func Test_ApplyCommand_DeclineDiscardsRegistration(t *testing.T) {
	api := &mockApi{}
	repo := &mockRegistrationsRepo{}
	cmd := newApplyCommand(api, 42, repo)

	cmd.Run()
	cmd.OnUserInput("Иван")
	cmd.OnUserInput("30")
	cmd.OnUserInput(confirmNo)

	assert.Empty(t, repo.Registrations)
	assert.Equal(t, "Заявка отменена.", api.lastMessageText(t))
}

func Test_Flow_GotoAdvancesStep(t *testing.T) {
	api := &mockApi{}
	b, _, _ := testBot(api)
	ctx := b.contextFor(1, 1)

	b.enterStep(ctx, "1")
	b.advanceFlow(ctx, 1, "дальше")

	assert.Equal(t, "2", ctx.stepID)
}

func Test_Flow_UnmatchedReplyKeepsStep(t *testing.T) {
	api := &mockApi{}
	b, _, _ := testBot(api)
	ctx := b.contextFor(1, 1)

	b.enterStep(ctx, "1")
	b.advanceFlow(ctx, 1, "что-то своё")

	assert.Equal(t, "1", ctx.stepID)
	assert.Equal(t, textUseButtons, api.lastMessageText(t))
}

func Test_Flow_RawActionStaysOnStep(t *testing.T) {
	api := &mockApi{}
	b, _, _ := testBot(api)
	ctx := b.contextFor(1, 1)

	b.enterStep(ctx, "1")
	b.advanceFlow(ctx, 1, "Реквизиты")

	assert.Equal(t, "1", ctx.stepID)
	assert.Equal(t, flow.EscapeMarkdownV2("Карта 0000", false), api.lastMessageText(t))
}

func Test_Flow_PaymentButtonOpensReceiptWindow(t *testing.T) {
	api := &mockApi{}
	b, _, _ := testBot(api)
	ctx := b.contextFor(1, 1)

	b.enterStep(ctx, "2")
	b.advanceFlow(ctx, 1, "Оплатил картой")

	assert.True(t, b.hasPendingReceipt(1))
	assert.Equal(t, "2", ctx.stepID)
	assert.Equal(t, textSendReceipt, api.lastMessageText(t))
}

func Test_HandleReceipt_ForwardsToAdminAndPersistsClaim(t *testing.T) {
	api := &mockApi{}
	b, claims, _ := testBot(api)
	ctx := b.contextFor(1, 1)

	b.enterStep(ctx, "2")
	b.advanceFlow(ctx, 1, "Оплатил картой")

	message := &botApi.Message{
		MessageID: 7,
		From:      &botApi.User{ID: 1},
		Chat:      &botApi.Chat{ID: 1},
		Photo:     []botApi.PhotoSize{{FileID: "photo"}},
	}
	b.handleReceipt(message)

	assert.Len(t, claims.Claims, 1)
	assert.Equal(t, int64(1), claims.Claims[0].UserID)
	assert.Equal(t, entities.ClaimPending, claims.Claims[0].Status)
	assert.False(t, b.hasPendingReceipt(1))

	forwarded := false
	for _, sent := range api.SentMessages {
		if _, ok := sent.(botApi.ForwardConfig); ok {
			forwarded = true
		}
	}
	assert.True(t, forwarded)
	assert.Equal(t, textReceiptSent, api.lastMessageText(t))
}

func Test_Callback_ConfirmSetsClaimStatus(t *testing.T) {
	api := &mockApi{}
	b, claims, _ := testBot(api)

	callback := &botApi.CallbackQuery{
		ID:   "cb",
		From: &botApi.User{ID: 999},
		Data: "pay:ok:5:5-123",
	}
	b.handleCallback(callback)

	assert.Equal(t, entities.ClaimConfirmed, claims.Statuses["5-123"])
}

func Test_Callback_NonAdminIgnored(t *testing.T) {
	api := &mockApi{}
	b, claims, _ := testBot(api)

	callback := &botApi.CallbackQuery{
		ID:   "cb",
		From: &botApi.User{ID: 5},
		Data: "pay:ok:5:5-123",
	}
	b.handleCallback(callback)

	assert.Empty(t, claims.Statuses)
}

func Test_Broadcast_NonAdminRefused(t *testing.T) {
	api := &mockApi{}
	b, _, _ := testBot(api)
	ctx := b.contextFor(5, 5)

	response := b.handleBroadcastCommand(ctx, 5, 5, "привет")

	msg, ok := response.(botApi.MessageConfig)
	assert.True(t, ok)
	assert.Equal(t, textAdminOnly, msg.Text)
	assert.False(t, ctx.awaitingBroadcast)
}

func Test_Broadcast_AdminWithoutPayloadAwaitsText(t *testing.T) {
	api := &mockApi{}
	b, _, _ := testBot(api)
	ctx := b.contextFor(999, 999)

	response := b.handleBroadcastCommand(ctx, 999, 999, "")

	msg, ok := response.(botApi.MessageConfig)
	assert.True(t, ok)
	assert.Equal(t, textBroadcastPrompt, msg.Text)
	assert.True(t, ctx.awaitingBroadcast)
}

func Test_UserContexts_SurviveSaveAndLoad(t *testing.T) {
	api := &mockApi{}
	b, _, _ := testBot(api)
	ctx := b.contextFor(1, 1)
	b.enterStep(ctx, "2")
	ctx.RunCommand(newApplyCommand(api, 1, &mockRegistrationsRepo{}), applyCommandName)
	ctx.OnUserInput("Иван")

	assert.NoError(t, b.saveUserContexts())

	restored, _, _ := testBot(&mockApi{})
	restored.repositories.Data = b.repositories.Data
	assert.NoError(t, restored.loadUserContexts())

	restoredCtx := restored.userContexts[1]
	if assert.NotNil(t, restoredCtx) {
		assert.Equal(t, "2", restoredCtx.stepID)
		assert.True(t, restoredCtx.HasRunningCommand())
		cmd := restoredCtx.curCommand.(*applyCommand)
		assert.Equal(t, "Иван", cmd.name)
		assert.Equal(t, 1, cmd.curHandlerIndex)
	}
}

type mockCallbackApi struct {
	mockApi
	Answered []botApi.Chattable
}

func (m *mockCallbackApi) Request(chattable botApi.Chattable) (*botApi.APIResponse, error) {
	m.Answered = append(m.Answered, chattable)
	return &botApi.APIResponse{Ok: true}, nil
}

func keyboardOffered(api *mockApi, label string) bool {
	for _, sent := range api.SentMessages {
		msg, ok := sent.(botApi.MessageConfig)
		if !ok {
			continue
		}
		keyboard, ok := msg.ReplyMarkup.(botApi.ReplyKeyboardMarkup)
		if !ok {
			continue
		}
		for _, row := range keyboard.Keyboard {
			for _, button := range row {
				if button.Text == label {
					return true
				}
			}
		}
	}
	return false
}

func Test_Start_KeyboardOffersApplyButton(t *testing.T) {
	api := &mockApi{}
	b, _, _ := testBot(api)

	b.handleCommand(&botApi.User{ID: 1}, &botApi.Chat{ID: 1}, "start", "")

	assert.True(t, keyboardOffered(api, applyCommandName))
}

func Test_ConcurrentInputs_KeepCommandStateConsistent(t *testing.T) {
	api := &mockApi{}
	b, _, _ := testBot(api)
	ctx := b.contextFor(1, 1)
	ctx.RunCommand(newApplyCommand(api, 1, &mockRegistrationsRepo{}), applyCommandName)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.handleMessage(&botApi.Message{
				From: &botApi.User{ID: 1},
				Chat: &botApi.Chat{ID: 1},
				Text: "Иван",
			})
		}()
	}
	wg.Wait()

	// the first input fills the name, the rest fail age validation
	cmd := ctx.curCommand.(*applyCommand)
	assert.Equal(t, 1, cmd.curHandlerIndex)
}

func Test_Callback_AnsweredExactlyOnce(t *testing.T) {
	api := &mockCallbackApi{}
	b, claims, _ := testBot(&api.mockApi)
	b.api = api

	b.handleCallback(&botApi.CallbackQuery{ID: "cb", From: &botApi.User{ID: 5}, Data: "pay:ok:5:5-1"})

	if assert.Len(t, api.Answered, 1) {
		answer := api.Answered[0].(botApi.CallbackConfig)
		assert.Equal(t, textAdminOnly, answer.Text)
	}
	assert.Empty(t, claims.Statuses)

	api.Answered = nil
	b.handleCallback(&botApi.CallbackQuery{ID: "cb2", From: &botApi.User{ID: 999}, Data: "pay:ok:5:5-1"})

	assert.Len(t, api.Answered, 1)
}

func Test_Broadcast_StartClearsAwaiting(t *testing.T) {
	api := &mockApi{}
	b, _, _ := testBot(api)
	ctx := b.contextFor(999, 999)
	b.handleBroadcastCommand(ctx, 999, 999, "")
	assert.True(t, ctx.awaitingBroadcast)

	b.handleCommand(&botApi.User{ID: 999}, &botApi.Chat{ID: 999}, "start", "")

	assert.False(t, ctx.awaitingBroadcast)
}

func Test_Broadcast_EmptyTextKeepsAwaiting(t *testing.T) {
	api := &mockApi{}
	b, _, _ := testBot(api)
	ctx := b.contextFor(999, 999)
	ctx.awaitingBroadcast = true

	b.handleInput(&botApi.User{ID: 999}, &botApi.Chat{ID: 999}, "   ")

	assert.True(t, ctx.awaitingBroadcast)
	assert.Equal(t, textEmptyBroadcast, api.lastMessageText(t))
}

func Test_HandleInput_WithoutContextAsksForStart(t *testing.T) {
	api := &mockApi{}
	b, _, _ := testBot(api)

	b.handleInput(&botApi.User{ID: 1}, &botApi.Chat{ID: 1}, "привет")

	assert.Equal(t, textStartFirst, api.lastMessageText(t))
}
