package bot

import (
	"encoding/json"
	"sync"
)

// userContext tracks where a single chat is: the script step it is on, the
// form command it is running, and transient admin state. Updates are handled
// in separate goroutines, mu serializes the ones touching the same chat.
type userContext struct {
	mu                sync.Mutex
	chatID            int64
	stepID            string
	curCommand        command
	curCommandName    string
	curCommandState   []byte
	awaitingBroadcast bool
}

func newUserContext(chatID int64) *userContext {
	return &userContext{chatID: chatID}
}

func (u *userContext) RunCommand(command command, name string) {
	u.setCommand(command, name)
	u.curCommand.Run()
}

func (u *userContext) ResumeCommandAfterBotRestart(command command) {
	u.setCommand(command, u.curCommandName)
}

func (u *userContext) HasRunningCommand() bool {
	return u.curCommand != nil
}

func (u *userContext) OnUserInput(input string) {
	u.curCommand.OnUserInput(input)
}

func (u *userContext) AbortCommand() {
	u.curCommand = nil
	u.curCommandName = ""
	u.curCommandState = nil
}

func (u *userContext) MarshalJSON() ([]byte, error) {

	var cmdState []byte
	var err error
	if u.curCommand != nil {
		if saveableCmd, ok := u.curCommand.(saveable); ok {
			cmdState, err = saveableCmd.SaveState()
		}
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(&struct {
		ChatID          int64  `json:"chatID"`
		StepID          string `json:"stepID"`
		CurCommandName  string `json:"curCommandName"`
		CurCommandState []byte `json:"curCommandState"`
	}{
		ChatID:          u.chatID,
		StepID:          u.stepID,
		CurCommandName:  u.curCommandName,
		CurCommandState: cmdState,
	})
}

func (u *userContext) UnmarshalJSON(data []byte) error {

	aux := &struct {
		ChatID          int64  `json:"chatID"`
		StepID          string `json:"stepID"`
		CurCommandName  string `json:"curCommandName"`
		CurCommandState []byte `json:"curCommandState"`
	}{}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	u.chatID = aux.ChatID
	u.stepID = aux.StepID
	u.curCommandName = aux.CurCommandName
	u.curCommandState = aux.CurCommandState
	return nil
}

func (u *userContext) setCommand(command command, name string) {
	u.curCommand = command
	u.curCommandName = name
	u.curCommand.WithFinishCallback(func() {
		u.curCommand = nil
		u.curCommandName = ""
	})
	u.curCommand.WithKeyboardOnFinalMessage(defaultReplyKeyboard())
}
