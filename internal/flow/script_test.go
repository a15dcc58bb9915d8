package flow

import (
	"github.com/stretchr/testify/assert"
	"os"
	"testing"
)

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := t.TempDir() + "/script.yaml"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validScript = `
entry: "1"
completion_step: "3"
steps:
  - id: "1"
    text: "Привет!"
    answers:
      - label: "Дальше"
        action:
          type: goto
          target: "2"
  - id: "2"
    text: "Как оплатить"
    preformatted: true
    answers:
      - label: "Показать примеры"
        action:
          type: media
          files: ["example1.png", "example2.png"]
      - label: "Реквизиты"
        action:
          type: raw
          payload: "Карта 0000 0000"
  - id: "3"
    text: "Готово, спасибо!"
`

func Test_Load_ValidScript(t *testing.T) {
	script, err := Load(writeScript(t, validScript))

	assert.NoError(t, err)
	assert.Len(t, script.Steps, 3)

	step, ok := script.Step("2")
	assert.True(t, ok)
	assert.Len(t, step.Answers, 2)

	completion, ok := script.Completion()
	assert.True(t, ok)
	assert.Equal(t, "3", completion.ID)
}

func Test_Load_FailsOnUnknownGotoTarget(t *testing.T) {
	_, err := Load(writeScript(t, `
entry: "1"
steps:
  - id: "1"
    text: "Привет!"
    answers:
      - label: "Дальше"
        action:
          type: goto
          target: "404"
`))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step")
}

func Test_Load_FailsOnMissingEntry(t *testing.T) {
	_, err := Load(writeScript(t, `
entry: "0"
steps:
  - id: "1"
    text: "Привет!"
`))

	assert.Error(t, err)
}

func Test_Load_FailsOnDuplicateLabels(t *testing.T) {
	_, err := Load(writeScript(t, `
entry: "1"
steps:
  - id: "1"
    text: "Привет!"
    answers:
      - label: "Да"
        action:
          type: raw
          payload: "ок"
      - label: " ДА "
        action:
          type: raw
          payload: "ок"
`))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate answer labels")
}

func Test_Load_FailsOnMissingFile(t *testing.T) {
	_, err := Load(t.TempDir() + "/nope.yaml")

	assert.Error(t, err)
}
