package flow

import (
	"github.com/samber/lo"
	"regexp"
	"strings"
)

type ActionType string

const (
	// ActionGoto switches the session to another step.
	ActionGoto ActionType = "goto"
	// ActionRaw replies with a fixed payload and stays on the current step.
	ActionRaw ActionType = "raw"
	// ActionMedia sends the listed files, then optionally jumps to a target.
	ActionMedia ActionType = "media"
)

type Action struct {
	Type    ActionType `mapstructure:"type" validate:"required,oneof=goto raw media"`
	Target  string     `mapstructure:"target"`
	Payload string     `mapstructure:"payload"`
	Files   []string   `mapstructure:"files"`
}

type Answer struct {
	Label  string `mapstructure:"label" validate:"required"`
	Action Action `mapstructure:"action"`
}

type Step struct {
	ID           string   `mapstructure:"id" validate:"required"`
	Text         string   `mapstructure:"text"`
	Answers      []Answer `mapstructure:"answers" validate:"dive"`
	Attachment   string   `mapstructure:"attachment"`
	Preformatted bool     `mapstructure:"preformatted"`
}

// Match finds the answer whose label equals the user's reply after
// normalization on both sides.
func (s *Step) Match(input string) (*Answer, bool) {
	normalized := NormalizeLabel(input)
	for i := range s.Answers {
		if NormalizeLabel(s.Answers[i].Label) == normalized {
			return &s.Answers[i], true
		}
	}
	return nil, false
}

// KeyboardRows lays the step's answers out as a reply keyboard, one button
// per row.
func (s *Step) KeyboardRows() [][]string {
	return lo.Map(s.Answers, func(a Answer, _ int) []string {
		return []string{a.Label}
	})
}

// Labels returns the original button labels, mostly for diagnostics about
// unmatched replies.
func (s *Step) Labels() []string {
	return lo.Map(s.Answers, func(a Answer, _ int) string {
		return a.Label
	})
}

var whitespaceRe = regexp.MustCompile(`\s+`)

var labelReplacer = strings.NewReplacer(
	" ", " ",
	"’", "'",
	"‘", "'",
	"“", `"`,
	"”", `"`,
)

// NormalizeLabel makes button labels comparable with whatever the Telegram
// client sent back: NBSP and curly quotes become ASCII, runs of whitespace
// collapse, case is ignored.
func NormalizeLabel(s string) string {
	text := labelReplacer.Replace(s)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.ToLower(strings.TrimSpace(text))
}
