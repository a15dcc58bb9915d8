package flow

import (
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Script is the whole conversation: an ordered set of steps, an entry point
// and an optional completion step whose text is sent after a confirmed
// payment.
type Script struct {
	Entry          string `mapstructure:"entry" validate:"required"`
	CompletionStep string `mapstructure:"completion_step"`
	Deliverable    string `mapstructure:"deliverable"`
	Steps          []Step `mapstructure:"steps" validate:"required,min=1,dive"`

	index map[string]*Step
}

// Load reads a script file and validates it. A broken script is a startup
// error: the bot must not come up half-wired.
func Load(path string) (*Script, error) {

	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "couldn't read script file %v", path)
	}

	var script Script
	if err := v.Unmarshal(&script); err != nil {
		return nil, errors.Wrapf(err, "couldn't parse script file %v", path)
	}

	if err := script.validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid script file %v", path)
	}

	script.buildIndex()
	return &script, nil
}

// Step looks a step up by id.
func (s *Script) Step(id string) (*Step, bool) {
	if s.index == nil {
		s.buildIndex()
	}
	step, ok := s.index[id]
	return step, ok
}

// Completion returns the step configured as the post-payment closing
// message, if any.
func (s *Script) Completion() (*Step, bool) {
	if s.CompletionStep == "" {
		return nil, false
	}
	return s.Step(s.CompletionStep)
}

func (s *Script) buildIndex() {
	s.index = make(map[string]*Step, len(s.Steps))
	for i := range s.Steps {
		s.index[s.Steps[i].ID] = &s.Steps[i]
	}
}

func (s *Script) validate() error {

	if err := validator.New().Struct(s); err != nil {
		return err
	}

	ids := lo.Map(s.Steps, func(step Step, _ int) string { return step.ID })
	if len(lo.Uniq(ids)) != len(ids) {
		return errors.New("duplicate step ids")
	}

	known := lo.SliceToMap(s.Steps, func(step Step) (string, struct{}) {
		return step.ID, struct{}{}
	})

	if _, ok := known[s.Entry]; !ok {
		return fmt.Errorf("entry step %q does not exist", s.Entry)
	}

	if s.CompletionStep != "" {
		if _, ok := known[s.CompletionStep]; !ok {
			return fmt.Errorf("completion step %q does not exist", s.CompletionStep)
		}
	}

	var errs []error
	for _, step := range s.Steps {
		errs = append(errs, step.validate(known)...)
	}
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %v", errs)
	}

	return nil
}

func (s *Step) validate(known map[string]struct{}) []error {

	var errs []error

	labels := lo.Map(s.Answers, func(a Answer, _ int) string { return NormalizeLabel(a.Label) })
	if len(lo.Uniq(labels)) != len(labels) {
		errs = append(errs, fmt.Errorf("step %q: duplicate answer labels", s.ID))
	}

	for _, answer := range s.Answers {
		action := answer.Action
		switch action.Type {
		case ActionGoto:
			if action.Target == "" {
				errs = append(errs, fmt.Errorf("step %q: goto without target", s.ID))
			} else if _, ok := known[action.Target]; !ok {
				errs = append(errs, fmt.Errorf("step %q: goto to unknown step %q", s.ID, action.Target))
			}
		case ActionRaw:
			if action.Payload == "" {
				errs = append(errs, fmt.Errorf("step %q: raw action without payload", s.ID))
			}
		case ActionMedia:
			if len(action.Files) == 0 {
				errs = append(errs, fmt.Errorf("step %q: media action without files", s.ID))
			}
			if action.Target != "" {
				if _, ok := known[action.Target]; !ok {
					errs = append(errs, fmt.Errorf("step %q: media goto to unknown step %q", s.ID, action.Target))
				}
			}
		}
	}

	return errs
}
