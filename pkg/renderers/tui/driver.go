package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/core"
	"github.com/AlecAivazis/survey/v2/terminal"
)

var errRequired = errors.New("a value is required")

// InputConfig describes a single-line answer. Required answers must contain
// more than whitespace.
type InputConfig struct {
	Message     string
	Default     string
	Help        string
	Placeholder string
	Required    bool
}

// ConfirmConfig describes a yes/no answer.
type ConfirmConfig struct {
	Message string
	Default bool
	Help    string
}

// SelectConfig describes a pick from Options. A required single select
// rejects the entry at NoneIndex, the "no selection" choice; a required
// multi-select needs at least one pick.
type SelectConfig struct {
	Message      string
	Options      []string
	DefaultIndex int
	Defaults     []int
	NoneIndex    int
	Required     bool
	Help         string
	PageSize     int
}

// TextAreaConfig describes a multi-line answer.
type TextAreaConfig struct {
	Message  string
	Default  string
	Help     string
	Required bool
}

// PromptDriver asks the questions of a form. Drivers may enforce Required
// themselves; the renderer re-checks every answer either way.
type PromptDriver interface {
	Input(ctx context.Context, cfg InputConfig) (string, error)
	Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error)
	Select(ctx context.Context, cfg SelectConfig) (int, error)
	MultiSelect(ctx context.Context, cfg SelectConfig) ([]int, error)
	TextArea(ctx context.Context, cfg TextAreaConfig) (string, error)
	Info(ctx context.Context, msg string) error
}

type surveyDriver struct {
	out  io.Writer
	opts []survey.AskOpt
}

// NewSurveyDriver returns the survey-backed driver writing informational
// messages to out (stdout when nil).
func NewSurveyDriver(out io.Writer, opts ...survey.AskOpt) PromptDriver {
	if out == nil {
		out = os.Stdout
	}
	return &surveyDriver{out: out, opts: opts}
}

func (d *surveyDriver) ask(ctx context.Context, prompt survey.Prompt, out any, validators ...survey.Validator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := append([]survey.AskOpt(nil), d.opts...)
	for _, v := range validators {
		opts = append(opts, survey.WithValidator(v))
	}
	err := survey.AskOne(prompt, out, opts...)
	if errors.Is(err, terminal.InterruptErr) {
		return ErrAborted
	}
	return err
}

func (d *surveyDriver) Input(ctx context.Context, cfg InputConfig) (string, error) {
	var out string
	prompt := &survey.Input{
		Message: cfg.Message,
		Help:    placeholderHelp(cfg.Help, cfg.Placeholder),
		Default: cfg.Default,
	}
	if err := d.ask(ctx, prompt, &out, textValidators(cfg.Required)...); err != nil {
		return "", err
	}
	return out, nil
}

func (d *surveyDriver) Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error) {
	var out bool
	prompt := &survey.Confirm{
		Message: cfg.Message,
		Help:    cfg.Help,
		Default: cfg.Default,
	}
	if err := d.ask(ctx, prompt, &out); err != nil {
		return false, err
	}
	return out, nil
}

func (d *surveyDriver) Select(ctx context.Context, cfg SelectConfig) (int, error) {
	prompt := &survey.Select{
		Message:  cfg.Message,
		Options:  cfg.Options,
		Help:     cfg.Help,
		PageSize: cfg.PageSize,
	}
	if cfg.DefaultIndex >= 0 && cfg.DefaultIndex < len(cfg.Options) {
		prompt.Default = cfg.Options[cfg.DefaultIndex]
	}
	var validators []survey.Validator
	if cfg.Required && cfg.NoneIndex >= 0 {
		validators = append(validators, rejectIndex(cfg.NoneIndex))
	}
	var out int
	if err := d.ask(ctx, prompt, &out, validators...); err != nil {
		return 0, err
	}
	return out, nil
}

func (d *surveyDriver) MultiSelect(ctx context.Context, cfg SelectConfig) ([]int, error) {
	prompt := &survey.MultiSelect{
		Message:  cfg.Message,
		Options:  cfg.Options,
		Help:     cfg.Help,
		PageSize: cfg.PageSize,
	}
	var defaults []string
	for _, idx := range cfg.Defaults {
		if idx >= 0 && idx < len(cfg.Options) {
			defaults = append(defaults, cfg.Options[idx])
		}
	}
	if len(defaults) > 0 {
		prompt.Default = defaults
	}
	var validators []survey.Validator
	if cfg.Required {
		validators = append(validators, survey.MinItems(1))
	}
	var out []int
	if err := d.ask(ctx, prompt, &out, validators...); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *surveyDriver) TextArea(ctx context.Context, cfg TextAreaConfig) (string, error) {
	var out string
	prompt := &survey.Multiline{
		Message: cfg.Message,
		Help:    cfg.Help,
		Default: cfg.Default,
	}
	if err := d.ask(ctx, prompt, &out, textValidators(cfg.Required)...); err != nil {
		return "", err
	}
	return out, nil
}

func (d *surveyDriver) Info(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(d.out, msg)
	return err
}

func textValidators(required bool) []survey.Validator {
	if !required {
		return nil
	}
	return []survey.Validator{requireText}
}

func requireText(ans any) error {
	if s, ok := ans.(string); ok && strings.TrimSpace(s) == "" {
		return errRequired
	}
	return nil
}

func rejectIndex(idx int) survey.Validator {
	return func(ans any) error {
		if opt, ok := ans.(core.OptionAnswer); ok && opt.Index == idx {
			return errRequired
		}
		return nil
	}
}

// placeholderHelp appends the field placeholder to help as an example answer.
func placeholderHelp(help, placeholder string) string {
	placeholder = strings.TrimSpace(placeholder)
	if placeholder == "" {
		return help
	}
	return joinHelp(help, "Example: "+placeholder)
}
