package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-iom/internal/logging"
	"github.com/goliatone/go-iom/pkg/form"
	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/options"
	"github.com/goliatone/go-iom/pkg/render"
	"github.com/goliatone/go-iom/pkg/workflow"
)

const (
	noneChoice   = "(none)"
	cancelChoice = "Cancel"
)

// Renderer fills form engines and drives workflow sessions through terminal
// prompts.
type Renderer struct {
	driver      PromptDriver
	fetcher     options.Fetcher
	logger      *logrus.Entry
	adapterOpts []options.Option
	resolve     render.LabelResolver
	theme       Theme
}

// New constructs a TUI renderer with defaults (survey driver, offline
// selectors).
func New(opts ...Option) (*Renderer, error) {
	r := &Renderer{
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(r)
	}
	if r.driver == nil {
		r.driver = NewSurveyDriver(nil)
	}
	return r, nil
}

// Fill prompts for the subject and every visible field of the engine, in
// template order. Visibility is re-evaluated after each answer so fields
// revealed by earlier answers are asked too.
func (r *Renderer) Fill(ctx context.Context, e *form.Engine) error {
	if ctx == nil {
		return errors.New("tui: context is required")
	}
	if e == nil {
		return errors.New("tui: form engine is nil")
	}
	if err := r.promptSubject(ctx, e); err != nil {
		return err
	}
	for _, field := range e.Template().Fields {
		if err := ctx.Err(); err != nil {
			return err
		}
		ctrl, ok := controlFor(e, field.Name)
		if !ok {
			continue
		}
		if err := r.PromptControl(ctx, ctrl); err != nil {
			return fmt.Errorf("tui: %s: %w", field.Name, err)
		}
	}
	return nil
}

func controlFor(e *form.Engine, name string) (render.Control, bool) {
	for _, ctrl := range e.Controls() {
		if ctrl.Field.Name == name {
			return ctrl, true
		}
	}
	return render.Control{}, false
}

func (r *Renderer) promptSubject(ctx context.Context, e *form.Engine) error {
	for {
		subject, err := r.driver.Input(ctx, InputConfig{
			Message:  r.prompt("Subject"),
			Default:  e.Subject(),
			Required: true,
		})
		if err != nil {
			return err
		}
		if strings.TrimSpace(subject) == "" {
			_ = r.info(ctx, "Subject is required")
			continue
		}
		e.SetSubject(subject)
		return nil
	}
}

// PromptControl asks for one control and routes the answer through
// Control.Set. Invalid answers are reported and asked again.
func (r *Renderer) PromptControl(ctx context.Context, ctrl render.Control) error {
	for _, msg := range ctrl.Errors {
		_ = r.errorf(ctx, "%s: %s", ctrl.Field.DisplayLabel(), msg)
	}
	if ctrl.Disabled {
		return r.info(ctx, fmt.Sprintf("%s: %s", ctrl.Field.DisplayLabel(), ctrl.Text()))
	}

	switch ctrl.Widget {
	case render.WidgetText, render.WidgetFile:
		return r.promptText(ctx, ctrl, false)
	case render.WidgetTextArea:
		return r.promptText(ctx, ctrl, true)
	case render.WidgetNumber, render.WidgetDate, render.WidgetDateTime:
		return r.promptParsed(ctx, ctrl)
	case render.WidgetCheckbox:
		return r.promptBoolean(ctx, ctrl)
	case render.WidgetSelect:
		return r.promptChoice(ctx, ctrl)
	case render.WidgetMultiSelect:
		return r.promptChoices(ctx, ctrl)
	case render.WidgetAutocomplete, render.WidgetAutocompleteMultiple:
		return r.promptSelector(ctx, ctrl)
	default:
		return nil
	}
}

func (r *Renderer) promptText(ctx context.Context, ctrl render.Control, multiline bool) error {
	label := r.prompt(ctrl.Field.DisplayLabel())
	current, _ := ctrl.Value.(string)
	for {
		var (
			response string
			err      error
		)
		if multiline {
			response, err = r.driver.TextArea(ctx, TextAreaConfig{
				Message:  label,
				Default:  current,
				Help:     helpFor(ctrl),
				Required: ctrl.Required,
			})
		} else {
			response, err = r.driver.Input(ctx, InputConfig{
				Message:     label,
				Default:     current,
				Help:        helpFor(ctrl),
				Placeholder: ctrl.Field.Placeholder,
				Required:    ctrl.Required,
			})
		}
		if err != nil {
			return err
		}
		if ctrl.Required && strings.TrimSpace(response) == "" {
			_ = r.errorf(ctx, "Invalid %s: required", ctrl.Field.Name)
			continue
		}
		return ctrl.Set(response)
	}
}

func (r *Renderer) promptParsed(ctx context.Context, ctrl render.Control) error {
	label := r.prompt(ctrl.Field.DisplayLabel())
	current := ""
	if !model.IsEmpty(ctrl.Value) && !ctrl.Invalid {
		current = model.IDString(ctrl.Value)
	}
	help := helpFor(ctrl)
	switch ctrl.Widget {
	case render.WidgetDate:
		help = joinHelp(help, "Format: YYYY-MM-DD")
	case render.WidgetDateTime:
		help = joinHelp(help, "Format: YYYY-MM-DD HH:MM")
	}

	for {
		input, err := r.driver.Input(ctx, InputConfig{
			Message:  label,
			Default:  current,
			Help:     help,
			Required: ctrl.Required,
		})
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) == "" && ctrl.Required {
			_ = r.errorf(ctx, "Invalid %s: required", ctrl.Field.Name)
			continue
		}
		if err := ctrl.Set(input); err != nil {
			if errors.Is(err, render.ErrDisabled) {
				return err
			}
			_ = r.errorf(ctx, "Invalid %s: %v", ctrl.Field.Name, err)
			continue
		}
		return nil
	}
}

func (r *Renderer) promptBoolean(ctx context.Context, ctrl render.Control) error {
	current, _ := ctrl.Value.(bool)
	resp, err := r.driver.Confirm(ctx, ConfirmConfig{
		Message: r.prompt(ctrl.Field.DisplayLabel()),
		Default: current,
		Help:    helpFor(ctrl),
	})
	if err != nil {
		return err
	}
	return ctrl.Set(resp)
}

func (r *Renderer) promptChoice(ctx context.Context, ctrl render.Control) error {
	labels := optionLabels(ctrl.Options)
	defaultIdx := -1
	if len(ctrl.Selected) == 1 {
		defaultIdx = optionIndex(ctrl.Options, ctrl.Selected[0])
	}
	for {
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      r.prompt(ctrl.Field.DisplayLabel()),
			Options:      labels,
			DefaultIndex: defaultIdx,
			NoneIndex:    optionIndex(ctrl.Options, render.NoneValue),
			Required:     ctrl.Required,
			Help:         helpFor(ctrl),
		})
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(ctrl.Options) {
			_ = r.errorf(ctx, "Invalid %s selection", ctrl.Field.Name)
			continue
		}
		value := ctrl.Options[idx].Value
		if ctrl.Required && model.IDString(value) == render.NoneValue {
			_ = r.errorf(ctx, "Invalid %s: required", ctrl.Field.Name)
			continue
		}
		return ctrl.Set(value)
	}
}

func (r *Renderer) promptChoices(ctx context.Context, ctrl render.Control) error {
	labels := optionLabels(ctrl.Options)
	var defaults []int
	for _, key := range ctrl.Selected {
		if idx := optionIndex(ctrl.Options, key); idx >= 0 {
			defaults = append(defaults, idx)
		}
	}
	for {
		indices, err := r.driver.MultiSelect(ctx, SelectConfig{
			Message:  r.prompt(ctrl.Field.DisplayLabel()),
			Options:  labels,
			Defaults: defaults,
			Required: ctrl.Required,
			Help:     helpFor(ctrl),
		})
		if err != nil {
			return err
		}
		values := make([]any, 0, len(indices))
		for _, idx := range indices {
			if idx >= 0 && idx < len(ctrl.Options) {
				values = append(values, ctrl.Options[idx].Value)
			}
		}
		if ctrl.Required && len(values) == 0 {
			_ = r.errorf(ctx, "Invalid %s: select at least one option", ctrl.Field.Name)
			continue
		}
		return ctrl.Set(values)
	}
}

// promptSelector searches the remote option source and offers the matches.
// Without a fetcher, or when nothing matches, identifiers are typed in.
func (r *Renderer) promptSelector(ctx context.Context, ctrl render.Control) error {
	if r.fetcher == nil || ctrl.Source == nil {
		return r.promptIdentifiers(ctx, ctrl)
	}
	adapter := options.New(r.fetcher, *ctrl.Source, append([]options.Option{options.WithLogger(r.logger)}, r.adapterOpts...)...)
	defer adapter.Close()

	label := ctrl.Field.DisplayLabel()
	for {
		search, err := r.driver.Input(ctx, InputConfig{
			Message: r.prompt(label + " (search)"),
			Help:    "Leave blank to list the first page of candidates",
		})
		if err != nil {
			return err
		}
		items := adapter.Fetch(ctx, strings.TrimSpace(search))
		if len(items) == 0 {
			_ = r.info(ctx, fmt.Sprintf("No %s candidates found", strings.ToLower(label)))
			return r.promptIdentifiers(ctx, ctrl)
		}

		labels := make([]string, 0, len(items)+1)
		for _, item := range items {
			labels = append(labels, adapter.Label(item))
		}
		selected := itemIndices(adapter, items, ctrl.Value)

		if ctrl.Multiple {
			indices, err := r.driver.MultiSelect(ctx, SelectConfig{
				Message:  r.prompt(label),
				Options:  labels,
				Defaults: selected,
				Required: ctrl.Required,
				Help:     helpFor(ctrl),
			})
			if err != nil {
				return err
			}
			picked := make([]options.Item, 0, len(indices))
			for _, idx := range indices {
				if idx >= 0 && idx < len(items) {
					picked = append(picked, items[idx])
				}
			}
			if ctrl.Required && len(picked) == 0 {
				_ = r.errorf(ctx, "Invalid %s: select at least one", ctrl.Field.Name)
				continue
			}
			return ctrl.Set(adapter.Emit(picked, true))
		}

		defaultIdx := 0
		if len(selected) > 0 {
			defaultIdx = selected[0] + 1
		}
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      r.prompt(label),
			Options:      append([]string{noneChoice}, labels...),
			DefaultIndex: defaultIdx,
			NoneIndex:    0,
			Required:     ctrl.Required,
			Help:         helpFor(ctrl),
		})
		if err != nil {
			return err
		}
		if idx <= 0 || idx > len(items) {
			if ctrl.Required {
				_ = r.errorf(ctx, "Invalid %s: required", ctrl.Field.Name)
				continue
			}
			return ctrl.Set(nil)
		}
		return ctrl.Set(adapter.Emit([]options.Item{items[idx-1]}, false))
	}
}

func (r *Renderer) promptIdentifiers(ctx context.Context, ctrl render.Control) error {
	message := ctrl.Field.DisplayLabel() + " id"
	help := "Enter the identifier"
	if ctrl.Multiple {
		message = ctrl.Field.DisplayLabel() + " ids"
		help = "Enter identifiers separated by commas"
	}
	for {
		input, err := r.driver.Input(ctx, InputConfig{
			Message:  r.prompt(message),
			Default:  strings.Join(ctrl.Selected, ","),
			Help:     help,
			Required: ctrl.Required,
		})
		if err != nil {
			return err
		}
		if ctrl.Required && strings.TrimSpace(input) == "" {
			_ = r.errorf(ctx, "Invalid %s: required", ctrl.Field.Name)
			continue
		}
		if err := ctrl.Set(input); err != nil {
			_ = r.errorf(ctx, "Invalid %s: %v", ctrl.Field.Name, err)
			continue
		}
		return nil
	}
}

// Review prints the preview of the engine's unsaved state and asks whether
// to submit it.
func (r *Renderer) Review(ctx context.Context, e *form.Engine) (bool, error) {
	if !e.Previewing() {
		e.TogglePreview()
	}
	defer func() {
		if e.Previewing() {
			e.TogglePreview()
		}
	}()

	view := e.Preview(r.resolve)
	_ = r.info(ctx, fmt.Sprintf("Subject: %s", view.Document.Subject))
	for _, row := range view.Rows {
		_ = r.info(ctx, fmt.Sprintf("%s: %s", row.Label, row.Text))
	}
	return r.driver.Confirm(ctx, ConfirmConfig{
		Message: r.prompt("Submit this document?"),
		Default: true,
	})
}

// ChooseAction offers the workflow actions available on the loaded document
// and collects a comment when the chosen action needs one. An empty action
// means the user cancelled.
func (r *Renderer) ChooseAction(ctx context.Context, s *workflow.Session) (workflow.Action, string, error) {
	actions := s.Available()
	if len(actions) == 0 {
		_ = r.info(ctx, "No actions are available for this document")
		return "", "", nil
	}
	labels := make([]string, 0, len(actions)+1)
	for _, action := range actions {
		labels = append(labels, actionLabel(action))
	}
	labels = append(labels, cancelChoice)

	idx, err := r.driver.Select(ctx, SelectConfig{
		Message: r.prompt("Action"),
		Options: labels,
	})
	if err != nil {
		return "", "", err
	}
	if idx < 0 || idx >= len(actions) {
		return "", "", nil
	}
	action := actions[idx]
	comments, err := r.promptComment(ctx, workflow.RequiresComment(action))
	if err != nil {
		return "", "", err
	}
	return action, comments, nil
}

// ChooseStep offers the approval steps the actor may act on and returns the
// chosen step with approve or reject.
func (r *Renderer) ChooseStep(ctx context.Context, s *workflow.Session) (model.ApprovalStep, workflow.Action, string, error) {
	var actionable []model.ApprovalStep
	for _, step := range s.Steps() {
		if s.StepActionable(step) {
			actionable = append(actionable, step)
		}
	}
	if len(actionable) == 0 {
		_ = r.info(ctx, "No approval steps are waiting on you")
		return model.ApprovalStep{}, "", "", nil
	}

	labels := make([]string, 0, len(actionable)+1)
	for _, step := range actionable {
		labels = append(labels, stepLabel(step))
	}
	labels = append(labels, cancelChoice)
	idx, err := r.driver.Select(ctx, SelectConfig{
		Message: r.prompt("Approval step"),
		Options: labels,
	})
	if err != nil {
		return model.ApprovalStep{}, "", "", err
	}
	if idx < 0 || idx >= len(actionable) {
		return model.ApprovalStep{}, "", "", nil
	}

	choice, err := r.driver.Select(ctx, SelectConfig{
		Message: r.prompt("Decision"),
		Options: []string{"Approve", "Reject"},
	})
	if err != nil {
		return model.ApprovalStep{}, "", "", err
	}
	action := workflow.ActionApprove
	if choice == 1 {
		action = workflow.ActionReject
	}
	comments, err := r.promptComment(ctx, workflow.RequiresComment(action))
	if err != nil {
		return model.ApprovalStep{}, "", "", err
	}
	return actionable[idx], action, comments, nil
}

func (r *Renderer) promptComment(ctx context.Context, required bool) (string, error) {
	for {
		comments, err := r.driver.TextArea(ctx, TextAreaConfig{
			Message:  r.prompt("Comments"),
			Required: required,
		})
		if err != nil {
			return "", err
		}
		if required && strings.TrimSpace(comments) == "" {
			_ = r.errorf(ctx, "A comment is required")
			continue
		}
		return strings.TrimSpace(comments), nil
	}
}

func (r *Renderer) prompt(msg string) string {
	return r.theme.PromptPrefix + msg
}

func (r *Renderer) info(ctx context.Context, msg string) error {
	return r.driver.Info(ctx, r.theme.InfoPrefix+msg)
}

func (r *Renderer) errorf(ctx context.Context, format string, args ...any) error {
	return r.driver.Info(ctx, r.theme.ErrorPrefix+fmt.Sprintf(format, args...))
}

func helpFor(ctrl render.Control) string {
	return ctrl.Field.HelpText
}

func joinHelp(help, extra string) string {
	if help == "" {
		return extra
	}
	return help + " (" + extra + ")"
}

func optionLabels(opts []model.Option) []string {
	out := make([]string, len(opts))
	for i, opt := range opts {
		if opt.Label != "" {
			out[i] = opt.Label
		} else {
			out[i] = model.IDString(opt.Value)
		}
	}
	return out
}

func optionIndex(opts []model.Option, key string) int {
	for i, opt := range opts {
		if model.IDString(opt.Value) == key {
			return i
		}
	}
	return -1
}

func itemIndices(adapter *options.Adapter, items []options.Item, value any) []int {
	selected := adapter.Selected(value)
	if len(selected) == 0 {
		return nil
	}
	valueField := adapter.Source().ValueField
	wanted := make(map[string]struct{}, len(selected))
	for _, item := range selected {
		wanted[model.IDString(item.Value(valueField))] = struct{}{}
	}
	var out []int
	for i, item := range items {
		if _, ok := wanted[model.IDString(item.Value(valueField))]; ok {
			out = append(out, i)
		}
	}
	return out
}

func actionLabel(action workflow.Action) string {
	switch action {
	case workflow.ActionSubmit:
		return "Submit for approval"
	case workflow.ActionApprove:
		return "Approve"
	case workflow.ActionReject:
		return "Reject"
	case workflow.ActionPublish:
		return "Publish"
	case workflow.ActionArchive:
		return "Archive"
	case workflow.ActionUnarchive:
		return "Unarchive"
	default:
		return string(action)
	}
}

func stepLabel(step model.ApprovalStep) string {
	name := step.Name
	if name == "" {
		name = fmt.Sprintf("Step %d", step.StepOrder)
	}
	if assignee := step.AssigneeLabel(); assignee != "" {
		return fmt.Sprintf("%d. %s (%s)", step.StepOrder, name, assignee)
	}
	return fmt.Sprintf("%d. %s", step.StepOrder, name)
}
