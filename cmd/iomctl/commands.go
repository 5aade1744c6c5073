package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/goliatone/go-iom/internal/drafts"
	"github.com/goliatone/go-iom/pkg/client"
	"github.com/goliatone/go-iom/pkg/form"
	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/notify"
	"github.com/goliatone/go-iom/pkg/render"
	"github.com/goliatone/go-iom/pkg/renderers/preview"
	"github.com/goliatone/go-iom/pkg/renderers/tui"
	"github.com/goliatone/go-iom/pkg/schema"
	"github.com/goliatone/go-iom/pkg/visibility"
	exprvis "github.com/goliatone/go-iom/pkg/visibility/expr"
	"github.com/goliatone/go-iom/pkg/workflow"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func runCreate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("create")
	templateID := fs.Int64("template", 0, "template id")
	resume := fs.Bool("resume", false, "resume the saved draft for this template")
	toUsers := fs.String("to-users", "", "comma-separated recipient user ids")
	toGroups := fs.String("to-groups", "", "comma-separated recipient group ids")
	parentApp := fs.String("parent-app", "", "app label of the related record")
	parentModel := fs.String("parent-model", "", "model of the related record")
	parentID := fs.Int64("parent-id", 0, "id of the related record")
	parentDisplay := fs.String("parent-display", "", "display text of the related record")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *templateID <= 0 {
		return errors.New("-template is required")
	}

	tpl, err := a.api.GetTemplate(ctx, *templateID)
	if err != nil {
		return fmt.Errorf("load template %d: %w", *templateID, err)
	}
	opts, err := a.formOptions(ctx)
	if err != nil {
		return err
	}
	var parent *form.Parent
	if *parentID > 0 {
		parent = &form.Parent{AppLabel: *parentApp, Model: *parentModel, ObjectID: *parentID, Display: *parentDisplay}
		opts = append(opts, form.WithParent(*parent))
	}

	e := form.NewCreate(tpl, a.api, opts...)
	if parent != nil {
		e.LinkParent(ctx, a.api, *parent)
	}
	users, err := parseIDs(*toUsers)
	if err != nil {
		return fmt.Errorf("-to-users: %w", err)
	}
	groups, err := parseIDs(*toGroups)
	if err != nil {
		return fmt.Errorf("-to-groups: %w", err)
	}
	e.SetRecipients(users, groups)

	if *resume {
		if err := a.restore(ctx, e, form.CreateDraftKey(tpl.ID)); err != nil {
			return err
		}
	}
	return a.fillAndSubmit(ctx, e)
}

func runEdit(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("edit")
	id := fs.Int64("id", 0, "IOM id")
	resume := fs.Bool("resume", false, "resume the saved draft for this IOM")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("-id is required")
	}

	doc, err := a.api.GetIOM(ctx, *id)
	if err != nil {
		return fmt.Errorf("load iom %d: %w", *id, err)
	}
	if doc.Status != model.StatusDraft && doc.Status != model.StatusRejected {
		return fmt.Errorf("iom %d is %s and cannot be edited", doc.ID, doc.Status.Label())
	}
	opts, err := a.formOptions(ctx)
	if err != nil {
		return err
	}
	if doc.Template == nil {
		tpl, err := a.api.GetTemplate(ctx, doc.TemplateID)
		if err != nil {
			return fmt.Errorf("load template %d: %w", doc.TemplateID, err)
		}
		opts = append(opts, form.WithTemplate(tpl))
	}
	e, err := form.NewEdit(doc, a.api, opts...)
	if err != nil {
		return err
	}
	if *resume {
		if err := a.restore(ctx, e, form.EditDraftKey(doc.ID)); err != nil {
			return err
		}
	}
	return a.fillAndSubmit(ctx, e)
}

func (a *app) restore(ctx context.Context, e *form.Engine, key string) error {
	store, err := a.draftStore(ctx)
	if err != nil {
		return err
	}
	d, err := store.Load(ctx, key)
	if errors.Is(err, drafts.ErrNotFound) {
		a.notify.Notify(notify.LevelInfo, "No saved draft, starting fresh.")
		return nil
	}
	if err != nil {
		return err
	}
	e.Restore(d)
	a.logger.WithField("draft", key).Info("draft restored")
	return nil
}

// fillAndSubmit prompts, reviews and submits until the document is saved.
// Validation failures loop back to the prompts with the messages attached;
// aborts and transport failures keep the entered values as a draft.
func (a *app) fillAndSubmit(ctx context.Context, e *form.Engine) error {
	for {
		if err := a.ui.Fill(ctx, e); err != nil {
			if errors.Is(err, tui.ErrAborted) {
				a.saveDraft(ctx, e)
			}
			return err
		}
		ok, err := a.ui.Review(ctx, e)
		if err != nil {
			if errors.Is(err, tui.ErrAborted) {
				a.saveDraft(ctx, e)
			}
			return err
		}
		if !ok {
			a.saveDraft(ctx, e)
			return nil
		}

		res, err := e.Submit(ctx)
		if err == nil {
			fmt.Printf("Saved IOM #%d (%s): %s\n", res.Document.ID, res.Document.Status.Label(), res.Redirect)
			return nil
		}
		if errors.Is(err, form.ErrInvalid) {
			continue
		}
		if apiErr, ok := client.AsAPIError(err); ok && apiErr.Validation() {
			continue
		}
		fmt.Fprintf(os.Stderr, "Entered values were kept; resume with -resume (draft %s).\n", e.DraftKey())
		return err
	}
}

func (a *app) saveDraft(ctx context.Context, e *form.Engine) {
	store, err := a.draftStore(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("draft store unavailable")
		return
	}
	d := e.Draft()
	if err := store.Save(context.WithoutCancel(ctx), d); err != nil {
		a.logger.WithError(err).Warn("save draft")
		return
	}
	fmt.Fprintf(os.Stderr, "Draft saved as %s.\n", d.Key)
}

func runShow(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("show")
	id := fs.Int64("id", 0, "IOM id")
	format := fs.String("format", preview.TextName, "output format (text or json)")
	layout := fs.String("layout", "", "pongo2 template file for the text format")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("-id is required")
	}

	var textOpts []preview.TextOption
	if *layout != "" {
		textOpts = append(textOpts, preview.WithTemplateFS(os.DirFS(filepath.Dir(*layout)), filepath.Base(*layout)))
	}
	registry, err := preview.NewRegistry(textOpts...)
	if err != nil {
		return err
	}
	renderer, err := registry.Lookup(*format)
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(registry.List(), ", "))
	}

	doc, err := a.api.GetIOM(ctx, *id)
	if err != nil {
		return fmt.Errorf("load iom %d: %w", *id, err)
	}
	var tpl model.Template
	if doc.Template != nil {
		tpl = *doc.Template
	} else if tpl, err = a.api.GetTemplate(ctx, doc.TemplateID); err != nil {
		return fmt.Errorf("load template %d: %w", doc.TemplateID, err)
	}

	out, err := renderer.Render(ctx, render.NewView(tpl, doc, a.labels.Resolve))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func runAct(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("act")
	id := fs.Int64("id", 0, "IOM id")
	name := fs.String("action", "", "action to apply (prompted when empty)")
	comment := fs.String("comment", "", "action comment (required to reject)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("-id is required")
	}

	s := a.session()
	if err := s.Load(ctx, *id); err != nil {
		return err
	}
	action, comments := workflow.Action(""), *comment
	if *name != "" {
		parsed, ok := workflow.ParseAction(*name)
		if !ok {
			return fmt.Errorf("unknown action %q", *name)
		}
		action = parsed
	} else {
		chosen, text, err := a.ui.ChooseAction(ctx, s)
		if err != nil {
			return err
		}
		if chosen == "" {
			return nil
		}
		action, comments = chosen, text
	}

	if err := s.Do(ctx, action, comments); err != nil {
		return err
	}
	doc := s.Document()
	fmt.Printf("IOM #%d is now %s\n", doc.ID, doc.Status.Label())
	return nil
}

func runSteps(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("steps")
	id := fs.Int64("id", 0, "IOM id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("-id is required")
	}

	s := a.session()
	if err := s.Load(ctx, *id); err != nil {
		return err
	}
	steps := s.Steps()
	if len(steps) == 0 {
		fmt.Println("No approval steps.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tORDER\tSTEP\tAPPROVER\tSTATUS\tACTED BY\tCOMMENTS")
	for _, step := range steps {
		marker := ""
		if s.StepActionable(step) {
			marker = " *"
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s%s\t%s\t%s\n",
			step.ID, step.StepOrder, step.Name, step.AssigneeLabel(), step.Status, marker, step.ActedByName, step.Comments)
	}
	return w.Flush()
}

func runStep(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("step")
	id := fs.Int64("id", 0, "IOM id")
	stepID := fs.Int64("step", 0, "approval step id (prompted when zero)")
	decision := fs.String("decision", "", "approve or reject")
	comment := fs.String("comment", "", "decision comment (required to reject)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("-id is required")
	}

	s := a.session()
	if err := s.Load(ctx, *id); err != nil {
		return err
	}

	target, comments := *stepID, *comment
	var action workflow.Action
	if target > 0 {
		switch strings.ToLower(*decision) {
		case "approve":
			action = workflow.ActionApprove
		case "reject":
			action = workflow.ActionReject
		default:
			return errors.New("-decision must be approve or reject")
		}
	} else {
		step, chosen, text, err := a.ui.ChooseStep(ctx, s)
		if err != nil {
			return err
		}
		if chosen == "" {
			return nil
		}
		target, action, comments = step.ID, chosen, text
	}

	var err error
	if action == workflow.ActionReject {
		err = s.RejectStep(ctx, target, comments)
	} else {
		err = s.ApproveStep(ctx, target, comments)
	}
	if err != nil {
		return err
	}
	fmt.Printf("IOM #%d is now %s\n", s.Document().ID, s.Document().Status.Label())
	return nil
}

func runTemplate(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 || args[0] != "validate" {
		return errors.New("usage: template validate <file|url>...")
	}
	files := args[1:]
	if len(files) == 0 {
		return errors.New("no template files given")
	}

	loader := schema.NewLoader()
	rules := exprvis.New()
	failed := 0
	for _, file := range files {
		tpl, err := loader.Load(ctx, schema.ParseSource(file))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", file, err)
			failed++
			continue
		}
		result := schema.Validate(tpl)
		if issues := ruleIssues(tpl, rules); len(issues) > 0 {
			result.Issues = append(result.Issues, issues...)
			result.Valid = false
		}
		for _, issue := range result.Issues {
			fmt.Fprintf(os.Stderr, "%s: %s\n", file, issue)
		}
		if !result.Valid {
			failed++
			continue
		}
		fmt.Printf("%s: ok (%q, %d fields, %s approval)\n", file, tpl.Name, len(tpl.Fields), tpl.EffectiveApproval())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed", failed, len(files))
	}
	return nil
}

// ruleIssues compiles the visibility rule of every field that declares one.
func ruleIssues(tpl model.Template, rules *exprvis.Evaluator) []schema.Issue {
	var issues []schema.Issue
	for _, field := range tpl.Fields {
		rule := visibility.Rule(field)
		if rule == "" {
			continue
		}
		if err := rules.Check(rule); err != nil {
			issues = append(issues, schema.Issue{
				Field:    field.Name,
				Message:  fmt.Sprintf("invalid %s rule: %v", visibility.RuleAttribute, err),
				Severity: schema.SeverityError,
			})
		}
	}
	return issues
}

func runDrafts(ctx context.Context, a *app, args []string) error {
	store, err := a.draftStore(ctx)
	if err != nil {
		return err
	}
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "list":
		list, err := store.List(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No drafts.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tTEMPLATE\tSUBJECT\tSAVED\tERROR")
		for _, d := range list {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", d.Key, d.TemplateID, d.Subject, d.SavedAt.Local().Format("2006-01-02 15:04"), d.Error)
		}
		return w.Flush()
	case "show", "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: drafts %s <key>", sub)
		}
		if sub == "delete" {
			return store.Delete(ctx, args[1])
		}
		d, err := store.Load(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Key:      %s\nTemplate: %d\nSubject:  %s\n", d.Key, d.TemplateID, d.Subject)
		for _, key := range model.SortedKeys(d.Payload) {
			fmt.Printf("  %s: %v\n", key, d.Payload[key])
		}
		return nil
	default:
		return fmt.Errorf("unknown drafts command %q", sub)
	}
}

func parseIDs(raw string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}
