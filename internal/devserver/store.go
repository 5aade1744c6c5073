package devserver

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/visibility"
	exprvis "github.com/goliatone/go-iom/pkg/visibility/expr"
	"github.com/goliatone/go-iom/pkg/workflow"
)

var (
	// ErrNotFound is returned for unknown records.
	ErrNotFound = errors.New("devserver: not found")
	// ErrForbidden is returned when the actor may not perform an action.
	ErrForbidden = errors.New("devserver: forbidden")
)

// ValidationError carries field-keyed messages, encoded as the response body.
type ValidationError struct {
	Fields map[string]any
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "devserver: invalid " + strings.Join(keys, ", ")
}

func invalid(field string, msgs ...string) *ValidationError {
	return &ValidationError{Fields: map[string]any{field: msgs}}
}

// Record is a named row served by a lookup endpoint (assets, departments,
// projects).
type Record map[string]any

// ContentType identifies a model that documents may be linked to.
type ContentType struct {
	ID       int64  `json:"id"`
	AppLabel string `json:"app_label"`
	Model    string `json:"model"`
}

type iomRecord struct {
	doc         model.Document
	preArchived model.Status
}

// StepRule seeds the approval steps of advanced templates.
type StepRule struct {
	Name          string
	Approver      *int64
	ApproverGroup *int64
}

// Store is the in-memory state of the dev server.
type Store struct {
	mu sync.Mutex

	users        []model.User
	groups       []model.GroupRef
	lookups      map[string][]Record
	contentTypes []ContentType
	templates    map[int64]model.Template
	stepRules    map[int64][]StepRule
	ioms         map[int64]*iomRecord
	steps        map[int64][]*model.ApprovalStep

	nextIOM  int64
	nextStep int64
	now      func() time.Time
	rules    visibility.Evaluator
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		lookups:   make(map[string][]Record),
		templates: make(map[int64]model.Template),
		stepRules: make(map[int64][]StepRule),
		ioms:      make(map[int64]*iomRecord),
		steps:     make(map[int64][]*model.ApprovalStep),
		nextIOM:   1,
		nextStep:  1,
		now:       func() time.Time { return time.Now().UTC() },
		rules:     exprvis.New(),
	}
}

// AddUser registers a user.
func (s *Store) AddUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
}

// AddGroup registers a group.
func (s *Store) AddGroup(g model.GroupRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = append(s.groups, g)
}

// AddLookup registers rows served under endpoint (e.g. "assets").
func (s *Store) AddLookup(endpoint string, rows ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups[endpoint] = append(s.lookups[endpoint], rows...)
}

// AddContentType registers a linkable model.
func (s *Store) AddContentType(ct ContentType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contentTypes = append(s.contentTypes, ct)
}

// AddTemplate registers a template and, for advanced approval, the rules its
// documents' steps are generated from.
func (s *Store) AddTemplate(tpl model.Template, rules ...StepRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tpl.ID] = tpl.Clone()
	if len(rules) > 0 {
		s.stepRules[tpl.ID] = append([]StepRule(nil), rules...)
	}
}

// User returns the user with id.
func (s *Store) User(id int64) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user(id)
}

func (s *Store) user(id int64) (model.User, bool) {
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}

// Users returns every user ordered by id.
func (s *Store) Users() []model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]model.User(nil), s.users...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Groups returns every group.
func (s *Store) Groups() []model.GroupRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.GroupRef(nil), s.groups...)
}

// Lookup returns the rows of a lookup endpoint.
func (s *Store) Lookup(endpoint string) ([]Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.lookups[endpoint]
	return append([]Record(nil), rows...), ok
}

// ContentTypes returns the registered content types.
func (s *Store) ContentTypes() []ContentType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ContentType(nil), s.contentTypes...)
}

// Template returns the template with id.
func (s *Store) Template(id int64) (model.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl, ok := s.templates[id]
	if !ok {
		return model.Template{}, fmt.Errorf("%w: template %d", ErrNotFound, id)
	}
	return tpl.Clone(), nil
}

// Templates returns every template ordered by id.
func (s *Store) Templates() []model.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Template, 0, len(s.templates))
	for _, tpl := range s.templates {
		out = append(out, tpl.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IOM returns the document with id, with its template inlined.
func (s *Store) IOM(id int64) (model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.ioms[id]
	if !ok {
		return model.Document{}, fmt.Errorf("%w: iom %d", ErrNotFound, id)
	}
	return s.expand(rec.doc), nil
}

// IOMs returns every document ordered by id.
func (s *Store) IOMs() []model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Document, 0, len(s.ioms))
	for _, rec := range s.ioms {
		out = append(out, s.expand(rec.doc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) expand(doc model.Document) model.Document {
	out := doc
	out.DataPayload = model.ClonePayload(doc.DataPayload)
	out.ToUsers = append([]int64{}, doc.ToUsers...)
	out.ToGroups = append([]int64{}, doc.ToGroups...)
	if tpl, ok := s.templates[doc.TemplateID]; ok {
		t := tpl.Clone()
		out.Template = &t
	}
	return out
}

// CreateIOM validates and stores a new document authored by actor.
// Documents of advanced templates start pending with generated steps, or
// approved when the template has no step rules.
func (s *Store) CreateIOM(actor model.User, in model.Write) (model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl, ok := s.templates[in.TemplateID]
	if !ok {
		return model.Document{}, invalid("iom_template", "Select a valid template.")
	}
	if err := s.validateWrite(tpl, in); err != nil {
		return model.Document{}, err
	}

	now := s.now()
	doc := model.Document{
		ID:                s.nextIOM,
		TemplateID:        tpl.ID,
		Subject:           strings.TrimSpace(in.Subject),
		DataPayload:       model.ClonePayload(in.DataPayload),
		Status:            model.StatusDraft,
		ToUsers:           append([]int64{}, in.ToUsers...),
		ToGroups:          append([]int64{}, in.ToGroups...),
		ParentContentType: in.ParentContentTypeID,
		ParentObjectID:    in.ParentObjectID,
		CreatedBy:         actor.ID,
		CreatedByUsername: actor.Username,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if doc.DataPayload == nil {
		doc.DataPayload = map[string]any{}
	}
	if in.ParentObjectID != nil {
		doc.ParentDisplay = s.parentDisplay(in.ParentContentTypeID, *in.ParentObjectID)
	}
	s.nextIOM++

	if tpl.EffectiveApproval() == model.ApprovalAdvanced {
		if rules := s.stepRules[tpl.ID]; len(rules) > 0 {
			doc.Status = model.StatusPendingApproval
			s.generateSteps(doc.ID, rules)
		} else {
			doc.Status = model.StatusApproved
		}
	}
	s.ioms[doc.ID] = &iomRecord{doc: doc}
	return s.expand(doc), nil
}

// UpdateIOM applies a partial update. Only drafts and rejected documents can
// be edited, and only by their author or staff.
func (s *Store) UpdateIOM(actor model.User, id int64, in model.Write) (model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.ioms[id]
	if !ok {
		return model.Document{}, fmt.Errorf("%w: iom %d", ErrNotFound, id)
	}
	if rec.doc.CreatedBy != actor.ID && !actor.IsStaff {
		return model.Document{}, fmt.Errorf("%w: only the author can edit", ErrForbidden)
	}
	if rec.doc.Status != model.StatusDraft && rec.doc.Status != model.StatusRejected {
		return model.Document{}, invalid("status", fmt.Sprintf("Documents in %s cannot be edited.", rec.doc.Status))
	}
	tpl := s.templates[rec.doc.TemplateID]
	if err := s.validateWrite(tpl, in); err != nil {
		return model.Document{}, err
	}

	rec.doc.Subject = strings.TrimSpace(in.Subject)
	rec.doc.DataPayload = model.ClonePayload(in.DataPayload)
	rec.doc.ToUsers = append([]int64{}, in.ToUsers...)
	rec.doc.ToGroups = append([]int64{}, in.ToGroups...)
	if in.ParentObjectID != nil {
		rec.doc.ParentContentType = in.ParentContentTypeID
		rec.doc.ParentObjectID = in.ParentObjectID
		rec.doc.ParentDisplay = s.parentDisplay(in.ParentContentTypeID, *in.ParentObjectID)
	}
	rec.doc.UpdatedAt = s.now()
	return s.expand(rec.doc), nil
}

func (s *Store) validateWrite(tpl model.Template, in model.Write) error {
	fields := map[string]any{}
	if strings.TrimSpace(in.Subject) == "" {
		fields["subject"] = []string{"This field may not be blank."}
	}
	payload := map[string]any{}
	for _, field := range tpl.Fields {
		if !field.Required {
			continue
		}
		if shown, _ := visibility.Visible(s.rules, field, visibility.Context{Values: in.DataPayload}); !shown {
			continue
		}
		if field.Type == model.FieldBoolean {
			continue
		}
		if model.IsEmpty(in.DataPayload[field.Name]) {
			payload[field.Name] = []string{"This field is required."}
		}
	}
	if len(payload) > 0 {
		fields["data_payload"] = payload
	}
	for _, id := range in.ToUsers {
		if _, ok := s.user(id); !ok {
			fields["to_users"] = []string{fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id)}
			break
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (s *Store) parentDisplay(ct *int64, objectID int64) string {
	if ct == nil {
		return fmt.Sprintf("#%d", objectID)
	}
	for _, c := range s.contentTypes {
		if c.ID != *ct {
			continue
		}
		for _, row := range s.lookups[c.Model+"s"] {
			if model.IDString(row["id"]) == model.IDString(objectID) {
				if name, ok := row["name"].(string); ok {
					return name
				}
			}
		}
		return fmt.Sprintf("%s #%d", c.Model, objectID)
	}
	return fmt.Sprintf("#%d", objectID)
}

func (s *Store) generateSteps(objectID int64, rules []StepRule) {
	steps := make([]*model.ApprovalStep, 0, len(rules))
	for i, rule := range rules {
		step := &model.ApprovalStep{
			ID:            s.nextStep,
			StepOrder:     i + 1,
			Name:          rule.Name,
			Status:        model.StepPending,
			Approver:      rule.Approver,
			ApproverGroup: rule.ApproverGroup,
		}
		if rule.Approver != nil {
			if u, ok := s.user(*rule.Approver); ok {
				step.ApproverName = u.Username
			}
		}
		if rule.ApproverGroup != nil {
			for _, g := range s.groups {
				if g.ID == *rule.ApproverGroup {
					step.GroupName = g.Name
				}
			}
		}
		s.nextStep++
		steps = append(steps, step)
	}
	s.steps[objectID] = steps
}

// Act applies a workflow action on behalf of actor. The legal-action table
// decides; archive remembers the status it left so unarchive can restore it.
func (s *Store) Act(actor model.User, id int64, action workflow.Action, comments string) (model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.ioms[id]
	if !ok {
		return model.Document{}, fmt.Errorf("%w: iom %d", ErrNotFound, id)
	}
	tpl := s.templates[rec.doc.TemplateID]
	if !workflow.Allowed(rec.doc, tpl, workflow.ActorFromUser(actor), action) {
		return model.Document{}, fmt.Errorf("%w: %s is not allowed from %s", ErrForbidden, action, rec.doc.Status)
	}
	comments = strings.TrimSpace(comments)
	if workflow.RequiresComment(action) && comments == "" {
		return model.Document{}, invalid("comments", "A comment is required to reject.")
	}

	now := s.now()
	next, _ := workflow.Next(rec.doc.Status, action)
	switch action {
	case workflow.ActionApprove, workflow.ActionReject:
		by := actor.ID
		rec.doc.SimpleApprovedBy = &by
		rec.doc.SimpleApprovedAt = &now
		rec.doc.SimpleApprovalComments = comments
	case workflow.ActionPublish:
		rec.doc.PublishedAt = &now
	case workflow.ActionArchive:
		rec.preArchived = rec.doc.Status
	case workflow.ActionUnarchive:
		if rec.preArchived != "" {
			next = rec.preArchived
		}
		rec.preArchived = ""
	}
	rec.doc.Status = next
	rec.doc.UpdatedAt = now
	return s.expand(rec.doc), nil
}

// Steps returns the approval steps of a document ordered by step order.
func (s *Store) Steps(objectID int64) []model.ApprovalStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ApprovalStep, 0, len(s.steps[objectID]))
	for _, step := range s.steps[objectID] {
		out = append(out, *step)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepOrder < out[j].StepOrder })
	return out
}

// DecideStep approves or rejects a step. Only the first pending step can be
// decided; a reject rejects the document, approving the last step approves
// it.
func (s *Store) DecideStep(actor model.User, stepID int64, approve bool, comments string) (model.ApprovalStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	objectID, steps, idx := s.findStep(stepID)
	if idx < 0 {
		return model.ApprovalStep{}, fmt.Errorf("%w: approval step %d", ErrNotFound, stepID)
	}
	step := steps[idx]
	if !workflow.CanActOnStep(*step, workflow.ActorFromUser(actor)) {
		return model.ApprovalStep{}, fmt.Errorf("%w: step %d is not assigned to you", ErrForbidden, stepID)
	}
	for _, earlier := range steps[:idx] {
		if earlier.Status == model.StepPending {
			return model.ApprovalStep{}, invalid("step", "An earlier step is still pending.")
		}
	}
	comments = strings.TrimSpace(comments)
	if !approve && comments == "" {
		return model.ApprovalStep{}, invalid("comments", "A comment is required to reject.")
	}

	now := s.now()
	by := actor.ID
	step.ActedBy = &by
	step.ActedByName = actor.Username
	step.ActedAt = &now
	step.Comments = comments

	rec := s.ioms[objectID]
	if approve {
		step.Status = model.StepApproved
		if idx == len(steps)-1 && rec != nil {
			rec.doc.Status = model.StatusApproved
			rec.doc.UpdatedAt = now
		}
	} else {
		step.Status = model.StepRejected
		for _, later := range steps[idx+1:] {
			later.Status = model.StepSkipped
		}
		if rec != nil {
			rec.doc.Status = model.StatusRejected
			rec.doc.UpdatedAt = now
		}
	}
	return *step, nil
}

func (s *Store) findStep(stepID int64) (int64, []*model.ApprovalStep, int) {
	for objectID, steps := range s.steps {
		sort.Slice(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })
		for i, step := range steps {
			if step.ID == stepID {
				return objectID, steps, i
			}
		}
	}
	return 0, nil, -1
}
