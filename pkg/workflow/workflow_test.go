package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-iom/internal/logging"
	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/notify"
)

func id(v int64) *int64 { return &v }

func simpleTemplate() model.Template {
	return model.Template{ID: 1, ApprovalType: model.ApprovalSimple, SimpleApproverUser: id(50), SimpleApproverGroup: id(9)}
}

func TestAvailableTable(t *testing.T) {
	creator := Actor{UserID: 10}
	staff := Actor{UserID: 99, IsStaff: true}
	approver := Actor{UserID: 50}
	groupMember := Actor{UserID: 60, GroupIDs: []int64{3, 9}}
	stranger := Actor{UserID: 70, GroupIDs: []int64{4}}
	none := model.Template{ApprovalType: model.ApprovalNone}

	tests := []struct {
		name   string
		status model.Status
		tpl    model.Template
		actor  Actor
		want   []Action
	}{
		{"draft simple creator", model.StatusDraft, simpleTemplate(), creator, []Action{ActionSubmit}},
		{"draft simple stranger", model.StatusDraft, simpleTemplate(), stranger, nil},
		{"draft none creator", model.StatusDraft, none, creator, []Action{ActionPublish}},
		{"draft none staff", model.StatusDraft, none, staff, []Action{ActionPublish}},
		{"draft unset approval is none", model.StatusDraft, model.Template{}, creator, []Action{ActionPublish}},
		{"pending approver user", model.StatusPendingApproval, simpleTemplate(), approver, []Action{ActionApprove, ActionReject}},
		{"pending approver group", model.StatusPendingApproval, simpleTemplate(), groupMember, []Action{ActionApprove, ActionReject}},
		{"pending creator", model.StatusPendingApproval, simpleTemplate(), creator, nil},
		{"approved creator", model.StatusApproved, simpleTemplate(), creator, []Action{ActionPublish, ActionArchive}},
		{"published staff", model.StatusPublished, simpleTemplate(), staff, []Action{ActionArchive}},
		{"published stranger", model.StatusPublished, simpleTemplate(), stranger, nil},
		{"rejected creator", model.StatusRejected, simpleTemplate(), creator, []Action{ActionArchive}},
		{"cancelled creator", model.StatusCancelled, simpleTemplate(), creator, []Action{ActionArchive}},
		{"archived creator", model.StatusArchived, simpleTemplate(), creator, []Action{ActionUnarchive}},
		{"archived stranger", model.StatusArchived, simpleTemplate(), stranger, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := model.Document{ID: 1, Status: tt.status, CreatedBy: 10}
			got := Available(doc, tt.tpl, tt.actor)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("actions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApproverVisibilityScenario(t *testing.T) {
	tpl := model.Template{ApprovalType: model.ApprovalSimple, SimpleApproverUser: id(7)}
	doc := model.Document{Status: model.StatusPendingApproval, CreatedBy: 1}

	got := Available(doc, tpl, Actor{UserID: 7})
	if diff := cmp.Diff([]Action{ActionApprove, ActionReject}, got); diff != "" {
		t.Fatalf("designated approver (-want +got):\n%s", diff)
	}
	for _, other := range []Actor{{UserID: 8}, {UserID: 9, GroupIDs: []int64{1, 2}}} {
		if got := Available(doc, tpl, other); len(got) != 0 {
			t.Fatalf("actor %+v should see no actions, got %v", other, got)
		}
	}
}

func TestNextStatus(t *testing.T) {
	if to, ok := Next(model.StatusDraft, ActionSubmit); !ok || to != model.StatusPendingApproval {
		t.Fatalf("submit -> %s %v", to, ok)
	}
	if _, ok := Next(model.StatusDraft, ActionArchive); ok {
		t.Fatal("drafts cannot be archived")
	}
	if _, ok := Next(model.StatusPublished, ActionUnarchive); ok {
		t.Fatal("unarchive is only legal from archived")
	}
	for _, from := range []model.Status{model.StatusPublished, model.StatusApproved, model.StatusRejected, model.StatusCancelled} {
		if to, ok := Next(from, ActionArchive); !ok || to != model.StatusArchived {
			t.Fatalf("archive from %s -> %s %v", from, to, ok)
		}
	}
}

func TestParseAction(t *testing.T) {
	for raw, want := range map[string]Action{
		"submit_for_approval":        ActionSubmit,
		"submit_for_simple_approval": ActionSubmit,
		"simple_reject":              ActionReject,
		"unarchive":                  ActionUnarchive,
	} {
		if got, ok := ParseAction(raw); !ok || got != want {
			t.Fatalf("ParseAction(%q) = %s %v", raw, got, ok)
		}
	}
	if _, ok := ParseAction("delete"); ok {
		t.Fatal("unknown action parsed")
	}
}

// fakeAPI holds one document and applies transitions like the server would.
type fakeAPI struct {
	mu        sync.Mutex
	doc       model.Document
	tpl       model.Template
	prior     model.Status
	steps     []model.ApprovalStep
	acts      []string
	comments  []string
	gets      int
	stepCalls []string
	gate      chan struct{}
}

func (f *fakeAPI) GetIOM(ctx context.Context, id int64) (model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	doc := f.doc
	tpl := f.tpl
	doc.Template = &tpl
	return doc, nil
}

func (f *fakeAPI) Act(ctx context.Context, id int64, action, comments string) (model.Document, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acts = append(f.acts, action)
	f.comments = append(f.comments, comments)
	a, _ := ParseAction(action)
	switch a {
	case ActionArchive:
		f.prior = f.doc.Status
		f.doc.Status = model.StatusArchived
	case ActionUnarchive:
		f.doc.Status = f.prior
	default:
		next, _ := Next(f.doc.Status, a)
		f.doc.Status = next
	}
	return f.doc, nil
}

func (f *fakeAPI) ApprovalSteps(ctx context.Context, ref model.StepRef) ([]model.ApprovalStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ApprovalStep(nil), f.steps...), nil
}

func (f *fakeAPI) ApproveStep(ctx context.Context, stepID int64, comments string) error {
	return f.stepDone(stepID, model.StepApproved, "approve")
}

func (f *fakeAPI) RejectStep(ctx context.Context, stepID int64, comments string) error {
	return f.stepDone(stepID, model.StepRejected, "reject")
}

func (f *fakeAPI) stepDone(stepID int64, status model.StepStatus, call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stepCalls = append(f.stepCalls, call)
	for i := range f.steps {
		if f.steps[i].ID == stepID {
			f.steps[i].Status = status
		}
	}
	return nil
}

func TestArchiveUnarchiveRestoresStatus(t *testing.T) {
	for _, start := range []model.Status{model.StatusPublished, model.StatusRejected, model.StatusApproved} {
		api := &fakeAPI{doc: model.Document{ID: 3, Status: start, CreatedBy: 10}, tpl: simpleTemplate()}
		s := NewSession(api, Actor{UserID: 10}, WithLogger(logging.Discard()))
		if err := s.Load(context.Background(), 3); err != nil {
			t.Fatal(err)
		}
		if err := s.Do(context.Background(), ActionArchive, ""); err != nil {
			t.Fatalf("archive: %v", err)
		}
		if s.Document().Status != model.StatusArchived {
			t.Fatalf("status after archive = %s", s.Document().Status)
		}
		if diff := cmp.Diff([]Action{ActionUnarchive}, s.Available()); diff != "" {
			t.Fatalf("archived actions (-want +got):\n%s", diff)
		}
		if err := s.Do(context.Background(), ActionUnarchive, ""); err != nil {
			t.Fatalf("unarchive: %v", err)
		}
		if got := s.Document().Status; got != start {
			t.Fatalf("unarchive returned %s, want %s", got, start)
		}
	}
}

func TestActionRefetchesDocument(t *testing.T) {
	api := &fakeAPI{doc: model.Document{ID: 3, Status: model.StatusDraft, CreatedBy: 10}, tpl: simpleTemplate()}
	rec := &notify.Recorder{}
	s := NewSession(api, Actor{UserID: 10}, WithNotifier(rec), WithLogger(logging.Discard()))
	if err := s.Load(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	if err := s.Do(context.Background(), ActionSubmit, ""); err != nil {
		t.Fatal(err)
	}
	if api.gets != 2 {
		t.Fatalf("expected load plus refetch, got %d gets", api.gets)
	}
	if s.Document().Status != model.StatusPendingApproval {
		t.Fatalf("status = %s", s.Document().Status)
	}
	if diff := cmp.Diff([]string{"submit_for_simple_approval"}, api.acts); diff != "" {
		t.Fatalf("endpoints (-want +got):\n%s", diff)
	}
	if rec.Count(notify.LevelSuccess) != 1 {
		t.Fatal("expected a success notification")
	}
}

func TestRejectRequiresComment(t *testing.T) {
	api := &fakeAPI{doc: model.Document{ID: 4, Status: model.StatusPendingApproval, CreatedBy: 10}, tpl: simpleTemplate()}
	s := NewSession(api, Actor{UserID: 50}, WithLogger(logging.Discard()))
	if err := s.Load(context.Background(), 4); err != nil {
		t.Fatal(err)
	}

	for _, blank := range []string{"", "   "} {
		if err := s.Do(context.Background(), ActionReject, blank); !errors.Is(err, ErrCommentRequired) {
			t.Fatalf("expected ErrCommentRequired, got %v", err)
		}
	}
	if len(api.acts) != 0 {
		t.Fatal("reject without comment must not call the API")
	}
	if err := s.Do(context.Background(), ActionReject, "over budget"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"over budget"}, api.comments); diff != "" {
		t.Fatalf("comments (-want +got):\n%s", diff)
	}
	if s.Document().Status != model.StatusRejected {
		t.Fatalf("status = %s", s.Document().Status)
	}
}

func TestDisallowedActionNeverCallsAPI(t *testing.T) {
	api := &fakeAPI{doc: model.Document{ID: 4, Status: model.StatusPendingApproval, CreatedBy: 10}, tpl: simpleTemplate()}
	s := NewSession(api, Actor{UserID: 70}, WithLogger(logging.Discard()))
	if err := s.Do(context.Background(), ActionApprove, ""); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded, got %v", err)
	}
	_ = s.Load(context.Background(), 4)
	if err := s.Do(context.Background(), ActionApprove, ""); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed, got %v", err)
	}
	if len(api.acts) != 0 {
		t.Fatal("API must not be called")
	}
}

func TestOneActionInFlight(t *testing.T) {
	api := &fakeAPI{doc: model.Document{ID: 5, Status: model.StatusApproved, CreatedBy: 10}, tpl: simpleTemplate(), gate: make(chan struct{})}
	s := NewSession(api, Actor{UserID: 10}, WithLogger(logging.Discard()))
	_ = s.Load(context.Background(), 5)

	done := make(chan error, 1)
	go func() { done <- s.Do(context.Background(), ActionPublish, "") }()
	for !s.Busy() {
		// wait until the first action holds the guard
	}
	if got := s.Available(); got != nil {
		t.Fatalf("no actions while busy, got %v", got)
	}
	if err := s.Do(context.Background(), ActionArchive, ""); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(api.gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if s.Document().Status != model.StatusPublished {
		t.Fatalf("status = %s", s.Document().Status)
	}
}

func TestAdvancedSteps(t *testing.T) {
	api := &fakeAPI{
		doc: model.Document{ID: 6, Status: model.StatusPendingApproval, CreatedBy: 10},
		tpl: model.Template{ID: 2, ApprovalType: model.ApprovalAdvanced},
		steps: []model.ApprovalStep{
			{ID: 22, StepOrder: 2, Status: model.StepPending, ApproverGroup: id(9)},
			{ID: 21, StepOrder: 1, Status: model.StepApproved, Approver: id(50)},
			{ID: 23, StepOrder: 3, Status: model.StepPending, Approver: id(51)},
		},
	}
	actor := Actor{UserID: 60, GroupIDs: []int64{9}}
	s := NewSession(api, actor, WithLogger(logging.Discard()))
	if err := s.Load(context.Background(), 6); err != nil {
		t.Fatal(err)
	}

	var order []int64
	var actionable []bool
	for _, step := range s.Steps() {
		order = append(order, step.ID)
		actionable = append(actionable, s.StepActionable(step))
	}
	if diff := cmp.Diff([]int64{21, 22, 23}, order); diff != "" {
		t.Fatalf("steps not ordered (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{false, true, false}, actionable); diff != "" {
		t.Fatalf("actionable (-want +got):\n%s", diff)
	}
	if len(s.Available()) != 0 {
		t.Fatal("advanced documents offer no simple approval actions")
	}

	if err := s.ApproveStep(context.Background(), 21, ""); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("approved step: expected ErrNotAllowed, got %v", err)
	}
	if err := s.ApproveStep(context.Background(), 23, ""); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("foreign step: expected ErrNotAllowed, got %v", err)
	}
	if err := s.RejectStep(context.Background(), 22, " "); !errors.Is(err, ErrCommentRequired) {
		t.Fatalf("expected ErrCommentRequired, got %v", err)
	}
	if err := s.ApproveStep(context.Background(), 99, ""); !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("expected ErrUnknownStep, got %v", err)
	}
	if len(api.stepCalls) != 0 {
		t.Fatal("no step call expected yet")
	}

	if err := s.ApproveStep(context.Background(), 22, ""); err != nil {
		t.Fatal(err)
	}
	if s.Steps()[1].Status != model.StepApproved {
		t.Fatal("steps should be refetched after acting")
	}
}
