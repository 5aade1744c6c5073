package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-iom/internal/logging"
	"github.com/goliatone/go-iom/pkg/model"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Body   string
	Auth   string
	ReqID  string
}

type callLog struct {
	mu    sync.Mutex
	calls []recorded
}

func (l *callLog) at(i int) recorded {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[i]
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *callLog) {
	t.Helper()
	log := &callLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		log.mu.Lock()
		log.calls = append(log.calls, recorded{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   string(body),
			Auth:   r.Header.Get("Authorization"),
			ReqID:  r.Header.Get("X-Request-ID"),
		})
		log.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api", WithToken("tok"), WithLogger(logging.Discard()), WithRequestIDs(func() string { return "req-1" }))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, log
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetIOMSendsAuthAndRequestID(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":           5,
			"subject":      "Printer down",
			"status":       "draft",
			"data_payload": map[string]any{"title": "Printer down", "urgent": false},
		})
	})

	doc, err := c.GetIOM(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetIOM: %v", err)
	}
	if doc.ID != 5 || doc.Status != model.StatusDraft {
		t.Fatalf("unexpected doc: %+v", doc)
	}
	if diff := cmp.Diff(map[string]any{"title": "Printer down", "urgent": false}, doc.DataPayload); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}

	got := calls.at(0)
	if got.Path != "/api/ioms/5" || got.Auth != "Bearer tok" || got.ReqID != "req-1" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestActSendsCommentsOnlyWhenPresent(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": 9, "status": "rejected"})
	})

	if _, err := c.Act(context.Background(), 9, ActionPublish, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Act(context.Background(), 9, ActionSimpleReject, "missing budget"); err != nil {
		t.Fatal(err)
	}

	if calls.at(0).Path != "/api/ioms/9/publish" || calls.at(0).Body != "" {
		t.Fatalf("publish request: %+v", calls.at(0))
	}
	if calls.at(1).Path != "/api/ioms/9/simple_reject" {
		t.Fatalf("reject path: %s", calls.at(1).Path)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(calls.at(1).Body), &body); err != nil || body["comments"] != "missing budget" {
		t.Fatalf("reject body: %q (%v)", calls.at(1).Body, err)
	}
}

func TestValidationErrorIsDecoded(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"subject":      []string{"This field may not be blank."},
			"data_payload": map[string]any{"title": []string{"Required"}},
		})
	})

	_, err := c.CreateIOM(context.Background(), model.Write{TemplateID: 1})
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.Validation() || IsTransport(err) || IsNotFound(err) {
		t.Fatalf("unexpected classification: %+v", apiErr)
	}
	want := "data_payload.title: Required; subject: This field may not be blank."
	if apiErr.Detail != want {
		t.Fatalf("detail = %q, want %q", apiErr.Detail, want)
	}
}

func TestNotFoundAndTransportClassification(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/content-types":
			writeJSON(w, http.StatusOK, map[string]any{"count": 0, "results": []any{}})
		case "/api/templates/404":
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})

	if _, err := c.ContentTypeID(context.Background(), "incidents", "Incident"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := c.GetTemplate(context.Background(), 404); !IsNotFound(err) {
		t.Fatalf("expected 404 to be not found, got %v", err)
	}
	if _, err := c.GetIOM(context.Background(), 1); !IsTransport(err) {
		t.Fatalf("expected 5xx to be a transport failure, got %v", err)
	}

	offline, err := New("http://127.0.0.1:1/api", WithLogger(logging.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	_, err = offline.GetIOM(context.Background(), 1)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestApprovalStepsQueryAndListShapes(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("object_id") == "1" {
			writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "step_order": 1, "status": "pending"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":    1,
			"next":     nil,
			"previous": nil,
			"results":  []map[string]any{{"id": 2, "step_order": 1, "status": "approved"}},
		})
	})

	ref := model.StepRef{AppLabel: "iom", Model: "genericiom", ObjectID: 1}
	steps, err := c.ApprovalSteps(context.Background(), ref)
	if err != nil || len(steps) != 1 || steps[0].Status != model.StepPending {
		t.Fatalf("bare list: %+v (%v)", steps, err)
	}
	ref.ObjectID = 2
	steps, err = c.ApprovalSteps(context.Background(), ref)
	if err != nil || len(steps) != 1 || steps[0].Status != model.StepApproved {
		t.Fatalf("envelope: %+v (%v)", steps, err)
	}

	want := "content_type_app_label=iom&content_type_model=genericiom&object_id=1&ordering=step_order"
	if calls.at(0).Query != want {
		t.Fatalf("query = %q, want %q", calls.at(0).Query, want)
	}
}

func TestNewRejectsRelativeBase(t *testing.T) {
	if _, err := New("api/"); err == nil {
		t.Fatal("expected error for relative base url")
	}
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty base url")
	}
}
