package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-iom/pkg/model"
)

// Workflow action endpoints under ioms/{id}/.
const (
	ActionSubmitForApproval = "submit_for_simple_approval"
	ActionSimpleApprove     = "simple_approve"
	ActionSimpleReject      = "simple_reject"
	ActionPublish           = "publish"
	ActionArchive           = "archive"
	ActionUnarchive         = "unarchive"
)

// Page is the standard paged list envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// ListOptions are the query parameters shared by list endpoints.
type ListOptions struct {
	Page     int
	PageSize int
	Search   string
	Filters  map[string]string
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}
	if s := strings.TrimSpace(o.Search); s != "" {
		q.Set("search", s)
	}
	for k, v := range o.Filters {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	return q
}

// DecodePage reads a list response that may be a bare array or a paged
// envelope. Bare arrays become a single page.
func DecodePage[T any](raw []byte) (Page[T], error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Page[T]{}, fmt.Errorf("client: decode list: %w", err)
		}
		return Page[T]{Count: len(items), Results: items}, nil
	}
	var page Page[T]
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return Page[T]{}, fmt.Errorf("client: decode page: %w", err)
	}
	if page.Results == nil {
		page.Results = []T{}
	}
	return page, nil
}

func list[T any](ctx context.Context, c *Client, endpoint string, query url.Values) (Page[T], error) {
	raw, err := c.do(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return Page[T]{}, err
	}
	return DecodePage[T](raw)
}

// GetTemplate fetches one IOM template.
func (c *Client) GetTemplate(ctx context.Context, id int64) (model.Template, error) {
	var tpl model.Template
	err := c.doJSON(ctx, http.MethodGet, "templates/"+strconv.FormatInt(id, 10), nil, nil, &tpl)
	return tpl, err
}

// ListTemplates lists templates; inactive ones are filtered by the server
// when Filters carries is_active.
func (c *Client) ListTemplates(ctx context.Context, opts ListOptions) (Page[model.Template], error) {
	return list[model.Template](ctx, c, "templates", opts.values())
}

// GetIOM fetches one document with its template inlined.
func (c *Client) GetIOM(ctx context.Context, id int64) (model.Document, error) {
	var doc model.Document
	err := c.doJSON(ctx, http.MethodGet, iomPath(id), nil, nil, &doc)
	return doc, err
}

// ListIOMs lists documents.
func (c *Client) ListIOMs(ctx context.Context, opts ListOptions) (Page[model.Document], error) {
	return list[model.Document](ctx, c, "ioms", opts.values())
}

// CreateIOM creates a document in draft.
func (c *Client) CreateIOM(ctx context.Context, in model.Write) (model.Document, error) {
	var doc model.Document
	err := c.doJSON(ctx, http.MethodPost, "ioms", nil, in, &doc)
	return doc, err
}

// UpdateIOM patches an existing document.
func (c *Client) UpdateIOM(ctx context.Context, id int64, in model.Write) (model.Document, error) {
	var doc model.Document
	err := c.doJSON(ctx, http.MethodPatch, iomPath(id), nil, in, &doc)
	return doc, err
}

// Act posts a workflow action and returns the updated document. comments is
// sent only when non-empty.
func (c *Client) Act(ctx context.Context, id int64, action, comments string) (model.Document, error) {
	var body any
	if strings.TrimSpace(comments) != "" {
		body = map[string]string{"comments": comments}
	}
	var doc model.Document
	err := c.doJSON(ctx, http.MethodPost, iomPath(id)+"/"+action, nil, body, &doc)
	return doc, err
}

// ApprovalSteps lists the advanced approval steps of an object ordered by
// step_order.
func (c *Client) ApprovalSteps(ctx context.Context, ref model.StepRef) ([]model.ApprovalStep, error) {
	q := url.Values{}
	q.Set("content_type_app_label", ref.AppLabel)
	q.Set("content_type_model", ref.Model)
	q.Set("object_id", strconv.FormatInt(ref.ObjectID, 10))
	q.Set("ordering", "step_order")
	page, err := list[model.ApprovalStep](ctx, c, "approval-steps", q)
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}

// ApproveStep approves one approval step.
func (c *Client) ApproveStep(ctx context.Context, stepID int64, comments string) error {
	return c.stepAction(ctx, stepID, "approve", comments)
}

// RejectStep rejects one approval step.
func (c *Client) RejectStep(ctx context.Context, stepID int64, comments string) error {
	return c.stepAction(ctx, stepID, "reject", comments)
}

func (c *Client) stepAction(ctx context.Context, stepID int64, action, comments string) error {
	var body any
	if strings.TrimSpace(comments) != "" {
		body = map[string]string{"comments": comments}
	}
	return c.doJSON(ctx, http.MethodPost, "approval-steps/"+strconv.FormatInt(stepID, 10)+"/"+action, nil, body, nil)
}

// CurrentUser returns the authenticated user profile.
func (c *Client) CurrentUser(ctx context.Context) (model.User, error) {
	var user model.User
	err := c.doJSON(ctx, http.MethodGet, "users/me", nil, nil, &user)
	return user, err
}

type contentType struct {
	ID       int64  `json:"id"`
	AppLabel string `json:"app_label"`
	Model    string `json:"model"`
}

// ContentTypeID resolves the content type of a parent record model. An empty
// result is reported as ErrNotFound.
func (c *Client) ContentTypeID(ctx context.Context, appLabel, modelName string) (int64, error) {
	q := url.Values{}
	q.Set("app_label", appLabel)
	q.Set("model", strings.ToLower(modelName))
	page, err := list[contentType](ctx, c, "content-types", q)
	if err != nil {
		return 0, err
	}
	for _, ct := range page.Results {
		if ct.AppLabel == appLabel && strings.EqualFold(ct.Model, modelName) {
			return ct.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: content type %s.%s", ErrNotFound, appLabel, modelName)
}

func iomPath(id int64) string {
	return "ioms/" + strconv.FormatInt(id, 10)
}
