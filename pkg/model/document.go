package model

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a document.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusPublished       Status = "published"
	StatusCancelled       Status = "cancelled"
	StatusArchived        Status = "archived"
)

// Label turns the status identifier into a sentence-case label.
func (s Status) Label() string {
	raw := strings.TrimSpace(string(s))
	if raw == "" {
		return "Unknown"
	}
	words := strings.ReplaceAll(raw, "_", " ")
	return strings.ToUpper(words[:1]) + words[1:]
}

// Document is one filled-in IOM (GenericIOM) record.
type Document struct {
	ID                     int64          `json:"id"`
	TemplateID             int64          `json:"iom_template"`
	Template               *Template      `json:"iom_template_details,omitempty"`
	Subject                string         `json:"subject"`
	DataPayload            map[string]any `json:"data_payload"`
	Status                 Status         `json:"status"`
	ToUsers                []int64        `json:"to_users"`
	ToGroups               []int64        `json:"to_groups"`
	ParentContentType      *int64         `json:"parent_content_type,omitempty"`
	ParentObjectID         *int64         `json:"parent_object_id,omitempty"`
	ParentDisplay          string         `json:"parent_record_display,omitempty"`
	CreatedBy              int64          `json:"created_by"`
	CreatedByUsername      string         `json:"created_by_username,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	PublishedAt            *time.Time     `json:"published_at,omitempty"`
	SimpleApprovedBy       *int64         `json:"simple_approval_action_by,omitempty"`
	SimpleApprovedAt       *time.Time     `json:"simple_approval_action_at,omitempty"`
	SimpleApprovalComments string         `json:"simple_approval_comments,omitempty"`
}

// Write is the body of create (POST) and update (PATCH) requests.
type Write struct {
	TemplateID          int64          `json:"iom_template,omitempty"`
	Subject             string         `json:"subject"`
	DataPayload         map[string]any `json:"data_payload"`
	ToUsers             []int64        `json:"to_users"`
	ToGroups            []int64        `json:"to_groups"`
	ParentContentTypeID *int64         `json:"parent_content_type_id,omitempty"`
	ParentObjectID      *int64         `json:"parent_object_id,omitempty"`
}

// StepStatus is the state of one advanced-approval step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepApproved  StepStatus = "approved"
	StepRejected  StepStatus = "rejected"
	StepSkipped   StepStatus = "skipped"
	StepDelegated StepStatus = "delegated"
)

// ApprovalStep is one ordered gate of an advanced approval. Steps are owned by
// the server; the client only renders them and forwards approve/reject intents.
type ApprovalStep struct {
	ID            int64      `json:"id"`
	StepOrder     int        `json:"step_order"`
	Name          string     `json:"rule_name,omitempty"`
	Status        StepStatus `json:"status"`
	Approver      *int64     `json:"approver,omitempty"`
	ApproverName  string     `json:"approver_username,omitempty"`
	ApproverGroup *int64     `json:"approver_group,omitempty"`
	GroupName     string     `json:"approver_group_name,omitempty"`
	ActedBy       *int64     `json:"actioned_by,omitempty"`
	ActedByName   string     `json:"actioned_by_username,omitempty"`
	ActedAt       *time.Time `json:"actioned_at,omitempty"`
	Comments      string     `json:"comments,omitempty"`
}

// AssigneeLabel names who the step waits on: the approver, else the group.
func (s ApprovalStep) AssigneeLabel() string {
	if s.ApproverName != "" {
		return s.ApproverName
	}
	return s.GroupName
}

// StepRef keys the approval steps of one object.
type StepRef struct {
	AppLabel string
	Model    string
	ObjectID int64
}
