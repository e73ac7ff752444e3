package entity

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID          uuid.UUID
	Request     string
	Status      SessionStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
	Steps       []Step
	Turns       int
	Result      string
	Error       string
}

type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusFailed     SessionStatus = "failed"
)

// Step records one side-effecting action group that was started on the page.
type Step struct {
	ID        uuid.UUID
	Name      string
	Timestamp time.Time
}

type StatusState string

const (
	StatusLogin   StatusState = "login"
	StatusWorking StatusState = "working"
	StatusDone    StatusState = "done"
	StatusFailed  StatusState = "failed"
)

// Status is a UI-facing transition of a booking session. Action is set for StatusWorking.
type Status struct {
	State  StatusState
	Action string
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a function invocation requested by the model. Arguments is the raw JSON text.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  Schema
}

// Schema is the JSON schema subset used to describe tool parameters.
type Schema struct {
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Enum        []string          `json:"enum,omitempty"`
	Minimum     *int              `json:"minimum,omitempty"`
	Properties  map[string]Schema `json:"properties,omitempty"`
	Required    []string          `json:"required,omitempty"`
}

type ChatRequest struct {
	Model    string
	Messages []Message
	Tools    []ToolDescriptor
	N        int
}

type ChatResponse struct {
	Message Message
}

// ElementQuery locates an element. Selector is CSS unless XPath is set.
type ElementQuery struct {
	Name     string
	Selector string
	XPath    bool
	Visible  bool
	Timeout  time.Duration
}

type WaitUntil string

const (
	WaitUntilLoad             WaitUntil = "load"
	WaitUntilDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitUntilNetworkIdle      WaitUntil = "networkidle"
)
