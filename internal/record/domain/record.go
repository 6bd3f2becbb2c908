// Package domain defines the synced record types: orders, subtasks, comments,
// and dashboard tasks. These are wire payloads and cache values; durable state
// is owned by the persistence layer.
package domain

import "time"

// Kind identifies a record type. Used for room naming, journey lookup, and
// event routing.
type Kind string

const (
	KindOrder   Kind = "order"
	KindSubtask Kind = "subtask"
	KindComment Kind = "comment"
	KindTask    Kind = "task"
)

// StatusField is the history field name that drives journey reconstruction.
const StatusField = "status"

// Order statuses.
const (
	OrderStatusNew        = "new"
	OrderStatusInProgress = "in_progress"
	OrderStatusOnHold     = "on_hold"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// Subtask board columns.
const (
	SubtaskStatusPlanning    = "planning"
	SubtaskStatusDevelopment = "development"
	SubtaskStatusReview      = "review"
	SubtaskStatusDone        = "done"
)

// Dashboard task statuses.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// InitialStatus returns the status a record of the given kind is created with.
// Used to synthesize journey step 0 when the first history entry has no oldValue.
func InitialStatus(kind Kind) string {
	switch kind {
	case KindOrder:
		return OrderStatusNew
	case KindSubtask:
		return SubtaskStatusPlanning
	case KindTask:
		return TaskStatusTodo
	}
	return ""
}

// TerminalStatus returns the "completed" status for the given kind, or "" if
// the kind has no terminal status.
func TerminalStatus(kind Kind) string {
	switch kind {
	case KindOrder:
		return OrderStatusCompleted
	case KindSubtask:
		return SubtaskStatusDone
	case KindTask:
		return TaskStatusDone
	}
	return ""
}

// Order is a customer order tracked by the team.
type Order struct {
	ID         string     `json:"id"`
	Number     string     `json:"number"`
	Title      string     `json:"title"`
	Customer   string     `json:"customer"`
	Status     string     `json:"status"`
	AssignedTo string     `json:"assignedTo,omitempty"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
	CreatedBy  string     `json:"createdBy"`
	UpdatedBy  string     `json:"updatedBy"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Key returns the order id. Implements syncclient.Keyed.
func (o Order) Key() string { return o.ID }

// Subtask is a unit of work on an order, placed in a board column.
type Subtask struct {
	ID         string     `json:"id"`
	OrderID    string     `json:"orderId"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	Position   int        `json:"position"`
	AssignedTo string     `json:"assignedTo,omitempty"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
	CreatedBy  string     `json:"createdBy"`
	UpdatedBy  string     `json:"updatedBy"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Key returns the subtask id.
func (s Subtask) Key() string { return s.ID }

// Comment is a discussion entry on an order. Reactions maps an emoji to the
// ids of users who toggled it on.
type Comment struct {
	ID        string              `json:"id"`
	OrderID   string              `json:"orderId"`
	AuthorID  string              `json:"authorId"`
	Body      string              `json:"body"`
	Reactions map[string][]string `json:"reactions,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// Key returns the comment id.
func (c Comment) Key() string { return c.ID }

// DashboardTask is a personal task shown on the dashboard board/calendar.
type DashboardTask struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	Position     int        `json:"position"`
	OwnerID      string     `json:"ownerId"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	CreatedBy    string     `json:"createdBy"`
	UpdatedBy    string     `json:"updatedBy"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Key returns the task id.
func (t DashboardTask) Key() string { return t.ID }
