package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

// ProjectTask is a work item on a project: a planning concern, unrelated to
// the billing tasks on contracts. Subtasks nest one level via ParentID.
// Dates are stored as ISO strings since they are display values, never
// computed with.
type ProjectTask struct {
	ID          string     `gorm:"primaryKey;size:40" json:"id"`
	ProjectID   string     `gorm:"not null;index" json:"project_id"`
	ParentID    *string    `gorm:"size:40;index" json:"parent_id,omitempty"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `gorm:"not null;default:'todo'" json:"status"`
	StartDate   string     `json:"start_date,omitempty"`
	DueDate     string     `json:"due_date,omitempty"`
	ReminderAt  string     `json:"reminder_at,omitempty"`
	SortOrder   int        `json:"sort_order"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Assignees []Employee        `gorm:"-" json:"assignees,omitempty"`
	Notes     []ProjectTaskNote `gorm:"-" json:"notes,omitempty"`
	Subtasks  []ProjectTask     `gorm:"-" json:"subtasks,omitempty"`
}

// ProjectTaskAssignee links a work item to an employee.
type ProjectTaskAssignee struct {
	TaskID     string `gorm:"primaryKey;size:40" json:"task_id"`
	EmployeeID string `gorm:"primaryKey;size:40" json:"employee_id"`
}

type ProjectTaskNote struct {
	ID        string    `gorm:"primaryKey;size:40" json:"id"`
	TaskID    string    `gorm:"not null;index" json:"task_id"`
	AuthorID  *string   `gorm:"size:40" json:"author_id,omitempty"`
	Content   string    `gorm:"not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`

	AuthorName string `gorm:"-" json:"author_name,omitempty"`
}
