package domain

import "time"

// User is a registered account. Credentials live with the authentication gateway.
type User struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Username  string    `json:"username" gorm:"type:varchar(255);not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:now()"`
}

// Project belongs to exactly one user.
type Project struct {
	ID          string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID      string    `json:"user_id" gorm:"type:uuid;not null;index"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;default:now()"`
}

// Task priorities and statuses.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"

	StatusToDo       = "to-do"
	StatusInProgress = "in-progress"
	StatusDone       = "done"
)

// Task belongs to a project; its owner is the project's owner.
type Task struct {
	ID                string     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProjectID         string     `json:"project_id" gorm:"type:uuid;not null;index"`
	Title             string     `json:"title" gorm:"type:varchar(255);not null"`
	Description       string     `json:"description" gorm:"type:text"`
	Priority          string     `json:"priority" gorm:"type:varchar(16);not null;default:'Medium'"`
	Status            string     `json:"status" gorm:"type:varchar(16);not null;default:'to-do'"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	FileAttachmentURL *string    `json:"file_attachment_url,omitempty" gorm:"type:text"`
	CreatedAt         time.Time  `json:"created_at" gorm:"not null;default:now()"`
}

// Comment is one message on a task. ParentCommentID links replies to their parent
// within the same task.
type Comment struct {
	ID                string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TaskID            string    `json:"task_id" gorm:"type:uuid;not null;index:idx_comments_task_created,priority:1"`
	UserID            string    `json:"user_id" gorm:"type:uuid;not null"`
	Content           string    `json:"content" gorm:"type:varchar(2000);not null"`
	ParentCommentID   *string   `json:"parent_comment_id" gorm:"type:varchar(64);index"`
	FileAttachmentURL *string   `json:"file_attachment_url" gorm:"type:text"`
	CreatedAt         time.Time `json:"created_at" gorm:"not null;default:now();index:idx_comments_task_created,priority:2"`

	// Seq orders comments sharing a created_at in PostgreSQL. Read-only.
	Seq int64 `json:"-" gorm:"->;type:bigserial;not null"`

	Username string     `json:"username,omitempty" gorm:"-"` // filled on read
	Replies  []*Comment `json:"replies,omitempty" gorm:"-"`  // tree output only
}

// IsRoot reports whether the comment starts a thread.
func (c *Comment) IsRoot() bool {
	return c.ParentCommentID == nil
}
