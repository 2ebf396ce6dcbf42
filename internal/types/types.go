package types

import "time"

type Status string

const (
	StatusApplied      Status = "applied"      // application submitted
	StatusScreening    Status = "screening"    // set by hand only
	StatusInterviewing Status = "interviewing" // interview or assessment stage
	StatusOffer        Status = "offer"        // offer received
	StatusRejected     Status = "rejected"     // rejected
	StatusWithdrawn    Status = "withdrawn"    // set by hand only
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusApplied,
	StatusScreening,
	StatusInterviewing,
	StatusOffer,
	StatusRejected,
	StatusWithdrawn,
}

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// Header is a single message header. Names compare case-insensitively.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type PartBody struct {
	// Data is URL-safe base64, padding optional.
	Data         string `json:"data,omitempty"`
	Size         int64  `json:"size,omitempty"`
	AttachmentID string `json:"attachmentId,omitempty"`
}

// MessagePart is one node of a message's MIME tree.
type MessagePart struct {
	PartID   string        `json:"partId,omitempty"`
	MimeType string        `json:"mimeType"`
	Filename string        `json:"filename,omitempty"`
	Headers  []Header      `json:"headers,omitempty"`
	Body     *PartBody     `json:"body,omitempty"`
	Parts    []MessagePart `json:"parts,omitempty"`
}

// Message is a raw mailbox message as supplied by a mail source. Top-level
// headers live on Payload.
type Message struct {
	ID           string       `json:"id"`
	ThreadID     string       `json:"threadId,omitempty"`
	InternalDate string       `json:"internalDate,omitempty"` // ms since epoch
	Payload      *MessagePart `json:"payload,omitempty"`
}

type ExtractedText struct {
	From    string
	Subject string
	Body    string
}

// ParsedJob is what a single message says about a job application.
// Company and Position always hold a value; Source and AppliedDate may be nil.
type ParsedJob struct {
	Company     string     `json:"company"`
	Position    string     `json:"position"`
	Status      Status     `json:"status"`
	Source      *string    `json:"source"`
	AppliedDate *time.Time `json:"applied_date"`
}

type JobApplication struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Company     string     `gorm:"size:255;not null;index" json:"company"`
	Position    string     `gorm:"size:255;not null" json:"position"`
	Status      Status     `gorm:"size:32;not null;default:applied;index" json:"status"`
	Location    *string    `gorm:"size:255" json:"location"`
	SalaryRange *string    `gorm:"size:100" json:"salary_range"`
	JobURL      *string    `gorm:"type:text" json:"job_url"`
	Source      *string    `gorm:"size:100" json:"source"`
	Notes       *string    `gorm:"type:text" json:"notes"`
	EmailID     *string    `gorm:"size:255;uniqueIndex" json:"email_id"` // mailbox message id
	AppliedDate *time.Time `json:"applied_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// UserToken holds the OAuth credentials of a connected mailbox.
type UserToken struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	AccessToken  string     `gorm:"type:text;not null" json:"-"`
	RefreshToken string     `gorm:"type:text" json:"-"`
	TokenExpiry  *time.Time `json:"token_expiry"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
