// Package domain defines the persistence models for complaints, attachments,
// conversations, chat messages, and feedback. These types are mapped with GORM
// and double as the JSON wire shapes shared by the API server and the client.
package domain

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// Category classifies a complaint by the public area it concerns.
type Category string

const (
	CategoryInfrastructure Category = "Infrastructure"
	CategoryPublicServices Category = "Public Services"
	CategoryTransportation Category = "Transportation"
	CategoryEnvironment    Category = "Environment"
	CategorySafety         Category = "Safety"
	CategoryHealthcare     Category = "Healthcare"
	CategoryEducation      Category = "Education"
	CategoryOther          Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryInfrastructure,
	CategoryPublicServices,
	CategoryTransportation,
	CategoryEnvironment,
	CategorySafety,
	CategoryHealthcare,
	CategoryEducation,
	CategoryOther,
}

// ParseCategory normalizes user input ("public  services", "SAFETY") to a
// known Category. The second result is false when nothing matches.
func ParseCategory(s string) (Category, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "", false
	}
	c := Category(cases.Title(language.English).String(strings.ToLower(s)))
	return c, c.Valid()
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Priority expresses how urgently a complaint needs attention.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Status is the lifecycle state of a complaint. Only the server moves a
// complaint between states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
	StatusRejected   Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// statusTransitions lists the states reachable from each state.
// Resolved and rejected are terminal.
var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusResolved, StatusRejected},
	StatusInProgress: {StatusResolved, StatusRejected, StatusPending},
}

// CanTransition reports whether a complaint may move from s to next.
// Re-asserting the current status is always allowed.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	for _, n := range statusTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Complaint is a user-submitted issue report.
//
// Fields:
//   - ID: server-assigned UUID.
//   - UserID: owner; every query is scoped by it.
//   - SubmittedAt / UpdatedAt: managed by GORM.
//   - Attachments: cascade-deleted with the complaint.
type Complaint struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID      string         `json:"userId"      gorm:"type:varchar(64);not null;index:idx_user_complaints,priority:1"`
	Title       string         `json:"title"       gorm:"type:varchar(255);not null"`
	Category    Category       `json:"category"    gorm:"type:varchar(32);not null;index"`
	Priority    Priority       `json:"priority"    gorm:"type:varchar(16);not null;default:'medium'"`
	Status      Status         `json:"status"      gorm:"type:varchar(16);not null;default:'pending';index"`
	Description string         `json:"description" gorm:"type:text;not null"`
	Location    string         `json:"location"    gorm:"type:varchar(255)"`
	SubmittedAt time.Time      `json:"submittedAt" gorm:"autoCreateTime;index:idx_user_complaints,priority:2"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-"           gorm:"index"`

	Attachments []Attachment `json:"attachments,omitempty" gorm:"foreignKey:ComplaintID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Complaint.
func (Complaint) TableName() string { return "complaints" }

// Attachment is a binary file uploaded with a complaint. The payload is
// stored inline and never serialized to JSON.
type Attachment struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ComplaintID string    `json:"complaintId" gorm:"type:char(36);not null;index"`
	Filename    string    `json:"filename"    gorm:"type:varchar(255);not null"`
	ContentType string    `json:"contentType" gorm:"type:varchar(127);not null"`
	Size        int64     `json:"size"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TableName returns the database table name for Attachment.
func (Attachment) TableName() string { return "attachments" }

// Stats aggregates complaint counts per status bucket.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Resolved int `json:"resolved"`
	Rejected int `json:"rejected"`
}

// Filters narrows complaint listings. Zero values mean "no constraint".
type Filters struct {
	Status   Status   `json:"status,omitempty"`
	Category Category `json:"category,omitempty"`
	Priority Priority `json:"priority,omitempty"`
	Search   string   `json:"search,omitempty"`
	Page     int      `json:"page,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

// Pagination carries page metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}
