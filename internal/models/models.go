/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"
	"time"
)

// RoleName enumerates the identity roles the platform trusts.
type RoleName string

const (
	RoleProvider  RoleName = "provider"
	RoleCandidate RoleName = "candidate"
	// RoleService is granted to API-key callers such as the conferencing
	// handler that reports attendance on behalf of participants.
	RoleService RoleName = "service"
)

// Provider is the interviewer-side actor who owns time-slot inventory.
// Identity and credentials live with the external identity service; the row
// here carries only what scheduling needs.
type Provider struct {
	ID                  string   `gorm:"type:uuid;primaryKey" json:"id"`
	Name                string   `gorm:"type:varchar(120)" json:"name"`
	Email               string   `gorm:"uniqueIndex" json:"email"`
	FieldOfExpertise    string   `gorm:"type:varchar(16)" json:"field_of_expertise"`
	HandledDesignations []string `gorm:"type:jsonb;serializer:json" json:"handled_designations"`
	YearsOfExperience   int      `json:"years_of_experience"`
	Active              bool     `gorm:"default:true;index" json:"active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Handles reports whether the provider takes interviews for the designation.
// Matching is case-insensitive.
func (p *Provider) Handles(designation string) bool {
	want := strings.ToLower(strings.TrimSpace(designation))
	if want == "" {
		return false
	}
	for _, d := range p.HandledDesignations {
		if strings.ToLower(strings.TrimSpace(d)) == want {
			return true
		}
	}
	return false
}

// CandidateProfile is the read-only join source owned by the profile
// collaborator. The scheduler only consumes the designation.
type CandidateProfile struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(120)" json:"name"`
	Email       string    `gorm:"uniqueIndex" json:"email"`
	Field       string    `gorm:"type:varchar(16)" json:"field"`
	Designation string    `gorm:"type:varchar(100)" json:"designation"`
	ResumeURL   string    `json:"resume_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Civil date and clock layouts used for slot storage. Slots keep civil
// values; instants are derived through the configured zone.
const (
	SlotDateLayout = "2006-01-02"
	SlotTimeLayout = "15:04"
)

// Slot is one bookable time window belonging to one provider.
// (provider, date, start) is unique; a claimed slot is never deleted and
// never reverts to available.
type Slot struct {
	ID         string `gorm:"type:uuid;primaryKey" json:"id"`
	ProviderID string `gorm:"type:uuid;not null;uniqueIndex:idx_slots_provider_date_start,priority:1" json:"provider_id"`
	Date       string `gorm:"type:varchar(10);not null;uniqueIndex:idx_slots_provider_date_start,priority:2" json:"date"`
	StartTime  string `gorm:"type:varchar(5);not null;uniqueIndex:idx_slots_provider_date_start,priority:3" json:"start_time"`
	EndTime    string `gorm:"type:varchar(5);not null" json:"end_time"`
	Available  bool   `gorm:"default:true;index" json:"available"`
	Managed    bool   `gorm:"default:false" json:"managed"`
	CreatedAt  time.Time `json:"created_at"`
}

// StartsAt returns the slot start as an instant in loc.
// Returns the zero time if the stored civil values are malformed.
func (s *Slot) StartsAt(loc *time.Location) time.Time {
	return CivilTime(s.Date, s.StartTime, loc)
}

// EndsAt returns the slot end as an instant in loc.
func (s *Slot) EndsAt(loc *time.Location) time.Time {
	return CivilTime(s.Date, s.EndTime, loc)
}

// CivilTime combines a stored civil date and clock value into an instant.
func CivilTime(date, clock string, loc *time.Location) time.Time {
	t, err := time.ParseInLocation(SlotDateLayout+" "+SlotTimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// CivilDate formats t's calendar date in its own location.
func CivilDate(t time.Time) string {
	return t.Format(SlotDateLayout)
}

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusScheduled BookingStatus = "scheduled"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusNoShow    BookingStatus = "no_show"
)

// Terminal reports whether the status can never change again.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Booking exclusively assigns one candidate to one slot. The unique index on
// SlotID enforces at most one booking per slot for the lifetime of the slot.
type Booking struct {
	ID          string        `gorm:"type:uuid;primaryKey" json:"id"`
	CandidateID string        `gorm:"type:uuid;index;not null" json:"candidate_id"`
	ProviderID  string        `gorm:"type:uuid;index;not null" json:"provider_id"`
	SlotID      string        `gorm:"type:uuid;uniqueIndex;not null" json:"slot_id"`
	Slot        Slot          `gorm:"foreignKey:SlotID" json:"slot"`
	Designation string        `gorm:"type:varchar(100)" json:"designation"`
	Status      BookingStatus `gorm:"type:varchar(20);index;default:scheduled" json:"status"`

	// Meeting reference issued once at creation, immutable afterwards.
	MeetingID         string `gorm:"uniqueIndex" json:"meeting_id"`
	MeetingURL        string `json:"meeting_url"`
	MeetingCredential string `gorm:"type:varchar(50)" json:"meeting_credential"`

	ProviderJoinedAt  *time.Time `json:"provider_joined_at"`
	CandidateJoinedAt *time.Time `json:"candidate_joined_at"`
	ProviderLeftAt    *time.Time `json:"provider_left_at"`
	CandidateLeftAt   *time.Time `json:"candidate_left_at"`

	AttendedDurationMinutes int    `gorm:"default:0" json:"attended_duration_minutes"`
	BothAttended            bool   `gorm:"default:false" json:"both_attended"`
	Notes                   string `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Feedback is the provider's evaluation of a completed interview. The
// scheduler only checks existence; the feedback CRUD itself lives with the
// external feedback surface.
type Feedback struct {
	ID          string `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID   string `gorm:"type:uuid;uniqueIndex;not null" json:"booking_id"`
	ProviderID  string `gorm:"type:uuid;index;not null" json:"provider_id"`
	CandidateID string `gorm:"type:uuid;index;not null" json:"candidate_id"`

	RelevanceClarity    int `json:"relevance_clarity"`
	TechnicalKnowledge  int `json:"technical_knowledge"`
	CommunicationSkills int `json:"communication_skills"`
	ProblemSolving      int `json:"problem_solving"`
	ExperienceExamples  int `json:"experience_examples"`

	OverallScore float64 `json:"overall_score"`

	Strengths           []string `gorm:"type:jsonb;serializer:json" json:"strengths"`
	AreasForImprovement []string `gorm:"type:jsonb;serializer:json" json:"areas_for_improvement"`
	DetailedFeedback    string   `gorm:"type:text" json:"detailed_feedback"`
	Recommendation      string   `gorm:"type:text" json:"recommendation"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Feedback) TableName() string {
	return "interview_feedback"
}

// APIKey authenticates service-to-service callers (e.g. the conferencing
// handler reporting attendance). Only the hash is stored.
type APIKey struct {
	ID        string     `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string     `gorm:"type:varchar(120)" json:"name"`
	KeyHash   string     `gorm:"uniqueIndex;not null" json:"-"`
	KeyPrefix string     `gorm:"type:varchar(16)" json:"key_prefix"`
	Roles     []string   `gorm:"type:jsonb;serializer:json" json:"roles"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsExpired reports whether the key is past its expiry.
func (k *APIKey) IsExpired() bool {
	return !k.ExpiresAt.IsZero() && time.Now().After(k.ExpiresAt)
}

// IsRevoked reports whether the key has been revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// AuditAction enumerates audited scheduling actions.
type AuditAction string

const (
	AuditActionBookingCreated  AuditAction = "booking.created"
	AuditActionBookingComplete AuditAction = "booking.completed"
	AuditActionBookingNoShow   AuditAction = "booking.no_show"
	AuditActionSlotDeleted     AuditAction = "slot.deleted"
	AuditActionSlotsGenerated  AuditAction = "slots.generated"
)

// AuditLog records who did what to which resource.
type AuditLog struct {
	ID           string         `gorm:"type:uuid;primaryKey"`
	Timestamp    time.Time      `gorm:"index:idx_audit_timestamp;not null"`
	UserID       *string        `gorm:"type:uuid;index:idx_audit_user"` // NULL for system transitions
	Action       AuditAction    `gorm:"type:varchar(64);index:idx_audit_action;not null"`
	ResourceType string         `gorm:"type:varchar(64)"`
	ResourceID   string         `gorm:"type:uuid"`
	Details      map[string]any `gorm:"type:jsonb;serializer:json"`
	IPAddress    string         `gorm:"type:varchar(45)"`
	CreatedAt    time.Time
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
