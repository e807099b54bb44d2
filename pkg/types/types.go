// Package domain defines the core business types for the alerts engine.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntityKind identifies which entity table an alert or log event refers to.
type EntityKind string

// Entity kind constants.
const (
	KindCoordinator EntityKind = "coordinator"
	KindTeacher     EntityKind = "teacher"
	KindStudent     EntityKind = "student"
	KindGroup       EntityKind = "group"
)

// EntityKinds lists all valid entity kinds in a stable order.
var EntityKinds = []EntityKind{KindCoordinator, KindTeacher, KindStudent, KindGroup}

// Valid reports whether k is a known entity kind.
func (k EntityKind) Valid() bool {
	switch k {
	case KindCoordinator, KindTeacher, KindStudent, KindGroup:
		return true
	}
	return false
}

// EntityRef is a tagged reference to an entity of any kind.
type EntityRef struct {
	Kind EntityKind `json:"entity_kind"`
	ID   int64      `json:"entity_id"`
}

// String renders the reference in the operator notation "kind.id".
func (r EntityRef) String() string {
	return string(r.Kind) + "." + strconv.FormatInt(r.ID, 10)
}

// ParseEntityRef parses the operator notation "kind.id", e.g. "teacher.42".
func ParseEntityRef(s string) (EntityRef, error) {
	kind, idStr, ok := strings.Cut(s, ".")
	if !ok {
		return EntityRef{}, fmt.Errorf("entity reference %q must be of the form kind.id", s)
	}

	k := EntityKind(kind)
	if !k.Valid() {
		return EntityRef{}, fmt.Errorf("unknown entity kind %q", kind)
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return EntityRef{}, fmt.Errorf("invalid entity id %q", idStr)
	}

	return EntityRef{Kind: k, ID: id}, nil
}

// StatusField selects which of the two entity status columns a rule reads.
type StatusField string

// Status field constants.
const (
	ProjectStatus     StatusField = "project_status"
	SituationalStatus StatusField = "situational_status"
)

// AlertKind tags the reason an alert fired. The enumeration is closed;
// unknown kinds are rejected at validation.
type AlertKind string

// Alert kind constants.
const (
	AlertOverdueOnLeave           AlertKind = "overdue_on_leave"
	AlertOverdueTransferRequest   AlertKind = "overdue_transfer_request"
	AlertCoordinatorOnboarding    AlertKind = "coordinator_onboarding_stale"
	AlertTeacherNoGroup45Days     AlertKind = "teacher_no_group_45_days"
	AlertTeacherOverdueOnLeave    AlertKind = "teacher_overdue_on_leave"
	AlertTeacherOverdueGroupOffer AlertKind = "teacher_overdue_group_offer"
	AlertStudentNeedsInterview    AlertKind = "student_needs_oral_interview"
	AlertStudentOverdueGroupOffer AlertKind = "student_overdue_group_offer"
	AlertStudentNoGroup30Days     AlertKind = "student_no_group_30_days"
	AlertGroupPendingOverdue      AlertKind = "group_pending_overdue"
	AlertGroupAwaitingStart       AlertKind = "group_awaiting_start_overdue"
	AlertLowStudentActivity       AlertKind = "low_student_activity"
)

// AlertKindEntity maps every alert kind to the entity kind it applies to.
var AlertKindEntity = map[AlertKind]EntityKind{
	AlertOverdueOnLeave:           KindCoordinator,
	AlertCoordinatorOnboarding:    KindCoordinator,
	AlertTeacherNoGroup45Days:     KindTeacher,
	AlertTeacherOverdueOnLeave:    KindTeacher,
	AlertTeacherOverdueGroupOffer: KindTeacher,
	AlertStudentNeedsInterview:    KindStudent,
	AlertStudentOverdueGroupOffer: KindStudent,
	AlertStudentNoGroup30Days:     KindStudent,
	AlertOverdueTransferRequest:   KindStudent,
	AlertGroupPendingOverdue:      KindGroup,
	AlertGroupAwaitingStart:       KindGroup,
	AlertLowStudentActivity:       KindGroup,
}

// Valid reports whether k belongs to the closed alert kind enumeration.
func (k AlertKind) Valid() bool {
	_, ok := AlertKindEntity[k]
	return ok
}

// Alert is a condition surfaced to operators about a single entity.
// Alerts are created by handlers during a check, mutated only to be
// resolved, and never deleted.
type Alert struct {
	ID         string     `json:"id"                    db:"id"`
	EntityKind EntityKind `json:"entity_kind"           db:"entity_kind"`
	EntityID   int64      `json:"entity_id"             db:"entity_id"`
	Kind       AlertKind  `json:"alert_kind"            db:"alert_kind"`
	Details    string     `json:"details"               db:"details"`
	CreatedAt  time.Time  `json:"created_at"            db:"created_at"`
	Resolved   bool       `json:"is_resolved"           db:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Ref returns the tagged entity reference of the alert.
func (a *Alert) Ref() EntityRef {
	return EntityRef{Kind: a.EntityKind, ID: a.EntityID}
}

// LogEvent is one entry of an entity's append-only event log. The log is
// owned by external collaborators; the engine only reads it, except for the
// operator tooling that writes synthetic backdated events.
type LogEvent struct {
	ID          int64      `json:"id"                      db:"id"`
	EntityKind  EntityKind `json:"entity_kind"             db:"entity_kind"`
	EntityID    int64      `json:"entity_id"               db:"entity_id"`
	EventType   string     `json:"event_type"              db:"event_type"`
	OccurredAt  time.Time  `json:"occurred_at"             db:"occurred_at"`
	Comment     string     `json:"comment,omitempty"       db:"comment"`
	FromGroupID *int64     `json:"from_group_id,omitempty" db:"from_group_id"`
	ToGroupID   *int64     `json:"to_group_id,omitempty"   db:"to_group_id"`
}

// EntityStatus is the read view of an entity row the engine consumes.
type EntityStatus struct {
	ID                int64      `json:"id"                     db:"id"`
	ProjectStatus     string     `json:"project_status"         db:"project_status"`
	SituationalStatus string     `json:"situational_status"     db:"situational_status"`
	StatusSince       *time.Time `json:"status_since,omitempty" db:"status_since"`
}

// Status returns the value of the selected status field.
func (e *EntityStatus) Status(f StatusField) string {
	if f == SituationalStatus {
		return e.SituationalStatus
	}
	return e.ProjectStatus
}

// Project status values. These follow the newer split of project_status vs
// situational_status; the older merged enumeration is not used.
const (
	StatusWorkingOK  = "working_ok" // coordinator
	StatusOnLeave    = "on_leave"   // coordinator, teacher
	StatusNoGroupYet = "no_group_yet"
	StatusWorking    = "working" // teacher, group
	StatusStudying   = "studying"
	StatusPending    = "pending"
	StatusAwaiting   = "awaiting_start"
	StatusFinished   = "finished"
)

// Situational status values.
const (
	StatusOnboarding     = "onboarding"
	StatusNeedsInterview = "needs_interview_to_determine_level"
)

// Log event types.
const (
	EventGoneOnLeave       = "gone_on_leave"
	EventReturnedFromLeave = "returned_from_leave"
	EventAwaitingOffer     = "awaiting_offer"
	EventGroupOffered      = "group_offered"
	EventAcceptedOffer     = "accepted_offer"
	EventDeclinedOffer     = "declined_offer"
	EventGroupConfirmed    = "group_confirmed"
	EventStudyStarted      = "study_started"
	EventTentativeDiscard  = "tentative_discarded"
	EventTransferRequested = "transfer_requested"
	EventTransferApproved  = "transfer_approved"
	EventTransferDeclined  = "transfer_declined"
	EventMovedToGroup      = "moved_to_group"
	EventLessonLogged      = "lesson_logged"
)

// EventTypesByKind lists the log event types each entity kind can carry.
var EventTypesByKind = map[EntityKind][]string{
	KindCoordinator: {
		EventGoneOnLeave, EventReturnedFromLeave,
	},
	KindTeacher: {
		EventGoneOnLeave, EventReturnedFromLeave, EventAwaitingOffer,
		EventGroupOffered, EventAcceptedOffer, EventDeclinedOffer,
		EventGroupConfirmed, EventStudyStarted, EventTentativeDiscard,
	},
	KindStudent: {
		EventAwaitingOffer, EventGroupOffered, EventAcceptedOffer,
		EventDeclinedOffer, EventGroupConfirmed, EventStudyStarted,
		EventTentativeDiscard, EventTransferRequested, EventTransferApproved,
		EventTransferDeclined, EventMovedToGroup,
	},
	KindGroup: {
		EventStudyStarted, EventLessonLogged,
	},
}

// KnownEventType reports whether eventType is valid for the given entity kind.
func KnownEventType(kind EntityKind, eventType string) bool {
	for _, t := range EventTypesByKind[kind] {
		if t == eventType {
			return true
		}
	}
	return false
}

// CheckRun records a single execution of the periodic alert check.
type CheckRun struct {
	ID            string     `json:"id"                     db:"id"`
	RunID         string     `json:"run_id"                 db:"run_id"`
	StartedAt     time.Time  `json:"started_at"             db:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	Status        string     `json:"status"                 db:"status"`
	ErrorText     string     `json:"error_text,omitempty"   db:"error_text"`
	CreatedCount  int        `json:"created_count"          db:"created_count"`
	ResolvedCount int        `json:"resolved_count"         db:"resolved_count"`
}
