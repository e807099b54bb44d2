package alerts

import (
	"time"

	domain "github.com/langcorps/alerts-engine/pkg/types"
)

const day = 24 * time.Hour

// Declaration binds a strategy to its parameters under a stable handler
// name. Parameters are validated at construction time each tick; a bad
// declaration is skipped by the orchestrator, it never panics.
type Declaration struct {
	Name  string
	build func(b base) (Handler, error)
}

// StatusSince declares a handler on the status-since strategy.
func StatusSince(name string, p StatusSinceParams) Declaration {
	return Declaration{Name: name, build: func(b base) (Handler, error) {
		if err := p.validate(); err != nil {
			return nil, err
		}
		return &statusSinceHandler{base: b, name: name, params: p}, nil
	}}
}

// DateThreshold declares a handler on the date-threshold strategy.
func DateThreshold(name string, p DateThresholdParams) Declaration {
	return Declaration{Name: name, build: func(b base) (Handler, error) {
		if err := p.validate(); err != nil {
			return nil, err
		}
		return &dateThresholdHandler{base: b, name: name, params: p}, nil
	}}
}

// PendingResponse declares a handler on the pending-response strategy.
func PendingResponse(name string, p PendingResponseParams) Declaration {
	return Declaration{Name: name, build: func(b base) (Handler, error) {
		if err := p.validate(); err != nil {
			return nil, err
		}
		return &pendingResponseHandler{base: b, name: name, params: p}, nil
	}}
}

// CoordinatorLeave declares a handler on the coordinator leave strategy.
func CoordinatorLeave(name string, p CoordinatorLeaveParams) Declaration {
	return Declaration{Name: name, build: func(b base) (Handler, error) {
		if err := p.validate(); err != nil {
			return nil, err
		}
		return &coordinatorLeaveHandler{base: b, name: name, params: p}, nil
	}}
}

// groupOfferResponses are the event types that answer a group offer.
var groupOfferResponses = []string{
	domain.EventAcceptedOffer,
	domain.EventDeclinedOffer,
	domain.EventGroupConfirmed,
	domain.EventStudyStarted,
	domain.EventTentativeDiscard,
}

// Catalogue returns the full set of alert rules. Adding a rule is adding
// one declaration here.
func Catalogue() []Declaration {
	return []Declaration{
		CoordinatorLeave("coordinator_overdue_on_leave", CoordinatorLeaveParams{
			Period:    14 * day,
			AlertKind: domain.AlertOverdueOnLeave,
		}),
		StatusSince("coordinator_onboarding_stale", StatusSinceParams{
			EntityKind: domain.KindCoordinator,
			Field:      domain.SituationalStatus,
			Status:     domain.StatusOnboarding,
			Period:     14 * day,
			AlertKind:  domain.AlertCoordinatorOnboarding,
		}),
		DateThreshold("teacher_no_group_45_days", DateThresholdParams{
			EntityKind: domain.KindTeacher,
			Field:      domain.ProjectStatus,
			Status:     domain.StatusNoGroupYet,
			Event:      domain.EventAwaitingOffer,
			Period:     45 * day,
			AlertKind:  domain.AlertTeacherNoGroup45Days,
		}),
		DateThreshold("teacher_overdue_on_leave", DateThresholdParams{
			EntityKind: domain.KindTeacher,
			Field:      domain.ProjectStatus,
			Status:     domain.StatusOnLeave,
			Event:      domain.EventGoneOnLeave,
			Period:     14 * day,
			AlertKind:  domain.AlertTeacherOverdueOnLeave,
		}),
		PendingResponse("teacher_overdue_group_offer", PendingResponseParams{
			EntityKind:       domain.KindTeacher,
			TriggerEvent:     domain.EventGroupOffered,
			ResponseEvents:   groupOfferResponses,
			QualifyingStatus: domain.StatusNoGroupYet,
			Period:           14 * day,
			AlertKind:        domain.AlertTeacherOverdueGroupOffer,
		}),
		StatusSince("student_needs_oral_interview", StatusSinceParams{
			EntityKind: domain.KindStudent,
			Field:      domain.SituationalStatus,
			Status:     domain.StatusNeedsInterview,
			Period:     14 * day,
			AlertKind:  domain.AlertStudentNeedsInterview,
		}),
		DateThreshold("student_no_group_30_days", DateThresholdParams{
			EntityKind: domain.KindStudent,
			Field:      domain.ProjectStatus,
			Status:     domain.StatusNoGroupYet,
			Event:      domain.EventAwaitingOffer,
			Period:     30 * day,
			AlertKind:  domain.AlertStudentNoGroup30Days,
		}),
		PendingResponse("student_overdue_group_offer", PendingResponseParams{
			EntityKind:       domain.KindStudent,
			TriggerEvent:     domain.EventGroupOffered,
			ResponseEvents:   groupOfferResponses,
			QualifyingStatus: domain.StatusNoGroupYet,
			Period:           14 * day,
			AlertKind:        domain.AlertStudentOverdueGroupOffer,
		}),
		PendingResponse("overdue_transfer_request", PendingResponseParams{
			EntityKind:   domain.KindStudent,
			TriggerEvent: domain.EventTransferRequested,
			ResponseEvents: []string{
				domain.EventTransferApproved,
				domain.EventTransferDeclined,
				domain.EventMovedToGroup,
			},
			QualifyingStatus: domain.StatusStudying,
			Period:           14 * day,
			AlertKind:        domain.AlertOverdueTransferRequest,
		}),
		StatusSince("group_pending_overdue", StatusSinceParams{
			EntityKind: domain.KindGroup,
			Field:      domain.ProjectStatus,
			Status:     domain.StatusPending,
			Period:     14 * day,
			AlertKind:  domain.AlertGroupPendingOverdue,
		}),
		StatusSince("group_awaiting_start_overdue", StatusSinceParams{
			EntityKind: domain.KindGroup,
			Field:      domain.ProjectStatus,
			Status:     domain.StatusAwaiting,
			Period:     14 * day,
			AlertKind:  domain.AlertGroupAwaitingStart,
		}),
		DateThreshold("low_student_activity", DateThresholdParams{
			EntityKind: domain.KindGroup,
			Field:      domain.ProjectStatus,
			Status:     domain.StatusWorking,
			Event:      domain.EventLessonLogged,
			Period:     21 * day,
			AlertKind:  domain.AlertLowStudentActivity,
		}),
	}
}
