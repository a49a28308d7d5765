package workflow

import (
	"errors"
	"strings"
	"time"

	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
)

type Transition string

const (
	TransitionStartReview Transition = "start_review"
	TransitionVerify      Transition = "verify"
	TransitionApprove     Transition = "approve"
	TransitionReject      Transition = "reject"
)

// Mode selects the pipeline shape.
type Mode string

const (
	// ModeFull runs the five-state pipeline:
	// pending -> under_review -> verified -> approved/rejected
	ModeFull Mode = "full"
	// ModeSimple runs the degenerate pipeline: pending -> approved/rejected.
	// start_review and verify are disabled.
	ModeSimple Mode = "simple"
)

var (
	ErrForbidden         = errors.New("role is not permitted to perform this transition")
	ErrInvalidTransition = errors.New("transition is not allowed from the current status")
	ErrEmptyReason       = errors.New("rejection requires a non-empty reason")
)

// capabilities is the role × transition permission matrix. It is independent
// of workflow mode; mode only restricts which source states are legal.
var capabilities = map[Transition]map[model.UserRole]bool{
	TransitionStartReview: {model.RoleReviewer: true, model.RoleAdmin: true},
	TransitionVerify:      {model.RoleReviewer: true, model.RoleAdmin: true},
	TransitionApprove:     {model.RoleAdmin: true},
	TransitionReject:      {model.RoleAdmin: true},
}

// targets maps each transition to the status it produces.
var targets = map[Transition]model.SubmissionStatus{
	TransitionStartReview: model.StatusUnderReview,
	TransitionVerify:      model.StatusVerified,
	TransitionApprove:     model.StatusApproved,
	TransitionReject:      model.StatusRejected,
}

// Payload carries the caller-supplied fields a transition may record.
type Payload struct {
	PublicNotes   string // approve
	Reason        string // reject; becomes public notes
	ReviewerNotes string // verify
	InternalNotes string // appended on verify/approve/reject
}

// Patch is the set of fields a transition writes. The engine never mutates
// the submission itself; the caller persists the patch transactionally,
// conditional on the submission still being in Decision.From.
type Patch struct {
	Status        model.SubmissionStatus
	PublicNotes   *string
	ReviewerNotes *string
	InternalNotes *string
	ReviewedBy    *uint
	ReviewedAt    *time.Time
}

// Updates renders the patch as a gorm update map.
func (p Patch) Updates() map[string]interface{} {
	updates := map[string]interface{}{"status": p.Status}
	if p.PublicNotes != nil {
		updates["public_notes"] = *p.PublicNotes
	}
	if p.ReviewerNotes != nil {
		updates["reviewer_notes"] = *p.ReviewerNotes
	}
	if p.InternalNotes != nil {
		updates["internal_notes"] = *p.InternalNotes
	}
	if p.ReviewedBy != nil {
		updates["reviewed_by"] = *p.ReviewedBy
	}
	if p.ReviewedAt != nil {
		updates["reviewed_at"] = *p.ReviewedAt
	}
	return updates
}

// Decision is the engine's verdict on a requested transition.
type Decision struct {
	From  model.SubmissionStatus
	To    model.SubmissionStatus
	NoOp  bool // already in the target state: succeed without writing or auditing
	Patch Patch
}

// Engine decides whether a transition is legal and what fields it writes.
// It holds no I/O and no mutable state, so it is safe for concurrent use.
type Engine struct {
	mode        Mode
	allowedFrom map[Transition][]model.SubmissionStatus
}

func NewEngine(mode Mode) *Engine {
	e := &Engine{mode: mode}
	switch mode {
	case ModeSimple:
		e.allowedFrom = map[Transition][]model.SubmissionStatus{
			TransitionStartReview: nil, // disabled
			TransitionVerify:      nil, // disabled
			TransitionApprove:     {model.StatusPending},
			TransitionReject:      {model.StatusPending},
		}
	default:
		e.allowedFrom = map[Transition][]model.SubmissionStatus{
			TransitionStartReview: {model.StatusPending},
			TransitionVerify:      {model.StatusUnderReview},
			TransitionApprove:     {model.StatusVerified, model.StatusUnderReview},
			TransitionReject:      {model.StatusVerified, model.StatusUnderReview},
		}
	}
	return e
}

// Mode returns the configured pipeline shape.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Decide evaluates a requested transition against the current submission.
// Checks run in a fixed order: role capability, payload validation,
// idempotent-retry detection, then source-state legality.
func (e *Engine) Decide(sub *model.Submission, transition Transition, role model.UserRole, actorID uint, payload Payload, now time.Time) (*Decision, error) {
	allowed, known := capabilities[transition]
	if !known {
		return nil, ErrInvalidTransition
	}
	if !allowed[role] {
		return nil, ErrForbidden
	}

	if transition == TransitionReject && strings.TrimSpace(payload.Reason) == "" {
		return nil, ErrEmptyReason
	}

	target := targets[transition]

	// Retrying a transition whose effect already happened is a no-op success,
	// not an error. The caller must not write a second audit entry.
	if sub.Status == target {
		return &Decision{From: sub.Status, To: target, NoOp: true}, nil
	}

	if !e.legalFrom(transition, sub.Status) {
		return nil, ErrInvalidTransition
	}

	decision := &Decision{
		From:  sub.Status,
		To:    target,
		Patch: Patch{Status: target},
	}

	switch transition {
	case TransitionStartReview:
		// status change only
	case TransitionVerify:
		decision.Patch.ReviewerNotes = &payload.ReviewerNotes
		decision.Patch.InternalNotes = appendNotes(sub.InternalNotes, payload.InternalNotes)
	case TransitionApprove:
		decision.Patch.PublicNotes = &payload.PublicNotes
		decision.Patch.InternalNotes = appendNotes(sub.InternalNotes, payload.InternalNotes)
		decision.Patch.ReviewedBy = &actorID
		decision.Patch.ReviewedAt = &now
	case TransitionReject:
		reason := strings.TrimSpace(payload.Reason)
		decision.Patch.PublicNotes = &reason
		decision.Patch.InternalNotes = appendNotes(sub.InternalNotes, payload.InternalNotes)
		decision.Patch.ReviewedBy = &actorID
		decision.Patch.ReviewedAt = &now
	}

	return decision, nil
}

func (e *Engine) legalFrom(transition Transition, status model.SubmissionStatus) bool {
	for _, s := range e.allowedFrom[transition] {
		if s == status {
			return true
		}
	}
	return false
}

// appendNotes appends an internal note to the existing trail. Returns nil
// when there is nothing to add, so the column is left untouched.
func appendNotes(existing, addition string) *string {
	addition = strings.TrimSpace(addition)
	if addition == "" {
		return nil
	}
	combined := addition
	if existing != "" {
		combined = existing + "\n" + addition
	}
	return &combined
}
