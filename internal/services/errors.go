package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/groupcall/internal/models"
	"github.com/preetsinghmakkar/groupcall/internal/repositories"
)

// NotFoundError reports an unknown session, participant or user.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

// TerminalStateError reports a mutation attempted on a completed session.
type TerminalStateError struct {
	SessionID uuid.UUID
	Status    models.SessionStatus
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("session %s is %s", e.SessionID, e.Status)
}

// InvalidTransitionError reports a lifecycle move the state machine forbids,
// such as ending a session that never went LIVE.
type InvalidTransitionError struct {
	SessionID uuid.UUID
	From      models.SessionStatus
	To        models.SessionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("session %s cannot move from %s to %s", e.SessionID, e.From, e.To)
}

// ValidationError reports bad input or a rule violation such as a code collision.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ForbiddenError reports an identity lacking the privilege for an operation.
type ForbiddenError struct {
	Actor  string
	Action string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s is not allowed to %s", e.Actor, e.Action)
}

func sessionNotFound(id uuid.UUID) error {
	return &NotFoundError{Resource: "session", Key: id.String()}
}

func terminal(session *models.Session) error {
	return &TerminalStateError{SessionID: session.ID, Status: session.Status}
}

// advance checks that session may move to next.
func advance(session *models.Session, next models.SessionStatus) error {
	if session.Status.IsTerminal() {
		return terminal(session)
	}
	if !session.Status.CanAdvanceTo(next) {
		return &InvalidTransitionError{SessionID: session.ID, From: session.Status, To: next}
	}
	return nil
}

// loadErr maps store sentinels onto the service taxonomy.
func loadErr(id uuid.UUID, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return sessionNotFound(id)
	}
	return fmt.Errorf("load session %s: %w", id, err)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsTerminalState(err error) bool {
	var target *TerminalStateError
	return errors.As(err, &target)
}

func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsForbidden(err error) bool {
	var target *ForbiddenError
	return errors.As(err, &target)
}
