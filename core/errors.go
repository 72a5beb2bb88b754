package core

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput          = "SPINE_BAD_INPUT"
	ErrorNotFound          = "SPINE_NOT_FOUND"
	ErrorEventConflict     = "SPINE_EVENT_CONFLICT"
	ErrorEventDuplicate    = "SPINE_EVENT_DUPLICATE"
	ErrorStoreUnavailable  = "SPINE_STORE_UNAVAILABLE"
	ErrorExecutionFailed   = "SPINE_EXECUTION_FAILED"
	ErrorRetriesExhausted  = "SPINE_RETRIES_EXHAUSTED"
	ErrorIllegalTransition = "SPINE_ILLEGAL_TRANSITION"
	ErrorInternal          = "SPINE_INTERNAL_ERROR"
)

func NewValidationError(field string, message string) error {
	return goerrors.NewValidation("validation failed: "+message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func NewNotFoundError(kind string, id string) error {
	return goerrors.New(fmt.Sprintf("%s %q not found", kind, id), goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorNotFound)
}

// NewDuplicateEventError marks an insert rejected by the unique constraint on
// events.event_id.
func NewDuplicateEventError(eventID string, cause error) error {
	err := goerrors.New(fmt.Sprintf("event %q already exists", eventID), goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode(ErrorEventDuplicate)
	if cause != nil {
		err = err.WithMetadata(map[string]any{"cause": cause.Error()})
	}
	return err
}

func NewConflictError(eventID string) error {
	return goerrors.New(conflictMessage(eventID), goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode(ErrorEventConflict).
		WithMetadata(map[string]any{"event_id": eventID})
}

// NewStoreUnavailableError wraps a persistence failure. It must propagate to
// the caller and never be recorded as a processing failure.
func NewStoreUnavailableError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryExternal, "store unavailable: "+operation).
		WithCode(http.StatusServiceUnavailable).
		WithTextCode(ErrorStoreUnavailable)
}

func NewExecutionError(eventID string, err error) error {
	if err == nil {
		err = errors.New("downstream call failed")
	}
	return goerrors.Wrap(err, goerrors.CategoryExternal, fmt.Sprintf("execution failed for event %q", eventID)).
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorExecutionFailed)
}

func NewExhaustedError(eventID string, attempts int) error {
	return goerrors.New(
		fmt.Sprintf("event %q exhausted %d attempts", eventID, attempts),
		goerrors.CategoryOperation,
	).
		WithTextCode(ErrorRetriesExhausted).
		WithMetadata(map[string]any{"event_id": eventID, "attempts": attempts})
}

// NewTransitionError rejects a ledger move the state machine does not allow.
func NewTransitionError(eventID string, from Status, to Status) error {
	return goerrors.New(
		fmt.Sprintf("event %q cannot move from %q to %q", eventID, from, to),
		goerrors.CategoryConflict,
	).
		WithCode(http.StatusConflict).
		WithTextCode(ErrorIllegalTransition).
		WithMetadata(map[string]any{"event_id": eventID, "from": string(from), "to": string(to)})
}

// CheckTransition returns a transition error unless from may move to to.
func CheckTransition(eventID string, from Status, to Status) error {
	if from.CanTransition(to) {
		return nil
	}
	return NewTransitionError(eventID, from, to)
}

func IsTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}

func IsDuplicateEvent(err error) bool { return IsTextCode(err, ErrorEventDuplicate) }

func IsNotFound(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	return IsTextCode(err, ErrorNotFound)
}

func IsStoreUnavailable(err error) bool { return IsTextCode(err, ErrorStoreUnavailable) }

// MapError converts any error into a go-errors envelope with an HTTP status.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureErrorEnvelope(rich)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryNotFound).WithTextCode(ErrorNotFound))
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "bad connection"), strings.Contains(msg, "database is closed"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryExternal).WithTextCode(ErrorStoreUnavailable))
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryBadInput).WithTextCode(ErrorBadInput))
	}

	return ensureErrorEnvelope(goerrors.MapToError(err, goerrors.DefaultErrorMappers()))
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryConflict:
		return ErrorEventConflict
	case goerrors.CategoryExternal:
		return ErrorStoreUnavailable
	default:
		return ErrorInternal
	}
}

func httpStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func conflictMessage(eventID string) string {
	return fmt.Sprintf("Event %s already exists with different payload", eventID)
}
