package handlers

import (
	"fmt"
	"strings"

	"storefront/internal/models"
)

type unknownStatusError struct {
	status string
}

func (e unknownStatusError) Error() string {
	return fmt.Sprintf("unknown status %q (expected one of %s)", e.status, strings.Join(models.ReservationStatuses, ", "))
}

type invalidTransitionError struct {
	from, to string
}

func (e invalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move reservation from %s to %s", e.from, e.to)
}

func isKnownStatus(status string) bool {
	for _, s := range models.ReservationStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// nextStatus returns the state that follows current in the workflow.
func nextStatus(current string) (string, bool) {
	for i, s := range models.ReservationStatuses {
		if s == current && i+1 < len(models.ReservationStatuses) {
			return models.ReservationStatuses[i+1], true
		}
	}
	return "", false
}

// checkTransition validates current -> next. Strict mode allows only the
// following state; lenient mode allows any known state. Setting the current
// state again is a no-op in both modes.
func checkTransition(current, next string, strict bool) (noop bool, err error) {
	if !isKnownStatus(next) {
		return false, unknownStatusError{status: next}
	}
	if current == next {
		return true, nil
	}
	if !strict {
		return false, nil
	}
	if following, ok := nextStatus(current); ok && following == next {
		return false, nil
	}
	return false, invalidTransitionError{from: current, to: next}
}

func normalizeStatus(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
