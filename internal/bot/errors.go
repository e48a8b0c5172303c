package bot

import (
	"errors"

	"ferrybook/internal/domain"
)

const genericErrorMessage = "Something went wrong while handling the command. Please try again later."

func errorMessage(err error) string {
	var verr domain.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return "Invalid input: " + verr.Error()
	case domain.IsForbidden(err):
		return "You are not allowed to do that."
	case domain.IsNotFound(err):
		return "Not found, or outside your routes."
	case errors.Is(err, domain.ErrAlreadyCheckedIn):
		return "This ticket is already checked in."
	case errors.Is(err, domain.ErrTicketNotActive):
		return "This ticket cannot board: " + err.Error()
	case errors.Is(err, domain.ErrLockHeld):
		return "A sweep is already running. Try again in a moment."
	case domain.IsConflict(err):
		return "Rejected: " + err.Error()
	}
	return genericErrorMessage
}
