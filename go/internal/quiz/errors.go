package quiz

import "errors"

var (
	// ErrInvalidDuration is returned for non-numeric, non-positive, or
	// empty duration input.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrMissingDestination is returned when a setup request carries no
	// usable destination.
	ErrMissingDestination = errors.New("missing destination")

	// ErrUnknownQuizType is returned when the requested quiz type is empty
	// or not in the catalog.
	ErrUnknownQuizType = errors.New("unknown quiz type")

	// ErrMissingParticipant is returned when a submission has no
	// participant identifier.
	ErrMissingParticipant = errors.New("missing participant id")

	// ErrContentUnavailable is returned when the quiz engine cannot
	// produce content for a setup request.
	ErrContentUnavailable = errors.New("quiz content unavailable")

	// ErrNotifierUnavailable is returned when the session announcement
	// cannot be delivered; the partially created session is rolled back.
	ErrNotifierUnavailable = errors.New("notifier unavailable")
)
