package domain

import "errors"

var (
	// ErrSourceUnreachable means the report feed cannot be reached at all.
	// It aborts an aggregation run.
	ErrSourceUnreachable = errors.New("report source unreachable")

	// ErrDateUnavailable means no report exists for a single date.
	ErrDateUnavailable = errors.New("report unavailable for date")

	// ErrUnknownSchema means a report has none of the known column layouts.
	ErrUnknownSchema = errors.New("unknown report schema")

	// ErrMissingPopulation means a US entity has no population figure, so its
	// normalized series cannot be derived.
	ErrMissingPopulation = errors.New("missing population entry")

	// ErrDailyPolicyRequired is returned when an aggregation is requested
	// without an explicit negative-daily policy.
	ErrDailyPolicyRequired = errors.New("daily policy is required")

	// ErrEmptyAxis means no report dates were available in the requested range.
	ErrEmptyAxis = errors.New("no report dates available")
)
