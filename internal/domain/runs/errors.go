package runs

import "errors"

var (
	// ErrNotFound indicates no run exists for the tenant/id pair.
	ErrNotFound = errors.New("run not found")

	// ErrInvalidInput indicates a malformed request (empty ticket id, empty
	// text, oversized text). Not retryable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTicketFetch indicates the ticket source call failed. The run ends
	// failed; a retry is a caller decision, not the core's.
	ErrTicketFetch = errors.New("ticket fetch failed")

	// ErrNotReviewable indicates approve was called outside ready_for_review.
	ErrNotReviewable = errors.New("run is not ready for review")

	// ErrNotCancellable indicates cancel was called from a terminal status.
	ErrNotCancellable = errors.New("run cannot be cancelled")

	// ErrExportFailed indicates the tracker issue creation failed. The run
	// stays ready_for_review; approve may be retried safely.
	ErrExportFailed = errors.New("export failed")

	// ErrStateConflict indicates a compare-and-set update lost to a
	// concurrent transition.
	ErrStateConflict = errors.New("run state changed concurrently")
)

// Retryable reports whether the caller may safely retry the same operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrExportFailed) || errors.Is(err, ErrStateConflict)
}
