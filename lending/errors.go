/*
errors.go - Centralized error types for the lending engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failure the engine can report is a typed result; none of them is
  fatal to the process.

ERROR CATEGORIES:
  1. Availability - no free unit, quota, duplicate holding, consulting
  2. Lifecycle    - renewal limit/window, overdue, record already closed
  3. Catalog      - resource in use, resource exists, ambiguous lookup
  4. Registry     - patron has holdings, patron exists, not a member
  5. Input        - malformed dates, quantities, IDs
  6. Persistence  - snapshot missing, corrupt, or not writable

USAGE:
  Callers match with errors.Is on the sentinels, or errors.As on the
  structured types when they need the context:

    var avail *lending.AvailabilityError
    if errors.As(err, &avail) {
        fmt.Printf("%s has no free unit for %s\n", avail.ResourceID, avail.Purpose)
    }
*/
package lending

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoCopyAvailable is returned when no unit of the resource is free for
	// the requested purpose (including magazines requested for loan).
	ErrNoCopyAvailable = errors.New("no copy available")

	// ErrQuotaExceeded is returned when a member already holds the maximum
	// number of open loans.
	ErrQuotaExceeded = errors.New("loan quota exceeded")

	// ErrDuplicateHolding is returned when a member already has an open loan
	// on the same resource.
	ErrDuplicateHolding = errors.New("resource already held by this member")

	// ErrAlreadyConsulting is returned when a patron opens a second
	// consultation while one is still open.
	ErrAlreadyConsulting = errors.New("patron already has an open consultation")

	// ErrResourceInUse blocks removal of a resource or copy that is busy.
	ErrResourceInUse = errors.New("resource in use")

	// ErrPatronHasActiveHoldings blocks deletion of a patron with open
	// loans or an open consultation.
	ErrPatronHasActiveHoldings = errors.New("patron has active holdings")

	// ErrRenewalLimitReached is returned on a renewal past the limit.
	ErrRenewalLimitReached = errors.New("renewal limit reached")

	// ErrRenewalWindowNotOpen is returned when the due date is still too far
	// away for a renewal.
	ErrRenewalWindowNotOpen = errors.New("renewal window not open")

	// ErrLoanOverdue blocks renewal of a loan whose due date has passed.
	ErrLoanOverdue = errors.New("loan overdue")

	// ErrLoanClosed is returned when renewing or returning a record that has
	// already been closed.
	ErrLoanClosed = errors.New("record already closed")

	// ErrNotFound is returned for lookup misses.
	ErrNotFound = errors.New("not found")

	// ErrAmbiguous is returned when a unique lookup matches several records.
	ErrAmbiguous = errors.New("ambiguous match")

	// ErrInvalidInput is returned for malformed dates, quantities and IDs.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotMember is returned when a casual user attempts a loan.
	ErrNotMember = errors.New("loans are reserved to members")

	// ErrResourceExists is returned when a resource with the same natural
	// key is already in the catalog.
	ErrResourceExists = errors.New("resource already exists")

	// ErrPatronExists is returned when the national ID is already registered
	// as a member or a casual user.
	ErrPatronExists = errors.New("patron already registered")

	// ErrSnapshotNotFound is returned by a Gateway with nothing saved yet.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrCorruptSnapshot is returned when a stored snapshot cannot be decoded
	// or fails the consistency check.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrPersist wraps a Gateway failure on save. The mutation that triggered
	// it has been rolled back in memory.
	ErrPersist = errors.New("persist snapshot")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AvailabilityError explains why no unit could be picked.
type AvailabilityError struct {
	ResourceID string
	Kind       Kind
	Purpose    Purpose
	Reason     string
}

func (e *AvailabilityError) Error() string {
	return fmt.Sprintf("no %s available for %s %s: %s", e.Purpose, e.Kind, e.ResourceID, e.Reason)
}

func (e *AvailabilityError) Unwrap() error { return ErrNoCopyAvailable }

// QuotaError reports a member at the open-loan limit.
type QuotaError struct {
	NationalID string
	Open       int
	Limit      int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("member %s holds %d of %d loans", e.NationalID, e.Open, e.Limit)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// RenewalError carries the loan state that blocked a renewal. Cause is one
// of ErrRenewalLimitReached, ErrRenewalWindowNotOpen or ErrLoanOverdue.
type RenewalError struct {
	LoanID       string
	DueDate      Date
	Today        Date
	RenewalCount int
	Cause        error
}

func (e *RenewalError) Error() string {
	return fmt.Sprintf("cannot renew %s (due %s, today %s, renewals %d): %v",
		e.LoanID, e.DueDate, e.Today, e.RenewalCount, e.Cause)
}

func (e *RenewalError) Unwrap() error { return e.Cause }

// NotFoundError names the missing record.
type NotFoundError struct {
	What string // "resource", "patron", "member", "loan", "consultation", "copy"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.What, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InputError describes a rejected value.
type InputError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// ExistsError is returned when an add collides with an existing record.
type ExistsError struct {
	ExistingID string
	Cause      error // ErrResourceExists or ErrPatronExists
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("%v: %s", e.Cause, e.ExistingID)
}

func (e *ExistsError) Unwrap() error { return e.Cause }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error is a state conflict: the request
// was well-formed but the current holdings forbid it.
func IsConflict(err error) bool {
	return errors.Is(err, ErrNoCopyAvailable) ||
		errors.Is(err, ErrDuplicateHolding) ||
		errors.Is(err, ErrAlreadyConsulting) ||
		errors.Is(err, ErrResourceInUse) ||
		errors.Is(err, ErrPatronHasActiveHoldings) ||
		errors.Is(err, ErrResourceExists) ||
		errors.Is(err, ErrPatronExists) ||
		errors.Is(err, ErrLoanClosed)
}

// IsRuleViolation returns true if a lending rule (quota, renewal policy,
// membership) refused the operation.
func IsRuleViolation(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrRenewalLimitReached) ||
		errors.Is(err, ErrRenewalWindowNotOpen) ||
		errors.Is(err, ErrLoanOverdue) ||
		errors.Is(err, ErrNotMember)
}

// IsClientError returns true if the caller can fix the request.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrAmbiguous) ||
		IsNotFound(err) ||
		IsConflict(err) ||
		IsRuleViolation(err)
}
