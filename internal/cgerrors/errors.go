// Package cgerrors defines the sentinel error kinds shared across
// CloudGather's core subsystems (spec section 7). Callers classify with
// errors.Is; workers wrap these with context via fmt.Errorf("...: %w", ...).
package cgerrors

import "errors"

var (
	// ErrInvalidTask is returned by the task store when an upsert would
	// produce a structurally invalid record. Partial writes are never
	// attempted — an upsert either fully replaces a record or fails.
	ErrInvalidTask = errors.New("cloudgather: invalid task")

	// ErrInvalidCron is returned by the cron evaluator on a syntax error.
	ErrInvalidCron = errors.New("cloudgather: invalid cron expression")

	// ErrSourceMissing is fatal at run start: the task's source root does
	// not exist or is not a directory.
	ErrSourceMissing = errors.New("cloudgather: source path missing")

	// ErrTargetUnwritable is fatal at run start: the task's target root
	// cannot be created or written to.
	ErrTargetUnwritable = errors.New("cloudgather: target path unwritable")

	// ErrCopyFailed marks a single file's copy as exhausted after retries.
	// It never ends a run by itself — it is counted into stats.
	ErrCopyFailed = errors.New("cloudgather: file copy failed")

	// ErrAuth is surfaced by the OpenList client after a re-login attempt
	// also fails with 401.
	ErrAuth = errors.New("cloudgather: openlist authentication failed")

	// ErrRemote covers non-auth OpenList API failures (4xx/5xx other than
	// 401, or malformed responses).
	ErrRemote = errors.New("cloudgather: openlist request failed")

	// ErrProtectionTripped is returned by the STRM anti-mass-delete guard
	// when a scan would remove more leaves than the configured threshold
	// allows. It only skips the deletion phase; it never ends a run.
	ErrProtectionTripped = errors.New("cloudgather: mass-delete protection tripped")

	// ErrCancelled is returned when a run observes the shared cancellation
	// signal and stops before completing discovery or in-flight work.
	ErrCancelled = errors.New("cloudgather: run cancelled")

	// ErrTaskBusy is returned by the scheduler core when a task is already
	// running or already sitting in the admission queue (spec section 4.7,
	// 5: "no task may appear twice in the admission queue simultaneously").
	ErrTaskBusy = errors.New("cloudgather: task already running or queued")

	// ErrTaskNotFound is returned when an operation names a task id the
	// store does not have.
	ErrTaskNotFound = errors.New("cloudgather: task not found")
)
