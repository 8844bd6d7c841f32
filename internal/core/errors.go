package core

import "errors"

var (
	// ErrConfig marks invalid configuration detected before any external call.
	ErrConfig = errors.New("invalid configuration")
	// ErrNoSeed means neither an explicit seed nor a current song was available.
	ErrNoSeed = errors.New("no seed track available")
	// ErrNotFound is a soft sink failure: the file is missing or not addressable.
	ErrNotFound = errors.New("file not found")
	// ErrTransient marks similarity failures worth retrying.
	ErrTransient = errors.New("transient service error")
	// ErrSimilarityExhausted means the retry budget for one similarity request ran out.
	ErrSimilarityExhausted = errors.New("similarity service retries exhausted")
	// ErrBusy is returned when a walk is already running.
	ErrBusy = errors.New("a walk is already in progress")
)
