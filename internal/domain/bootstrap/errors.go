package bootstrap

import "errors"

var (
	// ErrUsage marks a missing or malformed invocation argument.
	ErrUsage = errors.New("usage error")
	// ErrAcquisition marks a failure to obtain the dataset.
	ErrAcquisition = errors.New("dataset acquisition failed")
	// ErrWrite marks a failure to create or write the destination or the configuration record.
	ErrWrite = errors.New("write failed")
	// ErrIllegalTransition is returned by Tracker for transitions outside the stage graph.
	ErrIllegalTransition = errors.New("illegal stage transition")
)
