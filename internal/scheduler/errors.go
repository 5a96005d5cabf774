package scheduler

import "errors"

// ErrUnknownJob is returned by RunByName for a job that was never registered.
var ErrUnknownJob = errors.New("unknown job")
