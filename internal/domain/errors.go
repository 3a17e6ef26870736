package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in storage
	ErrJobNotFound = errors.New("job not found")

	// ErrRunNotFound is returned when a run cannot be found in storage
	ErrRunNotFound = errors.New("run not found")

	// ErrPresetNotFound is returned when a referenced brand preset does not exist
	ErrPresetNotFound = errors.New("brand preset not found")

	// ErrActiveRunExists is returned when a new run is requested while the job
	// still has a non-terminal run in flight
	ErrActiveRunExists = errors.New("job already has an active run")

	// ErrJobNotRerunnable is returned when a new run is requested for a job
	// whose status does not allow another attempt
	ErrJobNotRerunnable = errors.New("job status does not allow a new run")
)
