package payroll

import "errors"

var (
	ErrRunNotFound             = errors.New("payroll run not found")
	ErrLineNotFound            = errors.New("payroll line not found")
	ErrInvalidRunType          = errors.New("invalid run type")
	ErrDuplicateRun            = errors.New("a run with this type and number already exists for the period")
	ErrInvalidTransition       = errors.New("transition not allowed from current status")
	ErrCalculationInProgress   = errors.New("a calculation for this run is already in progress")
	ErrAnomaliesUnacknowledged = errors.New("run has anomalies that must be acknowledged before approval")
	ErrPeriodAlreadyPosted     = errors.New("another run for this period has already been posted")
	ErrRunNotPosted            = errors.New("payroll run has not been posted")
)
