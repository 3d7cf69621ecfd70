package payroll

const (
	StatusDraft       = "draft"
	StatusCalculating = "calculating"
	StatusCalculated  = "calculated"
	StatusReviewing   = "reviewing"
	StatusApproved    = "approved"
	StatusPosted      = "posted"
	StatusPaid        = "paid"
	StatusVoid        = "void"

	RunTypeRegular    = "regular"
	RunTypeBonus      = "bonus"
	RunTypeOffcycle   = "offcycle"
	RunTypeCorrection = "correction"

	AnomalyMissingRate   = "missing-rate"
	AnomalyLargeDelta    = "large-delta"
	AnomalyNegativeNet   = "negative-net"
	AnomalyZeroHoursPaid = "zero-hours-paid"

	ExcludeReasonNoProfile = "no active compensation profile covers the period"
	ExcludeReasonNoTaxData = "jurisdiction tax rules unavailable"
)

func ValidRunType(runType string) bool {
	switch runType {
	case RunTypeRegular, RunTypeBonus, RunTypeOffcycle, RunTypeCorrection:
		return true
	}
	return false
}
