package notifications

const (
	TypeRunCalculated = "run_calculated"
	TypeRunAnomalies  = "run_anomalies"
	TypeRunApproved   = "run_approved"
	TypeRunPosted     = "run_posted"
	TypeRunVoided     = "run_voided"
)
