package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AnomalyPolicy tunes the detector. NetDeltaThresholdPct is the percent
// change against a person's previous posted net pay that flags a line.
type AnomalyPolicy struct {
	NetDeltaThresholdPct decimal.Decimal
}

// DetectAnomalies runs the advisory checks for one line. previousNet is the
// person's net pay from the most recent posted run, nil when there is none;
// the large-delta check only fires when a non-zero history exists. Excluded
// lines never produce anomalies.
func DetectAnomalies(policy AnomalyPolicy, line Line, previousNet *decimal.Decimal) []Anomaly {
	if !line.IsIncluded {
		return nil
	}
	var out []Anomaly
	flag := func(kind, message string) {
		out = append(out, Anomaly{Type: kind, Message: message, PersonID: line.PersonID, FullName: line.FullName})
	}

	if line.PayRate.IsZero() {
		flag(AnomalyMissingRate, fmt.Sprintf("%s has a zero pay rate", line.FullName))
	}
	if line.NetPay.IsNegative() {
		flag(AnomalyNegativeNet, fmt.Sprintf("%s has negative net pay %s", line.FullName, line.NetPay.StringFixed(2)))
	}
	if line.GrossPay.IsPositive() && line.BasePay.IsZero() && len(line.Earnings) == 0 {
		flag(AnomalyZeroHoursPaid, fmt.Sprintf("%s is paid %s with no base pay or earnings", line.FullName, line.GrossPay.StringFixed(2)))
	}
	if previousNet != nil && !previousNet.IsZero() {
		deltaPct := line.NetPay.Sub(*previousNet).Div(previousNet.Abs()).Mul(hundred).Abs()
		if deltaPct.GreaterThan(policy.NetDeltaThresholdPct) {
			flag(AnomalyLargeDelta, fmt.Sprintf("%s net pay moved %s%% against the last posted run (%s to %s)",
				line.FullName, deltaPct.Round(1).String(), previousNet.StringFixed(2), line.NetPay.StringFixed(2)))
		}
	}
	return out
}
