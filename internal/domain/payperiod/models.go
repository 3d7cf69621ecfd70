package payperiod

import "time"

type Schedule struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Frequency         string    `json:"frequency"`
	AnchorDate        time.Time `json:"anchorDate"`
	PayDateOffsetDays int       `json:"payDateOffsetDays"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Period is immutable once generated. Runs reference it by id and read only
// the date fields.
type Period struct {
	ID           string    `json:"id"`
	ScheduleID   string    `json:"scheduleId"`
	PeriodNumber int       `json:"periodNumber"`
	Year         int       `json:"year"`
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
	PayDate      time.Time `json:"payDate"`
	CreatedAt    time.Time `json:"createdAt"`
}

const (
	FrequencyWeekly      = "weekly"
	FrequencyBiweekly    = "biweekly"
	FrequencySemimonthly = "semimonthly"
	FrequencyMonthly     = "monthly"
)

func ValidFrequency(freq string) bool {
	switch freq {
	case FrequencyWeekly, FrequencyBiweekly, FrequencySemimonthly, FrequencyMonthly:
		return true
	}
	return false
}
