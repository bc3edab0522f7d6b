package models

// DailyCount is one row of a per-day series, Date formatted as 2006-01-02.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type Analytics struct {
	StatusCounts           map[SessionStatus]int `json:"statusCounts"`
	SessionTrends          []DailyCount          `json:"sessionTrends"`
	AverageDurationMinutes float64               `json:"averageDurationMinutes"`
}
