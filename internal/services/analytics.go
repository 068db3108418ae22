package services

import (
	"fmt"
	"strings"

	"step-tracker/internal/daykey"
	"step-tracker/internal/storage"
	"step-tracker/internal/utils"
)

const weekLength = 7

type TodayStats struct {
	Date       daykey.Key `json:"date"`
	Steps      int        `json:"steps"`
	Goal       int        `json:"goal"`
	Progress   float64    `json:"progress"`
	DistanceKm float64    `json:"distanceKm"`
	GoalMet    bool       `json:"goalMet"`
	State      string     `json:"state"`
}

type WeeklyStats struct {
	StartDate   daykey.Key      `json:"startDate"`
	EndDate     daykey.Key      `json:"endDate"`
	Days        []storage.Entry `json:"days"`
	Total       int             `json:"total"`
	Average     int             `json:"average"`
	Best        storage.Entry   `json:"best"`
	DaysGoalMet int             `json:"daysGoalMet"`
	Streak      int             `json:"streak"`
	DistanceKm  float64         `json:"distanceKm"`
	Insights    string          `json:"insights"`
}

type AnalyticsService struct {
	source           StepSource
	resolver         *daykey.Resolver
	stepLengthMeters float64
}

func NewAnalyticsService(source StepSource, resolver *daykey.Resolver, stepLengthMeters float64) *AnalyticsService {
	return &AnalyticsService{
		source:           source,
		resolver:         resolver,
		stepLengthMeters: stepLengthMeters,
	}
}

func (as *AnalyticsService) Today() TodayStats {
	cur := as.source.Current()
	return TodayStats{
		Date:       cur.Day,
		Steps:      cur.Steps,
		Goal:       cur.Goal,
		Progress:   utils.Progress(cur.Steps, cur.Goal),
		DistanceKm: utils.DistanceKm(cur.Steps, as.stepLengthMeters),
		GoalMet:    cur.Goal > 0 && cur.Steps >= cur.Goal,
		State:      cur.State.String(),
	}
}

// History returns the stored days, most recent first.
func (as *AnalyticsService) History() []storage.Entry {
	return as.source.History()
}

// Weekly summarizes the seven days ending with the current day. Days with
// no entry count as zero.
func (as *AnalyticsService) Weekly() (*WeeklyStats, error) {
	cur := as.source.Current()
	steps := make(map[daykey.Key]int)
	for _, e := range as.source.History() {
		steps[e.Date] = e.Steps
	}
	// The live total may be ahead of what a failed write left in history.
	steps[cur.Day] = cur.Steps

	start, err := as.resolver.AddDays(cur.Day, -(weekLength - 1))
	if err != nil {
		return nil, err
	}

	stats := &WeeklyStats{StartDate: start, EndDate: cur.Day}
	for i := 0; i < weekLength; i++ {
		day, err := as.resolver.AddDays(start, i)
		if err != nil {
			return nil, err
		}
		e := storage.Entry{Date: day, Steps: steps[day]}
		stats.Days = append(stats.Days, e)
		stats.Total += e.Steps
		if e.Steps > stats.Best.Steps || stats.Best.Date == "" {
			stats.Best = e
		}
		if cur.Goal > 0 && e.Steps >= cur.Goal {
			stats.DaysGoalMet++
		}
	}
	stats.Average = stats.Total / weekLength
	stats.DistanceKm = utils.DistanceKm(stats.Total, as.stepLengthMeters)

	stats.Streak, err = as.streak(steps, cur.Day, cur.Goal)
	if err != nil {
		return nil, err
	}
	stats.Insights = as.generateInsights(stats, cur.Goal)
	return stats, nil
}

// streak counts consecutive days meeting goal, ending today when today is
// already met and yesterday otherwise.
func (as *AnalyticsService) streak(steps map[daykey.Key]int, today daykey.Key, goal int) (int, error) {
	if goal <= 0 {
		return 0, nil
	}
	day := today
	if steps[today] < goal {
		var err error
		if day, err = as.resolver.AddDays(today, -1); err != nil {
			return 0, err
		}
	}

	n := 0
	for steps[day] >= goal {
		n++
		prev, err := as.resolver.AddDays(day, -1)
		if err != nil {
			return 0, err
		}
		day = prev
	}
	return n, nil
}

func (as *AnalyticsService) generateInsights(stats *WeeklyStats, goal int) string {
	var insights []string

	rate := float64(stats.DaysGoalMet) / weekLength * 100
	if rate < 30 {
		insights = append(insights, "💪 Most days fell short of the goal, try a short walk after lunch")
	} else if rate > 80 {
		insights = append(insights, "🎯 Great week! Keep pushing your limits")
	} else {
		insights = append(insights, "📈 Good progress, there is room to grow")
	}

	if stats.Streak >= 3 {
		insights = append(insights, fmt.Sprintf("🔥 %d days in a row at goal", stats.Streak))
	}

	if goal > 0 && stats.Average < goal/2 {
		insights = append(insights, fmt.Sprintf("⚠️ Daily average %d is under half of the goal", stats.Average))
	}

	if stats.Total == 0 {
		return "📊 Not enough data yet. Keep walking!"
	}

	return strings.Join(insights, "\n")
}
