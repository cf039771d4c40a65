package config

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// PeriodType is the granularity a job summarizes.
type PeriodType string

const (
	PeriodMonth PeriodType = "month"
	PeriodWeek  PeriodType = "week"
)

var weeklyJobName = regexp.MustCompile(`(?i)week`)

// Job is the active job and period of one run. Exactly one of Month and
// Week is set.
type Job struct {
	Name         string
	Year         int
	Month        int
	Week         int
	HistoryDepth int
	SummaryDepth int
}

// JobArgs are the positional job arguments before defaults are applied.
// Zero values mean "not given".
type JobArgs struct {
	Name    string
	Year    int
	Period  int
	History int
	Summary int
}

// NewJob validates args and fills in the current year, the current period
// and the default depths. A period of 13 to 53 is always a week; 1 to 12 is
// a week only when the job name mentions "week".
func NewJob(args JobArgs, now time.Time) (Job, error) {
	if args.Name == "" {
		return Job{}, errors.New("job is required")
	}

	weekly := weeklyJobName.MatchString(args.Name)

	year := args.Year
	if year == 0 {
		year = now.Year()
	}
	if year < 1900 || year > 2100 {
		return Job{}, fmt.Errorf("year must be between 1900 and 2100, got %d", year)
	}

	period := args.Period
	if period == 0 {
		if weekly {
			period = CurrentWeek(now)
		} else {
			period = int(now.Month())
		}
	}
	if period < 0 {
		return Job{}, fmt.Errorf("period must be a positive number, got %d", period)
	}
	if period > 53 {
		return Job{}, fmt.Errorf("period must be between 1-12 for months or 1-53 for weeks, got %d", period)
	}
	if args.History < 0 {
		return Job{}, fmt.Errorf("history periods must be a positive number, got %d", args.History)
	}
	if args.Summary < 0 {
		return Job{}, fmt.Errorf("summary periods must be a positive number, got %d", args.Summary)
	}

	job := Job{Name: args.Name, Year: year}
	if period > 12 || weekly {
		job.Week = period
		job.HistoryDepth = orDefault(args.History, DefaultHistoryWeeks)
		job.SummaryDepth = orDefault(args.Summary, DefaultSummaryWeeks)
	} else {
		job.Month = period
		job.HistoryDepth = orDefault(args.History, DefaultHistoryMonths)
		job.SummaryDepth = orDefault(args.Summary, DefaultSummaryMonths)
	}
	return job, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// CurrentWeek returns the Sunday-based week of the year: days before the
// first Sunday belong to week 1.
func CurrentWeek(now time.Time) int {
	dayOfYear := now.YearDay() - 1
	firstDay := int(time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()).Weekday())
	untilFirstSunday := 0
	if firstDay != 0 {
		untilFirstSunday = 7 - firstDay
	}
	sinceFirstSunday := dayOfYear - untilFirstSunday
	if sinceFirstSunday < 0 {
		return 1
	}
	return sinceFirstSunday/7 + 1
}

// PeriodType reports whether the job is monthly or weekly.
func (j Job) PeriodType() PeriodType {
	if j.Week > 0 {
		return PeriodWeek
	}
	return PeriodMonth
}

// Period is the directory name of the job's period below its year:
// "3" for March, "Week 12" for week 12.
func (j Job) Period() string {
	if j.PeriodType() == PeriodWeek {
		return "Week " + strconv.Itoa(j.Week)
	}
	return strconv.Itoa(j.Month)
}

// Label is a compact period label such as 2026-3 or 2026-W12.
func (j Job) Label() string {
	if j.PeriodType() == PeriodWeek {
		return fmt.Sprintf("%d-W%d", j.Year, j.Week)
	}
	return fmt.Sprintf("%d-%d", j.Year, j.Month)
}

// WithDepth returns a copy of the job with different depths.
func (j Job) WithDepth(history, summary int) Job {
	j.HistoryDepth = history
	j.SummaryDepth = summary
	return j
}

// Values returns the built-in parameter values of the job, keyed the way
// job templates refer to them.
func (j Job) Values() map[string]any {
	values := map[string]any{"year": j.Year}
	if j.PeriodType() == PeriodWeek {
		values["week"] = j.Week
		values["historyWeeks"] = j.HistoryDepth
		values["summaryWeeks"] = j.SummaryDepth
	} else {
		values["month"] = j.Month
		values["historyMonths"] = j.HistoryDepth
		values["summaryMonths"] = j.SummaryDepth
	}
	return values
}
