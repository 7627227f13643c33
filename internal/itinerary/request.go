package itinerary

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const dateLayout = "2006-01-02"

// PlanRequest 使用者的行程需求，日期區間與天數二擇一 (兩者都給時必須一致)
type PlanRequest struct {
	Destination         string   `json:"destination"`
	StartDate           string   `json:"startDate,omitempty"`
	EndDate             string   `json:"endDate,omitempty"`
	Days                int      `json:"days,omitempty"`
	Budget              *float64 `json:"budget,omitempty"`
	Travelers           int      `json:"travelers,omitempty"`
	Preferences         []string `json:"preferences,omitempty"`
	Pace                string   `json:"pace,omitempty"`
	SpecialRequirements string   `json:"specialRequirements,omitempty"`
}

// Limits 請求的硬性上限，也控制對話長度不會無限成長
type Limits struct {
	MaxDays        int
	MinBudget      float64
	MaxBudget      float64
	MaxInputLength int
}

func DefaultLimits() Limits {
	return Limits{MaxDays: 30, MinBudget: 100, MaxBudget: 1_000_000, MaxInputLength: 2000}
}

// RequestError 請求本身不合法，不會送出任何生成呼叫
type RequestError struct {
	Problems []string
}

func (e *RequestError) Error() string {
	return "invalid plan request: " + strings.Join(e.Problems, "; ")
}

// Resolve 算出天數
func (r PlanRequest) Resolve() (int, error) {
	start, end := strings.TrimSpace(r.StartDate), strings.TrimSpace(r.EndDate)
	switch {
	case start != "" && end != "":
		s, err := time.Parse(dateLayout, start)
		if err != nil {
			return 0, &RequestError{Problems: []string{fmt.Sprintf("startDate %q is not YYYY-MM-DD", start)}}
		}
		e, err := time.Parse(dateLayout, end)
		if err != nil {
			return 0, &RequestError{Problems: []string{fmt.Sprintf("endDate %q is not YYYY-MM-DD", end)}}
		}
		days := int(e.Sub(s).Hours()/24) + 1
		if days < 1 {
			return 0, &RequestError{Problems: []string{"endDate is before startDate"}}
		}
		if r.Days > 0 && r.Days != days {
			return 0, &RequestError{Problems: []string{fmt.Sprintf("days=%d does not match the %d-day date range", r.Days, days)}}
		}
		return days, nil
	case start != "" || end != "":
		return 0, &RequestError{Problems: []string{"startDate and endDate must be given together"}}
	case r.Days > 0:
		return r.Days, nil
	default:
		return 0, &RequestError{Problems: []string{"either a date range or a positive number of days is required"}}
	}
}

// Validate 檢查所有前置條件並回傳天數
func (r PlanRequest) Validate(l Limits) (int, error) {
	var problems []string
	if strings.TrimSpace(r.Destination) == "" {
		problems = append(problems, "destination is required")
	}
	days, err := r.Resolve()
	if err != nil {
		problems = append(problems, err.(*RequestError).Problems...)
	} else if l.MaxDays > 0 && days > l.MaxDays {
		problems = append(problems, fmt.Sprintf("trip is %d days, the maximum is %d", days, l.MaxDays))
	}
	if r.Budget != nil && (*r.Budget < l.MinBudget || (l.MaxBudget > 0 && *r.Budget > l.MaxBudget)) {
		problems = append(problems, fmt.Sprintf("budget must be between %.0f and %.0f", l.MinBudget, l.MaxBudget))
	}
	if r.Travelers < 0 {
		problems = append(problems, "travelers cannot be negative")
	}
	if l.MaxInputLength > 0 && utf8.RuneCountInString(r.SpecialRequirements) > l.MaxInputLength {
		problems = append(problems, fmt.Sprintf("specialRequirements exceeds %d characters", l.MaxInputLength))
	}
	switch strings.ToLower(r.Pace) {
	case "", "relaxed", "moderate", "fast":
	default:
		problems = append(problems, fmt.Sprintf("pace %q must be relaxed, moderate or fast", r.Pace))
	}
	if len(problems) > 0 {
		return 0, &RequestError{Problems: problems}
	}
	return days, nil
}

// DateLabel 第 day 天的日期標籤
func (r PlanRequest) DateLabel(day int) string {
	if r.StartDate != "" {
		if s, err := time.Parse(dateLayout, r.StartDate); err == nil {
			return s.AddDate(0, 0, day-1).Format(dateLayout)
		}
	}
	return fmt.Sprintf("第%d天", day)
}

func (r PlanRequest) hasDates() bool { return r.StartDate != "" }

func (r PlanRequest) budgetText() string {
	if r.Budget == nil {
		return "彈性"
	}
	return fmt.Sprintf("%.0f元", *r.Budget)
}

func (r PlanRequest) travelers() int {
	if r.Travelers <= 0 {
		return 1
	}
	return r.Travelers
}
