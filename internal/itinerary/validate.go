package itinerary

import "fmt"

// ValidateDay 回傳問題清單，空的代表通過
func ValidateDay(d DayEntry) []string {
	var problems []string
	if d.Day < 1 {
		problems = append(problems, "missing day index")
	}
	if len(d.Activities) == 0 {
		problems = append(problems, fmt.Sprintf("day %d has no activities", d.Day))
	}
	return problems
}

func ValidateSummary(s Summary) []string {
	var problems []string
	if len(s.Highlights) == 0 {
		problems = append(problems, "summary highlights are empty")
	}
	if len(s.Tips) == 0 {
		problems = append(problems, "summary tips are empty")
	}
	return problems
}

// ValidatePlan 最後的整體檢查
func ValidatePlan(p Plan) []string {
	var problems []string
	if p.Title == "" {
		problems = append(problems, "missing title")
	}
	if p.Destination == "" {
		problems = append(problems, "missing destination")
	}
	if p.Days < 1 {
		problems = append(problems, "missing days")
	}
	if p.Itinerary == nil {
		problems = append(problems, "missing itinerary")
	} else if len(p.Itinerary) != p.Days {
		problems = append(problems, fmt.Sprintf("itinerary has %d days, expected %d", len(p.Itinerary), p.Days))
	}
	for i, d := range p.Itinerary {
		if d.Day != i+1 {
			problems = append(problems, fmt.Sprintf("itinerary[%d] has day index %d", i, d.Day))
		}
		problems = append(problems, ValidateDay(d)...)
	}
	problems = append(problems, ValidateSummary(p.Summary)...)
	return problems
}
