package backend

import "github.com/hsuanyo7160/go-travel-planner/internal/itinerary"

// ========== 輔助函數 ==========

// expandDays 產生空白的每日行程，沒有開始日期時用「第N天」
func expandDays(startDate string, days int) []itinerary.DayEntry {
	req := itinerary.PlanRequest{StartDate: startDate}
	result := make([]itinerary.DayEntry, days)

	for i := 0; i < days; i++ {
		result[i] = itinerary.DayEntry{
			Day:        i + 1,
			Date:       req.DateLabel(i + 1),
			Activities: []itinerary.Activity{},
		}
	}

	return result
}
