package itinerary

import (
	"fmt"
	"strings"
)

const (
	excerptHead     = 150
	excerptTail     = 150
	excerptTailFrom = 300
	maxEchoRunes    = 1000
)

const fence = "```"

func systemPrompt() string {
	return `你是旅遊行程規劃助手，同時也是嚴格的JSON格式生成器。

【絕對規則】
1. 只返回純JSON，從{開始到}結束
2. 不要markdown程式碼區塊(不要` + fence + `)
3. 所有鍵必須雙引號："day"不是day
4. 所有字串值必須雙引號："北京"不是北京
5. 數字不加引號：100不是"100"
6. 【重要】每天的景點必須不同，嚴禁出現重複景點！
7. 【重要】需要為每天的行程安排住宿。

【範例-正確】
{"day":1,"title":"探索北京","activities":[{"time":"09:00","title":"天安門","description":"遊覽天安門廣場","location":"天安門","address":"北京市東城區東長安街","cost":0,"category":"sightseeing","tips":["早起避開人潮"]}],"estimatedCost":200}

【範例-錯誤】
{day:1,title:探索北京}  ❌缺少引號
{"day":"1"}  ❌數字加了引號
{"title":"天安門"}  ❌如果其他天已有天安門，不能再出現

從第一個字元{到最後一個字元}，中間不能有任何其他內容。`
}

func overviewPrompt(req PlanRequest, days int) string {
	return fmt.Sprintf(`我需要為%s制定%d天旅行計畫，預算%s。
生成標題：%s%d天遊

返回格式：
{"title":"標題內容"}`, req.Destination, days, req.budgetText(), req.Destination, days)
}

func paceText(pace string) string {
	switch strings.ToLower(pace) {
	case "relaxed":
		return "2-3個活動，節奏輕鬆"
	case "fast":
		return "5-6個活動，行程緊湊"
	default:
		return "3-5個活動"
	}
}

func dayPrompt(req PlanRequest, day, days int, prev []DayEntry, visited *VisitedSet) string {
	var b strings.Builder
	if len(prev) > 0 {
		recap := make([]string, 0, len(prev))
		for _, d := range prev {
			titles := make([]string, 0, len(d.Activities))
			for _, a := range d.Activities {
				titles = append(titles, a.Title)
			}
			recap = append(recap, fmt.Sprintf("第%d天-%s (%s)", d.Day, d.Title, strings.Join(titles, "、")))
		}
		fmt.Fprintf(&b, "已安排景點：%s\n", strings.Join(recap, "；"))
	}
	label := req.DateLabel(day)
	fmt.Fprintf(&b, "生成第%d天行程（共%d天）\n\n", day, days)
	fmt.Fprintf(&b, "目的地：%s\n", req.Destination)
	if req.hasDates() {
		fmt.Fprintf(&b, "日期：%s\n", label)
	} else {
		fmt.Fprintf(&b, "相對日期：%s\n", label)
	}
	fmt.Fprintf(&b, "預算：%s（全程）\n", req.budgetText())
	fmt.Fprintf(&b, "人數：%d人\n", req.travelers())
	if len(req.Preferences) > 0 {
		fmt.Fprintf(&b, "偏好：%s\n", strings.Join(req.Preferences, "、"))
	}
	if req.SpecialRequirements != "" {
		fmt.Fprintf(&b, "特殊需求：%s\n", req.SpecialRequirements)
	}
	fmt.Fprintf(&b, "要求：%s\n\n", paceText(req.Pace))

	if visited.Len() > 0 {
		fmt.Fprintf(&b, "⚠️ 嚴禁重複以下景點：%s\n\n", visited.Render())
	}

	dateField := ""
	if req.hasDates() {
		dateField = fmt.Sprintf(`,"date":"%s"`, label)
	}
	fmt.Fprintf(&b, `返回格式(嚴格遵守)：
{"day":%d%s,"title":"主題","activities":[{"time":"09:00","title":"景點名","description":"簡介","location":"景點名稱","address":"詳細地址","cost":50,"category":"sightseeing","tips":["提示1","提示2"]},{"time":"12:00","title":"午餐","description":"午餐安排","location":"餐廳名","address":"詳細地址","cost":80,"category":"meal","tips":["推薦菜色"]},{"time":"18:30","title":"晚餐","description":"晚餐安排","location":"餐廳名","address":"詳細地址","cost":120,"category":"meal","tips":["推薦菜色"]}],"estimatedCost":300}

`, day, dateField)
	b.WriteString(`重要說明：
- category只能是: sightseeing,meal,transport,lodging,shopping,entertainment,other
- location是景點名稱，address是詳細地址
- 【硬性要求】每個活動的title和location必須與之前的天不同，嚴禁重複！
- 【時間安排】依活動內容彈性安排時間，不要總是用固定時間
- 【餐飲安排】必須包含午餐和晚餐，晚餐時間建議在18:00-20:00之間
直接返回JSON，不要其他內容`)
	return b.String()
}

// dayLogTurn 寫進對話紀錄的精簡版請求，完整 prompt 只在生成當下送出
func dayLogTurn(req PlanRequest, day int) string {
	return fmt.Sprintf("生成第%d天行程（%s）", day, req.DateLabel(day))
}

func summaryPrompt(req PlanRequest, itinerary []DayEntry) string {
	days := make([]string, 0, len(itinerary))
	for _, d := range itinerary {
		days = append(days, fmt.Sprintf("第%d天-%s", d.Day, d.Title))
	}
	return fmt.Sprintf(`總結%d天行程：%s
目的地：%s，預算：%s，人數：%d人

返回格式：
{"highlights":["亮點1","亮點2","亮點3"],"tips":["建議1","建議2","建議3"],"warnings":["注意事項"],"packingList":["物品1","物品2"]}

highlights和tips都不能是空陣列，直接返回JSON，不要其他內容`,
		len(itinerary), strings.Join(days, "，"), req.Destination, req.budgetText(), req.travelers())
}
