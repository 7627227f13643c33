// Package itinerary 逐步生成多天行程：先產生概要，再一天一天生成，最後產生總結。
// 每一步都經過修復、驗證，失敗時把錯誤回饋給模型重試。
package itinerary

import "strings"

// ========== 資料模型 ==========

type Category string

const (
	CategorySightseeing   Category = "sightseeing"
	CategoryMeal          Category = "meal"
	CategoryTransport     Category = "transport"
	CategoryLodging       Category = "lodging"
	CategoryShopping      Category = "shopping"
	CategoryEntertainment Category = "entertainment"
	CategoryOther         Category = "other"
)

var categoryAliases = map[string]Category{
	"sightseeing":    CategorySightseeing,
	"attraction":     CategorySightseeing,
	"sight":          CategorySightseeing,
	"meal":           CategoryMeal,
	"food":           CategoryMeal,
	"restaurant":     CategoryMeal,
	"dining":         CategoryMeal,
	"transport":      CategoryTransport,
	"transportation": CategoryTransport,
	"transit":        CategoryTransport,
	"lodging":        CategoryLodging,
	"accommodation":  CategoryLodging,
	"hotel":          CategoryLodging,
	"shopping":       CategoryShopping,
	"entertainment":  CategoryEntertainment,
	"other":          CategoryOther,
}

// ParseCategory 接受模型常用的同義詞，認不得的一律歸為 other
func ParseCategory(s string) Category {
	if c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c
	}
	return CategoryOther
}

type Activity struct {
	Time        string   `json:"time" bson:"time"`
	EndTime     string   `json:"endTime,omitempty" bson:"end_time,omitempty"`
	Title       string   `json:"title" bson:"title"`
	Description string   `json:"description,omitempty" bson:"description,omitempty"`
	Location    string   `json:"location,omitempty" bson:"location,omitempty"`
	Address     string   `json:"address,omitempty" bson:"address,omitempty"`
	Cost        *float64 `json:"cost,omitempty" bson:"cost,omitempty"`
	Category    Category `json:"category" bson:"category"`
	Tips        []string `json:"tips,omitempty" bson:"tips,omitempty"`
}

// DayEntry 一天的行程，Date 是具體日期或「第N天」
type DayEntry struct {
	Day           int        `json:"day" bson:"day"`
	Date          string     `json:"date" bson:"date"`
	Title         string     `json:"title" bson:"title"`
	Activities    []Activity `json:"activities" bson:"activities"`
	EstimatedCost *float64   `json:"estimatedCost,omitempty" bson:"estimated_cost,omitempty"`
	Notes         string     `json:"notes,omitempty" bson:"notes,omitempty"`
}

type Summary struct {
	TotalCost   *float64 `json:"totalCost,omitempty" bson:"total_cost,omitempty"`
	Highlights  []string `json:"highlights" bson:"highlights"`
	Tips        []string `json:"tips" bson:"tips"`
	Warnings    []string `json:"warnings,omitempty" bson:"warnings,omitempty"`
	PackingList []string `json:"packingList,omitempty" bson:"packing_list,omitempty"`
}

// Plan 組裝完成的行程
type Plan struct {
	Title       string     `json:"title" bson:"title"`
	Destination string     `json:"destination" bson:"destination"`
	StartDate   string     `json:"startDate,omitempty" bson:"start_date,omitempty"`
	EndDate     string     `json:"endDate,omitempty" bson:"end_date,omitempty"`
	Days        int        `json:"days" bson:"days"`
	Budget      *float64   `json:"budget,omitempty" bson:"budget,omitempty"`
	Travelers   int        `json:"travelers,omitempty" bson:"travelers,omitempty"`
	Preferences []string   `json:"preferences,omitempty" bson:"preferences,omitempty"`
	Itinerary   []DayEntry `json:"itinerary" bson:"itinerary"`
	Summary     Summary    `json:"summary" bson:"summary"`
	// Degraded 列出用預設內容補上的步驟 (overview、summary)
	Degraded []string `json:"degraded,omitempty" bson:"degraded,omitempty"`
}

// ProgressFunc 每個大步驟開始時呼叫，panic 會被忽略
type ProgressFunc func(current, total int, message string)

// ========== 模型輸出的原始結構 ==========

// 模型有時用 type 有時用 category，兩個都收
type activityRecord struct {
	Time        string   `json:"time"`
	EndTime     string   `json:"endTime"`
	Title       string   `json:"title"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Address     string   `json:"address"`
	Cost        *float64 `json:"cost"`
	Type        string   `json:"type"`
	Category    string   `json:"category"`
	Tips        []string `json:"tips"`
}

type dayRecord struct {
	Day           int              `json:"day"`
	Date          string           `json:"date"`
	Title         string           `json:"title"`
	Activities    []activityRecord `json:"activities"`
	EstimatedCost *float64         `json:"estimatedCost"`
	Notes         string           `json:"notes"`
}

type summaryRecord struct {
	TotalCost   *float64 `json:"totalCost"`
	Highlights  []string `json:"highlights"`
	Tips        []string `json:"tips"`
	Warnings    []string `json:"warnings"`
	PackingList []string `json:"packingList"`
}

func (r activityRecord) activity() Activity {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = strings.TrimSpace(r.Name)
	}
	cat := r.Category
	if cat == "" {
		cat = r.Type
	}
	return Activity{
		Time:        strings.TrimSpace(r.Time),
		EndTime:     strings.TrimSpace(r.EndTime),
		Title:       title,
		Description: strings.TrimSpace(r.Description),
		Location:    strings.TrimSpace(r.Location),
		Address:     strings.TrimSpace(r.Address),
		Cost:        r.Cost,
		Category:    ParseCategory(cat),
		Tips:        nonEmpty(r.Tips),
	}
}

func (r dayRecord) entry() DayEntry {
	acts := make([]Activity, 0, len(r.Activities))
	for _, a := range r.Activities {
		acts = append(acts, a.activity())
	}
	return DayEntry{
		Day:           r.Day,
		Date:          strings.TrimSpace(r.Date),
		Title:         strings.TrimSpace(r.Title),
		Activities:    acts,
		EstimatedCost: r.EstimatedCost,
		Notes:         strings.TrimSpace(r.Notes),
	}
}

func (r summaryRecord) summary() Summary {
	return Summary{
		TotalCost:   r.TotalCost,
		Highlights:  nonEmpty(r.Highlights),
		Tips:        nonEmpty(r.Tips),
		Warnings:    nonEmpty(r.Warnings),
		PackingList: nonEmpty(r.PackingList),
	}
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
