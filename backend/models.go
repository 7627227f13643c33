package backend

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hsuanyo7160/go-travel-planner/internal/itinerary"
)

// ========== 資料模型 ==========

// StoredPlan 存進資料庫的行程
type StoredPlan struct {
	MongoID primitive.ObjectID `bson:"_id,omitempty" json:"-"`

	ID             string `json:"id" bson:"id"`
	itinerary.Plan `bson:",inline"`
	CreatedAt      time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updated_at"`
}

// PlanPatch 部分更新，沒傳的欄位是 nil，不會覆蓋原本的值
type PlanPatch struct {
	Title       *string               `json:"title"`
	Destination *string               `json:"destination"`
	StartDate   *string               `json:"startDate"`
	EndDate     *string               `json:"endDate"`
	Days        *int                  `json:"days"`
	Budget      *float64              `json:"budget"`
	Travelers   *int                  `json:"travelers"`
	Preferences *[]string             `json:"preferences"`
	Itinerary   *[]itinerary.DayEntry `json:"itinerary"`
	Summary     *itinerary.Summary    `json:"summary"`
}

func (p PlanPatch) empty() bool {
	return p.Title == nil && p.Destination == nil && p.StartDate == nil && p.EndDate == nil &&
		p.Days == nil && p.Budget == nil && p.Travelers == nil && p.Preferences == nil &&
		p.Itinerary == nil && p.Summary == nil
}

// fields 轉成 $set 用的欄位 (bson 名稱)
func (p PlanPatch) fields(now time.Time) bson.M {
	update := bson.M{"updated_at": now}
	if p.Title != nil {
		update["title"] = *p.Title
	}
	if p.Destination != nil {
		update["destination"] = *p.Destination
	}
	if p.StartDate != nil {
		update["start_date"] = *p.StartDate
	}
	if p.EndDate != nil {
		update["end_date"] = *p.EndDate
	}
	if p.Days != nil {
		update["days"] = *p.Days
	}
	if p.Budget != nil {
		update["budget"] = *p.Budget
	}
	if p.Travelers != nil {
		update["travelers"] = *p.Travelers
	}
	if p.Preferences != nil {
		update["preferences"] = *p.Preferences
	}
	// 只有真的傳了 itinerary 才更新，微調標題時不會把行程清掉
	if p.Itinerary != nil {
		update["itinerary"] = *p.Itinerary
	}
	if p.Summary != nil {
		update["summary"] = *p.Summary
	}
	return update
}

func (p PlanPatch) apply(sp *StoredPlan, now time.Time) {
	if p.Title != nil {
		sp.Title = *p.Title
	}
	if p.Destination != nil {
		sp.Destination = *p.Destination
	}
	if p.StartDate != nil {
		sp.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		sp.EndDate = *p.EndDate
	}
	if p.Days != nil {
		sp.Days = *p.Days
	}
	if p.Budget != nil {
		b := *p.Budget
		sp.Budget = &b
	}
	if p.Travelers != nil {
		sp.Travelers = *p.Travelers
	}
	if p.Preferences != nil {
		sp.Preferences = append([]string(nil), (*p.Preferences)...)
	}
	if p.Itinerary != nil {
		sp.Itinerary = append([]itinerary.DayEntry(nil), (*p.Itinerary)...)
	}
	if p.Summary != nil {
		sp.Summary = *p.Summary
	}
	sp.UpdatedAt = now
}

// ========== API 格式 ==========

type GeneratePlanRequest struct {
	Input itinerary.PlanRequest `json:"input"`
	// Save 預設為 true
	Save *bool `json:"save,omitempty"`
}

type GeneratePlanResponse struct {
	Success bool        `json:"success"`
	Plan    *StoredPlan `json:"plan,omitempty"`
	Warning string      `json:"warning,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ParseRequestBody struct {
	Text string `json:"text"`
}

// ChatRequest 前端傳來的請求格式
type ChatRequest struct {
	Message string     `json:"message"` // 使用者這次說的話
	History []ChatPart `json:"history"` // 過去的對話歷史 (可選)
}

// ChatPart 對話歷史的單一則訊息
type ChatPart struct {
	Role string `json:"role"` // "user" (使用者) 或 "model" (AI)
	Text string `json:"text"` // 訊息內容
}

// ProgressEvent SSE 的 progress 事件內容
type ProgressEvent struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}
