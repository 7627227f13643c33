package itinerary

import "strings"

// VisitedSet 已排入行程的景點 (title、location)。
// 只用來提醒模型不要重複，不會拒絕重複的輸出。
type VisitedSet struct {
	names []string
	seen  map[string]struct{}
}

func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[string]struct{})}
}

func visitKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Add 加入一天的所有活動，回傳之前已經出現過的名稱
func (v *VisitedSet) Add(day DayEntry) []string {
	var repeats []string
	fresh := make(map[string]struct{})
	for _, a := range day.Activities {
		for _, name := range []string{a.Title, a.Location} {
			k := visitKey(name)
			if k == "" {
				continue
			}
			if _, ok := v.seen[k]; ok {
				if _, dup := fresh[k]; !dup {
					repeats = append(repeats, strings.TrimSpace(name))
				}
				continue
			}
			v.seen[k] = struct{}{}
			fresh[k] = struct{}{}
			v.names = append(v.names, strings.TrimSpace(name))
		}
	}
	return repeats
}

func (v *VisitedSet) Contains(name string) bool {
	_, ok := v.seen[visitKey(name)]
	return ok
}

// Names 依加入順序
func (v *VisitedSet) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

func (v *VisitedSet) Len() int { return len(v.names) }

// Render 給 prompt 用的排除清單
func (v *VisitedSet) Render() string {
	return strings.Join(v.names, "、")
}
