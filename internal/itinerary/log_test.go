package itinerary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsuanyo7160/go-travel-planner/internal/llm"
	"github.com/hsuanyo7160/go-travel-planner/internal/repair"
)

func TestConversationLogAppendDoesNotAlias(t *testing.T) {
	base := NewConversationLog(systemTurn("sys"))
	a := base.Append(userTurn("a"))
	b := base.Append(userTurn("b"))

	assert.Equal(t, 1, base.Len())
	require.Equal(t, 2, a.Len())
	require.Equal(t, 2, b.Len())
	assert.Equal(t, "a", a.Messages()[1].Content)
	assert.Equal(t, "b", b.Messages()[1].Content)

	msgs := a.Messages()
	msgs[0].Content = "changed"
	assert.Equal(t, "sys", a.Messages()[0].Content)
}

func TestVisitedSet(t *testing.T) {
	v := NewVisitedSet()
	repeats := v.Add(DayEntry{Day: 1, Activities: []Activity{
		{Title: "故宮", Location: "故宮博物院"},
		{Title: "景山公園", Location: "景山公園"},
	}})
	assert.Empty(t, repeats)
	assert.Equal(t, []string{"故宮", "故宮博物院", "景山公園"}, v.Names())
	assert.True(t, v.Contains(" 故宮 "))
	assert.False(t, v.Contains("天壇"))

	repeats = v.Add(DayEntry{Day: 2, Activities: []Activity{
		{Title: "天壇", Location: "天壇公園"},
		{Title: "故宮夜遊", Location: "故宮博物院"},
	}})
	assert.Equal(t, []string{"故宮博物院"}, repeats)
	assert.Equal(t, 6, v.Len())
	assert.Equal(t, "故宮、故宮博物院、景山公園、天壇、天壇公園、故宮夜遊", v.Render())
}

func TestVisitedSetIgnoresCase(t *testing.T) {
	v := NewVisitedSet()
	v.Add(DayEntry{Activities: []Activity{{Title: "Louvre"}}})
	assert.Equal(t, []string{"Louvre"}, v.Names())
	assert.Equal(t, []string{"LOUVRE"}, v.Add(DayEntry{Activities: []Activity{{Title: "LOUVRE"}}}))
}

func TestClassify(t *testing.T) {
	_, syntaxErr := repair.Object(`{"a": [1, 2}`)
	_, incomplete := repair.Object(`{"a": "never closed}`)

	cases := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ClassUnknown},
		{"canceled", fmt.Errorf("call: %w", context.Canceled), ClassCanceled},
		{"deadline", context.DeadlineExceeded, ClassCanceled},
		{"transport", &llm.TransportError{Provider: "x", StatusCode: 500}, ClassTransport},
		{"transport timeout", &llm.TransportError{Provider: "x", Err: context.DeadlineExceeded}, ClassTransport},
		{"empty", llm.ErrEmptyResponse, ClassEmptyResponse},
		{"malformed", repair.ErrMalformedOutput, ClassMalformedOutput},
		{"syntax", syntaxErr, ClassSyntax},
		{"incomplete", incomplete, ClassIncomplete},
		{"schema", &SchemaError{Unit: "day 1", Problems: []string{"missing field: day"}}, ClassSchema},
		{"empty activities", &SchemaError{Unit: "day 1", EmptyActivities: true}, ClassEmptyActivities},
		{"other", errors.New("boom"), ClassUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
			assert.NotEmpty(t, tc.want.Hint())
		})
	}
}

func TestFeedbackPromptExcerpts(t *testing.T) {
	short := `{"day":1`
	p := feedbackPrompt(short, ClassIncomplete, errors.New("unexpected end of JSON input"))
	assert.Contains(t, p, "開頭："+short)
	assert.NotContains(t, p, "結尾：")
	assert.Contains(t, p, ClassIncomplete.Hint())

	long := strings.Repeat("甲", 200) + strings.Repeat("乙", 200)
	p = feedbackPrompt(long, ClassSyntax, errors.New("bad"))
	assert.Contains(t, p, "開頭："+strings.Repeat("甲", 150)+"\n")
	assert.Contains(t, p, "結尾："+strings.Repeat("乙", 150)+"\n")
}

func TestValidatePlan(t *testing.T) {
	day := func(n int) DayEntry {
		return DayEntry{Day: n, Activities: []Activity{{Title: "x"}}}
	}
	good := Plan{
		Title:       "t",
		Destination: "d",
		Days:        2,
		Itinerary:   []DayEntry{day(1), day(2)},
		Summary:     Summary{Highlights: []string{"h"}, Tips: []string{"t"}},
	}
	assert.Empty(t, ValidatePlan(good))

	bad := good
	bad.Itinerary = []DayEntry{day(2), {Day: 1}}
	bad.Summary = Summary{}
	problems := ValidatePlan(bad)
	assert.Contains(t, problems, "itinerary[0] has day index 2")
	assert.Contains(t, problems, "day 1 has no activities")
	assert.Contains(t, problems, "summary highlights are empty")

	bad = good
	bad.Itinerary = nil
	assert.Contains(t, ValidatePlan(bad), "missing itinerary")
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, CategoryLodging, ParseCategory(" Hotel "))
	assert.Equal(t, CategoryMeal, ParseCategory("restaurant"))
	assert.Equal(t, CategoryTransport, ParseCategory("transportation"))
	assert.Equal(t, CategoryOther, ParseCategory("spa"))
}
