package repair

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectValidJSONUnchanged(t *testing.T) {
	inputs := []string{
		`{"a":1,"b":[1,"x",true,null,-2.5e3],"c":{"d":"e: f, g } ]"}}`,
		`{"title":"北京2日游","days":2,"empty":[],"obj":{}}`,
		`{"s":"quote \" inside, and a \\ slash"}`,
	}
	for _, in := range inputs {
		var want map[string]any
		require.NoError(t, json.Unmarshal([]byte(in), &want))

		got, err := Object(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)

		cleaned, err := Clean(in)
		require.NoError(t, err)
		assert.Equal(t, in, cleaned)
	}
}

func TestObjectRepairs(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			name: "code fence and prose",
			raw:  "Here is the plan:\n```json\n{\"day\": 1}\n```\nEnjoy!",
			want: map[string]any{"day": 1.0},
		},
		{
			name: "full-width punctuation",
			raw:  `{"title"："故宫"，"cost"：50}`,
			want: map[string]any{"title": "故宫", "cost": 50.0},
		},
		{
			name: "full-width braces",
			raw:  `｛"day"：1，"tips"：［"a"］｝`,
			want: map[string]any{"day": 1.0, "tips": []any{"a"}},
		},
		{
			name: "full-width outer braces around ascii objects",
			raw:  `｛"day"：1，"activities"：[{"title"："故宮"}]｝`,
			want: map[string]any{"day": 1.0, "activities": []any{map[string]any{"title": "故宮"}}},
		},
		{
			name: "full-width brace inside string kept",
			raw:  `｛"title"："｛特展｝"｝`,
			want: map[string]any{"title": "｛特展｝"},
		},
		{
			name: "curly quotes",
			raw:  `{“title”: “天安门广场”, "desc": "他说“你好”"}`,
			want: map[string]any{"title": "天安门广场", "desc": "他说“你好”"},
		},
		{
			name: "unquoted keys",
			raw:  "{day: 1,\n title: \"颐和园\",\n estimated_cost: 200}",
			want: map[string]any{"day": 1.0, "title": "颐和园", "estimated_cost": 200.0},
		},
		{
			name: "unquoted values",
			raw:  `{"title": 故宫博物院, "time": 09:00, "cost": 50, "open": true, "note": null}`,
			want: map[string]any{"title": "故宫博物院", "time": "09:00", "cost": 50.0, "open": true, "note": nil},
		},
		{
			name: "single quoted value",
			raw:  `{"title": 'Temple of Heaven'}`,
			want: map[string]any{"title": "Temple of Heaven"},
		},
		{
			name: "apostrophe in bare value",
			raw:  `{"title": Xi’an City Wall}`,
			want: map[string]any{"title": "Xi’an City Wall"},
		},
		{
			name: "trailing commas",
			raw:  `{"a": [1, 2,], "b": {"c": 1,},}`,
			want: map[string]any{"a": []any{1.0, 2.0}, "b": map[string]any{"c": 1.0}},
		},
		{
			name: "nested array elements",
			raw:  `{"tips": [带伞, 穿舒适的鞋, "早点出门"], "groups": [[a, b], [c]]}`,
			want: map[string]any{
				"tips":   []any{"带伞", "穿舒适的鞋", "早点出门"},
				"groups": []any{[]any{"a", "b"}, []any{"c"}},
			},
		},
		{
			name: "raw newline inside string",
			raw:  "{\"notes\": \"line one\nline two\"}",
			want: map[string]any{"notes": "line one\nline two"},
		},
		{
			name: "everything at once",
			raw: "```\n{\n  day：2，\n  title: 胡同漫步,\n  activities: [\n    {time: 09:00, title: “南锣鼓巷”, category: sightseeing, tips: [拍照, 小吃,],},\n  ],\n}\n```",
			want: map[string]any{
				"day":   2.0,
				"title": "胡同漫步",
				"activities": []any{map[string]any{
					"time": "09:00", "title": "南锣鼓巷", "category": "sightseeing",
					"tips": []any{"拍照", "小吃"},
				}},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Object(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	raws := []string{
		`{"title"："故宫"，"cost"：50}`,
		`{day: 1, title: 颐和园, tips: [带伞, 防晒,],}`,
		`{“title”: “天安门”, "groups": [[a, b], [c]]}`,
		"```json\n{\"a\": 1}\n```",
		`｛"day"：1，"tips"：［"a"］｝`,
	}
	for _, raw := range raws {
		once, err := Clean(raw)
		require.NoError(t, err)
		twice, err := Clean(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, raw)

		a, err := Object(raw)
		require.NoError(t, err)
		b, err := Object(once)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestObjectMalformed(t *testing.T) {
	for _, raw := range []string{"", "sorry, I cannot help with that", "} backwards {", "[1, 2, 3]"} {
		_, err := Object(raw)
		assert.ErrorIs(t, err, ErrMalformedOutput, raw)
	}
}

func TestObjectSyntaxError(t *testing.T) {
	_, err := Object(`{"a": "never closed}`)
	var se *SyntaxError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Positive(t, se.Offset)
	assert.NotEmpty(t, se.Msg)

	for _, raw := range []string{`{"a" 1}`, `{"a": [1, 2}`} {
		_, err = Object(raw)
		require.True(t, errors.As(err, &se), raw)
		assert.Contains(t, se.Error(), "offset")
	}
}

type decodedActivity struct {
	Day  int      `json:"day"`
	Time string   `json:"time"`
	Cost *float64 `json:"cost"`
	Free *float64 `json:"free"`
	Tips []string `json:"tips"`
}

func TestDecodeWeakTypes(t *testing.T) {
	var a decodedActivity
	err := Decode(`{day: "第2天", time: 9, cost: "约1,250.5元", tips: 带伞, free: null}`, &a)
	require.NoError(t, err)

	assert.Equal(t, 2, a.Day)
	assert.Equal(t, "9", a.Time)
	require.NotNil(t, a.Cost)
	assert.InDelta(t, 1250.5, *a.Cost, 1e-9)
	assert.Nil(t, a.Free)
	assert.Equal(t, []string{"带伞"}, a.Tips)
}

func TestDecodePropagatesRepairErrors(t *testing.T) {
	var a decodedActivity
	assert.ErrorIs(t, Decode("no json here", &a), ErrMalformedOutput)
}
