// Package repair 把模型吐出來的「差不多是 JSON」的文字修成可以解析的物件。
//
// 修復順序固定：
//  1. 去掉 code fence，取第一個 { 到最後一個 }
//  2. 字串外的全形標點、彎引號轉成 ASCII
//  3. 沒加引號的 key 補上引號
//  4. 沒加引號的值補上引號 (數字、true/false/null 除外)
//  5. 陣列裡沒加引號的元素補上引號，最多重複 5 次直到不再變動
//  6. 移除 } 或 ] 前多餘的逗號
//  7. 解析
//
// 每一步都會追蹤是否在字串內，字串內容不會被改動。
// 對合法 JSON 來說每一步都是恆等轉換，所以修復結果可以再修一次而不變。
package repair

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// ErrMalformedOutput 文字裡找不到 { ... } 區塊
var ErrMalformedOutput = errors.New("no JSON object found in model output")

// SyntaxError 修復後仍然無法解析
type SyntaxError struct {
	Msg    string
	Offset int64
	Near   string
}

func (e *SyntaxError) Error() string {
	if e.Near != "" {
		return fmt.Sprintf("JSON syntax error at offset %d: %s (near %q)", e.Offset, e.Msg, e.Near)
	}
	return fmt.Sprintf("JSON syntax error at offset %d: %s", e.Offset, e.Msg)
}

const maxArrayPasses = 5

var (
	fenceRe  = regexp.MustCompile("```[A-Za-z]*")
	numberRe = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?([eE][+-]?\d+)?$`)
)

// Object 修復並解析成 map
func Object(raw string) (map[string]any, error) {
	text, err := Clean(raw)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, syntaxError(text, err)
	}
	return out, nil
}

// Clean 執行第 1 到第 6 步，回傳修好的文字
func Clean(raw string) (string, error) {
	text, err := extract(raw)
	if err != nil {
		return "", err
	}
	text = normalizePunctuation(text)
	text = quoteKeys(text)
	text = quoteValues(text)
	for i := 0; i < maxArrayPasses; i++ {
		next := quoteArrayElements(text)
		if next == text {
			break
		}
		text = next
	}
	return stripTrailingCommas(text), nil
}

func extract(raw string) (string, error) {
	s := foldBraces(fenceRe.ReplaceAllString(raw, ""))
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", ErrMalformedOutput
	}
	return s[start : end+1], nil
}

// foldBraces 字串外的全形大括號先轉成 ASCII，否則找不到最外層的物件
func foldBraces(s string) string {
	if !strings.ContainsAny(s, "｛｝") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inStr, escaped := false, false
	for _, r := range s {
		switch {
		case inStr:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inStr = false
			}
		case r == '"':
			inStr = true
		case r == '｛':
			r = '{'
		case r == '｝':
			r = '}'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func syntaxError(text string, err error) error {
	se := &SyntaxError{Msg: err.Error()}
	var jse *json.SyntaxError
	if errors.As(err, &jse) {
		se.Offset = jse.Offset
		lo := max(0, int(jse.Offset)-20)
		hi := min(len(text), int(jse.Offset)+20)
		se.Near = strings.ToValidUTF8(text[lo:hi], "")
	}
	return se
}

// ========== 第 2 步：標點正規化 ==========

// 單引號 ‘’ 常出現在地名裡 (Xi’an)，不當成字串邊界
func isOpenCurly(r rune) bool  { return r == '“' || r == '＂' }
func isCloseCurly(r rune) bool { return r == '”' || r == '＂' || r == '“' }

func normalizePunctuation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	rs := []rune(s)

	inASCII := false // "..." 字串
	inCurly := false // “...” 字串，輸出時改成 "..."
	escaped := false

	for _, r := range rs {
		switch {
		case inASCII:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inASCII = false
			case r == '\n':
				b.WriteString(`\n`)
				continue
			case r == '\r':
				continue
			case r == '\t':
				b.WriteString(`\t`)
				continue
			}
			b.WriteRune(r)
		case inCurly:
			switch {
			case isCloseCurly(r) || r == '"':
				inCurly = false
				b.WriteByte('"')
			case r == '\\':
				b.WriteString(`\\`)
			case r == '\n':
				b.WriteString(`\n`)
			case r == '\t':
				b.WriteString(`\t`)
			case r == '\r':
			default:
				b.WriteRune(r)
			}
		default:
			switch {
			case r == '"':
				inASCII = true
				b.WriteRune(r)
			case isOpenCurly(r) || isCloseCurly(r):
				inCurly = true
				b.WriteByte('"')
			case isFullWidthPunct(r):
				b.WriteRune(width.LookupRune(r).Narrow())
			default:
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func isFullWidthPunct(r rune) bool {
	switch r {
	case '：', '，', '｛', '｝', '［', '］':
		return true
	}
	return false
}

// ========== 字串狀態 ==========

// cursor 逐字走訪並記錄是否在字串裡
type cursor struct {
	rs      []rune
	i       int
	out     strings.Builder
	inStr   bool
	escaped bool
}

func newCursor(s string) *cursor {
	c := &cursor{rs: []rune(s)}
	c.out.Grow(len(s) + 16)
	return c
}

// passThrough 在字串內時直接複製，回傳 true 代表已處理
func (c *cursor) passThrough() bool {
	r := c.rs[c.i]
	if !c.inStr {
		if r == '"' {
			c.inStr = true
			c.out.WriteRune(r)
			c.i++
			return true
		}
		return false
	}
	switch {
	case c.escaped:
		c.escaped = false
	case r == '\\':
		c.escaped = true
	case r == '"':
		c.inStr = false
	}
	c.out.WriteRune(r)
	c.i++
	return true
}

func (c *cursor) peekNonSpace(from int) (int, rune) {
	for j := from; j < len(c.rs); j++ {
		r := c.rs[j]
		if !unicode.IsSpace(r) {
			return j, r
		}
	}
	return len(c.rs), 0
}

// ========== 第 3 步：key 補引號 ==========

func isIdentStart(r rune) bool { return r == '_' || r == '$' || unicode.IsLetter(r) }
func isIdentPart(r rune) bool {
	return r == '_' || r == '$' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func quoteKeys(s string) string {
	c := newCursor(s)
	var prev rune // 上一個字串外的非空白字元
	sawNewline := false
	for c.i < len(c.rs) {
		if c.inStr {
			c.passThrough()
			if !c.inStr {
				prev = '"'
				sawNewline = false
			}
			continue
		}
		if c.passThrough() {
			continue
		}
		r := c.rs[c.i]
		if isIdentStart(r) && (prev == '{' || prev == ',' || sawNewline) {
			j := c.i + 1
			for j < len(c.rs) && isIdentPart(c.rs[j]) {
				j++
			}
			if k, next := c.peekNonSpace(j); next == ':' {
				c.out.WriteByte('"')
				c.out.WriteString(string(c.rs[c.i:j]))
				c.out.WriteByte('"')
				c.out.WriteString(string(c.rs[j:k]))
				c.i = k
				prev = '"'
				sawNewline = false
				continue
			}
		}
		if r == '\n' {
			sawNewline = true
		} else if !unicode.IsSpace(r) {
			prev = r
			sawNewline = false
		}
		c.out.WriteRune(r)
		c.i++
	}
	return c.out.String()
}

// ========== 第 4 步：值補引號 ==========

func isLiteral(v string) bool {
	switch v {
	case "true", "false", "null":
		return true
	}
	return numberRe.MatchString(v)
}

// bareToken 從 from 開始讀到 , } ] 或換行為止
func bareToken(rs []rune, from int, stops string) int {
	j := from
	for j < len(rs) && !strings.ContainsRune(stops, rs[j]) && rs[j] != '\n' {
		j++
	}
	return j
}

func quoteBare(v string) string {
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		v = v[1 : len(v)-1]
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	v = strings.ReplaceAll(v, "\t", `\t`)
	return `"` + v + `"`
}

// writeBare 輸出 [start, end) 的裸值，必要時補引號
func (c *cursor) writeBare(start, end int) {
	raw := string(c.rs[start:end])
	trimmed := strings.TrimRightFunc(raw, unicode.IsSpace)
	c.i = end
	if trimmed == "" || isLiteral(trimmed) {
		c.out.WriteString(raw)
		return
	}
	c.out.WriteString(quoteBare(trimmed))
	c.out.WriteString(raw[len(trimmed):])
}

func quoteValues(s string) string {
	c := newCursor(s)
	var stack []rune
	for c.i < len(c.rs) {
		if c.passThrough() {
			continue
		}
		r := c.rs[c.i]
		c.out.WriteRune(r)
		c.i++
		switch r {
		case '{', '[':
			stack = append(stack, r)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
		if r != ':' || len(stack) == 0 || stack[len(stack)-1] != '{' {
			continue
		}
		k, next := c.peekNonSpace(c.i)
		c.out.WriteString(string(c.rs[c.i:k]))
		c.i = k
		if next == 0 || next == '"' || next == '{' || next == '[' {
			continue
		}
		c.writeBare(k, bareToken(c.rs, k, ",}]"))
	}
	return c.out.String()
}

// ========== 第 5 步：陣列元素補引號 ==========

func quoteArrayElements(s string) string {
	c := newCursor(s)
	var stack []rune
	atElementStart := false
	for c.i < len(c.rs) {
		if c.passThrough() {
			atElementStart = false
			continue
		}
		r := c.rs[c.i]
		inArray := len(stack) > 0 && stack[len(stack)-1] == '['

		if atElementStart && inArray && !unicode.IsSpace(r) {
			atElementStart = false
			if r != '{' && r != '[' && r != ']' && r != ',' {
				c.writeBare(c.i, bareToken(c.rs, c.i, ",]}"))
				continue
			}
		}

		switch r {
		case '{', '[':
			stack = append(stack, r)
			atElementStart = r == '['
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			atElementStart = false
		case ',':
			atElementStart = inArray
		}
		c.out.WriteRune(r)
		c.i++
	}
	return c.out.String()
}

// ========== 第 6 步：多餘逗號 ==========

func stripTrailingCommas(s string) string {
	c := newCursor(s)
	for c.i < len(c.rs) {
		if c.passThrough() {
			continue
		}
		r := c.rs[c.i]
		if r == ',' {
			if _, next := c.peekNonSpace(c.i + 1); next == '}' || next == ']' {
				c.i++
				continue
			}
		}
		c.out.WriteRune(r)
		c.i++
	}
	return c.out.String()
}
