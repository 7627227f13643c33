package itinerary

import "strings"

// feedbackPrompt 重試時附在上一次錯誤回應後面的說明
func feedbackPrompt(raw string, class ErrorClass, err error) string {
	var b strings.Builder
	b.WriteString("❌ 你的上次輸出有錯誤：\n\n【錯誤訊息】\n")
	b.WriteString(err.Error())
	b.WriteString("\n\n【你的輸出片段】\n開頭：")
	b.WriteString(head(raw, excerptHead))
	if runeLen(raw) > excerptTailFrom {
		b.WriteString("\n...\n結尾：")
		b.WriteString(tail(raw, excerptTail))
	}
	b.WriteString("\n\n【問題分析】\n")
	b.WriteString(class.Hint())
	b.WriteString(`

請嚴格按照系統提示的格式，重新生成正確的JSON。記住：
1. 從 { 開始，到 } 結束
2. 所有鍵和字串值都要雙引號
3. 數字不加引號
4. 不要任何其他文字或解釋

直接輸出正確的JSON：`)
	return b.String()
}

func runeLen(s string) int { return len([]rune(s)) }

func head(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}

func tail(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[len(rs)-n:])
}
