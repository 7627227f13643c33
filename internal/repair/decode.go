package repair

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

var leadingNumberRe = regexp.MustCompile(`-?\d+(\.\d+)?`)

// Decode 修復 raw 後轉成 out 指向的結構 (依 json tag 對應欄位)
func Decode(raw string, out any) error {
	m, err := Object(raw)
	if err != nil {
		return err
	}
	return DecodeValue(m, out)
}

// DecodeValue 把已解析的值寬鬆地轉成結構：
// "2" 可以變成 2，"約50元" 變成 50，單一字串可以變成 []string。
func DecodeValue(in any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       numericStringHook,
		MatchName:        matchName,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// matchName 讓 estimated_cost 與 estimatedCost 對得上
func matchName(mapKey, fieldName string) bool {
	norm := func(s string) string { return strings.ToLower(strings.ReplaceAll(s, "_", "")) }
	return norm(mapKey) == norm(fieldName)
}

// numericStringHook 從 "第1天"、"¥1,200" 之類的字串取出數字
func numericStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
	default:
		return data, nil
	}
	s := strings.ReplaceAll(data.(string), ",", "")
	num := leadingNumberRe.FindString(s)
	if num == "" {
		return "0", nil
	}
	if to.Kind() != reflect.Float32 && to.Kind() != reflect.Float64 {
		// 整數欄位只取整數部分
		num, _, _ = strings.Cut(num, ".")
	}
	return num, nil
}
