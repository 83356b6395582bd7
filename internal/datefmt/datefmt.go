// 包 datefmt 负责发布日期的解析与展示（dd MMM yyyy，按语言输出月份缩写）。
// 日期缺失或无法解析时输出固定占位文案，不伪造日期，也不返回错误。
package datefmt

import (
	"strings"
	"time"
)

var months = map[string][12]string{
	"pt": {"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"},
	"en": {"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	"zh": {"1月", "2月", "3月", "4月", "5月", "6月", "7月", "8月", "9月", "10月", "11月", "12月"},
}

var placeholders = map[string]string{
	"pt": "Data indisponível",
	"en": "Date unavailable",
	"zh": "日期未知",
}

// 内容 API 的时间格式为 2021-03-15T19:25:28+0000，同时兼容 RFC3339。
var layouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
}

// Formatter 按语言格式化日期；Placeholder 为空时使用该语言的默认占位文案。
type Formatter struct {
	Locale      string
	Placeholder string
	Location    *time.Location
}

// New 创建 Formatter，locale 为空时默认 pt-BR。
func New(locale, placeholder string) Formatter {
	if strings.TrimSpace(locale) == "" {
		locale = "pt-BR"
	}
	return Formatter{Locale: locale, Placeholder: placeholder}
}

func (f Formatter) lang() string {
	l := strings.ToLower(strings.TrimSpace(f.Locale))
	for k := range months {
		if strings.HasPrefix(l, k) {
			return k
		}
	}
	return "pt"
}

// PlaceholderLabel 返回日期缺失时展示的文案。
func (f Formatter) PlaceholderLabel() string {
	if f.Placeholder != "" {
		return f.Placeholder
	}
	return placeholders[f.lang()]
}

// Format 输出形如 "15 mar 2021" 的日期；nil 或零值返回占位文案。
func (f Formatter) Format(t *time.Time) string {
	if t == nil || t.IsZero() {
		return f.PlaceholderLabel()
	}
	tt := *t
	if f.Location != nil {
		tt = tt.In(f.Location)
	}
	m := months[f.lang()][tt.Month()-1]
	if f.lang() == "zh" {
		return tt.Format("2006年") + m + tt.Format("02日")
	}
	return tt.Format("02") + " " + m + " " + tt.Format("2006")
}

// FormatRaw 解析原始字符串后格式化；解析失败返回占位文案。
func (f Formatter) FormatRaw(raw string) string {
	t, ok := Parse(raw)
	if !ok {
		return f.PlaceholderLabel()
	}
	return f.Format(&t)
}

// Parse 尝试按已知格式解析时间字符串。
func Parse(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParsePtr 与 Parse 相同，失败时返回 nil，便于填充可空字段。
func ParsePtr(raw string) *time.Time {
	t, ok := Parse(raw)
	if !ok {
		return nil
	}
	return &t
}
