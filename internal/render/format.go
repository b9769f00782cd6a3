package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cvforge/internal/i18n"
	"cvforge/internal/resume"
)

// MonthStyle 控制年月日期中月份的写法。
type MonthStyle int

const (
	MonthShort MonthStyle = iota
	MonthLong
)

var yearMonthPattern = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// FormatDate 把 "YYYY-MM" 格式化为本地化的 "月 年"，其余输入原样返回。
func FormatDate(value string, labels i18n.Labels, style MonthStyle) string {
	value = strings.TrimSpace(value)
	m := yearMonthPattern.FindStringSubmatch(value)
	if m == nil {
		return value
	}
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return value
	}
	names := labels.ShortMonths
	if style == MonthLong {
		names = labels.LongMonths
	}
	return names[month-1] + " " + m[1]
}

// FormatPeriod 生成 "开始 - 结束" 区间；在职条目忽略结束日期，显示本地化的 Present。
func FormatPeriod(start, end string, current bool, labels i18n.Labels, style MonthStyle) string {
	from := FormatDate(start, labels, style)
	to := FormatDate(end, labels, style)
	if current {
		to = labels.Present
	}
	switch {
	case from == "" && to == "":
		return ""
	case from == "":
		return to
	case to == "":
		return from
	default:
		return from + " - " + to
	}
}

// FormatSignatureDate 按 long/short 输出签名日期，无法解析的日期原样返回。
func FormatSignatureDate(value, format string, labels i18n.Labels) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, value); err != nil {
			return value
		}
	}
	if format == resume.DateFormatShort {
		if labels.Language == i18n.FR {
			return t.Format("02/01/2006")
		}
		return t.Format("01/02/2006")
	}
	month := labels.LongMonths[t.Month()-1]
	if labels.Language == i18n.FR {
		return fmt.Sprintf("%d %s %d", t.Day(), month, t.Year())
	}
	return fmt.Sprintf("%s %d, %d", month, t.Day(), t.Year())
}

// descriptionLines 把多行描述拆成要点，丢弃空行。
func descriptionLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
