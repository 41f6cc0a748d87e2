package console

import (
	"fmt"
	"strings"

	"quotebot/internal/domain/model"
)

const (
	ansiReset = "\033[0m"
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiBold  = "\033[1m"
	ansiDim   = "\033[2m"
)

// Trend 涨跌方向，按 change 是否以 '-' 开头判断
type Trend int

const (
	TrendUp Trend = iota
	TrendDown
)

func TrendOf(q *model.Quote) Trend {
	if strings.HasPrefix(q.Price.Change.String(), "-") {
		return TrendDown
	}
	return TrendUp
}

type Formatter struct {
	Color bool
}

func NewFormatter(color bool) *Formatter {
	return &Formatter{Color: color}
}

func (f *Formatter) colorize(s, c string) string {
	if !f.Color {
		return s
	}
	return c + s + ansiReset
}

// Format 渲染一条报价
//
//	GameStop Corp. (GME) ▲
//	  Current Price: $180.00
//	  Previous Close Price: $150.00
//	  Change: $30.00 (20.00%)
func (f *Formatter) Format(q *model.Quote) string {
	marker, col := "▲", ansiGreen
	if TrendOf(q) == TrendDown {
		marker, col = "▼", ansiRed
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", f.colorize(fmt.Sprintf("%s (%s)", q.DisplayName, q.Symbol), ansiBold), f.colorize(marker, col))
	fmt.Fprintf(&sb, "  Current Price: $%s\n", q.Price.Current)
	fmt.Fprintf(&sb, "  Previous Close Price: $%s\n", q.Price.Previous)
	fmt.Fprintf(&sb, "  Change: %s", f.colorize(fmt.Sprintf("$%s (%s)", q.Price.Change, percent(q.Price.Percent)), col))

	var meta []string
	if q.MarketState != "" && q.MarketState != model.MarketRegular {
		meta = append(meta, string(q.MarketState))
	}
	if !q.AsOf.IsZero() {
		meta = append(meta, q.AsOf.Format("15:04:05"))
	}
	if len(meta) > 0 {
		sb.WriteString(" " + f.colorize("["+strings.Join(meta, " ")+"]", ansiDim))
	}
	return sb.String()
}

// percent 格式化字符串自带 %，数值需要补上
func percent(v model.Value) string {
	s := v.String()
	if s == "" || strings.HasSuffix(s, "%") {
		return s
	}
	return v.Num.StringFixed(2) + "%"
}
