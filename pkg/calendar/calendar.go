// Package calendar 提供排班窗口（周 / 月）的日期计算。
//
// 所有窗口都是纯日期区间：Start 与 End 均为所在时区的 00:00，End 为闭区间的最后一天。
package calendar

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Window 一个闭区间日期窗口 [Start, End]
type Window struct {
	Start time.Time
	End   time.Time
}

// Date 截断到所在时区的 00:00
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDate 以指定时区解析 YYYY-MM-DD
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("日期格式错误 %q: %w", s, err)
	}
	return t, nil
}

// ThisWeek 返回 d 所在的周一至周日
func ThisWeek(d time.Time) Window {
	d = Date(d)
	// time.Weekday 以周日为 0，换算为周一为 0
	offset := (int(d.Weekday()) + 6) % 7
	start := d.AddDate(0, 0, -offset)
	return Window{Start: start, End: start.AddDate(0, 0, 6)}
}

// UpcomingWeek 周一至周三返回本周，周四至周日返回下周
func UpcomingWeek(d time.Time) Window {
	d = Date(d)
	switch d.Weekday() {
	case time.Monday, time.Tuesday, time.Wednesday:
		return ThisWeek(d)
	default:
		return ThisWeek(d.AddDate(0, 0, 7))
	}
}

// ThisMonth 返回 d 所在自然月
func ThisMonth(d time.Time) Window {
	d = Date(d)
	start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
	return Window{Start: start, End: start.AddDate(0, 1, -1)}
}

// NextWednesday d 本身是周三则返回 d，否则返回之后最近的周三
func NextWednesday(d time.Time) time.Time {
	d = Date(d)
	days := (int(time.Wednesday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, days)
}

// Contains 判断 t 所在日期是否落在窗口内
func (w Window) Contains(t time.Time) bool {
	day := Date(t.In(w.Start.Location()))
	return !day.Before(w.Start) && !day.After(w.End)
}

// Wednesday 窗口内的周三，候补场次挂在这一天
func (w Window) Wednesday() time.Time {
	return NextWednesday(w.Start)
}

// Next 返回紧随其后的等长窗口
func (w Window) Next() Window {
	days := int(w.End.Sub(w.Start).Hours()/24) + 1
	return Window{Start: w.Start.AddDate(0, 0, days), End: w.End.AddDate(0, 0, days)}
}

// EndExclusive 窗口结束后一天的 00:00，便于构造 [start, end) 查询
func (w Window) EndExclusive() time.Time {
	return w.End.AddDate(0, 0, 1)
}

func (w Window) String() string {
	return w.Start.Format(dateLayout) + ".." + w.End.Format(dateLayout)
}
