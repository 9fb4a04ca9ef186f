package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
)

// ── ExportWeek 测试 ──

func TestExportService_ExportWeek_Empty(t *testing.T) {
	svc, _ := setupTestService(nil)

	_, _, err := svc.Export.ExportWeek(context.Background(), time.Time{})
	if !errors.Is(err, ErrExportNoAssignments) {
		t.Errorf("期望 ErrExportNoAssignments，实际: %v", err)
	}
}

func TestExportService_ExportWeek_Success(t *testing.T) {
	svc, m := setupTestService(nil)
	m.participant("alice", 1000)
	m.participant("bob", 1000)
	s := m.session("A", ymd(2026, 10, 21), 2)
	room := "Hall"
	s.RequestedRoom = &room
	m.waitingList("wl", ymd(2026, 10, 21))
	m.assign("alice", "A", intRef(2))
	m.assign("bob", "wl", nil)

	buf, filename, err := svc.Export.ExportWeek(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("ExportWeek 应成功: %v", err)
	}
	if filename != "名册_2026-10-19.xlsx" {
		t.Errorf("文件名错误: %s", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("应能解析生成的 Excel: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("分配")
	if err != nil {
		t.Fatalf("读取分配 Sheet 失败: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("期望表头 + 1 行，实际=%d", len(rows))
	}
	if got := rows[1]; got[2] != "Hall" || got[3] != "alice" || got[4] != "2" {
		t.Errorf("分配行内容错误: %v", got)
	}

	waiting, err := f.GetRows("候补")
	if err != nil {
		t.Fatalf("读取候补 Sheet 失败: %v", err)
	}
	if len(waiting) != 2 || waiting[1][1] != "bob" {
		t.Errorf("候补 Sheet 内容错误: %v", waiting)
	}
}

// ── CalendarFeed 测试 ──

func TestExportService_CalendarFeed(t *testing.T) {
	svc, m := setupTestService(nil)
	m.participant("alice", 1000)
	released := m.session("A", ymd(2026, 10, 21), 2)
	released.ReleaseAssignments = true
	room := "Blue"
	released.RequestedRoom = &room
	m.session("hidden", ymd(2026, 10, 22), 2)
	m.assign("alice", "A", intRef(1))
	m.assign("alice", "hidden", intRef(1))

	feed, err := svc.Export.CalendarFeed(context.Background(), "alice")
	if err != nil {
		t.Fatalf("CalendarFeed 应成功: %v", err)
	}

	cal, err := ics.ParseCalendar(strings.NewReader(feed))
	if err != nil {
		t.Fatalf("应能解析生成的日历: %v", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("只应包含已发布的场次，实际=%d", len(events))
	}
	if got := events[0].GetProperty(ics.ComponentPropertySummary).Value; got != "场次 A" {
		t.Errorf("事件标题错误: %s", got)
	}
	if got := events[0].GetProperty(ics.ComponentPropertyLocation).Value; got != "Blue" {
		t.Errorf("事件地点错误: %s", got)
	}
	if got := events[0].GetProperty(ics.ComponentPropertyDtStart).Value; got != "20261021" {
		t.Errorf("应为全天事件，实际 DTSTART=%s", got)
	}
}
