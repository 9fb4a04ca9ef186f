package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"session-board/internal/model"
	"session-board/internal/repository"
	"session-board/pkg/calendar"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoAssignments = errors.New("该周暂无分配")
	ErrExportGenerateFail  = errors.New("生成 Excel 文件失败")
)

// 日历订阅覆盖的范围
const (
	feedLookBack  = 7 * 24 * time.Hour
	feedLookAhead = 8 * 7 * 24 * time.Hour
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 名册导出为 Excel (.xlsx)，普通分配与候补分别放在两个 Sheet
//   - 日历订阅只包含已发布的普通场次分配
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportWeek 导出 date 所在待分配周的名册
	ExportWeek(ctx context.Context, date time.Time) (*bytes.Buffer, string, error)
	// CalendarFeed 生成参与者的 iCalendar 订阅
	CalendarFeed(ctx context.Context, participantID string) (string, error)
}

type exportService struct {
	repo   *repository.Repository
	clock  *clock
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, clk *clock, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, clock: clk, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportWeek — 导出一周名册
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "分配"：日期 | 场次 | 房间 | 参与者 | 志愿 | 出席
//   - Sheet "候补"：日期 | 参与者
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportWeek(ctx context.Context, date time.Time) (*bytes.Buffer, string, error) {
	window := calendar.UpcomingWeek(s.clock.OrToday(date))

	list, err := s.repo.Assignment.ListByDateRange(ctx, window.Start, window.End)
	if err != nil {
		s.logger.Error("查询分配失败", zap.Error(err))
		return nil, "", err
	}
	if len(list) == 0 {
		return nil, "", ErrExportNoAssignments
	}

	f := excelize.NewFile()
	defer f.Close()

	const mainSheet, waitingSheet = "分配", "候补"
	idx, _ := f.NewSheet(mainSheet)
	f.SetActiveSheet(idx)
	f.NewSheet(waitingSheet)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	writeHeader := func(sheet string, titles []string) {
		for i, title := range titles {
			f.SetCellValue(sheet, cell(colName(i), 1), title)
		}
		f.SetCellStyle(sheet, "A1", cell(colName(len(titles)-1), 1), headerStyle)
	}
	writeHeader(mainSheet, []string{"日期", "场次", "房间", "参与者", "志愿", "出席"})
	writeHeader(waitingSheet, []string{"日期", "参与者"})

	f.SetColWidth(mainSheet, "A", "A", 12)
	f.SetColWidth(mainSheet, "B", "B", 32)
	f.SetColWidth(mainSheet, "C", "D", 18)
	f.SetColWidth(waitingSheet, "A", "A", 12)
	f.SetColWidth(waitingSheet, "B", "B", 24)

	mainRow, waitingRow := 2, 2
	for _, a := range list {
		if a.Session == nil {
			continue
		}
		name := a.ParticipantID
		if a.Participant != nil {
			name = a.Participant.DisplayName
		}
		day := a.Session.ScheduledDate.Format(dateLayout)

		if a.Session.WaitingList != model.WaitingListNone {
			f.SetCellValue(waitingSheet, cell("A", waitingRow), day)
			f.SetCellValue(waitingSheet, cell("B", waitingRow), name)
			waitingRow++
			continue
		}

		room := "-"
		if a.Session.RequestedRoom != nil {
			room = *a.Session.RequestedRoom
		}
		place := "-"
		if a.PreferencePlace != nil {
			place = fmt.Sprintf("%d", *a.PreferencePlace)
		}
		appeared := "是"
		if !a.Appeared {
			appeared = "否"
		}
		f.SetCellValue(mainSheet, cell("A", mainRow), day)
		f.SetCellValue(mainSheet, cell("B", mainRow), a.Session.Title)
		f.SetCellValue(mainSheet, cell("C", mainRow), room)
		f.SetCellValue(mainSheet, cell("D", mainRow), name)
		f.SetCellValue(mainSheet, cell("E", mainRow), place)
		f.SetCellValue(mainSheet, cell("F", mainRow), appeared)
		mainRow++
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("名册_%s.xlsx", window.Start.Format(dateLayout))
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// CalendarFeed — 参与者日历订阅
// ═══════════════════════════════════════════════════════════

func (s *exportService) CalendarFeed(ctx context.Context, participantID string) (string, error) {
	now := s.clock.Now()
	start := s.clock.Date(now.Add(-feedLookBack))
	end := s.clock.Date(now.Add(feedLookAhead))

	list, err := s.repo.Assignment.ListByParticipant(ctx, participantID, start, end)
	if err != nil {
		s.logger.Error("查询分配失败", zap.Error(err))
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//session-board//assignments//ZH")
	cal.SetXWRCalName("我的场次")

	events := 0
	for _, a := range list {
		sess := a.Session
		if sess == nil || !sess.ReleaseAssignments || sess.WaitingList != model.WaitingListNone {
			continue
		}
		day := s.clock.Date(sess.ScheduledDate)

		evt := cal.AddEvent(a.AssignmentID + "@session-board")
		evt.SetDtStampTime(a.CreatedAt)
		evt.SetAllDayStartAt(day)
		evt.SetAllDayEndAt(day.AddDate(0, 0, 1))
		evt.SetSummary(sess.Title)
		if sess.Description != "" {
			evt.SetDescription(sess.Description)
		}
		if sess.RequestedRoom != nil {
			evt.SetLocation(*sess.RequestedRoom)
		}
		events++
	}

	s.logger.Debug("生成日历订阅", zap.String("participant_id", participantID), zap.Int("events", events))
	return cal.Serialize(), nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
