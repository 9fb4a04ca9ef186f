package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"session-board/internal/dto"
	"session-board/internal/model"
	pkgerrors "session-board/pkg/errors"
)

func TestCycleService_Execute_Assign(t *testing.T) {
	svc, m := setupTestService(nil)
	seedThreeForOneSeat(m)
	triggeredBy := "admin-1"

	result, err := svc.Cycle.Execute(context.Background(), ActionAssign, time.Time{}, &triggeredBy)
	if err != nil {
		t.Fatalf("Execute 应成功: %v", err)
	}
	if result.Allocation == nil || result.Rooms == nil {
		t.Fatalf("assign 应同时返回分配与房间结果: %+v", result)
	}
	if result.Rooms.Sessions != 2 {
		t.Errorf("期望为 2 个普通场次分配房间，实际=%d", result.Rooms.Sessions)
	}

	if len(m.runs.runs) != 1 {
		t.Fatalf("期望记录 1 次运行，实际=%d", len(m.runs.runs))
	}
	run := m.runs.runs[0]
	if run.Status != model.RunStatusSuccess || run.TriggeredBy == nil || *run.TriggeredBy != "admin-1" {
		t.Errorf("运行记录错误: %+v", run)
	}
	if day(run.WindowStart) != "2026-10-19" {
		t.Errorf("期望窗口从 2026-10-19 开始，实际=%s", day(run.WindowStart))
	}
	var summary dto.ActionResult
	if err := json.Unmarshal(run.Summary, &summary); err != nil {
		t.Fatalf("运行摘要应为合法 JSON: %v", err)
	}
	if summary.Allocation == nil || summary.Allocation.Placed != 2 {
		t.Errorf("运行摘要内容错误: %s", string(run.Summary))
	}
}

func TestCycleService_Execute_RecordsFailure(t *testing.T) {
	svc, m := setupTestService(nil)
	seedThreeForOneSeat(m)
	m.assignments.batchErr = errors.New("db down")

	if _, err := svc.Cycle.Execute(context.Background(), ActionAssign, testNow, nil); err == nil {
		t.Fatal("持久化失败应返回错误")
	}
	if len(m.runs.runs) != 1 || m.runs.runs[0].Status != model.RunStatusFailed || m.runs.runs[0].Error == "" {
		t.Errorf("失败也应记录运行结果: %+v", m.runs.runs)
	}
}

func TestCycleService_Execute_LockBusy(t *testing.T) {
	svc, m := setupTestService(busyLocker{})

	_, err := svc.Cycle.Execute(context.Background(), ActionKarma, testNow, nil)
	if !errors.Is(err, pkgerrors.ErrLockNotAcquired) {
		t.Errorf("期望 ErrLockNotAcquired，实际: %v", err)
	}
	if len(m.runs.runs) != 0 {
		t.Error("未获得锁时不应执行也不应记录")
	}
}

func TestCycleService_Execute_UnknownAction(t *testing.T) {
	svc, _ := setupTestService(nil)

	if _, err := svc.Cycle.Execute(context.Background(), "explode", testNow, nil); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("期望 ErrUnknownAction，实际: %v", err)
	}
}

func TestCycleService_Execute_ReleaseAndReset(t *testing.T) {
	svc, m := setupTestService(nil)
	m.session("A", ymd(2026, 10, 21), 2)
	ctx := context.Background()

	result, err := svc.Cycle.Execute(ctx, ActionRelease, testNow, nil)
	if err != nil {
		t.Fatalf("release 应成功: %v", err)
	}
	if result.Release == nil || !result.Release.Released || !m.sessions.sessions["A"].ReleaseAssignments {
		t.Errorf("release 结果错误: %+v", result.Release)
	}

	if _, err := svc.Cycle.Execute(ctx, ActionReset, testNow, nil); err != nil {
		t.Fatalf("reset 应成功: %v", err)
	}
	if m.sessions.sessions["A"].ReleaseAssignments {
		t.Error("reset 后应撤回发布")
	}
}

func TestCycleService_Execute_KarmaAndPurge(t *testing.T) {
	svc, m := setupTestService(nil)
	p := m.participant("p", 1000)
	m.session("S", ymd(2026, 10, 14), 2)
	m.assign("p", "S", intRef(2))
	ctx := context.Background()

	result, err := svc.Cycle.Execute(ctx, ActionKarma, testNow, nil)
	if err != nil {
		t.Fatalf("karma 应成功: %v", err)
	}
	if result.Settlement == nil || p.Reputation != 1120 {
		t.Errorf("结算结果错误: %+v reputation=%d", result.Settlement, p.Reputation)
	}

	result, err = svc.Cycle.Execute(ctx, ActionPurge, testNow, nil)
	if err != nil {
		t.Fatalf("purge 应成功: %v", err)
	}
	if result.Purge == nil || result.Purge.Deleted != 0 {
		t.Errorf("保留期内不应清理: %+v", result.Purge)
	}
}

func TestCycleService_ListRuns(t *testing.T) {
	svc, m := setupTestService(nil)
	m.session("A", ymd(2026, 10, 21), 2)
	ctx := context.Background()
	for _, action := range []string{ActionRelease, ActionReset, ActionRelease} {
		if _, err := svc.Cycle.Execute(ctx, action, testNow, nil); err != nil {
			t.Fatalf("%s 失败: %v", action, err)
		}
	}

	runs, total, err := svc.Cycle.ListRuns(ctx, &dto.RunListRequest{Action: ActionRelease})
	if err != nil {
		t.Fatalf("ListRuns 应成功: %v", err)
	}
	if total != 2 || len(runs) != 2 {
		t.Errorf("期望 2 条 release 记录，实际 total=%d len=%d", total, len(runs))
	}
	if len(runs) > 0 && len(runs[0].Summary) == 0 {
		t.Error("运行记录应包含摘要")
	}
}

func TestLocalLocker(t *testing.T) {
	l := newLocalLocker()
	ctx := context.Background()

	token, ok, err := l.AcquireLock(ctx, "k", time.Minute)
	if err != nil || !ok {
		t.Fatalf("首次加锁应成功: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := l.AcquireLock(ctx, "k", time.Minute); ok {
		t.Error("锁已被持有时不应再次获得")
	}
	if _, ok, _ := l.AcquireLock(ctx, "other", time.Minute); !ok {
		t.Error("不同 key 互不影响")
	}

	_ = l.ReleaseLock(ctx, "k", "wrong-token")
	if _, ok, _ := l.AcquireLock(ctx, "k", time.Minute); ok {
		t.Error("错误的 token 不应释放锁")
	}
	_ = l.ReleaseLock(ctx, "k", token)
	if _, ok, _ := l.AcquireLock(ctx, "k", time.Minute); !ok {
		t.Error("释放后应可重新加锁")
	}
}
