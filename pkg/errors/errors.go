package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrLockNotAcquired 同一窗口已有周期动作在执行
var ErrLockNotAcquired = errors.New("该窗口正在执行其他分配任务，请稍后重试")

// ErrCapacityExceeded 目标场次已满
var ErrCapacityExceeded = errors.New("场次名额已满")
