package run

import "time"

// Observer 用于把“运行阶段/耗时”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）
// - 执行是严格串行的，事件按发生顺序到达
type Observer interface {
	// OnStart 在确定执行路径后调用；target 是详情页 URL 或搜索词。
	OnStart(mode Mode, target string)
	// OnPhaseDone 在每个阶段结束时调用（成功与失败都会调用，失败时 fields 含 "error"）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnFinish 在 Execute 返回前调用。
	OnFinish(mode Mode, err error, dur time.Duration)
}

type nopObserver struct{}

func (nopObserver) OnStart(Mode, string)                              {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration) {}
func (nopObserver) OnFinish(Mode, error, time.Duration)               {}
