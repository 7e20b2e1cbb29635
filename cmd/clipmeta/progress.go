package main

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/John-Robertt/clipmeta/internal/app/run"
	"github.com/John-Robertt/clipmeta/internal/logging"
)

var _ run.Observer = (*logObserver)(nil)

// logObserver 把 run 层的阶段事件写成结构化日志（stderr），stdout 只留给结果 JSON。
type logObserver struct {
	log logging.Logger
}

func newLogObserver(log logging.Logger) *logObserver {
	if log == nil {
		log = logging.Nop()
	}
	return &logObserver{log: log}
}

func (o *logObserver) OnStart(mode run.Mode, target string) {
	o.log.Info("开始", logging.String("mode", string(mode)), logging.String("target", truncate(target, 200)))
}

func (o *logObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	fs := []logging.Field{logging.String("phase", name), logging.String("took", formatShortDuration(dur))}
	if msg, ok := fields["error"].(string); ok {
		o.log.Warn("阶段失败", append(fs, logging.String("error", truncate(msg, 200)))...)
		return
	}
	fs = append(fs, logging.String("detail", formatFields(fields)))
	o.log.Debug("阶段完成", fs...)
}

func (o *logObserver) OnFinish(mode run.Mode, err error, dur time.Duration) {
	fs := []logging.Field{logging.String("mode", string(mode)), logging.String("took", formatShortDuration(dur))}
	if err != nil {
		o.log.Debug("结束（失败）", fs...)
		return
	}
	o.log.Info("完成", fs...)
}

// formatFields 按 key 排序输出 k=v，保证日志行稳定。
func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, truncate(fmt.Sprint(fields[k]), 120)))
	}
	return strings.Join(parts, " ")
}

// truncate 按字节上限截断，但只在 rune 边界处切，保证日志里是合法 UTF-8。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:runeBoundary(s, max)]
	}
	return s[:runeBoundary(s, max-3)] + "..."
}

func runeBoundary(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
