package log

import "go.uber.org/atomic"

var (
	_ WithLogger   = &Binder{}
	_ LoggerBinder = &Binder{}
)

// WithLogger 暴露组件当前绑定的 Logger。
type WithLogger interface {
	Logger() *MLogger
}

// LoggerBinder 允许在运行期为组件替换 Logger。
type LoggerBinder interface {
	SetLogger(logger *MLogger)
}

// Binder 是可嵌入类型，为长生命周期组件提供独立的命名 Logger。
// 进程启动时由装配代码把配置文件 logging: 段构建的 Logger 绑定上来，
// 未绑定时组件回退到全局 Logger，日志不会丢失。
type Binder struct {
	logger atomic.Pointer[MLogger]
}

// SetLogger 将 Logger 绑定到 Binder 上，并发安全，可重复调用。
func (w *Binder) SetLogger(logger *MLogger) {
	w.logger.Store(logger)
}

// Logger 返回当前绑定的 Logger，未绑定时返回全局 Logger。
func (w *Binder) Logger() *MLogger {
	l := w.logger.Load()
	if l == nil {
		return With()
	}
	return l
}
