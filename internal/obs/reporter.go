package obs

import "github.com/yanun0323/logs"

// Level info, warning, serious
type Level uint8

const (
	_level_beg Level = iota
	LevelInfo
	LevelWarning
	LevelSerious
	_level_end
)

func (l Level) IsAvailable() bool {
	return l > _level_beg && l < _level_end
}

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelSerious:
		return "serious"
	default:
		return "unknown"
	}
}

// Reporter receives monitoring events raised by the engine. It is
// injected at construction; the engine never depends on a concrete
// transport.
type Reporter interface {
	Report(level Level, event string, format string, args ...any)
}

// LogReporter writes monitoring events to the process log.
type LogReporter struct{}

func (LogReporter) Report(level Level, event string, format string, args ...any) {
	args = append([]any{event}, args...)
	switch level {
	case LevelSerious:
		logs.Errorf("[%s] "+format, args...)
	case LevelWarning:
		logs.Warnf("[%s] "+format, args...)
	default:
		logs.Infof("[%s] "+format, args...)
	}
}

// NopReporter discards every event.
type NopReporter struct{}

func (NopReporter) Report(Level, string, string, ...any) {}
