package notify

import (
	"fmt"

	"go.uber.org/zap"
)

// LogChannel 把通知写入结构化日志
type LogChannel struct {
	log  *zap.Logger
	name string
}

// NewLogChannel 创建日志通知通道。log 可为 nil。
func NewLogChannel(name string, log *zap.Logger) *LogChannel {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogChannel{log: log, name: name}
}

// Send 按级别写入日志
func (c *LogChannel) Send(n Notice) error {
	fields := make([]zap.Field, 0, len(n.Fields)+1)
	fields = append(fields, zap.Time("ts", n.Timestamp))
	for k, v := range n.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	switch n.Level {
	case LevelError:
		c.log.Error(n.Message, fields...)
	case LevelWarning:
		c.log.Warn(n.Message, fields...)
	default:
		c.log.Info(n.Message, fields...)
	}
	return nil
}

// Name 返回通道名称
func (c *LogChannel) Name() string {
	return c.name
}

// ConsoleChannel 控制台通知通道（彩色输出）
type ConsoleChannel struct {
	name string
}

// NewConsoleChannel 创建控制台通知通道
func NewConsoleChannel(name string) *ConsoleChannel {
	return &ConsoleChannel{name: name}
}

// Send 带颜色输出到控制台
func (c *ConsoleChannel) Send(n Notice) error {
	colorReset := "\033[0m"
	colorCode := colorReset
	switch n.Level {
	case LevelInfo:
		colorCode = "\033[32m"
	case LevelWarning:
		colorCode = "\033[33m"
	case LevelError:
		colorCode = "\033[31m"
	}

	msg := fmt.Sprintf("%s[%s]%s %s - %s",
		colorCode,
		n.Level,
		colorReset,
		n.Timestamp.Format("2006-01-02 15:04:05"),
		n.Message,
	)
	if len(n.Fields) > 0 {
		msg += " |"
		for k, v := range n.Fields {
			msg += fmt.Sprintf(" %s=%v", k, v)
		}
	}

	fmt.Println(msg)
	return nil
}

// Name 返回通道名称
func (c *ConsoleChannel) Name() string {
	return c.name
}
