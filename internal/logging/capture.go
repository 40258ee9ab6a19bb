package logging

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Capture is a logrus hook that keeps formatted lines until drained. Once
// max lines are buffered the oldest are discarded.
type Capture struct {
	max int

	mu    sync.Mutex
	lines []string
}

func NewCapture(max int) *Capture {
	if max <= 0 {
		max = 1000
	}
	return &Capture{max: max}
}

func (c *Capture) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel, logrus.InfoLevel}
}

func (c *Capture) Fire(e *logrus.Entry) error {
	line := fmt.Sprintf("%s %s %s", e.Time.Format("15:04:05"), e.Level.String(), e.Message)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	if over := len(c.lines) - c.max; over > 0 {
		c.lines = append(c.lines[:0], c.lines[over:]...)
	}
	return nil
}

// Drain returns buffered lines and empties the buffer.
func (c *Capture) Drain() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.lines
	c.lines = nil
	return out
}

// NewLogger returns a logger that writes where the standard logger does,
// at its level and format, with the given hooks attached.
func NewLogger(hooks ...logrus.Hook) *logrus.Logger {
	std := logrus.StandardLogger()
	l := logrus.New()
	l.SetOutput(std.Out)
	l.SetLevel(std.GetLevel())
	l.SetFormatter(std.Formatter)
	for _, h := range hooks {
		l.AddHook(h)
	}
	return l
}
