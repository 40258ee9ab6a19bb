package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Tick func(ctx context.Context) error

// Every runs task immediately and then on each interval until ctx ends.
// Errors are logged and do not stop the loop.
func Every(ctx context.Context, interval time.Duration, name string, task Tick) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	run := func() {
		if err := task(ctx); err != nil {
			logrus.Warnf("[%s] error: %v", name, err)
		}
	}

	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run()
		}
	}
}
