package cglog

import (
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// startDailyRotation runs for the life of the process, calling sink.Rotate
// at each local midnight so the file sink actually rotates by day (spec.md:137)
// rather than only on lumberjack's size-based default. Grounded on the
// teacher's timeSleep/time.NewTimer loop shape (internal/graph/client.go).
func startDailyRotation(sink *lumberjack.Logger) {
	go func() {
		for {
			timer := time.NewTimer(time.Until(nextMidnight(time.Now())))
			<-timer.C
			timer.Stop()

			_ = sink.Rotate()
		}
	}()
}

func nextMidnight(from time.Time) time.Time {
	y, m, d := from.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, from.Location())
}
