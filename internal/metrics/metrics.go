// Package metrics keeps process-wide counters for the bus and reports them
// periodically through the logger.
package metrics

import (
	"bytes"
	"context"
	"time"

	"github.com/life-stream-dev/life-stream-go-bus/internal/logger"
	gometrics "github.com/rcrowley/go-metrics"
)

const (
	Sessions          = "sessions"
	Channels          = "channels"
	Publishes         = "publishes"
	Deliveries        = "deliveries"
	DroppedDeliveries = "deliveries.dropped"
	MalformedCommands = "commands.malformed"
	InvalidCommands   = "commands.invalid"
	BytesReceived     = "bytes.received"
)

var reg = gometrics.NewRegistry()

func Incr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, reg).Inc(i)
}

func Decr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, reg).Dec(i)
}

// Mark records i events on the named meter.
func Mark(name string, i int64) {
	gometrics.GetOrRegisterMeter(name, reg).Mark(i)
}

// Count returns the current value of a counter, 0 if it was never touched.
func Count(name string) int64 {
	if c, ok := reg.Get(name).(gometrics.Counter); ok {
		return c.Count()
	}
	return 0
}

// Snapshot renders every registered metric as one JSON document.
func Snapshot() string {
	var buf bytes.Buffer
	gometrics.WriteJSONOnce(reg, &buf)
	return string(bytes.TrimSpace(buf.Bytes()))
}

// Report logs a snapshot every interval until ctx is done.
func Report(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			logger.InfoF("Metrics %s", Snapshot())
		}
	}
}

// Flush logs a final snapshot.
func Flush(_ context.Context) error {
	logger.InfoF("Final metrics %s", Snapshot())
	return nil
}
