package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteFiring records a schedule firing in the history bucket.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Tags carry the identifiers for filtering, the one_shot flag separates
// recurring from one-shot firings in queries.
func (c *Client) WriteFiring(scheduleID, deviceID, soundID string, oneShot bool, firedAt time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"schedule_firings",
		map[string]string{
			"schedule_id": scheduleID,
			"device_id":   deviceID,
			"sound_id":    soundID,
		},
		map[string]interface{}{
			"one_shot": oneShot,
			"count":    1,
		},
		firedAt,
	)

	c.writeAPI.WritePoint(point)
}

// WriteEvaluation records an evaluation pass for a device: how many enabled
// schedules were inspected and how many fired.
func (c *Client) WriteEvaluation(deviceID string, fired int, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"evaluations",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"fired":      fired,
			"elapsed_ms": elapsed.Seconds() * millisecondsPerSecond,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields,
// for measurements that don't fit the helpers.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
