package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteExecutionMetric records one command-event execution through the pipeline.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - aliasID: The alias the event targeted (e.g., "tv-living")
//   - command: The cloud command name (e.g., "action.devices.commands.OnOff")
//   - outcome: Terminal phase of the run ("acknowledged" or "failed")
//   - duration: Wall-clock time from pickup to terminal phase
//
// Example:
//
//	client.WriteExecutionMetric("tv-living", "action.devices.commands.OnOff", "acknowledged", 230*time.Millisecond)
func (c *Client) WriteExecutionMetric(aliasID, command, outcome string, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"command_execution",
		map[string]string{
			"alias_id": aliasID,
			"command":  command,
			"outcome":  outcome,
		},
		map[string]interface{}{
			"duration_ms": float64(duration.Milliseconds()),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDispatchMetric records a hardware dispatch to an IR blaster.
//
// Parameters:
//   - remoteID: The remote whose code set was used
//   - codes: Number of IR waveforms transmitted
//   - duration: Time spent in discovery plus transmission
func (c *Client) WriteDispatchMetric(remoteID string, codes int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"ir_dispatch",
		map[string]string{
			"remote_id": remoteID,
		},
		map[string]interface{}{
			"codes":       codes,
			"duration_ms": float64(duration.Milliseconds()),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
