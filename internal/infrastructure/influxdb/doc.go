// Package influxdb provides time-series metric recording for the IR hub.
//
// The pipeline records one point per command execution (alias, command,
// outcome, duration) and one per hardware dispatch. Writes are non-blocking
// and batched by the underlying InfluxDB v2 client; a failed or disabled
// metrics backend never blocks command execution.
//
// The package is optional: when disabled in config, Connect returns
// ErrDisabled and callers run without a metrics client.
package influxdb
