// Package poller drives periodic schedule evaluation across all registered
// devices, publishing play notifications over MQTT and recording firing
// history in InfluxDB when those integrations are enabled.
package poller
