// Package influxdb records firing history for the cuckoo core.
//
// Every schedule firing and evaluation pass is written as a time-series
// point, giving an audit trail of what played where and when without
// touching the operational SQLite database. The integration is optional;
// with influxdb.enabled=false the poller simply skips history writes.
package influxdb
