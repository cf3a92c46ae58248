// Package tsdb mirrors interval changes into InfluxDB for external
// dashboards and long-term retention.
//
// The mirror is optional and one-way: SQLite remains the source of truth,
// and InfluxDB receives a point per property change via the event store's
// listener mechanism. Writes are batched and non-blocking so a slow or
// absent InfluxDB never stalls the write path.
package tsdb
