/*
Package storage provides the pluggable store behind the sensor dashboard.

Backends:
  - memory: in-process slice, used by tests and STORE_BACKEND=memory
  - badger: embedded LSM store for single-box installs
  - influx: the InfluxDB bucket the sensor bridge writes to

All backends implement Storage. Queries are described by a QueryRequest
whose range comes from an enumerated sensor.Window, so no free-form text
ever reaches a backend query.

Backends that can join temperature and humidity on timestamp themselves
(influx, via Flux pivot) also implement Pivoter. Callers fall back to
merging the two series in Go when a backend does not.

Retention is the caller's job: the server deletes observations older than
the longest window on a schedule (see pkg/server).
*/
package storage
