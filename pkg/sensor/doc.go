// Package sensor holds the domain types shared by every layer of the
// telemetry pipeline: measurements, observations, pivoted rows and the
// enumerated look-back windows.
//
// Windows are the only way a time range enters the system. A Window can
// only be produced by ParseWindow or one of the exported constants, so
// every range that reaches a store query is one of a handful of constant
// strings (see Window.Token).
package sensor
