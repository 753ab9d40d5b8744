// Package driving provides interfaces for application entry points
// (primary/inbound ports).
//
// The CLI depends on these interfaces; concrete implementations live
// in internal/core/services.
package driving
