// Package service defines the lifecycle contract shared by the physics
// backend, the audio output and the propagation loop, plus the Hub that
// starts and stops them in dependency order.
package service

// Service is a long-lived subsystem owning goroutines or devices
//
// Lifecycle:
//  1. Construction
//  2. Init(args...) - late configuration, e.g. parsed flags
//  3. Start() - launch goroutines, open devices
//  4. Stop() - halt and release; idempotent
type Service interface {
	// Name returns the unique identifier within a Hub
	Name() string

	// Dependencies returns names that must Init and Start first
	Dependencies() []string

	Init(args ...any) error
	Start() error
	Stop() error
}
