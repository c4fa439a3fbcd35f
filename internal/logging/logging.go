// Package logging wraps github.com/pion/logging the way the teacher's
// internal/logging wraps the standard log package: a small Logger facade
// plus a package-level Default()/SetDefault() pair, but backed here by a
// pion logging.LoggerFactory so an embedding application can redirect or
// filter engine logs the way pion libraries let callers scope loggers per
// subsystem.
package logging

import (
	"sync"

	"github.com/pion/logging"
)

// Logger is the facade the engine logs through. It is satisfied directly by
// *logging.DefaultLeveledLogger (pion/logging's default implementation).
type Logger = logging.LeveledLogger

var (
	mu      sync.RWMutex
	factory logging.LoggerFactory = logging.NewDefaultLoggerFactory()
	def     Logger               = factory.NewLogger("rma")
)

// SetFactory swaps the LoggerFactory used for Default() and Scoped(). Call
// before constructing any Domain to redirect all engine logging.
func SetFactory(f logging.LoggerFactory) {
	mu.Lock()
	defer mu.Unlock()
	factory = f
	def = factory.NewLogger("rma")
}

// Default returns the package-wide default logger, scoped "rma".
func Default() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return def
}

// SetDefault overrides the package-wide default logger directly, bypassing
// the factory. Mainly useful in tests that want a capturing logger.
func SetDefault(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	def = l
}

// Scoped returns a logger scoped to "rma.domain.<name>", mirroring how
// pion libraries hand each subsystem its own named logger.
func Scoped(name string) Logger {
	mu.RLock()
	f := factory
	mu.RUnlock()
	return f.NewLogger("rma.domain." + name)
}
