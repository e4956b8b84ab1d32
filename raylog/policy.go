package raylog

import (
	"errors"
	"os"

	"github.com/achilleasa/raystream/geometry"
	"github.com/achilleasa/raystream/log"
	"github.com/achilleasa/raystream/stream"
)

// A FatalHandler receives errors that the logger cannot recover from.
type FatalHandler func(error)

var logger = log.New("raylog")

// Classify an error as reported by the fatal policy.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, stream.ErrOpen), errors.Is(err, stream.ErrWrite), errors.Is(err, stream.ErrClosed):
		return "output unavailable"
	case errors.Is(err, geometry.ErrMisaligned):
		return "invariant violation"
	}
	return "internal error"
}

// Fatal is the default FatalHandler. A partially written log is worse than
// no log at all since replay tools trust the format, so the process exits.
func Fatal(err error) {
	logger.Criticalf("%s: %v", ErrorKind(err), err)
	os.Exit(1)
}
