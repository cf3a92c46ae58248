package tsdb

import (
	"context"
	"time"

	"github.com/mattlunn/karen-sub001/internal/event"
)

const mirrorReadTimeout = 5 * time.Second

// Logger defines the logging interface used by the Mirror.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// LatestReader is the subset of the event store the mirror reads from.
type LatestReader interface {
	Latest(ctx context.Context, subjectID, propertyKey string) (*event.Interval, error)
}

// PointWriter is the subset of the InfluxDB client the mirror writes to.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]interface{}, at time.Time)
}

// Mirror copies property changes into InfluxDB for external dashboards.
//
// Registered as a property-changed listener, it reads the latest interval
// for the changed key and writes one point per change: the measurement is
// the property key, tagged by subject. SQLite stays the source of truth;
// the mirror is strictly one-way and a lost point is not an error worth
// failing the write path for.
type Mirror struct {
	store  LatestReader
	writer PointWriter
	logger Logger
}

// NewMirror creates a mirror over the given store and writer.
func NewMirror(store LatestReader, writer PointWriter) *Mirror {
	return &Mirror{
		store:  store,
		writer: writer,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the mirror.
func (m *Mirror) SetLogger(logger Logger) {
	m.logger = logger
}

// Listener returns the property-changed listener to register with the
// event store.
func (m *Mirror) Listener() event.Listener {
	return func(subjectID, propertyKey string) {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorReadTimeout)
		defer cancel()

		iv, err := m.store.Latest(ctx, subjectID, propertyKey)
		if err != nil {
			m.logger.Warn("mirror failed to read latest interval",
				"subject", subjectID, "property", propertyKey, "error", err)
			return
		}

		at := iv.Start
		if iv.End != nil {
			at = *iv.End
		}

		m.writer.WritePoint(
			propertyKey,
			map[string]string{"subject_id": subjectID},
			map[string]interface{}{
				"value": iv.Value,
				"open":  iv.IsOpen(),
			},
			at,
		)
	}
}
