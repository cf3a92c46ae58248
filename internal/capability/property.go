package capability

import (
	"context"
	"fmt"
	"time"
)

// Kind is the value type of a property.
type Kind string

const (
	KindBool   Kind = "bool"
	KindNumber Kind = "number"
)

// PropertyDescriptor declares one property of a capability.
//
// StorageKey is the property key used in the event log; it may differ from
// Name when several capabilities share an underlying observation. Writeable
// properties accept hardware commands through Set; all properties accept
// observed values through SetState.
type PropertyDescriptor struct {
	Name       string
	Kind       Kind
	StorageKey string
	Writeable  bool
}

// Store is the subset of the event store the capability layer writes
// observations to and reads current values from.
type Store interface {
	GetBool(ctx context.Context, subjectID, propertyKey string) (bool, error)
	SetBool(ctx context.Context, subjectID, propertyKey string, value bool, at time.Time) error
	GetNumber(ctx context.Context, subjectID, propertyKey string) (float64, error)
	SetNumber(ctx context.Context, subjectID, propertyKey string, value float64, at time.Time) error
}

// Property exposes one typed property of a built capability. Boolean
// properties are carried as float64 with 0 = false, anything else = true.
type Property struct {
	desc      PropertyDescriptor
	subjectID string
	store     Store
	handler   Handler
}

// Descriptor returns the descriptor the property was built from.
func (p *Property) Descriptor() PropertyDescriptor {
	return p.desc
}

// Get reads the current value from the event log.
func (p *Property) Get(ctx context.Context) (float64, error) {
	switch p.desc.Kind {
	case KindBool:
		on, err := p.store.GetBool(ctx, p.subjectID, p.desc.StorageKey)
		if err != nil {
			return 0, err
		}
		if on {
			return 1, nil
		}
		return 0, nil
	default:
		return p.store.GetNumber(ctx, p.subjectID, p.desc.StorageKey)
	}
}

// SetState records an observed value in the event log. This is the
// ingestion path for vendor polling and webhooks; it never touches
// hardware.
func (p *Property) SetState(ctx context.Context, value float64, at time.Time) error {
	switch p.desc.Kind {
	case KindBool:
		return p.store.SetBool(ctx, p.subjectID, p.desc.StorageKey, value != 0, at)
	default:
		return p.store.SetNumber(ctx, p.subjectID, p.desc.StorageKey, value, at)
	}
}

// Set issues the hardware command through the provider handler. It records
// nothing: the resulting state change must be re-observed by the vendor
// integration and persisted via SetState once confirmed, so a failed or
// partial hardware write never corrupts history.
func (p *Property) Set(ctx context.Context, value float64) error {
	if !p.desc.Writeable {
		return fmt.Errorf("setting %q: %w", p.desc.Name, ErrPropertyNotWriteable)
	}
	return p.handler.Write(ctx, p.subjectID, p.desc.Name, value)
}
