package capability

import "fmt"

// Subject is the device a capability is built for, identified by its id
// and the provider that owns its hardware communication.
type Subject struct {
	ID         string
	ProviderID string
}

// Capability is a named bundle of properties attached to a subject. It is
// not persisted; it is constructed on demand from the subject's provider
// handler and the property descriptors.
type Capability struct {
	Name    string
	Subject Subject

	properties map[string]*Property
}

// BuildCapability constructs the capability from its descriptors, wiring
// each property to the event store and to the provider's handler.
//
// Construction fails fast: an unknown provider returns
// ErrProviderNotRegistered, and a provider whose handler set lacks the
// capability returns ErrCapabilityUnsupported. A device lacking a
// capability is detected here, never at first use.
func BuildCapability(subject Subject, name string, descriptors []PropertyDescriptor, registry *Registry, store Store) (*Capability, error) {
	handler, err := registry.lookup(subject.ProviderID, name)
	if err != nil {
		return nil, fmt.Errorf("building capability for subject %q: %w", subject.ID, err)
	}

	built := &Capability{
		Name:       name,
		Subject:    subject,
		properties: make(map[string]*Property, len(descriptors)),
	}
	for _, desc := range descriptors {
		built.properties[desc.Name] = &Property{
			desc:      desc,
			subjectID: subject.ID,
			store:     store,
			handler:   handler,
		}
	}
	return built, nil
}

// Property returns the named property, or ErrPropertyNotFound.
func (c *Capability) Property(name string) (*Property, error) {
	p, ok := c.properties[name]
	if !ok {
		return nil, fmt.Errorf("capability %q property %q: %w", c.Name, name, ErrPropertyNotFound)
	}
	return p, nil
}

// Properties returns all properties of the capability.
func (c *Capability) Properties() []*Property {
	out := make([]*Property, 0, len(c.properties))
	for _, p := range c.properties {
		out = append(out, p)
	}
	return out
}
