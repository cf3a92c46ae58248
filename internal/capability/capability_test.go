package capability

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeStore records boolean and numeric values in memory.
type fakeStore struct {
	bools    map[string]bool
	numbers  map[string]float64
	setCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bools:   make(map[string]bool),
		numbers: make(map[string]float64),
	}
}

func (s *fakeStore) key(subjectID, propertyKey string) string {
	return subjectID + "/" + propertyKey
}

func (s *fakeStore) GetBool(_ context.Context, subjectID, propertyKey string) (bool, error) {
	return s.bools[s.key(subjectID, propertyKey)], nil
}

func (s *fakeStore) SetBool(_ context.Context, subjectID, propertyKey string, value bool, _ time.Time) error {
	s.bools[s.key(subjectID, propertyKey)] = value
	s.setCalls++
	return nil
}

func (s *fakeStore) GetNumber(_ context.Context, subjectID, propertyKey string) (float64, error) {
	return s.numbers[s.key(subjectID, propertyKey)], nil
}

func (s *fakeStore) SetNumber(_ context.Context, subjectID, propertyKey string, value float64, _ time.Time) error {
	s.numbers[s.key(subjectID, propertyKey)] = value
	s.setCalls++
	return nil
}

// recordingHandler captures hardware writes.
type recordingHandler struct {
	writes []string
}

func (h *recordingHandler) Write(_ context.Context, subjectID, property string, value float64) error {
	h.writes = append(h.writes, subjectID+"/"+property)
	return nil
}

var lightDescriptors = []PropertyDescriptor{
	{Name: "on", Kind: KindBool, StorageKey: "on", Writeable: true},
	{Name: "brightness", Kind: KindNumber, StorageKey: "brightness", Writeable: true},
	{Name: "power", Kind: KindNumber, StorageKey: "power_watts", Writeable: false},
}

func newTestRegistry(t *testing.T, handler Handler) *Registry {
	t.Helper()
	registry := NewRegistry()
	registry.Register("acme", HandlerSet{"light": handler})
	return registry
}

func TestBuildCapabilityUnknownProvider(t *testing.T) {
	registry := newTestRegistry(t, &recordingHandler{})

	_, err := BuildCapability(Subject{ID: "device1", ProviderID: "nope"}, "light", lightDescriptors, registry, newFakeStore())
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("BuildCapability() error = %v, want ErrProviderNotRegistered", err)
	}
}

func TestBuildCapabilityUnsupported(t *testing.T) {
	registry := newTestRegistry(t, &recordingHandler{})

	_, err := BuildCapability(Subject{ID: "device1", ProviderID: "acme"}, "lock", nil, registry, newFakeStore())
	if !errors.Is(err, ErrCapabilityUnsupported) {
		t.Errorf("BuildCapability() error = %v, want ErrCapabilityUnsupported", err)
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	registry := newTestRegistry(t, &recordingHandler{})

	defer func() {
		if recover() == nil {
			t.Error("duplicate Register() did not panic")
		}
	}()
	registry.Register("acme", HandlerSet{})
}

func TestPropertyGetSetState(t *testing.T) {
	store := newFakeStore()
	registry := newTestRegistry(t, &recordingHandler{})
	ctx := context.Background()

	built, err := BuildCapability(Subject{ID: "device1", ProviderID: "acme"}, "light", lightDescriptors, registry, store)
	if err != nil {
		t.Fatalf("BuildCapability() error = %v", err)
	}

	on, err := built.Property("on")
	if err != nil {
		t.Fatalf("Property() error = %v", err)
	}
	if err := on.SetState(ctx, 1, time.Now()); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	got, err := on.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != 1 {
		t.Errorf("Get() = %v, want 1", got)
	}

	brightness, err := built.Property("brightness")
	if err != nil {
		t.Fatalf("Property() error = %v", err)
	}
	if err := brightness.SetState(ctx, 80, time.Now()); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	got, err = brightness.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != 80 {
		t.Errorf("Get() = %v, want 80", got)
	}
}

// TestSetDelegatesWithoutRecording verifies the command path hits the
// provider handler and leaves history untouched.
func TestSetDelegatesWithoutRecording(t *testing.T) {
	store := newFakeStore()
	handler := &recordingHandler{}
	registry := newTestRegistry(t, handler)
	ctx := context.Background()

	built, err := BuildCapability(Subject{ID: "device1", ProviderID: "acme"}, "light", lightDescriptors, registry, store)
	if err != nil {
		t.Fatalf("BuildCapability() error = %v", err)
	}

	brightness, err := built.Property("brightness")
	if err != nil {
		t.Fatalf("Property() error = %v", err)
	}
	if err := brightness.Set(ctx, 50); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if len(handler.writes) != 1 || handler.writes[0] != "device1/brightness" {
		t.Errorf("handler writes = %v, want [device1/brightness]", handler.writes)
	}
	if store.setCalls != 0 {
		t.Errorf("Set() wrote history (%d store writes), want 0", store.setCalls)
	}
}

func TestSetNotWriteable(t *testing.T) {
	registry := newTestRegistry(t, &recordingHandler{})

	built, err := BuildCapability(Subject{ID: "device1", ProviderID: "acme"}, "light", lightDescriptors, registry, newFakeStore())
	if err != nil {
		t.Fatalf("BuildCapability() error = %v", err)
	}

	power, err := built.Property("power")
	if err != nil {
		t.Fatalf("Property() error = %v", err)
	}
	if err := power.Set(context.Background(), 10); !errors.Is(err, ErrPropertyNotWriteable) {
		t.Errorf("Set() error = %v, want ErrPropertyNotWriteable", err)
	}
}

func TestPropertyNotFound(t *testing.T) {
	registry := newTestRegistry(t, &recordingHandler{})

	built, err := BuildCapability(Subject{ID: "device1", ProviderID: "acme"}, "light", lightDescriptors, registry, newFakeStore())
	if err != nil {
		t.Fatalf("BuildCapability() error = %v", err)
	}
	if _, err := built.Property("colour"); !errors.Is(err, ErrPropertyNotFound) {
		t.Errorf("Property() error = %v, want ErrPropertyNotFound", err)
	}
}
