package mission

import (
	"errors"
	"testing"

	"github.com/opencode-ai/missionctl/internal/models"
	"github.com/opencode-ai/missionctl/internal/timer"
)

func TestStandardFactoryResolvesDefaultKind(t *testing.T) {
	f := NewStandardFactory()

	for _, kind := range []string{"", "standard", " Standard "} {
		r, err := f.Resolve(kind, Options{Clock: timer.NewManualClock()})
		if err != nil {
			t.Fatalf("Resolve(%q): %v", kind, err)
		}
		if r.State() != models.MissionStateWaiting {
			t.Fatalf("expected waiting state, got %q", r.State())
		}
	}
}

func TestFactoryResolveUnknownKind(t *testing.T) {
	f := NewStandardFactory()

	_, err := f.Resolve("teleport", Options{})
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if f.Has("teleport") {
		t.Fatal("expected Has to report false")
	}
}

func TestFactoryRegisterDuplicate(t *testing.T) {
	f := NewFactory()
	ctor := func(opts Options) Realization { return NewController(WithClock(opts.Clock)) }

	if err := f.Register("escort", ctor); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := f.Register("ESCORT", ctor); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := f.Register("", ctor); err == nil {
		t.Fatal("expected empty kind to fail")
	}
}

func TestFactoryResolveReturnsFreshInstances(t *testing.T) {
	f := NewStandardFactory()

	a, _ := f.Resolve("", Options{Clock: timer.NewManualClock()})
	b, _ := f.Resolve("", Options{Clock: timer.NewManualClock()})
	a.Start(0, nil)

	if b.State() != models.MissionStateWaiting {
		t.Fatal("realizations must not share state")
	}
}

func TestFactoryKindsAndUnregister(t *testing.T) {
	f := NewStandardFactory()
	f.MustRegister("escort", func(opts Options) Realization { return NewController() })

	kinds := f.Kinds()
	if len(kinds) != 2 || kinds[0] != "escort" || kinds[1] != "standard" {
		t.Fatalf("unexpected kinds: %v", kinds)
	}
	if !f.Unregister("escort") {
		t.Fatal("expected escort to be removed")
	}
	if f.Unregister("escort") {
		t.Fatal("expected second removal to report false")
	}
}

func TestDataValidate(t *testing.T) {
	if err := (Data{ID: "a"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Data{}).Validate(); err == nil {
		t.Fatal("expected missing id to fail")
	}
	if err := (Data{ID: "a", Delay: -1}).Validate(); err == nil {
		t.Fatal("expected negative delay to fail")
	}
}
