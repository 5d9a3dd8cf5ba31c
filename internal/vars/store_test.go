package vars

import (
	"errors"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New([]Definition{
		{Name: "depth", Default: 0},
		{Name: "heading", Default: 90},
		{Name: "hub.cpu", Default: 0, ReadOnly: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestGet(t *testing.T) {
	s := newTestStore(t)

	value, readonly, err := s.Get("heading")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != 90 || readonly {
		t.Errorf("got (%v, %v), want (90, false)", value, readonly)
	}

	_, readonly, err = s.Get("hub.cpu")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !readonly {
		t.Error("expected hub.cpu to be read-only")
	}
}

func TestSet(t *testing.T) {
	s := newTestStore(t)

	if err := s.Set("depth", 3.5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, _, err := s.Get("depth")
	if err != nil {
		t.Fatal(err)
	}
	if value != 3.5 {
		t.Errorf("depth = %v, want 3.5", value)
	}
}

func TestSetReadOnly(t *testing.T) {
	s := newTestStore(t)

	// Any value, any number of attempts: the write is rejected and the
	// stored value is untouched.
	for _, v := range []float64{1, -7.25, 0} {
		if err := s.Set("hub.cpu", v); !errors.Is(err, ErrReadOnly) {
			t.Errorf("Set(hub.cpu, %v): expected ErrReadOnly, got %v", v, err)
		}
	}
	value, _, err := s.Get("hub.cpu")
	if err != nil {
		t.Fatal(err)
	}
	if value != 0 {
		t.Errorf("hub.cpu changed to %v after rejected writes", value)
	}
}

func TestUnknownVariable(t *testing.T) {
	s := newTestStore(t)

	if _, _, err := s.Get("ballast"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if err := s.Set("ballast", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Set: expected ErrNotFound, got %v", err)
	}
	if err := s.Put("ballast", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Put: expected ErrNotFound, got %v", err)
	}
}

func TestPutBypassesReadOnly(t *testing.T) {
	s := newTestStore(t)

	if err := s.Put("hub.cpu", 42.5); err != nil {
		t.Fatalf("Put: %v", err)
	}
	value, _, err := s.Get("hub.cpu")
	if err != nil {
		t.Fatal(err)
	}
	if value != 42.5 {
		t.Errorf("hub.cpu = %v, want 42.5", value)
	}
}

func TestDuplicateDefinition(t *testing.T) {
	_, err := New([]Definition{{Name: "depth"}, {Name: "depth"}})
	if err == nil {
		t.Fatal("expected error for duplicate definition")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := newTestStore(t)

	// Writers on two different variables plus readers on both must all
	// make progress; readers must only ever observe fully written values.
	var writers, readers sync.WaitGroup
	stop := make(chan struct{})

	for _, name := range []string{"depth", "heading"} {
		writers.Add(1)
		go func() {
			defer writers.Done()
			for i := 0; i < 1000; i++ {
				if err := s.Set(name, float64(i)); err != nil {
					t.Errorf("Set(%s): %v", name, err)
					return
				}
			}
		}()

		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				value, _, err := s.Get(name)
				if err != nil {
					t.Errorf("Get(%s): %v", name, err)
					return
				}
				if value != float64(int(value)) || value < 0 || value >= 1000 {
					t.Errorf("Get(%s) observed torn value %v", name, value)
					return
				}
			}
		}()
	}

	writers.Wait()
	close(stop)
	readers.Wait()
}
