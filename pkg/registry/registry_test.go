package registry

import (
	"errors"
	"testing"

	"github.com/marmos91/statekeep/pkg/artifact"
)

func testUnits() []Unit {
	return []Unit{
		{
			ID:      "qlearning",
			Enabled: true,
			Async:   true,
			Keys: map[string]artifact.Kind{
				"qtable": artifact.KindZstd,
			},
		},
		{
			ID:      "genetic",
			Enabled: true,
			Async:   false,
			Keys: map[string]artifact.Kind{
				"population":  artifact.KindRaw,
				"hyperparams": artifact.KindRaw,
			},
		},
		{
			ID:      "legacy",
			Enabled: false,
			Async:   true,
			Keys: map[string]artifact.Kind{
				"weights": artifact.KindRaw,
			},
		},
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New()
	for _, u := range testUnits() {
		if err := r.RegisterUnit(u); err != nil {
			t.Fatalf("RegisterUnit(%s) failed: %v", u.ID, err)
		}
	}
	return r
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := newTestRegistry(t)

	u, err := r.Unit("qlearning")
	if err != nil {
		t.Fatalf("Unit failed: %v", err)
	}
	if !u.Enabled || !u.Async {
		t.Errorf("qlearning = %+v, want enabled async", u)
	}
	if u.Keys["qtable"] != artifact.KindZstd {
		t.Errorf("qtable kind = %v, want zstd", u.Keys["qtable"])
	}

	if _, err := r.Unit("nonexistent"); !errors.Is(err, ErrUnknownUnit) {
		t.Errorf("Unit(nonexistent): expected ErrUnknownUnit, got %v", err)
	}
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := newTestRegistry(t)

	err := r.RegisterUnit(Unit{ID: "qlearning", Enabled: true})
	if !errors.Is(err, ErrDuplicateUnit) {
		t.Errorf("expected ErrDuplicateUnit, got %v", err)
	}

	if err := r.RegisterUnit(Unit{}); err == nil {
		t.Error("empty unit id accepted")
	}
}

func TestRegistry_Codec(t *testing.T) {
	r := newTestRegistry(t)

	kind, err := r.Codec("genetic", "population")
	if err != nil {
		t.Fatalf("Codec failed: %v", err)
	}
	if kind != artifact.KindRaw {
		t.Errorf("Codec = %v, want raw", kind)
	}

	if _, err := r.Codec("genetic", "nope"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
	if _, err := r.Codec("nope", "population"); !errors.Is(err, ErrUnknownUnit) {
		t.Errorf("expected ErrUnknownUnit, got %v", err)
	}
}

func TestRegistry_ArtifactsSkipsDisabled(t *testing.T) {
	r := newTestRegistry(t)

	ids := r.Artifacts()
	want := []artifact.ID{
		artifact.NewID("genetic", "hyperparams"),
		artifact.NewID("genetic", "population"),
		artifact.NewID("qlearning", "qtable"),
	}
	if len(ids) != len(want) {
		t.Fatalf("Artifacts() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Artifacts()[%d] = %v, want %v", i, ids[i], want[i])
		}
	}
}

func TestRegistry_CopySemantics(t *testing.T) {
	r := newTestRegistry(t)

	u, err := r.Unit("qlearning")
	if err != nil {
		t.Fatalf("Unit failed: %v", err)
	}
	u.Keys["qtable"] = artifact.KindRaw // mutate the copy

	kind, err := r.Codec("qlearning", "qtable")
	if err != nil {
		t.Fatalf("Codec failed: %v", err)
	}
	if kind != artifact.KindZstd {
		t.Error("mutating a returned unit leaked into the registry")
	}
}

func TestRegistry_UnitsSorted(t *testing.T) {
	r := newTestRegistry(t)

	units := r.Units()
	if len(units) != 3 {
		t.Fatalf("Units() returned %d units, want 3", len(units))
	}
	for i, want := range []string{"genetic", "legacy", "qlearning"} {
		if units[i].ID != want {
			t.Errorf("Units()[%d] = %s, want %s", i, units[i].ID, want)
		}
	}
}
