package obs

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRecord_InsertionOrder(t *testing.T) {
	r := NewRecord().
		Set("b", Floats{1}).
		Set("a", Floats{2}).
		Set("c", Floats{3})

	want := []string{"b", "a", "c"}
	if diff := cmp.Diff(want, r.Keys()); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
}

func TestRecord_ReplaceKeepsPosition(t *testing.T) {
	r := NewRecord().
		Set("x", Floats{1}).
		Set("y", Floats{2})
	r.Set("x", Floats{9})

	if diff := cmp.Diff([]string{"x", "y"}, r.Keys()); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
	v, _ := r.Get("x")
	if diff := cmp.Diff(Floats{9}, v); diff != "" {
		t.Errorf("value (-want +got):\n%s", diff)
	}
}

func TestRecord_Delete(t *testing.T) {
	r := NewRecord().
		Set("a", Floats{1}).
		Set("b", Floats{2}).
		Set("c", Floats{3})
	r.Delete("b")
	r.Delete("missing") // no-op

	if diff := cmp.Diff([]string{"a", "c"}, r.Keys()); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
	if _, ok := r.Get("b"); ok {
		t.Error("deleted key still present")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestFlatten_OrderAndNesting(t *testing.T) {
	inner := NewRecord().
		Set("qpos", Floats{1, 2}).
		Set("qvel", Floats{3})
	r := NewRecord().
		Set("agent", inner).
		Set("extra", NewRecord().Set("goal", Floats{4, 5}).Set("dist", Scalar(6)))

	got, err := Flatten(r)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	want := Floats{1, 2, 3, 4, 5, 6}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("flattened (-want +got):\n%s", diff)
	}
}

func TestFlatten_StableAcrossCalls(t *testing.T) {
	r := NewRecord().
		Set("z", Floats{1}).
		Set("a", Floats{2})

	first, err := Flatten(r)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Flatten(r)
		if err != nil {
			t.Fatalf("Flatten: %v", err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("flatten order varied on call %d (-first +again):\n%s", i, diff)
		}
	}
}

func TestFlatten_RejectsImages(t *testing.T) {
	r := NewRecord().Set("img", &FloatImage{Width: 2, Height: 2, Channels: 4, Data: make([]float32, 16)})
	if _, err := Flatten(r); err == nil {
		t.Error("expected error flattening an image leaf")
	}
}
