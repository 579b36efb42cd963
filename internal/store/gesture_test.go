package store

import (
	"errors"
	"testing"
)

func TestGestureRepository_Upsert(t *testing.T) {
	s := newTestStore(t)
	repo := s.Gestures()

	g := &Gesture{Name: "thumbs_up", Count: 4, Color: "#00FF00"}
	if err := repo.Upsert(g); err != nil {
		t.Fatalf("failed to upsert gesture: %v", err)
	}
	if g.CreatedAt.IsZero() || g.UpdatedAt.IsZero() {
		t.Error("timestamps should be set after upsert")
	}

	got, err := repo.GetByName("thumbs_up")
	if err != nil {
		t.Fatalf("failed to get gesture: %v", err)
	}
	if got.Count != 4 || got.Color != "#00FF00" {
		t.Errorf("got %+v, want count 4 colour #00FF00", got)
	}

	// Upserting again resets the count.
	if err := repo.Upsert(&Gesture{Name: "thumbs_up", Count: 0, Color: "#00FF00"}); err != nil {
		t.Fatalf("failed to upsert existing gesture: %v", err)
	}
	got, err = repo.GetByName("thumbs_up")
	if err != nil {
		t.Fatalf("failed to get gesture: %v", err)
	}
	if got.Count != 0 {
		t.Errorf("Count = %d, want 0", got.Count)
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list gestures: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 gesture, got %d", len(list))
	}
}

func TestGestureRepository_Replace(t *testing.T) {
	s := newTestStore(t)
	repo := s.Gestures()

	for _, name := range []string{"old1", "old2", "a"} {
		if err := repo.Upsert(&Gesture{Name: name, Count: 7, Color: "#000000"}); err != nil {
			t.Fatalf("failed to upsert %s: %v", name, err)
		}
	}

	err := repo.Replace([]*Gesture{
		{Name: "a", Color: "#111111"},
		{Name: "b", Color: "#222222"},
		{Name: "c", Color: "#333333"},
	})
	if err != nil {
		t.Fatalf("failed to replace gestures: %v", err)
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list gestures: %v", err)
	}

	want := []string{"a", "b", "c"}
	if len(list) != len(want) {
		t.Fatalf("expected %d gestures, got %d", len(want), len(list))
	}
	for i, g := range list {
		if g.Name != want[i] {
			t.Errorf("gesture %d = %q, want %q", i, g.Name, want[i])
		}
		if g.Count != 0 {
			t.Errorf("gesture %q count = %d, want 0", g.Name, g.Count)
		}
	}
}

func TestGestureRepository_Replace_DuplicateRollsBack(t *testing.T) {
	s := newTestStore(t)
	repo := s.Gestures()

	if err := repo.Upsert(&Gesture{Name: "keep", Color: "#000000"}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	err := repo.Replace([]*Gesture{{Name: "x", Color: "#1"}, {Name: "x", Color: "#2"}})
	if err == nil {
		t.Fatal("expected error replacing with duplicate names")
	}

	if _, err := repo.GetByName("keep"); err != nil {
		t.Errorf("failed replace should leave previous rows: %v", err)
	}
}

func TestGestureRepository_SetCount(t *testing.T) {
	s := newTestStore(t)
	repo := s.Gestures()

	if err := repo.Upsert(&Gesture{Name: "five", Color: "#FF00FF"}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	if err := repo.SetCount("five", 3); err != nil {
		t.Fatalf("failed to set count: %v", err)
	}

	got, err := repo.GetByName("five")
	if err != nil {
		t.Fatalf("failed to get gesture: %v", err)
	}
	if got.Count != 3 {
		t.Errorf("Count = %d, want 3", got.Count)
	}

	if err := repo.SetCount("missing", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGestureRepository_Delete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Gestures()

	if err := repo.Upsert(&Gesture{Name: "victory", Color: "#0000FF"}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	if err := repo.Delete("victory"); err != nil {
		t.Fatalf("failed to delete gesture: %v", err)
	}

	if _, err := repo.GetByName("victory"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestGestureRepository_Delete_NotFound(t *testing.T) {
	s := newTestStore(t)

	if err := s.Gestures().Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGestureRepository_GetByName_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Gestures().GetByName("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
