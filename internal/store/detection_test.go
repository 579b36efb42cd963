package store

import (
	"errors"
	"testing"
	"time"
)

func TestDetectionRepository_CreateAndRecent(t *testing.T) {
	s := newTestStore(t)
	start := time.Now().Add(-time.Minute)

	if err := s.Sessions().Start("session-1", start); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}

	repo := s.Detections()
	for i, name := range []string{"ok", "five", "victory"} {
		d := &Detection{
			Gesture:    name,
			SessionID:  "session-1",
			DetectedAt: start.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Create(d); err != nil {
			t.Fatalf("failed to create detection: %v", err)
		}
		if d.ID == "" {
			t.Error("ID should be assigned")
		}
	}

	recent, err := repo.Recent(2)
	if err != nil {
		t.Fatalf("failed to list detections: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(recent))
	}
	if recent[0].Gesture != "victory" || recent[1].Gesture != "five" {
		t.Errorf("expected newest first, got %q, %q", recent[0].Gesture, recent[1].Gesture)
	}
	if recent[0].SessionID != "session-1" {
		t.Errorf("SessionID = %q, want session-1", recent[0].SessionID)
	}

	n, err := repo.CountBySession("session-1")
	if err != nil {
		t.Fatalf("failed to count detections: %v", err)
	}
	if n != 3 {
		t.Errorf("CountBySession = %d, want 3", n)
	}
}

func TestDetectionRepository_WithoutSession(t *testing.T) {
	s := newTestStore(t)

	if err := s.Detections().Create(&Detection{Gesture: "ok"}); err != nil {
		t.Fatalf("failed to create detection: %v", err)
	}

	recent, err := s.Detections().Recent(0)
	if err != nil {
		t.Fatalf("failed to list detections: %v", err)
	}
	if len(recent) != 1 || recent[0].SessionID != "" {
		t.Errorf("unexpected detections: %+v", recent)
	}
}

func TestDetectionRepository_UnknownSessionRejected(t *testing.T) {
	s := newTestStore(t)

	err := s.Detections().Create(&Detection{Gesture: "ok", SessionID: "nope"})
	if err == nil {
		t.Error("expected foreign key error for unknown session")
	}
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()
	started := time.Now()

	if err := repo.Start("s1", started); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	if err := repo.Start("s1", started); err != nil {
		t.Fatalf("starting twice should be a no-op: %v", err)
	}

	got, err := repo.GetByID("s1")
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got.EndedAt != nil {
		t.Error("EndedAt should be nil for an open session")
	}

	if err := repo.End("s1", started.Add(time.Second), "connection reset"); err != nil {
		t.Fatalf("failed to end session: %v", err)
	}
	if err := repo.End("s1", started.Add(2*time.Second), ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("ending twice should return ErrNotFound, got %v", err)
	}

	got, err = repo.GetByID("s1")
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got.EndedAt == nil {
		t.Fatal("EndedAt should be set")
	}
	if got.EndReason != "connection reset" {
		t.Errorf("EndReason = %q", got.EndReason)
	}

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
