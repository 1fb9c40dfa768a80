package mirror

import (
	"path/filepath"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"geoguesser-backend/internal/models"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mirror.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func entry(user, city string) models.LogEntry {
	return models.LogEntry{
		ID:       primitive.NewObjectID(),
		UserName: user,
		Guess:    models.LocationGuess{Country: "France", City: city, Confidence: models.ConfidenceLow, AccuracyRadiusKm: -1},
		Feedback: models.FeedbackNotProvided,
	}
}

func TestAppendAndList_InsertionOrder(t *testing.T) {
	s, _ := openTestStore(t)

	cities := []string{"Paris", "Lyon", "Nice"}
	for _, c := range cities {
		if err := s.Append("alice", entry("alice", c)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	// Another user's entries must not leak into alice's list.
	if err := s.Append("bob", entry("bob", "Ghent")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := s.List("alice")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != len(cities) {
		t.Fatalf("Expected %d entries, got %d", len(cities), len(got))
	}
	for i, c := range cities {
		if got[i].Guess.City != c {
			t.Errorf("Entry %d: expected %q, got %q", i, c, got[i].Guess.City)
		}
	}
}

func TestPatch_ReplacesEntry(t *testing.T) {
	s, _ := openTestStore(t)

	e := entry("alice", "Paris")
	if err := s.Append("alice", e); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	e.Feedback = models.FeedbackIncorrect
	e.CorrectedCity = "Lyon"
	if err := s.Patch("alice", e.ID.Hex(), e); err != nil {
		t.Fatalf("Patch failed: %v", err)
	}

	got, err := s.List("alice")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected one entry, got %d", len(got))
	}
	if got[0].Feedback != models.FeedbackIncorrect || got[0].CorrectedCity != "Lyon" {
		t.Errorf("Patch not applied: %+v", got[0])
	}
}

func TestPatch_MissingRowIsNotAnError(t *testing.T) {
	s, _ := openTestStore(t)

	e := entry("alice", "Paris")
	if err := s.Patch("alice", e.ID.Hex(), e); err != nil {
		t.Errorf("Expected patch of a cleared entry to succeed, got %v", err)
	}
}

func TestClear_DropsOnlyOneUser(t *testing.T) {
	s, _ := openTestStore(t)

	s.Append("alice", entry("alice", "Paris"))
	s.Append("bob", entry("bob", "Ghent"))

	if err := s.Clear("alice"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	got, _ := s.List("alice")
	if len(got) != 0 {
		t.Errorf("Expected alice's mirror empty, got %d entries", len(got))
	}
	got, _ = s.List("bob")
	if len(got) != 1 {
		t.Errorf("Expected bob's mirror untouched, got %d entries", len(got))
	}
}

func TestReopen_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Append("alice", entry("alice", "Paris")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer s.Close()

	got, err := s.List("alice")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 || got[0].Guess.City != "Paris" {
		t.Errorf("Expected the entry to survive a reopen, got %+v", got)
	}
}
