package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/michaelbrown/snipforge/internal/storage"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening memory db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := &storage.Run{
		ID:          "abc12345-0000-0000-0000-000000000000",
		Interpreter: "Perl_original",
		Language:    "perl",
		Level:       "bloc",
		Input:       `print "Hello,World!"`,
		Args:        []string{"--verbose", "x"},
		Status:      storage.StatusSucceeded,
		Output:      "Hello,World!",
		DurationMS:  12,
	}

	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Interpreter != "Perl_original" {
		t.Errorf("interpreter = %q, want %q", got.Interpreter, "Perl_original")
	}
	if got.Output != "Hello,World!" {
		t.Errorf("output = %q, want %q", got.Output, "Hello,World!")
	}
	if len(got.Args) != 2 || got.Args[1] != "x" {
		t.Errorf("args = %v, want [--verbose x]", got.Args)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, run.CreatedAt)
	}
}

func TestGetRunByPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run := &storage.Run{ID: "abc12345-0000-0000-0000-000000000000", Status: storage.StatusSucceeded}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := s.GetRun(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetRun by prefix: %v", err)
	}
	if got.ID != run.ID {
		t.Errorf("ID = %q, want %q", got.ID, run.ID)
	}
}

func TestGetRunAmbiguousPrefix(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, id := range []string{
		"abc00000-0000-0000-0000-000000000000",
		"abc11111-0000-0000-0000-000000000000",
	} {
		if err := s.CreateRun(ctx, &storage.Run{ID: id, Status: storage.StatusSucceeded}); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	_, err := s.GetRun(ctx, "abc")
	if err == nil {
		t.Fatal("expected error for ambiguous prefix")
	}
}

func TestGetRunPrefixIsLiteral(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, id := range []string{
		"abc00000-0000-0000-0000-000000000000",
		"a_c11111-0000-0000-0000-000000000000",
	} {
		if err := s.CreateRun(ctx, &storage.Run{ID: id, Status: storage.StatusSucceeded}); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	for _, prefix := range []string{"%", "_", "ab%"} {
		if _, err := s.GetRun(ctx, prefix); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("GetRun(%q) err = %v, want ErrRunNotFound", prefix, err)
		}
	}

	got, err := s.GetRun(ctx, "a_c")
	if err != nil {
		t.Fatalf("GetRun(a_c): %v", err)
	}
	if got.ID != "a_c11111-0000-0000-0000-000000000000" {
		t.Errorf("ID = %q, want the a_c run", got.ID)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.GetRun(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"aaa", "bbb", "ccc"} {
		run := &storage.Run{ID: id, Status: storage.StatusSucceeded, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := s.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, storage.RunListOptions{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	if runs[0].ID != "ccc" || runs[2].ID != "aaa" {
		t.Errorf("order = %s,%s,%s, want ccc,bbb,aaa", runs[0].ID, runs[1].ID, runs[2].ID)
	}
}

func TestListRunsFilters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.CreateRun(ctx, &storage.Run{ID: "a1", Interpreter: "Perl_original", Status: storage.StatusSucceeded})
	s.CreateRun(ctx, &storage.Run{ID: "a2", Interpreter: "Perl_original", Status: storage.StatusFailed})
	s.CreateRun(ctx, &storage.Run{ID: "a3", Interpreter: "Lua_original", Status: storage.StatusSucceeded})

	runs, err := s.ListRuns(ctx, storage.RunListOptions{Status: storage.StatusSucceeded})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("got %d succeeded runs, want 2", len(runs))
	}

	runs, err = s.ListRuns(ctx, storage.RunListOptions{Interpreter: "Perl_original", Status: storage.StatusFailed})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "a2" {
		t.Errorf("got %v, want only a2", runs)
	}
}

func TestListRunsLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.CreateRun(ctx, &storage.Run{ID: string(rune('a' + i)), Status: storage.StatusSucceeded})
	}

	runs, err := s.ListRuns(ctx, storage.RunListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("got %d runs, want 2", len(runs))
	}
}

func TestDeleteRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.CreateRun(ctx, &storage.Run{ID: "del1", Status: storage.StatusSucceeded})

	if err := s.DeleteRun(ctx, "del"); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}

	_, err := s.GetRun(ctx, "del1")
	if err == nil {
		t.Fatal("expected error after delete")
	}

	if err := s.DeleteRun(ctx, "del1"); err == nil {
		t.Fatal("expected error deleting a missing run")
	}
}

func TestPruneRuns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.CreateRun(ctx, &storage.Run{
			ID:        string(rune('a' + i)),
			Status:    storage.StatusSucceeded,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	deleted, err := s.PruneRuns(ctx, 2)
	if err != nil {
		t.Fatalf("PruneRuns: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	runs, _ := s.ListRuns(ctx, storage.RunListOptions{})
	if len(runs) != 2 || runs[0].ID != "e" || runs[1].ID != "d" {
		t.Errorf("remaining = %v, want e,d", runs)
	}

	if _, err := s.PruneRuns(ctx, -1); err == nil {
		t.Error("expected error for negative keep")
	}
}

func TestOpenFileReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snipforge.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.CreateRun(context.Background(), &storage.Run{ID: "keep", Status: storage.StatusFailed}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.GetRun(context.Background(), "keep")
	if err != nil {
		t.Fatalf("GetRun after reopen: %v", err)
	}
	if got.Status != storage.StatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
}
