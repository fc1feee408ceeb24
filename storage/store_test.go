package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	out := map[string]Store{}
	for name, s := range map[string]Store{
		"memory":        NewMemoryStore(),
		"sqlite":        NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db")),
		"sqlite memory": NewSQLiteStore(":memory:"),
	} {
		if err := s.Init(ctx); err != nil {
			t.Fatalf("%s: init: %v", name, err)
		}
		t.Cleanup(func() { s.Close() })
		out[name] = s
	}
	return out
}

func TestRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			run := NewRun("evolve", "body:\n  width: 4\n")
			if err := s.SaveRun(ctx, run); err != nil {
				t.Fatalf("save run: %v", err)
			}
			got, err := s.GetRun(ctx, run.ID)
			if err != nil {
				t.Fatalf("get run: %v", err)
			}
			if got.ID != run.ID || got.Kind != "evolve" || got.Config != run.Config || !got.Started.Equal(run.Started) {
				t.Errorf("got %+v, want %+v", got, run)
			}

			if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("missing run: err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestRecords(t *testing.T) {
	ctx := context.Background()
	input := []Record{
		{Iteration: 0, Genome: "0110", Body: "abc", Fitness: 0.5},
		{Iteration: 1, Genome: "1110", Body: "def", Fitness: 1.5},
		{Iteration: 1, Genome: "0000", Fitness: 0},
		{Iteration: 2, Genome: "1111", Body: "ghi", Fitness: 1.5},
	}
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			run := NewRun("evolve", "")
			if err := s.SaveRun(ctx, run); err != nil {
				t.Fatal(err)
			}
			if err := s.SaveRecords(ctx, run.ID, input); err != nil {
				t.Fatalf("save records: %v", err)
			}

			all, err := s.Records(ctx, run.ID)
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != len(input) {
				t.Fatalf("got %d records, want %d", len(all), len(input))
			}
			for i := range input {
				want := input[i]
				want.RunID = run.ID
				if all[i] != want {
					t.Errorf("record %d = %+v, want %+v", i, all[i], want)
				}
			}

			best, err := s.Best(ctx, run.ID, 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(best) != 2 || best[0].Genome != "1110" || best[1].Genome != "1111" {
				t.Errorf("best = %+v, want 1110 then 1111", best)
			}
		})
	}
}

func TestRecordsUnknownRun(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.SaveRecords(ctx, "nope", []Record{{Genome: "1"}}); !errors.Is(err, ErrNotFound) {
				t.Errorf("save: err = %v, want ErrNotFound", err)
			}
			if _, err := s.Records(ctx, "nope"); !errors.Is(err, ErrNotFound) {
				t.Errorf("records: err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, "memory", "")
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := New(ctx, "sqlite", ""); err == nil {
		t.Error("sqlite without a path should fail")
	}
	if _, err := New(ctx, "postgres", ""); err == nil {
		t.Error("unknown driver should fail")
	}
}

func TestSQLitePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	s := NewSQLiteStore(path)
	if err := s.Init(ctx); err != nil {
		t.Fatal(err)
	}
	run := NewRun("validate", "")
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := NewSQLiteStore(path)
	if err := reopened.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if _, err := reopened.GetRun(ctx, run.ID); err != nil {
		t.Errorf("run lost after reopen: %v", err)
	}
}

func TestUninitializedSQLite(t *testing.T) {
	if _, err := NewSQLiteStore("x.db").GetRun(context.Background(), "a"); err == nil {
		t.Error("expected error from an uninitialized store")
	}
}
