package vcs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 6, 1, hour, minute, 0, 0, time.UTC)
}

// setClock pins the fake store's clock to a fixed instant.
func setClock(store *fakeStore, t time.Time) {
	store.now = func() time.Time { return t }
}

func TestStateAtTemporalMonotonicity(t *testing.T) {
	store := newFakeStore()
	store.addRepository(1, "repo")
	chain := NewChain(store, zerolog.Nop())
	recon := NewReconstructor(store, zerolog.Nop())
	ctx := context.Background()

	setClock(store, at(10, 0))
	file, _, err := chain.CreateFile(ctx, CreateFileInput{
		RepositoryID: 1,
		Filename:     "main.py",
		ContentText:  strptr("print('a')"),
	})
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	setClock(store, at(11, 0))
	if _, err := chain.UpdateFile(ctx, UpdateFileInput{FileID: file.ID, ContentText: strptr("print('b')")}); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}

	tests := []struct {
		name    string
		instant time.Time
		want    int // 0 means absent
	}{
		{"before creation", at(9, 0), 0},
		{"at creation", at(10, 0), 1},
		{"between versions", at(10, 30), 1},
		{"at update", at(11, 0), 2},
		{"after update", at(12, 0), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := recon.StateAt(ctx, 1, tt.instant)
			if err != nil {
				t.Fatalf("StateAt: %v", err)
			}
			v, present := state[file.ID]
			if tt.want == 0 {
				if present {
					t.Fatalf("expected file absent, got version %d", v.VersionNumber)
				}
				return
			}
			if !present {
				t.Fatalf("expected version %d, file absent", tt.want)
			}
			if v.VersionNumber != tt.want {
				t.Fatalf("expected version %d, got %d", tt.want, v.VersionNumber)
			}
		})
	}
}

func TestStateAtMissingRepository(t *testing.T) {
	store := newFakeStore()
	recon := NewReconstructor(store, zerolog.Nop())
	if _, err := recon.StateAt(context.Background(), 99, at(12, 0)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStateAtTimestampTieBreak(t *testing.T) {
	store := newFakeStore()
	store.addRepository(1, "repo")
	chain := NewChain(store, zerolog.Nop())
	recon := NewReconstructor(store, zerolog.Nop())
	ctx := context.Background()

	// Two versions written within clock granularity share a timestamp; the
	// higher version number wins.
	setClock(store, at(10, 0))
	file, _, err := chain.CreateFile(ctx, CreateFileInput{
		RepositoryID: 1,
		Filename:     "fast.txt",
		ContentText:  strptr("one"),
	})
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if _, err := chain.UpdateFile(ctx, UpdateFileInput{FileID: file.ID, ContentText: strptr("two")}); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}

	state, err := recon.StateAt(ctx, 1, at(10, 0))
	if err != nil {
		t.Fatalf("StateAt: %v", err)
	}
	if v := state[file.ID]; v == nil || v.VersionNumber != 2 {
		t.Fatalf("expected tie to resolve to version 2, got %+v", v)
	}
}

func TestCompareScenario(t *testing.T) {
	store := newFakeStore()
	store.addRepository(1, "repo")
	chain := NewChain(store, zerolog.Nop())
	recon := NewReconstructor(store, zerolog.Nop())
	ctx := context.Background()

	setClock(store, at(10, 0))
	file, _, err := chain.CreateFile(ctx, CreateFileInput{
		RepositoryID: 1,
		Filename:     "main.py",
		ContentText:  strptr("print('a')"),
	})
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	setClock(store, at(11, 0))
	if _, err := chain.UpdateFile(ctx, UpdateFileInput{FileID: file.ID, ContentText: strptr("print('b')")}); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}

	changes, err := recon.Compare(ctx, 1, at(9, 0), at(12, 0))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 changed file, got %d", len(changes))
	}
	change := changes[0]
	if change.FileID != file.ID || change.Filename != "main.py" {
		t.Fatalf("unexpected change record: %+v", change)
	}
	if change.VersionAtState1 != nil {
		t.Fatalf("expected null at state1, got %d", *change.VersionAtState1)
	}
	if change.VersionAtState2 == nil || *change.VersionAtState2 != 2 {
		t.Fatalf("expected version 2 at state2, got %v", change.VersionAtState2)
	}
}

func TestCompareSameInstantIsEmpty(t *testing.T) {
	store := newFakeStore()
	store.addRepository(1, "repo")
	chain := NewChain(store, zerolog.Nop())
	recon := NewReconstructor(store, zerolog.Nop())
	ctx := context.Background()

	setClock(store, at(10, 0))
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		if _, _, err := chain.CreateFile(ctx, CreateFileInput{
			RepositoryID: 1,
			Filename:     name,
			ContentText:  strptr(name),
		}); err != nil {
			t.Fatalf("CreateFile %s: %v", name, err)
		}
	}

	for _, instant := range []time.Time{at(9, 0), at(10, 0), at(12, 0)} {
		changes, err := recon.Compare(ctx, 1, instant, instant)
		if err != nil {
			t.Fatalf("Compare: %v", err)
		}
		if len(changes) != 0 {
			t.Fatalf("compare(t, t) at %s returned %d changes", instant, len(changes))
		}
	}
}

func TestCompareOmitsUnchangedAndOrdersByFileID(t *testing.T) {
	store := newFakeStore()
	store.addRepository(1, "repo")
	chain := NewChain(store, zerolog.Nop())
	recon := NewReconstructor(store, zerolog.Nop())
	ctx := context.Background()

	setClock(store, at(10, 0))
	stable, _, err := chain.CreateFile(ctx, CreateFileInput{
		RepositoryID: 1, Filename: "stable.txt", ContentText: strptr("same"),
	})
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	edited, _, err := chain.CreateFile(ctx, CreateFileInput{
		RepositoryID: 1, Filename: "edited.txt", ContentText: strptr("v1"),
	})
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	setClock(store, at(11, 0))
	if _, err := chain.UpdateFile(ctx, UpdateFileInput{FileID: edited.ID, ContentText: strptr("v2")}); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}
	late, _, err := chain.CreateFile(ctx, CreateFileInput{
		RepositoryID: 1, Filename: "late.txt", ContentText: strptr("new"),
	})
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	changes, err := recon.Compare(ctx, 1, at(10, 30), at(11, 30))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}

	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d: %+v", len(changes), changes)
	}
	for _, ch := range changes {
		if ch.FileID == stable.ID {
			t.Fatal("unchanged file must be omitted")
		}
	}
	if changes[0].FileID > changes[1].FileID {
		t.Fatal("changes not ordered by file id")
	}
	for _, ch := range changes {
		if ch.FileID == late.ID {
			if ch.VersionAtState1 != nil || ch.VersionAtState2 == nil || *ch.VersionAtState2 != 1 {
				t.Fatalf("late file: expected null -> 1, got %+v", ch)
			}
		}
		if ch.FileID == edited.ID {
			if ch.VersionAtState1 == nil || *ch.VersionAtState1 != 1 || ch.VersionAtState2 == nil || *ch.VersionAtState2 != 2 {
				t.Fatalf("edited file: expected 1 -> 2, got %+v", ch)
			}
		}
	}
}

func TestCompareReversedInstants(t *testing.T) {
	store := newFakeStore()
	store.addRepository(1, "repo")
	chain := NewChain(store, zerolog.Nop())
	recon := NewReconstructor(store, zerolog.Nop())
	ctx := context.Background()

	setClock(store, at(10, 0))
	file, _, err := chain.CreateFile(ctx, CreateFileInput{
		RepositoryID: 1, Filename: "f.txt", ContentText: strptr("v1"),
	})
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	setClock(store, at(11, 0))
	if _, err := chain.UpdateFile(ctx, UpdateFileInput{FileID: file.ID, ContentText: strptr("v2")}); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}

	// t1 > t2 executes symmetrically; no ordering validation.
	changes, err := recon.Compare(ctx, 1, at(12, 0), at(10, 30))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	if changes[0].VersionAtState1 == nil || *changes[0].VersionAtState1 != 2 {
		t.Fatalf("expected version 2 at state1, got %v", changes[0].VersionAtState1)
	}
	if changes[0].VersionAtState2 == nil || *changes[0].VersionAtState2 != 1 {
		t.Fatalf("expected version 1 at state2, got %v", changes[0].VersionAtState2)
	}
}
