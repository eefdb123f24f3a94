package project

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/uplinkd/git-uplink/id"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()

	s, err := NewBoltStore(filepath.Join(t.TempDir(), "uplink.db"))
	if err != nil {
		t.Fatalf("unable to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newID() ID {
	return id.New[Project]()
}

func TestStoreGetMissing(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Get(newID()); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestStoreUpsertGet(t *testing.T) {
	s := newTestStore(t)

	want := Project{
		ID:          newID(),
		RepoPath:    "/src/app",
		CodeGitURL:  "https://uplink.example.com/app.git",
		SyncEnabled: true,
	}
	if err := s.Upsert(&want); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := s.Get(want.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	ignoreTimes := cmpopts.IgnoreFields(Project{}, "CreatedAt", "UpdatedAt")
	if diff := cmp.Diff(want, *got, ignoreTimes); diff != "" {
		t.Errorf("project mismatch (-want +got):\n%s", diff)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestStoreUpsertPreservesPushState(t *testing.T) {
	s := newTestStore(t)

	p := Project{ID: newID(), RepoPath: "/src/app", SyncEnabled: true}
	if err := s.Upsert(&p); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	state := PushState{LastPushedCommit: "aa00", Timestamp: time.Now().UTC()}
	if err := s.Update(UpdateRequest{ID: p.ID, PushState: &state}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	// re-seeding from config must not wipe sync progress
	p.PushState = nil
	if err := s.Upsert(&p); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	got, err := s.Get(p.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.PushState == nil || got.PushState.LastPushedCommit != "aa00" {
		t.Fatalf("push state lost on upsert: %+v", got.PushState)
	}
}

func TestStoreUpdateMergesFields(t *testing.T) {
	s := newTestStore(t)

	p := Project{
		ID:          newID(),
		RepoPath:    "/src/app",
		CodeGitURL:  "https://uplink.example.com/app.git",
		SyncEnabled: true,
	}
	if err := s.Upsert(&p); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	enabled := false
	if err := s.Update(UpdateRequest{ID: p.ID, SyncEnabled: &enabled}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := s.Get(p.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.SyncEnabled {
		t.Error("expected sync to be disabled")
	}
	if got.RepoPath != p.RepoPath || got.CodeGitURL != p.CodeGitURL {
		t.Errorf("unrelated fields changed: %+v", got)
	}
}

func TestStoreUpdatePushStateReplaces(t *testing.T) {
	s := newTestStore(t)

	p := Project{ID: newID(), RepoPath: "/src/app", SyncEnabled: true}
	if err := s.Upsert(&p); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	first := PushState{LastPushedCommit: "aa00", Timestamp: time.Now().UTC()}
	second := PushState{LastPushedCommit: "bb11", Timestamp: time.Now().UTC().Add(time.Second)}

	for _, state := range []PushState{first, second} {
		if err := s.Update(UpdateRequest{ID: p.ID, PushState: &state}); err != nil {
			t.Fatalf("update failed: %v", err)
		}
	}

	got, err := s.Get(p.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if diff := cmp.Diff(second, *got.PushState); diff != "" {
		t.Errorf("push state mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreUpdateMissing(t *testing.T) {
	s := newTestStore(t)

	enabled := true
	err := s.Update(UpdateRequest{ID: newID(), SyncEnabled: &enabled})
	if !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestStoreListAndDelete(t *testing.T) {
	s := newTestStore(t)

	a := Project{ID: newID(), RepoPath: "/src/a", SyncEnabled: true}
	b := Project{ID: newID(), RepoPath: "/src/b"}
	for _, p := range []*Project{&a, &b} {
		if err := s.Upsert(p); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	all, err := s.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(all))
	}

	if err := s.Delete(a.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.Get(a.ID); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist after delete, got %v", err)
	}
}
