// Package syncer implements the incremental, resumable sync engine. It
// replicates a project's commit history to the uplink server in bounded
// batches, persisting progress after every batch so an interrupted sync
// resumes exactly where it left off, and mirrors all branch references
// once the history is up to date.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uplinkd/git-uplink/auth"
	"github.com/uplinkd/git-uplink/internal/lock"
	"github.com/uplinkd/git-uplink/project"
	"github.com/uplinkd/git-uplink/repository"
)

// defaultBatchSize bounds the number of commits transmitted per push.
const defaultBatchSize = 1000

// Repo is the repository surface the engine consumes. *repository.Repo
// implements it; tests substitute fakes.
type Repo interface {
	DefaultTarget() (repository.Oid, error)
	Walk(from repository.Oid, exclude []repository.Oid) (repository.CommitWalker, error)
	References(pattern string) ([]repository.Reference, error)
	PushRefspecs(ctx context.Context, creds *auth.Credentials, refspecs []string) (bool, error)
}

// OpenFunc opens a project's repository.
type OpenFunc func(p *project.Project, log *slog.Logger) (Repo, error)

func openRepository(p *project.Project, log *slog.Logger) (Repo, error) {
	return repository.Open(p, log)
}

// Syncer replicates projects to the uplink server. A single gate shared
// across all projects allows at most one sync in flight per Syncer;
// overlapping triggers are dropped, not queued.
type Syncer struct {
	store     project.Store
	creds     auth.Source
	open      OpenFunc
	batchSize int
	gate      *lock.Gate
	log       *slog.Logger
}

// New creates a Syncer over the given project store and credential
// source. A nil creds source means unauthenticated pushes; batchSize
// defaults to 1000 when not positive.
func New(store project.Store, creds auth.Source, batchSize int, log *slog.Logger) *Syncer {
	if creds == nil {
		creds = auth.None{}
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{
		store:     store,
		creds:     creds,
		open:      openRepository,
		batchSize: batchSize,
		gate:      lock.NewGate(),
		log:       log,
	}
}

// Handle syncs one project. It never blocks the caller: when another sync
// is already in flight the call returns immediately with no events and no
// error, and the caller is expected to re-trigger later. Network failures
// are swallowed for the same reason; only non-network failures surface,
// wrapped with the phase that failed.
func (s *Syncer) Handle(ctx context.Context, projectID project.ID) ([]Event, error) {
	if !s.gate.TryAcquire() {
		s.log.Debug("sync already in flight, dropping trigger", "project", projectID)
		return nil, nil
	}
	defer s.gate.Release()

	start := time.Now()
	defer updateSyncLatency(projectID.String(), start)

	events, err := s.sync(ctx, projectID)
	if err != nil {
		recordSync(projectID.String(), false)
		if repository.IsNetwork(err) {
			s.log.Warn("network failure during sync, will retry on next trigger",
				"project", projectID, "err", err)
			return nil, nil
		}
		return nil, err
	}

	recordSync(projectID.String(), true)
	return events, nil
}

func (s *Syncer) sync(ctx context.Context, projectID project.ID) ([]Event, error) {
	p, err := s.store.Get(projectID)
	if err != nil {
		return nil, fmt.Errorf("unable to load project err:%w", err)
	}

	if !p.SyncEnabled || p.CodeGitURL == "" {
		s.log.Debug("sync disabled or no remote configured, skipping", "project", projectID)
		return nil, nil
	}

	creds, err := s.creds.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load user credentials err:%w", err)
	}

	repo, err := s.open(p, s.log)
	if err != nil {
		return nil, fmt.Errorf("unable to open repository err:%w", err)
	}

	target, err := repo.DefaultTarget()
	if errors.Is(err, repository.ErrNoDefaultTarget) {
		s.log.Debug("no default target yet, skipping", "project", projectID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read default target err:%w", err)
	}

	if p.PushState == nil || p.PushState.LastPushedCommit != target.String() {
		if err := s.pushHistory(ctx, repo, p, creds, target); err != nil {
			return nil, err
		}
	} else {
		s.log.Debug("target already pushed", "project", projectID, "target", target)
	}

	if err := s.mirrorRefs(ctx, repo, p, creds); err != nil {
		return nil, err
	}

	// refresh the timestamp even when no new commits existed
	if err := s.recordProgress(p.ID, target); err != nil {
		return nil, fmt.Errorf("unable to update push state err:%w", err)
	}

	return nil, nil
}

// pushHistory computes the checkpoint plan for target and pushes it
// oldest-first per the batch-push protocol.
func (s *Syncer) pushHistory(ctx context.Context, repo Repo, p *project.Project, creds *auth.Credentials, target repository.Oid) error {
	var exclude []repository.Oid
	if p.PushState != nil {
		if since := repository.ParseOid(p.PushState.LastPushedCommit); since != repository.ZeroOid {
			exclude = append(exclude, since)
		}
	}

	walk, err := repo.Walk(target, exclude)
	if err != nil {
		return fmt.Errorf("unable to walk commit graph err:%w", err)
	}
	defer walk.Close()

	ids, err := checkpoints(walk, target, s.batchSize)
	if err != nil {
		return fmt.Errorf("unable to plan batches err:%w", err)
	}

	s.log.Info("pushing project history", "project", p.ID, "target", target, "batches", len(ids))
	return s.pushCheckpoints(ctx, repo, p, creds, ids)
}

// recordProgress persists the given commit as the project's push state,
// replacing the previous value as a whole.
func (s *Syncer) recordProgress(id project.ID, commit repository.Oid) error {
	return s.store.Update(project.UpdateRequest{
		ID: id,
		PushState: &project.PushState{
			LastPushedCommit: commit.String(),
			Timestamp:        time.Now().UTC(),
		},
	})
}
