package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/uplinkd/git-uplink/auth"
	"github.com/uplinkd/git-uplink/project"
)

// uplinkRemoteName names the in-memory remote used for pushes. It is
// never written to the repository config.
const uplinkRemoteName = "uplink"

// Oid is an opaque content-addressed identifier of a commit.
type Oid = plumbing.Hash

// ZeroOid is the zero value of Oid.
var ZeroOid = plumbing.ZeroHash

// ParseOid parses the hex text form of an Oid. An invalid string yields
// ZeroOid.
func ParseOid(s string) Oid {
	return plumbing.NewHash(s)
}

// Repo gives the sync engine read and push access to a project's local
// repository. A Repo is cheap to open and not kept across syncs.
type Repo struct {
	path    string
	codeURL string
	repo    *git.Repository
	log     *slog.Logger
}

// Open opens the project's repository. The path may point at the work
// tree or at the .git directory.
func Open(p *project.Project, log *slog.Logger) (*Repo, error) {
	if log == nil {
		log = slog.Default()
	}

	repo, err := git.PlainOpenWithOptions(p.RepoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("unable to open repository at %s err:%w", p.RepoPath, err)
	}

	return &Repo{
		path:    p.RepoPath,
		codeURL: p.CodeGitURL,
		repo:    repo,
		log:     log.With("project", p.ID),
	}, nil
}

// DefaultTarget resolves the commit the local HEAD currently points at.
// Returns ErrNoDefaultTarget for a repository without commits.
func (r *Repo) DefaultTarget() (Oid, error) {
	head, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return ZeroOid, ErrNoDefaultTarget
	}
	if err != nil {
		return ZeroOid, fmt.Errorf("unable to resolve HEAD err:%w", err)
	}
	return head.Hash(), nil
}

// CommitWalker is a finite lazy sequence of commit ids in
// descendant-to-ancestor order. Next returns io.EOF when the walk is
// exhausted.
type CommitWalker interface {
	Next() (Oid, error)
	Close()
}

// Walk starts a new walk of the commit graph at from. Commits in exclude,
// and ancestors reachable only through them, are not visited. The walk
// includes from itself and is restartable: every call returns a fresh
// walker.
func (r *Repo) Walk(from Oid, exclude []Oid) (CommitWalker, error) {
	commit, err := r.repo.CommitObject(from)
	if err != nil {
		return nil, fmt.Errorf("unable to load commit %s err:%w", from, err)
	}
	return &revWalk{iter: newPreorderIter(commit, exclude)}, nil
}

// PushRefspecs sends the given refspecs to the project's uplink remote in
// one batched operation. It reports whether any change was actually
// transmitted; an up-to-date remote is not an error. Failures are
// classified as RemoteError.
func (r *Repo) PushRefspecs(ctx context.Context, creds *auth.Credentials, refspecs []string) (bool, error) {
	if len(refspecs) == 0 {
		return false, nil
	}
	if r.codeURL == "" {
		return false, errors.New("project has no code url configured")
	}

	specs := make([]config.RefSpec, 0, len(refspecs))
	for _, raw := range refspecs {
		spec := config.RefSpec(raw)
		if err := spec.Validate(); err != nil {
			return false, &RemoteError{Kind: KindRejected, Err: fmt.Errorf("invalid refspec %q err:%w", raw, err)}
		}
		specs = append(specs, spec)
	}

	remote := git.NewRemote(r.repo.Storer, &config.RemoteConfig{
		Name: uplinkRemoteName,
		URLs: []string{r.codeURL},
	})

	opts := &git.PushOptions{
		RemoteName: uplinkRemoteName,
		RefSpecs:   specs,
	}
	if creds != nil {
		opts.Auth = &githttp.BasicAuth{Username: creds.Username, Password: creds.Token}
	}

	err := remote.PushContext(ctx, opts)
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		r.log.Debug("remote already up to date", "refspecs", len(refspecs))
		return false, nil
	}
	if err != nil {
		return false, classifyPushError(err)
	}
	return true, nil
}

// ValidateRemoteURL reports whether url is a git remote URL that the
// transport layer can dial.
func ValidateRemoteURL(url string) error {
	if _, err := transport.NewEndpoint(url); err != nil {
		return fmt.Errorf("invalid remote url %q err:%w", url, err)
	}
	return nil
}
