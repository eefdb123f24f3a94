package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initBareRemote creates a bare repository and installs an in-process
// file:// transport rooted at its parent, so the tests do not depend on a
// git binary being installed.
func initBareRemote(t *testing.T) (*git.Repository, string) {
	t.Helper()

	root := t.TempDir()
	remote, err := git.PlainInit(filepath.Join(root, "remote"), true)
	require.NoError(t, err)

	prev := client.Protocols["file"]
	loader := server.NewFilesystemLoader(osfs.New(root))
	client.InstallProtocol("file", server.NewClient(loader))
	t.Cleanup(func() {
		if prev != nil {
			client.InstallProtocol("file", prev)
		} else {
			delete(client.Protocols, "file")
		}
	})

	return remote, "file:///remote"
}

func TestPushRefspecsRoundTrip(t *testing.T) {
	gitRepo, dir := initTestRepo(t)
	hashes := commitN(t, gitRepo, 3)
	tip := hashes[len(hashes)-1]

	remote, url := initBareRemote(t)

	repo, err := Open(testProject(dir, url), nil)
	require.NoError(t, err)

	spec := fmt.Sprintf("+%s:refs/push-tmp/test", tip)

	changed, err := repo.PushRefspecs(context.Background(), nil, []string{spec})
	require.NoError(t, err)
	assert.True(t, changed)

	ref, err := remote.Reference(plumbing.ReferenceName("refs/push-tmp/test"), false)
	require.NoError(t, err)
	assert.Equal(t, tip, ref.Hash())

	// pushing the same spec again is a no-op, not an error
	changed, err = repo.PushRefspecs(context.Background(), nil, []string{spec})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPushRefspecsForceUpdate(t *testing.T) {
	gitRepo, dir := initTestRepo(t)
	hashes := commitN(t, gitRepo, 2)

	remote, url := initBareRemote(t)

	repo, err := Open(testProject(dir, url), nil)
	require.NoError(t, err)

	for _, h := range hashes {
		changed, err := repo.PushRefspecs(context.Background(), nil,
			[]string{fmt.Sprintf("+%s:refs/push-tmp/test", h)})
		require.NoError(t, err)
		assert.True(t, changed)
	}

	ref, err := remote.Reference(plumbing.ReferenceName("refs/push-tmp/test"), false)
	require.NoError(t, err)
	assert.Equal(t, hashes[1], ref.Hash())
}

func TestPushRefspecsEmpty(t *testing.T) {
	_, dir := initTestRepo(t)

	repo, err := Open(testProject(dir, "file:///nowhere"), nil)
	require.NoError(t, err)

	changed, err := repo.PushRefspecs(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPushRefspecsNoRemoteURL(t *testing.T) {
	gitRepo, dir := initTestRepo(t)
	hashes := commitN(t, gitRepo, 1)

	repo, err := Open(testProject(dir, ""), nil)
	require.NoError(t, err)

	_, err = repo.PushRefspecs(context.Background(), nil,
		[]string{fmt.Sprintf("+%s:refs/push-tmp/test", hashes[0])})
	require.Error(t, err)
}

func TestPushRefspecsInvalidSpec(t *testing.T) {
	_, dir := initTestRepo(t)

	repo, err := Open(testProject(dir, "file:///nowhere"), nil)
	require.NoError(t, err)

	_, err = repo.PushRefspecs(context.Background(), nil, []string{"not a refspec"})
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, KindRejected, remoteErr.Kind)
}

func TestValidateRemoteURL(t *testing.T) {
	assert.NoError(t, ValidateRemoteURL("https://github.example.com/org/repo.git"))
	assert.NoError(t, ValidateRemoteURL("ssh://git@github.example.com/org/repo.git"))
	assert.Error(t, ValidateRemoteURL("://bad"))
}
