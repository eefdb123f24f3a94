package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// ErrNoDefaultTarget is returned when the repository has no default
// target yet (unborn HEAD, no commits). Callers treat it as a
// precondition, not a failure.
var ErrNoDefaultTarget = errors.New("repository has no default target")

// ErrorKind classifies a failed remote operation. The sync engine
// branches on the kind, never on the error message.
type ErrorKind int

const (
	// KindNetwork covers transport-level failures: no connectivity, DNS
	// failure, timeout before the remote answered. Safe to retry later.
	KindNetwork ErrorKind = iota

	// KindAuth covers rejected or missing credentials.
	KindAuth

	// KindRejected covers every other remote failure, eg a policy
	// rejection or malformed refspec. Fatal for the current sync.
	KindRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// RemoteError wraps a failure talking to the uplink remote with its
// classification.
type RemoteError struct {
	Kind ErrorKind
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (%s): %v", e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsNetwork reports whether err is a network-classified remote failure
// anywhere in its chain.
func IsNetwork(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr) && remoteErr.Kind == KindNetwork
}

// classifyPushError maps a go-git push failure onto a RemoteError.
func classifyPushError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		return &RemoteError{Kind: KindAuth, Err: err}
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return &RemoteError{Kind: KindNetwork, Err: err}
	// connection dropped mid-transport surfaces as a bare EOF
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return &RemoteError{Kind: KindNetwork, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &RemoteError{Kind: KindNetwork, Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &RemoteError{Kind: KindNetwork, Err: err}
	}

	return &RemoteError{Kind: KindRejected, Err: err}
}
