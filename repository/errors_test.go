package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPushError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"auth required", transport.ErrAuthenticationRequired, KindAuth},
		{"auth failed", transport.ErrAuthorizationFailed, KindAuth},
		{"deadline", context.DeadlineExceeded, KindNetwork},
		{"cancelled", context.Canceled, KindNetwork},
		{"eof", io.EOF, KindNetwork},
		{"unexpected eof", io.ErrUnexpectedEOF, KindNetwork},
		{"dns", &net.DNSError{Err: "no such host", Name: "uplink.example.com"}, KindNetwork},
		{"conn refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, KindNetwork},
		{"wrapped dns", fmt.Errorf("request failed err:%w", &net.DNSError{Err: "timeout"}), KindNetwork},
		{"policy rejection", errors.New("pre-receive hook declined"), KindRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyPushError(tt.err)

			var remoteErr *RemoteError
			require.ErrorAs(t, err, &remoteErr)
			assert.Equal(t, tt.want, remoteErr.Kind)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClassifyPushErrorNil(t *testing.T) {
	require.NoError(t, classifyPushError(nil))
}

func TestIsNetwork(t *testing.T) {
	netErr := classifyPushError(&net.DNSError{Err: "no such host"})
	assert.True(t, IsNetwork(netErr))

	// classification survives wrapping with phase context
	assert.True(t, IsNetwork(fmt.Errorf("unable to push err:%w", netErr)))

	assert.False(t, IsNetwork(classifyPushError(errors.New("rejected"))))
	assert.False(t, IsNetwork(errors.New("plain")))
	assert.False(t, IsNetwork(nil))
}
