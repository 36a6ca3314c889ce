package provision

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitTCP(t *testing.T) {
	const host = "127.0.0.1"
	const port = 2222
	// Standard case (port open)
	ctx, cancel := context.WithCancel(context.Background())
	mockServer(t, ctx, port, 0)
	require.NoError(t, waitTCP(ctx, host, port))
	cancel()
	// Expect deadline
	ctx, cancel = context.WithTimeout(context.Background(), 500*time.Millisecond)
	require.ErrorIs(t, context.DeadlineExceeded, waitTCP(ctx, host, port))
	cancel()
}

func mockServer(t *testing.T, ctx context.Context, port uint16, startDelay time.Duration) {
	go func() {
		<-time.After(startDelay)
		listener, err := net.ListenTCP("tcp", &net.TCPAddr{
			IP:   net.IPv4(127, 0, 0, 1),
			Port: int(port),
		})
		require.NoError(t, err)
		defer func() { require.NoError(t, listener.Close()) }()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				// 'AcceptTCP()' blocks forever, but the context being marked done
				// should be caught as soon as possible, so the listener deadline is
				// re-armed to now+100ms each pass.
				require.NoError(t, listener.SetDeadline(time.Now().Add(100*time.Millisecond)))
				conn, err := listener.AcceptTCP()
				if err != nil {
					if err, ok := err.(*net.OpError); ok && err.Timeout() {
						continue
					}
				}
				// Just the ACK is needed, so the connection closes immediately.
				require.NoError(t, err)
				require.NoError(t, conn.Close())
			}
		}
	}()
}
