package ssh

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// startEchoServer runs a minimal SSH server on an ephemeral loopback port. It
// authenticates 'userKey', accepts exec requests, echoes the command string
// back on stdout and reports success. Returns the listen host, port and the
// server's host key.
func startEchoServer(t *testing.T, userKey ssh.PublicKey) (string, uint16, ssh.PublicKey) {
	t.Helper()

	hostKeys, err := NewED25519KeyPair()
	require.NoError(t, err)
	hostSigner, err := hostKeys.Signer()
	require.NoError(t, err)

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if string(key.Marshal()) != string(userKey.Marshal()) {
				return nil, assert.AnError
			}
			return &ssh.Permissions{}, nil
		},
	}
	config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			tcpConn, err := listener.Accept()
			if err != nil {
				return
			}
			conn, chans, reqs, err := ssh.NewServerConn(tcpConn, config)
			if err != nil {
				continue
			}
			go ssh.DiscardRequests(reqs)
			go func() {
				defer conn.Close()
				for newChan := range chans {
					if newChan.ChannelType() != "session" {
						_ = newChan.Reject(ssh.UnknownChannelType, "unsupported")
						continue
					}
					channel, chanReqs, err := newChan.Accept()
					if err != nil {
						continue
					}
					go func() {
						defer channel.Close()
						for req := range chanReqs {
							if req.Type != "exec" {
								_ = req.Reply(false, nil)
								continue
							}
							// The exec payload is a length-prefixed command string.
							var payload struct{ Command string }
							_ = ssh.Unmarshal(req.Payload, &payload)
							_ = req.Reply(true, nil)
							_, _ = channel.Write([]byte(payload.Command))
							_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{0}))
							return
						}
					}()
				}
			}()
		}
	}()

	host, portStr, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.ParseUint(portStr, 10, 16)
	require.NoError(t, err)
	return host, uint16(port), hostSigner.PublicKey()
}

func TestConnectAndExec(t *testing.T) {
	userKeys, err := NewED25519KeyPair()
	require.NoError(t, err)
	userSigner, err := userKeys.Signer()
	require.NoError(t, err)

	host, port, hostKey := startEchoServer(t, userSigner.PublicKey())

	t.Run("exec echoes the command", func(t *testing.T) {
		client, err := Connect(host, port, "ubuntu", userSigner, hostKey)
		require.NoError(t, err)
		defer client.Close()

		stdout, stderr, err := Exec(client, "systemctl is-active docker")
		require.NoError(t, err)
		assert.Equal(t, "systemctl is-active docker", stdout)
		assert.Empty(t, stderr)
	})

	t.Run("host key pinning rejects a stranger", func(t *testing.T) {
		strangerKeys, err := NewED25519KeyPair()
		require.NoError(t, err)
		strangerPub, err := ssh.NewPublicKey(strangerKeys.Public)
		require.NoError(t, err)

		_, err = Connect(host, port, "ubuntu", userSigner, strangerPub)
		require.Error(t, err)
	})

	t.Run("unknown user key is refused", func(t *testing.T) {
		otherKeys, err := NewED25519KeyPair()
		require.NoError(t, err)
		otherSigner, err := otherKeys.Signer()
		require.NoError(t, err)

		_, err = Connect(host, port, "ubuntu", otherSigner, hostKey)
		require.ErrorIs(t, err, ErrFailedDial)
	})
}
