package ssh

// client.go implements a facade over 'x/crypto/ssh', simplifying SSH
// connection construction and single-command execution.

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

const dialTimeout = 3 * time.Second

var (
	ErrFailedDial     = fmt.Errorf("failed to establish TCP/22 connection")
	ErrHostKeyInvalid = fmt.Errorf("target's host key is invalid")
	ErrSessionInit    = fmt.Errorf("failed to begin SSH session")
	ErrCMDExec        = fmt.Errorf("failed to execute SSH command")
)

// Connect establishes an SSH connection to 'host' on TCP port 'port',
// authenticating as 'user' with 'signer'.
//
// Any values provided to 'hostKeys' are compared against the host key offered
// by 'host'. With no 'hostKeys' every host key is accepted; a freshly
// launched instance has no knowable host key yet, which is the normal case
// here.
func Connect(host string, port uint16, user string, signer ssh.Signer, hostKeys ...ssh.PublicKey) (*ssh.Client, error) {
	if port == 0 {
		port = 22
	}
	config := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			if len(hostKeys) == 0 {
				return nil
			}
			for _, hostKey := range hostKeys {
				if bytes.Equal(hostKey.Marshal(), key.Marshal()) {
					return nil
				}
			}
			return ErrHostKeyInvalid
		},
		Timeout: dialTimeout,
	}
	client, err := ssh.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(int(port))), config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedDial, err)
	}
	return client, nil
}

// Exec executes a single command, returning any standard out/err received.
func Exec(client *ssh.Client, cmd string) (string, string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrSessionInit, err)
	}
	defer session.Close()
	stdout := new(bytes.Buffer)
	session.Stdout = stdout
	stderr := new(bytes.Buffer)
	session.Stderr = stderr
	if err = session.Run(cmd); err != nil {
		return stdout.String(), stderr.String(), fmt.Errorf("%w: %w", ErrCMDExec, err)
	}
	return stdout.String(), stderr.String(), nil
}
