package provision

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/chainguard-dev/clog"
)

// waitTCP blocks until 'host:port' accepts a TCP connection. The only error
// it returns is 'context.DeadlineExceeded', so callers bound it with a
// deadline context.
func waitTCP(ctx context.Context, host string, port uint16) error {
	log := clog.FromContext(ctx).With("host", host, "port", port)
	log.Debug("beginning wait for TCP port reachability")
	target := net.JoinHostPort(host, strconv.Itoa(int(port)))
	for {
		select {
		case <-ctx.Done():
			log.Debug("hit deadline waiting for the TCP port to open")
			return context.DeadlineExceeded
		case <-time.After(100 * time.Millisecond):
			if tcpPortOpen(ctx, target) {
				return nil
			}
		}
	}
}

var dialer = &net.Dialer{
	Timeout: 3 * time.Second,
}

func tcpPortOpen(ctx context.Context, target string) bool {
	log := clog.FromContext(ctx).With("target", target)
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		log.Debug("target is not yet reachable", "error", err)
		return false
	}
	if err := conn.Close(); err != nil {
		log.Warn("encountered error closing TCP connection", "error", err)
	}
	log.Debug("target is reachable")
	return true
}
