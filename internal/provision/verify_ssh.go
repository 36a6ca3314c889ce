package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/kballard/go-shellquote"

	"github.com/berthport/berth/internal/bootstrap"
	"github.com/berthport/berth/internal/ssh"
)

// VerifyBootstrap logs into the instance over SSH and checks that first-boot
// provisioning actually finished: the bootstrap success marker landed in the
// cloud-init log, the Docker daemon is active, and the Compose plugin
// answers. It needs the operator's private key, which only the operator
// holds, so it runs on request rather than as part of Verify.
func (p *Provisioner) VerifyBootstrap(ctx context.Context, privateKeyPath string) ([]Finding, error) {
	log := clog.FromContext(ctx).With(
		"project", p.Project,
		"environment", p.Environment,
	)

	addr, err := p.findAddress(ctx)
	if err != nil {
		return nil, err
	}
	if addr.PublicIP == "" {
		return []Finding{{SeverityCritical, "elastic IP", "not allocated, nothing to connect to"}}, nil
	}

	signer, err := ssh.LoadSigner(privateKeyPath)
	if err != nil {
		return nil, err
	}
	client, err := ssh.Connect(addr.PublicIP, uint16(portSSH), p.cfg.Bootstrap.OperatorUser, signer)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	log.Info("connected to instance", "host", addr.PublicIP, "user", p.cfg.Bootstrap.OperatorUser)

	var findings []Finding
	for _, check := range []struct {
		resource string
		command  string
		message  string
	}{
		{
			"bootstrap",
			"grep -qF " + shellquote.Join(bootstrap.SuccessMarker) + " /var/log/cloud-init-output.log",
			"success marker not found in the cloud-init log",
		},
		{
			"docker",
			"systemctl is-active --quiet docker",
			"daemon is not active",
		},
		{
			"docker-compose",
			"docker-compose version",
			"binary did not answer",
		},
		{
			"aws cli",
			"aws --version",
			"not installed",
		},
		{
			"app dir",
			"test -d " + shellquote.Join(p.cfg.Bootstrap.AppDir),
			fmt.Sprintf("%s does not exist", p.cfg.Bootstrap.AppDir),
		},
	} {
		_, stderr, err := ssh.Exec(client, check.command)
		if err != nil {
			message := check.message
			if detail := strings.TrimSpace(stderr); detail != "" {
				message = fmt.Sprintf("%s: %s", message, detail)
			}
			findings = append(findings, Finding{SeverityCritical, check.resource, message})
			continue
		}
		log.Debug("check passed", "resource", check.resource)
	}
	return findings, nil
}
