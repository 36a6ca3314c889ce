package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/chainguard-dev/clog"
)

// Severity ranks a verification finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Finding is one deviation between the deployment's live posture and what a
// correctly converged deployment looks like. No findings means the
// deployment passed.
type Finding struct {
	Severity Severity
	Resource string
	Message  string
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Resource, f.Message)
}

var ErrVerify = fmt.Errorf("failed verification probe")

// Verify audits the live deployment: the security group's inbound posture,
// the bucket's public access lockdown, the instance state, and actual TCP
// reachability of the service and admin ports. It returns findings, not an
// error, for posture deviations; errors are reserved for probes that could
// not run at all.
func (p *Provisioner) Verify(ctx context.Context) ([]Finding, error) {
	log := clog.FromContext(ctx).With(
		"project", p.Project,
		"environment", p.Environment,
	)
	ctx = clog.WithLogger(ctx, log)

	state, err := p.Discover(ctx)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	if state.SecurityGroupID == "" {
		findings = append(findings, Finding{SeverityCritical, "security group", "does not exist"})
	} else {
		findings = append(findings, auditIngress(state.Ingress, p.cfg.Access.AdminCIDRs)...)
	}

	if !state.BucketExists {
		findings = append(findings, Finding{SeverityCritical, "bucket", "does not exist"})
	} else {
		block, err := p.s3c.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{
			Bucket: aws.String(p.BucketName()),
		})
		switch {
		case errorCodeIs(err, codePublicAccessBlockNotFound):
			findings = append(findings, Finding{SeverityCritical, "bucket", "no public access block configured"})
		case err != nil:
			return nil, fmt.Errorf("%w: %w", ErrVerify, err)
		default:
			findings = append(findings, auditPublicAccessBlock(block.PublicAccessBlockConfiguration)...)
		}
	}

	if state.InstanceID == "" {
		findings = append(findings, Finding{SeverityCritical, "instance", "does not exist"})
		return findings, nil
	}
	instanceState, err := p.instanceState(ctx, state.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerify, err)
	}
	if instanceState != types.InstanceStateNameRunning {
		findings = append(findings, Finding{
			SeverityCritical, "instance",
			fmt.Sprintf("state is %q, want running", instanceState),
		})
	}

	if state.Address.PublicIP == "" || state.Address.InstanceID != state.InstanceID {
		findings = append(findings, Finding{SeverityCritical, "elastic IP", "not associated with the instance"})
		return findings, nil
	}
	for _, port := range []uint16{uint16(portSSH), uint16(portHTTP)} {
		probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := waitTCP(probeCtx, state.Address.PublicIP, port)
		cancel()
		if err != nil {
			findings = append(findings, Finding{
				SeverityWarning, fmt.Sprintf("tcp/%d", port),
				fmt.Sprintf("%s is not reachable", state.Address.PublicIP),
			})
		}
	}
	return findings, nil
}

// auditIngress checks the inbound rule set: SSH reachable only from the
// admin allow-list, service ports present, nothing unexpected open.
func auditIngress(rules []ingressRule, adminCIDRs []string) []Finding {
	var findings []Finding

	admin := make(map[string]bool, len(adminCIDRs))
	for _, cidr := range adminCIDRs {
		admin[cidr] = true
	}

	found := make(map[int32]bool, len(rules))
	for _, rule := range rules {
		found[rule.Port] = true
		switch rule.Port {
		case portHTTP, portHTTPS:
		case portSSH:
			if rule.CIDR == anywhereCIDR {
				findings = append(findings, Finding{
					SeverityCritical, "security group",
					"SSH is open to 0.0.0.0/0",
				})
			} else if !admin[rule.CIDR] {
				findings = append(findings, Finding{
					SeverityWarning, "security group",
					fmt.Sprintf("SSH allowed from %s, which is not in the admin allow-list", rule.CIDR),
				})
			}
		default:
			findings = append(findings, Finding{
				SeverityWarning, "security group",
				fmt.Sprintf("unexpected inbound rule: tcp/%d from %s", rule.Port, rule.CIDR),
			})
		}
	}
	for _, port := range []int32{portHTTP, portHTTPS, portSSH} {
		if !found[port] {
			findings = append(findings, Finding{
				SeverityWarning, "security group",
				fmt.Sprintf("no inbound rule for tcp/%d", port),
			})
		}
	}
	return findings
}

// auditPublicAccessBlock checks that all four public access vectors on the
// bucket are blocked.
func auditPublicAccessBlock(block *s3types.PublicAccessBlockConfiguration) []Finding {
	if block == nil {
		return []Finding{{SeverityCritical, "bucket", "no public access block configured"}}
	}
	var findings []Finding
	for _, flag := range []struct {
		name string
		set  *bool
	}{
		{"BlockPublicAcls", block.BlockPublicAcls},
		{"BlockPublicPolicy", block.BlockPublicPolicy},
		{"IgnorePublicAcls", block.IgnorePublicAcls},
		{"RestrictPublicBuckets", block.RestrictPublicBuckets},
	} {
		if !aws.ToBool(flag.set) {
			findings = append(findings, Finding{
				SeverityCritical, "bucket",
				fmt.Sprintf("%s is not enabled", flag.name),
			})
		}
	}
	return findings
}
