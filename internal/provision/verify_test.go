package provision

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditIngress(t *testing.T) {
	adminCIDRs := []string{"198.51.100.0/24"}
	goodRules := []ingressRule{
		{Port: 80, CIDR: "0.0.0.0/0"},
		{Port: 443, CIDR: "0.0.0.0/0"},
		{Port: 22, CIDR: "198.51.100.0/24"},
	}

	t.Run("clean posture yields no findings", func(t *testing.T) {
		require.Empty(t, auditIngress(goodRules, adminCIDRs))
	})

	t.Run("world-open SSH is critical", func(t *testing.T) {
		rules := append(goodRules, ingressRule{Port: 22, CIDR: "0.0.0.0/0"})
		findings := auditIngress(rules, adminCIDRs)
		require.Len(t, findings, 1)
		assert.Equal(t, SeverityCritical, findings[0].Severity)
		assert.Contains(t, findings[0].Message, "0.0.0.0/0")
	})

	t.Run("SSH from outside the allow-list is a warning", func(t *testing.T) {
		rules := append(goodRules, ingressRule{Port: 22, CIDR: "192.0.2.0/24"})
		findings := auditIngress(rules, adminCIDRs)
		require.Len(t, findings, 1)
		assert.Equal(t, SeverityWarning, findings[0].Severity)
		assert.Contains(t, findings[0].Message, "192.0.2.0/24")
	})

	t.Run("unexpected open port is a warning", func(t *testing.T) {
		rules := append(goodRules, ingressRule{Port: 5432, CIDR: "0.0.0.0/0"})
		findings := auditIngress(rules, adminCIDRs)
		require.Len(t, findings, 1)
		assert.Equal(t, SeverityWarning, findings[0].Severity)
		assert.Contains(t, findings[0].Message, "tcp/5432")
	})

	t.Run("missing service port is flagged", func(t *testing.T) {
		findings := auditIngress(goodRules[1:], adminCIDRs)
		require.Len(t, findings, 1)
		assert.Contains(t, findings[0].Message, "tcp/80")
	})

	t.Run("empty rule set flags all three ports", func(t *testing.T) {
		require.Len(t, auditIngress(nil, adminCIDRs), 3)
	})
}

func TestAuditPublicAccessBlock(t *testing.T) {
	fullyBlocked := &s3types.PublicAccessBlockConfiguration{
		BlockPublicAcls:       aws.Bool(true),
		BlockPublicPolicy:     aws.Bool(true),
		IgnorePublicAcls:      aws.Bool(true),
		RestrictPublicBuckets: aws.Bool(true),
	}

	t.Run("fully blocked yields no findings", func(t *testing.T) {
		require.Empty(t, auditPublicAccessBlock(fullyBlocked))
	})

	t.Run("nil configuration is critical", func(t *testing.T) {
		findings := auditPublicAccessBlock(nil)
		require.Len(t, findings, 1)
		assert.Equal(t, SeverityCritical, findings[0].Severity)
	})

	t.Run("each disabled flag is its own finding", func(t *testing.T) {
		block := *fullyBlocked
		block.BlockPublicPolicy = aws.Bool(false)
		block.RestrictPublicBuckets = nil

		findings := auditPublicAccessBlock(&block)
		require.Len(t, findings, 2)
		assert.Contains(t, findings[0].Message, "BlockPublicPolicy")
		assert.Contains(t, findings[1].Message, "RestrictPublicBuckets")
		for _, finding := range findings {
			assert.Equal(t, SeverityCritical, finding.Severity)
		}
	})
}

func TestFlattenIngress(t *testing.T) {
	perms := []ec2types.IpPermission{
		{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(22),
			ToPort:     aws.Int32(22),
			IpRanges: []ec2types.IpRange{
				{CidrIp: aws.String("198.51.100.0/24")},
				{CidrIp: aws.String("203.0.113.0/24")},
			},
		},
		{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(80),
			ToPort:     aws.Int32(80),
			IpRanges:   []ec2types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
		},
	}

	assert.Equal(t, []ingressRule{
		{Port: 22, CIDR: "198.51.100.0/24"},
		{Port: 22, CIDR: "203.0.113.0/24"},
		{Port: 80, CIDR: "0.0.0.0/0"},
	}, flattenIngress(perms))
}
