// config loads and validates the berth deployment configuration.
//
// The configuration is a single YAML document declaring everything a
// deployment needs: region, project identity, network layout, instance
// shape, the operator SSH key and the administrator CIDR allow-list.
//
// Security-sensitive inputs (credentials, admin CIDRs, the SSH key) carry no
// defaults. Leaving them out is a validation error, not a fallback.
package config

import (
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Project     string `yaml:"project"`
	Environment string `yaml:"environment"`
	Region      string `yaml:"region"`

	Auth      Auth      `yaml:"auth"`
	Network   Network   `yaml:"network"`
	Instance  Instance  `yaml:"instance"`
	Access    Access    `yaml:"access"`
	Storage   Storage   `yaml:"storage"`
	Bootstrap Bootstrap `yaml:"bootstrap"`
}

// Auth selects how AWS API calls authenticate.
//
// 'chain' (the default, and the recommended production path) defers to the
// standard AWS credential chain: environment, shared config/profile,
// instance role. 'static' pins long-lived keys directly in the configuration
// for parity with older deployments; both keys must then be present.
type Auth struct {
	Mode            string `yaml:"mode"`
	Profile         string `yaml:"profile"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

const (
	AuthModeChain  = "chain"
	AuthModeStatic = "static"
)

type Network struct {
	VPCCIDR     string   `yaml:"vpc_cidr"`
	SubnetCIDRs []string `yaml:"subnet_cidrs"`
}

type Instance struct {
	Type          string `yaml:"type"`
	AMI           string `yaml:"ami"`
	RootVolumeGiB int32  `yaml:"root_volume_gib"`

	// The operator public key imported to AWS as the instance key pair.
	// Exactly one source must be configured: inline material, a file path, or
	// explicit local generation of an ED25519 pair.
	SSHPublicKey     string `yaml:"ssh_public_key"`
	SSHPublicKeyFile string `yaml:"ssh_public_key_file"`
	SSHKeyGenerate   bool   `yaml:"ssh_key_generate"`
}

// Access declares the administrator CIDR allow-list for inbound management
// (SSH) access. 0.0.0.0/0 is rejected here; SSH is never world-open.
type Access struct {
	AdminCIDRs []string `yaml:"admin_cidrs"`
}

type Storage struct {
	// BucketName overrides the derived artifact bucket name. Optional; bucket
	// names are globally unique so collisions on the derived name may force an
	// explicit one.
	BucketName string `yaml:"bucket_name"`
}

type Bootstrap struct {
	OperatorUser   string `yaml:"operator_user"`
	AppDir         string `yaml:"app_dir"`
	ComposeVersion string `yaml:"compose_version"`
}

// Load reads, defaults and validates the configuration at 'path'.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := new(Config)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthModeChain
	}
	if c.Instance.Type == "" {
		c.Instance.Type = "t3.medium"
	}
	if c.Instance.RootVolumeGiB == 0 {
		c.Instance.RootVolumeGiB = 50
	}
	if c.Bootstrap.OperatorUser == "" {
		c.Bootstrap.OperatorUser = "ubuntu"
	}
	if c.Bootstrap.AppDir == "" {
		c.Bootstrap.AppDir = "/opt/app"
	}
	if c.Bootstrap.ComposeVersion == "" {
		c.Bootstrap.ComposeVersion = "v2.27.0"
	}
}

var (
	ErrMissingInput   = fmt.Errorf("missing required configuration input")
	ErrInvalidCIDR    = fmt.Errorf("invalid CIDR block")
	ErrSubnetNotInVPC = fmt.Errorf("subnet CIDR is not contained in the VPC CIDR")
	ErrAdminCIDROpen  = fmt.Errorf("admin CIDR allow-list must not contain 0.0.0.0/0")
	ErrAuthMode       = fmt.Errorf("auth.mode must be 'chain' or 'static'")
	ErrStaticAuthKeys = fmt.Errorf("static auth requires both access_key_id and secret_access_key")
	ErrSSHKeySource   = fmt.Errorf("exactly one of ssh_public_key, ssh_public_key_file or ssh_key_generate must be set")
)

func (c *Config) Validate() error {
	for _, required := range []struct {
		name, value string
	}{
		{"project", c.Project},
		{"environment", c.Environment},
		{"region", c.Region},
		{"instance.ami", c.Instance.AMI},
		{"network.vpc_cidr", c.Network.VPCCIDR},
	} {
		if required.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingInput, required.name)
		}
	}
	if len(c.Network.SubnetCIDRs) == 0 {
		return fmt.Errorf("%w: network.subnet_cidrs", ErrMissingInput)
	}
	if len(c.Access.AdminCIDRs) == 0 {
		return fmt.Errorf("%w: access.admin_cidrs", ErrMissingInput)
	}

	_, vpcNet, err := net.ParseCIDR(c.Network.VPCCIDR)
	if err != nil {
		return fmt.Errorf("%w: network.vpc_cidr %q", ErrInvalidCIDR, c.Network.VPCCIDR)
	}
	for _, cidr := range c.Network.SubnetCIDRs {
		subnetIP, subnetNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return fmt.Errorf("%w: network.subnet_cidrs %q", ErrInvalidCIDR, cidr)
		}
		if !cidrContains(vpcNet, subnetIP, subnetNet) {
			return fmt.Errorf("%w: %s is outside %s", ErrSubnetNotInVPC, cidr, c.Network.VPCCIDR)
		}
	}
	for _, cidr := range c.Access.AdminCIDRs {
		_, adminNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return fmt.Errorf("%w: access.admin_cidrs %q", ErrInvalidCIDR, cidr)
		}
		if ones, _ := adminNet.Mask.Size(); ones == 0 {
			return fmt.Errorf("%w: got %q", ErrAdminCIDROpen, cidr)
		}
	}

	switch c.Auth.Mode {
	case AuthModeChain:
	case AuthModeStatic:
		if c.Auth.AccessKeyID == "" || c.Auth.SecretAccessKey == "" {
			return ErrStaticAuthKeys
		}
	default:
		return fmt.Errorf("%w: got %q", ErrAuthMode, c.Auth.Mode)
	}

	sources := 0
	if c.Instance.SSHPublicKey != "" {
		sources++
	}
	if c.Instance.SSHPublicKeyFile != "" {
		sources++
	}
	if c.Instance.SSHKeyGenerate {
		sources++
	}
	if sources != 1 {
		return ErrSSHKeySource
	}

	return nil
}

// PublicKeyMaterial resolves the configured operator public key to its
// OpenSSH 'authorized_keys' bytes. Returns nil when the deployment generates
// its own key pair instead.
func (c *Config) PublicKeyMaterial() ([]byte, error) {
	switch {
	case c.Instance.SSHPublicKey != "":
		return []byte(c.Instance.SSHPublicKey), nil
	case c.Instance.SSHPublicKeyFile != "":
		data, err := os.ReadFile(c.Instance.SSHPublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading ssh_public_key_file: %w", err)
		}
		return data, nil
	default:
		return nil, nil
	}
}

// cidrContains reports whether 'child' (ip+net) nests entirely inside
// 'parent'. Containment of the network address plus a mask at least as long
// as the parent's is sufficient for IPv4 CIDR nesting.
func cidrContains(parent *net.IPNet, childIP net.IP, childNet *net.IPNet) bool {
	if !parent.Contains(childIP) {
		return false
	}
	parentOnes, _ := parent.Mask.Size()
	childOnes, _ := childNet.Mask.Size()
	return childOnes >= parentOnes
}
