package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		Project:     "shipserver",
		Environment: "prod",
		Region:      "eu-west-1",
		Network: Network{
			VPCCIDR:     "10.20.0.0/16",
			SubnetCIDRs: []string{"10.20.1.0/24", "10.20.2.0/24"},
		},
		Instance: Instance{
			AMI:          "ami-0123456789abcdef0",
			SSHPublicKey: "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAITEST operator@workstation",
		},
		Access: Access{
			AdminCIDRs: []string{"198.51.100.7/32"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRequiredInputs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{
			name:   "missing-project",
			mutate: func(c *Config) { c.Project = "" },
			want:   ErrMissingInput,
		},
		{
			name:   "missing-region",
			mutate: func(c *Config) { c.Region = "" },
			want:   ErrMissingInput,
		},
		{
			name:   "missing-subnets",
			mutate: func(c *Config) { c.Network.SubnetCIDRs = nil },
			want:   ErrMissingInput,
		},
		{
			name:   "missing-admin-cidrs",
			mutate: func(c *Config) { c.Access.AdminCIDRs = nil },
			want:   ErrMissingInput,
		},
		{
			name:   "missing-ssh-key",
			mutate: func(c *Config) { c.Instance.SSHPublicKey = "" },
			want:   ErrSSHKeySource,
		},
		{
			name: "two-ssh-key-sources",
			mutate: func(c *Config) {
				c.Instance.SSHKeyGenerate = true
			},
			want: ErrSSHKeySource,
		},
		{
			name: "static-auth-without-keys",
			mutate: func(c *Config) {
				c.Auth.Mode = AuthModeStatic
			},
			want: ErrStaticAuthKeys,
		},
		{
			name: "unknown-auth-mode",
			mutate: func(c *Config) {
				c.Auth.Mode = "mfa"
			},
			want: ErrAuthMode,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), tc.want)
		})
	}
}

func TestValidateCIDRs(t *testing.T) {
	t.Run("garbage-vpc-cidr", func(t *testing.T) {
		cfg := validConfig()
		cfg.Network.VPCCIDR = "10.20.0.0/33"
		require.ErrorIs(t, cfg.Validate(), ErrInvalidCIDR)
	})
	t.Run("subnet-outside-vpc", func(t *testing.T) {
		cfg := validConfig()
		cfg.Network.SubnetCIDRs = []string{"192.168.1.0/24"}
		require.ErrorIs(t, cfg.Validate(), ErrSubnetNotInVPC)
	})
	t.Run("subnet-wider-than-vpc", func(t *testing.T) {
		cfg := validConfig()
		cfg.Network.SubnetCIDRs = []string{"10.20.0.0/8"}
		require.ErrorIs(t, cfg.Validate(), ErrSubnetNotInVPC)
	})
	t.Run("world-open-admin-cidr", func(t *testing.T) {
		cfg := validConfig()
		cfg.Access.AdminCIDRs = []string{"0.0.0.0/0"}
		require.ErrorIs(t, cfg.Validate(), ErrAdminCIDROpen)
	})
}

func TestApplyDefaults(t *testing.T) {
	cfg := new(Config)
	cfg.ApplyDefaults()
	assert.Equal(t, AuthModeChain, cfg.Auth.Mode)
	assert.Equal(t, "t3.medium", cfg.Instance.Type)
	assert.Equal(t, int32(50), cfg.Instance.RootVolumeGiB)
	assert.Equal(t, "ubuntu", cfg.Bootstrap.OperatorUser)
	assert.Equal(t, "/opt/app", cfg.Bootstrap.AppDir)
	assert.NotEmpty(t, cfg.Bootstrap.ComposeVersion)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "berth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
project: shipserver
environment: staging
region: us-west-2
network:
  vpc_cidr: 10.30.0.0/16
  subnet_cidrs:
    - 10.30.10.0/24
instance:
  ami: ami-0fedcba9876543210
  ssh_key_generate: true
access:
  admin_cidrs:
    - 203.0.113.0/28
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "shipserver", cfg.Project)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, []string{"10.30.10.0/24"}, cfg.Network.SubnetCIDRs)
	assert.True(t, cfg.Instance.SSHKeyGenerate)
	// Defaults applied during load.
	assert.Equal(t, "t3.medium", cfg.Instance.Type)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "berth.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project: only-a-name\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestPublicKeyMaterial(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		cfg := validConfig()
		material, err := cfg.PublicKeyMaterial()
		require.NoError(t, err)
		assert.Contains(t, string(material), "ssh-ed25519")
	})
	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "id_ed25519.pub")
		require.NoError(t, os.WriteFile(path, []byte("ssh-ed25519 AAAA file-key"), 0o644))
		cfg := validConfig()
		cfg.Instance.SSHPublicKey = ""
		cfg.Instance.SSHPublicKeyFile = path
		material, err := cfg.PublicKeyMaterial()
		require.NoError(t, err)
		assert.Equal(t, "ssh-ed25519 AAAA file-key", string(material))
	})
	t.Run("generate", func(t *testing.T) {
		cfg := validConfig()
		cfg.Instance.SSHPublicKey = ""
		cfg.Instance.SSHKeyGenerate = true
		material, err := cfg.PublicKeyMaterial()
		require.NoError(t, err)
		assert.Nil(t, material)
	})
}
