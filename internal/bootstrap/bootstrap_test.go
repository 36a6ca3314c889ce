package bootstrap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderDefault(t *testing.T) string {
	t.Helper()
	script, err := Render(Params{
		OperatorUser:   "ubuntu",
		AppDir:         "/opt/app",
		ComposeVersion: "v2.27.0",
	})
	require.NoError(t, err)
	return script
}

func TestRenderFailFastPreamble(t *testing.T) {
	script := renderDefault(t)
	lines := strings.Split(script, "\n")
	require.Greater(t, len(lines), 2)
	assert.Equal(t, "#!/usr/bin/env bash", lines[0])
	assert.Equal(t, "set -euo pipefail", lines[1])
}

// The script's steps must appear in the order the boot contract specifies:
// package refresh, engine install, service enablement, group membership,
// compose install, AWS CLI install, application directory.
func TestRenderStepOrder(t *testing.T) {
	script := renderDefault(t)
	steps := []string{
		"apt-get update",
		"apt-get upgrade -y",
		"download.docker.com/linux/ubuntu/gpg",
		"apt-get install -y docker-ce",
		"systemctl enable --now docker",
		"usermod -aG docker ubuntu",
		"github.com/docker/compose/releases/download/v2.27.0/",
		"awscli.amazonaws.com",
		"/tmp/aws/install",
		"mkdir -p /opt/app",
		"chown ubuntu:ubuntu /opt/app",
	}
	last := -1
	for _, step := range steps {
		idx := strings.Index(script, step)
		require.GreaterOrEqual(t, idx, 0, "step %q missing from script", step)
		assert.Greater(t, idx, last, "step %q out of order", step)
		last = idx
	}
}

func TestRenderSuccessMarkerIsLast(t *testing.T) {
	script := renderDefault(t)
	trimmed := strings.TrimRight(script, "\n")
	lines := strings.Split(trimmed, "\n")
	assert.Equal(t, `echo "`+SuccessMarker+`"`, lines[len(lines)-1])
}

func TestRenderQuotesInterpolatedValues(t *testing.T) {
	script, err := Render(Params{
		OperatorUser:   "app user",
		AppDir:         "/srv/my app",
		ComposeVersion: "v2.27.0",
	})
	require.NoError(t, err)
	assert.Contains(t, script, "usermod -aG docker 'app user'")
	assert.Contains(t, script, "mkdir -p '/srv/my app'")
}

func TestRenderRequiresAllParams(t *testing.T) {
	for name, p := range map[string]Params{
		"no-user":    {AppDir: "/opt/app", ComposeVersion: "v2.27.0"},
		"no-dir":     {OperatorUser: "ubuntu", ComposeVersion: "v2.27.0"},
		"no-version": {OperatorUser: "ubuntu", AppDir: "/opt/app"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Render(p)
			require.ErrorIs(t, err, ErrRender)
		})
	}
}
