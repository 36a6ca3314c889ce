// bootstrap renders the boot-time provisioning script injected into the
// instance as user data.
//
// The script brings a freshly booted Ubuntu server to "ready to run a
// containerized application": Docker engine installed and enabled, a pinned
// Docker Compose release and the AWS CLI v2 on the PATH, and an application
// directory owned by the operator account. Execution is strictly sequential
// and fail-fast ('set -euo pipefail'): any step's non-zero exit halts the
// script, and the success marker on the final line is the only signal in the
// boot log that every step completed.
//
// All values are baked in at render time. The script takes no parameters and
// is executed exactly once by cloud-init at first boot.
package bootstrap

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/kballard/go-shellquote"
)

// Params carries the render-time inputs of the script. All interpolated
// values are shell-quoted before templating.
type Params struct {
	// OperatorUser is the unprivileged account added to the docker group and
	// given ownership of AppDir.
	OperatorUser string

	// AppDir is the application working directory created on the host.
	AppDir string

	// ComposeVersion is the pinned Docker Compose release tag (ex: 'v2.27.0').
	ComposeVersion string
}

// SuccessMarker is the final line the script emits. Its absence from the
// boot log means the script aborted part-way.
const SuccessMarker = "berth: bootstrap complete"

var ErrRender = fmt.Errorf("failed to render bootstrap script")

const scriptTemplate = `#!/usr/bin/env bash
set -euo pipefail
export DEBIAN_FRONTEND=noninteractive

# Refresh package metadata and upgrade the base system.
apt-get update
apt-get upgrade -y

# Install the Docker engine from Docker's own repository.
#
# Mirrors the steps documented at https://docs.docker.com/engine/install/ubuntu/
apt-get install -y ca-certificates curl unzip
install -m 0755 -d /etc/apt/keyrings
curl -fsSL https://download.docker.com/linux/ubuntu/gpg -o /etc/apt/keyrings/docker.asc
chmod a+r /etc/apt/keyrings/docker.asc
echo \
"deb [arch=$(dpkg --print-architecture) signed-by=/etc/apt/keyrings/docker.asc] https://download.docker.com/linux/ubuntu \
$(. /etc/os-release && echo "$VERSION_CODENAME") stable" \
> /etc/apt/sources.list.d/docker.list
apt-get update
apt-get install -y docker-ce docker-ce-cli containerd.io docker-buildx-plugin

# Start the engine now and on every future boot.
systemctl enable --now docker

# Let the operator account drive the engine without sudo.
#
# NOTE: Group membership only takes effect on the account's next login.
usermod -aG docker {{.OperatorUser}}

# Install the pinned Docker Compose release for this host's OS/arch.
curl -fsSL "https://github.com/docker/compose/releases/download/{{.ComposeVersion}}/docker-compose-$(uname -s)-$(uname -m)" \
-o /usr/local/bin/docker-compose
chmod +x /usr/local/bin/docker-compose

# Install the AWS CLI v2 bundle.
curl -fsSL "https://awscli.amazonaws.com/awscli-exe-linux-$(uname -m).zip" -o /tmp/awscliv2.zip
unzip -q /tmp/awscliv2.zip -d /tmp
/tmp/aws/install

# Prepare the application directory for the operator account.
mkdir -p {{.AppDir}}
chown {{.OperatorUser}}:{{.OperatorUser}} {{.AppDir}}

echo "{{.SuccessMarker}}"
`

var tmpl = template.Must(template.New("bootstrap").Parse(scriptTemplate))

// Render produces the complete bootstrap script for 'p'.
func Render(p Params) (string, error) {
	if p.OperatorUser == "" || p.AppDir == "" || p.ComposeVersion == "" {
		return "", fmt.Errorf("%w: operator user, app dir and compose version are all required", ErrRender)
	}
	var buf strings.Builder
	err := tmpl.Execute(&buf, struct {
		OperatorUser, AppDir, ComposeVersion, SuccessMarker string
	}{
		OperatorUser:   shellquote.Join(p.OperatorUser),
		AppDir:         shellquote.Join(p.AppDir),
		ComposeVersion: shellquote.Join(p.ComposeVersion),
		SuccessMarker:  SuccessMarker,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRender, err)
	}
	return buf.String(), nil
}
