// Package envtest prepares a project directory and a fake remote host for
// command tests.
package envtest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"

	"github.com/catalystcommunity/bindeploy/cmd/bindeploy/env"
	"github.com/catalystcommunity/bindeploy/internal/remote"
	"github.com/catalystcommunity/bindeploy/internal/remote/remotetest"
)

// Config is the config.yml written by Setup
const Config = `build:
  output_path: build
  output_file: bind.tar.gz
  template_path: templates
  base_path: bind9
  check_zones: true
deploy:
  service_name: bind9
  app_path: /etc/bind
  log_path: /var/log/named
  user: bind
  group: bind
zones:
  example.com:
    autoupdate: true
    rpz:
      enabled: true
      policy: drop
  other.org:
    autoupdate: false
forwarders:
  - 1.1.1.1
`

var files = map[string]string{
	"templates/updzone.sh.tmpl": `#!/bin/sh
set -eu
while getopts "so:" opt; do
	case "$opt" in
	o) OUT="$OPTARG" ;;
	*) ;;
	esac
done
cat > "$OUT" <<'ZONE_EOF'
$TTL 300
@ IN SOA ns1.{{ .zone.name }}. hostmaster.{{ .zone.name }}. ( 1 3600 600 604800 300 )
@ IN NS ns1.{{ .zone.name }}.
ZONE_EOF
`,
	"templates/zone.tmpl":         `zone "{{ .zone_name }}" { type master; file "{{ .db_file }}"; };` + "\n",
	"templates/options.conf.tmpl": `options { forwarders { {{ range .forwarders }}{{ . }}; {{ end }}}; };` + "\n",
	"bind9/named.conf":            "include \"/etc/bind/conf.d/options.conf\";\n",
	"bind9/zones/.keep":           "",
}

// Setup writes a project with config.yml, templates and a base tree into a
// temporary directory and makes it the working directory. The keyring is
// mocked and the user config directory points into the project.
func Setup(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	write(t, filepath.Join(dir, "config.yml"), Config)
	for name, content := range files {
		write(t, filepath.Join(dir, name), content)
	}

	t.Chdir(dir)
	t.Setenv("BINDEPLOY_CONFIG", "")
	t.Setenv("BINDEPLOY_HOST", "")
	t.Setenv("BINDEPLOY_SUDO_PASSWORD", "")
	t.Setenv("BINDEPLOY_CONFIG_DIR", filepath.Join(dir, ".bindeploy"))
	keyring.MockInit()

	return dir
}

// UseRecorder makes env.Remote return rec for any --host value and
// reports the dial options through opts when it is not nil
func UseRecorder(t *testing.T, rec *remotetest.Recorder, opts *env.DialOptions) {
	t.Helper()

	orig := env.Dial
	env.Dial = func(_ context.Context, o env.DialOptions, _ *logrus.Entry) (remote.Executor, io.Closer, error) {
		if opts != nil {
			*opts = o
		}
		rec.Password = o.SudoPassword != ""
		return rec, nil, nil
	}
	t.Cleanup(func() { env.Dial = orig })
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
