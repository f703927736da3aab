package render

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() (*logrus.Entry, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	return logrus.NewEntry(logger), &buf
}

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tmpl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRender(t *testing.T) {
	log, _ := testLog()

	tests := []struct {
		name     string
		template string
		data     map[string]interface{}
		want     string
	}{
		{
			name:     "zone stanza",
			template: `zone "{{ .zone_name }}" { type master; file "{{ .db_file }}"; };`,
			data:     map[string]interface{}{"zone_name": "example.com", "db_file": "/etc/bind/db/db.example.com"},
			want:     `zone "example.com" { type master; file "/etc/bind/db/db.example.com"; };`,
		},
		{
			name:     "missing key renders empty",
			template: `[{{ .absent }}]`,
			data:     map[string]interface{}{},
			want:     `[]`,
		},
		{
			name:     "missing key of nested map renders empty",
			template: `zone "{{ .name }}"{{ if .policy }} policy {{ .policy }}{{ end }} ttl={{ .ttl }};`,
			data:     map[string]interface{}{"name": "rpz.example"},
			want:     `zone "rpz.example" ttl=;`,
		},
		{
			name:     "single trailing newline is dropped",
			template: "line\n",
			want:     "line",
		},
		{
			name:     "only one trailing newline is dropped",
			template: "line\n\n",
			want:     "line\n",
		},
		{
			name:     "sprig functions",
			template: `{{ join "; " .forwarders }}; {{ .name | upper }}`,
			data: map[string]interface{}{
				"forwarders": []string{"1.1.1.1", "8.8.8.8"},
				"name":       "ns1",
			},
			want: `1.1.1.1; 8.8.8.8; NS1`,
		},
		{
			name:     "nested maps",
			template: `{{ if .disable_root }}no-root {{ end }}{{ .zone.name }} {{ .remote.app_path }}`,
			data: map[string]interface{}{
				"disable_root": true,
				"zone":         map[string]interface{}{"name": "example.com"},
				"remote":       map[string]interface{}{"app_path": "/etc/bind"},
			},
			want: `no-root example.com /etc/bind`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Load(writeTemplate(t, tt.template), log)
			require.NoError(t, err)

			got, err := tmpl.Render(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		log, buf := testLog()
		path := filepath.Join(t.TempDir(), "missing.tmpl")

		_, err := Load(path, log)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTemplate)
		assert.Contains(t, buf.String(), "failed to load template at "+path)
	})

	t.Run("parse error", func(t *testing.T) {
		log, _ := testLog()
		_, err := Load(writeTemplate(t, "{{ .unclosed "), log)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTemplate)
	})
}

func TestRender_ExecutionError(t *testing.T) {
	log, buf := testLog()
	tmpl, err := Load(writeTemplate(t, `{{ fail "boom" }}`), log)
	require.NoError(t, err)

	_, err = tmpl.Render(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplate)
	assert.Contains(t, buf.String(), "failed to render template")
}

func TestRenderToFile(t *testing.T) {
	log, _ := testLog()
	tmpl, err := Load(writeTemplate(t, "#!/bin/sh\necho {{ .zone.name }}\n"), log)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "updzone_example.com.sh")
	require.NoError(t, tmpl.RenderToFile(out, map[string]interface{}{
		"zone": map[string]interface{}{"name": "example.com"},
	}, 0755))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho example.com\n", string(data))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	err = tmpl.RenderToFile(filepath.Join(t.TempDir(), "no", "dir", "x"), nil, 0644)
	assert.ErrorIs(t, err, ErrTemplate)
}

func TestRenderToFile_TrailingNewline(t *testing.T) {
	log, _ := testLog()

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{name: "kept", template: "options {};\n", want: "options {};\n"},
		{name: "added", template: "options {};", want: "options {};\n"},
		{name: "blank line kept", template: "options {};\n\n", want: "options {};\n\n"},
		{name: "empty", template: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Load(writeTemplate(t, tt.template), log)
			require.NoError(t, err)

			out := filepath.Join(t.TempDir(), "options.conf")
			require.NoError(t, tmpl.RenderToFile(out, map[string]interface{}{}, 0644))

			data, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}
