// Package render loads text templates with the sprig function library
package render

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/sirupsen/logrus"
)

// ErrTemplate marks a template that could not be loaded or rendered
var ErrTemplate = errors.New("template error")

// Template file names under build.template_path
const (
	UpdateScriptTemplate = "updzone.sh.tmpl"
	ZoneTemplate         = "zone.tmpl"
	OptionsTemplate      = "options.conf.tmpl"
)

// Template is a parsed template file
type Template struct {
	path string
	tmpl *template.Template
	log  *logrus.Entry
}

// Load parses the template at path. Missing map keys render as empty values.
func Load(path string, log *logrus.Entry) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Errorf("failed to load template at %s", path)
		return nil, fmt.Errorf("%w: failed to load %s: %v", ErrTemplate, path, err)
	}

	tmpl, err := template.New(filepath.Base(path)).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=zero").
		Parse(string(data))
	if err != nil {
		log.WithError(err).Errorf("failed to parse template at %s", path)
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrTemplate, path, err)
	}

	return &Template{path: path, tmpl: tmpl, log: log}, nil
}

// Path returns the file the template was loaded from
func (t *Template) Path() string {
	return t.path
}

// Render executes the template with data and returns the text without its
// final newline
func (t *Template) Render(data map[string]interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		t.log.WithError(err).Errorf("failed to render template %s", t.path)
		return "", fmt.Errorf("%w: failed to render %s: %v", ErrTemplate, t.path, err)
	}

	// missingkey=zero still prints "<no value>" for absent keys of a map
	text := strings.ReplaceAll(buf.String(), "<no value>", "")
	return strings.TrimSuffix(text, "\n"), nil
}

// RenderToFile renders the template into path, creating or truncating it.
// A non-empty file always ends with a newline. A partially written file is
// removed on failure.
func (t *Template) RenderToFile(path string, data map[string]interface{}, mode os.FileMode) error {
	text, err := t.Render(data)
	if err != nil {
		return err
	}
	if text != "" {
		text += "\n"
	}

	if err := os.WriteFile(path, []byte(text), mode); err != nil {
		os.Remove(path)
		t.log.WithError(err).Errorf("failed to write %s", path)
		return fmt.Errorf("%w: failed to write %s: %v", ErrTemplate, path, err)
	}

	return nil
}
