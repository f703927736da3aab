package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/miekg/dns"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalid marks a missing or invalid configuration setting
	ErrInvalid = errors.New("invalid configuration")

	// ErrZoneNotFound is returned when a zone is not present in the zones mapping
	ErrZoneNotFound = fmt.Errorf("%w: zone not found", ErrInvalid)
)

const (
	// DefaultBasePath is the base BIND configuration tree copied into every build
	DefaultBasePath = "bind9"
	// DefaultCronPath is the periodic job directory on the remote host
	DefaultCronPath = "/etc/cron.daily"
)

// Config represents the deployment configuration
type Config struct {
	Build      BuildConfig  `yaml:"build"`
	Deploy     DeployConfig `yaml:"deploy"`
	Zones      Zones        `yaml:"zones"`
	Forwarders []string     `yaml:"forwarders" validate:"dive,required"`
}

// BuildConfig defines where and how the build archive is produced
type BuildConfig struct {
	OutputPath   string `yaml:"output_path" validate:"required"`
	OutputFile   string `yaml:"output_file" validate:"required"`
	TemplatePath string `yaml:"template_path" validate:"required"`
	BasePath     string `yaml:"base_path,omitempty"`
	CheckZones   bool   `yaml:"check_zones,omitempty"`
}

// DeployConfig defines the remote service and filesystem layout
type DeployConfig struct {
	ServiceName string `yaml:"service_name"`
	AppPath     string `yaml:"app_path"`
	LogPath     string `yaml:"log_path"`
	User        string `yaml:"user"`
	Group       string `yaml:"group"`
	CronPath    string `yaml:"cron_path,omitempty"`
	PackageName string `yaml:"package_name,omitempty"`

	// Extra holds any additional keys, passed to templates verbatim
	Extra map[string]interface{} `yaml:",inline"`
}

// ZoneConfig defines a single managed DNS zone
type ZoneConfig struct {
	RPZ        RPZConfig `yaml:"rpz"`
	AutoUpdate bool      `yaml:"autoupdate"`

	// Extra holds zone fields used only by templates
	Extra map[string]interface{} `yaml:",inline"`

	// empty marks an entry with no settings at all
	empty bool
}

// Empty reports whether the zone entry carries no settings. Such a zone is
// listed but has no data to generate an update script from.
func (zc *ZoneConfig) Empty() bool {
	return zc.empty
}

// RPZConfig defines response policy zone settings for a zone
type RPZConfig struct {
	Enabled bool `yaml:"enabled"`

	// Params holds policy fields (policy, max-policy-ttl, ...)
	Params map[string]interface{} `yaml:",inline"`
}

// Zones is an ordered mapping of zone name to zone configuration.
// Iteration follows the order of the configuration file.
type Zones struct {
	names  []string
	byName map[string]*ZoneConfig
}

// NewZones builds a Zones mapping from names in the given order
func NewZones(names []string, zones map[string]*ZoneConfig) Zones {
	z := Zones{byName: make(map[string]*ZoneConfig, len(names))}
	for _, name := range names {
		zc, ok := zones[name]
		if !ok || zc == nil {
			zc = &ZoneConfig{empty: true}
		}
		z.names = append(z.names, name)
		z.byName[name] = zc
	}
	return z
}

// UnmarshalYAML decodes the zones mapping keeping the file order
func (z *Zones) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("zones must be a mapping, got %s", nodeKind(value))
	}

	z.names = nil
	z.byName = make(map[string]*ZoneConfig, len(value.Content)/2)

	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		if _, dup := z.byName[name]; dup {
			return fmt.Errorf("duplicate zone %q at line %d", name, value.Content[i].Line)
		}

		zc := &ZoneConfig{}
		// "example.com:" decodes to null and "example.com: {}" to no content
		node := value.Content[i+1]
		if node.Tag == "!!null" || (node.Kind == yaml.MappingNode && len(node.Content) == 0) {
			zc.empty = true
		} else if err := node.Decode(zc); err != nil {
			return fmt.Errorf("zone %q: %w", name, err)
		}

		z.names = append(z.names, name)
		z.byName[name] = zc
	}

	return nil
}

// Names returns zone names in configuration order
func (z Zones) Names() []string {
	names := make([]string, len(z.names))
	copy(names, z.names)
	return names
}

// Len returns the number of zones
func (z Zones) Len() int {
	return len(z.names)
}

// Get returns the configuration for a zone
func (z Zones) Get(name string) (*ZoneConfig, error) {
	zc, ok := z.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: no configuration found for zone %q", ErrZoneNotFound, name)
	}
	return zc, nil
}

// Validate performs validation on the Config struct
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := c.Build.Validate(); err != nil {
		return fmt.Errorf("build validation failed: %w", err)
	}

	for _, name := range c.Zones.names {
		if _, ok := dns.IsDomainName(name); !ok {
			return fmt.Errorf("%w: zone %q is not a valid domain name", ErrInvalid, name)
		}
	}

	return nil
}

// Validate performs validation on BuildConfig
func (b *BuildConfig) Validate() error {
	// rm -rf on these would take out the working directory or the filesystem root
	switch filepath.Clean(strings.TrimSpace(b.OutputPath)) {
	case "/", ".", "..":
		return fmt.Errorf("%w: unsafe build output path %q", ErrInvalid, b.OutputPath)
	}

	if strings.ContainsRune(b.OutputFile, filepath.Separator) {
		return fmt.Errorf("%w: output file %q must be a file name", ErrInvalid, b.OutputFile)
	}

	return nil
}

// RequireService checks that a service name is configured
func (d *DeployConfig) RequireService() error {
	if d.ServiceName == "" {
		return fmt.Errorf("%w: missing remote service name", ErrInvalid)
	}
	return nil
}

// Validate checks the settings needed to install files on the remote host
func (d *DeployConfig) Validate() error {
	if err := d.RequireService(); err != nil {
		return err
	}

	missing := []string{}
	for key, value := range map[string]string{
		"app_path": d.AppPath,
		"log_path": d.LogPath,
		"user":     d.User,
		"group":    d.Group,
	} {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing deploy settings: %s", ErrInvalid, strings.Join(missing, ", "))
	}

	return nil
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}
