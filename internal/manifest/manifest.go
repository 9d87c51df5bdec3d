// Package manifest describes a component tree declaratively so the CLI can
// host it. Manifests are YAML or TOML documents decoded through mapstructure,
// which lets both formats share one set of field names and duration parsing.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/stagehand/internal/component"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Version is the manifest format version understood by this package.
const Version = "1"

// Format is a manifest encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath infers the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported manifest extension %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// Manifest is a declarative component tree.
type Manifest struct {
	// Name is a display name for the tree (optional)
	Name string `mapstructure:"name"`
	// Version is the manifest format version (currently "1")
	Version string `mapstructure:"version"`
	// Components are the roots of the tree, constructed in order
	Components []Node `mapstructure:"components"`
}

// Node describes one scripted component and the children it constructs
// during LocalInit.
type Node struct {
	ID string `mapstructure:"id"`

	// Delay is how long each phase takes before it returns
	Delay Delays `mapstructure:"delay"`
	// FailIn lists phases that return an error
	FailIn []component.Phase `mapstructure:"fail_in"`
	// HangIn lists phases that block until their context is done
	HangIn []component.Phase `mapstructure:"hang_in"`
	// PanicIn lists phases that panic
	PanicIn []component.Phase `mapstructure:"panic_in"`

	// DependsOn names peers resolved by lookup during SetupDependencies
	DependsOn []string `mapstructure:"depends_on"`
	// Await names peers that must reach DependenciesReady before this
	// component's SetupDependencies returns
	Await []string `mapstructure:"await"`

	// Subscribe lists bus event types subscribed to during Activate
	Subscribe []string `mapstructure:"subscribe"`
	// Emit lists messages published at the end of Activate
	Emit []Emission `mapstructure:"emit"`
	// Leak skips releasing subscriptions on Deactivate
	Leak bool `mapstructure:"leak"`

	Children []Node `mapstructure:"children"`
}

// Delays holds a per-phase delay. Values are duration strings such as "150ms".
type Delays struct {
	LocalInit       time.Duration `mapstructure:"local_init"`
	DependencySetup time.Duration `mapstructure:"dependency_setup"`
	Activation      time.Duration `mapstructure:"activation"`
	Deactivation    time.Duration `mapstructure:"deactivation"`
}

// For returns the delay configured for phase.
func (d Delays) For(phase component.Phase) time.Duration {
	switch phase {
	case component.PhaseLocalInit:
		return d.LocalInit
	case component.PhaseDependencySetup:
		return d.DependencySetup
	case component.PhaseActivation:
		return d.Activation
	case component.PhaseDeactivation:
		return d.Deactivation
	default:
		return 0
	}
}

// Emission is a bus message published by a component when it activates.
type Emission struct {
	Type    string `mapstructure:"type"`
	Target  string `mapstructure:"target"`
	Payload any    `mapstructure:"payload"`
}

// Walk calls fn for every node in depth-first order with its parent id.
// Roots have an empty parent id.
func (m *Manifest) Walk(fn func(n *Node, parentID string)) {
	var visit func(nodes []Node, parentID string)
	visit = func(nodes []Node, parentID string) {
		for i := range nodes {
			fn(&nodes[i], parentID)
			visit(nodes[i].Children, nodes[i].ID)
		}
	}
	visit(m.Components, "")
}

// Count returns the number of nodes in the manifest.
func (m *Manifest) Count() int {
	n := 0
	m.Walk(func(*Node, string) { n++ })
	return n
}

// Load reads, decodes and validates a manifest file.
func Load(path string) (*Manifest, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	m, err := Parse(data, format)
	if err != nil {
		return nil, err
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	return m, nil
}

// Parse decodes a manifest without validating it.
func Parse(data []byte, format Format) (*Manifest, error) {
	raw := make(map[string]any)
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing manifest: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing manifest: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", format)
	}

	var m Manifest
	if err := decode(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if m.Version == "" {
		m.Version = Version
	}
	return &m, nil
}

func decode(input any, out *Manifest) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
