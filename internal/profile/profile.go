package profile

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wegman-software/chainmerge/internal/config"
	"github.com/wegman-software/chainmerge/internal/style"
)

//go:embed builtin/*.yaml
var builtin embed.FS

// ErrUnknownProfile is returned when a name is neither a file nor a built-in profile
var ErrUnknownProfile = errors.New("unknown profile")

// Vendor feed formats
const (
	FormatXML  = "xml"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Profile describes one chain: where its data lives and how to merge it
type Profile struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	ThresholdM  float64   `yaml:"threshold_m"`
	Reference   Reference `yaml:"reference"`
	Vendor      Vendor    `yaml:"vendor"`
}

// Reference selects the chain's existing features
type Reference struct {
	// Query is a complete Overpass QL query; built from BBox and Filter when empty
	Query  string      `yaml:"query,omitempty"`
	BBox   string      `yaml:"bbox,omitempty"` // minlon,minlat,maxlon,maxlat
	Filter style.Rules `yaml:"filter"`
}

// Vendor describes the chain's store locator feed
type Vendor struct {
	URL    string            `yaml:"url"`
	Method string            `yaml:"method,omitempty"`
	Form   map[string]string `yaml:"form,omitempty"`
	Format string            `yaml:"format"`
	// Encoding names the feed charset when it is not UTF-8, e.g. windows-1252
	Encoding string `yaml:"encoding,omitempty"`

	// XML: slash separated element path of one record below the root
	RecordPath string `yaml:"record_path,omitempty"`

	// CSV and XLSX: column names in order, or read from the first row when HasHeader is set
	Columns   []string `yaml:"columns,omitempty"`
	HasHeader bool     `yaml:"has_header,omitempty"`
	Delimiter string   `yaml:"delimiter,omitempty"` // CSV only, default ","

	LatField string `yaml:"lat_field"`
	LonField string `yaml:"lon_field"`

	// Tags are added to every record
	Tags map[string]string `yaml:"tags,omitempty"`
	// Fields maps a tag key to the record field holding its value
	Fields map[string]string `yaml:"fields,omitempty"`
	Hours  *Hours            `yaml:"hours,omitempty"`

	// Script is a Lua file whose transform(row) function builds the tags
	Script string `yaml:"script,omitempty"`
}

// Hours reads weekly opening hours from per-day fields such as monday_open
type Hours struct {
	OpenSuffix  string `yaml:"open_suffix"`
	CloseSuffix string `yaml:"close_suffix"`
	Layout      string `yaml:"layout,omitempty"` // time layout of the feed values, default 15:04
	Tag         string `yaml:"tag,omitempty"`    // default opening_hours
}

// TagKey returns the tag that receives the derived hours
func (h *Hours) TagKey() string {
	if h.Tag == "" {
		return "opening_hours"
	}
	return h.Tag
}

// TimeLayout returns the layout of the feed's time values
func (h *Hours) TimeLayout() string {
	if h.Layout == "" {
		return "15:04"
	}
	return h.Layout
}

// Parse decodes a profile from YAML
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load resolves a profile by file path, falling back to the built-in profiles
func Load(nameOrPath string) (*Profile, error) {
	if data, err := os.ReadFile(nameOrPath); err == nil {
		p, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", nameOrPath, err)
		}
		return p, nil
	}

	data, err := builtin.ReadFile(path.Join("builtin", nameOrPath+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", nameOrPath, ErrUnknownProfile)
	}
	return Parse(data)
}

// Builtin returns the names of the embedded profiles, sorted
func Builtin() []string {
	entries, err := builtin.ReadDir("builtin")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Validate checks that the profile is usable
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if p.ThresholdM <= 0 {
		return fmt.Errorf("profile %s: threshold_m must be positive", p.Name)
	}
	if _, err := config.ParseBBox(p.Reference.BBox); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}
	if _, err := style.NewFilter(p.Reference.Filter); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}

	v := p.Vendor
	switch v.Format {
	case FormatXML:
		if v.RecordPath == "" {
			return fmt.Errorf("profile %s: record_path is required for xml feeds", p.Name)
		}
	case FormatCSV, FormatXLSX:
		if len(v.Columns) == 0 && !v.HasHeader {
			return fmt.Errorf("profile %s: %s feeds need columns or has_header", p.Name, v.Format)
		}
	default:
		return fmt.Errorf("profile %s: unknown vendor format %q (xml, csv, xlsx)", p.Name, v.Format)
	}
	if v.LatField == "" || v.LonField == "" {
		return fmt.Errorf("profile %s: lat_field and lon_field are required", p.Name)
	}
	if v.Hours != nil && (v.Hours.OpenSuffix == "" || v.Hours.CloseSuffix == "") {
		return fmt.Errorf("profile %s: hours need open_suffix and close_suffix", p.Name)
	}
	return nil
}

// Threshold returns the override when positive, otherwise the profile threshold
func (p *Profile) Threshold(override float64) float64 {
	if override > 0 {
		return override
	}
	return p.ThresholdM
}
