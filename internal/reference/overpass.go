package reference

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/osm/osmxml"

	"github.com/wegman-software/chainmerge/internal/config"
	"github.com/wegman-software/chainmerge/internal/fetch"
	"github.com/wegman-software/chainmerge/internal/point"
	"github.com/wegman-software/chainmerge/internal/style"
)

// OverpassSource queries an Overpass API endpoint
type OverpassSource struct {
	Chain  string
	URL    string
	Query  string
	Client *fetch.Client
}

// NewOverpassSource creates an Overpass source
func NewOverpassSource(chain, endpoint, query string, client *fetch.Client) *OverpassSource {
	return &OverpassSource{Chain: chain, URL: endpoint, Query: query, Client: client}
}

// BuildQuery renders an Overpass QL query selecting nodes and ways whose
// name matches the rules, with metadata and way node locations:
//
//	[out:xml][timeout:300];
//	(
//	  node["name"~"cracker barrel",i]["amenity"](s,w,n,e);
//	  way["name"~"cracker barrel",i]["amenity"](s,w,n,e);
//	);
//	out meta;
//	>;
//	out meta qt;
func BuildQuery(rules style.Rules, bbox *config.BBox, timeout time.Duration) string {
	nameKeys := rules.NameKeys
	if len(nameKeys) == 0 {
		nameKeys = []string{"name"}
	}

	var filters []string
	if rules.NamePattern != "" {
		for _, key := range nameKeys {
			filters = append(filters, fmt.Sprintf(`[%s~%s,i]`, quote(key), quote(rules.NamePattern)))
		}
	} else {
		filters = []string{""}
	}

	keys := rules.RequireAny
	if len(keys) == 0 {
		keys = []string{""}
	}

	area := ""
	if bbox != nil && bbox.IsSet {
		area = "(" + bbox.Overpass() + ")"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[out:xml][timeout:%d];\n(\n", int(timeout.Seconds()))
	for _, kind := range []string{"node", "way"} {
		for _, f := range filters {
			for _, key := range keys {
				has := ""
				if key != "" {
					has = "[" + quote(key) + "]"
				}
				fmt.Fprintf(&b, "  %s%s%s%s;\n", kind, f, has, area)
			}
		}
	}
	b.WriteString(");\nout meta;\n>;\nout meta qt;\n")
	return b.String()
}

// quote renders s as an Overpass QL string literal
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// Request returns the HTTP request posting the query
func (s *OverpassSource) Request() fetch.Request {
	return fetch.Request{
		Method: "POST",
		URL:    s.URL,
		Form:   url.Values{"data": {s.Query}},
		Name:   s.Chain + "-reference",
	}
}

// Fetch runs the query and normalizes the result
func (s *OverpassSource) Fetch(ctx context.Context) ([]point.Point, error) {
	body, err := s.Client.Open(ctx, s.Request())
	if err != nil {
		return nil, fmt.Errorf("failed to query overpass: %w", err)
	}
	defer body.Close()

	o, err := scanOSM(osmxml.New(ctx, body))
	if err != nil {
		return nil, fmt.Errorf("overpass: %w", err)
	}
	return normalize(o, "overpass"), nil
}
