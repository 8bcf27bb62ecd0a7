// Package osmfile writes changesets as JOSM .osm documents, where every
// proposed edit carries an action attribute.
package osmfile

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/wegman-software/chainmerge/internal/changeset"
	"github.com/wegman-software/chainmerge/internal/point"
)

// Generator is the generator attribute of written documents
const Generator = "chainmerge"

// Options controls document output
type Options struct {
	Generator string
	Indent    string // default two spaces; "-" disables indentation
}

func (o Options) generator() string {
	if o.Generator == "" {
		return Generator
	}
	return o.Generator
}

func (o Options) indent() string {
	switch o.Indent {
	case "":
		return "  "
	case "-":
		return ""
	}
	return o.Indent
}

// Write encodes ops as a JOSM document:
//
//	<osm version="0.6" generator="chainmerge">
//	  <node id="-1" visible="true" action="create" lat="..." lon="...">
//	    <tag k="..." v="..."/>
//	  </node>
//	</osm>
func Write(w io.Writer, ops []changeset.Operation, opts Options) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", opts.indent())

	root := xml.StartElement{
		Name: xml.Name{Local: "osm"},
		Attr: []xml.Attr{
			attr("version", "0.6"),
			attr("generator", opts.generator()),
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	for _, op := range ops {
		if err := EncodeElement(enc, op.Point, op.Action); err != nil {
			return err
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return fmt.Errorf("failed to flush document: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// EncodeElement writes p as a node or way element. An empty action omits
// the action attribute, as in an osmChange block.
func EncodeElement(enc *xml.Encoder, p point.Point, action changeset.Action) error {
	if p.Ref == nil {
		return fmt.Errorf("%w: %s", changeset.ErrNoIdentity, p)
	}

	start := xml.StartElement{
		Name: xml.Name{Local: string(p.Kind)},
		Attr: metaAttrs(p.Ref),
	}
	if action != "" {
		start.Attr = append(start.Attr, attr("action", string(action)))
	}
	if p.Kind == point.KindNode {
		start.Attr = append(start.Attr,
			attr("lat", FormatCoord(p.Lat())),
			attr("lon", FormatCoord(p.Lon())))
	}

	if err := enc.EncodeToken(start); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	if p.Kind == point.KindWay {
		for _, ref := range p.WayNodes {
			if err := emptyElement(enc, "nd", attr("ref", strconv.FormatInt(ref, 10))); err != nil {
				return err
			}
		}
	}
	for _, k := range sortedKeys(p.Tags) {
		if err := emptyElement(enc, "tag", attr("k", k), attr("v", p.Tags[k])); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// metaAttrs renders identity and edit metadata; zero values are omitted
func metaAttrs(ref *point.Reference) []xml.Attr {
	attrs := []xml.Attr{
		attr("id", strconv.FormatInt(ref.ID, 10)),
		attr("visible", "true"),
	}
	if ref.Version != 0 {
		attrs = append(attrs, attr("version", strconv.Itoa(ref.Version)))
	}
	if !ref.Timestamp.IsZero() {
		attrs = append(attrs, attr("timestamp", ref.Timestamp.UTC().Format(time.RFC3339)))
	}
	if ref.UID != 0 {
		attrs = append(attrs, attr("uid", strconv.FormatInt(ref.UID, 10)))
	}
	if ref.User != "" {
		attrs = append(attrs, attr("user", ref.User))
	}
	if ref.Changeset != 0 {
		attrs = append(attrs, attr("changeset", strconv.FormatInt(ref.Changeset, 10)))
	}
	return attrs
}

// FormatCoord renders a coordinate rounded to 7 decimal places
func FormatCoord(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e7)/1e7, 'f', -1, 64)
}

func emptyElement(enc *xml.Encoder, name string, attrs ...xml.Attr) error {
	el := xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
	if err := enc.EncodeToken(el); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return enc.EncodeToken(el.End())
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func sortedKeys(tags point.Tags) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
