// Package osc reads and writes changeset documents. It writes osmChange
// (.osc) files and reads both osmChange and JOSM .osm documents, where the
// action of an element comes from its action attribute.
package osc

import (
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Parser parses changeset documents
type Parser struct {
	stats Stats
}

// NewParser creates a new parser
func NewParser() *Parser {
	return &Parser{}
}

// Stats returns parsing statistics
func (p *Parser) Stats() Stats {
	return p.stats
}

// ParseFile parses a changeset file and streams changes to a channel.
// Supports both plain XML and gzip-compressed files.
func (p *Parser) ParseFile(ctx context.Context, filename string) (<-chan Change, <-chan error) {
	changes := make(chan Change, 1000)
	errChan := make(chan error, 1)

	go func() {
		defer close(changes)
		defer close(errChan)

		f, err := os.Open(filename)
		if err != nil {
			errChan <- fmt.Errorf("failed to open changeset file: %w", err)
			return
		}
		defer f.Close()

		var reader io.Reader = f
		if strings.HasSuffix(filename, ".gz") {
			gzReader, err := gzip.NewReader(f)
			if err != nil {
				errChan <- fmt.Errorf("failed to create gzip reader: %w", err)
				return
			}
			defer gzReader.Close()
			reader = gzReader
		}

		if err := p.parse(ctx, reader, changes); err != nil {
			errChan <- err
		}
	}()

	return changes, errChan
}

// ParseReader parses changeset data from a reader
func (p *Parser) ParseReader(ctx context.Context, reader io.Reader) (<-chan Change, <-chan error) {
	changes := make(chan Change, 1000)
	errChan := make(chan error, 1)

	go func() {
		defer close(changes)
		defer close(errChan)

		if err := p.parse(ctx, reader, changes); err != nil {
			errChan <- err
		}
	}()

	return changes, errChan
}

// Collect drains a change stream, returning the first error
func Collect(changes <-chan Change, errs <-chan error) ([]Change, error) {
	var out []Change
	for c := range changes {
		out = append(out, c)
	}
	for err := range errs {
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// parse performs the actual XML parsing
func (p *Parser) parse(ctx context.Context, reader io.Reader, changes chan<- Change) error {
	decoder := xml.NewDecoder(reader)
	var block Action
	root := ""

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("XML parse error: %w", err)
		}

		switch se := token.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "osm", "osmChange":
				root = se.Name.Local
			case "create", "modify", "delete":
				block = Action(se.Name.Local)
			case "node", "way":
				if root == "" {
					return fmt.Errorf("%s element outside of a document root", se.Name.Local)
				}
				change, err := p.parseElement(decoder, se, block)
				if err != nil {
					return err
				}
				select {
				case changes <- change:
					p.updateStats(change)
				case <-ctx.Done():
					return ctx.Err()
				}
			case "relation":
				if err := decoder.Skip(); err != nil {
					return fmt.Errorf("XML parse error: %w", err)
				}
				p.stats.Relations++
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "create", "modify", "delete":
				block = ActionNone
			}
		}
	}

	if root == "" {
		return fmt.Errorf("no osm or osmChange root element")
	}
	return nil
}

// parseElement parses a node or way element. Inside an osmChange block the
// block decides the action, otherwise the action attribute does.
func (p *Parser) parseElement(decoder *xml.Decoder, start xml.StartElement, block Action) (Change, error) {
	change := Change{
		Action: block,
		Type:   start.Name.Local,
		Tags:   make(map[string]string),
	}

	for _, attr := range start.Attr {
		var err error
		switch attr.Name.Local {
		case "id":
			change.ID, err = strconv.ParseInt(attr.Value, 10, 64)
		case "version":
			change.Version, err = strconv.Atoi(attr.Value)
		case "lat":
			change.Lat, err = strconv.ParseFloat(attr.Value, 64)
		case "lon":
			change.Lon, err = strconv.ParseFloat(attr.Value, 64)
		case "action":
			if block == ActionNone {
				change.Action = Action(attr.Value)
			}
		}
		if err != nil {
			return change, fmt.Errorf("%s: invalid %s attribute %q: %w", change.Type, attr.Name.Local, attr.Value, err)
		}
	}

	// Parse child elements (nd refs and tags)
	for {
		token, err := decoder.Token()
		if err != nil {
			return change, fmt.Errorf("%s %d: %w", change.Type, change.ID, err)
		}

		switch se := token.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "nd":
				for _, attr := range se.Attr {
					if attr.Name.Local == "ref" {
						ref, err := strconv.ParseInt(attr.Value, 10, 64)
						if err != nil {
							return change, fmt.Errorf("way %d: invalid nd ref %q", change.ID, attr.Value)
						}
						change.Nodes = append(change.Nodes, ref)
					}
				}
			case "tag":
				var k, v string
				for _, attr := range se.Attr {
					switch attr.Name.Local {
					case "k":
						k = attr.Value
					case "v":
						v = attr.Value
					}
				}
				if k != "" {
					change.Tags[k] = v
				}
			}
		case xml.EndElement:
			if se.Name.Local == start.Name.Local {
				return change, nil
			}
		}
	}
}

// updateStats updates parsing statistics
func (p *Parser) updateStats(c Change) {
	switch c.Type {
	case "node":
		switch c.Action {
		case ActionCreate:
			p.stats.NodesCreated++
		case ActionModify:
			p.stats.NodesModified++
		case ActionDelete:
			p.stats.NodesDeleted++
		default:
			p.stats.Unchanged++
		}
	case "way":
		switch c.Action {
		case ActionCreate:
			p.stats.WaysCreated++
		case ActionModify:
			p.stats.WaysModified++
		case ActionDelete:
			p.stats.WaysDeleted++
		default:
			p.stats.Unchanged++
		}
	}
}
