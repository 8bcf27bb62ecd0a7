package osc

import (
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/wegman-software/chainmerge/internal/changeset"
	"github.com/wegman-software/chainmerge/internal/osmfile"
	"github.com/wegman-software/chainmerge/internal/point"
)

func TestParseOSC(t *testing.T) {
	oscData := `<?xml version="1.0" encoding="UTF-8"?>
<osmChange version="0.6" generator="test">
  <create>
    <node id="-1" lat="43.7384" lon="7.4246">
      <tag k="name" v="Culver's"/>
      <tag k="amenity" v="fast_food"/>
    </node>
  </create>
  <modify>
    <node id="2" lat="43.7390" lon="7.4250" version="2">
      <tag k="name" v="Modified Node"/>
    </node>
    <way id="100" version="3">
      <nd ref="1"/>
      <nd ref="2"/>
      <nd ref="3"/>
      <tag k="building" v="yes"/>
    </way>
    <relation id="200" version="2">
      <member type="way" ref="100" role="outer"/>
      <tag k="type" v="multipolygon"/>
    </relation>
  </modify>
  <delete>
    <node id="999"/>
  </delete>
</osmChange>`

	parser := NewParser()
	changes, err := Collect(parser.ParseReader(context.Background(), strings.NewReader(oscData)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats := parser.Stats()
	if stats.NodesCreated != 1 {
		t.Errorf("expected 1 node created, got %d", stats.NodesCreated)
	}
	if stats.NodesModified != 1 {
		t.Errorf("expected 1 node modified, got %d", stats.NodesModified)
	}
	if stats.NodesDeleted != 1 {
		t.Errorf("expected 1 node deleted, got %d", stats.NodesDeleted)
	}
	if stats.WaysModified != 1 {
		t.Errorf("expected 1 way modified, got %d", stats.WaysModified)
	}
	if stats.Relations != 1 {
		t.Errorf("expected 1 relation skipped, got %d", stats.Relations)
	}
	if stats.Total() != 4 {
		t.Errorf("expected 4 changes in total, got %d", stats.Total())
	}

	if len(changes) != 4 {
		t.Fatalf("expected 4 changes, got %d", len(changes))
	}
	first := changes[0]
	if first.Action != ActionCreate || first.Type != "node" || first.ID != -1 {
		t.Errorf("first change = %+v", first)
	}
	if first.Tags["name"] != "Culver's" {
		t.Errorf("expected name 'Culver's', got '%s'", first.Tags["name"])
	}
	way := changes[2]
	if way.Type != "way" || way.ID != 100 || way.Version != 3 || len(way.Nodes) != 3 {
		t.Errorf("way change = %+v", way)
	}
}

func TestParseJOSM(t *testing.T) {
	data := `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="chainmerge">
  <node id="10" visible="true" version="4" action="modify" lat="36.1" lon="-86.7">
    <tag k="name" v="Cracker Barrel"/>
  </node>
  <node id="11" visible="true" version="1" lat="36.2" lon="-86.8"/>
  <node id="-1" visible="true" action="create" lat="36.3" lon="-86.9"/>
  <node id="-2" visible="true" action="create" lat="36.4" lon="-86.9"/>
</osm>`

	parser := NewParser()
	changes, err := Collect(parser.ParseReader(context.Background(), strings.NewReader(data)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 4 {
		t.Fatalf("expected 4 changes, got %d", len(changes))
	}

	stats := parser.Stats()
	if stats.Modified() != 1 || stats.Created() != 2 || stats.Unchanged != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if changes[0].Lat != 36.1 || changes[0].Lon != -86.7 {
		t.Errorf("node location = %v,%v", changes[0].Lat, changes[0].Lon)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no root", `<node id="1"/>`},
		{"bad id", `<osm><node id="x"/></osm>`},
		{"truncated", `<osm><node id="1"><tag k="a" v="b"/>`},
		{"bad nd", `<osm><way id="1"><nd ref="?"/></way></osm>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Collect(NewParser().ParseReader(context.Background(), strings.NewReader(tt.data)))
			if err == nil {
				t.Error("expected error but got none")
			}
		})
	}
}

func TestParseFileGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(`<osmChange version="0.6"><create><node id="-1" lat="1" lon="2"/></create></osmChange>`))
	zw.Close()

	path := filepath.Join(t.TempDir(), "changes.osc.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	parser := NewParser()
	changes, err := Collect(parser.ParseFile(context.Background(), path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 1 || parser.Stats().NodesCreated != 1 {
		t.Errorf("changes = %+v", changes)
	}
}

func TestParseContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(NewParser().ParseReader(ctx, strings.NewReader(`<osm><node id="1"/></osm>`)))
	if err == nil {
		t.Error("expected error but got none")
	}
}

func sampleOps() []changeset.Operation {
	return []changeset.Operation{
		{
			Action: changeset.ActionModify,
			Point: point.Point{
				Location: orb.Point{-86.7, 36.1},
				Ref:      &point.Reference{ID: 10, Version: 4},
				Tags:     point.Tags{"name": "Cracker Barrel", "opening_hours": "Su-Th 07:00-22:00; Fr-Sa 07:00-23:00"},
				Kind:     point.KindNode,
			},
		},
		{
			Action: changeset.ActionModify,
			Point: point.Point{
				Location: orb.Point{-86.6, 36.0},
				Ref:      &point.Reference{ID: 20, Version: 2},
				Tags:     point.Tags{"name": "Cracker Barrel", "building": "yes"},
				Kind:     point.KindWay,
				WayNodes: []int64{1, 2, 3, 1},
			},
		},
		{
			Action: changeset.ActionCreate,
			Point: point.Point{
				Location: orb.Point{-86.5, 36.2},
				Ref:      &point.Reference{ID: -1},
				Tags:     point.Tags{"name": "Cracker Barrel"},
				Kind:     point.KindNode,
			},
		},
	}
}

func TestWriteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleOps()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, `<osmChange version="0.6" generator="chainmerge">`) {
		t.Errorf("missing root element:\n%s", out)
	}
	if strings.Contains(out, "action=") {
		t.Errorf("osmChange elements must not carry action attributes:\n%s", out)
	}
	if strings.Index(out, "<modify>") > strings.Index(out, "<create>") {
		t.Errorf("modify block must precede create block:\n%s", out)
	}

	parser := NewParser()
	changes, err := Collect(parser.ParseReader(context.Background(), &buf))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats := parser.Stats()
	if stats.NodesModified != 1 || stats.WaysModified != 1 || stats.NodesCreated != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if changes[0].Tags["opening_hours"] != "Su-Th 07:00-22:00; Fr-Sa 07:00-23:00" {
		t.Errorf("opening_hours = %q", changes[0].Tags["opening_hours"])
	}
	if len(changes[1].Nodes) != 4 {
		t.Errorf("way nodes = %v", changes[1].Nodes)
	}
}

func TestWriteCreateOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleOps()[2:]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), "<modify>") {
		t.Errorf("empty modify block written:\n%s", buf.String())
	}
}

func TestJOSMRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := osmfile.Write(&buf, sampleOps(), osmfile.Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parser := NewParser()
	changes, err := Collect(parser.ParseReader(context.Background(), &buf))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats := parser.Stats()
	if len(changes) != 3 || stats.Modified() != 2 || stats.Created() != 1 || stats.Unchanged != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if changes[2].ID != -1 || changes[2].Action != ActionCreate {
		t.Errorf("create change = %+v", changes[2])
	}
}
