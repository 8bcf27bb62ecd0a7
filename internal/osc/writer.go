package osc

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/wegman-software/chainmerge/internal/changeset"
	"github.com/wegman-software/chainmerge/internal/osmfile"
)

// Write encodes ops as an osmChange document with one <modify> block and one
// <create> block, in operation order. Empty blocks are left out.
func Write(w io.Writer, ops []changeset.Operation) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "osmChange"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "version"}, Value: "0.6"},
			{Name: xml.Name{Local: "generator"}, Value: osmfile.Generator},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	for _, action := range []changeset.Action{changeset.ActionModify, changeset.ActionCreate} {
		if err := writeBlock(enc, action, ops); err != nil {
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

func writeBlock(enc *xml.Encoder, action changeset.Action, ops []changeset.Operation) error {
	block := xml.StartElement{Name: xml.Name{Local: string(action)}}
	open := false

	for _, op := range ops {
		if op.Action != action {
			continue
		}
		if !open {
			if err := enc.EncodeToken(block); err != nil {
				return fmt.Errorf("failed to write %s block: %w", action, err)
			}
			open = true
		}
		if err := osmfile.EncodeElement(enc, op.Point, ""); err != nil {
			return err
		}
	}

	if open {
		return enc.EncodeToken(block.End())
	}
	return nil
}
