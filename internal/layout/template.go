// Package layout parses notification view templates and binds declarative
// per-slot data onto them.
package layout

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ElementType identifies the type of template element.
type ElementType string

const (
	ElementTypeText  ElementType = "text"
	ElementTypeImage ElementType = "image"
	ElementTypeBox   ElementType = "box"
)

// ValidElements lists all recognized element types.
var ValidElements = map[string]ElementType{
	"text":  ElementTypeText,
	"image": ElementTypeImage,
	"box":   ElementTypeBox,
}

// Template errors.
var (
	ErrNoRoot        = errors.New("template has no <template> root")
	ErrMissingSlotID = errors.New("slot element has no id")
	ErrDuplicateSlot = errors.New("duplicate slot id")
)

// SlotHandle is a resolved reference to a leaf view inside a template.
type SlotHandle struct {
	// Index is the slot's position in document order.
	Index int
	Name  string
	Type  ElementType
}

// Element is a single node of the parsed template tree.
type Element struct {
	Type       ElementType
	Attributes map[string]string
	Children   []Element
	// Slot is set for text and image leaves.
	Slot *SlotHandle
}

// Template is a parsed view template with a name index over its slots.
type Template struct {
	Name string
	// Sizing hints in dp (0 = host default).
	MinHeight int
	MaxHeight int
	Elements  []Element

	slots []SlotHandle
	index map[string]SlotHandle
}

// Slot resolves a slot name to its handle.
func (t *Template) Slot(name string) (SlotHandle, bool) {
	h, ok := t.index[name]
	return h, ok
}

// Slots returns all slot handles in document order.
func (t *Template) Slots() []SlotHandle {
	out := make([]SlotHandle, len(t.slots))
	copy(out, t.slots)
	return out
}

// ParseTemplate parses an XML template from a reader.
// The name is used when the root element carries no name attribute.
func ParseTemplate(name string, r io.Reader) (*Template, error) {
	decoder := xml.NewDecoder(r)

	tmpl := &Template{
		Name:  name,
		index: make(map[string]SlotHandle),
	}

	found := false
	for !found {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read template: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "template" {
			continue
		}
		found = true

		for _, attr := range se.Attr {
			switch attr.Name.Local {
			case "name":
				if v := strings.TrimSpace(attr.Value); v != "" {
					tmpl.Name = v
				}
			case "min-height":
				if v, err := parseDPValue(attr.Value); err == nil {
					tmpl.MinHeight = v
				}
			case "max-height":
				if v, err := parseDPValue(attr.Value); err == nil {
					tmpl.MaxHeight = v
				}
			}
		}

		elements, err := tmpl.parseElements(decoder)
		if err != nil {
			return nil, err
		}
		tmpl.Elements = elements
	}

	if !found {
		return nil, ErrNoRoot
	}
	return tmpl, nil
}

// parseDPValue parses a dp value string (e.g., "64", "64dp") to int.
func parseDPValue(s string) (int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "dp")
	var v int
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

// parseElements recursively parses child elements and registers slots.
func (t *Template) parseElements(decoder *xml.Decoder) ([]Element, error) {
	var elements []Element

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read element: %w", err)
		}

		switch tok := tok.(type) {
		case xml.StartElement:
			elemName := strings.ToLower(tok.Name.Local)
			elemType, ok := ValidElements[elemName]
			if !ok {
				return nil, fmt.Errorf("unknown element type: %s", elemName)
			}

			elem := Element{
				Type:       elemType,
				Attributes: make(map[string]string),
			}
			for _, attr := range tok.Attr {
				elem.Attributes[attr.Name.Local] = attr.Value
			}

			if elemType != ElementTypeBox {
				slot, err := t.registerSlot(elem)
				if err != nil {
					return nil, err
				}
				elem.Slot = &slot
			}

			children, err := t.parseElements(decoder)
			if err != nil {
				return nil, err
			}
			if elemType != ElementTypeBox && len(children) > 0 {
				return nil, fmt.Errorf("%s slot %q cannot contain child elements", elemType, elem.Slot.Name)
			}
			elem.Children = children

			elements = append(elements, elem)

		case xml.EndElement:
			return elements, nil
		}
	}

	return elements, nil
}

func (t *Template) registerSlot(elem Element) (SlotHandle, error) {
	id := strings.TrimSpace(elem.Attributes["id"])
	if id == "" {
		return SlotHandle{}, fmt.Errorf("%w: <%s>", ErrMissingSlotID, elem.Type)
	}
	if _, exists := t.index[id]; exists {
		return SlotHandle{}, fmt.Errorf("%w: %s", ErrDuplicateSlot, id)
	}
	h := SlotHandle{Index: len(t.slots), Name: id, Type: elem.Type}
	t.slots = append(t.slots, h)
	t.index[id] = h
	return h, nil
}

// ParseTemplateString parses a template from a string.
func ParseTemplateString(name, s string) (*Template, error) {
	return ParseTemplate(name, strings.NewReader(s))
}

// LoadTemplate loads a template from file. The file name without the .xml
// extension is the default template name.
func LoadTemplate(path string) (*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template: %w", err)
	}
	defer func() { _ = f.Close() }()

	name := strings.TrimSuffix(filepath.Base(path), ".xml")
	tmpl, err := ParseTemplate(name, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tmpl, nil
}
