package roadgraph

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// GraphML region files follow the osmnx convention: <key> declarations map
// generated ids (d0, d1, ...) onto attribute names, node positions live in
// "x"/"y" data fields and edges carry "length" and "maxspeed".
type keyTable struct {
	nodeKeys map[string]string // key id -> attr name, for="node"
	edgeKeys map[string]string // key id -> attr name, for="edge"
}

func newKeyTable() *keyTable {
	return &keyTable{
		nodeKeys: make(map[string]string),
		edgeKeys: make(map[string]string),
	}
}

func (kt *keyTable) record(el xml.StartElement) {
	var id, name, domain string
	for _, attr := range el.Attr {
		switch attr.Name.Local {
		case "id":
			id = attr.Value
		case "attr.name":
			name = attr.Value
		case "for":
			domain = attr.Value
		}
	}
	if id == "" || name == "" {
		return
	}
	switch domain {
	case "node":
		kt.nodeKeys[id] = name
	case "edge":
		kt.edgeKeys[id] = name
	}
}

func (kt *keyTable) nodeAttr(keyID string) string {
	if name, ok := kt.nodeKeys[keyID]; ok {
		return name
	}
	// Some exporters reference attribute names directly.
	return strings.ToLower(keyID)
}

func (kt *keyTable) edgeAttr(keyID string) string {
	if name, ok := kt.edgeKeys[keyID]; ok {
		return name
	}
	return strings.ToLower(keyID)
}

// ScanBounds stream-parses a GraphML file and returns the bounding box of its
// node coordinates. It holds at most one node's attributes in memory at a
// time and never materializes the graph.
func ScanBounds(path string) (orb.Bound, error) {
	f, err := os.Open(path)
	if err != nil {
		return orb.Bound{}, err
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	keys := newKeyTable()

	bound := orb.Bound{
		Min: orb.Point{180, 90},
		Max: orb.Point{-180, -90},
	}
	seen := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return orb.Bound{}, fmt.Errorf("parse %s: %w", path, err)
		}

		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch el.Name.Local {
		case "key":
			keys.record(el)
		case "node":
			_, point, err := decodeNode(dec, el, keys)
			if err != nil {
				return orb.Bound{}, fmt.Errorf("parse %s: %w", path, err)
			}
			if point == nil {
				continue
			}
			if !seen {
				bound = orb.Bound{Min: *point, Max: *point}
				seen = true
				continue
			}
			bound = bound.Extend(*point)
		case "edge":
			if err := dec.Skip(); err != nil {
				return orb.Bound{}, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if !seen {
		return orb.Bound{}, fmt.Errorf("parse %s: no node coordinates found", path)
	}
	return bound, nil
}

// LoadFile stream-parses a GraphML region file into a Graph.
func LoadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	keys := newKeyTable()
	g := NewGraph()

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch el.Name.Local {
		case "key":
			keys.record(el)
		case "node":
			id, point, err := decodeNode(dec, el, keys)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			if id == nil || point == nil {
				continue
			}
			g.AddNode(Node{ID: *id, Point: *point})
		case "edge":
			edge, err := decodeEdge(dec, el, keys)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			if edge != nil {
				g.AddEdge(*edge)
			}
		}
	}

	if g.NodeCount() == 0 {
		return nil, fmt.Errorf("parse %s: no nodes found", path)
	}
	return g, nil
}

// decodeNode consumes one <node> element. The returned id or point is nil
// when the element is malformed; the caller decides whether that matters.
func decodeNode(dec *xml.Decoder, el xml.StartElement, keys *keyTable) (*NodeID, *orb.Point, error) {
	var rawID string
	for _, attr := range el.Attr {
		if attr.Name.Local == "id" {
			rawID = attr.Value
		}
	}

	var x, y *float64
	fields, err := decodeDataFields(dec, el)
	if err != nil {
		return nil, nil, err
	}
	for keyID, text := range fields {
		switch keys.nodeAttr(keyID) {
		case "x":
			if v, err := strconv.ParseFloat(text, 64); err == nil {
				x = &v
			}
		case "y":
			if v, err := strconv.ParseFloat(text, 64); err == nil {
				y = &v
			}
		}
	}

	var id *NodeID
	if parsed, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64); err == nil {
		v := NodeID(parsed)
		id = &v
	}
	if x == nil || y == nil {
		return id, nil, nil
	}
	point := orb.Point{*x, *y}
	return id, &point, nil
}

// decodeEdge consumes one <edge> element; returns nil for edges with
// unparsable endpoints.
func decodeEdge(dec *xml.Decoder, el xml.StartElement, keys *keyTable) (*Edge, error) {
	var rawSource, rawTarget string
	for _, attr := range el.Attr {
		switch attr.Name.Local {
		case "source":
			rawSource = attr.Value
		case "target":
			rawTarget = attr.Value
		}
	}

	fields, err := decodeDataFields(dec, el)
	if err != nil {
		return nil, err
	}

	source, errSource := strconv.ParseInt(strings.TrimSpace(rawSource), 10, 64)
	target, errTarget := strconv.ParseInt(strings.TrimSpace(rawTarget), 10, 64)
	if errSource != nil || errTarget != nil {
		return nil, nil
	}

	edge := &Edge{From: NodeID(source), To: NodeID(target)}
	for keyID, text := range fields {
		switch keys.edgeAttr(keyID) {
		case "length":
			if v, err := strconv.ParseFloat(text, 64); err == nil {
				edge.Length = v
			}
		case "maxspeed", "speed_kph":
			if edge.SpeedTag == "" {
				edge.SpeedTag = text
			}
		}
	}
	return edge, nil
}

// decodeDataFields reads <data key="...">text</data> children until the
// enclosing element closes.
func decodeDataFields(dec *xml.Decoder, parent xml.StartElement) (map[string]string, error) {
	fields := make(map[string]string)
	depth := 0
	var currentKey string
	var text strings.Builder
	inData := false

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "data" && depth == 0 {
				inData = true
				text.Reset()
				currentKey = ""
				for _, attr := range t.Attr {
					if attr.Name.Local == "key" {
						currentKey = attr.Value
					}
				}
			}
			depth++
		case xml.CharData:
			if inData {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 0 {
				if t.Name.Local != parent.Name.Local {
					return nil, fmt.Errorf("unexpected </%s>", t.Name.Local)
				}
				return fields, nil
			}
			depth--
			if inData && depth == 0 {
				inData = false
				if currentKey != "" {
					fields[currentKey] = strings.TrimSpace(text.String())
				}
			}
		}
	}
}
