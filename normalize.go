package madbus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/madbus/madbus/catalog"
	"github.com/madbus/madbus/emt"
	"github.com/madbus/madbus/geo"
	"github.com/madbus/madbus/model"
)

var ErrMalformedStop = errors.New("malformed stop")

// The three shapes a raw stop can come in.
type RawStopKind int

const (
	// A row from the reference catalog.
	RawCatalog RawStopKind = iota + 1
	// A result of the API's location search.
	RawLocation
	// A record from one of the API's catalog pages.
	RawNode
)

// RawStop is a stop as received from one of its sources. Exactly one
// of the pointers is set, as indicated by Kind.
type RawStop struct {
	Kind     RawStopKind
	Catalog  *catalog.StopRow
	Location *emt.LocationStop
	Node     *emt.Node
}

func CatalogStop(row *catalog.StopRow) RawStop {
	return RawStop{Kind: RawCatalog, Catalog: row}
}

func LocationStop(stop *emt.LocationStop) RawStop {
	return RawStop{Kind: RawLocation, Location: stop}
}

func NodeStop(node *emt.Node) RawStop {
	return RawStop{Kind: RawNode, Node: node}
}

type LineStopsAPI interface {
	StopsOfLine(ctx context.Context, lineCode string, direction string) ([]emt.LineStop, error)
}

// Normalizer turns RawStops into model.Stops, resolving line labels
// in the reference catalog.
type Normalizer struct {
	catalog catalog.Reader
	api     LineStopsAPI
}

func NewNormalizer(reader catalog.Reader, api LineStopsAPI) *Normalizer {
	return &Normalizer{
		catalog: reader,
		api:     api,
	}
}

func (n *Normalizer) Normalize(ctx context.Context, raw RawStop) (*model.Stop, error) {
	switch raw.Kind {
	case RawCatalog:
		if raw.Catalog != nil {
			return n.normalizeCatalog(ctx, raw.Catalog)
		}
	case RawLocation:
		if raw.Location != nil {
			return n.normalizeLocation(raw.Location)
		}
	case RawNode:
		if raw.Node != nil {
			return n.normalizeNode(raw.Node)
		}
	}
	return nil, fmt.Errorf("%w: kind %d", ErrMalformedStop, raw.Kind)
}

func (n *Normalizer) NormalizeNode(ctx context.Context, node emt.Node) (*model.Stop, error) {
	return n.Normalize(ctx, NodeStop(&node))
}

func stopName(id string, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Stop " + id
	}
	return name
}

// Direction token of the reference catalog and catalog pages.
func lineDirection(token string) string {
	if token == "1" {
		return model.DirectionOutbound
	}
	return model.DirectionReturn
}

// Direction of the location search. Note that this is not the same
// convention as lineDirection.
func locationDirection(direction string) string {
	if direction == "B" {
		return model.DirectionOutbound
	}
	return model.DirectionReturn
}

func (n *Normalizer) label(code string) (string, error) {
	line, err := n.catalog.Line(catalog.PadLineCode(code))
	if err != nil {
		return "", fmt.Errorf("looking up line %s: %w", code, err)
	}
	if line == nil {
		return "", nil
	}
	return line.Label, nil
}

// Resolves "<code>/<direction>" tokens. Unknown or malformed lines
// are an error unless skipUnknown is set.
func (n *Normalizer) lineLabels(tokens []string, skipUnknown bool) ([]string, error) {
	lines := []string{}
	for _, token := range tokens {
		code, dir, ok := strings.Cut(token, "/")
		if !ok || code == "" {
			if skipUnknown {
				continue
			}
			return nil, fmt.Errorf("%w: line token '%s'", ErrMalformedStop, token)
		}

		label, err := n.label(code)
		if err != nil {
			return nil, err
		}
		if label == "" {
			if skipUnknown {
				continue
			}
			return nil, fmt.Errorf("unknown line %s", code)
		}

		lines = append(lines, label+" "+lineDirection(dir))
	}
	return lines, nil
}

func (n *Normalizer) normalizeCatalog(ctx context.Context, row *catalog.StopRow) (*model.Stop, error) {
	if row.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformedStop)
	}

	tokens := strings.Fields(row.Lines)
	lines, err := n.lineLabels(tokens, false)
	if err != nil {
		return nil, fmt.Errorf("stop %s: %w", row.ID, err)
	}

	position, err := n.catalogPosition(ctx, row, tokens)
	if err != nil {
		return nil, fmt.Errorf("stop %s: %w", row.ID, err)
	}

	return &model.Stop{
		ID:       row.ID,
		Name:     stopName(row.ID, row.Name),
		Lines:    lines,
		Position: position,
	}, nil
}

// Projects the catalog's coordinates. Rows without coordinates are
// looked up along the route of their first line.
func (n *Normalizer) catalogPosition(ctx context.Context, row *catalog.StopRow, tokens []string) (*model.Position, error) {
	if row.X != 0 && row.Y != 0 {
		return geo.ToPosition(row.X, row.Y)
	}

	if len(tokens) == 0 {
		return nil, fmt.Errorf("no coordinates and no lines")
	}
	code, dir, _ := strings.Cut(tokens[0], "/")

	stops, err := n.api.StopsOfLine(ctx, catalog.PadLineCode(code), dir)
	if err != nil {
		return nil, fmt.Errorf("getting stops of line %s: %w", code, err)
	}
	for _, s := range stops {
		if s.Node.String() == row.ID {
			return &model.Position{Lat: s.Lat, Lon: s.Lon}, nil
		}
	}

	return nil, fmt.Errorf("not found along line %s/%s", code, dir)
}

func (n *Normalizer) normalizeLocation(raw *emt.LocationStop) (*model.Stop, error) {
	id := raw.StopID.String()
	if id == "" {
		return nil, fmt.Errorf("%w: missing stopId", ErrMalformedStop)
	}

	lines := []string{}
	for _, l := range raw.Lines {
		label, err := n.label(l.Line.String())
		if err != nil {
			return nil, fmt.Errorf("stop %s: %w", id, err)
		}
		if label == "" {
			// Not in the catalog
			continue
		}
		lines = append(lines, label+" "+locationDirection(l.Direction))
	}

	stop := &model.Stop{
		ID:    id,
		Name:  stopName(id, raw.Name),
		Lines: lines,
	}
	if raw.Lat != 0 || raw.Lon != 0 {
		stop.Position = &model.Position{Lat: raw.Lat, Lon: raw.Lon}
	}
	return stop, nil
}

func (n *Normalizer) normalizeNode(raw *emt.Node) (*model.Stop, error) {
	id := raw.Node.String()
	if id == "" {
		return nil, fmt.Errorf("%w: missing node", ErrMalformedStop)
	}

	tokens := []string{}
	for _, l := range raw.Lines {
		tokens = append(tokens, strings.Fields(l.String())...)
	}
	lines, err := n.lineLabels(tokens, true)
	if err != nil {
		return nil, fmt.Errorf("stop %s: %w", id, err)
	}

	stop := &model.Stop{
		ID:    id,
		Name:  stopName(id, raw.Name),
		Lines: lines,
	}
	if raw.Lat != 0 || raw.Lon != 0 {
		stop.Position = &model.Position{Lat: raw.Lat, Lon: raw.Lon}
	}
	return stop, nil
}
