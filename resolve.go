package madbus

import (
	"context"
	"errors"
	"strings"

	"github.com/madbus/madbus/catalog"
	"github.com/madbus/madbus/model"
)

var ErrEmptyQuery = errors.New("no usable query and no location")

type Query struct {
	// Stop ID, or a prefix of one.
	Text string

	// Ignored if nil or 0,0.
	Location *model.Position

	// Match Text against entire stop IDs only.
	Exact bool
}

// Numeric text, or "" if text can't be a stop ID.
func (q Query) stopID() string {
	t := strings.TrimSpace(q.Text)
	if t == "" {
		return ""
	}
	for _, r := range t {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return t
}

func (q Query) hasLocation() bool {
	return q.Location != nil && !(q.Location.Lat == 0 && q.Location.Lon == 0)
}

// Resolve returns at most MaxResults stops matching q.
//
// Matching stop IDs take precedence over location. The directory is
// searched first. While it is still warming up, the reference catalog
// is tried as well. Location search is the last resort.
func (s *Service) Resolve(ctx context.Context, q Query) ([]*model.Stop, error) {
	id := q.stopID()
	if id == "" && !q.hasLocation() {
		return nil, ErrEmptyQuery
	}

	if id != "" {
		var stops []*model.Stop
		if q.Exact {
			stops = s.directory.FindExact(id)
		} else {
			stops = s.directory.FindByPrefix(id, s.MaxResults)
		}
		if len(stops) > 0 {
			return stops, nil
		}

		if !s.directory.Complete() {
			stops = s.resolveFromCatalog(ctx, id, q.Exact)
			if len(stops) > 0 {
				return stops, nil
			}
		}
	}

	if !q.hasLocation() {
		return []*model.Stop{}, nil
	}

	return s.resolveFromLocation(ctx, q.Location), nil
}

func (s *Service) resolveFromCatalog(ctx context.Context, id string, exact bool) []*model.Stop {
	log := s.log.WithField("query", id)

	var rows []*catalog.StopRow
	if exact {
		row, err := s.catalog.Stop(id)
		if err != nil {
			log.WithError(err).Warn("catalog lookup failed")
			return nil
		}
		if row != nil {
			rows = append(rows, row)
		}
	} else {
		var err error
		rows, err = s.catalog.StopsWithPrefix(id, s.MaxResults)
		if err != nil {
			log.WithError(err).Warn("catalog lookup failed")
			return nil
		}
	}

	stops := []*model.Stop{}
	for _, row := range rows {
		stop, err := s.normalizer.Normalize(ctx, CatalogStop(row))
		if err != nil {
			log.WithError(err).WithField("stop_id", row.ID).Warn("skipping catalog stop")
			continue
		}
		stops = append(stops, stop)
	}
	return stops
}

func (s *Service) resolveFromLocation(ctx context.Context, location *model.Position) []*model.Stop {
	log := s.log.WithField("lat", location.Lat).WithField("lon", location.Lon)

	raw, err := s.api.StopsNearLocation(ctx, location.Lat, location.Lon, s.SearchRadius)
	if err != nil {
		log.WithError(err).Warn("location search failed")
		return []*model.Stop{}
	}

	if s.MaxResults > 0 && len(raw) > s.MaxResults {
		raw = raw[:s.MaxResults]
	}

	stops := []*model.Stop{}
	for i := range raw {
		stop, err := s.normalizer.Normalize(ctx, LocationStop(&raw[i]))
		if err != nil {
			log.WithError(err).Warn("skipping location stop")
			continue
		}
		stops = append(stops, stop)
	}
	return stops
}
