package madbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/madbus/madbus/cache"
	"github.com/madbus/madbus/catalog"
	"github.com/madbus/madbus/directory"
	"github.com/madbus/madbus/emt"
	"github.com/madbus/madbus/logging"
	"github.com/madbus/madbus/model"
)

const (
	DefaultMaxResults     = 6
	DefaultMaxColumnWidth = 14
	DefaultSearchRadius   = 200 // metres
	DefaultArrivalsTTL    = 15 * time.Second
	DefaultThumbnail      = "https://www.emtmadrid.es/Imagenes/Logos/emt.png"
	DefaultMapURL         = "https://www.google.com/maps/search/?api=1&query=%s,%s"
)

var (
	ErrNotSingleStop       = errors.New("refresh did not resolve to exactly one stop")
	ErrArrivalsUnavailable = errors.New("arrivals unavailable")
)

// The parts of the transit API consumed by the Service.
type TransitAPI interface {
	LineStopsAPI
	StopsNearLocation(ctx context.Context, lat float64, lon float64, radius int) ([]emt.LocationStop, error)
	IncomingBuses(ctx context.Context, stopID string) ([]emt.Arrival, error)
}

// Service answers inline queries and refresh requests with rendered
// arrival tables.
type Service struct {
	MaxResults     int
	MaxColumnWidth int
	SearchRadius   int
	Thumbnail      string
	MapURL         string

	// If set, arrivals are cached for ArrivalsTTL.
	Arrivals    cache.Arrivals
	ArrivalsTTL time.Duration

	api        TransitAPI
	catalog    catalog.Reader
	directory  *directory.Directory
	normalizer *Normalizer
	log        *logrus.Entry

	// Replaced in tests.
	resolve func(ctx context.Context, q Query) ([]*model.Stop, error)
}

func NewService(api TransitAPI, reader catalog.Reader, d *directory.Directory) *Service {
	s := &Service{
		MaxResults:     DefaultMaxResults,
		MaxColumnWidth: DefaultMaxColumnWidth,
		SearchRadius:   DefaultSearchRadius,
		Thumbnail:      DefaultThumbnail,
		MapURL:         DefaultMapURL,
		ArrivalsTTL:    DefaultArrivalsTTL,

		api:        api,
		catalog:    reader,
		directory:  d,
		normalizer: NewNormalizer(reader, api),
		log:        logging.GetLogger(logging.ServiceModule),
	}
	s.resolve = s.Resolve
	return s
}

func (s *Service) Normalizer() *Normalizer {
	return s.normalizer
}

// HandleInlineQuery resolves text and/or location into stops, and
// renders those for which arrivals could be fetched. Never fails:
// problems are logged and yield fewer (or no) results.
func (s *Service) HandleInlineQuery(ctx context.Context, text string, location *model.Position) []model.Result {
	log := s.log.WithField("query", text)

	stops, err := s.resolve(ctx, Query{Text: text, Location: location})
	if err != nil {
		log.WithError(err).Info("unresolvable inline query")
		return []model.Result{}
	}

	results := []model.Result{}
	for _, outcome := range s.FetchAll(ctx, stops) {
		if outcome.Err != nil {
			log.WithError(outcome.Err).WithField("stop_id", outcome.StopID).Warn("dropping stop")
			continue
		}
		results = append(results, s.Render(outcome.Stop))
	}

	log.WithField("results", len(results)).Debug("answered inline query")
	return results
}

// HandleRefresh re-renders a single stop.
func (s *Service) HandleRefresh(ctx context.Context, stopID string) (*model.Result, error) {
	log := s.log.WithField("stop_id", stopID)

	stops, err := s.resolve(ctx, Query{Text: stopID, Exact: true})
	if err != nil {
		log.WithError(err).Error("resolving refresh")
		return nil, fmt.Errorf("resolving %s: %w", stopID, err)
	}
	if len(stops) != 1 {
		log.WithField("matches", len(stops)).Error("refresh must match exactly one stop")
		return nil, fmt.Errorf("%w: %d matches for %s", ErrNotSingleStop, len(stops), stopID)
	}

	outcome := s.FetchArrivals(ctx, stops[0])
	if outcome.Err != nil {
		log.WithError(outcome.Err).Error("fetching arrivals for refresh")
		return nil, fmt.Errorf("%w: %w", ErrArrivalsUnavailable, outcome.Err)
	}

	result := s.Render(outcome.Stop)
	return &result, nil
}
