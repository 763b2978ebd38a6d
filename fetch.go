package madbus

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/madbus/madbus/emt"
	"github.com/madbus/madbus/model"
)

// Outcome of fetching arrivals for a single stop. Exactly one of Stop
// and Err is set.
type Outcome struct {
	StopID string
	Stop   *model.Stop
	Err    error
}

// FormatTime converts seconds left into the displayed arrival time.
func FormatTime(secondsLeft int) string {
	switch {
	case secondsLeft <= 0:
		return model.ArrivingNow
	case secondsLeft >= model.BusTimeUnknown:
		return model.OverTwentyMinutes
	default:
		return strconv.Itoa(secondsLeft / 60)
	}
}

func convertArrival(a emt.Arrival) model.Arrival {
	return model.Arrival{
		LineID:      a.LineID.String(),
		Destination: a.Destination,
		BusID:       a.BusID.String(),
		BusTimeLeft: a.BusTimeLeft,
		BusDistance: a.BusDistance,
		Lat:         a.Lat,
		Lon:         a.Lon,
		Time:        FormatTime(a.BusTimeLeft),
	}
}

// FetchArrivals attaches live arrivals to a copy of stop. Failures
// are returned in the Outcome, never as a panic or partial stop.
func (s *Service) FetchArrivals(ctx context.Context, stop *model.Stop) Outcome {
	outcome := Outcome{StopID: stop.ID}

	arrivals, err := s.arrivals(ctx, stop.ID)
	if err != nil {
		outcome.Err = fmt.Errorf("fetching arrivals for %s: %w", stop.ID, err)
		return outcome
	}

	outcome.Stop = stop.Copy()
	outcome.Stop.Arrivals = arrivals
	return outcome
}

func (s *Service) arrivals(ctx context.Context, stopID string) ([]model.Arrival, error) {
	log := s.log.WithField("stop_id", stopID)

	if s.Arrivals != nil {
		arrivals, found, err := s.Arrivals.Get(ctx, stopID)
		if err != nil {
			log.WithError(err).Warn("arrivals cache read failed")
		} else if found {
			return arrivals, nil
		}
	}

	raw, err := s.api.IncomingBuses(ctx, stopID)
	if err != nil {
		return nil, err
	}

	arrivals := make([]model.Arrival, 0, len(raw))
	for _, a := range raw {
		arrivals = append(arrivals, convertArrival(a))
	}

	if s.Arrivals != nil {
		err = s.Arrivals.Set(ctx, stopID, arrivals, s.ArrivalsTTL)
		if err != nil {
			log.WithError(err).Warn("arrivals cache write failed")
		}
	}

	return arrivals, nil
}

// FetchAll fetches arrivals for all stops concurrently and waits for
// every fetch to settle. Outcomes are in the same order as stops.
func (s *Service) FetchAll(ctx context.Context, stops []*model.Stop) []Outcome {
	outcomes := make([]Outcome, len(stops))

	var wg sync.WaitGroup
	for i, stop := range stops {
		wg.Add(1)
		go func(i int, stop *model.Stop) {
			defer wg.Done()
			outcomes[i] = s.FetchArrivals(ctx, stop)
		}(i, stop)
	}
	wg.Wait()

	return outcomes
}
