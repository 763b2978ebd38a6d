package model

// Holds all external facing types and constants.

const (
	// Direction suffixes appended to line labels.
	DirectionOutbound = "ida"
	DirectionReturn   = "vuelta"

	// Reported by the transit API when no prediction is available,
	// or when the bus is more than 20 minutes away.
	BusTimeUnknown = 999999

	// Display values for the two special cases of Arrival.Time.
	ArrivingNow       = ">>"
	OverTwentyMinutes = "20+"
)

type Position struct {
	Lat float64
	Lon float64
}

// A physical bus stop.
//
// Lines holds "<label> <direction>" entries, e.g. "27 ida". Arrivals
// is only populated once live predictions have been fetched for the
// stop.
type Stop struct {
	ID       string
	Name     string
	Lines    []string
	Position *Position
	Arrivals []Arrival
}

// Copy returns a deep copy of the stop.
func (s *Stop) Copy() *Stop {
	c := &Stop{
		ID:   s.ID,
		Name: s.Name,
	}
	if s.Lines != nil {
		c.Lines = append([]string{}, s.Lines...)
	}
	if s.Position != nil {
		p := *s.Position
		c.Position = &p
	}
	if s.Arrivals != nil {
		c.Arrivals = append([]Arrival{}, s.Arrivals...)
	}
	return c
}

// A predicted incoming bus.
//
// BusTimeLeft is in seconds, with BusTimeUnknown as sentinel. Time is
// the display string derived from it.
type Arrival struct {
	LineID      string  `json:"lineId"`
	Destination string  `json:"destination"`
	BusID       string  `json:"busId"`
	BusTimeLeft int     `json:"busTimeLeft"`
	BusDistance int     `json:"busDistance"`
	Lat         float64 `json:"latitude"`
	Lon         float64 `json:"longitude"`
	Time        string  `json:"time"`
}

// The action attached to every rendered stop.
type RefreshAction struct {
	StopID string
}

// A rendered stop, ready to be handed to the transport.
type Result struct {
	ID          string
	Title       string
	Body        string
	Description string
	Thumbnail   string
	Refresh     RefreshAction
}
