package emt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Stop as returned by the location search (GetStopsFromXY).
type LocationStop struct {
	StopID        Text                `json:"stopId"`
	Name          string              `json:"name"`
	PostalAddress string              `json:"postalAddress"`
	Lat           float64             `json:"latitude"`
	Lon           float64             `json:"longitude"`
	Lines         OneOrMany[StopLine] `json:"line"`
}

// A line passing through a LocationStop. Direction is "A" or "B".
type StopLine struct {
	Line      Text   `json:"line"`
	Label     string `json:"label"`
	Direction string `json:"direction"`
	HeaderA   string `json:"headerA"`
	HeaderB   string `json:"headerB"`
}

// Stop as returned by the catalog pages (GetNodesLines). Lines are
// "<code>/<direction>" tokens.
type Node struct {
	Node  Text            `json:"node"`
	Name  string          `json:"name"`
	Lines OneOrMany[Text] `json:"lines"`
	Lat   float64         `json:"latitude"`
	Lon   float64         `json:"longitude"`
}

// Incoming bus prediction (GetArriveStop). BusTimeLeft is in
// seconds, 999999 when unknown or more than 20 minutes away.
type Arrival struct {
	StopID          Text    `json:"stopId"`
	LineID          Text    `json:"lineId"`
	IsHead          string  `json:"isHead"`
	Destination     string  `json:"destination"`
	BusID           Text    `json:"busId"`
	BusTimeLeft     int     `json:"busTimeLeft"`
	BusDistance     int     `json:"busDistance"`
	Lat             float64 `json:"latitude"`
	Lon             float64 `json:"longitude"`
	BusPositionType int     `json:"busPositionType"`
}

// Stop along a line's route (GetRouteLines). SecDetail is 10 for
// direction 1 and 20 for direction 2.
type LineStop struct {
	Line      Text    `json:"line"`
	SecDetail int     `json:"secDetail"`
	Order     int     `json:"orderDetail"`
	Node      Text    `json:"node"`
	Name      string  `json:"name"`
	Lat       float64 `json:"latitude"`
	Lon       float64 `json:"longitude"`
}

// Direction of the route section, "1" or "2".
func (ls LineStop) Direction() string {
	if ls.SecDetail >= 20 {
		return "2"
	}
	return "1"
}

// The API is inconsistent about quoting identifiers. Text accepts
// both JSON strings and numbers.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*t = Text(strconv.FormatInt(i, 10))
		return nil
	}
	*t = Text(n.String())
	return nil
}

func (t Text) String() string {
	return string(t)
}

// Lists with a single element are sent as a bare object by the API.
type OneOrMany[T any] []T

func (o *OneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = OneOrMany[T]{one}
	return nil
}

// Envelope shared by all responses.
type response struct {
	ErrorCode   Text   `json:"errorCode"`
	Description string `json:"description"`
}

func (r response) ok() bool {
	code := string(r.ErrorCode)
	return code == "" || code == "0" || code == "000"
}
