package testutil

// Helpers and configuration for tests.

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/madbus/madbus/catalog"
	"github.com/madbus/madbus/emt"
)

const (
	ClientID = "test-client"
	PassKey  = "test-pass"
)

type Request struct {
	Endpoint string
	Form     url.Values
}

// A fake EMT API. Fields may be modified between requests, but not
// concurrently with them.
type FakeEMT struct {
	Server *httptest.Server

	// GetStopsFromXY returns NearStops regardless of location.
	NearStops    []emt.LocationStop
	FailNearStop bool

	// GetArriveStop, by stop ID.
	Arrivals     map[string][]emt.Arrival
	FailArrivals map[string]bool

	// GetNodesLines, by node ID. FailNodes holds the number of
	// times a request including the given node should fail.
	Nodes     map[string]emt.Node
	FailNodes map[string]int

	// GetRouteLines, by line code.
	RouteLines map[string][]emt.LineStop

	mutex    sync.Mutex
	requests []Request
}

func NewFakeEMT(t testing.TB) *FakeEMT {
	f := &FakeEMT{
		Arrivals:     map[string][]emt.Arrival{},
		FailArrivals: map[string]bool{},
		Nodes:        map[string]emt.Node{},
		FailNodes:    map[string]int{},
		RouteLines:   map[string][]emt.LineStop{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(f.Server.Close)
	return f
}

// A client talking to the fake.
func (f *FakeEMT) Client() *emt.Client {
	return emt.NewClient(f.Server.URL, ClientID, PassKey)
}

func (f *FakeEMT) Requests() []Request {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]Request{}, f.requests...)
}

// Requests made to the given endpoint, e.g. "GetArriveStop".
func (f *FakeEMT) RequestsTo(endpoint string) []Request {
	reqs := []Request{}
	for _, r := range f.Requests() {
		if strings.HasSuffix(r.Endpoint, endpoint+".php") {
			reqs = append(reqs, r)
		}
	}
	return reqs
}

func (f *FakeEMT) handler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.requests = append(f.requests, Request{Endpoint: r.URL.Path, Form: r.PostForm})

	if r.PostForm.Get("idClient") != ClientID || r.PostForm.Get("passKey") != PassKey {
		writeJSON(w, map[string]string{"errorCode": "-1", "description": "bad credentials"})
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/geo/GetStopsFromXY.php"):
		if f.FailNearStop {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{"errorCode": "000", "stop": f.NearStops})

	case strings.HasSuffix(r.URL.Path, "/geo/GetArriveStop.php"):
		id := r.PostForm.Get("idStop")
		if f.FailArrivals[id] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		arrivals := f.Arrivals[id]
		if arrivals == nil {
			arrivals = []emt.Arrival{}
		}
		writeJSON(w, map[string]interface{}{"errorCode": "000", "arrives": arrivals})

	case strings.HasSuffix(r.URL.Path, "/bus/GetNodesLines.php"):
		nodes := []emt.Node{}
		for _, id := range strings.Split(r.PostForm.Get("Nodes"), "|") {
			if f.FailNodes[id] > 0 {
				f.FailNodes[id]--
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			if n, found := f.Nodes[id]; found {
				nodes = append(nodes, n)
			}
		}
		writeJSON(w, map[string]interface{}{"errorCode": "000", "resultValues": nodes})

	case strings.HasSuffix(r.URL.Path, "/bus/GetRouteLines.php"):
		stops, found := f.RouteLines[r.PostForm.Get("Lines")]
		if !found {
			writeJSON(w, map[string]string{"errorCode": "-2", "description": "unknown line"})
			return
		}
		writeJSON(w, map[string]interface{}{"errorCode": "000", "resultValues": stops})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Builds an in-memory catalog.
func BuildCatalog(t testing.TB, lines []*catalog.Line, stops []*catalog.StopRow) catalog.Reader {
	s := catalog.NewMemoryStorage()
	writer, err := s.GetWriter()
	require.NoError(t, err)
	for _, l := range lines {
		require.NoError(t, writer.WriteLine(l))
	}
	require.NoError(t, writer.BeginStops())
	for _, st := range stops {
		require.NoError(t, writer.WriteStop(st))
	}
	require.NoError(t, writer.EndStops())
	require.NoError(t, writer.Close())

	reader, err := s.GetReader()
	require.NoError(t, err)
	return reader
}

// A small catalog of lines 1, 27 and N1 (code 501).
func DefaultLines() []*catalog.Line {
	return []*catalog.Line{
		{Code: "001", Label: "1", NameA: "PROSPERIDAD", NameB: "CRISTO REY"},
		{Code: "027", Label: "27", NameA: "EMBAJADORES", NameB: "PLAZA CASTILLA"},
		{Code: "501", Label: "N1", NameA: "CIBELES", NameB: "SANCHINARRO"},
	}
}

// A catalog page node.
func Node(id int, name string, lines ...string) emt.Node {
	ls := []emt.Text{}
	for _, l := range lines {
		ls = append(ls, emt.Text(l))
	}
	return emt.Node{
		Node:  emt.Text(strconv.Itoa(id)),
		Name:  name,
		Lines: ls,
		Lat:   40.4 + float64(id)/100000,
		Lon:   -3.7,
	}
}

// An arrival in secondsLeft seconds.
func Arrival(stopID string, line string, destination string, secondsLeft int) emt.Arrival {
	return emt.Arrival{
		StopID:      emt.Text(stopID),
		LineID:      emt.Text(line),
		Destination: destination,
		BusID:       "4711",
		BusTimeLeft: secondsLeft,
		BusDistance: secondsLeft * 5,
	}
}
