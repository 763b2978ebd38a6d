package emt_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madbus/madbus/emt"
	"github.com/madbus/madbus/testutil"
)

func TestStopsNearLocation(t *testing.T) {
	fake := testutil.NewFakeEMT(t)
	fake.NearStops = []emt.LocationStop{
		{StopID: "72", Name: "Cibeles", Lat: 40.41, Lon: -3.69, Lines: []emt.StopLine{
			{Line: "027", Label: "27", Direction: "B"},
		}},
		{StopID: "73", Name: "Banco de España"},
	}

	stops, err := fake.Client().StopsNearLocation(context.Background(), 40.41, -3.69, 200)
	require.NoError(t, err)
	require.Equal(t, 2, len(stops))
	assert.Equal(t, emt.Text("72"), stops[0].StopID)
	assert.Equal(t, "B", stops[0].Lines[0].Direction)
	assert.Equal(t, emt.Text("73"), stops[1].StopID)

	reqs := fake.RequestsTo("GetStopsFromXY")
	require.Equal(t, 1, len(reqs))
	assert.Equal(t, "40.41", reqs[0].Form.Get("latitude"))
	assert.Equal(t, "-3.69", reqs[0].Form.Get("longitude"))
	assert.Equal(t, "200", reqs[0].Form.Get("Radius"))
}

func TestIncomingBuses(t *testing.T) {
	fake := testutil.NewFakeEMT(t)
	fake.Arrivals["72"] = []emt.Arrival{
		testutil.Arrival("72", "27", "PLAZA CASTILLA", 125),
		testutil.Arrival("72", "N1", "SANCHINARRO", 999999),
	}

	arrivals, err := fake.Client().IncomingBuses(context.Background(), "72")
	require.NoError(t, err)
	require.Equal(t, 2, len(arrivals))
	assert.Equal(t, emt.Text("27"), arrivals[0].LineID)
	assert.Equal(t, 125, arrivals[0].BusTimeLeft)
	assert.Equal(t, 999999, arrivals[1].BusTimeLeft)

	fake.FailArrivals["72"] = true
	_, err = fake.Client().IncomingBuses(context.Background(), "72")
	assert.ErrorIs(t, err, emt.ErrStatus)
}

func TestCatalogPage(t *testing.T) {
	fake := testutil.NewFakeEMT(t)
	fake.Nodes["3"] = testutil.Node(3, "Three", "27/1")
	fake.Nodes["5"] = testutil.Node(5, "Five", "27/2", "501/1")
	fake.Nodes["7"] = testutil.Node(7, "Seven")

	nodes, err := fake.Client().CatalogPage(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Equal(t, 2, len(nodes))
	assert.Equal(t, emt.Text("3"), nodes[0].Node)
	assert.Equal(t, []emt.Text{"27/2", "501/1"}, []emt.Text(nodes[1].Lines))

	reqs := fake.RequestsTo("GetNodesLines")
	require.Equal(t, 1, len(reqs))
	assert.Equal(t, "1|2|3|4|5|6", reqs[0].Form.Get("Nodes"))

	// Empty range doesn't hit the API
	nodes, err = fake.Client().CatalogPage(context.Background(), 7, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, len(nodes))
	assert.Equal(t, 1, len(fake.RequestsTo("GetNodesLines")))
}

func TestStopsOfLineFiltersDirectionAndCaches(t *testing.T) {
	fake := testutil.NewFakeEMT(t)
	fake.RouteLines["027"] = []emt.LineStop{
		{Line: "027", SecDetail: 10, Order: 1, Node: "72", Lat: 40.41, Lon: -3.69},
		{Line: "027", SecDetail: 10, Order: 2, Node: "73"},
		{Line: "027", SecDetail: 20, Order: 1, Node: "74"},
	}

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	client := fake.Client()
	client.TimeNow = func() time.Time { return now }

	stops, err := client.StopsOfLine(context.Background(), "027", "1")
	require.NoError(t, err)
	require.Equal(t, 2, len(stops))
	assert.Equal(t, emt.Text("72"), stops[0].Node)

	stops, err = client.StopsOfLine(context.Background(), "027", "2")
	require.NoError(t, err)
	require.Equal(t, 1, len(stops))
	assert.Equal(t, emt.Text("74"), stops[0].Node)

	// Second call served from cache
	reqs := fake.RequestsTo("GetRouteLines")
	require.Equal(t, 1, len(reqs))
	assert.Equal(t, "01/03/2024", reqs[0].Form.Get("SelectDate"))

	// Until the TTL expires
	now = now.Add(client.RouteLinesTTL + time.Second)
	_, err = client.StopsOfLine(context.Background(), "027", "1")
	require.NoError(t, err)
	assert.Equal(t, 2, len(fake.RequestsTo("GetRouteLines")))
}

func TestStopsOfLineDoesNotCacheBrokenResponses(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch calls {
		case 1:
			w.Write([]byte(`{"errorCode":"000","resultValues":[{"line":"027","secDe`))
		case 2:
			w.Write([]byte(`{"errorCode":"-5","description":"try again"}`))
		default:
			w.Write([]byte(`{"errorCode":"000","resultValues":[{"line":"027","secDetail":10,"node":72}]}`))
		}
	}))
	defer server.Close()

	client := emt.NewClient(server.URL, testutil.ClientID, testutil.PassKey)

	_, err := client.StopsOfLine(context.Background(), "027", "1")
	assert.ErrorContains(t, err, "decoding")

	_, err = client.StopsOfLine(context.Background(), "027", "1")
	assert.ErrorContains(t, err, "try again")

	stops, err := client.StopsOfLine(context.Background(), "027", "1")
	require.NoError(t, err)
	require.Equal(t, 1, len(stops))
	assert.Equal(t, emt.Text("72"), stops[0].Node)

	// Only the good response is cached
	_, err = client.StopsOfLine(context.Background(), "027", "1")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestErrorEnvelope(t *testing.T) {
	fake := testutil.NewFakeEMT(t)

	_, err := fake.Client().StopsOfLine(context.Background(), "999", "1")
	assert.ErrorContains(t, err, "unknown line")

	bad := emt.NewClient(fake.Server.URL, "nope", "nope")
	_, err = bad.IncomingBuses(context.Background(), "72")
	assert.ErrorContains(t, err, "bad credentials")
}

func TestSingleObjectsAndNumericIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A single stop is sent as an object, with a single
		// line object and numeric identifiers.
		w.Write([]byte(`{
  "errorCode": "000",
  "stop": {
    "stopId": 72,
    "name": "Cibeles",
    "latitude": 40.41,
    "longitude": -3.69,
    "line": {"line": 27, "label": "27", "direction": "A"}
  }
}`))
	}))
	defer server.Close()

	stops, err := emt.NewClient(server.URL, "", "").StopsNearLocation(context.Background(), 40.41, -3.69, 100)
	require.NoError(t, err)
	require.Equal(t, 1, len(stops))
	assert.Equal(t, emt.Text("72"), stops[0].StopID)
	require.Equal(t, 1, len(stops[0].Lines))
	assert.Equal(t, emt.Text("27"), stops[0].Lines[0].Line)
}

func TestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client := emt.NewClient(server.URL, "", "")
	client.Timeout = 10 * time.Millisecond
	_, err := client.IncomingBuses(context.Background(), "72")
	assert.Error(t, err)
}

func TestText(t *testing.T) {
	for _, tc := range []struct {
		in  string
		out emt.Text
		err bool
	}{
		{`"72"`, "72", false},
		{`72`, "72", false},
		{`72.0`, "72.0", false},
		{`null`, "", false},
		{`{}`, "", true},
	} {
		var txt emt.Text
		err := json.Unmarshal([]byte(tc.in), &txt)
		if tc.err {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.out, txt, tc.in)
	}
}
