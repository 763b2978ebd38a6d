package madbus_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madbus/madbus"
	"github.com/madbus/madbus/catalog"
	"github.com/madbus/madbus/emt"
	"github.com/madbus/madbus/model"
	"github.com/madbus/madbus/testutil"
)

func TestNormalizeCatalogRow(t *testing.T) {
	env := newTestEnv(t)
	n := env.service.Normalizer()

	stop, err := n.Normalize(context.Background(), madbus.CatalogStop(&catalog.StopRow{
		ID:    "72",
		Name:  "Puerta del Sol",
		Lines: "1/1 27/2 501/1",
		X:     440400,
		Y:     4474460,
	}))
	require.NoError(t, err)

	assert.Equal(t, "72", stop.ID)
	assert.Equal(t, "Puerta del Sol", stop.Name)
	assert.Equal(t, []string{"1 ida", "27 vuelta", "N1 ida"}, stop.Lines)
	require.NotNil(t, stop.Position)
	assert.InDelta(t, 40.41, stop.Position.Lat, 0.02)
	assert.InDelta(t, -3.70, stop.Position.Lon, 0.02)
	assert.Nil(t, stop.Arrivals)

	// No request needed when coordinates are present
	assert.Equal(t, 0, len(env.fake.Requests()))
}

func TestNormalizeCatalogRowUnknownLine(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Normalizer().Normalize(context.Background(), madbus.CatalogStop(&catalog.StopRow{
		ID:    "72",
		Name:  "Sol",
		Lines: "1/1 999/2",
		X:     440400,
		Y:     4474460,
	}))
	assert.Error(t, err)
}

func TestNormalizeCatalogRowWithoutCoordinates(t *testing.T) {
	env := newTestEnv(t)
	env.fake.RouteLines["027"] = []emt.LineStop{
		{Line: "27", SecDetail: 20, Node: "72", Lat: 1, Lon: 1},
		{Line: "27", SecDetail: 10, Node: "71", Lat: 40.43, Lon: -3.69},
		{Line: "27", SecDetail: 10, Node: "72", Lat: 40.42, Lon: -3.70},
	}
	n := env.service.Normalizer()

	stop, err := n.Normalize(context.Background(), madbus.CatalogStop(&catalog.StopRow{
		ID:    "72",
		Name:  "Sol",
		Lines: "27/1",
	}))
	require.NoError(t, err)
	assert.Equal(t, &model.Position{Lat: 40.42, Lon: -3.70}, stop.Position)

	// Not on the route at all
	_, err = n.Normalize(context.Background(), madbus.CatalogStop(&catalog.StopRow{
		ID:    "4000",
		Name:  "Nowhere",
		Lines: "27/1",
	}))
	assert.Error(t, err)

	// Route lookup fails
	_, err = n.Normalize(context.Background(), madbus.CatalogStop(&catalog.StopRow{
		ID:    "72",
		Name:  "Sol",
		Lines: "1/1",
	}))
	assert.Error(t, err)
}

func TestNormalizeLocationStop(t *testing.T) {
	env := newTestEnv(t)

	stop, err := env.service.Normalizer().Normalize(context.Background(), madbus.LocationStop(&emt.LocationStop{
		StopID: "72",
		Name:   "Sol",
		Lat:    40.417,
		Lon:    -3.703,
		Lines: emt.OneOrMany[emt.StopLine]{
			{Line: "27", Label: "27", Direction: "B"},
			{Line: "1", Label: "1", Direction: "A"},
			{Line: "777", Label: "SE", Direction: "B"},
			{Line: "778", Label: "", Direction: "B"},
		},
	}))
	require.NoError(t, err)

	assert.Equal(t, "72", stop.ID)
	assert.Equal(t, "Sol", stop.Name)
	assert.Equal(t, []string{"27 ida", "1 vuelta"}, stop.Lines)
	assert.Equal(t, &model.Position{Lat: 40.417, Lon: -3.703}, stop.Position)

	// Lines missing from the catalog are dropped, whatever the API
	// calls them
	stop, err = env.service.Normalizer().Normalize(context.Background(), madbus.LocationStop(&emt.LocationStop{
		StopID: "73",
		Lines: emt.OneOrMany[emt.StopLine]{
			{Line: "777", Label: "SE", Direction: "B"},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{}, stop.Lines)
}

func TestNormalizeNode(t *testing.T) {
	env := newTestEnv(t)

	stop, err := env.service.Normalizer().NormalizeNode(
		context.Background(),
		testutil.Node(1234, "", "1/1", "27/2", "999/1", "garbage"),
	)
	require.NoError(t, err)

	assert.Equal(t, "1234", stop.ID)
	assert.Equal(t, "Stop 1234", stop.Name)
	assert.Equal(t, []string{"1 ida", "27 vuelta"}, stop.Lines)
	require.NotNil(t, stop.Position)
	assert.InDelta(t, 40.41234, stop.Position.Lat, 1e-9)
}

func TestNormalizeDirectionConventions(t *testing.T) {
	env := newTestEnv(t)
	n := env.service.Normalizer()

	// "1" is outbound for catalog and nodes, "B" for location
	// search. Anything else is the return direction.
	node, err := n.NormalizeNode(context.Background(), testutil.Node(1, "x", "27/1", "27/B"))
	require.NoError(t, err)
	assert.Equal(t, []string{"27 ida", "27 vuelta"}, node.Lines)

	loc, err := n.Normalize(context.Background(), madbus.LocationStop(&emt.LocationStop{
		StopID: "1",
		Lines: emt.OneOrMany[emt.StopLine]{
			{Line: "27", Direction: "1"},
			{Line: "27", Direction: "B"},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"27 vuelta", "27 ida"}, loc.Lines)
}

func TestNormalizeMalformed(t *testing.T) {
	env := newTestEnv(t)
	n := env.service.Normalizer()

	for _, raw := range []madbus.RawStop{
		{},
		{Kind: madbus.RawCatalog},
		{Kind: madbus.RawLocation, Catalog: &catalog.StopRow{ID: "1"}},
		madbus.NodeStop(&emt.Node{}),
		madbus.LocationStop(&emt.LocationStop{}),
		madbus.CatalogStop(&catalog.StopRow{}),
	} {
		_, err := n.Normalize(context.Background(), raw)
		assert.ErrorIs(t, err, madbus.ErrMalformedStop)
	}
}

func TestNormalizeIsRepeatable(t *testing.T) {
	env := newTestEnv(t)
	env.fake.RouteLines["027"] = []emt.LineStop{
		{Line: "27", SecDetail: 10, Node: "72", Lat: 40.42, Lon: -3.70},
	}
	n := env.service.Normalizer()

	for name, raw := range map[string]madbus.RawStop{
		"catalog": madbus.CatalogStop(&catalog.StopRow{
			ID: "72", Name: "Sol", Lines: "1/1 27/2", X: 440400, Y: 4474460,
		}),
		"catalog without coordinates": madbus.CatalogStop(&catalog.StopRow{
			ID: "72", Name: "Sol", Lines: "27/1",
		}),
		"location": madbus.LocationStop(&emt.LocationStop{
			StopID: "72", Name: "Sol", Lat: 40.417, Lon: -3.703,
			Lines: emt.OneOrMany[emt.StopLine]{{Line: "27", Direction: "B"}},
		}),
		"node": madbus.NodeStop(&emt.Node{
			Node: "72", Name: "Sol", Lat: 40.417, Lon: -3.703,
			Lines: emt.OneOrMany[emt.Text]{"1/1", "501/2"},
		}),
	} {
		t.Run(name, func(t *testing.T) {
			first, err := n.Normalize(context.Background(), raw)
			require.NoError(t, err)
			second, err := n.Normalize(context.Background(), raw)
			require.NoError(t, err)

			assert.Equal(t, first.ID, second.ID)
			assert.Equal(t, first.Name, second.Name)
			assert.Equal(t, first.Lines, second.Lines)
			require.NotNil(t, first.Position)
			assert.Equal(t, *first.Position, *second.Position)
			assert.NotSame(t, first.Position, second.Position)
		})
	}

	// Second lookup along the route was served from cache
	assert.Equal(t, 1, len(env.fake.RequestsTo("GetRouteLines")))
}
