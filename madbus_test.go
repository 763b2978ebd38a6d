package madbus_test

// Helpers for tests.

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/madbus/madbus"
	"github.com/madbus/madbus/catalog"
	"github.com/madbus/madbus/directory"
	"github.com/madbus/madbus/model"
	"github.com/madbus/madbus/testutil"
)

type testEnv struct {
	fake      *testutil.FakeEMT
	catalog   catalog.Reader
	directory *directory.Directory
	service   *madbus.Service
}

func newTestEnv(t *testing.T, stops ...*catalog.StopRow) *testEnv {
	fake := testutil.NewFakeEMT(t)
	reader := testutil.BuildCatalog(t, testutil.DefaultLines(), stops)
	d := directory.New()
	return &testEnv{
		fake:      fake,
		catalog:   reader,
		directory: d,
		service:   madbus.NewService(fake.Client(), reader, d),
	}
}

// Warms the directory from the fake's nodes, leaving it complete.
func (e *testEnv) warm(t *testing.T) {
	w := directory.NewWarmer(e.directory, e.fake.Client(), e.service.Normalizer())
	w.BatchSize = 1000
	w.MaxID = 2000
	w.Stagger = 0
	require.NoError(t, w.Run(context.Background()))
	require.True(t, e.directory.Complete())
}

func (e *testEnv) upsert(ids ...string) {
	for _, id := range ids {
		e.directory.Upsert(&model.Stop{
			ID:       id,
			Name:     "Stop " + id,
			Lines:    []string{"27 ida"},
			Position: &model.Position{Lat: 40.4, Lon: -3.7},
		})
	}
}

func stopIDs(stops []*model.Stop) []string {
	ids := []string{}
	for _, s := range stops {
		ids = append(ids, s.ID)
	}
	return ids
}
