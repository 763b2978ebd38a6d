package directory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madbus/madbus/model"
)

func ids(stops []*model.Stop) []string {
	r := []string{}
	for _, s := range stops {
		r = append(r, s.ID)
	}
	return r
}

func TestDirectoryGetAndUpsert(t *testing.T) {
	d := New()
	assert.Equal(t, 0, d.Len())

	_, found := d.Get("72")
	assert.False(t, found)

	d.Upsert(&model.Stop{ID: "72", Name: "Cibeles", Lines: []string{"27 ida"}})
	s, found := d.Get("72")
	require.True(t, found)
	assert.Equal(t, &model.Stop{ID: "72", Name: "Cibeles", Lines: []string{"27 ida"}}, s)

	// Overwrite
	d.Upsert(&model.Stop{ID: "72", Name: "Cibeles 2"})
	s, found = d.Get("72")
	require.True(t, found)
	assert.Equal(t, "Cibeles 2", s.Name)
	assert.Equal(t, 1, d.Len())
}

func TestDirectoryIsolation(t *testing.T) {
	d := New()

	orig := &model.Stop{ID: "72", Lines: []string{"27 ida"}, Position: &model.Position{Lat: 1, Lon: 2}}
	d.Upsert(orig)

	// Mutating the written value doesn't affect the directory
	orig.Lines[0] = "changed"
	orig.Position.Lat = 3

	s, _ := d.Get("72")
	assert.Equal(t, "27 ida", s.Lines[0])
	assert.Equal(t, 1.0, s.Position.Lat)

	// Nor does mutating a value read from it
	s.Arrivals = []model.Arrival{{LineID: "27"}}
	s.Lines[0] = "changed"

	s, _ = d.Get("72")
	assert.Nil(t, s.Arrivals)
	assert.Equal(t, "27 ida", s.Lines[0])
}

func TestDirectoryUpsertDropsArrivals(t *testing.T) {
	d := New()
	d.Upsert(&model.Stop{ID: "72", Arrivals: []model.Arrival{{LineID: "27"}}})
	s, _ := d.Get("72")
	assert.Nil(t, s.Arrivals)
}

func TestDirectoryFindByPrefix(t *testing.T) {
	d := New()
	for _, id := range []string{"1235", "12", "1234", "99", "123"} {
		d.Upsert(&model.Stop{ID: id})
	}

	// insertion order, not numeric
	assert.Equal(t, []string{"1235", "1234", "123"}, ids(d.FindByPrefix("123", 0)))
	assert.Equal(t, []string{"1235", "1234"}, ids(d.FindByPrefix("123", 2)))
	assert.Equal(t, []string{"1235", "12", "1234", "123"}, ids(d.FindByPrefix("12", 6)))
	assert.Equal(t, []string{}, ids(d.FindByPrefix("7", 6)))

	// re-upserting keeps position
	d.Upsert(&model.Stop{ID: "1235", Name: "again"})
	assert.Equal(t, []string{"1235", "1234", "123"}, ids(d.FindByPrefix("123", 0)))
}

func TestDirectoryFindExact(t *testing.T) {
	d := New()
	d.Upsert(&model.Stop{ID: "123"})
	d.Upsert(&model.Stop{ID: "1234"})

	assert.Equal(t, []string{"123"}, ids(d.FindExact("123")))
	assert.Equal(t, []string{}, ids(d.FindExact("12")))
}

func TestDirectoryConcurrentAccess(t *testing.T) {
	d := New()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				d.Upsert(&model.Stop{ID: fmt.Sprintf("%d", w*1000+i), Lines: []string{"1 ida"}})
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				for _, s := range d.FindByPrefix("1", 10) {
					assert.Equal(t, []string{"1 ida"}, s.Lines)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, d.Len())
}
