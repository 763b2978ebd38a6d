package directory

import (
	"strings"
	"sync"

	"github.com/madbus/madbus/model"
)

// Directory is the process wide map of stop ID to Stop, filled in the
// background by a Warmer and read by request handlers.
//
// Iteration order is insertion order. Stops are copied on the way in
// and on the way out, so a caller can never observe (or cause) a
// partially written entry.
type Directory struct {
	mutex    sync.RWMutex
	stops    map[string]*model.Stop
	order    []string
	complete bool
}

func New() *Directory {
	return &Directory{
		stops: map[string]*model.Stop{},
	}
}

// Upsert writes a stop. An existing entry keeps its position.
func (d *Directory) Upsert(stop *model.Stop) {
	c := stop.Copy()
	c.Arrivals = nil

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, found := d.stops[c.ID]; !found {
		d.order = append(d.order, c.ID)
	}
	d.stops[c.ID] = c
}

func (d *Directory) Get(id string) (*model.Stop, bool) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	s, found := d.stops[id]
	if !found {
		return nil, false
	}
	return s.Copy(), true
}

// FindExact returns the stop with the given ID, if any, as a list
// of at most one element.
func (d *Directory) FindExact(id string) []*model.Stop {
	if s, found := d.Get(id); found {
		return []*model.Stop{s}
	}
	return []*model.Stop{}
}

// FindByPrefix returns stops with IDs starting with prefix, in
// insertion order. At most limit results (pass 0 for no limit.)
func (d *Directory) FindByPrefix(prefix string, limit int) []*model.Stop {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	stops := []*model.Stop{}
	for _, id := range d.order {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		stops = append(stops, d.stops[id].Copy())
		if limit > 0 && len(stops) >= limit {
			break
		}
	}
	return stops
}

func (d *Directory) Len() int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return len(d.stops)
}

// Complete reports whether a warm-up has gone through the entire ID
// range without giving up on any batch.
func (d *Directory) Complete() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.complete
}

func (d *Directory) markComplete() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.complete = true
}
