package catalog

import (
	"sort"
	"strings"
	"sync"
)

// In memory implementation of Storage below

type MemoryStorage struct {
	mutex   sync.RWMutex
	current *memoryCatalog
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		current: newMemoryCatalog(),
	}
}

func (s *MemoryStorage) GetWriter() (Writer, error) {
	return &memoryWriter{
		storage: s,
		catalog: newMemoryCatalog(),
	}, nil
}

func (s *MemoryStorage) GetReader() (Reader, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.current, nil
}

type memoryCatalog struct {
	lines map[string]*Line
	stops map[string]*StopRow

	// stop IDs in numerical order, for prefix searches
	order []string
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		lines: map[string]*Line{},
		stops: map[string]*StopRow{},
	}
}

type memoryWriter struct {
	storage *MemoryStorage
	catalog *memoryCatalog
}

func (w *memoryWriter) WriteLine(line *Line) error {
	w.catalog.lines[line.Code] = line
	return nil
}

func (w *memoryWriter) BeginStops() error {
	return nil
}

func (w *memoryWriter) WriteStop(stop *StopRow) error {
	w.catalog.stops[stop.ID] = stop
	return nil
}

func (w *memoryWriter) EndStops() error {
	return nil
}

// The written catalog becomes visible to readers on Close().
func (w *memoryWriter) Close() error {
	stops := make([]*StopRow, 0, len(w.catalog.stops))
	for _, s := range w.catalog.stops {
		stops = append(stops, s)
	}
	sortStopRows(stops)
	w.catalog.order = make([]string, 0, len(stops))
	for _, s := range stops {
		w.catalog.order = append(w.catalog.order, s.ID)
	}

	w.storage.mutex.Lock()
	defer w.storage.mutex.Unlock()
	w.storage.current = w.catalog
	return nil
}

func (c *memoryCatalog) Line(code string) (*Line, error) {
	return c.lines[code], nil
}

func (c *memoryCatalog) Lines() ([]*Line, error) {
	lines := []*Line{}
	for _, l := range c.lines {
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].Code < lines[j].Code
	})
	return lines, nil
}

func (c *memoryCatalog) Stop(id string) (*StopRow, error) {
	return c.stops[id], nil
}

func (c *memoryCatalog) Stops() ([]*StopRow, error) {
	stops := []*StopRow{}
	for _, id := range c.order {
		stops = append(stops, c.stops[id])
	}
	return stops, nil
}

func (c *memoryCatalog) StopsWithPrefix(prefix string, limit int) ([]*StopRow, error) {
	stops := []*StopRow{}
	for _, id := range c.order {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		stops = append(stops, c.stops[id])
		if limit > 0 && len(stops) >= limit {
			break
		}
	}
	return stops, nil
}
