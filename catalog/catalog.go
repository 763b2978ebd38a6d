package catalog

// The Reference Catalog: the static tables of lines and stops loaded
// once from the geographic dataset. Read-only once loaded.

type Storage interface {
	// Gets a writer for the catalog. Any previously written
	// catalog is replaced.
	GetWriter() (Writer, error)

	// Gets a reader for the catalog.
	GetReader() (Reader, error)
}

// Writes catalog records.
//
// The stop table is large, so BeginStops() and EndStops() are called
// before and after all calls to WriteStop(), allowing batching.
type Writer interface {
	WriteLine(line *Line) error
	BeginStops() error
	WriteStop(stop *StopRow) error
	EndStops() error
	Close() error
}

type Reader interface {
	// Line with the given (zero padded) code, or nil if there is
	// no such line.
	Line(code string) (*Line, error)
	Lines() ([]*Line, error)

	// Stop with the given ID, or nil if there is no such stop.
	Stop(id string) (*StopRow, error)
	Stops() ([]*StopRow, error)

	// Stops with IDs beginning with prefix, ordered numerically
	// by ID. At most limit results (pass 0 for no limit.)
	StopsWithPrefix(prefix string, limit int) ([]*StopRow, error)
}

// A bus line. Code is the 3 digit zero padded internal code, Label
// the public name ("27", "N1", "C2", ...)
type Line struct {
	Code  string
	Label string
	NameA string
	NameB string
}

// A stop as found in the static dataset.
//
// Lines holds space separated "<code>/<direction>" tokens, exactly as
// in the dataset. X and Y are UTM coordinates in metres, zero when
// missing.
type StopRow struct {
	ID    string
	Name  string
	Lines string
	X     float64
	Y     float64
}
