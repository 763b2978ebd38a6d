package parse

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"

	"github.com/madbus/madbus/catalog"
)

const (
	LinesFile = "lines.csv"
	StopsFile = "stops.csv"
)

// Summary of a parsed catalog.
type Summary struct {
	Lines int
	Stops int

	// Stops referencing line codes missing from the line table.
	// These are kept, but can't be fully normalized.
	DanglingStops int
}

func init() {
	// LazyCSVReader required (at least) to survive sloppy use of
	// quotes. The BOM reader strips unicode BOMs if present.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})
}

// Parses the reference dataset from a zip archive holding lines.csv
// and stops.csv.
func ParseCatalogZip(writer catalog.Writer, buf []byte) (*Summary, error) {
	file := map[string]io.ReadCloser{
		LinesFile: nil,
		StopsFile: nil,
	}

	defer func() {
		for _, rc := range file {
			if rc != nil {
				rc.Close()
			}
		}
	}()

	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("unzipping: %w", err)
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		fName := path[len(path)-1]

		if _, found := file[fName]; !found {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}

		file[fName] = rc
	}

	for _, required := range []string{LinesFile, StopsFile} {
		if file[required] == nil {
			return nil, fmt.Errorf("missing %s", required)
		}
	}

	return ParseCatalog(writer, file[LinesFile], file[StopsFile])
}

// Parses the catalog from disk: the zip archive if one is given,
// otherwise the separate lines and stops files.
func ParseCatalogFiles(writer catalog.Writer, archive string, lines string, stops string) (*Summary, error) {
	if archive != "" {
		buf, err := os.ReadFile(archive)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", archive, err)
		}
		return ParseCatalogZip(writer, buf)
	}

	lf, err := os.Open(lines)
	if err != nil {
		return nil, fmt.Errorf("opening lines: %w", err)
	}
	defer lf.Close()

	sf, err := os.Open(stops)
	if err != nil {
		return nil, fmt.Errorf("opening stops: %w", err)
	}
	defer sf.Close()

	return ParseCatalog(writer, lf, sf)
}

// Parses the line and stop tables into writer, and closes it.
func ParseCatalog(writer catalog.Writer, lines io.Reader, stops io.Reader) (*Summary, error) {
	lineCodes, err := ParseLines(writer, lines)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", LinesFile, err)
	}

	err = writer.BeginStops()
	if err != nil {
		return nil, fmt.Errorf("beginning stops: %w", err)
	}
	stopIDs, dangling, err := ParseStops(writer, stops, lineCodes)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", StopsFile, err)
	}
	err = writer.EndStops()
	if err != nil {
		return nil, fmt.Errorf("ending stops: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return nil, fmt.Errorf("closing catalog writer: %w", err)
	}

	return &Summary{
		Lines:         len(lineCodes),
		Stops:         len(stopIDs),
		DanglingStops: dangling,
	}, nil
}
