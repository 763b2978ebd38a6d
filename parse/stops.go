package parse

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/madbus/madbus/catalog"
)

type StopCSV struct {
	ID    string  `csv:"node"`
	Name  string  `csv:"name"`
	Lines string  `csv:"lines"`
	X     float64 `csv:"x"`
	Y     float64 `csv:"y"`
}

// Parses the stop table. Returns the set of stop IDs and the number
// of stops referencing lines not in lineCodes.
func ParseStops(writer catalog.Writer, data io.Reader, lineCodes map[string]bool) (map[string]bool, int, error) {
	stopCsv := []*StopCSV{}
	if err := gocsv.Unmarshal(data, &stopCsv); err != nil {
		return nil, 0, fmt.Errorf("unmarshaling stops csv: %w", err)
	}

	stopIDs := map[string]bool{}
	dangling := 0
	for _, st := range stopCsv {
		id := strings.TrimSpace(st.ID)
		if id == "" {
			return nil, 0, fmt.Errorf("empty node")
		}
		n, err := strconv.ParseUint(id, 10, 32)
		if err != nil || n == 0 {
			return nil, 0, fmt.Errorf("invalid node '%s'", id)
		}

		// Normalize away leading zeros; IDs are compared as
		// strings everywhere else.
		id = strconv.FormatUint(n, 10)
		if stopIDs[id] {
			return nil, 0, fmt.Errorf("repeated node '%s'", id)
		}
		stopIDs[id] = true

		tokens := strings.Fields(st.Lines)
		for _, token := range tokens {
			parts := strings.Split(token, "/")
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				return nil, 0, fmt.Errorf("malformed line '%s' for node '%s'", token, id)
			}
		}
		for _, token := range tokens {
			if !lineCodes[catalog.PadLineCode(strings.Split(token, "/")[0])] {
				dangling++
				break
			}
		}

		err = writer.WriteStop(&catalog.StopRow{
			ID:    id,
			Name:  strings.TrimSpace(st.Name),
			Lines: strings.Join(tokens, " "),
			X:     st.X,
			Y:     st.Y,
		})
		if err != nil {
			return nil, 0, fmt.Errorf("writing node '%s': %w", id, err)
		}
	}

	return stopIDs, dangling, nil
}
