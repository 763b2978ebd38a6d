package parse

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/madbus/madbus/catalog"
)

type LineCSV struct {
	Code  string `csv:"line"`
	Label string `csv:"label"`
	NameA string `csv:"name_a"`
	NameB string `csv:"name_b"`
}

func ParseLines(writer catalog.Writer, data io.Reader) (map[string]bool, error) {
	lineCsv := []*LineCSV{}
	if err := gocsv.Unmarshal(data, &lineCsv); err != nil {
		return nil, fmt.Errorf("unmarshaling lines csv: %w", err)
	}

	codes := map[string]bool{}
	for _, l := range lineCsv {
		code := strings.TrimSpace(l.Code)
		if code == "" {
			return nil, fmt.Errorf("empty line code")
		}
		if _, err := strconv.ParseUint(code, 10, 32); err != nil {
			return nil, fmt.Errorf("non-numeric line code '%s'", code)
		}
		code = catalog.PadLineCode(code)
		if codes[code] {
			return nil, fmt.Errorf("repeated line code '%s'", code)
		}
		codes[code] = true

		label := strings.TrimSpace(l.Label)
		if label == "" {
			return nil, fmt.Errorf("empty label for line '%s'", code)
		}

		err := writer.WriteLine(&catalog.Line{
			Code:  code,
			Label: label,
			NameA: strings.TrimSpace(l.NameA),
			NameB: strings.TrimSpace(l.NameB),
		})
		if err != nil {
			return nil, fmt.Errorf("writing line '%s': %w", code, err)
		}
	}

	return codes, nil
}
