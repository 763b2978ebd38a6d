package madbus

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"

	"github.com/madbus/madbus/model"
)

const (
	NoEstimates    = "No hay estimaciones disponibles"
	MapLinkText    = "Ver en mapa"
	TruncateMarker = "…"
)

// Widths are measured the same regardless of locale. East Asian
// ambiguous characters such as … count as one cell.
var cells = &runewidth.Condition{EastAsianWidth: false}

// Width of each column, capped at maxWidth.
func columnWidths(rows [][]string, maxWidth int) []int {
	widths := []int{}
	for _, row := range rows {
		for i, value := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			w := cells.StringWidth(value)
			if maxWidth > 0 && w > maxWidth {
				w = maxWidth
			}
			if w > widths[i] {
				widths[i] = w
			}
		}
	}
	return widths
}

// RenderTable renders arrivals as monospace rows of line, destination
// and time, each column padded to a common width.
func RenderTable(arrivals []model.Arrival, maxWidth int) string {
	if len(arrivals) == 0 {
		return NoEstimates
	}

	rows := make([][]string, 0, len(arrivals))
	for _, a := range arrivals {
		rows = append(rows, []string{
			sanitize(a.LineID),
			sanitize(a.Destination),
			sanitize(a.Time),
		})
	}

	widths := columnWidths(rows, maxWidth)

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		padded := make([]string, len(row))
		for i, value := range row {
			if cells.StringWidth(value) > widths[i] {
				value = cells.Truncate(value, widths[i], TruncateMarker)
			}
			padded[i] = cells.FillRight(value, widths[i])
		}
		lines = append(lines, "`"+strings.Join(padded, " ")+"`")
	}

	return strings.Join(lines, "\r\n")
}

// Backticks would close the monospace span early.
func sanitize(value string) string {
	return strings.ReplaceAll(strings.TrimSpace(value), "`", "'")
}

func (s *Service) mapLink(p *model.Position) string {
	url := fmt.Sprintf(
		s.MapURL,
		strconv.FormatFloat(p.Lat, 'f', -1, 64),
		strconv.FormatFloat(p.Lon, 'f', -1, 64),
	)
	return fmt.Sprintf("[%s](%s)", MapLinkText, url)
}

// Render produces the result for a stop with arrivals attached.
func (s *Service) Render(stop *model.Stop) model.Result {
	body := RenderTable(stop.Arrivals, s.MaxColumnWidth)
	if stop.Position != nil {
		body += "\r\n" + s.mapLink(stop.Position)
	}

	return model.Result{
		ID:          uuid.NewString(),
		Title:       fmt.Sprintf("%s - %s", stop.ID, stop.Name),
		Body:        body,
		Description: strings.Join(stop.Lines, ", "),
		Thumbnail:   s.Thumbnail,
		Refresh:     model.RefreshAction{StopID: stop.ID},
	}
}
