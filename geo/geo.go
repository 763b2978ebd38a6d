package geo

import (
	"fmt"

	UTM "github.com/im7mortal/UTM"

	"github.com/madbus/madbus/model"
)

const (
	// The reference dataset is projected to UTM zone 30T on the
	// ED50 datum.
	ZoneNumber = 30
	ZoneLetter = "T"

	// Shift from ED50 to ETRS89 (≈WGS84) in UTM metres, valid
	// around Madrid.
	ED50ToETRS89Easting  = -110.0
	ED50ToETRS89Northing = -208.0
)

// ToPosition converts ED50 UTM coordinates from the reference
// dataset into latitude and longitude.
func ToPosition(x, y float64) (*model.Position, error) {
	if x == 0 || y == 0 {
		return nil, fmt.Errorf("missing coordinates")
	}

	lat, lon, err := UTM.ToLatLon(
		x+ED50ToETRS89Easting,
		y+ED50ToETRS89Northing,
		ZoneNumber,
		ZoneLetter,
	)
	if err != nil {
		return nil, fmt.Errorf("converting %f,%f: %w", x, y, err)
	}

	return &model.Position{Lat: lat, Lon: lon}, nil
}
