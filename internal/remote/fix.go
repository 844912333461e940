// README: Parser for the kinematics client's position output.
package remote

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"rsumon/internal/types"
)

// ParseFix extracts latitude and longitude from output lines shaped like
//
//	latitude          - 36.14096492
//	longitude         - -97.06743318
func ParseFix(out string) (types.Point, error) {
	var lat, lng *float64
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "latitude"):
			lat = parseValue(line)
		case strings.HasPrefix(line, "longitude"):
			lng = parseValue(line)
		}
	}
	if lat == nil || lng == nil {
		return types.Point{}, fmt.Errorf("%w: latitude/longitude not found", ErrMalformedFix)
	}
	p := types.Point{Lat: *lat, Lng: *lng}
	if !p.Valid() {
		return types.Point{}, fmt.Errorf("%w: out of range (%f, %f)", ErrMalformedFix, p.Lat, p.Lng)
	}
	return p, nil
}

func parseValue(line string) *float64 {
	_, v, ok := strings.Cut(line, "-")
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil
	}
	return &f
}
