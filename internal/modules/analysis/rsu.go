// README: RSU site definitions from flags or JSON.
package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type rsuFile struct {
	RSUs []RSU `json:"rsus"`
}

// ParseRSU reads "ID:lat,lon".
func ParseRSU(s string) (RSU, error) {
	id, coords, ok := strings.Cut(s, ":")
	if !ok {
		return RSU{}, fmt.Errorf("%w: %q, expected RSU_ID:lat,lon", ErrBadRSU, s)
	}
	latS, lonS, ok := strings.Cut(coords, ",")
	if !ok {
		return RSU{}, fmt.Errorf("%w: %q, expected RSU_ID:lat,lon", ErrBadRSU, s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil {
		return RSU{}, fmt.Errorf("%w: %q: %v", ErrBadRSU, s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonS), 64)
	if err != nil {
		return RSU{}, fmt.Errorf("%w: %q: %v", ErrBadRSU, s, err)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return RSU{}, fmt.Errorf("%w: %q has an empty id", ErrBadRSU, s)
	}
	return RSU{ID: id, Lat: lat, Lon: lon}, nil
}

func ParseRSUs(items []string) ([]RSU, error) {
	rsus := make([]RSU, 0, len(items))
	for _, item := range items {
		r, err := ParseRSU(item)
		if err != nil {
			return nil, err
		}
		rsus = append(rsus, r)
	}
	if len(rsus) == 0 {
		return nil, fmt.Errorf("%w: use --rsu or --rsu-json", ErrNoRSUs)
	}
	return rsus, nil
}

// LoadRSUs reads {"rsus":[{"id":..,"lat":..,"lon":..}]}.
func LoadRSUs(path string) ([]RSU, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f rsuFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(f.RSUs) == 0 {
		return nil, fmt.Errorf("%w in %s, expected JSON with key \"rsus\"", ErrNoRSUs, path)
	}
	return f.RSUs, nil
}

func WriteRSUs(path string, rsus []RSU) error {
	raw, err := json.MarshalIndent(rsuFile{RSUs: rsus}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(raw, '\n'), 0o644)
}
