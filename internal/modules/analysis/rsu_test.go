package analysis

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRSU(t *testing.T) {
	tests := []struct {
		in      string
		want    RSU
		wantErr bool
	}{
		{in: "RSU1:36.11,-97.15", want: RSU{ID: "RSU1", Lat: 36.11, Lon: -97.15}},
		{in: " north : 36.1 , -97.2 ", want: RSU{ID: "north", Lat: 36.1, Lon: -97.2}},
		{in: "RSU1-36.11,-97.15", wantErr: true},
		{in: "RSU1:36.11", wantErr: true},
		{in: "RSU1:abc,-97.15", wantErr: true},
		{in: ":36.11,-97.15", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRSU(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrBadRSU)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseRSUs_Empty(t *testing.T) {
	_, err := ParseRSUs(nil)
	require.True(t, errors.Is(err, ErrNoRSUs))
}

func TestRSUJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rsus.json")
	rsus := []RSU{{ID: "A", Lat: 1, Lon: 2}, {ID: "B", Lat: 3, Lon: 4}}
	require.NoError(t, WriteRSUs(path, rsus))

	got, err := LoadRSUs(path)
	require.NoError(t, err)
	require.Equal(t, rsus, got)

	require.NoError(t, os.WriteFile(path, []byte(`{"rsus":[]}`), 0o644))
	_, err = LoadRSUs(path)
	require.ErrorIs(t, err, ErrNoRSUs)
}
