// README: Leaflet HTML map of boundary events, rewritten atomically on each render.
package sink

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"rsumon/internal/modules/coverage"
)

const (
	entryColor = "green"
	exitColor  = "red"
)

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map("map").setView([{{.CenterLat}}, {{.CenterLng}}], {{.Zoom}});
L.tileLayer("https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png", {
  maxZoom: 19,
  attribution: "&copy; OpenStreetMap contributors"
}).addTo(map);
function popup(m) {
  var el = document.createElement("div");
  var title = document.createElement("b");
  title.textContent = m.type;
  el.appendChild(title);
  [m.time, m.reason, m.lat.toFixed(6) + ", " + m.lng.toFixed(6)].forEach(function (line) {
    el.appendChild(document.createElement("br"));
    el.appendChild(document.createTextNode(line));
  });
  return el;
}
var markers = {{.Markers}};
markers.forEach(function (m) {
  L.circleMarker([m.lat, m.lng], {radius: 8, color: m.color, fillColor: m.color, fillOpacity: 0.8})
    .bindPopup(popup(m))
    .addTo(map);
});
</script>
</body>
</html>
`))

type mapMarker struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Type   string  `json:"type"`
	Time   string  `json:"time"`
	Reason string  `json:"reason"`
	Color  string  `json:"color"`
}

type mapPage struct {
	Title     string
	CenterLat float64
	CenterLng float64
	Zoom      int
	Markers   []mapMarker
}

// HTMLMap renders rsu_map_<stamp>.html.
type HTMLMap struct {
	Path string
}

func NewHTMLMap(dir string, runStart time.Time) (*HTMLMap, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &HTMLMap{Path: filepath.Join(dir, "rsu_map_"+runStart.Format(FileStamp)+".html")}, nil
}

// Render rewrites the map with one marker per located event, centred on
// their mean position. Events without a position are skipped; with none
// left the file is not touched.
func (m *HTMLMap) Render(events []coverage.CoverageEvent) error {
	page := mapPage{Title: "RSU coverage events", Zoom: 16}
	for _, e := range events {
		p, ok := e.Position()
		if !ok {
			continue
		}
		color := exitColor
		if e.Type == coverage.EventEntry {
			color = entryColor
		}
		page.Markers = append(page.Markers, mapMarker{
			Lat:    p.Lat,
			Lng:    p.Lng,
			Type:   string(e.Type),
			Time:   formatTime(e.Timestamp),
			Reason: e.Reason,
			Color:  color,
		})
		page.CenterLat += p.Lat
		page.CenterLng += p.Lng
	}
	if len(page.Markers) == 0 {
		return nil
	}
	page.CenterLat /= float64(len(page.Markers))
	page.CenterLng /= float64(len(page.Markers))

	var buf bytes.Buffer
	if err := mapTemplate.Execute(&buf, page); err != nil {
		return fmt.Errorf("render map: %w", err)
	}
	if err := atomic.WriteFile(m.Path, &buf); err != nil {
		return fmt.Errorf("write map: %w", err)
	}
	return nil
}
