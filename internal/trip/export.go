package trip

import (
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"backend-navi/internal/shared/geo"
)

type gpxDoc struct {
	XMLName  xml.Name    `xml:"gpx"`
	Version  string      `xml:"version,attr"`
	Creator  string      `xml:"creator,attr"`
	Xmlns    string      `xml:"xmlns,attr"`
	Metadata gpxMetadata `xml:"metadata"`
	Track    gpxTrack    `xml:"trk"`
}

type gpxMetadata struct {
	Name string `xml:"name,omitempty"`
	Time string `xml:"time"`
}

type gpxTrack struct {
	Name    string     `xml:"name,omitempty"`
	Segment gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat float64 `xml:"lat,attr"`
	Lon float64 `xml:"lon,attr"`
}

func renderGPX(t Trip) ([]byte, error) {
	doc := gpxDoc{
		Version:  "1.1",
		Creator:  "navi",
		Xmlns:    "http://www.topografix.com/GPX/1/1",
		Metadata: gpxMetadata{Name: t.Name, Time: t.StartTime.UTC().Format(time.RFC3339)},
		Track:    gpxTrack{Name: t.Name},
	}
	for _, c := range t.Path {
		if len(c) < 2 {
			continue
		}
		doc.Track.Segment.Points = append(doc.Track.Segment.Points, gpxPoint{Lat: c[1], Lon: c[0]})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode gpx: %w", err)
	}
	return buf.Bytes(), nil
}

// renderCSV writes one row per path position with the running distance.
func renderCSV(t Trip) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"index", "lng", "lat", "distance_m"})

	var total float64
	var prev *geo.Point
	for i, c := range t.Path {
		if len(c) < 2 {
			continue
		}
		p := geo.Point{Lng: c[0], Lat: c[1]}
		if prev != nil {
			total += geo.DistanceM(*prev, p)
		}
		prev = &p
		_ = w.Write([]string{
			strconv.Itoa(i),
			strconv.FormatFloat(p.Lng, 'f', -1, 64),
			strconv.FormatFloat(p.Lat, 'f', -1, 64),
			strconv.FormatFloat(total, 'f', 1, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}
