package zones

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dj-oyu/zone-traffic-monitor/internal/logger"
)

var (
	// ErrNotFound is returned when no zone document exists for a source.
	ErrNotFound = errors.New("zone definition not found")
	// ErrInvalidFormat is returned for malformed documents or polygons.
	ErrInvalidFormat = errors.New("invalid zone definition")
)

// MinVertices is the smallest polygon the registry accepts.
const MinVertices = 3

// Labels that collide with the fixed keys of a history entry.
var reservedLabels = map[string]struct{}{"time": {}, "total": {}}

// Point is a polygon vertex in frame pixel coordinates.
type Point struct {
	X int
	Y int
}

// Zone is an immutable counting region.
type Zone struct {
	ID      int
	Label   string
	Color   []int // display only; BGR triple as written by the zone tool
	Polygon []Point
}

// Contains reports whether (x, y) lies inside the zone or on its boundary.
func (z Zone) Contains(x, y float64) bool {
	return pointInPolygon(x, y, z.Polygon)
}

// Bounds returns the polygon's bounding rectangle.
func (z Zone) Bounds() image.Rectangle {
	if len(z.Polygon) == 0 {
		return image.Rectangle{}
	}
	r := image.Rect(z.Polygon[0].X, z.Polygon[0].Y, z.Polygon[0].X+1, z.Polygon[0].Y+1)
	for _, p := range z.Polygon[1:] {
		r = r.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))
	}
	return r
}

// ZoneSet is the read-only collection of zones for one source.
type ZoneSet struct {
	zones []Zone
}

// NewZoneSet validates zones and returns an immutable set.
func NewZoneSet(source string, zones []Zone) (*ZoneSet, error) {
	ids := make(map[int]struct{}, len(zones))
	labels := make(map[string]struct{}, len(zones))
	copied := make([]Zone, 0, len(zones))

	for i, z := range zones {
		if z.Label == "" {
			return nil, fmt.Errorf("%w: %s: zone %d has an empty label", ErrInvalidFormat, source, i)
		}
		if _, reserved := reservedLabels[z.Label]; reserved {
			return nil, fmt.Errorf("%w: %s: zone label %q is reserved", ErrInvalidFormat, source, z.Label)
		}
		if len(z.Polygon) < MinVertices {
			return nil, fmt.Errorf("%w: %s: zone %q has %d vertices, need at least %d",
				ErrInvalidFormat, source, z.Label, len(z.Polygon), MinVertices)
		}
		if _, dup := ids[z.ID]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate zone id %d", ErrInvalidFormat, source, z.ID)
		}
		if _, dup := labels[z.Label]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate zone label %q", ErrInvalidFormat, source, z.Label)
		}
		ids[z.ID] = struct{}{}
		labels[z.Label] = struct{}{}

		z.Polygon = append([]Point(nil), z.Polygon...)
		z.Color = append([]int(nil), z.Color...)
		copied = append(copied, z)
	}

	return &ZoneSet{zones: copied}, nil
}

// Len returns the number of zones.
func (s *ZoneSet) Len() int { return len(s.zones) }

// Zones returns a copy of the zones in document order.
func (s *ZoneSet) Zones() []Zone {
	out := make([]Zone, len(s.zones))
	copy(out, s.zones)
	return out
}

// Labels returns zone labels in document order.
func (s *ZoneSet) Labels() []string {
	out := make([]string, len(s.zones))
	for i, z := range s.zones {
		out[i] = z.Label
	}
	return out
}

// Lookup returns the zone with the given id.
func (s *ZoneSet) Lookup(id int) (Zone, bool) {
	for _, z := range s.zones {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

// document mirrors the JSON written by the zone setup tool.
type document struct {
	Zones []zoneDoc `json:"zones"`
}

type zoneDoc struct {
	ID      *int    `json:"id"`
	Label   *string `json:"label"`
	Color   []int   `json:"color"`
	Polygon [][]int `json:"polygon"`
}

// PathFor returns the zone document path for a video file name:
// <assetsDir>/zones_<stem>.json.
func PathFor(assetsDir, filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(assetsDir, "zones_"+stem+".json")
}

// Exists reports whether a zone document is present for filename.
func Exists(assetsDir, filename string) bool {
	info, err := os.Stat(PathFor(assetsDir, filename))
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// LoadForSource loads the zone document belonging to a video file name.
func LoadForSource(assetsDir, filename string) (*ZoneSet, error) {
	return Load(PathFor(assetsDir, filename))
}

// Load reads and validates a zone document.
func Load(path string) (*ZoneSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read zones %s: %w", path, err)
	}

	set, err := Parse(path, data)
	if err != nil {
		return nil, err
	}

	logger.Info("Zones", "Loaded %d zones from %s", set.Len(), path)
	for _, z := range set.zones {
		logger.Debug("Zones", "  Zone %d: '%s' (%d vertices)", z.ID, z.Label, len(z.Polygon))
	}
	return set, nil
}

// Parse decodes a zone document already read into memory.
func Parse(source string, data []byte) (*ZoneSet, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, source, err)
	}
	if doc.Zones == nil {
		return nil, fmt.Errorf("%w: %s: missing \"zones\"", ErrInvalidFormat, source)
	}

	zones := make([]Zone, 0, len(doc.Zones))
	for i, zd := range doc.Zones {
		if zd.ID == nil {
			return nil, fmt.Errorf("%w: %s: zone %d missing \"id\"", ErrInvalidFormat, source, i)
		}
		if zd.Label == nil {
			return nil, fmt.Errorf("%w: %s: zone %d missing \"label\"", ErrInvalidFormat, source, i)
		}
		if zd.Polygon == nil {
			return nil, fmt.Errorf("%w: %s: zone %d missing \"polygon\"", ErrInvalidFormat, source, i)
		}

		poly := make([]Point, 0, len(zd.Polygon))
		for j, pt := range zd.Polygon {
			if len(pt) != 2 {
				return nil, fmt.Errorf("%w: %s: zone %q vertex %d is not an [x,y] pair",
					ErrInvalidFormat, source, *zd.Label, j)
			}
			poly = append(poly, Point{X: pt[0], Y: pt[1]})
		}

		zones = append(zones, Zone{
			ID:      *zd.ID,
			Label:   *zd.Label,
			Color:   zd.Color,
			Polygon: poly,
		})
	}

	return NewZoneSet(source, zones)
}
