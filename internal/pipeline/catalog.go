package pipeline

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dj-oyu/zone-traffic-monitor/internal/zones"
)

// SourceInfo describes one catalog entry.
type SourceInfo struct {
	Label    string `json:"label"`
	Filename string `json:"filename"`
	HasZones bool   `json:"has_zones"`
}

// Catalog maps display labels to video files under the assets directory.
type Catalog struct {
	assetsDir string
	videos    map[string]string // label -> filename
}

// NewCatalog creates a catalog. The map is copied.
func NewCatalog(assetsDir string, videos map[string]string) *Catalog {
	c := &Catalog{assetsDir: assetsDir, videos: make(map[string]string, len(videos))}
	for label, filename := range videos {
		c.videos[label] = filename
	}
	return c
}

// AssetsDir returns the directory holding videos and zone documents.
func (c *Catalog) AssetsDir() string {
	return c.assetsDir
}

// List returns every source sorted by label.
func (c *Catalog) List() []SourceInfo {
	out := make([]SourceInfo, 0, len(c.videos))
	for label, filename := range c.videos {
		out = append(out, SourceInfo{
			Label:    label,
			Filename: filename,
			HasZones: zones.Exists(c.assetsDir, filename),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Resolve returns the on-disk path of a catalog filename.
func (c *Catalog) Resolve(filename string) (string, error) {
	for _, f := range c.videos {
		if f == filename {
			return filepath.Join(c.assetsDir, filename), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownSource, filename)
}
