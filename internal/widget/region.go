package widget

import (
	"strings"
	"time"
)

// Region is a display container: the last text written by a widget.
// Guarded by the owning Controller's mutex.
type Region struct {
	name      string
	lines     []string
	updatedAt time.Time
}

func newRegion(name string) *Region {
	return &Region{name: name}
}

func (r *Region) set(now time.Time, lines ...string) {
	r.lines = append(r.lines[:0:0], lines...)
	r.updatedAt = now
}

// RegionSnapshot is a copy of a Region safe to hand to other goroutines.
type RegionSnapshot struct {
	Lines     []string  `json:"lines"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r *Region) snapshot() RegionSnapshot {
	if r == nil {
		return RegionSnapshot{Lines: []string{}}
	}
	lines := make([]string, len(r.lines))
	copy(lines, r.lines)
	return RegionSnapshot{Lines: lines, UpdatedAt: r.updatedAt}
}

// Text joins the region lines with a newline.
func (s RegionSnapshot) Text() string {
	return strings.Join(s.Lines, "\n")
}
