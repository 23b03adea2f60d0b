package core

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
)

// DefaultPalette is tried in order before falling back to random colors.
var DefaultPalette = []string{
	"#7aa2f7", "#bb9af7", "#7dcfff", "#9ece6a", "#e0af68", "#f7768e",
	"#2ac3de", "#ff9e64", "#73daca", "#b4f9f8", "#c0caf5", "#db4b4b",
}

// ColorAllocator hands out project colors not used by any live project.
// The used set is a cache; Reconcile rebuilds it from the project list so
// colors of deleted projects become available again.
type ColorAllocator struct {
	mu      sync.Mutex
	palette []string
	used    map[string]struct{}
	random  func() uint32
}

// NewColorAllocator returns an allocator over palette, or DefaultPalette when
// none is given.
func NewColorAllocator(palette ...string) *ColorAllocator {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	normalized := make([]string, 0, len(palette))
	for _, c := range palette {
		normalized = append(normalized, normalizeColor(c))
	}
	return &ColorAllocator{
		palette: normalized,
		used:    make(map[string]struct{}),
		random:  rand.Uint32,
	}
}

func normalizeColor(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

// Next reserves and returns the first palette color not in use, or a random
// unused "#rrggbb" once the palette is exhausted.
func (c *ColorAllocator) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, color := range c.palette {
		if _, taken := c.used[color]; !taken {
			c.used[color] = struct{}{}
			return color
		}
	}
	for {
		color := fmt.Sprintf("#%06x", c.random()&0xffffff)
		if _, taken := c.used[color]; !taken {
			c.used[color] = struct{}{}
			return color
		}
	}
}

// Reserve marks color as used.
func (c *ColorAllocator) Reserve(color string) {
	color = normalizeColor(color)
	if color == "" {
		return
	}
	c.mu.Lock()
	c.used[color] = struct{}{}
	c.mu.Unlock()
}

// Reconcile replaces the used set with the colors of projects.
func (c *ColorAllocator) Reconcile(projects []Project) {
	used := make(map[string]struct{}, len(projects))
	for _, p := range projects {
		if color := normalizeColor(p.Color); color != "" {
			used[color] = struct{}{}
		}
	}
	c.mu.Lock()
	c.used = used
	c.mu.Unlock()
}

// Used returns the reserved colors, sorted.
func (c *ColorAllocator) Used() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.used))
	for color := range c.used {
		out = append(out, color)
	}
	sort.Strings(out)
	return out
}
