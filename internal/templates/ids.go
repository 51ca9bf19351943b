// internal/templates/ids.go
package templates

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
)

// IDGenerator hands out template ids of the form <board>_<program>_<millis>.
// The millisecond part strictly increases, so ids and creation times never
// collide even when two templates are registered in the same millisecond.
type IDGenerator struct {
	mu    sync.Mutex
	clock func() time.Time
	last  int64
}

func NewIDGenerator(clock func() time.Time) *IDGenerator {
	if clock == nil {
		clock = time.Now
	}
	return &IDGenerator{clock: clock}
}

// Next returns a fresh id and the creation time encoded in it.
func (g *IDGenerator) Next(board, program string) (string, time.Time) {
	g.mu.Lock()
	ms := g.clock().UTC().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	g.mu.Unlock()

	return fmt.Sprintf("%s_%s_%d", idPart(board), idPart(program), ms), time.UnixMilli(ms).UTC()
}

// Now returns the generator's clock reading, used for update timestamps.
func (g *IDGenerator) Now() time.Time {
	return g.clock().UTC()
}

func idPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, s)
}
