package mailbox

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// IDGenerator issues correlation ids of the form <kind>_<unix-millis>. The
// millisecond component strictly increases within one generator; a clash
// with the previous id bumps it by one.
type IDGenerator struct {
	last atomic.Int64
	now  func() time.Time
}

// NewIDGenerator returns a generator backed by the wall clock.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Next returns a fresh id tagged with kind.
func (g *IDGenerator) Next(kind string) string {
	for {
		prev := g.last.Load()
		next := g.now().UnixMilli()
		if next <= prev {
			next = prev + 1
		}
		if g.last.CompareAndSwap(prev, next) {
			return fmt.Sprintf("%s_%d", kind, next)
		}
	}
}

// ParseID splits an id produced by Next into its kind and millisecond value.
func ParseID(id string) (kind string, millis int64, ok bool) {
	idx := strings.LastIndexByte(id, '_')
	if idx <= 0 || idx == len(id)-1 {
		return "", 0, false
	}
	millis, err := strconv.ParseInt(id[idx+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return id[:idx], millis, true
}
