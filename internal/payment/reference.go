package payment

import (
	"fmt"
	"sync/atomic"
	"time"
)

// referenceGenerator builds <prefix>_<entityId>_<unixMillis> references.
// The millisecond component is forced to increase strictly within the
// process so two sessions for the same entity never share a reference.
type referenceGenerator struct {
	now  func() time.Time
	last atomic.Int64
}

func newReferenceGenerator(now func() time.Time) *referenceGenerator {
	if now == nil {
		now = time.Now
	}
	return &referenceGenerator{now: now}
}

func (g *referenceGenerator) next(t PaymentType, entityID uint) string {
	return fmt.Sprintf("%s_%d_%d", t.Prefix(), entityID, g.tick())
}

func (g *referenceGenerator) tick() int64 {
	for {
		ms := g.now().UnixMilli()
		prev := g.last.Load()
		if ms <= prev {
			ms = prev + 1
		}
		if g.last.CompareAndSwap(prev, ms) {
			return ms
		}
	}
}
