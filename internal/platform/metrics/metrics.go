package metrics

import (
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64
	lettersCreated  uint64
	lettersFilled   uint64
	envelopesSent   uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) LetterCreated() { atomic.AddUint64(&c.lettersCreated, 1) }

func (c *Collector) LetterFilled() { atomic.AddUint64(&c.lettersFilled, 1) }

func (c *Collector) EnvelopeSent() { atomic.AddUint64(&c.envelopesSent, 1) }

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":       total,
		"errorsTotal":         errs,
		"rateLimitedTotal":    limited,
		"avgDurationMs":       avg,
		"totalDurationMs":     totalMs,
		"lettersCreatedTotal": atomic.LoadUint64(&c.lettersCreated),
		"lettersFilledTotal":  atomic.LoadUint64(&c.lettersFilled),
		"envelopesSentTotal":  atomic.LoadUint64(&c.envelopesSent),
	}
}
