// FILE: src/internal/stream/distributor.go
package stream

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"logrelay/src/internal/core"

	"github.com/lixenwraith/log"
)

// Distributor fans accepted records out to every matching subscription.
// Publish never blocks the ingestion path: the inbound buffer drops when
// full and slow connections shed their own queues.
type Distributor struct {
	registry *Registry
	logger   *log.Logger

	in   chan core.LogRecord
	done chan struct{}
	wg   sync.WaitGroup

	totalPublished atomic.Uint64
	totalDropped   atomic.Uint64
	startTime      time.Time
}

// NewDistributor creates a distributor over the given registry
func NewDistributor(registry *Registry, buffer int, logger *log.Logger) *Distributor {
	if buffer <= 0 {
		buffer = 10000
	}
	return &Distributor{
		registry:  registry,
		logger:    logger,
		in:        make(chan core.LogRecord, buffer),
		done:      make(chan struct{}),
		startTime: time.Now(),
	}
}

// Start launches the fan-out loop
func (d *Distributor) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run()
	}()
}

// Publish offers one accepted record to the live stream. Never blocks;
// records are dropped when the distribution buffer is saturated.
func (d *Distributor) Publish(rec core.LogRecord) {
	select {
	case d.in <- rec:
		d.totalPublished.Add(1)
	case <-d.done:
	default:
		d.totalDropped.Add(1)
	}
}

func (d *Distributor) run() {
	for {
		select {
		case rec := <-d.in:
			// Serialize once, fan out to all matching connections
			recJSON, err := json.Marshal(&rec)
			if err != nil {
				continue
			}
			d.registry.Range(func(c *Connection) {
				c.Deliver(&rec, recJSON)
			})

		case <-d.done:
			return
		}
	}
}

// Stop drains nothing further and stops the fan-out loop
func (d *Distributor) Stop() {
	close(d.done)
	d.wg.Wait()
}

// GetStats returns distributor statistics
func (d *Distributor) GetStats() map[string]any {
	return map[string]any{
		"buffered":        len(d.in),
		"total_published": d.totalPublished.Load(),
		"total_dropped":   d.totalDropped.Load(),
		"start_time":      d.startTime,
	}
}
