package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pathfinder/identity-gateway/internal/core/ports"
	"github.com/pathfinder/identity-gateway/internal/pkg/metrics"
)

const (
	defaultWorkers     = 4
	channelBuffer      = 256
	defaultSendTimeout = 15 * time.Second
)

// Dispatcher delivers password reset jobs off the request path. Jobs are
// routed to a fixed set of workers by hashing the recipient email, so resets
// for one account are delivered in the order they were requested.
type Dispatcher struct {
	workers     []chan ports.PasswordReset
	sender      ports.ResetSender
	sendTimeout time.Duration
	log         zerolog.Logger
	wg          sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sender ports.ResetSender, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:     make([]chan ports.PasswordReset, numWorkers),
		sender:      sender,
		sendTimeout: defaultSendTimeout,
		log:         log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.PasswordReset, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled;
// Wait blocks until they have.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands job to the worker responsible for its email. It never
// blocks: when that worker's buffer is full the job is dropped and logged.
func (d *Dispatcher) Enqueue(job ports.PasswordReset) {
	idx := d.shardIndex(job.Email)
	select {
	case d.workers[idx] <- job:
		metrics.ResetQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.ResetDeliveriesTotal.WithLabelValues("queue", "dropped").Inc()
		d.log.Error().
			Str("user_id", job.UserID).
			Int("worker_id", idx).
			Msg("reset queue full, job dropped")
	}
}

// shardIndex maps an email deterministically to a worker index.
func (d *Dispatcher) shardIndex(email string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.PasswordReset) {
	defer d.wg.Done()
	gauge := metrics.ResetQueueDepth.WithLabelValues(strconv.Itoa(id))

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-ch:
			if !ok {
				return
			}
			gauge.Set(float64(len(ch)))
			d.deliver(ctx, id, job)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, id int, job ports.PasswordReset) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	if err := d.sender.Send(sendCtx, job); err != nil {
		metrics.ResetDeliveriesTotal.WithLabelValues("queue", "failed").Inc()
		d.log.Error().Err(err).
			Str("user_id", job.UserID).
			Int("worker_id", id).
			Msg("password reset delivery failed")
		return
	}
	metrics.ResetDeliveriesTotal.WithLabelValues("queue", "delivered").Inc()
}
