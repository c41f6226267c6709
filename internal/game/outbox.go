package game

import (
	"context"

	"go.uber.org/zap"
)

const outboxSize = 64

// outbox runs a session's storage and telemetry calls on their own goroutine
// so a slow Recorder or Publisher never holds up the table.
type outbox struct {
	jobs chan func(context.Context)
	done chan struct{}
	log  *zap.SugaredLogger
}

func newOutbox(log *zap.SugaredLogger) *outbox {
	return &outbox{
		jobs: make(chan func(context.Context), outboxSize),
		done: make(chan struct{}),
		log:  log,
	}
}

func (o *outbox) run() {
	defer close(o.done)
	for job := range o.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorWait)
		job(ctx)
		cancel()
	}
}

// offer queues a job unless the outbox is full, in which case the job is
// dropped. Live telemetry is superseded by the next shot anyway.
func (o *outbox) offer(what string, job func(context.Context)) {
	select {
	case o.jobs <- job:
	default:
		o.log.Warnw("[SESSION] outbox full, dropping", "job", what)
	}
}

// push queues a job that must not be lost, waiting for room if needed.
func (o *outbox) push(job func(context.Context)) {
	o.jobs <- job
}

// drain stops accepting jobs and waits for the queued ones to finish.
func (o *outbox) drain() {
	close(o.jobs)
	<-o.done
}
