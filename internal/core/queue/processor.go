package queue

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const claimBatchSize = 50

// Processor polls for pending tasks and feeds them to a worker pool.
type Processor struct {
	service      *Service
	workers      int
	pollInterval time.Duration
	logger       *logrus.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessor creates a task processor.
func NewProcessor(service *Service, workers int, pollInterval time.Duration, logger *logrus.Logger) *Processor {
	if workers <= 0 {
		workers = 2
	}
	return &Processor{
		service:      service,
		workers:      workers,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Start launches the poll loop and worker pool. It returns immediately.
func (p *Processor) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	work := make(chan func(), claimBatchSize)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for fn := range work {
				fn()
			}
		}()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(work)
		p.poll(ctx, work)
	}()

	p.logger.WithFields(logrus.Fields{
		"workers":       p.workers,
		"poll_interval": p.pollInterval.String(),
	}).Info("Queue processor started")
}

// Stop cancels the poll loop and waits for in-flight tasks to finish.
func (p *Processor) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("Queue processor stopped")
}

func (p *Processor) poll(ctx context.Context, work chan<- func()) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tasks, err := p.service.tasks.ClaimPending(ctx, claimBatchSize, time.Now().UTC())
			if err != nil {
				p.logger.WithError(err).Error("Failed to claim pending tasks")
				continue
			}

			for _, task := range tasks {
				task := task
				select {
				case work <- func() { p.service.dispatch(ctx, task) }:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
