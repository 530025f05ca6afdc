package sessions

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// finalizerBatchSize bounds one sweep so a backlog of stale sessions cannot
// starve the writer.
const finalizerBatchSize = 500

// Finalizer periodically ends sessions whose activity window lapsed without
// an explicit end signal from the client.
type Finalizer struct {
	manager     *Manager
	cron        *cron.Cron
	logger      *logrus.Logger
	onFinalized func(count int)
}

// NewFinalizer creates a finalizer sweeping once per minute.
func NewFinalizer(manager *Manager, logger *logrus.Logger) *Finalizer {
	return &Finalizer{
		manager: manager,
		cron:    cron.New(),
		logger:  logger,
	}
}

// OnFinalized registers a callback invoked with the count of each
// non-empty sweep. Set before Start.
func (f *Finalizer) OnFinalized(fn func(count int)) {
	f.onFinalized = fn
}

// Start schedules the sweep. The returned error only reflects an invalid
// schedule expression.
func (f *Finalizer) Start() error {
	_, err := f.cron.AddFunc("@every 1m", f.sweep)
	if err != nil {
		return err
	}
	f.cron.Start()
	f.logger.Info("Session finalizer started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (f *Finalizer) Stop() {
	ctx := f.cron.Stop()
	<-ctx.Done()
	f.logger.Info("Session finalizer stopped")
}

func (f *Finalizer) sweep() {
	finalized, err := f.manager.FinalizeExpired(context.Background(), finalizerBatchSize)
	if err != nil {
		f.logger.WithError(err).Error("Session finalizer sweep failed")
		return
	}
	if finalized > 0 {
		f.logger.WithField("count", finalized).Debug("Finalized expired sessions")
		if f.onFinalized != nil {
			f.onFinalized(finalized)
		}
	}
}
