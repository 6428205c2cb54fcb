package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// OrphanSweeperConfig holds configuration for the orphan sweeper
type OrphanSweeperConfig struct {
	// Interval is how often to sweep
	Interval time.Duration
	// Timeout bounds a single sweep
	Timeout time.Duration
}

// OrphanSweeper periodically reclaims unreferenced attachments
type OrphanSweeper struct {
	attachments AttachmentService
	config      OrphanSweeperConfig
	logger      *slog.Logger
	stopCh      chan struct{}
	wg          sync.WaitGroup
	running     bool
	mu          sync.Mutex
	// sweepMu keeps scheduled and on-demand sweeps from overlapping.
	sweepMu sync.Mutex
}

// NewOrphanSweeper creates a new orphan sweeper
func NewOrphanSweeper(attachments AttachmentService, config OrphanSweeperConfig, logger *slog.Logger) *OrphanSweeper {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}

	return &OrphanSweeper{
		attachments: attachments,
		config:      config,
		logger:      logger.With(slog.String("component", "orphan_sweeper")),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the background sweep loop. The first sweep runs immediately.
func (s *OrphanSweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.sweepLoop()

	s.logger.Info("orphan sweeper started", slog.Duration("interval", s.config.Interval))
}

// Stop stops the sweep loop and waits for an in-flight sweep to finish
func (s *OrphanSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("orphan sweeper stopped")
}

// IsRunning returns whether the sweep loop is active
func (s *OrphanSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *OrphanSweeper) sweepLoop() {
	defer s.wg.Done()

	s.scheduledSweep()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.scheduledSweep()
		}
	}
}

func (s *OrphanSweeper) scheduledSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("orphan sweep failed", slog.Any("error", err))
	}
}

// Sweep runs one sweep now and returns the number of reclaimed attachments.
func (s *OrphanSweeper) Sweep(ctx context.Context) (int, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	start := time.Now()
	reclaimed, err := s.attachments.RemoveOrphans(ctx)
	if err != nil {
		return reclaimed, err
	}

	s.logger.Debug("orphan sweep completed",
		slog.Int("reclaimed", reclaimed),
		slog.Duration("took", time.Since(start)))
	return reclaimed, nil
}
