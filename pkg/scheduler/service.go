package scheduler

import (
	"time"

	"github.com/korjavin/mealplanner/pkg/logger"
	"github.com/korjavin/mealplanner/pkg/models"
)

// DefaultUpdateInterval is the minimum spacing between two updates
const DefaultUpdateInterval = 15 * time.Minute

// PlanStore persists plan snapshots between runs
type PlanStore interface {
	SavePlan(calendar string, plan models.Plan) error
	LoadPlan(calendar string) (models.Plan, error)
	DeletePlan(calendar string) error
}

// PlanRecorder is notified of every newly generated plan
type PlanRecorder interface {
	RecordPlan(calendar string, plan models.Plan) error
}

// Exporter publishes today's meals somewhere outside the process
type Exporter interface {
	Export(day time.Time, meals []Assignment) error
}

// Service runs the scheduler's periodic update
type Service struct {
	scheduler *Scheduler
	interval  time.Duration
	plans     PlanStore
	recorder  PlanRecorder
	exporter  Exporter
	logger    *logger.Logger
	stopChan  chan struct{}

	// generation of the last plan handed to the plan store and recorder
	published uint64
}

// NewService creates a service that updates s every interval. The plan store,
// recorder and exporter are optional.
func NewService(s *Scheduler, interval time.Duration, plans PlanStore, recorder PlanRecorder, exporter Exporter) *Service {
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	return &Service{
		scheduler: s,
		interval:  interval,
		plans:     plans,
		recorder:  recorder,
		exporter:  exporter,
		logger:    logger.New("scheduler"),
		stopChan:  make(chan struct{}),
	}
}

// Start restores the saved plan, runs a first update and starts the update loop
func (s *Service) Start() {
	s.logger.Info("Starting meal scheduler for %s", s.scheduler.Name())

	s.restore()
	if err := s.RunOnce(); err != nil {
		s.logger.Error("Initial update failed: %v", err)
	}

	go s.run()
}

// Stop stops the update loop
func (s *Service) Stop() {
	s.logger.Info("Stopping meal scheduler")
	close(s.stopChan)
}

func (s *Service) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.RunOnce(); err != nil {
				s.logger.Error("Update failed: %v", err)
			}
		case <-s.stopChan:
			return
		}
	}
}

func (s *Service) restore() {
	if s.plans == nil {
		return
	}

	plan, err := s.plans.LoadPlan(s.scheduler.Name())
	if err != nil {
		s.logger.Debug("No saved plan for %s: %v", s.scheduler.Name(), err)
		return
	}
	if err := s.scheduler.Restore(plan); err != nil {
		s.logger.Warn("Discarding saved plan for %s: %v", s.scheduler.Name(), err)
		if err := s.plans.DeletePlan(s.scheduler.Name()); err != nil {
			s.logger.Error("Failed to delete saved plan: %v", err)
		}
		return
	}
	s.logger.Info("Restored saved plan for %s with %d days", s.scheduler.Name(), len(plan))
}

// RunOnce performs a single update. Plans built since the previous run are
// saved and recorded, including those built by reads such as Events or Today.
// Snapshot, statistics and export failures are logged; only a failure to
// build the plan itself is returned.
func (s *Service) RunOnce() error {
	if _, err := s.scheduler.Update(); err != nil {
		return err
	}

	plan, generation := s.scheduler.Snapshot()
	if generation != s.published {
		s.published = generation
		if s.plans != nil {
			if err := s.plans.SavePlan(s.scheduler.Name(), plan); err != nil {
				s.logger.Error("Failed to save plan snapshot: %v", err)
			}
		}
		if s.recorder != nil {
			if err := s.recorder.RecordPlan(s.scheduler.Name(), plan); err != nil {
				s.logger.Error("Failed to record plan statistics: %v", err)
			}
		}
	}

	if s.exporter != nil {
		meals, err := s.scheduler.Today()
		if err != nil {
			return err
		}
		if err := s.exporter.Export(s.scheduler.today(), meals); err != nil {
			s.logger.Error("Failed to export today's meals: %v", err)
		}
	}

	return nil
}
