package producer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// SimulatorUserID attributes synthetic events.
const SimulatorUserID = "simulator"

const maxSimulatedTasks = 50

type updateKind int

const (
	kindUpdated updateKind = iota
	kindStatusChanged
	kindCreated
	kindCount
)

var statusCycle = []string{"todo", "in_progress", "review", "done"}

// Simulator emits synthetic task events at a fixed interval so the pipeline
// can be exercised without a real mutation source.
type Simulator struct {
	pub      Publisher
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	tasks   []types.Task
	step    int
	created int
}

// NewSimulator creates a simulator cycling over tasks. At least one task is required.
func NewSimulator(pub Publisher, tasks []types.Task, interval time.Duration, logger zerolog.Logger) (*Simulator, error) {
	if len(tasks) == 0 {
		return nil, oops.In("simulator").Errorf("at least one sample task is required")
	}
	if interval <= 0 {
		return nil, oops.In("simulator").With("interval", interval).Errorf("interval must be positive")
	}
	return &Simulator{
		pub:      pub,
		interval: interval,
		logger:   logger.With().Str("component", "simulator").Logger(),
		now:      time.Now,
		tasks:    append([]types.Task(nil), tasks...),
	}, nil
}

// SampleTasks returns two starter tasks per organization. With no
// organizations the tasks are unscoped and reach every connection.
func SampleTasks(organizationIDs ...string) []types.Task {
	if len(organizationIDs) == 0 {
		organizationIDs = []string{""}
	}
	titles := []string{"Design review", "Fix login redirect"}
	var tasks []types.Task
	for _, org := range organizationIDs {
		for i, title := range titles {
			tasks = append(tasks, types.Task{
				ID:             fmt.Sprintf("sample-%s-%d", org, i+1),
				OrganizationID: org,
				Title:          title,
				Status:         statusCycle[0],
				Priority:       "medium",
			})
		}
	}
	return tasks
}

// Run emits one event per interval until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Int("tasks", len(s.tasks)).Msg("simulator started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("simulator stopped")
			return
		case <-ticker.C:
			if err := s.Step(); err != nil {
				s.logger.Warn().Err(err).Msg("simulated publish failed")
			}
		}
	}
}

// Step emits the next event in the updated, status_changed, created cycle.
func (s *Simulator) Step() error {
	p, task := s.next()
	return s.pub.Publish(p, types.Scope{
		UserID:         SimulatorUserID,
		OrganizationID: task.OrganizationID,
		TeamID:         task.TeamID,
	})
}

func (s *Simulator) next() (types.Payload, types.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := updateKind(s.step % int(kindCount))
	idx := (s.step / int(kindCount)) % len(s.tasks)
	s.step++
	now := s.now().UTC()

	switch kind {
	case kindStatusChanged:
		task := &s.tasks[idx]
		task.Status = nextStatus(task.Status)
		task.UpdatedAt = now
		return types.TaskUpdatedPayload{Task: *task, Change: types.ChangeStatusChanged}, *task
	case kindCreated:
		s.created++
		template := s.tasks[idx]
		task := types.Task{
			ID:             fmt.Sprintf("sim-%d", s.created),
			OrganizationID: template.OrganizationID,
			TeamID:         template.TeamID,
			Title:          fmt.Sprintf("Simulated task %d", s.created),
			Status:         statusCycle[0],
			Priority:       "low",
			UpdatedAt:      now,
		}
		s.tasks = append(s.tasks, task)
		if len(s.tasks) > maxSimulatedTasks {
			s.tasks = s.tasks[1:]
		}
		return types.TaskCreatedPayload{Task: task}, task
	default:
		task := &s.tasks[idx]
		task.UpdatedAt = now
		return types.TaskUpdatedPayload{Task: *task, Change: types.ChangeUpdated}, *task
	}
}

func nextStatus(current string) string {
	for i, st := range statusCycle {
		if st == current {
			return statusCycle[(i+1)%len(statusCycle)]
		}
	}
	return statusCycle[0]
}
