package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"wikimetron/internal/domain"
	"wikimetron/internal/resolve"
	"wikimetron/internal/telemetry"
)

// MaxPagesPerTask bounds a single submission.
const MaxPagesPerTask = 50

// EstimatedSecondsPerPage feeds the submission-time completion estimate.
const EstimatedSecondsPerPage = 10

// Submission is one batch analysis request.
type Submission struct {
	Pages           []resolve.Input
	Range           domain.DateRange
	DefaultLanguage string
}

// protectionWarmer is implemented by the caching source decorator; warming
// lets the per-page protection lookups hit the cache instead of issuing one
// API call per page.
type protectionWarmer interface {
	WarmProtection(ctx context.Context, lang string, titles []string) error
}

// Manager owns the asynchronous analysis tasks: submission, the bounded
// worker pool and the pollable in-memory task store.
type Manager struct {
	pipeline *Pipeline
	warmer   protectionWarmer
	workers  int
	logger   *slog.Logger

	mu    sync.RWMutex
	tasks map[string]*domain.Task
}

func NewManager(pipeline *Pipeline, warmer protectionWarmer, workers int, logger *slog.Logger) *Manager {
	if workers < 1 {
		workers = 1
	}
	return &Manager{
		pipeline: pipeline,
		warmer:   warmer,
		workers:  workers,
		logger:   logger,
		tasks:    make(map[string]*domain.Task),
	}
}

// Submit validates the request, registers a pending task and starts the run
// in the background. The returned snapshot carries the task ID to poll.
func (m *Manager) Submit(ctx context.Context, sub Submission) (*domain.Task, error) {
	if len(sub.Pages) == 0 {
		return nil, fmt.Errorf("no pages submitted: %w", domain.ErrSubmissionInvalid)
	}
	if len(sub.Pages) > MaxPagesPerTask {
		return nil, fmt.Errorf("%d pages exceeds the limit of %d: %w",
			len(sub.Pages), MaxPagesPerTask, domain.ErrSubmissionInvalid)
	}
	if !sub.Range.End.After(sub.Range.Start) {
		return nil, fmt.Errorf("analysis window end must follow start: %w", domain.ErrSubmissionInvalid)
	}

	resolved, errs := resolve.Batch(sub.Pages, sub.DefaultLanguage)

	task := &domain.Task{
		ID:              uuid.NewString(),
		Status:          domain.TaskPending,
		Range:           sub.Range,
		DefaultLanguage: sub.DefaultLanguage,
		CreatedAt:       time.Now().UTC(),
	}
	for i, r := range resolved {
		unit := &domain.PageUnit{
			OriginalInput: r.OriginalInput,
			Title:         r.Title,
			Language:      r.Language,
			Status:        domain.UnitPending,
		}
		if errs[i] != nil {
			unit.Status = domain.UnitError
			unit.Err = errs[i].Error()
		}
		task.Units = append(task.Units, unit)
	}

	m.mu.Lock()
	m.tasks[task.ID] = task
	snap := m.snapshot(task)
	m.mu.Unlock()

	go m.run(context.WithoutCancel(ctx), task.ID)

	return snap, nil
}

// EstimatedSeconds is the advertised completion estimate for a submission.
func EstimatedSeconds(pages int) int {
	return pages * EstimatedSecondsPerPage
}

// Get returns a snapshot of the task. Snapshots are safe to read while the
// task is still running.
func (m *Manager) Get(id string) (*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", id, domain.ErrTaskNotFound)
	}
	return m.snapshot(task), nil
}

// List returns snapshots of every known task, newest first.
func (m *Manager) List() []*domain.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		out = append(out, m.snapshot(task))
	}
	sortTasksNewestFirst(out)
	return out
}

// Wait polls the task until it reaches a terminal state or the context ends.
func (m *Manager) Wait(ctx context.Context, id string, interval time.Duration) (*domain.Task, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		task, err := m.Get(id)
		if err != nil {
			return nil, err
		}
		if task.Status == domain.TaskCompleted || task.Status == domain.TaskError {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Prune drops terminal tasks that finished before the retention cutoff and
// returns how many were removed.
func (m *Manager) Prune(olderThan time.Duration) int {
	cutoff := time.Now().UTC().Add(-olderThan)

	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int
	for id, task := range m.tasks {
		terminal := task.Status == domain.TaskCompleted || task.Status == domain.TaskError
		if terminal && !task.CompletedAt.IsZero() && task.CompletedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) run(ctx context.Context, id string) {
	m.mu.Lock()
	task, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	task.Status = domain.TaskRunning
	m.mu.Unlock()

	m.warmProtection(ctx, task)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	// Duplicates wait for the first unit with the same key; firstByKey is
	// filled before any worker starts, so the later lookup is race-free.
	firstByKey := make(map[string]*domain.PageUnit)
	var duplicates []*domain.PageUnit

	for _, unit := range task.Units {
		if unit.Status == domain.UnitError {
			continue
		}
		key := unit.Title + "|" + unit.Language
		if _, ok := firstByKey[key]; ok {
			duplicates = append(duplicates, unit)
			continue
		}
		firstByKey[key] = unit

		unit := unit
		g.Go(func() error {
			m.runUnit(gctx, task, unit)
			return nil
		})
	}
	_ = g.Wait()

	m.mu.Lock()
	for _, dup := range duplicates {
		source := firstByKey[dup.Title+"|"+dup.Language]
		dup.Status = source.Status
		dup.Bundle = source.Bundle
		dup.Results = source.Results
		dup.Scores = source.Scores
		dup.Err = source.Err
	}

	var succeeded int
	for _, unit := range task.Units {
		if unit.Status == domain.UnitCompleted {
			succeeded++
		}
	}
	if succeeded > 0 {
		task.Status = domain.TaskCompleted
	} else {
		task.Status = domain.TaskError
		task.Err = "no page could be analyzed"
	}
	task.CompletedAt = time.Now().UTC()
	status := string(task.Status)
	m.mu.Unlock()

	telemetry.TasksFinished.WithLabelValues(status).Inc()
	m.info("task finished", "task", id, "status", status, "pages", len(task.Units))
}

func (m *Manager) runUnit(ctx context.Context, task *domain.Task, unit *domain.PageUnit) {
	m.mu.Lock()
	unit.Status = domain.UnitRunning
	m.mu.Unlock()

	bundle, results, scores, err := m.pipeline.Analyze(ctx, unit.Title, unit.Language, task.Range)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		unit.Status = domain.UnitError
		unit.Err = err.Error()
		return
	}
	unit.Status = domain.UnitCompleted
	unit.Bundle = bundle
	unit.Results = results
	unit.Scores = &scores
}

// warmProtection issues one batched protection lookup per language so the
// workers' individual lookups are cache hits.
func (m *Manager) warmProtection(ctx context.Context, task *domain.Task) {
	if m.warmer == nil {
		return
	}

	m.mu.RLock()
	byLang := make(map[string][]string)
	for _, unit := range task.Units {
		if unit.Status == domain.UnitError || unit.Title == "" {
			continue
		}
		byLang[unit.Language] = append(byLang[unit.Language], unit.Title)
	}
	m.mu.RUnlock()

	for lang, titles := range byLang {
		if err := m.warmer.WarmProtection(ctx, lang, titles); err != nil {
			m.info("protection warmup failed", "lang", lang, "error", err)
		}
	}
}

func (m *Manager) snapshot(task *domain.Task) *domain.Task {
	copied := *task
	copied.Units = make([]*domain.PageUnit, len(task.Units))
	for i, unit := range task.Units {
		u := *unit
		copied.Units[i] = &u
	}
	return &copied
}

func (m *Manager) info(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Info(msg, args...)
	}
}

func sortTasksNewestFirst(tasks []*domain.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}
