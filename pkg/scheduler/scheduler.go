// Package scheduler 提供缓存维护任务的调度：按 cron 表达式周期性地
// 执行过期清扫、快照重载等后台工作。
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"tiercache/pkg/logger"
)

// JobFunc 维护任务的执行体。
type JobFunc func(ctx context.Context) error

// Job 表示一个已注册的维护任务
type Job struct {
	ID         string
	Name       string
	Schedule   string
	EntryID    cron.EntryID
	RunCount   int64
	ErrorCount int64
	LastRun    *time.Time
	LastError  error
}

// JobSnapshot 任务状态的只读副本，供外部观测。
type JobSnapshot struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	RunCount   int64      `json:"run_count"`
	ErrorCount int64      `json:"error_count"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	NextRun    *time.Time `json:"next_run,omitempty"`
}

// MaintenanceScheduler 缓存维护任务调度器
type MaintenanceScheduler struct {
	cron   *cron.Cron
	jobs   map[string]*Job
	mu     sync.RWMutex
	log    *logrus.Entry
	ctx    context.Context
	cancel context.CancelFunc
}

// NewMaintenanceScheduler 创建新的维护任务调度器
func NewMaintenanceScheduler() *MaintenanceScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &MaintenanceScheduler{
		cron:   cron.New(cron.WithSeconds()),
		jobs:   make(map[string]*Job),
		log:    logger.WithComponent("maintenance_scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob 注册一个维护任务，返回任务ID。schedule 是带秒字段的
// cron 表达式（如 "0 */5 * * * *" 表示每5分钟）。
func (s *MaintenanceScheduler) AddJob(name, schedule string, fn JobFunc) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &Job{
		ID:       uuid.New().String(),
		Name:     name,
		Schedule: schedule,
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		s.runJob(job, fn)
	})
	if err != nil {
		return "", fmt.Errorf("invalid schedule %q for job %s: %w", schedule, name, err)
	}

	job.EntryID = entryID
	s.jobs[job.ID] = job
	s.log.Infof("registered maintenance job %s (%s)", name, schedule)
	return job.ID, nil
}

// runJob 执行一个任务并记录结果。
func (s *MaintenanceScheduler) runJob(job *Job, fn JobFunc) {
	// 调度器停止后不再执行
	select {
	case <-s.ctx.Done():
		return
	default:
	}

	err := fn(s.ctx)
	now := time.Now()

	s.mu.Lock()
	job.RunCount++
	job.LastRun = &now
	job.LastError = err
	if err != nil {
		job.ErrorCount++
	}
	s.mu.Unlock()

	if err != nil {
		s.log.WithError(err).Errorf("maintenance job %s failed", job.Name)
	} else {
		s.log.Debugf("maintenance job %s completed", job.Name)
	}
}

// RemoveJob 注销一个任务。
func (s *MaintenanceScheduler) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return false
	}

	s.cron.Remove(job.EntryID)
	delete(s.jobs, id)
	return true
}

// Jobs 返回所有任务的状态快照。
func (s *MaintenanceScheduler) Jobs() []JobSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshots := make([]JobSnapshot, 0, len(s.jobs))
	for _, job := range s.jobs {
		snap := JobSnapshot{
			ID:         job.ID,
			Name:       job.Name,
			Schedule:   job.Schedule,
			RunCount:   job.RunCount,
			ErrorCount: job.ErrorCount,
			LastRun:    job.LastRun,
		}
		if job.LastError != nil {
			snap.LastError = job.LastError.Error()
		}
		if entry := s.cron.Entry(job.EntryID); entry.ID != 0 {
			next := entry.Next
			snap.NextRun = &next
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots
}

// Start 启动调度器
func (s *MaintenanceScheduler) Start() {
	s.cron.Start()
	s.log.Info("maintenance scheduler started")
}

// Stop 停止调度器并等待运行中的任务结束。
func (s *MaintenanceScheduler) Stop() error {
	s.cancel()
	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		s.log.Info("maintenance scheduler stopped")
	case <-time.After(30 * time.Second):
		s.log.Warn("maintenance scheduler stop timed out")
	}

	return nil
}
