// Package maintenance runs the periodic housekeeping jobs of the central system.
package maintenance

import (
	"evcentral/internal"
	"evcentral/internal/config"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	cleanupSchedule = "@daily"
	expirySchedule  = "@every 1m"
)

// Expirer releases outbound calls that waited too long for their response.
type Expirer interface {
	ExpireStale(maxAge time.Duration) int
}

type Scheduler struct {
	cron     *cron.Cron
	conf     *config.Config
	database internal.Database
	expirer  Expirer
	logger   internal.LogHandler
	now      func() time.Time
	mux      sync.Mutex
	started  bool
}

func NewScheduler(conf *config.Config, database internal.Database, expirer Expirer, logger internal.LogHandler) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		conf:     conf,
		database: database,
		expirer:  expirer,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Scheduler) Start() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.started {
		return nil
	}
	jobs := map[string]func(){
		"cleanup authorizations": s.CleanupAuthorizations,
		"cleanup state changes":  s.CleanupStateChanges,
	}
	for name, job := range jobs {
		if _, err := s.cron.AddFunc(cleanupSchedule, job); err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
	}
	if s.expirer != nil && s.conf.Cleanup.OutboundTimeout > 0 {
		if _, err := s.cron.AddFunc(expirySchedule, s.ExpireOutbound); err != nil {
			return fmt.Errorf("schedule outbound expiry: %w", err)
		}
	}
	s.cron.Start()
	s.started = true
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
}

func (s *Scheduler) CleanupAuthorizations() {
	if !s.conf.Cleanup.AuthorizationEnabled {
		s.logger.Debug("authorization cleanup disabled, skipping")
		return
	}
	days := s.conf.Cleanup.AuthorizationRetentionDays
	deleted, err := s.database.DeleteAuthorizations(s.retention(days))
	if err != nil {
		s.logger.Error("authorization cleanup", err)
		return
	}
	s.logger.FeatureEvent("Maintenance", "", fmt.Sprintf("deleted %d authorizations older than %d days", deleted, days))
}

func (s *Scheduler) CleanupStateChanges() {
	if !s.conf.Cleanup.StateChangeEnabled {
		s.logger.Debug("state change cleanup disabled, skipping")
		return
	}
	days := s.conf.Cleanup.StateChangeRetentionDays
	deleted, err := s.database.DeleteStateChanges(s.retention(days))
	if err != nil {
		s.logger.Error("state change cleanup", err)
		return
	}
	s.logger.FeatureEvent("Maintenance", "", fmt.Sprintf("deleted %d state changes older than %d days", deleted, days))
}

func (s *Scheduler) ExpireOutbound() {
	if expired := s.expirer.ExpireStale(s.conf.Cleanup.OutboundTimeout); expired > 0 {
		s.logger.Warn(fmt.Sprintf("%d outbound calls expired without response", expired))
	}
}

func (s *Scheduler) retention(days int) time.Time {
	return s.now().AddDate(0, 0, -days)
}
