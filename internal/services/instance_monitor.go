package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/woozar/paperless-ai-ngx/internal/models"
	"github.com/woozar/paperless-ai-ngx/pkg/logger"
	"github.com/woozar/paperless-ai-ngx/pkg/metrics"
)

const (
	defaultProbeSchedule = "@every 5m"
	defaultProbeTimeout  = 10 * time.Second
)

// InstanceMonitor periodically probes every registered Paperless instance and
// records its reachability. A probe only checks that the base URL answers
// HTTP at all; it never sends the stored API token.
type InstanceMonitor struct {
	db       *gorm.DB
	client   *http.Client
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	schedule string
}

// MonitorOption customises the InstanceMonitor.
type MonitorOption func(*InstanceMonitor)

// WithMonitorCron injects a preconfigured cron instance, primarily for testing.
func WithMonitorCron(c *cron.Cron) MonitorOption {
	return func(m *InstanceMonitor) {
		if c != nil {
			m.cron = c
		}
	}
}

// WithMonitorClient overrides the HTTP client used for probes.
func WithMonitorClient(client *http.Client) MonitorOption {
	return func(m *InstanceMonitor) {
		if client != nil {
			m.client = client
		}
	}
}

// WithMonitorNow overrides the clock used for probe timestamps.
func WithMonitorNow(now func() time.Time) MonitorOption {
	return func(m *InstanceMonitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMonitorSchedule overrides the cron specification for probe runs.
func WithMonitorSchedule(spec string) MonitorOption {
	return func(m *InstanceMonitor) {
		if spec != "" {
			m.schedule = spec
		}
	}
}

// NewInstanceMonitor constructs a monitor with sensible defaults.
func NewInstanceMonitor(db *gorm.DB, opts ...MonitorOption) (*InstanceMonitor, error) {
	if db == nil {
		return nil, errors.New("instance monitor: db is required")
	}

	monitor := &InstanceMonitor{
		db:       db,
		client:   &http.Client{Timeout: defaultProbeTimeout},
		now:      time.Now,
		schedule: defaultProbeSchedule,
		log:      logger.WithModule("monitor"),
	}

	for _, opt := range opts {
		opt(monitor)
	}

	if monitor.cron == nil {
		monitor.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return monitor, nil
}

// Start registers the probe job with the scheduler and launches it.
func (m *InstanceMonitor) Start() error {
	if _, err := m.cron.AddFunc(m.schedule, func() {
		if err := m.RunOnce(context.Background()); err != nil {
			m.log.Warn("instance probe run failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	m.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any running probe to complete.
func (m *InstanceMonitor) Stop() context.Context {
	if m.cron == nil {
		return context.Background()
	}
	return m.cron.Stop()
}

// RunOnce probes every registered instance sequentially and persists the
// resulting statuses. Probe failures are collected rather than aborting the
// sweep.
func (m *InstanceMonitor) RunOnce(ctx context.Context) error {
	ctx = ensureContext(ctx)

	var instances []models.PaperlessInstance
	if err := m.db.WithContext(ctx).Find(&instances).Error; err != nil {
		return fmt.Errorf("instance monitor: list instances: %w", err)
	}

	var errs error
	for i := range instances {
		if err := m.probe(ctx, &instances[i]); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (m *InstanceMonitor) probe(ctx context.Context, instance *models.PaperlessInstance) error {
	status := models.InstanceStatusReachable

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instance.BaseURL+"/", nil)
	if err != nil {
		status = models.InstanceStatusUnreachable
	} else {
		resp, probeErr := m.client.Do(req)
		if probeErr != nil {
			status = models.InstanceStatusUnreachable
		} else {
			// Any HTTP answer counts as reachable, including 401/403 from
			// deployments that require authentication for every route.
			resp.Body.Close()
		}
	}

	if status == models.InstanceStatusReachable {
		metrics.InstanceProbes.WithLabelValues("reachable").Inc()
	} else {
		metrics.InstanceProbes.WithLabelValues("unreachable").Inc()
		m.log.Debug("instance unreachable",
			zap.String("instance_id", instance.ID),
			zap.String("base_url", instance.BaseURL))
	}

	checkedAt := m.now().UTC()
	if err := m.db.WithContext(ctx).Model(&models.PaperlessInstance{}).
		Where("id = ?", instance.ID).
		Updates(map[string]any{
			"status":          status,
			"last_checked_at": &checkedAt,
		}).Error; err != nil {
		return fmt.Errorf("instance monitor: update %s: %w", instance.ID, err)
	}
	return nil
}
