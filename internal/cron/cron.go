package cron

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/mailsorter/interfaces"
	cron_config "github.com/customeros/mailsorter/internal/cron/config"
	mserrors "github.com/customeros/mailsorter/internal/errors"
	"github.com/customeros/mailsorter/internal/logger"
	"github.com/customeros/mailsorter/internal/tracing"
	"github.com/customeros/mailsorter/internal/utils"
)

const (
	AppSource = "cron"

	// GroupPipeline is the group for pipeline related jobs
	GroupPipeline = "pipeline"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second

	jobHeartbeat   = "heartbeat"
	jobLabelEmails = "label_emails"
)

var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupPipeline: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg      *cron_config.Config
	log      logger.Logger
	cron     *cronv3.Cron
	k8s      kubernetes.Interface
	stopCh   chan struct{}
	stopOnce sync.Once
	jobIDs   map[string]cronv3.EntryID
	users    interfaces.UserRepository
	pipeline interfaces.PipelineService
}

func NewCronManager(cfg *cron_config.Config, log logger.Logger, k8s kubernetes.Interface, users interfaces.UserRepository, pipeline interfaces.PipelineService) *CronManager {
	if cfg == nil {
		cfg = &cron_config.Config{}
	}
	return &CronManager{
		cfg:      cfg,
		log:      log,
		k8s:      k8s,
		stopCh:   make(chan struct{}),
		jobIDs:   make(map[string]cronv3.EntryID),
		users:    users,
		pipeline: pipeline,
	}
}

// Start initializes and starts the cron manager with leader election.
// Without a k8s client, a namespace, or in local development it starts in
// local mode.
func (cm *CronManager) Start() error {
	if cm.k8s == nil || cm.cfg.LocalDev || cm.cfg.Namespace == "" {
		cm.log.Info("Starting cron manager in local mode")
		return cm.StartCron()
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      "mailsorter-cron-leader",
			Namespace: cm.cfg.Namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: cm.cfg.PodName,
		},
	}

	errCh := make(chan error, 1)

	go func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)

		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					if err := cm.StartCron(); err != nil {
						cm.log.Errorf("Could not start crons as leader: %v", err)
					}
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-cm.stopCh
			cancel()
		}()
		le.Run(ctx)
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		return cm.StartCron()
	case <-time.After(5 * time.Second):
	}

	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) error {
	if cm.cfg.CronScheduleHeartbeat != "" {
		podName := cm.cfg.PodName
		id, err := c.AddFunc(cm.cfg.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			return errors.Wrap(err, "could not add heartbeat cron job")
		}
		cm.jobIDs[jobHeartbeat] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cm.cfg.CronScheduleHeartbeat)
	}

	if cm.cfg.CronScheduleLabelEmails != "" {
		id, err := c.AddFunc(cm.cfg.CronScheduleLabelEmails, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupPipeline].Lock()
			defer jobLocks.locks[GroupPipeline].Unlock()
			cm.labelEmails(context.Background())
		})
		if err != nil {
			return errors.Wrap(err, "could not add label emails cron job")
		}
		cm.jobIDs[jobLabelEmails] = id
		cm.log.Infof("Registered label emails job with schedule: %s", cm.cfg.CronScheduleLabelEmails)
	}
	return nil
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() error {
	cm.log.Info("Starting cron manager")
	// seconds field enabled, overlapping runs of one entry are skipped
	c := cronv3.New(
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	)
	if err := cm.registerJobs(c); err != nil {
		return err
	}
	c.Start()
	cm.cron = c
	return nil
}

// labelEmails runs the pipeline for every linked user in turn. A failing user
// is logged and the next one still runs.
func (cm *CronManager) labelEmails(ctx context.Context) {
	ctx = utils.SetAppSourceInContext(ctx, AppSource)
	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.labelEmails")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	users, err := cm.users.ListLinked(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to list users: %v", err)
		return
	}
	span.LogKV("users", len(users))

	failedUsers := 0
	for _, user := range users {
		summary, err := cm.pipeline.Run(ctx, user.ID)
		switch {
		case errors.Is(err, mserrors.ErrRunInProgress):
			cm.log.Infof("Pipeline for %s still running elsewhere, skipping", user.ID)
		case err != nil:
			failedUsers++
			cm.log.Errorf("Pipeline failed for %s: %v", user.ID, err)
		default:
			cm.log.Infof("Pipeline for %s: %s", user.ID, summary.Message)
		}
	}
	span.LogKV("failedUsers", failedUsers)
}
