package cron

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes"

	"github.com/customeros/mailsorter/dto"
	cron_config "github.com/customeros/mailsorter/internal/cron/config"
	mserrors "github.com/customeros/mailsorter/internal/errors"
	"github.com/customeros/mailsorter/internal/logger"
	"github.com/customeros/mailsorter/internal/models"
	"github.com/customeros/mailsorter/internal/utils"
)

type mockKubernetesInterface struct {
	kubernetes.Interface
	mock.Mock
}

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUsers) ListLinked(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]*models.User)
	return users, args.Error(1)
}

func (m *mockUsers) AdvanceLastFetched(ctx context.Context, id string, t time.Time) error {
	return m.Called(ctx, id, t).Error(0)
}

type mockPipeline struct {
	mock.Mock
}

func (m *mockPipeline) Run(ctx context.Context, owner string) (*dto.PipelineSummary, error) {
	args := m.Called(ctx, owner)
	summary, _ := args.Get(0).(*dto.PipelineSummary)
	return summary, args.Error(1)
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func TestNewCronManager(t *testing.T) {
	cfg := &cron_config.Config{CronScheduleLabelEmails: "0 * * * * *"}
	log := getLogger()
	k8s := &mockKubernetesInterface{}

	cm := NewCronManager(cfg, log, k8s, nil, nil)

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.Equal(t, k8s, cm.k8s)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_RegisterJobs(t *testing.T) {
	cm := NewCronManager(&cron_config.Config{
		CronScheduleHeartbeat:   "0 * * * * *",
		CronScheduleLabelEmails: "*/30 * * * * *",
	}, getLogger(), nil, nil, nil)

	c := cronv3.New(cronv3.WithSeconds())
	require.NoError(t, cm.registerJobs(c))

	assert.Len(t, cm.jobIDs, 2)
	assert.Len(t, c.Entries(), 2)
}

func TestCronManager_RegisterJobsInvalidSchedule(t *testing.T) {
	cm := NewCronManager(&cron_config.Config{CronScheduleLabelEmails: "not a schedule"}, getLogger(), nil, nil, nil)

	err := cm.registerJobs(cronv3.New(cronv3.WithSeconds()))
	assert.Error(t, err)
}

func TestCronManager_StartLocalAndStop(t *testing.T) {
	cm := NewCronManager(&cron_config.Config{CronScheduleHeartbeat: "0 0 * * * *"}, getLogger(), &mockKubernetesInterface{}, nil, nil)

	// no namespace means no leader election
	require.NoError(t, cm.Start())
	assert.NotNil(t, cm.cron)
	assert.Contains(t, cm.jobIDs, jobHeartbeat)

	cm.Stop()
	select {
	case <-cm.stopCh:
	default:
		t.Error("Stop channel was not closed")
	}

	// a second stop is harmless
	assert.NotPanics(t, cm.Stop)
}

func TestCronManager_LabelEmailsContinuesAfterFailure(t *testing.T) {
	users := &mockUsers{}
	users.On("ListLinked", mock.Anything).Return([]*models.User{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}}, nil)

	pipeline := &mockPipeline{}
	pipeline.On("Run", mock.Anything, "u1").Return(nil, errors.New("gmail down"))
	pipeline.On("Run", mock.Anything, "u2").Return(nil, errors.Wrap(mserrors.ErrRunInProgress, "u2"))
	pipeline.On("Run", mock.MatchedBy(func(ctx context.Context) bool {
		return utils.GetAppSourceFromContext(ctx) == AppSource
	}), "u3").Return(&dto.PipelineSummary{Message: "2 emails labeled"}, nil)

	cm := NewCronManager(&cron_config.Config{}, getLogger(), nil, users, pipeline)
	cm.labelEmails(context.Background())

	pipeline.AssertNumberOfCalls(t, "Run", 3)
	users.AssertExpectations(t)
}

func TestCronManager_LabelEmailsListFailure(t *testing.T) {
	users := &mockUsers{}
	users.On("ListLinked", mock.Anything).Return(nil, errors.New("db down"))
	pipeline := &mockPipeline{}

	cm := NewCronManager(&cron_config.Config{}, getLogger(), nil, users, pipeline)
	cm.labelEmails(context.Background())

	pipeline.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}
