package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/customeros/mailsorter/config"
	"github.com/customeros/mailsorter/dto"
	"github.com/customeros/mailsorter/interfaces"
	"github.com/customeros/mailsorter/internal/enum"
	"github.com/customeros/mailsorter/internal/logger"
	"github.com/customeros/mailsorter/internal/models"
	"github.com/customeros/mailsorter/internal/repository"
)

const testOwner = "user-1"

type fakeGateway struct {
	mu sync.Mutex

	pages     map[string]*dto.MessagePage
	listErr   map[string]error
	listCalls int

	messages map[string]*dto.MessageContent

	labels      []dto.Label
	createCalls map[string]int
	createErr   map[string]error

	modifyCalls map[string][][]string
	modifyErr   error

	// run after the call is served, e.g. to cancel the run mid-stage
	onListLabels func()
	onModify     func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		pages:       map[string]*dto.MessagePage{"": {}},
		listErr:     map[string]error{},
		messages:    map[string]*dto.MessageContent{},
		createCalls: map[string]int{},
		createErr:   map[string]error{},
		modifyCalls: map[string][][]string{},
	}
}

func (f *fakeGateway) ListMessages(_ context.Context, _ string, _ time.Time, pageToken string) (*dto.MessagePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if err := f.listErr[pageToken]; err != nil {
		return nil, err
	}
	page, ok := f.pages[pageToken]
	if !ok {
		return nil, errors.Errorf("unknown page token %q", pageToken)
	}
	return page, nil
}

func (f *fakeGateway) GetMessage(_ context.Context, _ string, id string) (*dto.MessageContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, errors.Errorf("message %s not found", id)
	}
	return msg, nil
}

func (f *fakeGateway) ListLabels(context.Context, string) ([]dto.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onListLabels != nil {
		f.onListLabels()
	}
	return append([]dto.Label(nil), f.labels...), nil
}

func (f *fakeGateway) CreateLabel(_ context.Context, _ string, name string) (*dto.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls[name]++
	if err := f.createErr[name]; err != nil {
		return nil, err
	}
	label := dto.Label{ID: "Label_" + name, Name: name}
	f.labels = append(f.labels, label)
	return &label, nil
}

func (f *fakeGateway) ModifyMessageLabels(ctx context.Context, _ string, id string, addLabelIds []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.modifyErr != nil {
		return f.modifyErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.modifyCalls[id] = append(f.modifyCalls[id], addLabelIds)
	if f.onModify != nil {
		f.onModify()
	}
	return nil
}

func (f *fakeGateway) totalModifyCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, calls := range f.modifyCalls {
		n += len(calls)
	}
	return n
}

// addPlainMessage registers a single text/plain message and a first page
// listing it.
func (f *fakeGateway) addPlainMessage(id, subject, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[id] = &dto.MessageContent{
		ID:        id,
		ThreadID:  "t-" + id,
		Subject:   subject,
		BodyParts: []dto.BodyPart{{MimeType: "text/plain", Base64Data: b64(body)}},
	}
	f.pages[""].Messages = append(f.pages[""].Messages, dto.MessageRef{ID: id, ThreadID: "t-" + id})
}

type fakeCompletion struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (f *fakeCompletion) Complete(_ context.Context, systemPrompt string, history []dto.ChatMessage) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, systemPrompt)
	f.mu.Unlock()
	if len(history) != 0 {
		return "", errors.New("unexpected history")
	}
	return f.respond(systemPrompt)
}

func answer(s string) func(string) (string, error) {
	return func(string) (string, error) { return s, nil }
}

type fakeRules struct {
	rules []dto.Rule
	err   error
}

func (f *fakeRules) GetRules(context.Context, string) ([]dto.Rule, error) {
	return f.rules, f.err
}

type fakeEvents struct {
	mu        sync.Mutex
	published []dto.EmailsLabeled
}

func (f *fakeEvents) PublishEmailsLabeled(_ context.Context, event dto.EmailsLabeled) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, event)
	return nil
}

func (f *fakeEvents) Close() error { return nil }

type fixedGuard struct {
	acquired bool
}

func (g fixedGuard) Acquire(context.Context, string) (func(), bool) {
	return func() {}, g.acquired
}

// countingUsers records every checkpoint write together with how many list
// calls the gateway had served at that moment.
type countingUsers struct {
	interfaces.UserRepository
	gateway        *fakeGateway
	advances       int
	listsAtAdvance int
}

func (c *countingUsers) AdvanceLastFetched(ctx context.Context, id string, t time.Time) error {
	c.advances++
	c.gateway.mu.Lock()
	c.listsAtAdvance = c.gateway.listCalls
	c.gateway.mu.Unlock()
	return c.UserRepository.AdvanceLastFetched(ctx, id, t)
}

type harness struct {
	db         *gorm.DB
	repos      *repository.Repositories
	users      *countingUsers
	gateway    *fakeGateway
	completion *fakeCompletion
	rules      *fakeRules
	events     *fakeEvents
	pipeline   *Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(repository.Models()...))
	require.NoError(t, db.Create(&models.User{ID: testOwner, Email: "owner@example.com", GoogleOauthToken: "token"}).Error)

	log := logger.NewAppLogger(&logger.Config{LogLevel: "error"})
	log.InitLogger()

	h := &harness{
		db:         db,
		repos:      repository.InitRepositories(db),
		gateway:    newFakeGateway(),
		completion: &fakeCompletion{respond: answer("None")},
		rules: &fakeRules{rules: []dto.Rule{{
			Name:   "Jobs",
			Prompt: "Is/Does this email relate to a job application? If yes, then add label Jobs.",
		}}},
		events: &fakeEvents{},
	}
	h.users = &countingUsers{UserRepository: h.repos.UserRepository, gateway: h.gateway}
	h.pipeline = NewPipeline(Dependencies{
		Records:    h.repos.EmailRecordRepository,
		Users:      h.users,
		Rules:      h.rules,
		Gateway:    h.gateway,
		Completion: h.completion,
		Events:     h.events,
	}, &config.PipelineConfig{Concurrency: 4, CallTimeout: 5 * time.Second}, log)
	return h
}

func (h *harness) record(t *testing.T, emailID string) *models.EmailRecord {
	t.Helper()
	record, err := h.repos.EmailRecordRepository.GetByOwnerAndEmailID(context.Background(), testOwner, emailID)
	require.NoError(t, err)
	require.NotNil(t, record)
	return record
}

// seedCategorized stores a record that already went through categorize.
func (h *harness) seedCategorized(t *testing.T, emailID string, labels ...string) {
	t.Helper()
	ctx := context.Background()
	record := &models.EmailRecord{Owner: testOwner, EmailID: emailID, Status: enum.EmailStatusIncomplete}
	_, err := h.repos.EmailRecordRepository.Create(ctx, record)
	require.NoError(t, err)
	_, err = h.repos.EmailRecordRepository.SaveContent(ctx, record.ID, "Subject: s Content: b")
	require.NoError(t, err)
	moved, err := h.repos.EmailRecordRepository.SaveLabels(ctx, record.ID, labels)
	require.NoError(t, err)
	require.True(t, moved)
}

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func pagesOf(count, perPage int) map[string]*dto.MessagePage {
	pages := map[string]*dto.MessagePage{}
	token := ""
	for p := 0; p < count; p++ {
		page := &dto.MessagePage{}
		for i := 0; i < perPage; i++ {
			id := fmt.Sprintf("m-%d-%d", p, i)
			page.Messages = append(page.Messages, dto.MessageRef{ID: id, ThreadID: "t-" + id})
		}
		if p < count-1 {
			page.NextPageToken = fmt.Sprintf("page-%d", p+1)
		}
		pages[token] = page
		token = page.NextPageToken
	}
	return pages
}
