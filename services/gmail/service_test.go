package gmail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/customeros/mailsorter/config"
	mserrors "github.com/customeros/mailsorter/internal/errors"
	"github.com/customeros/mailsorter/internal/logger"
	"github.com/customeros/mailsorter/internal/models"
)

type fakeUsers struct {
	users map[string]*models.User
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakeUsers) ListLinked(context.Context) ([]*models.User, error) {
	return nil, nil
}

func (f *fakeUsers) AdvanceLastFetched(context.Context, string, time.Time) error {
	return nil
}

type fakeGmail struct {
	mu             sync.Mutex
	listQueries    []string
	pageTokens     []string
	labels         []*gmailapi.Label
	createCalls    int
	modifyRequests map[string][]string
	failNextList   int
}

func (f *fakeGmail) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}

	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failNextList > 0 {
			f.failNextList--
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{"error": map[string]interface{}{"code": 429, "message": "slow down"}})
			return
		}
		f.listQueries = append(f.listQueries, r.URL.Query().Get("q"))
		token := r.URL.Query().Get("pageToken")
		f.pageTokens = append(f.pageTokens, token)
		assert.Equal(t, "100", r.URL.Query().Get("maxResults"))
		switch token {
		case "":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"messages":      []map[string]string{{"id": "m1", "threadId": "t1"}, {"id": "m2", "threadId": "t1"}},
				"nextPageToken": "page-2",
			})
		default:
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"messages": []map[string]string{{"id": "m3", "threadId": "t3"}},
			})
		}
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "full", r.URL.Query().Get("format"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":       "m1",
			"threadId": "t1",
			"payload": map[string]interface{}{
				"mimeType": "multipart/mixed",
				"headers":  []map[string]string{{"name": "From", "value": "a@b.c"}, {"name": "Subject", "value": "Interview"}},
				"parts": []map[string]interface{}{
					{
						"mimeType": "multipart/alternative",
						"parts": []map[string]interface{}{
							{"mimeType": "text/plain", "body": map[string]string{"data": "SGVsbG8"}},
							{"mimeType": "text/html", "body": map[string]string{"data": "PGI-SGVsbG88L2I-"}},
						},
					},
					{"mimeType": "application/pdf", "body": map[string]string{"attachmentId": "att-1"}},
				},
			},
		})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/m1/modify", func(w http.ResponseWriter, r *http.Request) {
		var req gmailapi.ModifyMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.modifyRequests["m1"] = req.AddLabelIds
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"id": "m1"})
	})
	mux.HandleFunc("/gmail/v1/users/me/labels", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, map[string]interface{}{"labels": f.labels})
			return
		}
		f.createCalls++
		var label gmailapi.Label
		require.NoError(t, json.NewDecoder(r.Body).Decode(&label))
		assert.Equal(t, "show", label.MessageListVisibility)
		assert.Equal(t, "labelShow", label.LabelListVisibility)
		for _, existing := range f.labels {
			if strings.EqualFold(existing.Name, label.Name) {
				writeJSON(w, http.StatusConflict, map[string]interface{}{"error": map[string]interface{}{"code": 409, "message": "Label name exists or conflicts"}})
				return
			}
		}
		label.Id = "Label_" + label.Name
		f.labels = append(f.labels, &label)
		writeJSON(w, http.StatusOK, label)
	})
	return mux
}

func newTestService(t *testing.T, fake *fakeGmail) *gmailService {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	log := logger.NewAppLogger(&logger.Config{DevMode: true})
	log.InitLogger()

	users := &fakeUsers{users: map[string]*models.User{
		"user-1":   {ID: "user-1", GoogleOauthToken: "access"},
		"unlinked": {ID: "unlinked"},
	}}
	s := newGmailService(&config.GmailConfig{QuotaUnitsPerSecond: 10000, MaxRetries: 2}, users, log)
	s.clientOptions = []option.ClientOption{
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL + "/"),
	}
	return s
}

func TestBuildInboxQuery(t *testing.T) {
	assert.Equal(t, "after:01/01/1970 in:inbox", BuildInboxQuery(time.Unix(0, 0)))
	assert.Equal(t, "after:03/07/2024 in:inbox", BuildInboxQuery(time.Date(2024, 3, 7, 23, 59, 0, 0, time.UTC)))
}

func TestGmailService_ListMessagesPages(t *testing.T) {
	fake := &fakeGmail{modifyRequests: map[string][]string{}}
	s := newTestService(t, fake)
	after := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)

	first, err := s.ListMessages(context.Background(), "user-1", after, "")
	require.NoError(t, err)
	assert.Len(t, first.Messages, 2)
	assert.Equal(t, "page-2", first.NextPageToken)
	assert.Equal(t, "t1", first.Messages[1].ThreadID)

	second, err := s.ListMessages(context.Background(), "user-1", after, first.NextPageToken)
	require.NoError(t, err)
	assert.Len(t, second.Messages, 1)
	assert.Empty(t, second.NextPageToken)

	assert.Equal(t, []string{"after:03/07/2024 in:inbox", "after:03/07/2024 in:inbox"}, fake.listQueries)
	assert.Equal(t, []string{"", "page-2"}, fake.pageTokens)
}

func TestGmailService_ListMessagesRetriesRateLimit(t *testing.T) {
	fake := &fakeGmail{modifyRequests: map[string][]string{}, failNextList: 1}
	s := newTestService(t, fake)

	page, err := s.ListMessages(context.Background(), "user-1", time.Unix(0, 0), "")
	require.NoError(t, err)
	assert.Len(t, page.Messages, 2)
}

func TestGmailService_GetMessageFlattensParts(t *testing.T) {
	s := newTestService(t, &fakeGmail{modifyRequests: map[string][]string{}})

	msg, err := s.GetMessage(context.Background(), "user-1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "Interview", msg.Subject)
	require.Len(t, msg.BodyParts, 2)
	assert.Equal(t, "text/plain", msg.BodyParts[0].MimeType)
	assert.Equal(t, "SGVsbG8", msg.BodyParts[0].Base64Data)
	assert.Equal(t, "text/html", msg.BodyParts[1].MimeType)
}

func TestGmailService_CreateLabelConflictReturnsExisting(t *testing.T) {
	fake := &fakeGmail{
		modifyRequests: map[string][]string{},
		labels:         []*gmailapi.Label{{Id: "Label_7", Name: "Jobs"}},
	}
	s := newTestService(t, fake)

	label, err := s.CreateLabel(context.Background(), "user-1", "jobs")
	require.NoError(t, err)
	assert.Equal(t, "Label_7", label.ID)

	label, err = s.CreateLabel(context.Background(), "user-1", "Travel")
	require.NoError(t, err)
	assert.Equal(t, "Label_Travel", label.ID)
	assert.Equal(t, 2, fake.createCalls)

	labels, err := s.ListLabels(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, labels, 2)

	_, err = s.CreateLabel(context.Background(), "user-1", "  ")
	assert.ErrorIs(t, err, mserrors.ErrEmptyLabelName)
}

func TestGmailService_ModifyMessageLabels(t *testing.T) {
	fake := &fakeGmail{modifyRequests: map[string][]string{}}
	s := newTestService(t, fake)

	require.NoError(t, s.ModifyMessageLabels(context.Background(), "user-1", "m1", []string{"Label_1", "Label_2"}))
	assert.Equal(t, []string{"Label_1", "Label_2"}, fake.modifyRequests["m1"])
}

func TestGmailService_RequiresLinkedUser(t *testing.T) {
	s := newTestService(t, &fakeGmail{modifyRequests: map[string][]string{}})

	_, err := s.ListLabels(context.Background(), "unlinked")
	assert.ErrorIs(t, err, mserrors.ErrUserNotLinked)

	_, err = s.ListLabels(context.Background(), "ghost")
	assert.ErrorIs(t, err, mserrors.ErrUserNotFound)
}

func TestGmailService_CreateLabelConflictIgnoresSystemLabels(t *testing.T) {
	fake := &fakeGmail{
		modifyRequests: map[string][]string{},
		labels:         []*gmailapi.Label{{Id: "SPAM", Name: "SPAM", Type: "system"}},
	}
	s := newTestService(t, fake)

	_, err := s.CreateLabel(context.Background(), "user-1", "Spam")
	assert.ErrorIs(t, err, mserrors.ErrLabelNotFound)

	labels, err := s.ListLabels(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.True(t, labels[0].IsSystem())
}
