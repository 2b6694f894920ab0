package gmail

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/customeros/mailsorter/config"
	"github.com/customeros/mailsorter/dto"
	"github.com/customeros/mailsorter/interfaces"
	mserrors "github.com/customeros/mailsorter/internal/errors"
	"github.com/customeros/mailsorter/internal/logger"
	"github.com/customeros/mailsorter/internal/tracing"
)

// See https://developers.google.com/gmail/api/reference/quota
const (
	quotaUnitsMessagesList   = 5
	quotaUnitsMessagesGet    = 5
	quotaUnitsMessagesModify = 5
	quotaUnitsLabelsList     = 1
	quotaUnitsLabelsCreate   = 5

	pageSize = 100
	me       = "me"

	inboxQueryDateLayout = "01/02/2006"

	labelVisibilityShow      = "show"
	labelListVisibilityShown = "labelShow"

	baseRetryBackoff = 500 * time.Millisecond
)

type gmailService struct {
	cfg      *config.GmailConfig
	users    interfaces.UserRepository
	log      logger.Logger
	limiter  *rate.Limiter
	oauthCfg *oauth2.Config
	// appended to every client; tests point the client at a local server
	clientOptions []option.ClientOption
}

func NewGmailService(cfg *config.GmailConfig, users interfaces.UserRepository, log logger.Logger) interfaces.MailGateway {
	return newGmailService(cfg, users, log)
}

func newGmailService(cfg *config.GmailConfig, users interfaces.UserRepository, log logger.Logger) *gmailService {
	unitsPerSecond := cfg.QuotaUnitsPerSecond
	if unitsPerSecond <= 0 {
		unitsPerSecond = 250
	}
	s := &gmailService{
		cfg:   cfg,
		users: users,
		log:   log,
		// stay under the per-user quota, bursting up to one second worth
		limiter: rate.NewLimiter(rate.Limit(unitsPerSecond*0.8), int(unitsPerSecond)),
	}
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		s.oauthCfg = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmailapi.GmailModifyScope, gmailapi.GmailLabelsScope},
		}
	}
	return s
}

// BuildInboxQuery renders the Gmail search used by the fetch stage.
func BuildInboxQuery(after time.Time) string {
	return fmt.Sprintf("after:%s in:inbox", after.UTC().Format(inboxQueryDateLayout))
}

func (s *gmailService) ListMessages(ctx context.Context, owner string, after time.Time, pageToken string) (*dto.MessagePage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gmailService.ListMessages")
	defer span.Finish()
	tracing.TagComponentGmail(span)
	tracing.TagOwner(span, owner)

	users, err := s.usersService(ctx, owner)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	query := BuildInboxQuery(after)
	span.LogKV("query", query, "pageToken", pageToken)

	res, err := withRetry(ctx, s, quotaUnitsMessagesList, func() (*gmailapi.ListMessagesResponse, error) {
		call := users.Messages.List(me).Q(query).MaxResults(pageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		return call.Do()
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "unable to list messages")
	}

	page := &dto.MessagePage{
		Messages:      make([]dto.MessageRef, 0, len(res.Messages)),
		NextPageToken: res.NextPageToken,
	}
	for _, m := range res.Messages {
		page.Messages = append(page.Messages, dto.MessageRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	span.LogKV("count", len(page.Messages))
	return page, nil
}

func (s *gmailService) GetMessage(ctx context.Context, owner, id string) (*dto.MessageContent, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gmailService.GetMessage")
	defer span.Finish()
	tracing.TagComponentGmail(span)
	tracing.TagOwner(span, owner)
	tracing.TagEntity(span, id)

	users, err := s.usersService(ctx, owner)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	msg, err := withRetry(ctx, s, quotaUnitsMessagesGet, func() (*gmailapi.Message, error) {
		return users.Messages.Get(me, id).Format("full").Context(ctx).Do()
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "getting message %v from gmail", id)
	}

	return &dto.MessageContent{
		ID:        msg.Id,
		ThreadID:  msg.ThreadId,
		Subject:   HeaderValue(msg, "Subject"),
		BodyParts: FlattenParts(msg.Payload),
	}, nil
}

func (s *gmailService) ListLabels(ctx context.Context, owner string) ([]dto.Label, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gmailService.ListLabels")
	defer span.Finish()
	tracing.TagComponentGmail(span)
	tracing.TagOwner(span, owner)

	users, err := s.usersService(ctx, owner)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	labels, err := s.listLabels(ctx, users)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.LogKV("count", len(labels))
	return labels, nil
}

func (s *gmailService) listLabels(ctx context.Context, users *gmailapi.UsersService) ([]dto.Label, error) {
	res, err := withRetry(ctx, s, quotaUnitsLabelsList, func() (*gmailapi.ListLabelsResponse, error) {
		return users.Labels.List(me).Context(ctx).Do()
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to list labels")
	}

	labels := make([]dto.Label, 0, len(res.Labels))
	for _, l := range res.Labels {
		labels = append(labels, dto.Label{ID: l.Id, Name: l.Name, Type: l.Type})
	}
	return labels, nil
}

// CreateLabel creates a user label shown in the message and label lists. A
// label of the same name created meanwhile by someone else is returned as is.
func (s *gmailService) CreateLabel(ctx context.Context, owner, name string) (*dto.Label, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gmailService.CreateLabel")
	defer span.Finish()
	tracing.TagComponentGmail(span)
	tracing.TagOwner(span, owner)
	span.LogKV("name", name)

	if strings.TrimSpace(name) == "" {
		return nil, mserrors.ErrEmptyLabelName
	}

	users, err := s.usersService(ctx, owner)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	created, err := withRetry(ctx, s, quotaUnitsLabelsCreate, func() (*gmailapi.Label, error) {
		return users.Labels.Create(me, &gmailapi.Label{
			Name:                  name,
			MessageListVisibility: labelVisibilityShow,
			LabelListVisibility:   labelListVisibilityShown,
		}).Context(ctx).Do()
	})
	if err == nil {
		return &dto.Label{ID: created.Id, Name: created.Name, Type: dto.LabelTypeUser}, nil
	}
	if !isConflict(err) {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "unable to create label %q", name)
	}

	span.LogKV("conflict", true)
	labels, err := s.listLabels(ctx, users)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	for _, l := range labels {
		if l.Matches(name) {
			label := l
			return &label, nil
		}
	}
	err = errors.Wrapf(mserrors.ErrLabelNotFound, "label %q reported as existing", name)
	tracing.TraceErr(span, err)
	return nil, err
}

func (s *gmailService) ModifyMessageLabels(ctx context.Context, owner, id string, addLabelIds []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "gmailService.ModifyMessageLabels")
	defer span.Finish()
	tracing.TagComponentGmail(span)
	tracing.TagOwner(span, owner)
	tracing.TagEntity(span, id)
	span.LogKV("addLabelIds", addLabelIds)

	users, err := s.usersService(ctx, owner)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	_, err = withRetry(ctx, s, quotaUnitsMessagesModify, func() (*gmailapi.Message, error) {
		return users.Messages.Modify(me, id, &gmailapi.ModifyMessageRequest{AddLabelIds: addLabelIds}).Context(ctx).Do()
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "unable to modify labels of message %v", id)
	}
	return nil
}

func (s *gmailService) usersService(ctx context.Context, owner string) (*gmailapi.UsersService, error) {
	user, err := s.users.GetByID(ctx, owner)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.Wrap(mserrors.ErrUserNotFound, owner)
	}
	if user.GoogleOauthToken == "" {
		return nil, errors.Wrap(mserrors.ErrUserNotLinked, owner)
	}

	token := &oauth2.Token{AccessToken: user.GoogleOauthToken, RefreshToken: user.GoogleRefreshToken, TokenType: "Bearer"}
	var tokenSource oauth2.TokenSource
	if s.oauthCfg != nil && token.RefreshToken != "" {
		tokenSource = s.oauthCfg.TokenSource(ctx, token)
	} else {
		tokenSource = oauth2.StaticTokenSource(token)
	}

	opts := []option.ClientOption{option.WithTokenSource(tokenSource)}
	if s.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.cfg.Endpoint))
	}
	opts = append(opts, s.clientOptions...)

	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create gmail client")
	}
	return svc.Users, nil
}

// withRetry waits for quota and runs fn, retrying rate limited and server
// errors with exponential backoff up to the configured retry count.
func withRetry[T any](ctx context.Context, s *gmailService, units int, fn func() (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		if err := s.limiter.WaitN(ctx, units); err != nil {
			return zero, err
		}
		res, err := fn()
		if err == nil {
			return res, nil
		}
		if !isRetryable(err) || attempt >= s.cfg.MaxRetries {
			return zero, err
		}

		backoff := baseRetryBackoff * time.Duration(1<<attempt)
		s.log.Warnf("Gmail call failed (attempt %d), retrying in %v: %v", attempt+1, backoff, err)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func isRetryable(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusTooManyRequests || gerr.Code >= http.StatusInternalServerError
}

func isConflict(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}
