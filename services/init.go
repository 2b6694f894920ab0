package services

import (
	"github.com/customeros/mailsorter/config"
	"github.com/customeros/mailsorter/interfaces"
	"github.com/customeros/mailsorter/internal/logger"
	"github.com/customeros/mailsorter/internal/repository"
	"github.com/customeros/mailsorter/services/ai"
	"github.com/customeros/mailsorter/services/events"
	"github.com/customeros/mailsorter/services/gmail"
	"github.com/customeros/mailsorter/services/pipeline"
	"github.com/customeros/mailsorter/services/runguard"
)

type Services struct {
	EventsService     interfaces.EventPublisher
	MailGateway       interfaces.MailGateway
	CompletionService interfaces.CompletionService
	RunGuard          interfaces.RunGuard
	Pipeline          *pipeline.Pipeline
}

// InitServices wires the pipeline and its collaborators. A nil rules source
// reads rules from the database.
func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories, rules interfaces.RuleSource) (*Services, error) {
	publisher, err := events.NewEventsService(cfg.AppConfig.RabbitMQURL, log, events.DefaultPublisherConfig())
	if err != nil {
		return nil, err
	}

	if rules == nil {
		rules = repos.RuleRepository
	}

	gateway := gmail.NewGmailService(cfg.GmailConfig, repos.UserRepository, log)
	completion := ai.NewAIService(cfg.OpenAIConfig)
	guard := runguard.NewRunGuard(cfg.RedisConfig, cfg.PipelineConfig.RunGuardTTL, log)

	services := Services{
		EventsService:     publisher,
		MailGateway:       gateway,
		CompletionService: completion,
		RunGuard:          guard,
		Pipeline: pipeline.NewPipeline(pipeline.Dependencies{
			Records:    repos.EmailRecordRepository,
			Users:      repos.UserRepository,
			Rules:      rules,
			Gateway:    gateway,
			Completion: completion,
			Events:     publisher,
			Guard:      guard,
		}, cfg.PipelineConfig, log),
	}

	return &services, nil
}

func (s *Services) Close() error {
	if s.EventsService != nil {
		return s.EventsService.Close()
	}
	return nil
}
