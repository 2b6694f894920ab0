package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Label emails of every linked user, every minute
	CronScheduleLabelEmails string `env:"CRON_SCHEDULE_LABEL_EMAILS" envDefault:"0 * * * * *"`

	// Leader election identity; empty namespace or LOCAL_DEV runs without it
	PodName   string `env:"POD_NAME" envDefault:"local"`
	Namespace string `env:"POD_NAMESPACE"`
	LocalDev  bool   `env:"LOCAL_DEV" envDefault:"false"`
}
