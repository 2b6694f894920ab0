package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/mailsorter/config"
	"github.com/customeros/mailsorter/interfaces"
	"github.com/customeros/mailsorter/internal/models"
)

type Repositories struct {
	EmailRecordRepository interfaces.EmailRecordRepository
	UserRepository        interfaces.UserRepository
	RuleRepository        interfaces.RuleSource
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		EmailRecordRepository: NewEmailRecordRepository(db),
		UserRepository:        NewUserRepository(db),
		RuleRepository:        NewRuleRepository(db),
	}
}

// Models lists every table owned by the service.
func Models() []interface{} {
	return []interface{}{
		&models.EmailRecord{},
		&models.User{},
		&models.Rule{},
	}
}

func MigrateDB(dbConfig *config.DatabaseConfig, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = db.AutoMigrate(Models()...)

	if dbConfig != nil {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
		sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
		sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)
	}

	return err
}
