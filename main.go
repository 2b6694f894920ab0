package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/customeros/mailsorter/config"
	"github.com/customeros/mailsorter/interfaces"
	"github.com/customeros/mailsorter/internal/database"
	"github.com/customeros/mailsorter/internal/logger"
	"github.com/customeros/mailsorter/internal/repository"
	"github.com/customeros/mailsorter/internal/utils"
	"github.com/customeros/mailsorter/server"
	"github.com/customeros/mailsorter/services"
	"github.com/customeros/mailsorter/services/rules"
)

const appSourceCli = "cli"

func main() {
	app := &cli.App{
		Name:  "mailsorter",
		Usage: "label Gmail inbox messages using LLM categorization rules",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: migrate,
			},
			{
				Name:   "server",
				Usage:  "Start the API server and scheduled pipeline runs",
				Action: serve,
			},
			{
				Name:  "run",
				Usage: "Run the pipeline once for one owner and print the summary",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "owner", Usage: "owner id of a linked user", Required: true},
					&cli.StringFlag{Name: "rules", Usage: "YAML rules file, defaults to rules stored in the database"},
				},
				Action: runOnce,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

func setup() (*config.Config, *gorm.DB, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, errors.Wrap(err, "config initialization failed")
	}

	db, err := database.NewConnection(cfg.DatabaseConfig)
	if err != nil {
		return nil, nil, errors.Wrap(err, "database initialization failed")
	}
	return cfg, db, nil
}

func migrate(_ *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	if err := repository.MigrateDB(cfg.DatabaseConfig, db); err != nil {
		return errors.Wrap(err, "database migration failed")
	}
	log.Println("Database migration completed successfully")
	return nil
}

func serve(_ *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("MailSorter starting up...")

	srv, err := server.NewServer(cfg, db)
	if err != nil {
		return errors.Wrap(err, "server setup failed")
	}

	if err := srv.Run(); err != nil {
		return errors.Wrap(err, "server startup failed")
	}

	log.Println("Shutdown complete")
	return nil
}

func runOnce(c *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()
	defer func() { _ = appLogger.Sync() }()

	var source interfaces.RuleSource
	if path := c.String("rules"); path != "" {
		source, err = rules.NewFileSource(path)
		if err != nil {
			return err
		}
	}

	svcs, err := services.InitServices(cfg, appLogger, repository.InitRepositories(db), source)
	if err != nil {
		return err
	}
	defer func() { _ = svcs.Close() }()

	ctx := utils.SetAppSourceInContext(context.Background(), appSourceCli)
	summary, err := svcs.Pipeline.Run(ctx, c.String("owner"))
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}
