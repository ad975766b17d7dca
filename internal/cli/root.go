// Package cli implements the nagarpalika-admin command line tool used by ward
// officers and operators to inspect and maintain the report store.
package cli

import (
	"fmt"
	"log"

	"nagarpalika/backend/internal/analysis"
	"nagarpalika/backend/internal/config"
	"nagarpalika/backend/internal/lifecycle"
	"nagarpalika/backend/internal/models"
	"nagarpalika/backend/internal/notify"
	"nagarpalika/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// App is what every subcommand operates on.
type App struct {
	Config    *config.Config
	Directory *config.Directory
	Reports   *lifecycle.Service
}

// Opener builds the App the first time a command needs it.
type Opener func() (*App, error)

// OpenFromEnv loads the server configuration and connects to the same store.
func OpenFromEnv() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	dir, err := config.LoadDirectory(cfg.DepartmentsFile)
	if err != nil {
		return nil, err
	}
	// the admin tool always reads through to the database
	store, err := storage.Open(cfg.StoreDriver, cfg.DatabaseURL, 0)
	if err != nil {
		return nil, err
	}
	if cfg.RedisAddr != "" {
		// a running server with CACHE_TTL drops its copy when told
		store = storage.NewPublishingStorage(store, redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}))
	}
	var classifier analysis.Classifier = analysis.NewKeywordClassifier()
	if cfg.OpenAIKey != "" {
		ai, err := analysis.NewOpenAIClassifier(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
		if err != nil {
			return nil, err
		}
		classifier = &analysis.FallbackClassifier{Primary: ai, Secondary: classifier}
	}
	return &App{
		Config:    cfg,
		Directory: dir,
		Reports:   lifecycle.NewService(store, classifier, offlineNotifier{}, nil, cfg.ClassifyTimeout),
	}, nil
}

// offlineNotifier stands in for the realtime router. The admin tool runs
// outside the server process and has no live subscribers to reach.
type offlineNotifier struct{}

func (offlineNotifier) ReportCreated(report *models.Report) notify.Delivery {
	return notify.Delivery{Department: report.TargetDepartment}
}

func (offlineNotifier) ReportStatusChanged(report *models.Report) int {
	log.Printf("WARN: report %s changed offline, connected dashboards will see it on next refresh", report.ID)
	return 0
}

type runner struct {
	open Opener
	app  *App
}

func (r *runner) get() (*App, error) {
	if r.app != nil {
		return r.app, nil
	}
	app, err := r.open()
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}
	r.app = app
	return app, nil
}

// NewRootCmd assembles the command tree around open.
func NewRootCmd(open Opener) *cobra.Command {
	r := &runner{open: open}

	root := &cobra.Command{
		Use:   "nagarpalika-admin",
		Short: "Nagarpalika admin - inspect and maintain civic reports",
		Long: `nagarpalika-admin works directly against the report store configured for
the server (STORE_DRIVER, DATABASE_URL and the rest of the environment).

Status changes made here follow the same transition rules as the API but are
not pushed to connected dashboards. With REDIS_ADDR set, a server caching
reports (CACHE_TTL) is told to drop the changed ones.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(
		newListCmd(r),
		newShowCmd(r),
		newSetStatusCmd(r),
		newReclassifyCmd(r),
		newDepartmentsCmd(r),
		newExportPDFCmd(r),
		newTokenCmd(r),
	)
	return root
}

// Execute runs the admin tool against the environment's store.
func Execute() error {
	return NewRootCmd(OpenFromEnv).Execute()
}
