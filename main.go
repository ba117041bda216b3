// main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/inngest/inngestgo"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/promptpulse/pulse-workflows/internal/api"
	"github.com/promptpulse/pulse-workflows/internal/config"
	"github.com/promptpulse/pulse-workflows/internal/providers/common"
	"github.com/promptpulse/pulse-workflows/services"
	"github.com/promptpulse/pulse-workflows/workflows"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	cfg := config.Load()

	// A bad cron expression would otherwise only surface at registration time
	if _, err := cron.ParseStandard(cfg.Scheduler.CronSchedule); err != nil {
		log.Fatalf("Invalid NIGHTLY_CRON_SCHEDULE %q: %v", cfg.Scheduler.CronSchedule, err)
	}

	db, err := connectDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Printf("Database connection established")

	repoManager := services.NewRepositoryManager(db)

	brightDataClient := common.NewBrightDataClient(cfg.BrightData.APIKey)
	dataForSEOClient := common.NewDataForSEOClient(cfg.DataForSEO.Login, cfg.DataForSEO.Password)

	healthService := services.NewProviderHealthService(dataForSEOClient, brightDataClient)
	healthService.Start(context.Background())
	defer healthService.Stop()

	credentialService := services.NewCredentialService(cfg.DefaultOpenAIModel)
	notifierService := services.NewNotifierService(cfg)
	enrichmentService := services.NewEnrichmentService()
	analysisService := services.NewAnalysisService(cfg.AnthropicAPIKey)
	volumeService := services.NewVolumeService(dataForSEOClient)
	jobBatchService := services.NewJobBatchService(repoManager, notifierService)

	client, err := inngestgo.NewClient(
		inngestgo.ClientOpts{
			AppID:    "pulse-workflows",
			EventKey: inngestgo.StrPtr(cfg.InngestEventKey),
			Env:      inngestgo.StrPtr(cfg.Environment),
		},
	)
	if err != nil {
		log.Fatalf("Failed to create Inngest client: %v", err)
	}

	publisher := workflows.NewInngestPublisher(client)

	submissionService := services.NewSubmissionService(repoManager, healthService, credentialService, publisher, notifierService, cfg.DefaultOpenAIModel)
	brightDataDispatcher := services.NewBrightDataDispatcher(brightDataClient, cfg.BrightData.DatasetID, repoManager, enrichmentService, analysisService, volumeService, jobBatchService, notifierService)
	dataForSEODispatcher := services.NewDataForSEODispatcher(dataForSEOClient, cfg.AppURL, repoManager, enrichmentService, analysisService, volumeService, jobBatchService, notifierService)
	schedulerService := services.NewSchedulerService(repoManager, healthService, credentialService, publisher, cfg.Scheduler, cfg.DefaultOpenAIModel)

	log.Printf("Registering workflows...")

	brightDataProcessor := workflows.NewBrightDataProcessor(brightDataDispatcher)
	brightDataProcessor.SetClient(client)
	brightDataProcessor.DispatchShard()

	dataForSEOProcessor := workflows.NewDataForSEOProcessor(dataForSEODispatcher)
	dataForSEOProcessor.SetClient(client)
	dataForSEOProcessor.DispatchShard()

	nightlyProcessor := workflows.NewNightlyProcessor(schedulerService, cfg.Scheduler.CronSchedule)
	nightlyProcessor.SetClient(client)
	nightlyProcessor.NightlyRun()

	log.Printf("All workflows registered")

	handlers := api.NewHandlers(submissionService, brightDataDispatcher, dataForSEODispatcher)
	router := api.SetupRoutes(handlers, client.Serve())

	log.Printf("Starting pulse-workflows on port %s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal(err)
	}
}

func connectDatabase(cfg *config.Config) (*sqlx.DB, error) {
	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
			cfg.Database.Password, cfg.Database.Name, cfg.Database.SSLMode)
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)
	return db, nil
}
