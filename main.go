package main

import (
	"log"

	api "followq-backend/cmd/api"
	queuedomain "followq-backend/internal/queue/domain"
	queueRepo "followq-backend/internal/queue/repository"
	"followq-backend/internal/queue/scheduler"
	queueUsecase "followq-backend/internal/queue/usecase"
	"followq-backend/internal/snooze"
	"followq-backend/pkg/ai"
	"followq-backend/pkg/config"
	"followq-backend/pkg/database"
	"followq-backend/pkg/deadline"
	"followq-backend/pkg/gmail"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Deadline policy
	policy := &deadline.Config{
		BaseHours:        cfg.BaseHours,
		VIPOverrides:     cfg.VIPOverrides,
		WorkingHoursOnly: cfg.WorkingHoursOnly,
		WorkStartHour:    cfg.WorkStartHour,
		WorkEndHour:      cfg.WorkEndHour,
		Timezone:         cfg.Timezone,
		AtRiskFraction:   cfg.AtRiskFraction,
	}
	if err := policy.Validate(); err != nil {
		log.Fatal("Invalid deadline policy:", err)
	}

	// Initialize repositories (dependency injection)
	var itemRepo queueRepo.ItemRepository
	var historyRepo queueRepo.HistoryRepository
	switch cfg.StoreDriver {
	case "postgres":
		db, err := database.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		if err := db.AutoMigrate(&queuedomain.QueueItem{}, &queuedomain.QueueHistory{}); err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		itemRepo = queueRepo.NewGormItemRepository(db)
		historyRepo = queueRepo.NewGormHistoryRepository(db)
	case "memory":
		log.Println("Using in-memory store; queue state will not survive a restart")
		itemRepo = queueRepo.NewMemoryItemRepository()
		historyRepo = queueRepo.NewMemoryHistoryRepository()
	default:
		log.Fatalf("Unknown store driver %q (expected postgres or memory)", cfg.StoreDriver)
	}

	// Suggestion advisor is optional; without it every suggestion comes
	// from the deterministic fallback.
	advisor := ai.NewSuggestionService(ai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
	if advisor == nil {
		log.Println("OPENAI_API_KEY not set; snooze suggestions use the fallback rules only")
	}
	engine := snooze.NewEngine(advisor, policy, cfg.SuggestionTimeout)

	// Queue store
	queueUc := queueUsecase.NewQueueUsecase(itemRepo, historyRepo, policy, engine, queueUsecase.Options{
		MaxPageSize:     cfg.MaxPageSize,
		DefaultPageSize: cfg.DefaultPageSize,
		StatsTTL:        cfg.StatsTTL,
		WaitOnConflict:  cfg.WaitOnConflict,
	})

	// Gmail metadata pull (optional)
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRefreshToken)
	if gmailService.Enabled() {
		queueUc.SetMailboxService(gmailService)
		log.Println("Gmail metadata service initialized")
	} else {
		log.Println("Gmail credentials not set; admissions must carry their own metadata")
	}

	// Background sweep
	sweep := scheduler.NewSweep(queueUc, cfg.SweepSpec, cfg.Retention)
	if err := sweep.Start(); err != nil {
		log.Fatal("Failed to start sweep:", err)
	}
	defer sweep.Stop()

	// HTTP server
	handler := api.NewHandler(queueUc, sweep)
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
