package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/config"
	"nimbusdrive/internal/handler"
	"nimbusdrive/internal/repository"
	"nimbusdrive/internal/service"
	"nimbusdrive/internal/service/s3"
)

func connectWithRetry(cfg *config.DatabaseConfig, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	// Сначала подключаемся к системной базе postgres
	pgCfg := *cfg
	pgCfg.Name = "postgres"
	pgDB, err := sqlx.Connect("postgres", pgCfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %v", err)
	}
	defer pgDB.Close()

	// Создаём рабочую базу, если её ещё нет
	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %v", err)
	}
	if !exists {
		log.Printf("Database %s does not exist, creating...", cfg.Name)
		if _, err := pgDB.Exec(fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(cfg.Name))); err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	var db *sqlx.DB
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", cfg.GetDSN())
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", databaseURL)
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func main() {
	// Загружаем конфигурации
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := connectWithRetry(&appConfig.Database, 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Инициализация S3 клиента
	s3Config, err := s3.NewConfig(".s3.env")
	if err != nil {
		log.Fatalf("Failed to load S3 config: %v", err)
	}

	s3Client, err := s3.NewClient(s3Config)
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	// Проверка JWT
	authConfig, err := auth.NewConfig(".auth.env")
	if err != nil {
		log.Fatalf("Failed to load auth config: %v", err)
	}
	verifier, err := auth.NewVerifier(authConfig)
	if err != nil {
		log.Fatalf("Failed to create token verifier: %v", err)
	}

	// Инициализация репозиториев
	userRepo := repository.NewUserRepository(db)
	fileRepo := repository.NewFileRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	shareRepo := repository.NewShareRepository(db)

	// Инициализация сервисов
	clock := service.RealClock{}
	quotaService := service.NewQuotaService(userRepo)
	folderService := service.NewFolderService(folderRepo, fileRepo)
	fileService := service.NewFileService(fileRepo, folderRepo, quotaService, s3Client, &appConfig.Upload, clock)
	shareService := service.NewShareService(shareRepo, fileRepo, folderRepo, clock)
	archiveService := service.NewArchiveService(folderRepo, fileRepo, shareRepo, userRepo, s3Client)
	userService := service.NewUserService(userRepo, fileRepo, s3Client, clock)

	// Инициализация хендлеров
	fileHandler := handler.NewFileHandler(fileService, appConfig.Upload.MaxFileSizeBytes+(1<<20))
	folderHandler := handler.NewFolderHandler(folderService, archiveService)
	shareHandler := handler.NewShareHandler(shareService, fileService)
	userHandler := handler.NewUserHandler(userService, quotaService, archiveService)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Share-Password"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// HTTP маршруты
	r.Route("/v1", func(r chi.Router) {
		// Публичный доступ по токену ссылки
		r.Route("/shares/shared/{token}", func(r chi.Router) {
			r.Post("/", shareHandler.Resolve)
			r.Post("/download", shareHandler.ResolveDownload)
		})

		// Чтение: без токена доступны только публичные ресурсы
		r.Group(func(r chi.Router) {
			r.Use(handler.OptionalAuthenticator(verifier))

			r.Get("/files/{id}", fileHandler.Get)
			r.Get("/files/{id}/download", fileHandler.Download)
			r.Get("/folders/{id}", folderHandler.Get)
			r.Get("/folders/{id}/contents", folderHandler.Contents)
		})

		r.Group(func(r chi.Router) {
			r.Use(handler.Authenticator(verifier, userService))

			r.Route("/files", func(r chi.Router) {
				r.Post("/upload", fileHandler.Upload)
				r.Get("/", fileHandler.List)
				r.Put("/{id}", fileHandler.Update)
				r.Delete("/{id}", fileHandler.Delete)
			})

			r.Route("/folders", func(r chi.Router) {
				r.Post("/", folderHandler.Create)
				r.Get("/", folderHandler.List)
				r.Get("/tree", folderHandler.Tree)
				r.Get("/{id}/download", folderHandler.Archive)
				r.Put("/{id}", folderHandler.Update)
				r.Delete("/{id}", folderHandler.Delete)
			})

			r.Route("/shares", func(r chi.Router) {
				r.Post("/", shareHandler.Create)
				r.Get("/", shareHandler.List)
				r.Delete("/{id}", shareHandler.Delete)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/profile", userHandler.Profile)
				r.Put("/profile", userHandler.UpdateProfile)
				r.Post("/profile/image", userHandler.UploadProfileImage)
				r.Get("/quota", userHandler.Quota)
				r.Get("/export", userHandler.Export)
				r.Delete("/account", userHandler.DeleteAccount)
			})
		})
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	// Канал для сигналов завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Периодическая сверка счётчиков квот с каталогом файлов
	reconcileTicker := time.NewTicker(1 * time.Hour)
	stopReconcile := make(chan struct{})
	go func() {
		for {
			select {
			case <-reconcileTicker.C:
				if err := quotaService.ReconcileAll(context.Background()); err != nil {
					log.Printf("Error during quota reconciliation: %v", err)
				}
			case <-stopReconcile:
				reconcileTicker.Stop()
				return
			}
		}
	}()

	// Ожидаем сигнал завершения
	<-quit
	close(stopReconcile)
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}
