package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"algodrive/internal/auth"
	"algodrive/internal/config"
	"algodrive/internal/domain"
	"algodrive/internal/handler"
	"algodrive/internal/repository"
	"algodrive/internal/service"
	"algodrive/internal/storage"
)

func connectWithRetry(cfg *config.Config, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	dsn := cfg.Database.GetDSN()

	// Сначала подключаемся к базе postgres (системная база, которая всегда существует)
	pgDSN := strings.Replace(dsn, "dbname="+cfg.Database.Name, "dbname=postgres", 1)
	pgDB, err := sqlx.Connect("postgres", pgDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %v", err)
	}
	defer pgDB.Close()

	// Проверяем, существует ли целевая база данных
	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", cfg.Database.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %v", err)
	}

	// Если базы нет, создаем её
	if !exists {
		log.Printf("Database %s does not exist, creating...", cfg.Database.Name)
		_, err = pgDB.Exec(fmt.Sprintf("CREATE DATABASE %s", cfg.Database.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	var db *sqlx.DB
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", cfg.Database.GetURL())
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

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func newStore(cfg *config.Config) (storage.Store, func(), error) {
	switch cfg.Storage.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		var err error
		for i := 0; i < 5; i++ {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err = client.Ping(ctx).Err()
			cancel()
			if err == nil {
				return storage.NewRedisStore(client), func() { client.Close() }, nil
			}
			log.Printf("Failed to ping redis (attempt %d/5): %v", i+1, err)
			time.Sleep(time.Second * 2)
		}
		return nil, nil, fmt.Errorf("failed to connect to redis after retries: %w", err)

	case "postgres":
		db, err := connectWithRetry(cfg, 5, time.Second*5)
		if err != nil {
			return nil, nil, err
		}

		if err := runMigrations(cfg); err != nil {
			db.Close()
			return nil, nil, err
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		return storage.NewPostgresStore(db), func() { db.Close() }, nil

	case "memory":
		return storage.NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}

// seedDefaultQuota засеивает limits/defaultLimit из конфигурации, если
// квота еще не задана. Без нее резервирование фатально падает на каждом
// запросе.
func seedDefaultQuota(ctx context.Context, store storage.Store, cfg *config.Config) error {
	var existing domain.UploadQuota
	found, err := store.Read(ctx, repository.DefaultQuotaKey, &existing)
	if err != nil {
		return fmt.Errorf("failed to read default quota: %w", err)
	}
	if found {
		log.Printf("Default quota already present: max_amount=%d, max_upload_size_KB=%d",
			existing.MaxAmount, existing.MaxUploadSizeKB)
		return nil
	}

	quota := domain.UploadQuota{
		CurAmount:       0,
		MaxAmount:       cfg.Quota.MaxAmount,
		MaxUploadSizeKB: cfg.Quota.MaxUploadSizeKB,
	}
	if err := store.Set(ctx, repository.DefaultQuotaKey, &quota); err != nil {
		return fmt.Errorf("failed to seed default quota: %w", err)
	}

	log.Printf("Seeded default quota: max_amount=%d, max_upload_size_KB=%d",
		quota.MaxAmount, quota.MaxUploadSizeKB)
	return nil
}

func main() {
	// Загружаем конфигурации
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	authConfig, err := auth.NewConfig(".auth.env")
	if err != nil {
		log.Fatalf("Failed to load auth config: %v", err)
	}
	auth.Init(authConfig)

	// Подключаемся к хранилищу
	store, closeStore, err := newStore(appConfig)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer closeStore()

	log.Printf("Using storage driver: %s", appConfig.Storage.Driver)

	if err := seedDefaultQuota(context.Background(), store, appConfig); err != nil {
		log.Fatalf("Failed to seed default quota: %v", err)
	}

	// Инициализация репозиториев и сервисов
	quotaRepo := repository.NewQuotaRepository(store)
	recordRepo := repository.NewRecordRepository(store)
	uploadService := service.NewUploadService(quotaRepo, recordRepo)
	recordHandler := handler.NewRecordHandler(uploadService)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// HTTP маршруты
	r.Get("/", recordHandler.Welcome)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", recordHandler.Health)
		r.Get("/download/{uid}", recordHandler.Download)
		r.Post("/upload", recordHandler.Upload)
		r.Get("/records", recordHandler.ListRecords)
		r.Get("/quota", recordHandler.GetQuotaInfo)
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

	// Ожидаем сигнал завершения
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	log.Println("Server exited properly")
}
