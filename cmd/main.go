package main

import (
	"log"

	infra "github.com/edforge/course-player/internal/infrastructure"
	"github.com/edforge/course-player/internal/infrastructure/driver"
	"github.com/edforge/course-player/internal/infrastructure/logging"
	"github.com/edforge/course-player/internal/infrastructure/uuid"
	ihttp "github.com/edforge/course-player/internal/interfaces/http"
	"github.com/edforge/course-player/internal/journal"
	"github.com/edforge/course-player/internal/progression"
	"github.com/edforge/course-player/internal/upstream"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	godotenv.Load()
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	logger = logger.With(
		zap.String("service.id", option.AppID),
	)
	defer logger.Sync()

	dbConn, err := driver.GetDBConnection(&driver.DBConfig{
		User:     option.Database.User,
		Password: option.Database.Password,
		MaxConn:  option.Database.MaxConn,
		Protocol: option.Database.Protocol,
		Driver:   option.Database.Driver,
		Host:     option.Database.Host,
		Port:     option.Database.Port,
		Query:    option.Database.Query,
		Schema:   option.Database.Schema,
	})
	if err != nil {
		log.Fatalf("Failed to create DB connection: %s\n", err)
	}
	logger.Debug("Create db connection instance", zap.String("db.driver", option.Database.Driver),
		zap.String("db.schema", option.Database.Schema),
		zap.String("db.host", option.Database.Host),
	)

	rdb := driver.NewRedisClient(option.KVStore.Host, option.KVStore.Port, option.KVStore.Password)

	gateway, err := upstream.New(upstream.Options{
		BaseURL:    option.Upstream.BaseURL,
		APIKey:     option.Upstream.APIKey,
		Timeout:    option.Upstream.Timeout,
		MaxRetries: option.Upstream.MaxRetries,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("Failed to create upstream client: %s\n", err)
	}
	logger.Debug("Create upstream LMS client", zap.String("url.full", option.Upstream.BaseURL))

	UUIDGenerator := uuid.NewNanoIDGenerator(option.Security.IDLength)
	Journal := journal.NewSQLJournal(dbConn, logger)
	Manager := progression.NewManager(gateway, Journal, rdb, UUIDGenerator, logger)

	ihttp.Serve(dbConn, rdb, option, Manager, logger)
}
