package main

import (
	"context"
	"fmt"
	"os"

	"opsflow/internal/api/handler"
	"opsflow/internal/core/postgres/repository"
	"opsflow/internal/domain"
	"opsflow/internal/infrastructure/redis"
	"opsflow/internal/log"
	"opsflow/internal/notifier"
	"opsflow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const defaultPort = 8080

func main() {
	cmd := &cli.Command{
		Name:  "opsflow-server",
		Usage: "Workflow engine for recurring business-operations processes",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Postgres connection URL",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis address for the lifecycle event bus",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("server")

	db, err := gorm.Open(postgres.Open(command.String("database-url")), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&domain.WorkflowTemplate{},
		&domain.StepTemplate{},
		&domain.Workflow{},
		&domain.WorkflowStep{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	redisClient, err := redis.NewClient(command.String("redis-url"))
	if err != nil {
		return err
	}

	bus := redis.NewEventBus(redisClient)

	templateRepo := repository.NewTemplateRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)

	workflowSvc := service.NewWorkflowService(templateRepo, workflowRepo, bus, service.SystemClock{}, log.WithModule("service"))

	relay := notifier.New(bus, log.WithModule("notifier"))
	go func() {
		if err := relay.Start(ctx); err != nil {
			logger.Error("notifier stopped", "error", err)
		}
	}()

	workflowHandler := handler.NewWorkflowHandler(workflowSvc)

	router := gin.Default()
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	workflowHandler.Register(api)

	addr := fmt.Sprintf(":%d", command.Int("port"))
	logger.Info("server starting", "addr", addr)

	return router.Run(addr)
}
