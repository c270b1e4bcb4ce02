package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"dispatch-service/internal/auth"
	"dispatch-service/internal/config"
	"dispatch-service/internal/db"
	"dispatch-service/internal/export"
	"dispatch-service/internal/geocode"
	httphandler "dispatch-service/internal/http"
	"dispatch-service/internal/http/middleware"
	"dispatch-service/internal/logger"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/numbering"
	"dispatch-service/internal/repository"
	"dispatch-service/internal/service"
	"dispatch-service/internal/storage"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dispatch-service",
	Short: "Fire department dispatch backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		if _, err := db.New(cfg, log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info().Msg("migrations applied")
		return nil
	},
}

var (
	exportOperation string
	exportFormat    string
	exportOut       string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the journal of an operation as PDF or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		database, err := db.Open(cfg, log)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}

		journal := service.NewJournalService(repository.NewStore(database))
		data, err := journal.ExportByNumber(cmd.Context(), exportOperation, exportFormat)
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if exportOut != "" && exportOut != "-" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
		log.Info().Str("operation", exportOperation).Str("format", exportFormat).Int("bytes", len(data)).Msg("journal exported")
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOperation, "operation", "", "operation number, e.g. "+numbering.OperationNumber(2024, 1))
	exportCmd.Flags().StringVar(&exportFormat, "format", export.FormatPDF, "pdf or xlsx")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
	_ = exportCmd.MarkFlagRequired("operation")

	rootCmd.AddCommand(serveCmd, migrateCmd, exportCmd)
}

func bootstrap() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("config error: %w", err)
	}
	return cfg, logger.New(cfg.Environment), nil
}

func serve(ctx context.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	database, err := db.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to database")
		return err
	}

	files, err := storage.NewFromConfig(ctx, cfg.Files)
	if err != nil {
		log.Error().Err(err).Str("backend", cfg.Files.Backend).Msg("failed to open file store")
		return err
	}

	handler := buildHandler(database, cfg, files, log)

	routerCfg := httphandler.RouterConfig{
		Environment:    cfg.Environment,
		AuthMiddleware: middleware.Auth(auth.NewParser(cfg.Auth.AccessSecret)),
		APIKeyAuth:     middleware.APIKey(cfg.Auth.ExternalAPIKey),
		HealthCheck: func(ctx context.Context) error {
			return db.HealthCheck(ctx, database)
		},
	}
	if cfg.MetricsEnabled {
		metrics.Init()
		routerCfg.Metrics = metrics.Handler()
	}
	router := httphandler.NewRouter(handler, routerCfg)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Str("files", cfg.Files.Backend).Msg("starting dispatch service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		return err
	}
	return nil
}

func buildHandler(database *gorm.DB, cfg *config.Config, files storage.FileStore, log zerolog.Logger) *httphandler.Handler {
	store := repository.NewStore(database)
	geocoder := geocode.NewNominatim(cfg.Geocoder.URL, cfg.Geocoder.Timeout)

	journalService := service.NewJournalService(store)
	operationService := service.NewOperationService(store, journalService)
	assignmentService := service.NewAssignmentService(store, journalService, geocoder, files, log)
	fleetService := service.NewFleetService(store, geocoder, log)
	settingsService := service.NewSettingsService(store)

	return httphandler.NewHandler(
		operationService,
		assignmentService,
		journalService,
		fleetService,
		settingsService,
		cfg.Files.MaxUploadBytes,
		log,
	)
}
