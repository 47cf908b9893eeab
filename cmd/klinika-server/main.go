package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/klinika/klinika/internal/config"
	"github.com/klinika/klinika/internal/domain/billing"
	"github.com/klinika/klinika/internal/domain/clinicadmin"
	"github.com/klinika/klinika/internal/domain/clinical"
	"github.com/klinika/klinika/internal/domain/identity"
	"github.com/klinika/klinika/internal/domain/patient"
	"github.com/klinika/klinika/internal/domain/pharmacy"
	"github.com/klinika/klinika/internal/domain/purchasing"
	"github.com/klinika/klinika/internal/domain/queue"
	"github.com/klinika/klinika/internal/platform/auth"
	"github.com/klinika/klinika/internal/platform/db"
	"github.com/klinika/klinika/internal/platform/middleware"
	"github.com/klinika/klinika/internal/platform/upload"
)

func main() {
	root := &cobra.Command{
		Use:   "klinika-server",
		Short: "Clinic management backend",
	}
	root.AddCommand(serveCmd(), migrateCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func setupLogger(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	log.Logger = logger
	return logger
}

func mustLoad(ctx context.Context) (*config.Config, *pgxpool.Pool, zerolog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}
	logger := setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	pool, err := db.NewPool(ctx, db.PoolOptions{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to database")
	}
	return cfg, pool, logger
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			cfg, pool, logger := mustLoad(ctx)
			defer pool.Close()

			e := buildServer(cfg, pool, logger)

			go func() {
				addr := ":" + cfg.Port
				logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server starting")
				if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server stopped")
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("graceful shutdown failed")
			}
			logger.Info().Msg("server stopped")
		},
	}
}

func buildServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.Logger(logger))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	e.GET("/health", func(c echo.Context) error {
		status := "ok"
		code := http.StatusOK
		if err := pool.Ping(c.Request().Context()); err != nil {
			status = "database unreachable"
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, map[string]string{"status": status})
	})
	e.Static("/storage", cfg.UploadDir)

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	tx := db.NewTxFunc(pool)
	files := upload.NewStore(cfg.UploadDir)

	// Repositories
	userRepo := identity.NewUserRepoPG(pool)
	roleRepo := identity.NewRoleRepoPG(pool)
	permRepo := identity.NewPermissionRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	departmentRepo := clinicadmin.NewDepartmentRepoPG(pool)
	serviceRepo := clinicadmin.NewServiceRepoPG(pool)
	profileRepo := clinicadmin.NewProfileRepoPG(pool)
	icdRepo := clinicadmin.NewICDRepoPG(pool)
	queueSettingRepo := queue.NewSettingRepoPG(pool)
	queueRepo := queue.NewRepoPG(pool)
	recordRepo := clinical.NewRecordRepoPG(pool)
	prescriptionRepo := clinical.NewPrescriptionRepoPG(pool)
	medicineRepo := pharmacy.NewMedicineRepoPG(pool)
	batchRepo := pharmacy.NewBatchRepoPG(pool)
	movementRepo := pharmacy.NewMovementRepoPG(pool)
	supplierRepo := purchasing.NewSupplierRepoPG(pool)
	orderRepo := purchasing.NewOrderRepoPG(pool)
	receiptRepo := purchasing.NewReceiptRepoPG(pool)
	invoiceRepo := billing.NewRepoPG(pool)

	// Services
	identitySvc := identity.NewService(userRepo, roleRepo, permRepo, issuer)
	patientSvc := patient.NewService(patientRepo)
	clinicSvc := clinicadmin.NewService(departmentRepo, serviceRepo, profileRepo, icdRepo, files)
	queueSvc := queue.NewService(queueSettingRepo, queueRepo, departmentRepo, tx)
	pharmacySvc := pharmacy.NewService(medicineRepo, batchRepo, movementRepo, tx)
	purchasingSvc := purchasing.NewService(supplierRepo, orderRepo, receiptRepo, pharmacySvc, tx)
	clinicalSvc := clinical.NewService(recordRepo, prescriptionRepo, patientRepo, pharmacySvc, tx)
	billingSvc := billing.NewService(invoiceRepo, patientRepo, tx)

	api := e.Group("/api/v1")
	identity.NewHandler(identitySvc).RegisterPublic(api)

	protected := api.Group("", auth.Middleware(issuer, identitySvc))
	identity.NewHandler(identitySvc).Register(protected)
	patient.NewHandler(patientSvc).Register(protected)
	clinicadmin.NewHandler(clinicSvc).Register(protected)
	queue.NewHandler(queueSvc).Register(protected)
	clinical.NewHandler(clinicalSvc).Register(protected)
	pharmacy.NewHandler(pharmacySvc).Register(protected)
	purchasing.NewHandler(purchasingSvc).Register(protected)
	billing.NewHandler(billingSvc).Register(protected)

	return e
}

func migrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate [up|status]",
		Short: "Apply or inspect database migrations",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			_, pool, logger := mustLoad(ctx)
			defer pool.Close()

			m := db.NewMigrator(pool, dir)
			switch args[0] {
			case "up":
				n, err := m.Up(ctx)
				if err != nil {
					logger.Fatal().Err(err).Msg("migrate up")
				}
				logger.Info().Int("applied", n).Msg("migrations applied")
			case "status":
				statuses, err := m.Status(ctx)
				if err != nil {
					logger.Fatal().Err(err).Msg("migration status")
				}
				for _, s := range statuses {
					state := "pending"
					if s.Applied {
						state = "applied " + s.AppliedAt.Format(time.RFC3339)
					}
					fmt.Printf("%03d %-40s %s\n", s.Version, s.Name, state)
				}
			default:
				logger.Fatal().Str("arg", args[0]).Msg("expected up or status")
			}
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "migrations", "migrations directory")
	return cmd
}

func seedCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed permissions, the super-admin role, and the initial admin",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			cfg, pool, logger := mustLoad(ctx)
			defer pool.Close()

			issuer := auth.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
			svc := identity.NewService(
				identity.NewUserRepoPG(pool),
				identity.NewRoleRepoPG(pool),
				identity.NewPermissionRepoPG(pool),
				issuer,
			)
			if err := svc.Seed(ctx, email, password); err != nil {
				logger.Fatal().Err(err).Msg("seed")
			}
			logger.Info().Msg("seed complete")
		},
	}
	cmd.Flags().StringVar(&email, "admin-email", "admin@klinika.local", "initial admin email")
	cmd.Flags().StringVar(&password, "admin-password", "admin123", "initial admin password")
	return cmd
}
