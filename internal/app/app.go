// Package app wires the admission engine together: database, settings
// snapshot, gate, arbiter, governance, and the HTTP surfaces.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/limitwarden/limitwarden/internal/arbiter"
	"github.com/limitwarden/limitwarden/internal/config"
	"github.com/limitwarden/limitwarden/internal/db"
	"github.com/limitwarden/limitwarden/internal/gate"
	"github.com/limitwarden/limitwarden/internal/governance"
	adminapi "github.com/limitwarden/limitwarden/internal/http/api/admin"
	"github.com/limitwarden/limitwarden/internal/http/api/ingress"
	"github.com/limitwarden/limitwarden/internal/metrics"
	"github.com/limitwarden/limitwarden/internal/oracle"
	"github.com/limitwarden/limitwarden/internal/policy"
	"github.com/limitwarden/limitwarden/internal/revenue"
	internalsettings "github.com/limitwarden/limitwarden/internal/settings"
	"github.com/limitwarden/limitwarden/internal/surge"
	"github.com/limitwarden/limitwarden/internal/tier"
	"github.com/limitwarden/limitwarden/internal/watcher"
	"github.com/limitwarden/limitwarden/internal/window"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the admission engine with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errBind := internalsettings.Bind(conn); errBind != nil {
		return errBind
	}
	if errAdmin := EnsureDefaultAdmin(conn); errAdmin != nil {
		return errAdmin
	}

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	if port <= 0 {
		port = config.LoadPort(configPath)
	}

	metrics.Register(nil)

	catalog := tier.NewCatalog(catalogTiers(config.LoadTiers(configPath)))
	store := policy.NewStore(catalog, nil)
	windows := window.NewCollector(window.DefaultCapacity)
	predictor := surge.NewPredictor(window.DefaultCapacity)
	ledger := revenue.NewLedger(catalog)
	admissionGate := gate.New(store, windows, ledger, gate.LoadSettingsConfig, nil, nil)

	oracleCfg := config.LoadOracleConfig(configPath)
	oracleClient := oracle.NewClient(oracle.Config{
		BaseURL: oracleCfg.BaseURL,
		Model:   oracleCfg.Model,
		Timeout: oracleCfg.Timeout(),
	})

	queue := governance.NewQueue(conn, store, nil)
	runner := governance.NewRunner(queue)
	arb := arbiter.New(conn, store, windows, predictor, oracleClient, queue, catalog, nil)
	settingsWatcher := watcher.New(conn)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	adminapi.RegisterAdminRoutes(engine, conn, jwtConfig, adminapi.Deps{
		Store:     store,
		Gate:      admissionGate,
		Windows:   windows,
		Predictor: predictor,
		Ledger:    ledger,
		Queue:     queue,
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	ingress.RegisterIngressRoutes(engine, ingress.New(
		admissionGate,
		config.LoadAPIKeys(configPath),
		config.LoadBackendURL(configPath),
	))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	settingsWatcher.Start(runCtx)
	defer settingsWatcher.Stop()
	runner.Start(runCtx)
	defer runner.Stop()
	arb.Start(runCtx)
	defer arb.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}

	go func() {
		<-runCtx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting admission engine on :%d (config=%s gate=%s)", port, configPath, admissionGate.DebugString())
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	return nil
}

// catalogTiers converts config tier specs into catalog entries.
func catalogTiers(specs []config.TierSpec) []tier.Tier {
	out := make([]tier.Tier, 0, len(specs))
	for _, s := range specs {
		out = append(out, tier.Tier{
			Name:          s.Name,
			BaselineRPS:   s.BaselineRPS,
			CapRPS:        s.CapRPS,
			Burst:         s.Burst,
			RevenueWeight: s.RevenueWeight,
		})
	}
	return out
}
