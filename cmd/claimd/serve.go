package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stake-plus/claimd/src/audit"
	"github.com/stake-plus/claimd/src/claim"
	"github.com/stake-plus/claimd/src/cloud"
	"github.com/stake-plus/claimd/src/cloudclient"
	"github.com/stake-plus/claimd/src/config"
	"github.com/stake-plus/claimd/src/data"
	"github.com/stake-plus/claimd/src/link"
	"github.com/stake-plus/claimd/src/logging"
	"github.com/stake-plus/claimd/src/notify"
	"github.com/stake-plus/claimd/src/prooftoken"
	"github.com/stake-plus/claimd/src/shared/fsx"
	"github.com/stake-plus/claimd/src/webserver"
)

const (
	stateDirMode  = 0o750
	probeTimeout  = 30 * time.Second
	headerTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the claim API and the cloud connectivity monitor",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fsx.EnsureDir(cfg.StateDir, stateDirMode); err != nil {
		return fmt.Errorf("state dir: %w", err)
	}

	db, err := data.Open(cfg.DatabaseDSN, cfg.StateDir, log)
	if err != nil {
		return err
	}
	node, err := data.LoadOrCreateIdentity(ctx, db)
	if err != nil {
		return fmt.Errorf("node identity: %w", err)
	}
	settings := data.NewSettings(db)
	if err := settings.Load(ctx); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	transport := config.NewTransport(cfg, settings)

	hostname, _ := os.Hostname()
	identity := claim.Identity{
		MachineGUID: node.MachineGUID,
		NodeID:      node.NodeID,
		Hostname:    hostname,
		Version:     version,
	}
	log = log.With(zap.String("node_id", node.NodeID))

	monitor := link.New(link.Options{
		Store:         data.NewClaimStore(db),
		Prober:        link.HTTPProber{NodeID: node.NodeID, Settings: transport, Timeout: probeTimeout},
		ReloadTimeout: cfg.ReloadTimeout,
		ProbeInterval: cfg.ProbeInterval,
		Logger:        log,
	})
	if err := monitor.Restore(ctx); err != nil {
		return fmt.Errorf("restore claim state: %w", err)
	}

	tokens := prooftoken.New(cfg.StateDir, log)
	if err := tokens.Generate(); err != nil {
		// claims stay possible once a later rotation manages to write the file
		log.Warn("proof token file not written", zap.Error(err))
	}

	sinks, closeSinks := buildSinks(ctx, cfg, db, hostname, log)
	defer closeSinks()

	orch := claim.New(claim.Deps{
		Tokens: tokens,
		Status: cloud.NewEvaluator(monitor),
		Claimer: cloudclient.New(cloudclient.Options{
			StateDir: cfg.StateDir,
			Identity: identity,
			Recorder: monitor,
			Logger:   log,
		}),
		Reloader: monitor,
		Settings: transport,
		Builder:  claim.NewBuilder(identity, claim.PlatformFor(cfg.Platform), tokens),
		Observer: audit.NewRecorder(log, sinks...),
		Logger:   log,
	})

	limiter := webserver.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	go limiter.Run(ctx)
	go monitor.Run(ctx)

	router, err := webserver.New(webserver.RouterConfig{
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxies,
		Limiter:        limiter,
		Logger:         log,
	}, webserver.NewClaim(orch))
	if err != nil {
		return err
	}

	var reloader *webserver.TLSReloader
	if cfg.TLSEnabled() {
		reloader, err = webserver.NewTLSReloader(cfg.TLSCert, cfg.TLSKey, log)
		if err != nil {
			return fmt.Errorf("tls: %w", err)
		}
		go reloader.Watch(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: headerTimeout,
	}
	return webserver.Serve(ctx, srv, reloader, log)
}

// buildSinks always records to the database; redis and discord are added
// when configured. A sink that cannot be set up is logged and skipped.
func buildSinks(ctx context.Context, cfg config.Config, db *gorm.DB, hostname string, log *zap.Logger) ([]audit.Sink, func()) {
	sinks := []audit.Sink{audit.DBSink{DB: db}}
	var closers []func()

	if cfg.RedisURL != "" {
		rdb, err := data.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, claim events not streamed", zap.Error(err))
		} else {
			sinks = append(sinks, audit.StreamSink{RDB: rdb})
			log.Info("streaming claim events to redis", zap.String("stream", data.StreamName()))
			closers = append(closers, func() { _ = rdb.Close() })
		}
	}

	if cfg.DiscordToken != "" && cfg.DiscordChannel != "" {
		sess, err := notify.NewDiscordSession(cfg.DiscordToken)
		if err != nil {
			log.Warn("discord unavailable", zap.Error(err))
		} else {
			sinks = append(sinks, notify.NewDiscord(sess, cfg.DiscordChannel, hostname))
			closers = append(closers, func() { _ = sess.Close() })
		}
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}
