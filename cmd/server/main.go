package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"verigate/internal/audit"
	auditpg "verigate/internal/audit/store/postgres"
	"verigate/internal/challenge"
	challengepg "verigate/internal/challenge/store/postgres"
	challengeredis "verigate/internal/challenge/store/redis"
	"verigate/internal/notify"
	"verigate/internal/notify/kafka"
	"verigate/internal/platform/config"
	"verigate/internal/platform/httpserver"
	"verigate/internal/platform/logger"
	pgplatform "verigate/internal/platform/postgres"
	redisplatform "verigate/internal/platform/redis"
	httptransport "verigate/internal/transport/http"
	"verigate/internal/verification"
	"verigate/internal/verification/coordinator"
	"verigate/internal/verification/guard"
	"verigate/internal/verification/metrics"
	"verigate/internal/verification/providers/stub"
	"verigate/internal/verification/scorer"
	"verigate/internal/verification/store/legacy"
	verificationpg "verigate/internal/verification/store/postgres"
	"verigate/internal/wallet"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := pgplatform.Open(cfg.Postgres)
	if err != nil {
		log.Error("postgres open failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := pgplatform.Migrate(ctx, db); err != nil {
		log.Error("postgres migration failed", "error", err)
		os.Exit(1)
	}

	rds, err := redisplatform.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	defer rds.Close()

	var notifier notify.Notifier
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("kafka publisher init failed", "error", err)
			os.Exit(1)
		}
		notifier = publisher
	} else {
		log.Warn("kafka brokers not configured, status events go to the log")
		notifier = &notify.LogNotifier{Logger: log}
	}
	defer notifier.Close()

	pipelineMetrics := metrics.New()
	auditor := audit.NewRecorder(auditpg.New(db), log)

	coord, err := coordinator.New(
		verificationpg.New(db),
		legacy.New(rds.Client),
		auditor,
		log,
		coordinator.WithMetrics(pipelineMetrics),
	)
	if err != nil {
		log.Error("coordinator init failed", "error", err)
		os.Exit(1)
	}

	// Deterministic providers stand in until the vendor adapters land.
	// TODO: replace with the vendor SDK adapters once contracts are signed.
	comparator := stub.NewComparator(92)
	comparator.Threshold = cfg.Pipeline.FaceMatchThreshold
	providerSet := verification.Providers{
		Analyzer:   stub.NewAnalyzer(96, nil),
		Comparator: comparator,
		Liveness:   stub.NewLiveness(95),
		Background: stub.NewBackground(),
	}

	verificationService, err := verification.NewService(
		coord,
		providerSet,
		guard.NewRedis(rds.Client),
		notifier,
		verification.ServiceConfig{
			Scorer: scorer.Config{
				AutoApproveOverall: cfg.Pipeline.AutoApproveOverall,
				FaceMinQuality:     cfg.Pipeline.FaceMinQuality,
				LivenessThreshold:  cfg.Pipeline.LivenessThreshold,
				ReviewFloor:        cfg.Pipeline.ReviewFloor,
			},
			SubmissionTimeout: cfg.Pipeline.SubmissionTimeout,
			VerificationFee:   cfg.Wallet.VerificationFee,
		},
		log,
		verification.WithMetrics(pipelineMetrics),
		verification.WithWallet(wallet.New(db, log)),
	)
	if err != nil {
		log.Error("verification service init failed", "error", err)
		os.Exit(1)
	}

	challengeService, err := challenge.NewService(
		challengepg.New(db),
		challengeredis.New(rds.Client),
		auditor,
		log,
		challenge.Config{
			CodeTTL:       cfg.Challenge.CodeTTL,
			CodeLength:    cfg.Challenge.CodeLength,
			MaxAttempts:   cfg.Challenge.MaxAttempts,
			SubjectLimit:  cfg.Challenge.SubjectLimit,
			DeviceLimit:   cfg.Challenge.DeviceLimit,
			AddressLimit:  cfg.Challenge.AddressLimit,
			Window:        cfg.Challenge.Window,
			SweepInterval: cfg.Challenge.SweepInterval,
		},
	)
	if err != nil {
		log.Error("challenge service init failed", "error", err)
		os.Exit(1)
	}
	if !cfg.Challenge.DisableSweeper {
		challengeService.StartSweeper(ctx)
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		KYC:  httptransport.NewKYCHandler(verificationService, log),
		OTP:  httptransport.NewOTPHandler(challengeService),
		Auth: httptransport.NewAuthenticator(cfg.JWTSigningKey),
		Health: []httptransport.HealthCheck{
			{Name: "postgres", Probe: db.PingContext},
			{Name: "redis", Probe: rds.Health},
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("verigate listening", "addr", cfg.Addr)
	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("shut down cleanly")
}
