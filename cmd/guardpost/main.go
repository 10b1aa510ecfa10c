package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"strings"
	"syscall"
	"time"

	"guardpost/config"
	"guardpost/internal/detect"
	"guardpost/internal/engine"
	inputredis "guardpost/internal/input/redis"
	"guardpost/internal/logger"
	"guardpost/internal/metrics"
	"guardpost/internal/output/actionjson"
	"guardpost/internal/output/actionredis"
	"guardpost/internal/output/audithttp"
	"guardpost/internal/output/auditjson"
	"guardpost/internal/output/dmredis"
	"guardpost/internal/pipeline"
	"guardpost/internal/policy"
	"guardpost/internal/rules"
	"guardpost/internal/sched"
	"guardpost/internal/suspicion"
	"guardpost/internal/verify"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("guardpost.yml"); err == nil {
		return "guardpost.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "guardpost.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "guardpost.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.GuardPost.Input.Redis.Addr == "" {
		cfg.GuardPost.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.GuardPost.Input.Redis.Key == "" {
		cfg.GuardPost.Input.Redis.Key = "guardpost_events"
	}
	if cfg.GuardPost.Input.Redis.BlockTimeout == 0 {
		cfg.GuardPost.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if cfg.GuardPost.Pipeline.Workers <= 0 {
		cfg.GuardPost.Pipeline.Workers = 4
	}

	if cfg.GuardPost.Engine.DecayPeriod <= 0 {
		cfg.GuardPost.Engine.DecayPeriod = 10 * time.Minute
	}
	if cfg.GuardPost.Engine.DecayAmount <= 0 {
		cfg.GuardPost.Engine.DecayAmount = 1
	}
	if cfg.GuardPost.Engine.VerificationTimeout <= 0 {
		cfg.GuardPost.Engine.VerificationTimeout = 5 * time.Minute
	}
	if cfg.GuardPost.Engine.SweepInterval <= 0 {
		cfg.GuardPost.Engine.SweepInterval = time.Minute
	}

	if cfg.GuardPost.Actions.Mode == "" {
		cfg.GuardPost.Actions.Mode = "file"
	}
	if cfg.GuardPost.Actions.File.Path == "" {
		cfg.GuardPost.Actions.File.Path = "output/actions.jsonl"
	}
	if cfg.GuardPost.Actions.Redis.Key == "" {
		cfg.GuardPost.Actions.Redis.Key = "guardpost_actions"
	}

	if cfg.GuardPost.Audit.Mode == "" {
		cfg.GuardPost.Audit.Mode = "file"
	}
	if cfg.GuardPost.Audit.File.Path == "" {
		cfg.GuardPost.Audit.File.Path = "output/audit.jsonl"
	}

	if cfg.GuardPost.DM.Redis.Key == "" {
		cfg.GuardPost.DM.Redis.Key = "guardpost_dms"
	}

	if cfg.GuardPost.Metrics.Addr == "" {
		cfg.GuardPost.Metrics.Addr = ":9311"
	}

	if cfg.GuardPost.Logging.Level == "" {
		cfg.GuardPost.Logging.Level = "info"
	}
}

func main() {
	configArg := ""
	if len(os.Args) > 1 {
		configArg = os.Args[1]
	}
	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyDefaults(cfg)

	gp := cfg.GuardPost
	if err := logger.Init(gp.Logging.Enabled, gp.Logging.Level, gp.Logging.File, gp.Logging.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Infof("GuardPost starting")
	logger.Infof("Config loaded from: %s", configPath)

	consumer, err := inputredis.NewConsumer(inputredis.Config{
		Addr:         gp.Input.Redis.Addr,
		Password:     gp.Input.Redis.Password,
		DB:           gp.Input.Redis.DB,
		Key:          gp.Input.Redis.Key,
		BlockTimeout: gp.Input.Redis.BlockTimeout,
	})
	if err != nil {
		logger.Errorf("Failed to create Redis consumer: %v", err)
		log.Fatalf("Failed to create Redis consumer: %v", err)
	}

	var ruleEngine rules.Engine = &rules.NoopEngine{}
	if gp.Rules.Enabled {
		if strings.TrimSpace(gp.Rules.Path) == "" {
			logger.Warnf("Rules enabled but rules.path is empty; content tagging disabled")
		} else {
			sigmaEngine, stats, err := rules.NewSigmaEngine(gp.Rules.Path)
			if err != nil {
				logger.Errorf("Failed to load Sigma rules from %s: %v", gp.Rules.Path, err)
				log.Fatalf("Failed to load Sigma rules: %v", err)
			}
			ruleEngine = sigmaEngine
			logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_datasource=%d skipped_invalid=%d files=%d",
				stats.Loaded,
				stats.SkippedComplex,
				stats.SkippedDatasource,
				stats.SkippedInvalid,
				stats.TotalFiles,
			)
			if stats.Loaded == 0 {
				logger.Warnf("No compatible Sigma rules loaded; content tagging is effectively disabled")
			}
		}
	}

	base := gp.Policy.Default
	if reflect.DeepEqual(base, policy.Policy{}) {
		base = policy.DefaultPolicy()
	}
	if err := base.Validate(); err != nil {
		logger.Warnf("Default policy invalid, arbiter will use verification fallback: %v", err)
	}
	policies := policy.NewStore(base, gp.Policy.Guilds)

	prefilter := detect.NewPrefilter()

	ledger := suspicion.NewLedger(suspicion.Config{
		DecayPeriod: gp.Engine.DecayPeriod,
		DecayAmount: gp.Engine.DecayAmount,
	})

	verifier := verify.NewMachine(verify.Config{Timeout: gp.Engine.VerificationTimeout})
	timers := sched.NewScheduler()

	var actionWriter engine.ActionWriter
	switch gp.Actions.Mode {
	case "redis":
		w, err := actionredis.NewWriter(actionredis.Config{
			Addr:     gp.Actions.Redis.Addr,
			Password: gp.Actions.Redis.Password,
			DB:       gp.Actions.Redis.DB,
			Key:      gp.Actions.Redis.Key,
		})
		if err != nil {
			log.Fatalf("Failed to create action Redis writer: %v", err)
		}
		actionWriter = w
		logger.Infof("Action output mode: redis (%s)", gp.Actions.Redis.Key)
	case "file":
		w, err := actionjson.NewWriter(gp.Actions.File.Path)
		if err != nil {
			log.Fatalf("Failed to create action file writer: %v", err)
		}
		actionWriter = w
		logger.Infof("Action output mode: file (%s)", gp.Actions.File.Path)
	default:
		log.Fatalf("Unknown action output mode: %s", gp.Actions.Mode)
	}

	var auditWriter engine.AuditWriter
	switch gp.Audit.Mode {
	case "file":
		w, err := auditjson.NewWriter(gp.Audit.File.Path)
		if err != nil {
			log.Fatalf("Failed to create audit file writer: %v", err)
		}
		auditWriter = w
		logger.Infof("Audit output mode: file (%s)", gp.Audit.File.Path)
	case "http":
		w, err := audithttp.NewWriter(audithttp.Config{
			URL:     gp.Audit.HTTP.URL,
			Timeout: gp.Audit.HTTP.Timeout,
			Headers: gp.Audit.HTTP.Headers,
		})
		if err != nil {
			log.Fatalf("Failed to create audit HTTP writer: %v", err)
		}
		auditWriter = w
		logger.Infof("Audit output mode: http (%s)", gp.Audit.HTTP.URL)
	default:
		log.Fatalf("Unknown audit output mode: %s", gp.Audit.Mode)
	}

	dmWriter, err := dmredis.NewWriter(dmredis.Config{
		Addr:     gp.DM.Redis.Addr,
		Password: gp.DM.Redis.Password,
		DB:       gp.DM.Redis.DB,
		Key:      gp.DM.Redis.Key,
	})
	if err != nil {
		log.Fatalf("Failed to create DM writer: %v", err)
	}

	eng := engine.New(engine.Deps{
		Policies:  policies,
		Scorer:    detect.NewScorer(),
		Prefilter: prefilter,
		Rules:     ruleEngine,
		Ledger:    ledger,
		Verifier:  verifier,
		Timers:    timers,
		Actions:   actionWriter,
		Audits:    auditWriter,
		DMs:       dmWriter,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go ledger.Run(ctx)
	go prefilter.Run(ctx.Done(), gp.Engine.SweepInterval)

	if gp.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(gp.Metrics.Addr); err != nil {
				logger.Errorf("Metrics endpoint failed: %v", err)
			}
		}()
	}

	pipe := pipeline.NewPipeline(consumer, eng, gp.Pipeline.Workers)
	go func() {
		if err := pipe.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Pipeline error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()
	time.Sleep(1 * time.Second)

	timers.Stop()
	if err := pipe.Close(); err != nil {
		logger.Errorf("Error closing pipeline: %v", err)
	}
	if err := actionWriter.Close(); err != nil {
		logger.Errorf("Error closing action writer: %v", err)
	}
	if err := auditWriter.Close(); err != nil {
		logger.Errorf("Error closing audit writer: %v", err)
	}
	if err := dmWriter.Close(); err != nil {
		logger.Errorf("Error closing dm writer: %v", err)
	}

	logger.Infof("GuardPost stopped")
}
