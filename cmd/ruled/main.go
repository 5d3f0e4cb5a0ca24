// ruled/cmd/ruled/main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"ruled/pkg/logging"
	"ruled/pkg/ruleset"
	"ruled/pkg/runtime"
	"ruled/pkg/store"
)

// Config represents the application configuration
type Config struct {
	RulesDir        string
	OutputDir       string
	DuplicatePolicy string
	WatchRules      bool
	HistorySize     int
	ScriptTimeoutMS int

	LogLevel       string
	LogDestination string

	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisChannels []string

	DashboardEnabled        bool
	DashboardPort           int
	DashboardUpdateInterval int
}

// Dependencies represents the external collaborators of the daemon
type Dependencies struct {
	Store     store.Store
	RuleStore *ruleset.Store
	Engine    *runtime.Engine
}

// StoreFactory is an interface for creating a store
type StoreFactory interface {
	NewStore(addr, password string, db int) store.Store
}

// EngineFactory is an interface for creating an engine
type EngineFactory interface {
	NewEngine(snapshot *ruleset.Snapshot, config *Config, eventStore store.Store) (*runtime.Engine, error)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, os.Args, &RealStoreFactory{}, &RealEngineFactory{}); err != nil {
		log.Fatal().Err(err).Msg("Application failed")
	}
}

func run(ctx context.Context, args []string, storeFactory StoreFactory, engineFactory EngineFactory) error {
	config, err := parseConfig(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := logging.ConfigureLogger(config.LogLevel, config.LogDestination); err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}

	deps, err := setupDependencies(config, storeFactory, engineFactory)
	if err != nil {
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}

	if config.DashboardEnabled {
		dashboard := runtime.NewDashboard(deps.Engine, config.DashboardPort,
			time.Duration(config.DashboardUpdateInterval)*time.Second)
		go func() {
			if err := dashboard.Start(); err != nil {
				log.Error().Err(err).Msg("Dashboard stopped")
			}
		}()
	}

	return runMainLoop(ctx, deps, config)
}

func parseConfig(args []string) (*Config, error) {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.CommandLine.Parse(args[1:])

	viper.SetConfigType("json")
	viper.SetDefault("rules.dir", "rules")
	viper.SetDefault("rules.duplicate_policy", string(ruleset.DuplicateLastWins))
	viper.SetDefault("rules.watch", true)
	viper.SetDefault("engine.output_dir", runtime.DefaultOutputDir)
	viper.SetDefault("engine.history_size", runtime.DefaultHistorySize)
	viper.SetDefault("engine.script_timeout_ms", 1000)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.output", "console")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.database", 0)
	viper.SetDefault("redis.channels", []string{"command", "file_change", "lifecycle"})
	viper.SetDefault("dashboard.enabled", false)
	viper.SetDefault("dashboard.port", 8080)
	viper.SetDefault("dashboard.update_interval", 5)

	if *configFile == "" {
		viper.SetConfigName("ruled_config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.ruled")
		viper.AddConfigPath("/etc/ruled")
	} else {
		viper.SetConfigFile(*configFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || *configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Info().Msg("No configuration file found, using defaults")
	}

	return &Config{
		RulesDir:                viper.GetString("rules.dir"),
		DuplicatePolicy:         viper.GetString("rules.duplicate_policy"),
		WatchRules:              viper.GetBool("rules.watch"),
		OutputDir:               viper.GetString("engine.output_dir"),
		HistorySize:             viper.GetInt("engine.history_size"),
		ScriptTimeoutMS:         viper.GetInt("engine.script_timeout_ms"),
		LogLevel:                viper.GetString("logging.level"),
		LogDestination:          viper.GetString("logging.output"),
		RedisAddress:            viper.GetString("redis.address"),
		RedisPassword:           viper.GetString("redis.password"),
		RedisDB:                 viper.GetInt("redis.database"),
		RedisChannels:           viper.GetStringSlice("redis.channels"),
		DashboardEnabled:        viper.GetBool("dashboard.enabled"),
		DashboardPort:           viper.GetInt("dashboard.port"),
		DashboardUpdateInterval: viper.GetInt("dashboard.update_interval"),
	}, nil
}

func setupDependencies(config *Config, storeFactory StoreFactory, engineFactory EngineFactory) (*Dependencies, error) {
	eventStore := storeFactory.NewStore(config.RedisAddress, config.RedisPassword, config.RedisDB)

	ruleStore := ruleset.NewStore(config.RulesDir,
		ruleset.WithDuplicatePolicy(ruleset.DuplicatePolicy(config.DuplicatePolicy)))
	snapshot, report, err := ruleStore.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load rule corpus: %w", err)
	}
	reportErrors(report)

	engine, err := engineFactory.NewEngine(snapshot, config, eventStore)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}

	return &Dependencies{
		Store:     eventStore,
		RuleStore: ruleStore,
		Engine:    engine,
	}, nil
}

func reportErrors(report *ruleset.LoadReport) {
	for _, err := range report.Errors {
		logging.LogError(logging.Logger, err)
	}
}

func runMainLoop(ctx context.Context, deps *Dependencies, config *Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := deps.Store.ReceiveEvents(config.RedisChannels...)
	if events == nil {
		return fmt.Errorf("failed to subscribe to event channels %v", config.RedisChannels)
	}

	var watchCh <-chan struct{}
	if config.WatchRules {
		watcher, err := ruleset.NewWatcher(config.RulesDir)
		if err != nil {
			return fmt.Errorf("failed to watch rule directory: %w", err)
		}
		defer watcher.Close()
		watchCh = watcher.Changes()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Msg("ruled engine started")

	for {
		select {
		case msg := <-events:
			if err := processMessage(deps.Engine, deps.Store, msg); err != nil {
				log.Error().Err(err).Msg("Failed to process message")
			}
		case <-watchCh:
			snapshot, report, err := deps.RuleStore.Reload()
			if err != nil {
				log.Error().Err(err).Msg("Failed to reload rule corpus")
				continue
			}
			reportErrors(report)
			deps.Engine.Swap(snapshot)
		case <-sigChan:
			log.Info().Msg("Shutting down ruled engine")
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// processMessage decodes a kind=payload event message, submits it to the
// engine, and publishes every resulting effect description.
func processMessage(engine *runtime.Engine, effectStore store.Store, msg *redis.Message) error {
	logging.Logger.Info().Str("channel", msg.Channel).Str("payload", msg.Payload).Msg("Received message")

	parts := strings.SplitN(msg.Payload, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid payload format: %s", msg.Payload)
	}

	kind := runtime.EventKind(parts[0])
	effects, errs := engine.SubmitEvent(kind, parts[1])
	for _, err := range errs {
		logging.LogError(logging.Logger, err)
	}

	for _, effect := range effects {
		if err := effectStore.PublishEffect(effect); err != nil {
			return err
		}
	}
	return nil
}

// RealStoreFactory implements StoreFactory
type RealStoreFactory struct{}

func (f *RealStoreFactory) NewStore(addr, password string, db int) store.Store {
	return store.NewRedisStore(addr, password, db)
}

// RealEngineFactory implements EngineFactory
type RealEngineFactory struct{}

func (f *RealEngineFactory) NewEngine(snapshot *ruleset.Snapshot, config *Config, eventStore store.Store) (*runtime.Engine, error) {
	engine := runtime.NewEngine(snapshot,
		runtime.WithOutputDir(config.OutputDir),
		runtime.WithHistorySize(config.HistorySize),
		runtime.WithScriptTimeout(time.Duration(config.ScriptTimeoutMS)*time.Millisecond),
		runtime.WithTriggerHook(func(ruleName string) {
			if err := eventStore.RecordTrigger(ruleName); err != nil {
				logging.Logger.Warn().Err(err).Str("rule", ruleName).Msg("Failed to mirror trigger")
			}
		}),
	)
	return engine, nil
}
