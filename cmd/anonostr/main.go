// Command anonostr runs the anonymous note-publishing service.
//
// Every submission mints a throwaway keypair, publishes a generated
// profile for it, then fans the signed note out to the configured relay
// pool. Local anti-abuse state (cooldown, dedup, per-target rate limits)
// persists in a badger database under the data directory.
//
// # Configuration File
//
// Create a YAML file with service settings:
//
//	listen_addr: ":8090"
//	data_dir: "/var/lib/anonostr"
//	log_level: "info"
//	relays:
//	  - "wss://relay.damus.io"
//	  - "wss://relay.primal.net"
//	tor_relays: []
//	limits:
//	  window: 1h
//	  max_per_target: 10
//	  cooldown: 30s
//
// # Usage
//
//	go run ./cmd/anonostr --config=anonostr.yaml
//	go run ./cmd/anonostr --addr=:8090 --data-dir=/tmp/anonostr
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

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/Spl0itable/Anonostr/api/httpserver"
	"github.com/Spl0itable/Anonostr/feed"
	"github.com/Spl0itable/Anonostr/guard"
	"github.com/Spl0itable/Anonostr/identity"
	"github.com/Spl0itable/Anonostr/protocol"
	"github.com/Spl0itable/Anonostr/relay"
	"github.com/Spl0itable/Anonostr/session"
	"github.com/Spl0itable/Anonostr/submit"
)

type limitsConfig struct {
	Window       time.Duration `yaml:"window"`
	MaxPerTarget int           `yaml:"max_per_target"`
	Cooldown     time.Duration `yaml:"cooldown"`
}

type config struct {
	ListenAddr string   `yaml:"listen_addr"`
	DataDir    string   `yaml:"data_dir"`
	LogLevel   string   `yaml:"log_level"`
	Pprof      bool     `yaml:"pprof"`
	Relays     []string `yaml:"relays"`
	TorRelays  []string `yaml:"tor_relays"`

	Limits limitsConfig `yaml:"limits"`

	// CollectWindow bounds how long feed API requests wait for relay events.
	CollectWindow time.Duration `yaml:"collect_window"`
}

func defaultConfig() *config {
	return &config{
		ListenAddr: ":8090",
		LogLevel:   "info",
		Relays:     protocol.DefaultRelays,
		TorRelays:  protocol.DefaultTorRelays,
	}
}

func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		addr       = flag.String("addr", "", "HTTP listen address")
		dataDir    = flag.String("data-dir", "", "Directory for persistent local state (empty runs in-memory)")
		logLevel   = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		relayList  = flag.String("relays", "", "Comma-separated relay URLs (overrides config)")
		pprof      = flag.Bool("pprof", false, "Enable the pprof debugging API")
	)
	flag.Parse()

	var cfg *config
	var err error

	if *configPath != "" {
		cfg, err = loadConfig(*configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = defaultConfig()
	}

	// Command-line flags override config file
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *relayList != "" {
		cfg.Relays = strings.Split(*relayList, ",")
	}
	if *pprof {
		cfg.Pprof = true
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Invalid log level %q: %v\n", cfg.LogLevel, err)
		os.Exit(1)
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("service failed")
		os.Exit(1)
	}
}

func run(cfg *config, log zerolog.Logger) error {
	store, err := guard.OpenBadger(cfg.DataDir, log)
	if err != nil {
		return err
	}
	defer store.Close()

	guardian := guard.New(store, guard.Config{
		Window:       cfg.Limits.Window,
		MaxPerTarget: cfg.Limits.MaxPerTarget,
		Cooldown:     cfg.Limits.Cooldown,
		Logger:       log,
	})
	sessions := session.NewStore(store, log)
	thread := session.NewThread()

	publisher := relay.NewPublisher(log)
	defer publisher.Close()

	relaySet := protocol.RelaySet{Relays: cfg.Relays, TorRelays: cfg.TorRelays}
	feedSvc := feed.New(publisher, cfg.Relays, sessions, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Replies to our own published notes stream in the background; the
	// subscription set is renewed after every successful publish.
	replies := make(chan nostr.Event, 64)
	go func() {
		for evt := range replies {
			log.Info().
				Str("id", evt.ID).
				Str("pubkey", evt.PubKey).
				Str("link", protocol.EventLink(evt.ID)).
				Msg("reply received")
		}
	}()

	pipeline := submit.NewPipeline(submit.Config{
		Relays: relaySet,
		Client: publisher,
		Guard:  guardian,
		Store:  sessions,
		Thread: thread,
		Minter: identity.NewMinter(nil),
		OnPublished: func(eventID string) {
			if err := feedSvc.RenewReplySubscriptions(ctx, replies); err != nil {
				log.Warn().Err(err).Msg("reply subscription renewal failed")
			}
		},
		Logger: log,
	})

	handler := httpserver.NewHandler(pipeline, feedSvc, sessions, log)
	if cfg.CollectWindow > 0 {
		handler.CollectWindow = cfg.CollectWindow
	}

	srv := httpserver.New(&httpserver.Config{
		ListenAddr:               cfg.ListenAddr,
		EnablePprof:              cfg.Pprof,
		Log:                      log,
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
		ReadTimeout:              15 * time.Second,
		WriteTimeout:             15 * time.Second,
	}, handler)
	srv.RunInBackground()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	cancel()
	srv.Shutdown()
	return nil
}
