package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"example.com/forum/cmd/server"
	"example.com/forum/cmd/worker"
	appkafka "example.com/forum/internal/broker"
	"example.com/forum/internal/cassandra"
	"example.com/forum/internal/feed"
	"example.com/forum/internal/forum"
	config "example.com/forum/internal/init"
	"example.com/forum/internal/logger"
	"example.com/forum/internal/session"
	"example.com/forum/internal/store"
	"github.com/spf13/cobra"
)

var logg = logger.New()

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:           "forum",
		Short:         "Forum with posts, comments, votes and follows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize application configuration
			cfg = config.Init()
			logger.SetLevel(cfg.LogLevel)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "server",
			Short: "Serve the forum over HTTP",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServer(cfg)
			},
		},
		&cobra.Command{
			Use:   "worker",
			Short: "Fan new posts out into follower timelines",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWorker(cfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply Postgres and Cassandra migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cfg)
			},
		},
	)

	return cmd
}

func kafkaConfig(cfg *config.Config) appkafka.KafkaConfig {
	return appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partition:    cfg.KafkaPartition,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}
}

// signalContext is cancelled on SIGINT or SIGTERM for graceful shutdown.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runServer(cfg *config.Config) error {
	st, err := store.New(cfg)
	if err != nil {
		return fmt.Errorf("postgres connection failed: %w", err)
	}
	defer st.Close()

	cass, err := cassandra.Connect(cfg)
	if err != nil {
		return fmt.Errorf("cassandra connection failed: %w", err)
	}
	defer cass.Close()

	kafkaWriter, err := appkafka.NewKafkaWriter(kafkaConfig(cfg))
	if err != nil {
		return fmt.Errorf("kafka writer init failed: %w", err)
	}
	defer kafkaWriter.Close()

	sessions := session.NewManager(session.NewCassandraStore(cass), []byte(cfg.SessionSecret), cfg.SessionTTL)
	svc := forum.New(st, appkafka.NewPublisher(kafkaWriter))

	srv, err := server.New(st, svc, sessions, feed.NewCassandraStore(cass))
	if err != nil {
		return fmt.Errorf("template parsing failed: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	server.Run(ctx, srv, cfg.ServerAddr, cfg.TLSCertFile, cfg.TLSKeyFile)
	logg.Info("main", "Shutdown completed")
	return nil
}

func runWorker(cfg *config.Config) error {
	st, err := store.New(cfg)
	if err != nil {
		return fmt.Errorf("postgres connection failed: %w", err)
	}

	cass, err := cassandra.Connect(cfg)
	if err != nil {
		st.Close()
		return fmt.Errorf("cassandra connection failed: %w", err)
	}
	defer cass.Close()

	kafkaReader := appkafka.NewKafkaReader(kafkaConfig(cfg))

	ctx, stop := signalContext()
	defer stop()

	// The worker owns the reader and the relational store from here on
	w := worker.New(st, feed.NewCassandraStore(cass), kafkaReader, 0, 0)
	w.Run(ctx)
	if err := w.Close(); err != nil {
		return err
	}

	logg.Info("main", "Shutdown completed")
	return nil
}

func runMigrate(cfg *config.Config) error {
	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("postgres migrations failed: %w", err)
	}

	// Connect creates the keyspace and applies the CQL migrations
	cass, err := cassandra.Connect(cfg)
	if err != nil {
		return fmt.Errorf("cassandra migrations failed: %w", err)
	}
	cass.Close()

	logg.Info("main", "Migrations completed")
	return nil
}
