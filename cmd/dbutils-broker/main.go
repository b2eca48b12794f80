// Command dbutils-broker runs the database broker as a stdio JSON-RPC
// tool process: load configuration, build the connection pool and the
// per-call handler, then serve requests on stdin/stdout until EOF.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbutils-go/broker/internal/stdioserver"
	"github.com/dbutils-go/broker/pkg/dbutils/audit"
	"github.com/dbutils-go/broker/pkg/dbutils/config"
	"github.com/dbutils-go/broker/pkg/dbutils/handler"
	"github.com/dbutils-go/broker/pkg/dbutils/pool"
	"github.com/dbutils-go/broker/pkg/mlog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, auditLogPath string

	cmd := &cobra.Command{
		Use:   "dbutils-broker",
		Short: "Serve the database broker tool surface over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, auditLogPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML or TOML connections configuration file")
	cmd.Flags().StringVar(&auditLogPath, "audit-log", "", "path to the append-only audit log JSONL file (audit disabled if unset)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func run(ctx context.Context, configPath, auditLogPath string) error {
	logger, err := mlog.Initialize(mlog.Options{
		Debug:       os.Getenv("DBUTILS_DEBUG") == "1",
		Production:  os.Getenv("DBUTILS_ENV") == "production",
		LogFilePath: os.Getenv("DBUTILS_LOG_FILE"),
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	docs, err := loadDocument(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	p := pool.New(docs, logger)
	defer func() { _ = p.CloseAll(ctx) }()

	var auditLog *audit.Log
	if auditLogPath != "" {
		auditLog = audit.New(auditLogPath)
	}

	h := handler.New(docs, p, auditLog, logger)

	logger.Infof("dbutils-broker starting, serving tools over stdio")

	srv := stdioserver.New(h, logger)

	return srv.Serve(ctx, os.Stdin, os.Stdout)
}

func loadDocument(path string) (config.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return config.LoadTOML(path)
	default:
		return config.LoadYAML(path)
	}
}
