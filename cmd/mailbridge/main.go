// mailbridge bridges a Microsoft Graph mailbox into Asana tasks and
// archives mailbox contents for offline analysis.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mnguyen/mailbridge/internal/archive"
	"github.com/mnguyen/mailbridge/internal/asana"
	"github.com/mnguyen/mailbridge/internal/bridge"
	"github.com/mnguyen/mailbridge/internal/credential"
	"github.com/mnguyen/mailbridge/internal/graph"
	"github.com/mnguyen/mailbridge/internal/ledger"
	"github.com/mnguyen/mailbridge/internal/model"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runCmd(os.Args[2:]))
	case "export":
		os.Exit(exportCmd(os.Args[2:]))
	case "cred":
		os.Exit(credCmd(os.Args[2:]))
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: mailbridge <command> [flags]

commands:
  run       walk the configured mail folder and create Asana tasks
  export    archive a mail folder to SQLite and/or CSV
  cred      manage secrets in the OS keyring (set | rm)`)
}

// newLogger builds the process-wide structured logger. Every outcome
// of a run, including per-message failures, surfaces through it.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// loadConfig loads the configuration file and environment, then fills
// missing secrets from the OS keyring.
func loadConfig(configPath, envFile string) (*model.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	} else {
		// A .env next to the binary is optional.
		_ = godotenv.Load()
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if cfg.ClientSecret == "" {
		if cfg.ClientSecret, err = credential.Get(credential.KeyClientSecret); err != nil {
			return nil, err
		}
	}
	if cfg.TaskAPIToken == "" {
		if cfg.TaskAPIToken, err = credential.Get(credential.KeyTaskAPIToken); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// newGraphClient performs the token exchange and builds the Graph
// client. Authentication failure here is fatal to the run.
func newGraphClient(
	ctx context.Context, cfg *model.Config,
) (*graph.Client, error) {
	creds := graph.Credentials{
		TenantID:     cfg.TenantID,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}
	httpClient, err := creds.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	return graph.NewClient(httpClient, cfg.GraphBaseURL, cfg.MailUser, cfg.PageSize), nil
}

func runCmd(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", model.DefaultConfigPath(), "path to config file")
	envFile := fs.String("env-file", "", "path to .env file")
	dryRun := fs.Bool("dry-run", false, "log what would happen without creating tasks")
	fs.Parse(args)

	logger := newLogger()
	ctx := context.Background()

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		logger.Error("loading configuration failed", slog.String("error", err.Error()))
		return 1
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	mail, err := newGraphClient(ctx, cfg)
	if err != nil {
		logger.Error("graph authentication failed", slog.String("error", err.Error()))
		return 1
	}

	tasks := asana.NewClient(cfg.AsanaBaseURL, cfg.TaskAPIToken)
	me, err := tasks.GetMe(ctx)
	if err != nil {
		logger.Error("asana connection check failed", slog.String("error", err.Error()))
		return 1
	}
	logger.Info("connected to asana",
		slog.String("user", me.Name),
		slog.String("email", me.Email),
	)

	ldg, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		logger.Error("opening ledger failed", slog.String("error", err.Error()))
		return 1
	}
	defer ldg.Close()
	logger.Info("ledger loaded",
		slog.String("path", cfg.LedgerPath),
		slog.Int("entries", ldg.Len()),
	)

	relay := bridge.NewRelay(mail, tasks, cfg.ScratchDir, cfg.AttachmentMaxBytes, logger)
	processor := bridge.NewProcessor(tasks, relay, cfg, logger)
	runner := bridge.NewRunner(mail, processor, ldg, cfg, logger, *dryRun)

	if _, err := runner.Run(ctx); err != nil {
		logger.Error("run aborted", slog.String("error", err.Error()))
		return 1
	}

	// Per-message failures are logged, not escalated to the exit status.
	return 0
}

func exportCmd(args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", model.DefaultConfigPath(), "path to config file")
	envFile := fs.String("env-file", "", "path to .env file")
	csvPath := fs.String("csv", "", "write CSV export to this path ('-' for stdout)")
	dbPath := fs.String("db", "", "archive database path (defaults to config)")
	raw := fs.Bool("raw", false, "fetch raw MIME to recover plain text from HTML-only bodies")
	fs.Parse(args)

	logger := newLogger()
	ctx := context.Background()

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		logger.Error("loading configuration failed", slog.String("error", err.Error()))
		return 1
	}
	// The export path needs no Asana settings; check only the Graph side.
	exportCfg := *cfg
	exportCfg.TaskAPIToken = "unused"
	exportCfg.WorkspaceID = "unused"
	exportCfg.ProjectID = "unused"
	exportCfg.DefaultSectionID = "unused"
	exportCfg.LocationFieldID = "unused"
	exportCfg.JobNumberFieldID = "unused"
	if err := exportCfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	mail, err := newGraphClient(ctx, cfg)
	if err != nil {
		logger.Error("graph authentication failed", slog.String("error", err.Error()))
		return 1
	}

	folderID, err := mail.ResolveFolderPath(ctx, cfg.MailFolderPath)
	if err != nil {
		logger.Error("resolving folder failed", slog.String("error", err.Error()))
		return 1
	}

	var msgs []model.Message
	err = mail.ListMessages(ctx, folderID, func(msg model.Message) error {
		if *raw && msg.BodyIsHTML {
			var buf strings.Builder
			if err := mail.FetchRawMessage(ctx, msg.ID, &buf); err == nil {
				if text, err := archive.TextFromRaw(strings.NewReader(buf.String())); err == nil && text != "" {
					msg.Body = text
					msg.BodyIsHTML = false
				}
			}
		}
		msgs = append(msgs, msg)
		return nil
	})
	if err != nil {
		logger.Error("message walk stopped early", slog.String("error", err.Error()))
	}
	logger.Info("fetched messages", slog.Int("count", len(msgs)))

	path := cfg.ArchiveDBPath
	if *dbPath != "" {
		path = *dbPath
	}
	store, err := archive.NewStore(path)
	if err != nil {
		logger.Error("opening archive failed", slog.String("error", err.Error()))
		return 1
	}
	defer store.Close()

	folder := graph.FolderPathString(cfg.MailFolderPath)
	runID, err := store.SaveMessages(ctx, folder, msgs)
	if err != nil {
		logger.Error("archiving messages failed", slog.String("error", err.Error()))
		return 1
	}
	logger.Info("archived messages",
		slog.String("run_id", runID),
		slog.Int("count", len(msgs)),
		slog.String("db", path),
	)

	if *csvPath != "" {
		out := os.Stdout
		if *csvPath != "-" {
			f, err := os.Create(*csvPath)
			if err != nil {
				logger.Error("creating CSV file failed", slog.String("error", err.Error()))
				return 1
			}
			defer f.Close()
			out = f
		}
		if err := store.ExportCSV(ctx, out); err != nil {
			logger.Error("CSV export failed", slog.String("error", err.Error()))
			return 1
		}
	}

	return 0
}

func credCmd(args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: mailbridge cred set|rm <key>")
		return 2
	}

	action, key := args[0], args[1]
	if key != credential.KeyClientSecret && key != credential.KeyTaskAPIToken {
		fmt.Fprintf(os.Stderr, "unknown credential key %q (want %s or %s)\n",
			key, credential.KeyClientSecret, credential.KeyTaskAPIToken)
		return 2
	}

	switch action {
	case "set":
		fmt.Fprintf(os.Stderr, "value for %s: ", key)
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			fmt.Fprintln(os.Stderr, "no value read")
			return 1
		}
		value := strings.TrimSpace(scanner.Text())
		if err := credential.Set(key, value); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	case "rm":
		if err := credential.Delete(key); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	default:
		fmt.Fprintln(os.Stderr, "usage: mailbridge cred set|rm <key>")
		return 2
	}

	return 0
}
