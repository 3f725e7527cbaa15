package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/leozzy13/Health-Benchmark/internal/artifacts"
	"github.com/leozzy13/Health-Benchmark/internal/config"
	"github.com/leozzy13/Health-Benchmark/internal/domain/record"
	"github.com/leozzy13/Health-Benchmark/internal/llm"
	"github.com/leozzy13/Health-Benchmark/internal/packet"
	"github.com/leozzy13/Health-Benchmark/internal/pipeline"
	"github.com/leozzy13/Health-Benchmark/internal/platform/db"
	"github.com/leozzy13/Health-Benchmark/internal/platform/events"
	"github.com/leozzy13/Health-Benchmark/internal/platform/logging"
	"github.com/leozzy13/Health-Benchmark/internal/platform/metrics"
	"github.com/leozzy13/Health-Benchmark/internal/platform/ops"
	"github.com/leozzy13/Health-Benchmark/internal/prompt"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "medbench",
		Short:         "MIMIC-IV admission to conversation benchmark generator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(buildCohortCmd())
	rootCmd.AddCommand(generatePatientCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// env is what every command needs after config loading.
type env struct {
	cfg    *config.Config
	logger zerolog.Logger
	closer io.Closer
}

func setup(cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, closer := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		Dev:        cfg.IsDev(),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogFileMB,
		MaxBackups: cfg.LogFileN,
		Out:        os.Stderr,
	})
	return &env{cfg: cfg, logger: logger, closer: closer}, nil
}

func (e *env) openStore(ctx context.Context) (db.Store, error) {
	store, err := db.Open(ctx, db.Options{
		Driver:   e.cfg.DBDriver,
		URL:      e.cfg.DatabaseURL,
		Schema:   e.cfg.DBSchema,
		MaxConns: e.cfg.DBMaxConns,
		MinConns: e.cfg.DBMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", e.cfg.DBDriver, err)
	}
	e.logger.Info().Str("driver", e.cfg.DBDriver).Msg("connected to database")
	return store, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the source tables",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.closer.Close()

			ctx, cancel := signalContext()
			defer cancel()
			store, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			count, err := db.NewMigrator(store, nil).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.closer.Close()

			ctx, cancel := signalContext()
			defer cancel()
			store, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			statuses, err := db.NewMigrator(store, nil).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func loadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Import MIMIC-IV CSV exports into the source tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, _ := cmd.Flags().GetStringSlice("tables")

			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.closer.Close()

			ctx, cancel := signalContext()
			defer cancel()
			store, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			loader := db.NewLoader(store, db.LoadDirs{
				Hosp: e.cfg.HospDir,
				ICU:  e.cfg.ICUDir,
				Note: e.cfg.NoteDir,
			}, e.logger)
			results, err := loader.Load(ctx, tables)
			if err != nil {
				return fmt.Errorf("load failed: %w", err)
			}

			fmt.Printf("%-28s %12s %s\n", "TABLE", "ROWS", "SOURCE")
			for _, r := range results {
				if r.Skipped {
					fmt.Printf("%-28s %12s %s\n", r.Table, "-", "skipped (optional export missing)")
					continue
				}
				fmt.Printf("%-28s %12d %s\n", r.Table, r.Rows, r.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("tables", nil, "Tables to load (default: all)")
	return cmd
}

func buildCohortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build-cohort",
		Short: "Write the top subjects by admission count",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.closer.Close()

			ctx, cancel := signalContext()
			defer cancel()
			store, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			svc := pipeline.NewService(record.NewRepo(store, e.logger), nil, nil, nil,
				artifacts.Layout{Root: e.cfg.OutputRoot}, pipeline.OptionsFromConfig(e.cfg), e.logger)
			path, err := svc.BuildCohort(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote cohort: %s\n", path)
			return nil
		},
	}
	cmd.Flags().Int("limit", 1000, "Number of subjects")
	return cmd
}

func generatePatientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate-patient",
		Short: "Generate conversations for every admission of one subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.closer.Close()

			if err := applyOverrides(cmd, e.cfg); err != nil {
				return err
			}
			if err := e.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			req, err := patientRequest(cmd)
			if err != nil {
				return err
			}
			return runPatient(e, req)
		},
	}
	f := cmd.Flags()
	f.Int64("subject-id", 0, "Subject to generate")
	f.String("model", "", "Model name")
	f.String("provider", "", "Model provider (openai or gemini)")
	f.Int64("hadm-id", 0, "Only generate this admission")
	f.Int("max-admissions", 0, "Cap on admissions processed (0 means all)")
	f.Bool("include-admissions-without-discharge", false, "Also list admissions with no discharge note")
	f.Bool("no-require-discharge-note", false, "Do not fail extraction when the discharge note is missing")
	f.Int("retry-limit", 0, "Schema attempts per admission")
	f.Int("max-output-tokens", 0, "Model output token cap")
	f.Int64("seed", 0, "Model sampling seed")
	f.Int("row-cap-labs", 0, "Row cap for labs")
	f.Int("row-cap-radiology", 0, "Row cap for radiology notes")
	f.Int("row-cap-emar", 0, "Row cap for EMAR rows")
	f.Int("proximal-padding-hours", 0, "Padding around the admission window for unlinked labs and microbiology")
	f.String("metrics-addr", "", "Serve /metrics and /healthz on this address while running")
	_ = cmd.MarkFlagRequired("subject-id")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

// rowCapFlags maps CLI flags to truncation sections.
var rowCapFlags = map[string]string{
	"row-cap-labs":      "labs",
	"row-cap-radiology": "radiology",
	"row-cap-emar":      "emar",
}

// applyOverrides folds explicitly set generate-patient flags into cfg.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("model") {
		cfg.ModelName, _ = f.GetString("model")
	}
	if f.Changed("provider") {
		cfg.ModelProvider, _ = f.GetString("provider")
	}
	if f.Changed("retry-limit") {
		cfg.ModelRetryLimit, _ = f.GetInt("retry-limit")
	}
	if f.Changed("max-output-tokens") {
		cfg.ModelMaxOutputTokens, _ = f.GetInt("max-output-tokens")
	}
	if f.Changed("seed") {
		seed, _ := f.GetInt64("seed")
		cfg.ModelSeed = &seed
	}
	if f.Changed("proximal-padding-hours") {
		cfg.ProximalPaddingHours, _ = f.GetInt("proximal-padding-hours")
	}
	if f.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = f.GetString("metrics-addr")
	}
	if noRequire, _ := f.GetBool("no-require-discharge-note"); noRequire {
		cfg.RequireDischargeNote = false
	}
	for flag, section := range rowCapFlags {
		if !f.Changed(flag) {
			continue
		}
		n, _ := f.GetInt(flag)
		if n < 0 {
			return fmt.Errorf("--%s must be non-negative, got %d", flag, n)
		}
		cfg.SetRowCap(section, n)
	}
	return nil
}

func patientRequest(cmd *cobra.Command) (pipeline.PatientRequest, error) {
	f := cmd.Flags()
	subjectID, _ := f.GetInt64("subject-id")
	maxAdmissions, _ := f.GetInt("max-admissions")
	if maxAdmissions < 0 {
		return pipeline.PatientRequest{}, fmt.Errorf("--max-admissions must be non-negative, got %d", maxAdmissions)
	}
	req := pipeline.PatientRequest{SubjectID: subjectID, MaxAdmissions: maxAdmissions}
	if f.Changed("hadm-id") {
		hadmID, _ := f.GetInt64("hadm-id")
		req.HadmID = &hadmID
	}
	if include, _ := f.GetBool("include-admissions-without-discharge"); include {
		only := false
		req.OnlyWithDischarge = &only
	}
	return req, nil
}

func runPatient(e *env, req pipeline.PatientRequest) error {
	cfg, logger := e.cfg, e.logger
	ctx, cancel := signalContext()
	defer cancel()

	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := db.CheckTables(ctx, store); err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := ops.NewServer(cfg.MetricsAddr, store, logger)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("start ops server: %w", err)
		}
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				logger.Error().Err(err).Msg("ops server shutdown failed")
			}
		}()
	}
	if cfg.MetricsTextfile != "" {
		defer func() {
			if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
				logger.Error().Err(err).Msg("metrics textfile")
			}
		}()
	}

	params := llm.ParamsFromConfig(cfg)
	client, err := llm.New(ctx, params, logger)
	if err != nil {
		return err
	}
	if cfg.RedisURL != "" {
		rdb, err := llm.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		ttl := time.Duration(cfg.CacheTTLHours) * time.Hour
		client = llm.NewCachedClient(client, rdb, params, ttl, logger)
		logger.Info().Dur("ttl", ttl).Msg("model response cache enabled")
	}

	renderer, err := prompt.NewRenderer(prompt.Options{
		BenchmarkName:       cfg.BenchmarkName,
		BenchmarkVersion:    cfg.BenchmarkVersion,
		PacketSchemaVersion: cfg.PacketSchemaVersion,
		TemplateVersion:     cfg.PromptTemplateVersion,
		Delimiters:          prompt.DefaultDelimiters(),
	})
	if err != nil {
		return err
	}

	repo := record.NewRepo(store, logger)
	assembler := packet.NewAssembler(repo, packet.OptionsFromConfig(cfg), logger)
	svc := pipeline.NewService(repo, assembler, renderer, client,
		artifacts.Layout{Root: cfg.OutputRoot}, pipeline.OptionsFromConfig(cfg), logger)

	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer pub.Close()
		svc.SetPublisher(pub)
	}

	manifest, err := svc.GeneratePatient(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("Completed patient generation: subject_id=%d admissions=%d output_root=%s\n",
		req.SubjectID, len(manifest.Admissions), cfg.OutputRoot)
	return nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			out, err := cfg.Dump()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return cmd
}
