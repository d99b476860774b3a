package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pgshift/pgshift/pkg/migrate"
	"github.com/pgshift/pgshift/pkg/migrate/config"
	"github.com/pgshift/pgshift/pkg/migrate/config/sourcecfg"
	"github.com/pgshift/pgshift/pkg/migrate/config/targetcfg"
	"github.com/pgshift/pgshift/pkg/migrate/state"
)

var (
	batchSize      int
	maxConcurrency int
	skipOnError    bool
	tables         []string
	noProgress     bool
)

func waitForInterrupt(mger state.Manager) {
	interruptChannel := make(chan os.Signal, 1)
	signal.Notify(interruptChannel, os.Interrupt, syscall.SIGTERM)

	<-interruptChannel
	fmt.Println("Interrupt received. Stopping gracefully...")
	mger.OnShutDownEv()
	os.Exit(130)
}

// tableProgressBar builds the run progress bar sized to the number of
// tables selected for transfer, one tick per finished table.
func tableProgressBar(total int) *uiprogress.Bar {
	bar := uiprogress.AddBar(total).AppendCompleted().PrependElapsed()
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		return "Migrating: "
	})
	return bar
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full migration from the configured source to the target",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg config.Config[sourcecfg.MYSQL, targetcfg.Postgres]
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("could not parse config: %w", err)
		}
		if len(tables) > 0 {
			cfg.SourceConfig.TableList = tables
		}
		if cfg.SourceConfig.Host == "" || cfg.Target.Host == "" {
			return fmt.Errorf("source and target connection blocks are required (see pgshift.yaml)")
		}

		migrator := migrate.NewMysqlToPostgres()
		go waitForInterrupt(migrator.GetStateManager())

		var bar *uiprogress.Bar
		if !noProgress {
			uiprogress.Start()
			migrator.OnPlan = func(tableCount int) {
				bar = tableProgressBar(tableCount)
			}
			migrator.OnTableDone = func() {
				if bar != nil {
					bar.Incr()
				}
			}
		}

		startTime := time.Now()
		runErr := migrator.Run(cfg)
		if !noProgress {
			uiprogress.Stop()
		}

		totals := migrator.Totals()
		fmt.Println("\n📊 Migration Summary:")
		fmt.Printf("  migrated rows : %d\n", totals.Migrated)
		fmt.Printf("  skipped rows  : %d\n", totals.Skipped)
		fmt.Printf("  conflicts     : %d\n", totals.Conflicts)
		if len(totals.FailedTables) > 0 {
			fmt.Printf("  failed tables : %v\n", totals.FailedTables)
		}
		fmt.Printf("Time taken: %s\n", time.Since(startTime))

		return runErr
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&batchSize, "batch-size", config.DefaultBatchSize, "rows per progress report batch (no transactional effect)")
	runCmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 1, "tables migrated in parallel, 1 means sequential")
	runCmd.Flags().BoolVar(&skipOnError, "skip-on-error", true, "skip failed rows and continue instead of aborting the table")
	runCmd.Flags().StringSliceVarP(&tables, "tables", "t", []string{}, "specific tables to migrate (comma-separated)")
	runCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")

	viper.BindPFlag("batch_size", runCmd.Flags().Lookup("batch-size"))
	viper.BindPFlag("max_concurrency", runCmd.Flags().Lookup("max-concurrency"))
	viper.BindPFlag("skip_on_error", runCmd.Flags().Lookup("skip-on-error"))

	viper.SetDefault("batch_size", config.DefaultBatchSize)
	viper.SetDefault("max_concurrency", 1)
	viper.SetDefault("skip_on_error", true)
	viper.SetDefault("report_dir", config.DefaultReportDir)
}
