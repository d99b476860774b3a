package migrate

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/pgshift/pgshift/pkg/conditional"
	"github.com/pgshift/pgshift/pkg/migrate/config"
	"github.com/pgshift/pgshift/pkg/migrate/config/sourcecfg"
	"github.com/pgshift/pgshift/pkg/migrate/config/targetcfg"
	"github.com/pgshift/pgshift/pkg/migrate/connection"
	"github.com/pgshift/pgshift/pkg/migrate/failure"
	"github.com/pgshift/pgshift/pkg/migrate/state"
	"github.com/pgshift/pgshift/pkg/migrate/table"
)

// Totals : run-wide counters aggregated across every table
type Totals struct {
	Migrated     int
	Skipped      int
	Conflicts    int
	FailedTables []string
}

func NewMysqlToPostgres() *MysqlToPostgres {
	uid, err := uuid.NewV4()
	if err != nil {
		panic(err)
	}
	return &MysqlToPostgres{
		runID:    uid.String(),
		fs:       afero.NewOsFs(),
		stateMgr: state.NewSqliteGormManager(),
	}
}

// MysqlToPostgres : the migration driver. Enumerates tables, runs the
// table migrator per table on a bounded pool and guarantees teardown plus
// report generation no matter how the run ended.
type MysqlToPostgres struct {
	source      *sql.DB
	target      *sql.DB
	infoFetcher table.InfoFetcher
	cfg         config.Config[sourcecfg.MYSQL, targetcfg.Postgres]
	sink        *failure.Sink
	fs          afero.Fs
	stateMgr    state.Manager
	runID       string
	replayPath  string

	// OnPlan : optional hook, called with the number of tables selected
	// for transfer before the first table starts
	OnPlan func(tableCount int)
	// OnTableDone : optional progress hook, called once per finished table
	OnTableDone func()

	mu     sync.Mutex
	totals Totals
}

func (m *MysqlToPostgres) GetStateManager() state.Manager {
	return m.stateMgr
}

// Totals : snapshot of the aggregated run counters
func (m *MysqlToPostgres) Totals() Totals {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.totals
	out.FailedTables = append([]string(nil), m.totals.FailedTables...)
	return out
}

func (m *MysqlToPostgres) Run(cfg config.Config[sourcecfg.MYSQL, targetcfg.Postgres]) (runErr error) {
	cfg.ApplyDefaults()
	m.cfg = cfg

	reportDir := filepath.Join(
		conditional.Ternary(os.Getenv("WRITE_DIR") != "", os.Getenv("WRITE_DIR"), cfg.ReportDir),
		"run_id="+m.runID,
	)
	m.sink = failure.NewSink(m.fs, filepath.Join(reportDir, "failures.json"))
	m.replayPath = filepath.Join(reportDir, "replay.sql")

	// teardown and report generation run whether or not the run succeeded
	defer m.cleanUp(&runErr)

	var err error
	m.source, err = connection.DialMysql(cfg.SourceConfig.GetDSN(), cfg.MaxConcurrency, cfg.SourceConfig.QueryLogging)
	if err != nil {
		return err
	}
	m.target, err = connection.DialPostgres(cfg.Target.GetDSN(), cfg.MaxConcurrency, cfg.Target.QueryLogging)
	if err != nil {
		return err
	}
	m.infoFetcher = table.NewInfoFetcherMysql(m.source, cfg.SourceConfig.DB)

	allTableInfo, err := m.infoFetcher.All(&table.FetchOptions{
		SortByCol:       table.SortBySize,
		SortByDirection: table.SortDirectionDESC,
	})
	if err != nil {
		return err
	}
	allTableInfo = filterTables(allTableInfo, cfg.SourceConfig.TableList)
	if len(allTableInfo) == 0 {
		log.Info().Msg("no tables to migrate")
		return nil
	}
	if m.OnPlan != nil {
		m.OnPlan(len(allTableInfo))
	}

	stateRunID := m.stateMgr.InitRunLog(len(allTableInfo))
	log.Info().
		Str("run_id", m.runID).
		Int("tables", len(allTableInfo)).
		Int("max_concurrency", cfg.MaxConcurrency).
		Bool("skip_on_error", *cfg.SkipOnError).
		Msg("migration run started")

	var (
		wg        errgroup.Group
		tableErrs error
		errMu     sync.Mutex
	)
	wg.SetLimit(cfg.MaxConcurrency)
	for _, v := range allTableInfo {
		v := v
		wg.Go(func() error {
			m.stateMgr.InitTableRunLog(stateRunID, v.DatabaseName, v.TableName)
			tm := NewTableMigrator(m.source, m.target, m.sink, cfg.BatchRecordSize, *cfg.SkipOnError)
			res, tErr := tm.Migrate(v)

			m.mu.Lock()
			m.totals.Migrated += res.Migrated
			m.totals.Skipped += res.Skipped
			m.totals.Conflicts += res.Conflicts
			if tErr != nil {
				m.totals.FailedTables = append(m.totals.FailedTables, v.TableName)
			}
			m.mu.Unlock()

			if tErr != nil {
				// a failed table never aborts the run, the next table proceeds
				log.Error().Str("table", v.TableName).Err(tErr).Msg("table migration failed")
				m.stateMgr.FailedTableRun(stateRunID, v.DatabaseName, v.TableName, tErr)
				errMu.Lock()
				tableErrs = multierror.Append(tableErrs, fmt.Errorf("table %s : %w", v.TableName, tErr))
				errMu.Unlock()
			} else {
				m.stateMgr.PassedTableRun(stateRunID, v.DatabaseName, v.TableName, res.Migrated)
			}
			if m.OnTableDone != nil {
				m.OnTableDone()
			}
			return nil
		})
	}
	_ = wg.Wait()

	totals := m.Totals()
	log.Info().
		Int("migrated", totals.Migrated).
		Int("skipped", totals.Skipped).
		Int("conflicts", totals.Conflicts).
		Strs("failed_tables", totals.FailedTables).
		Msg("migration run finished")

	if tableErrs != nil {
		m.stateMgr.FailedRunLog(stateRunID, tableErrs)
		return tableErrs
	}
	m.stateMgr.PassedRunLog(stateRunID)
	return nil
}

// filterTables : keeps only the requested tables when a table list was
// configured, case insensitive to mirror the source catalog
func filterTables(all []*table.Info, wanted []string) []*table.Info {
	if len(wanted) == 0 {
		return all
	}
	req := make(map[string]bool, len(wanted))
	for _, t := range wanted {
		req[strings.ToLower(t)] = true
	}
	var out []*table.Info
	for _, v := range all {
		if req[strings.ToLower(v.TableName)] {
			out = append(out, v)
		}
	}
	return out
}

func (m *MysqlToPostgres) cleanUp(runErr *error) {
	if m.source != nil {
		if err := m.source.Close(); err != nil {
			*runErr = multierror.Append(*runErr, fmt.Errorf("could not close source connection : %w", err))
		}
	}
	if m.target != nil {
		if err := m.target.Close(); err != nil {
			*runErr = multierror.Append(*runErr, fmt.Errorf("could not close target connection : %w", err))
		}
	}
	if err := m.sink.Flush(); err != nil {
		*runErr = multierror.Append(*runErr, err)
	}
	if err := failure.GenerateReplay(m.fs, m.sink.ReportPath(), m.replayPath); err != nil {
		*runErr = multierror.Append(*runErr, err)
	}
}
