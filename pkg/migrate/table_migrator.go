package migrate

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/pgshift/pgshift/pkg/migrate/failure"
	"github.com/pgshift/pgshift/pkg/migrate/normalize"
	"github.com/pgshift/pgshift/pkg/migrate/table"
	"github.com/pgshift/pgshift/pkg/migrate/table/colmap"
)

// WrapQ : backtick quotes a source side identifier
func WrapQ(sql string) string {
	return "`" + sql + "`"
}

// QuoteIdent : double quotes a target side identifier, neutralizes
// reserved word collisions in postgres
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// TableResult : per table transfer outcome
type TableResult struct {
	// Migrated : rows the target acknowledged writing
	Migrated int
	// Skipped : rows recorded as row_skipped for replay
	Skipped int
	// Conflicts : rows the conflict guard silently dropped (rows affected
	// came back zero), reported separately so re-runs don't under-count
	Conflicts int
}

// TableMigrator : moves one table at a time through its three phases :
// schema creation, full fetch, transactional row transfer with per-row
// savepoint recovery.
type TableMigrator struct {
	source      *sql.DB
	target      *sql.DB
	sink        *failure.Sink
	batchSize   int
	skipOnError bool
}

func NewTableMigrator(source *sql.DB, target *sql.DB, sink *failure.Sink, batchSize int, skipOnError bool) *TableMigrator {
	return &TableMigrator{
		source:      source,
		target:      target,
		sink:        sink,
		batchSize:   batchSize,
		skipOnError: skipOnError,
	}
}

// Migrate : runs the full per table protocol. Any failure before the
// transfer phase skips the table with zero counts, a failure inside the
// transfer phase rolls the whole table back.
func (m *TableMigrator) Migrate(info *table.Info) (TableResult, error) {
	ddl := BuildCreateTable(info)
	if _, err := m.target.Exec(ddl); err != nil {
		err = fmt.Errorf("ddl failed for table %s : %w", info.TableName, err)
		m.sink.TableSkipped(info.TableName, err)
		return TableResult{}, err
	}

	rows, err := m.fetchRows(info)
	if err != nil {
		err = fmt.Errorf("fetch failed for table %s : %w", info.TableName, err)
		m.sink.TableSkipped(info.TableName, err)
		return TableResult{}, err
	}
	if len(rows) == 0 {
		log.Info().Str("table", info.TableName).Msg("table is empty, nothing to transfer")
		return TableResult{}, nil
	}

	return m.transfer(info, rows)
}

func (m *TableMigrator) fetchRows(info *table.Info) ([][]any, error) {
	cols := make([]string, len(info.Schema))
	for i, c := range info.Schema {
		cols[i] = WrapQ(c.ColumnName)
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE 1=1`, strings.Join(cols, ","), WrapQ(info.DatabaseName)+"."+WrapQ(info.TableName))
	rows, err := m.source.Query(q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]any
	raw := make([]any, len(info.Schema))
	for i := range raw {
		var cell sql.RawBytes
		raw[i] = &cell
	}
	for rows.Next() {
		if err := rows.Scan(raw...); err != nil {
			return nil, err
		}
		row := make([]any, len(raw))
		for i, val := range raw {
			row[i] = decodeCell(*val.(*sql.RawBytes), info.Schema[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// decodeCell : keeps NULLs as nil, decodes integer and floating point
// columns into native numbers so the failure report and replay script carry
// them unquoted, keeps binary columns as raw bytes so the driver encodes
// bytea natively, leaves everything else as text for the driver to coerce
func decodeCell(b sql.RawBytes, col *table.ColumnInfo) any {
	if b == nil {
		return nil
	}
	switch strings.ToLower(col.DataType) {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint", "year":
		if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return n
		}
	case "float", "double", "real":
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
	case "binary", "varbinary", "tinyblob", "blob", "mediumblob", "longblob":
		// copy, the scan buffer is reused for the next row
		return failure.Bytea(append([]byte(nil), b...))
	}
	return string(b)
}

func (m *TableMigrator) transfer(info *table.Info, rows [][]any) (TableResult, error) {
	var res TableResult

	tx, err := m.target.Begin()
	if err != nil {
		err = fmt.Errorf("could not begin transaction for table %s : %w", info.TableName, err)
		m.sink.TableFailed(info.TableName, err)
		return TableResult{}, err
	}

	insertSQL := BuildInsert(info)
	jsonCol := make([]bool, len(info.Schema))
	for i, c := range info.Schema {
		jsonCol[i] = strings.EqualFold(c.DataType, "json")
	}

	for i, row := range rows {
		sp := fmt.Sprintf("sp_row_%d", i)
		if _, err := tx.Exec("SAVEPOINT " + sp); err != nil {
			return m.failTable(tx, info.TableName, fmt.Errorf("could not open savepoint %s : %w", sp, err))
		}

		args := make([]any, len(row))
		for j, v := range row {
			if jsonCol[j] {
				args[j] = normalize.JSON(v)
				continue
			}
			args[j] = v
		}

		execRes, insErr := tx.Exec(insertSQL, args...)
		if insErr == nil {
			if _, err := tx.Exec("RELEASE SAVEPOINT " + sp); err != nil {
				return m.failTable(tx, info.TableName, fmt.Errorf("could not release savepoint %s : %w", sp, err))
			}
			if n, err := execRes.RowsAffected(); err == nil && n == 0 {
				res.Conflicts++
			} else {
				res.Migrated++
			}
		} else {
			// undo only this row, every prior row in the transaction survives
			if _, err := tx.Exec("ROLLBACK TO SAVEPOINT " + sp); err != nil {
				return m.failTable(tx, info.TableName, fmt.Errorf("could not roll back to savepoint %s : %w", sp, err))
			}
			if _, err := tx.Exec("RELEASE SAVEPOINT " + sp); err != nil {
				return m.failTable(tx, info.TableName, fmt.Errorf("could not release savepoint %s : %w", sp, err))
			}
			if !m.skipOnError {
				return m.failTable(tx, info.TableName, fmt.Errorf("row %d failed in strict mode : %w", i, insErr))
			}
			m.sink.RowSkipped(info.TableName, i, insErr, rowAsMap(info, row))
			res.Skipped++
			log.Info().Str("table", info.TableName).Int("row_index", i).Err(insErr).Msg("row skipped")
		}

		if (i+1)%m.batchSize == 0 {
			log.Debug().
				Str("table", info.TableName).
				Int("processed", i+1).
				Int("total", len(rows)).
				Msg("transfer progress")
		}
	}

	if err := tx.Commit(); err != nil {
		err = fmt.Errorf("could not commit table %s : %w", info.TableName, err)
		m.sink.TableFailed(info.TableName, err)
		return TableResult{}, err
	}

	log.Info().
		Str("table", info.TableName).
		Int("migrated", res.Migrated).
		Int("skipped", res.Skipped).
		Int("conflicts", res.Conflicts).
		Msg("table transferred")
	return res, nil
}

// failTable : rolls the whole transaction back, none of the table's rows
// persist, and surfaces the table as failed
func (m *TableMigrator) failTable(tx *sql.Tx, tableName string, err error) (TableResult, error) {
	_ = tx.Rollback()
	m.sink.TableFailed(tableName, err)
	return TableResult{}, err
}

func rowAsMap(info *table.Info, row []any) map[string]any {
	out := make(map[string]any, len(info.Schema))
	for i, c := range info.Schema {
		out[c.ColumnName] = row[i]
	}
	return out
}

var numericDefault = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// BuildCreateTable : derives the target ddl for one source table. Every
// identifier is quoted, column types go through the colmap cast, a single
// column primary key carries over, defaults carry over where they translate
// literally.
func BuildCreateTable(info *table.Info) string {
	var (
		lines  []string
		pkCols []string
	)
	for _, c := range info.Schema {
		targetType := colmap.MustConvert(colmap.MysqlToPostgres, colmap.Column{
			BaseType:      c.DataType,
			FullType:      c.ColumnType,
			Unsigned:      c.IsUnsigned,
			AutoIncrement: c.IsAutoIncrement,
		})
		c.TargetType = targetType

		line := QuoteIdent(c.ColumnName) + " " + targetType
		if !c.Nullable {
			line += " NOT NULL"
		}
		if def, ok := mapDefault(c); ok {
			line += " DEFAULT " + def
		}
		lines = append(lines, line)
		if c.IsPrimaryKey {
			pkCols = append(pkCols, c.ColumnName)
		}
	}
	if len(pkCols) == 1 {
		lines = append(lines, fmt.Sprintf("PRIMARY KEY (%s)", QuoteIdent(pkCols[0])))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", QuoteIdent(info.TableName), strings.Join(lines, ",\n  "))
}

// mapDefault : carries a source default over only when it translates
// literally, sequence backed columns manage their own defaults
func mapDefault(c *table.ColumnInfo) (string, bool) {
	if !c.HasDefault || c.IsAutoIncrement {
		return "", false
	}
	def := strings.TrimSpace(c.Default)
	if def == "" || strings.EqualFold(def, "NULL") {
		return "", false
	}
	if numericDefault.MatchString(def) {
		return def, true
	}
	if strings.HasPrefix(strings.ToUpper(def), "CURRENT_TIMESTAMP") {
		return "CURRENT_TIMESTAMP", true
	}
	return "'" + strings.ReplaceAll(def, "'", "''") + "'", true
}

// BuildInsert : positional insert with a conflict guard so re-running a
// migration is safe against primary key collisions
func BuildInsert(info *table.Info) string {
	cols := make([]string, len(info.Schema))
	placeholders := make([]string, len(info.Schema))
	for i, c := range info.Schema {
		cols[i] = QuoteIdent(c.ColumnName)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		QuoteIdent(info.TableName), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
}
