package table

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

func NewInfoFetcherMysql(db *sql.DB, schemaName string) InfoFetcher {
	return &InfoFetcherMYSQL{
		source: db,
		schema: schemaName,
	}
}

type InfoFetcherMYSQL struct {
	source *sql.DB
	schema string
}

type mysqlTableSizes struct {
	Table  string  `db:"tb_name"`
	SizeMB float64 `db:"size_mb"`
}

func (m *InfoFetcherMYSQL) All(f *FetchOptions) ([]*Info, error) {
	var (
		res      []*Info
		tSizesMp = make(map[string]*mysqlTableSizes)
		wg       errgroup.Group
		isAsc    = f.SortByDirection == SortDirectionASC
		sortCol  = f.SortByCol
	)

	wg.Go(func() error {
		rows, err := m.source.Query(`
	SELECT table_schema AS db_name,
		table_name
	FROM information_schema.tables
	WHERE table_type = 'BASE TABLE'
		AND table_schema = ?
	ORDER BY table_name`, m.schema)
		if err != nil {
			return fmt.Errorf("MYSQL_SOURCE : could not list base tables for schema %s : %w", m.schema, err)
		}
		defer rows.Close()

		for rows.Next() {
			var ifo Info
			if err := rows.Scan(&ifo.DatabaseName, &ifo.TableName); err != nil {
				return err
			}
			res = append(res, &ifo)
		}
		return rows.Err()
	})
	wg.Go(func() error {
		tSizes := m.GetAllTableSizes()
		for _, v := range tSizes {
			tSizesMp[v.Table] = v
		}
		return nil
	})

	err := wg.Wait()
	if err != nil {
		return nil, err
	}

	for i := range res {
		if sz, ok := tSizesMp[res[i].TableName]; ok {
			res[i].SizeMB = sz.SizeMB
		}
		schma, err := m.Columns(res[i].TableName)
		if err != nil {
			return nil, err
		}
		res[i].Schema = schma
	}
	if sortCol != "" {
		sort.Slice(res, func(i, j int) bool {
			if sortCol == SortBySize {
				return (res[i].SizeMB < res[j].SizeMB) == isAsc
			}
			return (res[i].TableName < res[j].TableName) == isAsc
		})
	}
	return res, nil
}

func (m *InfoFetcherMYSQL) GetAllTableSizes() []*mysqlTableSizes {
	var res []*mysqlTableSizes
	rows, err := m.source.Query(`SELECT
	TABLE_NAME AS tb_name,
	ROUND(((DATA_LENGTH + INDEX_LENGTH) / 1024 / 1024),4) AS size_mb
  FROM
	information_schema.TABLES
  WHERE
	TABLE_SCHEMA = ?
  ORDER BY
	(DATA_LENGTH + INDEX_LENGTH)
  DESC`, m.schema)
	if err != nil {
		return nil
	}
	defer rows.Close()
	for rows.Next() {
		var ifo mysqlTableSizes
		_ = rows.Scan(&ifo.Table, &ifo.SizeMB)
		res = append(res, &ifo)
	}

	return res
}

func (m *InfoFetcherMYSQL) Columns(tableName string) ([]*ColumnInfo, error) {
	var res []*ColumnInfo
	rows, err := m.source.Query(`SELECT
		COLUMN_NAME AS col_name,
		DATA_TYPE AS data_type,
		COLUMN_TYPE AS col_type,
		IS_NULLABLE AS is_nullable,
		COLUMN_DEFAULT AS col_default,
		EXTRA AS extra,
		COLUMN_KEY AS col_key
	FROM information_schema.COLUMNS
	WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
	ORDER BY ORDINAL_POSITION`, m.schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("MYSQL_SOURCE : could not list columns for %s.%s : %w", m.schema, tableName, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ifo        ColumnInfo
			isNullable string
			colDefault sql.NullString
			colKey     string
		)
		if err := rows.Scan(&ifo.ColumnName, &ifo.DataType, &ifo.ColumnType, &isNullable, &colDefault, &ifo.Extra, &colKey); err != nil {
			return nil, err
		}
		ifo.Nullable = isNullable == "YES"
		ifo.Default = colDefault.String
		ifo.HasDefault = colDefault.Valid
		ifo.IsPrimaryKey = colKey == "PRI"
		ifo.IsUnsigned = strings.Contains(strings.ToLower(ifo.ColumnType), "unsigned")
		ifo.IsAutoIncrement = strings.Contains(strings.ToLower(ifo.Extra), "auto_increment")
		res = append(res, &ifo)
	}
	return res, rows.Err()
}
