package table

// ColumnInfo : one source column descriptor, read once per table per run
type ColumnInfo struct {
	ColumnName      string `db:"col_name"`
	DataType        string `db:"data_type"` // base type without size spec
	ColumnType      string `db:"col_type"`  // full spec e.g "decimal(10,2) unsigned"
	Nullable        bool   `db:"is_nullable"`
	Default         string `db:"col_default"` // raw default expression, empty if none
	HasDefault      bool   `db:"has_default"`
	Extra           string `db:"extra"`
	IsPrimaryKey    bool   `db:"is_primary_key"`
	IsUnsigned      bool   `db:"is_unsigned"`
	IsAutoIncrement bool   `db:"is_auto_increment"`
	TargetType      string `db:"target_type"`
}

// Info : everything the migrator needs to know about one source table
type Info struct {
	TableName    string `db:"table_name"`
	DatabaseName string `db:"db_name"`
	Schema       []*ColumnInfo
	SizeMB       float64
}

type InfoSortBy string
type InfoSortByDirection string

const (
	SortBySize           InfoSortBy = "Size"
	SortByAlphaTableName InfoSortBy = "TableName"
)

const (
	SortDirectionASC  InfoSortByDirection = "ASC"
	SortDirectionDESC InfoSortByDirection = "DESC"
)

type FetchOptions struct {
	SortByCol       InfoSortBy
	SortByDirection InfoSortByDirection
}

// InfoFetcher : reads table and column metadata from the source.
// No caching, callers hit the source catalog once per run.
type InfoFetcher interface {
	// All : fetches every base table of the configured schema with
	// its column descriptors ordered by declaration position
	All(f *FetchOptions) ([]*Info, error)
	// Columns : fetches the column descriptors for a single table
	Columns(tableName string) ([]*ColumnInfo, error)
}
