package migrate

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pgshift/pgshift/pkg/migrate/failure"
	"github.com/pgshift/pgshift/pkg/migrate/table"
)

func TestDecodeCell(t *testing.T) {
	intCol := &table.ColumnInfo{ColumnName: "n", DataType: "bigint"}
	floatCol := &table.ColumnInfo{ColumnName: "f", DataType: "double"}
	textCol := &table.ColumnInfo{ColumnName: "s", DataType: "varchar"}

	assert.Nil(t, decodeCell(nil, intCol))
	assert.Equal(t, int64(42), decodeCell(sql.RawBytes("42"), intCol))
	assert.Equal(t, float64(1.5), decodeCell(sql.RawBytes("1.5"), floatCol))
	assert.Equal(t, "hello", decodeCell(sql.RawBytes("hello"), textCol))

	// unsigned bigint beyond int64 range stays textual, the driver coerces
	assert.Equal(t, "18446744073709551615", decodeCell(sql.RawBytes("18446744073709551615"), intCol))
}

func TestDecodeCellKeepsBinaryColumnsAsBytes(t *testing.T) {
	payload := sql.RawBytes{0x89, 'P', 'N', 'G', 0x00, 0xff}
	for _, dataType := range []string{"binary", "varbinary", "tinyblob", "blob", "mediumblob", "longblob"} {
		col := &table.ColumnInfo{ColumnName: "payload", DataType: dataType}
		got := decodeCell(payload, col)
		assert.Equal(t, failure.Bytea{0x89, 'P', 'N', 'G', 0x00, 0xff}, got, dataType)
	}

	// the decoded value must not alias the reused scan buffer
	col := &table.ColumnInfo{ColumnName: "payload", DataType: "blob"}
	got := decodeCell(payload, col).(failure.Bytea)
	payload[0] = 0x00
	assert.Equal(t, byte(0x89), got[0])
}

func TestMapDefault(t *testing.T) {
	cases := []struct {
		name string
		col  table.ColumnInfo
		want string
		ok   bool
	}{
		{"no default", table.ColumnInfo{}, "", false},
		{"auto increment skips default", table.ColumnInfo{HasDefault: true, Default: "0", IsAutoIncrement: true}, "", false},
		{"null default", table.ColumnInfo{HasDefault: true, Default: "NULL"}, "", false},
		{"numeric", table.ColumnInfo{HasDefault: true, Default: "-3.14"}, "-3.14", true},
		{"current timestamp", table.ColumnInfo{HasDefault: true, Default: "CURRENT_TIMESTAMP(6)"}, "CURRENT_TIMESTAMP", true},
		{"string literal", table.ColumnInfo{HasDefault: true, Default: "n/a"}, "'n/a'", true},
		{"string literal with quote", table.ColumnInfo{HasDefault: true, Default: "it's"}, "'it''s'", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := mapDefault(&tc.col)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
