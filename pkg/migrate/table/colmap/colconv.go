// package colmap
//
// maps column types between different database engines
package colmap

import (
	"fmt"
	"regexp"
	"strings"
)

// Type : column mapping type
type Type string

const (
	// MysqlToPostgres : mysql -> postgres type casting
	MysqlToPostgres Type = "MYSQL_POSTGRES"
)

// Column : the source column attributes the cast depends on
type Column struct {
	// BaseType : type name, may still carry a size suffix e.g "varchar(255)"
	BaseType string
	// FullType : full column type spec e.g "decimal(10,2) unsigned"
	FullType string
	// Unsigned : mysql unsigned modifier
	Unsigned bool
	// AutoIncrement : mysql auto_increment extra
	AutoIncrement bool
}

var (
	mysqlToPostgresMap = map[string]string{
		"TINYINT":    "smallint",
		"SMALLINT":   "smallint",
		"MEDIUMINT":  "integer",
		"INT":        "integer",
		"INTEGER":    "integer",
		"BIGINT":     "bigint",
		"FLOAT":      "real",
		"DOUBLE":     "double precision",
		"REAL":       "double precision",
		"DECIMAL":    "numeric",
		"NUMERIC":    "numeric",
		"DATE":       "date",
		"TIME":       "time",
		"DATETIME":   "timestamp",
		"TIMESTAMP":  "timestamp",
		"YEAR":       "integer",
		"CHAR":       "character",
		"VARCHAR":    "character varying",
		"TINYTEXT":   "text",
		"TEXT":       "text",
		"MEDIUMTEXT": "text",
		"LONGTEXT":   "text",
		"BOOL":       "boolean",
		"BOOLEAN":    "boolean",
		"BINARY":     "bytea",
		"VARBINARY":  "bytea",
		"TINYBLOB":   "bytea",
		"BLOB":       "bytea",
		"MEDIUMBLOB": "bytea",
		"LONGBLOB":   "bytea",
		"JSON":       "jsonb",
		"ENUM":       "text",
		"SET":        "text",
	}

	// one step up the signed integer ladder, absorbs unsigned ranges since
	// postgres has no native unsigned integers
	unsignedWiden = map[string]string{
		"smallint": "integer",
		"integer":  "bigint",
		"bigint":   "bigint",
	}

	serialFor = map[string]string{
		"smallint": "serial",
		"integer":  "serial",
		"bigint":   "bigserial",
	}

	lengthPattern    = regexp.MustCompile(`\((\d+)\)`)
	precisionPattern = regexp.MustCompile(`\((\d+)\s*,\s*(\d+)\)`)
)

// Convert : casts a source column to the target engine's type string.
// Unknown base types deliberately fall back to text instead of erroring out,
// the cast has to be total over whatever the source schema throws at it.
func Convert(t Type, col Column) (string, error) {
	switch t {
	case MysqlToPostgres:
		return convertMysqlToPostgres(col), nil
	}
	return "", fmt.Errorf("unsupported conversion type %s", t)
}

// MustConvert : if the conversion errors out it panics
func MustConvert(t Type, col Column) string {
	val, err := Convert(t, col)
	if err != nil {
		panic(fmt.Errorf("%s : could not cast %s", t, col.BaseType))
	}
	return val
}

func convertMysqlToPostgres(col Column) string {
	base := strings.ToUpper(strings.Split(strings.TrimSpace(col.BaseType), "(")[0])
	resolved, ok := mysqlToPostgresMap[base]
	if !ok {
		return "text"
	}
	if col.Unsigned {
		if wider, intLike := unsignedWiden[resolved]; intLike {
			resolved = wider
		}
	}
	if col.AutoIncrement {
		if seq, intLike := serialFor[resolved]; intLike {
			return seq
		}
	}
	return reattachSize(resolved, col.FullType)
}

// reattachSize : character types keep their declared length, numeric keeps
// precision and scale, every other type drops the original size spec
func reattachSize(resolved string, fullType string) string {
	switch resolved {
	case "character", "character varying":
		if m := lengthPattern.FindStringSubmatch(fullType); m != nil {
			return fmt.Sprintf("%s(%s)", resolved, m[1])
		}
	case "numeric":
		if m := precisionPattern.FindStringSubmatch(fullType); m != nil {
			return fmt.Sprintf("numeric(%s,%s)", m[1], m[2])
		}
	}
	return resolved
}
