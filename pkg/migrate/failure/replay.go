package failure

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// GenerateReplay : reads the persisted failure report and emits one insert
// statement per skipped row so the rows can be replayed by hand against the
// target. No report file means nothing was skipped and nothing is written.
func GenerateReplay(fs afero.Fs, reportPath string, scriptPath string) error {
	exists, err := afero.Exists(fs, reportPath)
	if err != nil {
		return fmt.Errorf("replay : could not stat report %s : %w", reportPath, err)
	}
	if !exists {
		log.Warn().Str("path", reportPath).Msg("no failure report found, skipping replay script")
		return nil
	}

	b, err := afero.ReadFile(fs, reportPath)
	if err != nil {
		return fmt.Errorf("replay : could not read report %s : %w", reportPath, err)
	}
	var records []Record
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&records); err != nil {
		return fmt.Errorf("replay : could not parse report %s : %w", reportPath, err)
	}

	var sb strings.Builder
	sb.WriteString("-- replay script for rows skipped during migration\n")
	sb.WriteString("-- run manually against the target database\n")
	count := 0
	for _, rec := range records {
		if rec.Kind != RowSkipped || rec.RowIndex == nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n-- table=%s row_index=%d\n", rec.Table, *rec.RowIndex))
		sb.WriteString(replayInsert(rec.Table, rec.RowData))
		count++
	}

	if err := fs.MkdirAll(filepath.Dir(scriptPath), 0755); err != nil {
		return fmt.Errorf("replay : could not create script dir : %w", err)
	}
	if err := afero.WriteFile(fs, scriptPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("replay : could not write %s : %w", scriptPath, err)
	}
	log.Info().Str("path", scriptPath).Int("statements", count).Msg("replay script written")
	return nil
}

func replayInsert(tableName string, row map[string]any) string {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	vals := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		vals[i] = Literal(row[c])
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING;\n",
		quoteIdent(tableName), strings.Join(quoted, ", "), strings.Join(vals, ", "))
}

// Literal : renders one row value as a standalone sql literal.
// Strings are single-quote escaped, numbers and booleans pass through bare,
// binary payloads render as hex bytea literals, structured values
// re-serialize to json and get quoted.
func Literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case json.Number:
		return val.String()
	case bool:
		return fmt.Sprintf("%t", val)
	case int, int64, float64:
		return fmt.Sprintf("%v", val)
	case string:
		return quoteString(val)
	case Bytea:
		return byteaLiteral(val)
	case map[string]any, []any:
		if raw, ok := DecodeBytea(val); ok {
			return byteaLiteral(raw)
		}
		b, err := json.Marshal(val)
		if err != nil {
			return "NULL"
		}
		return quoteString(string(b))
	default:
		return quoteString(fmt.Sprintf("%v", val))
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
