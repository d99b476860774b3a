// package failure
//
// captures structured failure records during a run and turns them into the
// two durable artifacts : the failure report and the replay script
package failure

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Kind : failure record classification
type Kind string

const (
	// RowSkipped : a single row failed to insert and was skipped, carries the row
	RowSkipped Kind = "row_skipped"
	// TableFailed : the table's transfer transaction was rolled back entirely
	TableFailed Kind = "table_failed"
	// TableSkipped : the table never reached the transfer phase (ddl or fetch failed)
	TableSkipped Kind = "table_skipped"
)

// Record : one failure, appended in encounter order
type Record struct {
	Kind     Kind           `json:"kind"`
	Table    string         `json:"table"`
	RowIndex *int           `json:"row_index,omitempty"`
	Error    string         `json:"error"`
	RowData  map[string]any `json:"row_data,omitempty"`
}

// Sink : in-memory append-only failure record list for one run.
// Guarded by a mutex since tables may run on a bounded worker pool.
type Sink struct {
	mu      sync.Mutex
	records []Record
	fs      afero.Fs
	path    string
}

func NewSink(fs afero.Fs, reportPath string) *Sink {
	return &Sink{
		fs:   fs,
		path: reportPath,
	}
}

// RowSkipped : records a skipped row with its full contents for replay
func (s *Sink) RowSkipped(tableName string, rowIndex int, rowErr error, row map[string]any) {
	log.Debug().Str("table", tableName).Int("row_index", rowIndex).Msg(spew.Sdump(row))
	idx := rowIndex
	s.append(Record{
		Kind:     RowSkipped,
		Table:    tableName,
		RowIndex: &idx,
		Error:    rowErr.Error(),
		RowData:  row,
	})
}

// TableFailed : records a table whose transaction rolled back
func (s *Sink) TableFailed(tableName string, tableErr error) {
	s.append(Record{
		Kind:  TableFailed,
		Table: tableName,
		Error: tableErr.Error(),
	})
}

// TableSkipped : records a table that never made it to the transfer phase
func (s *Sink) TableSkipped(tableName string, tableErr error) {
	s.append(Record{
		Kind:  TableSkipped,
		Table: tableName,
		Error: tableErr.Error(),
	})
}

func (s *Sink) append(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

// Records : snapshot of the accumulated records in encounter order
func (s *Sink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// ReportPath : where Flush persists the report
func (s *Sink) ReportPath() string {
	return s.path
}

// Flush : persists the report exactly once at the end of the run.
// An empty sink writes nothing at all.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return nil
	}
	b, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failure report : could not serialize %d records : %w", len(s.records), err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failure report : could not create report dir : %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, b, 0644); err != nil {
		return fmt.Errorf("failure report : could not write %s : %w", s.path, err)
	}
	log.Info().Str("path", s.path).Int("records", len(s.records)).Msg("failure report written")
	return nil
}
