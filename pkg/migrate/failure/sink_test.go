package failure_test

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgshift/pgshift/pkg/migrate/failure"
)

func TestSinkAppendsInEncounterOrder(t *testing.T) {
	s := failure.NewSink(afero.NewMemMapFs(), "reports/failures.json")

	s.TableSkipped("a", errors.New("ddl failed"))
	s.RowSkipped("b", 3, errors.New("null violation"), map[string]any{"id": int64(3)})
	s.TableFailed("c", errors.New("commit failed"))

	recs := s.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, failure.TableSkipped, recs[0].Kind)
	assert.Equal(t, failure.RowSkipped, recs[1].Kind)
	assert.Equal(t, failure.TableFailed, recs[2].Kind)
}

func TestSinkRowSkippedCarriesRowIndexAndData(t *testing.T) {
	s := failure.NewSink(afero.NewMemMapFs(), "reports/failures.json")
	row := map[string]any{"id": int64(500), "name": "bob"}
	s.RowSkipped("users", 500, errors.New("boom"), row)

	recs := s.Records()
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].RowIndex)
	assert.Equal(t, 500, *recs[0].RowIndex)
	assert.Equal(t, row, recs[0].RowData)
	assert.Equal(t, "users", recs[0].Table)
	assert.Equal(t, "boom", recs[0].Error)
}

func TestSinkTableRecordsOmitRowIndex(t *testing.T) {
	s := failure.NewSink(afero.NewMemMapFs(), "reports/failures.json")
	s.TableFailed("orders", errors.New("boom"))
	s.TableSkipped("users", errors.New("boom"))

	for _, r := range s.Records() {
		assert.Nil(t, r.RowIndex)
		assert.Nil(t, r.RowData)
	}
}

func TestSinkFlushWritesReport(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := failure.NewSink(fs, "reports/failures.json")
	s.RowSkipped("users", 1, errors.New("boom"), map[string]any{"id": int64(1)})

	require.NoError(t, s.Flush())

	b, err := afero.ReadFile(fs, "reports/failures.json")
	require.NoError(t, err)

	var recs []failure.Record
	require.NoError(t, json.Unmarshal(b, &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, failure.RowSkipped, recs[0].Kind)
	assert.Equal(t, "users", recs[0].Table)
}

func TestSinkFlushEmptyWritesNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := failure.NewSink(fs, "reports/failures.json")

	require.NoError(t, s.Flush())

	exists, err := afero.Exists(fs, "reports/failures.json")
	require.NoError(t, err)
	assert.False(t, exists)
}
