package migrate_test

import (
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgshift/pgshift/pkg/migrate"
	"github.com/pgshift/pgshift/pkg/migrate/failure"
	"github.com/pgshift/pgshift/pkg/migrate/table"
)

func usersInfo() *table.Info {
	return &table.Info{
		TableName:    "users",
		DatabaseName: "shop",
		Schema: []*table.ColumnInfo{
			{ColumnName: "id", DataType: "bigint", ColumnType: "bigint", IsPrimaryKey: true},
			{ColumnName: "name", DataType: "varchar", ColumnType: "varchar(50)", Nullable: true},
		},
	}
}

const usersFetchSQL = "SELECT `id`,`name` FROM `shop`.`users` WHERE 1=1"

func newMigratorMocks(t *testing.T) (sqlmock.Sqlmock, sqlmock.Sqlmock, *failure.Sink, func(skipOnError bool) *migrate.TableMigrator) {
	t.Helper()
	sourceDB, source, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sourceDB.Close() })

	targetDB, target, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { targetDB.Close() })

	sink := failure.NewSink(afero.NewMemMapFs(), "/reports/failure_report.json")
	build := func(skipOnError bool) *migrate.TableMigrator {
		return migrate.NewTableMigrator(sourceDB, targetDB, sink, 1000, skipOnError)
	}
	return source, target, sink, build
}

func TestMigrateSkipsFailedRowAndKeepsTheRest(t *testing.T) {
	info := usersInfo()
	source, target, sink, build := newMigratorMocks(t)

	source.ExpectQuery(regexp.QuoteMeta(usersFetchSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "alice").
			AddRow(2, "bob").
			AddRow(3, "carol"))

	target.ExpectExec(regexp.QuoteMeta(migrate.BuildCreateTable(info))).
		WillReturnResult(sqlmock.NewResult(0, 0))
	target.ExpectBegin()

	insertRe := regexp.QuoteMeta(migrate.BuildInsert(info))

	target.ExpectExec("SAVEPOINT sp_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	target.ExpectExec(insertRe).WithArgs(int64(1), "alice").WillReturnResult(sqlmock.NewResult(0, 1))
	target.ExpectExec("RELEASE SAVEPOINT sp_row_0").WillReturnResult(sqlmock.NewResult(0, 0))

	target.ExpectExec("SAVEPOINT sp_row_1").WillReturnResult(sqlmock.NewResult(0, 0))
	target.ExpectExec(insertRe).WithArgs(int64(2), "bob").
		WillReturnError(errors.New(`pq: value too long for type character varying(50)`))
	target.ExpectExec("ROLLBACK TO SAVEPOINT sp_row_1").WillReturnResult(sqlmock.NewResult(0, 0))
	target.ExpectExec("RELEASE SAVEPOINT sp_row_1").WillReturnResult(sqlmock.NewResult(0, 0))

	target.ExpectExec("SAVEPOINT sp_row_2").WillReturnResult(sqlmock.NewResult(0, 0))
	target.ExpectExec(insertRe).WithArgs(int64(3), "carol").WillReturnResult(sqlmock.NewResult(0, 1))
	target.ExpectExec("RELEASE SAVEPOINT sp_row_2").WillReturnResult(sqlmock.NewResult(0, 0))
	target.ExpectCommit()

	res, err := build(true).Migrate(info)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Migrated)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Conflicts)

	recs := sink.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, failure.RowSkipped, recs[0].Kind)
	assert.Equal(t, "users", recs[0].Table)
	require.NotNil(t, recs[0].RowIndex)
	assert.Equal(t, 1, *recs[0].RowIndex)
	assert.Equal(t, "bob", recs[0].RowData["name"])

	assert.NoError(t, source.ExpectationsWereMet())
	assert.NoError(t, target.ExpectationsWereMet())
}

func TestMigrateStrictModeRollsBackWholeTable(t *testing.T) {
	info := usersInfo()
	source, target, sink, build := newMigratorMocks(t)

	source.ExpectQuery(regexp.QuoteMeta(usersFetchSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "alice").
			AddRow(2, "bob"))

	target.ExpectExec(regexp.QuoteMeta(migrate.BuildCreateTable(info))).
		WillReturnResult(sqlmock.NewResult(0, 0))
	target.ExpectBegin()

	insertRe := regexp.QuoteMeta(migrate.BuildInsert(info))

	target.ExpectExec("SAVEPOINT sp_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	target.ExpectExec(insertRe).WithArgs(int64(1), "alice").
		WillReturnError(errors.New("pq: null value in column violates not-null constraint"))
	target.ExpectExec("ROLLBACK TO SAVEPOINT sp_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	target.ExpectExec("RELEASE SAVEPOINT sp_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	target.ExpectRollback()

	res, err := build(false).Migrate(info)
	require.Error(t, err)
	assert.Equal(t, migrate.TableResult{}, res, "a strict mode failure persists nothing")

	recs := sink.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, failure.TableFailed, recs[0].Kind)
	assert.Equal(t, "users", recs[0].Table)

	assert.NoError(t, source.ExpectationsWereMet())
	assert.NoError(t, target.ExpectationsWereMet())
}

func TestMigrateCountsConflictGuardDrops(t *testing.T) {
	info := usersInfo()
	source, target, sink, build := newMigratorMocks(t)

	source.ExpectQuery(regexp.QuoteMeta(usersFetchSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "alice").
			AddRow(1, "alice"))

	target.ExpectExec(regexp.QuoteMeta(migrate.BuildCreateTable(info))).
		WillReturnResult(sqlmock.NewResult(0, 0))
	target.ExpectBegin()

	insertRe := regexp.QuoteMeta(migrate.BuildInsert(info))

	target.ExpectExec("SAVEPOINT sp_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	target.ExpectExec(insertRe).WithArgs(int64(1), "alice").WillReturnResult(sqlmock.NewResult(0, 1))
	target.ExpectExec("RELEASE SAVEPOINT sp_row_0").WillReturnResult(sqlmock.NewResult(0, 0))

	// duplicate key, ON CONFLICT DO NOTHING reports zero rows affected
	target.ExpectExec("SAVEPOINT sp_row_1").WillReturnResult(sqlmock.NewResult(0, 0))
	target.ExpectExec(insertRe).WithArgs(int64(1), "alice").WillReturnResult(sqlmock.NewResult(0, 0))
	target.ExpectExec("RELEASE SAVEPOINT sp_row_1").WillReturnResult(sqlmock.NewResult(0, 0))
	target.ExpectCommit()

	res, err := build(true).Migrate(info)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Migrated)
	assert.Equal(t, 1, res.Conflicts)
	assert.Equal(t, 0, res.Skipped)
	assert.Zero(t, sink.Len(), "a silently dropped duplicate is not a failure")

	assert.NoError(t, source.ExpectationsWereMet())
	assert.NoError(t, target.ExpectationsWereMet())
}

func TestMigrateSkipsTableWhenDDLFails(t *testing.T) {
	info := usersInfo()
	source, target, sink, build := newMigratorMocks(t)

	target.ExpectExec(regexp.QuoteMeta(migrate.BuildCreateTable(info))).
		WillReturnError(errors.New("pq: permission denied for schema public"))

	res, err := build(true).Migrate(info)
	require.Error(t, err)
	assert.Equal(t, migrate.TableResult{}, res)

	recs := sink.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, failure.TableSkipped, recs[0].Kind)
	assert.Equal(t, "users", recs[0].Table)

	assert.NoError(t, source.ExpectationsWereMet())
	assert.NoError(t, target.ExpectationsWereMet())
}
