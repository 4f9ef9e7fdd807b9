package migrate

import (
	"context"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var applied = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"0001_a.up.sql":   {Data: []byte("create table a (id text);\ninsert into a values ('x;y');")},
		"0001_a.down.sql": {Data: []byte("drop table a;")},
		"0002_b.up.sql":   {Data: []byte("create table b (id text);")},
	}
}

func newMock(t *testing.T, files fstest.MapFS) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewManager(db, files, WithClock(func() time.Time { return applied })), mock
}

func TestUpAppliesPendingInOrder(t *testing.T) {
	m, mock := newMock(t, testFS())

	mock.ExpectExec(regexp.QuoteMeta("create table if not exists schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("create table b (id text);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("insert into schema_migrations (name, applied_at) values ($1, $2)")).
		WithArgs("0002_b.up.sql", applied).
		WillReturnResult(sqlmock.NewResult(0, 1))

	names, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_b.up.sql"}, names)
}

func TestDownRollsBackLatest(t *testing.T) {
	m, mock := newMock(t, testFS())

	mock.ExpectExec(regexp.QuoteMeta("create table if not exists schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("drop table a;")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("delete from schema_migrations where name = $1")).
		WithArgs("0001_a.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))

	name, err := m.Down(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0001_a.up.sql", name)
}

func TestDownWithoutHistory(t *testing.T) {
	m, mock := newMock(t, testFS())
	mock.ExpectExec(regexp.QuoteMeta("create table if not exists schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	_, err := m.Down(context.Background())
	require.ErrorIs(t, err, ErrNothingApplied)
}

func TestFailedMigrationRollsBack(t *testing.T) {
	m, mock := newMock(t, fstest.MapFS{"0001_a.up.sql": {Data: []byte("create table a (id text);")}})
	mock.ExpectExec(regexp.QuoteMeta("create table if not exists schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("create table a")).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	names, err := m.Up(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, names)
}

func TestSplitStatementsKeepsQuotedSemicolons(t *testing.T) {
	stmts := splitStatements("create table a (id text);\ninsert into a values ('x;y');\n")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[1], "'x;y'")
}

func TestEmbeddedSchemaPairsUpAndDown(t *testing.T) {
	ups, err := collectSQL(Schema(), ".up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	for _, up := range ups {
		down := up[:len(up)-len(".up.sql")] + ".down.sql"
		downs, err := collectSQL(Schema(), ".down.sql")
		require.NoError(t, err)
		assert.Contains(t, downs, down)
	}
}
