package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestLoadMigrations(t *testing.T) {
	src := fstest.MapFS{
		"m/002_imports.sql":   {Data: []byte("CREATE TABLE imports (id SERIAL);")},
		"m/001_reference.sql": {Data: []byte("CREATE TABLE reference (id SERIAL);")},
		"m/010_later.sql":     {Data: []byte("SELECT 10;")},
	}

	migrations, err := NewMigrator(nil, src, "m").LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}

	want := []int{1, 2, 10}
	for i, v := range want {
		if migrations[i].Version != v {
			t.Errorf("migration %d: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
	if migrations[0].Name != "001_reference.sql" {
		t.Errorf("expected name 001_reference.sql, got %s", migrations[0].Name)
	}
	if migrations[0].SQL != "CREATE TABLE reference (id SERIAL);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
}

func TestLoadMigrations_SkipsInvalidNames(t *testing.T) {
	src := fstest.MapFS{
		"m/001_valid.sql":     {Data: []byte("SELECT 1;")},
		"m/README.md":         {Data: []byte("docs")},
		"m/noprefix.sql":      {Data: []byte("SELECT 2;")},
		"m/abc_letters.sql":   {Data: []byte("SELECT 3;")},
		"m/000_zero.sql":      {Data: []byte("SELECT 0;")},
		"m/sub/002_inner.sql": {Data: []byte("SELECT 4;")},
	}

	migrations, err := NewMigrator(nil, src, "m").LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 1 || migrations[0].Name != "001_valid.sql" {
		t.Fatalf("expected only 001_valid.sql, got %+v", migrations)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	src := fstest.MapFS{
		"m/001_a.sql":  {Data: []byte("SELECT 1;")},
		"m/0001_b.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := NewMigrator(nil, src, "m").LoadMigrations(); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestLoadMigrations_MissingDir(t *testing.T) {
	if _, err := NewMigrator(nil, fstest.MapFS{}, "nope").LoadMigrations(); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := NewMigrator(nil, Migrations, "migrations").LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("expected embedded migrations, got %d", len(migrations))
	}
	if !strings.Contains(migrations[0].SQL, "diabetes_health_indicators") {
		t.Error("expected first migration to create the reference table")
	}
	for _, col := range []string{`"HighBP"`, `"BMI"`, `"Sex"`, `"Age"`, `"HvyAlcoholConsump"`} {
		if !strings.Contains(migrations[0].SQL, col) {
			t.Errorf("reference table missing column %s", col)
		}
	}
}

// fakeDB records statements. Embedded interfaces are nil; only the methods
// the migrator calls are implemented.
type fakeDB struct {
	applied  map[int]time.Time
	execs    []string
	txExecs  []string
	commits  int
	failExec string
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	r := &fakeRows{}
	for v, at := range f.applied {
		r.data = append(r.data, [2]any{v, at})
	}
	return r, nil
}

func (f *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{db: f}, nil
}

type fakeTx struct {
	pgx.Tx
	db *fakeDB
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if t.db.failExec != "" && strings.Contains(sql, t.db.failExec) {
		return pgconn.CommandTag{}, errors.New("syntax error")
	}
	t.db.txExecs = append(t.db.txExecs, sql)
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.db.commits++
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeRows struct {
	pgx.Rows
	data [][2]any
	pos  int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos <= len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	*dest[0].(*int) = row[0].(int)
	*dest[1].(*time.Time) = row[1].(time.Time)
	return nil
}

func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     {}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"m/001_reference.sql": {Data: []byte("CREATE TABLE reference (id SERIAL);")},
		"m/002_imports.sql":   {Data: []byte("CREATE TABLE imports (id SERIAL);")},
	}
}

func TestMigrator_Up(t *testing.T) {
	db := &fakeDB{applied: map[int]time.Time{1: time.Now()}}

	n, err := NewMigrator(db, testFS(), "m").Up(context.Background())
	if err != nil {
		t.Fatalf("Up() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 applied migration, got %d", n)
	}
	if db.commits != 1 {
		t.Errorf("expected 1 commit, got %d", db.commits)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0], "schema_migrations") {
		t.Errorf("expected tracking table creation, got %v", db.execs)
	}
	if len(db.txExecs) != 2 || !strings.Contains(db.txExecs[0], "imports") {
		t.Errorf("expected migration 2 and its record, got %v", db.txExecs)
	}
}

func TestMigrator_Up_StopsOnFailure(t *testing.T) {
	db := &fakeDB{failExec: "reference"}

	n, err := NewMigrator(db, testFS(), "m").Up(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if n != 0 || db.commits != 0 {
		t.Errorf("expected nothing applied, got n=%d commits=%d", n, db.commits)
	}
	if !strings.Contains(err.Error(), "001_reference.sql") {
		t.Errorf("expected failing file in error, got %v", err)
	}
}

func TestMigrator_Status(t *testing.T) {
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	db := &fakeDB{applied: map[int]time.Time{1: at}}

	statuses, err := NewMigrator(db, testFS(), "m").Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected migration 1 applied at %v, got %+v", at, statuses[0])
	}
	if statuses[1].Applied || statuses[1].AppliedAt != nil {
		t.Errorf("expected migration 2 pending, got %+v", statuses[1])
	}
}

func TestRecordImport(t *testing.T) {
	db := &fakeDB{}
	if err := RecordImport(context.Background(), db, "brfss.csv", "diabetes_health_indicators", 3); err != nil {
		t.Fatalf("RecordImport() error: %v", err)
	}
	if len(db.execs) != 1 || !strings.Contains(db.execs[0], "reference_imports") {
		t.Errorf("unexpected statements %v", db.execs)
	}
}
