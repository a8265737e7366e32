package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/orgdesk/modelgate/internal/models"
)

func TestDetectDialectFromDSN(t *testing.T) {
	cases := []struct {
		dsn     string
		want    string
		wantErr bool
	}{
		{dsn: "postgres://u:p@localhost:5432/usage", want: DialectPostgres},
		{dsn: "postgresql://u:p@localhost/usage", want: DialectPostgres},
		{dsn: "host=localhost user=gate dbname=usage sslmode=disable", want: DialectPostgres},
		{dsn: "data/app.db", want: DialectSQLite},
		{dsn: ":memory:", want: DialectSQLite},
		{dsn: "file:data/app.db?cache=shared", want: DialectSQLite},
		{dsn: "sqlite://data/app.db", want: DialectSQLite},
		{dsn: "sqlite3://data/app.db", want: DialectSQLite},
		{dsn: "mysql://u:p@localhost/usage", wantErr: true},
	}
	for _, tc := range cases {
		got, err := detectDialectFromDSN(tc.dsn)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error, got %s", tc.dsn, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tc.dsn, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.dsn, tc.want, got)
		}
	}
}

func TestNormalizeSQLiteDSN(t *testing.T) {
	if got := normalizeSQLiteDSN("sqlite://data/app.db"); got != "file:data/app.db" {
		t.Fatalf("unexpected: %s", got)
	}
	if got := normalizeSQLiteDSN("sqlite3://data/app.db"); got != "file:data/app.db" {
		t.Fatalf("unexpected: %s", got)
	}
	if got := normalizeSQLiteDSN("data/app.db"); got != "data/app.db" {
		t.Fatalf("unexpected: %s", got)
	}
}

func TestEnsureSQLiteParams(t *testing.T) {
	got := ensureSQLiteParams("data/app.db")
	for _, param := range []string{"_busy_timeout=5000", "_journal_mode=WAL", "_foreign_keys=on", "_synchronous=NORMAL"} {
		if !strings.Contains(got, param) {
			t.Fatalf("missing %s in %s", param, got)
		}
	}

	got = ensureSQLiteParams("data/app.db?_journal_mode=DELETE")
	if strings.Count(got, "_journal_mode") != 1 {
		t.Fatalf("journal mode must not be overridden: %s", got)
	}
}

func TestSQLitePathFromDSN(t *testing.T) {
	cases := []struct {
		dsn  string
		want string
	}{
		{dsn: "file:data/app.db?cache=shared", want: "data/app.db"},
		{dsn: "data/app.db", want: "data/app.db"},
		{dsn: ":memory:", want: ""},
		{dsn: "file::memory:?cache=shared", want: ""},
	}
	for _, tc := range cases {
		if got := sqlitePathFromDSN(tc.dsn); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.dsn, tc.want, got)
		}
	}
}

func TestOpenAndMigrateSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "app.db")

	conn, errOpen := Open(dsn)
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	if !IsSQLite(conn) {
		t.Fatalf("expected sqlite dialect, got %s", DialectName(conn))
	}

	for _, model := range []any{&models.UsageRecord{}, &models.Setting{}} {
		if !conn.Migrator().HasTable(model) {
			t.Fatalf("missing table for %T", model)
		}
	}
}

func TestOpenEmptyDSN(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}
