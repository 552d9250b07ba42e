package database

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"
)

func migrationFiles(t *testing.T, pattern string) []string {
	t.Helper()
	files, err := fs.Glob(migrationsFS, "migrations/"+pattern)
	if err != nil {
		t.Fatalf("globbing migrations: %v", err)
	}
	return files
}

// TestMigrations_UpDownPairs ensures every .up.sql has a matching .down.sql.
func TestMigrations_UpDownPairs(t *testing.T) {
	ups := migrationFiles(t, "*.up.sql")
	if len(ups) == 0 {
		t.Fatal("no migration files embedded")
	}
	for _, up := range ups {
		down := strings.Replace(up, ".up.sql", ".down.sql", 1)
		if _, err := fs.Stat(migrationsFS, down); err != nil {
			t.Errorf("missing down migration for %s", up)
		}
	}
}

// TestMigrations_VersionsSequential catches duplicate or skipped version
// numbers, which golang-migrate rejects at startup.
func TestMigrations_VersionsSequential(t *testing.T) {
	versionPattern := regexp.MustCompile(`^migrations/(\d{6})_[a-z0-9_]+\.up\.sql$`)
	for i, up := range migrationFiles(t, "*.up.sql") {
		m := versionPattern.FindStringSubmatch(up)
		if m == nil {
			t.Errorf("%s: file name does not match NNNNNN_name.up.sql", up)
			continue
		}
		want := i + 1
		var got int
		for _, r := range m[1] {
			got = got*10 + int(r-'0')
		}
		if got != want {
			t.Errorf("%s: expected version %d, got %d", up, want, got)
		}
	}
}

// TestMigrations_TablesUseUTF8MB4 keeps emoji in post content from being
// truncated by a latin1 default charset.
func TestMigrations_TablesUseUTF8MB4(t *testing.T) {
	for _, up := range migrationFiles(t, "*.up.sql") {
		data, err := fs.ReadFile(migrationsFS, up)
		if err != nil {
			t.Fatalf("reading %s: %v", up, err)
		}
		sql := string(data)
		if strings.Contains(strings.ToUpper(sql), "CREATE TABLE") && !strings.Contains(sql, "utf8mb4") {
			t.Errorf("%s: CREATE TABLE without utf8mb4 charset", up)
		}
	}
}
