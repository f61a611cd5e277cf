// Package migration applies and scaffolds the SQL schema migrations of the ledger.
package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"
)

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"

	// versionLayout sorts lexically in apply order
	versionLayout = "20060102150405"
)

const migrationUpTemplate = `-- Migration: {{.Name}}
-- Description: {{.Description}}

`

const migrationDownTemplate = `-- Migration: {{.Name}} (Rollback)

`

// ErrUnpairedMigration is returned by Validate when a version lacks its up or down file
var ErrUnpairedMigration = errors.New("migration is missing its up or down file")

// MigrationFile represents a migration file pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	UpPath      string
	DownPath    string
}

// CreateMigration writes an empty up/down pair named after the current UTC time
func CreateMigration(migrationsDir, name, description string) (*MigrationFile, error) {
	return createMigrationAt(migrationsDir, name, description, time.Now().UTC())
}

func createMigrationAt(migrationsDir, name, description string, now time.Time) (*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	version := now.Format(versionLayout)
	base := version + "_" + slug
	mf := &MigrationFile{
		Version:     version,
		Name:        name,
		Description: description,
		UpPath:      filepath.Join(migrationsDir, base+upSuffix),
		DownPath:    filepath.Join(migrationsDir, base+downSuffix),
	}

	if err := writeTemplate(mf.UpPath, migrationUpTemplate, mf); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := writeTemplate(mf.DownPath, migrationDownTemplate, mf); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}
	return mf, nil
}

func writeTemplate(path, tmplContent string, data *MigrationFile) error {
	tmpl, err := template.New("migration").Parse(tmplContent)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return tmpl.Execute(f, data)
}

// sanitizeName lowercases name and joins its alphanumeric runs with underscores
func sanitizeName(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			pendingSep = true
		}
	}
	return b.String()
}

// ListMigrations returns the sorted base names of the up migrations in fsys
func ListMigrations(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	names := make([]string, 0, len(entries)/2)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(entry.Name(), upSuffix); ok {
			names = append(names, base)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Validate checks that every migration in fsys has both files and a unique version
func Validate(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	versions := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		var base string
		switch {
		case strings.HasSuffix(name, upSuffix):
			base = strings.TrimSuffix(name, upSuffix)
			ups[base] = true
		case strings.HasSuffix(name, downSuffix):
			base = strings.TrimSuffix(name, downSuffix)
			downs[base] = true
		default:
			continue
		}

		version, _, _ := strings.Cut(base, "_")
		if other, ok := versions[version]; ok && other != base {
			return fmt.Errorf("version %s used by %s and %s", version, other, base)
		}
		versions[version] = base
	}

	var errs []error
	for base := range ups {
		if !downs[base] {
			errs = append(errs, fmt.Errorf("%s: %w", base, ErrUnpairedMigration))
		}
	}
	for base := range downs {
		if !ups[base] {
			errs = append(errs, fmt.Errorf("%s: %w", base, ErrUnpairedMigration))
		}
	}
	return errors.Join(errs...)
}
