// Package migrations exposes the embedded twilio schema per SQL dialect and
// registers it with a migration runner such as go-persistence-bun.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	twilio "github.com/goliatone/go-twilio"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	// SourceLabel tags registered migrations so the runner can tell them
	// apart from the host application's own.
	SourceLabel = "go-twilio"

	migrationsDir = "data/sql/migrations"
)

// FilesystemSpec is one dialect's migration tree.
type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel string
	Dialects    []string
	Filesystems []FilesystemSpec
}

// RegisterFunc receives each selected dialect tree.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if label = strings.TrimSpace(label); label != "" {
			r.SourceLabel = label
		}
	}
}

// WithValidationTargets limits registration to the named dialects. Unknown
// names are kept so Register can reject them.
func WithValidationTargets(dialects ...string) Option {
	return func(r *Registration) {
		selected := normalizeDialects(dialects)
		if len(selected) > 0 {
			r.Dialects = selected
		}
	}
}

// Filesystems returns the postgres tree (the migrations root) and the sqlite
// tree (its sqlite/ subdirectory). root defaults to the embedded schema and
// may also point directly at a directory of .sql files.
func Filesystems(root ...fs.FS) ([]FilesystemSpec, error) {
	source := twilio.GetCoreMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		source = root[0]
	}

	postgresFS, postgresPath, err := locate(source)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(postgresFS, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: sqlite tree under %s: %w", postgresPath, err)
	}
	sqlitePath := DialectSQLite
	if postgresPath != "." {
		sqlitePath = postgresPath + "/" + DialectSQLite
	}

	specs := []FilesystemSpec{
		{Dialect: DialectPostgres, Path: postgresPath, FS: postgresFS},
		{Dialect: DialectSQLite, Path: sqlitePath, FS: sqliteFS},
	}
	for _, spec := range specs {
		ups, globErr := fs.Glob(spec.FS, "*.up.sql")
		if globErr != nil {
			return nil, fmt.Errorf("migrations: list %s migrations: %w", spec.Dialect, globErr)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: no %s up migrations in %q", spec.Dialect, spec.Path)
		}
	}
	return specs, nil
}

// Register hands every selected dialect tree to registerFn, postgres first.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel: SourceLabel,
		Dialects:    []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	specs, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = specs

	byDialect := make(map[string]FilesystemSpec, len(specs))
	for _, spec := range specs {
		byDialect[spec.Dialect] = spec
	}
	for _, dialect := range reg.Dialects {
		if _, ok := byDialect[dialect]; !ok {
			return reg, fmt.Errorf("migrations: unsupported dialect %q", dialect)
		}
	}
	for _, spec := range specs {
		if !containsDialect(reg.Dialects, spec.Dialect) {
			continue
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s from %s: %w", spec.Dialect, spec.Path, err)
		}
	}
	return reg, nil
}

func locate(source fs.FS) (fs.FS, string, error) {
	if _, err := fs.Stat(source, migrationsDir); err == nil {
		sub, subErr := fs.Sub(source, migrationsDir)
		if subErr != nil {
			return nil, "", fmt.Errorf("migrations: open %s: %w", migrationsDir, subErr)
		}
		return sub, migrationsDir, nil
	}
	if files, err := fs.Glob(source, "*.sql"); err == nil && len(files) > 0 {
		return source, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: %s not found", migrationsDir)
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" || containsDialect(out, value) {
			continue
		}
		out = append(out, value)
	}
	return out
}

func containsDialect(dialects []string, dialect string) bool {
	for _, candidate := range dialects {
		if candidate == dialect {
			return true
		}
	}
	return false
}
