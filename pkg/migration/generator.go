package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Generator writes and reads migration files.
type Generator struct {
	migrationsDir string
	planner       *Planner
}

// NewGenerator creates a new migration file generator.
func NewGenerator(migrationsDir string) *Generator {
	return &Generator{migrationsDir: migrationsDir, planner: NewPlanner()}
}

// Dir returns the migrations directory.
func (g *Generator) Dir() string {
	return g.migrationsDir
}

// Generate plans diff and writes it as a new migration.
func (g *Generator) Generate(name string, diff *SchemaDiff) (*MigrationFile, error) {
	upSQL, downSQL, err := g.planner.GenerateMigration(diff)
	if err != nil {
		return nil, err
	}
	return g.write(name, upSQL, downSQL)
}

// GenerateEmpty creates migration files for manual editing.
func (g *Generator) GenerateEmpty(name string) (*MigrationFile, error) {
	return g.write(name, "-- Write your UP migration here\n", "-- Write your DOWN migration here\n")
}

func (g *Generator) write(name, upSQL, downSQL string) (*MigrationFile, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(g.migrationsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	version := GenerateVersion()
	file := &MigrationFile{
		Version:  version,
		Name:     name,
		UpPath:   filepath.Join(g.migrationsDir, GenerateFileName(version, name, "up")),
		DownPath: filepath.Join(g.migrationsDir, GenerateFileName(version, name, "down")),
	}

	header := fmt.Sprintf("-- Migration: %s\n-- Version: %s\n\n", name, version)
	if err := os.WriteFile(file.UpPath, []byte(header+upSQL), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write up migration: %w", err)
	}
	if err := os.WriteFile(file.DownPath, []byte(header+downSQL), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write down migration: %w", err)
	}
	return file, nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("migration name is required")
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			return fmt.Errorf("migration name %q may only contain lower-case letters, digits and underscores", name)
		}
	}
	return nil
}

// ListMigrations lists complete (up and down) migrations, oldest first.
// A missing directory yields no migrations.
func (g *Generator) ListMigrations() ([]MigrationFile, error) {
	entries, err := os.ReadDir(g.migrationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	files := make(map[string]*MigrationFile)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, rest, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			continue
		}

		var name string
		var up bool
		if n, ok := strings.CutSuffix(rest, ".up.sql"); ok {
			name, up = n, true
		} else if n, ok := strings.CutSuffix(rest, ".down.sql"); ok {
			name = n
		} else {
			continue
		}

		f, exists := files[version]
		if !exists {
			f = &MigrationFile{Version: version, Name: name}
			files[version] = f
		}
		path := filepath.Join(g.migrationsDir, entry.Name())
		if up {
			f.UpPath = path
		} else {
			f.DownPath = path
		}
	}

	var migrations []MigrationFile
	for _, f := range files {
		if f.UpPath != "" && f.DownPath != "" {
			migrations = append(migrations, *f)
		}
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// ReadMigration reads the SQL of a migration file pair.
func (g *Generator) ReadMigration(file MigrationFile) (*Migration, error) {
	up, err := os.ReadFile(file.UpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read up migration: %w", err)
	}
	down, err := os.ReadFile(file.DownPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read down migration: %w", err)
	}
	return &Migration{
		Version: file.Version,
		Name:    file.Name,
		UpSQL:   string(up),
		DownSQL: string(down),
	}, nil
}

// LoadAll reads every complete migration in the directory, oldest first.
func (g *Generator) LoadAll() ([]Migration, error) {
	files, err := g.ListMigrations()
	if err != nil {
		return nil, err
	}
	migrations := make([]Migration, 0, len(files))
	for _, f := range files {
		m, err := g.ReadMigration(f)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, *m)
	}
	return migrations, nil
}
