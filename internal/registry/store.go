package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"jobgraph/internal/config"
	"jobgraph/internal/job"
	"jobgraph/internal/services"
)

// Store persists registered templates backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Record is one registered template.
type Record struct {
	Name         string
	EntryPointID string
	TemplateID   string
	Description  string
	Properties   []job.PropertySlot
	Values       []job.ValueSlot
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Template returns the record as a job template.
func (r Record) Template() job.Template {
	return job.Template{
		EntryPointID: r.EntryPointID,
		ID:           r.TemplateID,
		Name:         r.Name,
		Description:  r.Description,
		Properties:   append([]job.PropertySlot(nil), r.Properties...),
		Values:       append([]job.ValueSlot(nil), r.Values...),
	}
}

// FromTemplate builds a record for tmpl.
func FromTemplate(tmpl job.Template) Record {
	return Record{
		Name:         tmpl.Name,
		EntryPointID: tmpl.EntryPointID,
		TemplateID:   tmpl.ID,
		Description:  tmpl.Description,
		Properties:   tmpl.Properties,
		Values:       tmpl.Values,
	}
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open initializes or connects to the registry database in Paths.StateDir.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.StateDir, "registry.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Put inserts or replaces the record and its slots. CreatedAt is preserved
// across replacements.
func (s *Store) Put(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.Name) == "" {
		return services.Wrap(services.ErrValidation, "registry", "put", "record name is required", nil)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin put tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO templates (name, entry_point_id, template_id, description, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				entry_point_id = excluded.entry_point_id,
				template_id = excluded.template_id,
				description = excluded.description,
				updated_at = excluded.updated_at`,
			rec.Name, rec.EntryPointID, rec.TemplateID, rec.Description, now, now,
		); err != nil {
			return fmt.Errorf("upsert template %q: %w", rec.Name, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM slots WHERE template_name = ?", rec.Name); err != nil {
			return fmt.Errorf("clear slots for %q: %w", rec.Name, err)
		}

		const insertSlot = `
			INSERT INTO slots (template_name, position, kind, name, slot_id, description, allowed_types,
				value_type, required, min_length, max_length, pattern, default_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		position := 0
		for _, p := range rec.Properties {
			if _, err := tx.ExecContext(ctx, insertSlot, rec.Name, position, "property", p.Name, p.ID,
				p.Description, strings.Join(p.AllowedTypes, ","), "", boolInt(p.Required), nil, nil, "", ""); err != nil {
				return fmt.Errorf("insert property %q: %w", p.Name, err)
			}
			position++
		}
		for _, v := range rec.Values {
			if _, err := tx.ExecContext(ctx, insertSlot, rec.Name, position, "value", v.Name, v.ID,
				v.Description, "", string(v.Type), boolInt(v.Required), nullInt(v.MinLength), nullInt(v.MaxLength),
				v.Pattern, v.Default); err != nil {
				return fmt.Errorf("insert value %q: %w", v.Name, err)
			}
			position++
		}
		return tx.Commit()
	})
}

// Get returns the record registered under name.
func (s *Store) Get(ctx context.Context, name string) (*Record, error) {
	return s.getBy(ctx, "name = ?", name)
}

// GetByEntryPoint returns the record registered for an entry point id.
func (s *Store) GetByEntryPoint(ctx context.Context, entryPointID string) (*Record, error) {
	return s.getBy(ctx, "entry_point_id = ?", entryPointID)
}

// Lookup resolves key as a registered name, then as an entry point id.
func (s *Store) Lookup(ctx context.Context, key string) (*Record, error) {
	rec, err := s.Get(ctx, key)
	if errors.Is(err, services.ErrNotFound) {
		return s.GetByEntryPoint(ctx, key)
	}
	return rec, err
}

func (s *Store) getBy(ctx context.Context, where string, arg string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT name, entry_point_id, template_id, description, created_at, updated_at FROM templates WHERE "+where, arg)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "registry", "get", fmt.Sprintf("no template registered for %q", arg), nil)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadSlots(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns every record ordered by name.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, entry_point_id, template_id, description, created_at, updated_at FROM templates ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	for i := range records {
		if err := s.loadSlots(ctx, &records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// Delete removes the record registered under name. Deleting an unknown
// name is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE name = ?", name)
		return err
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec                  Record
		createdAt, updatedAt string
	)
	if err := row.Scan(&rec.Name, &rec.EntryPointID, &rec.TemplateID, &rec.Description, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &rec, nil
}

func (s *Store) loadSlots(ctx context.Context, rec *Record) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, name, slot_id, description, allowed_types, value_type, required,
			min_length, max_length, pattern, default_value
		FROM slots WHERE template_name = ? ORDER BY position`, rec.Name)
	if err != nil {
		return fmt.Errorf("load slots for %q: %w", rec.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind, name, id, description, allowed, valueType, pattern, def string
			required                                                      int
			minLength, maxLength                                          sql.NullInt64
		)
		if err := rows.Scan(&kind, &name, &id, &description, &allowed, &valueType, &required,
			&minLength, &maxLength, &pattern, &def); err != nil {
			return fmt.Errorf("scan slot: %w", err)
		}
		switch kind {
		case "property":
			var types []string
			if allowed != "" {
				types = strings.Split(allowed, ",")
			}
			rec.Properties = append(rec.Properties, job.PropertySlot{
				ID: id, Name: name, Description: description, AllowedTypes: types, Required: required != 0,
			})
		case "value":
			rec.Values = append(rec.Values, job.ValueSlot{
				ID: id, Name: name, Description: description, Type: job.ValueType(valueType),
				Required: required != 0, MinLength: intPtr(minLength), MaxLength: intPtr(maxLength),
				Pattern: pattern, Default: def,
			})
		}
	}
	return rows.Err()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
