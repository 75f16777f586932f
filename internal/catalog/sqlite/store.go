// Package sqlite keeps the catalog in a SQLite database. Rate changes live
// in a child table ordered by insertion position.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"billable/internal/catalog"
	"billable/internal/core"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath and migrates it.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const projectColumns = `SELECT id, name, client_id, color, hidden FROM projects`

func (s *Store) ListProjects(ctx context.Context) ([]core.Project, error) {
	return s.queryProjects(ctx, projectColumns+` ORDER BY name, id`)
}

func (s *Store) ClientProjects(ctx context.Context, clientID string) ([]core.Project, error) {
	return s.queryProjects(ctx, projectColumns+` WHERE client_id = ? ORDER BY name, id`, clientID)
}

func (s *Store) GetProject(ctx context.Context, id string) (core.Project, error) {
	ps, err := s.queryProjects(ctx, projectColumns+` WHERE id = ?`, id)
	if err != nil {
		return core.Project{}, err
	}
	if len(ps) == 0 {
		return core.Project{}, fmt.Errorf("%w: project %s", core.ErrNotFound, id)
	}
	return ps[0], nil
}

func (s *Store) SaveProject(ctx context.Context, p core.Project) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO projects (id, name, client_id, color, hidden) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.ClientID, p.Color, p.Hidden)
		if err != nil {
			if exists, _ := rowExists(ctx, tx, `SELECT 1 FROM projects WHERE id = ?`, p.ID); exists {
				return fmt.Errorf("%w: project %s already exists", core.ErrConsistencyViolation, p.ID)
			}
			return fmt.Errorf("%w: insert project: %v", core.ErrIOFailure, err)
		}
		return insertRates(ctx, tx, p)
	})
}

func (s *Store) UpdateProject(ctx context.Context, p core.Project) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE projects SET name = ?, client_id = ?, color = ?, hidden = ? WHERE id = ?`,
			p.Name, p.ClientID, p.Color, p.Hidden, p.ID)
		if err := affected(res, err, "project", p.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rate_changes WHERE project_id = ?`, p.ID); err != nil {
			return fmt.Errorf("%w: clear rate changes: %v", core.ErrIOFailure, err)
		}
		return insertRates(ctx, tx, p)
	})
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rate_changes WHERE project_id = ?`, id); err != nil {
			return fmt.Errorf("%w: delete rate changes: %v", core.ErrIOFailure, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
		return affected(res, err, "project", id)
	})
}

func (s *Store) ListClients(ctx context.Context) ([]core.Client, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, logo_path FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list clients: %v", core.ErrIOFailure, err)
	}
	defer rows.Close()

	clients := []core.Client{}
	for rows.Next() {
		var c core.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.LogoPath); err != nil {
			return nil, fmt.Errorf("%w: scan client: %v", core.ErrIOFailure, err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list clients: %v", core.ErrIOFailure, err)
	}
	return clients, nil
}

func (s *Store) GetClient(ctx context.Context, id string) (core.Client, error) {
	var c core.Client
	err := s.db.QueryRowContext(ctx, `SELECT id, name, logo_path FROM clients WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.LogoPath)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Client{}, fmt.Errorf("%w: client %s", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Client{}, fmt.Errorf("%w: get client: %v", core.ErrIOFailure, err)
	}
	return c, nil
}

func (s *Store) SaveClient(ctx context.Context, c core.Client) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO clients (id, name, logo_path) VALUES (?, ?, ?)`, c.ID, c.Name, c.LogoPath)
	if err != nil {
		if exists, _ := rowExists(ctx, s.db, `SELECT 1 FROM clients WHERE id = ?`, c.ID); exists {
			return fmt.Errorf("%w: client %s already exists", core.ErrConsistencyViolation, c.ID)
		}
		return fmt.Errorf("%w: insert client: %v", core.ErrIOFailure, err)
	}
	return nil
}

func (s *Store) UpdateClient(ctx context.Context, c core.Client) error {
	res, err := s.db.ExecContext(ctx, `UPDATE clients SET name = ?, logo_path = ? WHERE id = ?`, c.Name, c.LogoPath, c.ID)
	return affected(res, err, "client", c.ID)
}

func (s *Store) DeleteClient(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	return affected(res, err, "client", id)
}

func (s *Store) queryProjects(ctx context.Context, query string, args ...any) ([]core.Project, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query projects: %v", core.ErrIOFailure, err)
	}
	projects := []core.Project{}
	for rows.Next() {
		var p core.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.ClientID, &p.Color, &p.Hidden); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scan project: %v", core.ErrIOFailure, err)
		}
		projects = append(projects, p)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: query projects: %v", core.ErrIOFailure, err)
	}

	// MaxOpenConns is 1, so the project rows are closed before this query.
	for i := range projects {
		rates, err := s.rates(ctx, projects[i].ID)
		if err != nil {
			return nil, err
		}
		projects[i].RateChanges = rates
	}
	return projects, nil
}

func (s *Store) rates(ctx context.Context, projectID string) ([]core.RateChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hourly_rate, effective_date FROM rate_changes WHERE project_id = ? ORDER BY position`, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: query rate changes: %v", core.ErrIOFailure, err)
	}
	defer rows.Close()

	rates := []core.RateChange{}
	for rows.Next() {
		var (
			rc        core.RateChange
			effective sql.NullString
		)
		if err := rows.Scan(&rc.HourlyRate, &effective); err != nil {
			return nil, fmt.Errorf("%w: scan rate change: %v", core.ErrIOFailure, err)
		}
		if effective.Valid {
			d, err := core.ParseDate(effective.String)
			if err != nil {
				return nil, fmt.Errorf("%w: project %s: %v", core.ErrIOFailure, projectID, err)
			}
			rc.EffectiveDate = &d
		}
		rates = append(rates, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query rate changes: %v", core.ErrIOFailure, err)
	}
	return rates, nil
}

func insertRates(ctx context.Context, tx *sql.Tx, p core.Project) error {
	for i, rc := range p.RateChanges {
		var effective sql.NullString
		if rc.EffectiveDate != nil {
			effective = sql.NullString{String: rc.EffectiveDate.String(), Valid: true}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO rate_changes (project_id, position, hourly_rate, effective_date) VALUES (?, ?, ?, ?)`,
			p.ID, i, rc.HourlyRate, effective)
		if err != nil {
			return fmt.Errorf("%w: insert rate change: %v", core.ErrIOFailure, err)
		}
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", core.ErrIOFailure, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", core.ErrIOFailure, err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func rowExists(ctx context.Context, q queryer, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func affected(res sql.Result, err error, kind, id string) error {
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", core.ErrIOFailure, kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", core.ErrIOFailure, kind, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", core.ErrNotFound, kind, id)
	}
	return nil
}

var _ catalog.Store = (*Store)(nil)
