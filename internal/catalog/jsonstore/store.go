// Package jsonstore keeps the catalog in projects.json and clients.json.
package jsonstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"billable/internal/catalog"
	"billable/internal/core"
	"billable/internal/ledger"
)

const (
	projectsFile = "projects.json"
	clientsFile  = "clients.json"
)

// Store reads the files on every call and rewrites the whole file on every
// change. The mutex serializes writers within the process.
type Store struct {
	mu  sync.Mutex
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) ListProjects(ctx context.Context) ([]core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projects(ctx)
}

func (s *Store) GetProject(ctx context.Context, id string) (core.Project, error) {
	ps, err := s.ListProjects(ctx)
	if err != nil {
		return core.Project{}, err
	}
	i := slices.IndexFunc(ps, func(p core.Project) bool { return p.ID == id })
	if i < 0 {
		return core.Project{}, fmt.Errorf("%w: project %s", core.ErrNotFound, id)
	}
	return ps[i], nil
}

func (s *Store) ClientProjects(ctx context.Context, clientID string) ([]core.Project, error) {
	ps, err := s.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(ps, func(p core.Project) bool { return p.ClientID != clientID }), nil
}

func (s *Store) SaveProject(ctx context.Context, p core.Project) error {
	return s.mutateProjects(ctx, func(ps []core.Project) ([]core.Project, error) {
		if slices.ContainsFunc(ps, func(o core.Project) bool { return o.ID == p.ID }) {
			return nil, fmt.Errorf("%w: project %s already exists", core.ErrConsistencyViolation, p.ID)
		}
		return append(ps, p), nil
	})
}

func (s *Store) UpdateProject(ctx context.Context, p core.Project) error {
	return s.mutateProjects(ctx, func(ps []core.Project) ([]core.Project, error) {
		i := slices.IndexFunc(ps, func(o core.Project) bool { return o.ID == p.ID })
		if i < 0 {
			return nil, fmt.Errorf("%w: project %s", core.ErrNotFound, p.ID)
		}
		ps[i] = p
		return ps, nil
	})
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.mutateProjects(ctx, func(ps []core.Project) ([]core.Project, error) {
		n := len(ps)
		ps = slices.DeleteFunc(ps, func(o core.Project) bool { return o.ID == id })
		if len(ps) == n {
			return nil, fmt.Errorf("%w: project %s", core.ErrNotFound, id)
		}
		return ps, nil
	})
}

func (s *Store) ListClients(ctx context.Context) ([]core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients(ctx)
}

func (s *Store) GetClient(ctx context.Context, id string) (core.Client, error) {
	cs, err := s.ListClients(ctx)
	if err != nil {
		return core.Client{}, err
	}
	i := slices.IndexFunc(cs, func(c core.Client) bool { return c.ID == id })
	if i < 0 {
		return core.Client{}, fmt.Errorf("%w: client %s", core.ErrNotFound, id)
	}
	return cs[i], nil
}

func (s *Store) SaveClient(ctx context.Context, c core.Client) error {
	return s.mutateClients(ctx, func(cs []core.Client) ([]core.Client, error) {
		if slices.ContainsFunc(cs, func(o core.Client) bool { return o.ID == c.ID }) {
			return nil, fmt.Errorf("%w: client %s already exists", core.ErrConsistencyViolation, c.ID)
		}
		return append(cs, c), nil
	})
}

func (s *Store) UpdateClient(ctx context.Context, c core.Client) error {
	return s.mutateClients(ctx, func(cs []core.Client) ([]core.Client, error) {
		i := slices.IndexFunc(cs, func(o core.Client) bool { return o.ID == c.ID })
		if i < 0 {
			return nil, fmt.Errorf("%w: client %s", core.ErrNotFound, c.ID)
		}
		cs[i] = c
		return cs, nil
	})
}

func (s *Store) DeleteClient(ctx context.Context, id string) error {
	return s.mutateClients(ctx, func(cs []core.Client) ([]core.Client, error) {
		n := len(cs)
		cs = slices.DeleteFunc(cs, func(o core.Client) bool { return o.ID == id })
		if len(cs) == n {
			return nil, fmt.Errorf("%w: client %s", core.ErrNotFound, id)
		}
		return cs, nil
	})
}

func (s *Store) projects(ctx context.Context) ([]core.Project, error) {
	var ps []core.Project
	if err := s.read(ctx, projectsFile, &ps); err != nil {
		return nil, err
	}
	catalog.SortProjects(ps)
	return nonNil(ps), nil
}

func (s *Store) clients(ctx context.Context) ([]core.Client, error) {
	var cs []core.Client
	if err := s.read(ctx, clientsFile, &cs); err != nil {
		return nil, err
	}
	catalog.SortClients(cs)
	return nonNil(cs), nil
}

func (s *Store) mutateProjects(ctx context.Context, fn func([]core.Project) ([]core.Project, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, err := s.projects(ctx)
	if err != nil {
		return err
	}
	if ps, err = fn(ps); err != nil {
		return err
	}
	catalog.SortProjects(ps)
	return ledger.WriteJSONFile(filepath.Join(s.dir, projectsFile), ps)
}

func (s *Store) mutateClients(ctx context.Context, fn func([]core.Client) ([]core.Client, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, err := s.clients(ctx)
	if err != nil {
		return err
	}
	if cs, err = fn(cs); err != nil {
		return err
	}
	catalog.SortClients(cs)
	return ledger.WriteJSONFile(filepath.Join(s.dir, clientsFile), cs)
}

func (s *Store) read(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := ledger.ReadJSONFile(filepath.Join(s.dir, name), v)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	return err
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

var _ catalog.Store = (*Store)(nil)
