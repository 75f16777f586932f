// Package catalog manages projects and clients, the reference data the
// ledger prices work against.
package catalog

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"

	"billable/internal/core"
	"billable/internal/log"
)

// Store is a catalog backend. Lists come back sorted by name. Get, update
// and delete of an unknown id return core.ErrNotFound; saving an id that
// already exists returns core.ErrConsistencyViolation.
type Store interface {
	ListProjects(ctx context.Context) ([]core.Project, error)
	GetProject(ctx context.Context, id string) (core.Project, error)
	SaveProject(ctx context.Context, p core.Project) error
	UpdateProject(ctx context.Context, p core.Project) error
	DeleteProject(ctx context.Context, id string) error
	ClientProjects(ctx context.Context, clientID string) ([]core.Project, error)

	ListClients(ctx context.Context) ([]core.Client, error)
	GetClient(ctx context.Context, id string) (core.Client, error)
	SaveClient(ctx context.Context, c core.Client) error
	UpdateClient(ctx context.Context, c core.Client) error
	DeleteClient(ctx context.Context, id string) error
}

// Logo is an uploaded client logo.
type Logo struct {
	Filename string
	Body     io.Reader
}

// Catalog validates and assigns ids before handing records to a Store, and
// keeps client logos in step with their clients.
type Catalog struct {
	store  Store
	logos  *LogoStore
	logger *log.Logger
}

func New(store Store, logos *LogoStore, logger *log.Logger) *Catalog {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Catalog{
		store:  store,
		logos:  logos,
		logger: logger.WithComponent(log.ComponentCatalog),
	}
}

func (c *Catalog) ListProjects(ctx context.Context) ([]core.Project, error) {
	return c.store.ListProjects(ctx)
}

func (c *Catalog) GetProject(ctx context.Context, id string) (core.Project, error) {
	return c.store.GetProject(ctx, id)
}

func (c *Catalog) ClientProjects(ctx context.Context, clientID string) ([]core.Project, error) {
	return c.store.ClientProjects(ctx, clientID)
}

// SaveProject creates p, assigning an id when it has none.
func (c *Catalog) SaveProject(ctx context.Context, p core.Project) (core.Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}
	if err := c.store.SaveProject(ctx, p); err != nil {
		return core.Project{}, fmt.Errorf("save project %s: %w", p.ID, err)
	}
	c.logger.InfoContext(ctx, "Project saved", log.FieldProjectID, p.ID, log.FieldClientID, p.ClientID)
	return p, nil
}

// UpdateProject replaces the project stored under id.
func (c *Catalog) UpdateProject(ctx context.Context, id string, p core.Project) (core.Project, error) {
	p.ID = id
	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}
	if err := c.store.UpdateProject(ctx, p); err != nil {
		return core.Project{}, fmt.Errorf("update project %s: %w", id, err)
	}
	c.logger.InfoContext(ctx, "Project updated", log.FieldProjectID, id)
	return p, nil
}

func (c *Catalog) DeleteProject(ctx context.Context, id string) error {
	if err := c.store.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	c.logger.InfoContext(ctx, "Project deleted", log.FieldProjectID, id)
	return nil
}

func (c *Catalog) ListClients(ctx context.Context) ([]core.Client, error) {
	return c.store.ListClients(ctx)
}

func (c *Catalog) GetClient(ctx context.Context, id string) (core.Client, error) {
	return c.store.GetClient(ctx, id)
}

// SaveClient creates a client named name, storing logo when given.
func (c *Catalog) SaveClient(ctx context.Context, name string, logo *Logo) (core.Client, error) {
	client := core.Client{ID: uuid.NewString(), Name: name}
	if err := client.Validate(); err != nil {
		return core.Client{}, err
	}
	if err := c.store.SaveClient(ctx, client); err != nil {
		return core.Client{}, fmt.Errorf("save client: %w", err)
	}
	if logo != nil {
		path, err := c.saveLogo(ctx, client.ID, logo)
		if err != nil {
			return core.Client{}, err
		}
		client.LogoPath = path
		if err := c.store.UpdateClient(ctx, client); err != nil {
			return core.Client{}, fmt.Errorf("update client %s: %w", client.ID, err)
		}
	}
	c.logger.InfoContext(ctx, "Client saved", log.FieldClientID, client.ID)
	return client, nil
}

// UpdateClient renames the client and replaces its logo when one is
// given. Without a new logo the current one is kept.
func (c *Catalog) UpdateClient(ctx context.Context, id, name string, logo *Logo) (core.Client, error) {
	client, err := c.store.GetClient(ctx, id)
	if err != nil {
		return core.Client{}, fmt.Errorf("update client %s: %w", id, err)
	}
	client.Name = name
	if err := client.Validate(); err != nil {
		return core.Client{}, err
	}
	if logo != nil {
		path, err := c.saveLogo(ctx, id, logo)
		if err != nil {
			return core.Client{}, err
		}
		client.LogoPath = path
	}
	if err := c.store.UpdateClient(ctx, client); err != nil {
		return core.Client{}, fmt.Errorf("update client %s: %w", id, err)
	}
	c.logger.InfoContext(ctx, "Client updated", log.FieldClientID, id)
	return client, nil
}

// DeleteClient removes the client and its logo. Projects of the client
// are left in place.
func (c *Catalog) DeleteClient(ctx context.Context, id string) error {
	if c.logos != nil {
		if err := c.logos.Remove(id); err != nil {
			c.logger.WarnContext(ctx, "Failed to remove client logo", log.FieldClientID, id, log.FieldError, err)
		}
	}
	if err := c.store.DeleteClient(ctx, id); err != nil {
		return fmt.Errorf("delete client %s: %w", id, err)
	}
	c.logger.InfoContext(ctx, "Client deleted", log.FieldClientID, id)
	return nil
}

func (c *Catalog) saveLogo(ctx context.Context, clientID string, logo *Logo) (string, error) {
	if c.logos == nil {
		return "", fmt.Errorf("%w: logo storage not configured", core.ErrConfiguration)
	}
	path, err := c.logos.Save(clientID, logo.Filename, logo.Body)
	if err != nil {
		return "", err
	}
	c.logger.DebugContext(ctx, "Logo stored", log.FieldClientID, clientID, "path", path)
	return path, nil
}

// SortProjects orders projects by name, then id.
func SortProjects(ps []core.Project) {
	slices.SortFunc(ps, func(a, b core.Project) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
}

// SortClients orders clients by name, then id.
func SortClients(cs []core.Client) {
	slices.SortFunc(cs, func(a, b core.Client) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
}
