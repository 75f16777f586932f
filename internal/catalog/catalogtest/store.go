// Package catalogtest holds behaviour tests shared by catalog backends.
package catalogtest

import (
	"context"
	"errors"
	"testing"

	"billable/internal/catalog"
	"billable/internal/core"
)

func date(s string) *core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &d
}

// RunStoreTests exercises a Store created fresh by newStore for each case.
func RunStoreTests(t *testing.T, newStore func(t *testing.T) catalog.Store) {
	ctx := context.Background()

	t.Run("empty lists", func(t *testing.T) {
		s := newStore(t)
		ps, err := s.ListProjects(ctx)
		if err != nil || ps == nil || len(ps) != 0 {
			t.Fatalf("ListProjects() = %v, %v; want empty non-nil", ps, err)
		}
		cs, err := s.ListClients(ctx)
		if err != nil || cs == nil || len(cs) != 0 {
			t.Fatalf("ListClients() = %v, %v; want empty non-nil", cs, err)
		}
	})

	t.Run("projects sorted by name with rate history", func(t *testing.T) {
		s := newStore(t)
		web := core.Project{
			ID: "p2", Name: "Website", ClientID: "c1", Color: "#f00",
			RateChanges: []core.RateChange{
				{HourlyRate: 50},
				{HourlyRate: 60, EffectiveDate: date("2024-03-01")},
			},
		}
		api := core.Project{ID: "p1", Name: "API", ClientID: "c2", Hidden: true,
			RateChanges: []core.RateChange{{HourlyRate: 80}}}
		for _, p := range []core.Project{web, api} {
			if err := s.SaveProject(ctx, p); err != nil {
				t.Fatalf("SaveProject(%s) error = %v", p.ID, err)
			}
		}

		ps, err := s.ListProjects(ctx)
		if err != nil {
			t.Fatalf("ListProjects() error = %v", err)
		}
		if len(ps) != 2 || ps[0].Name != "API" || ps[1].Name != "Website" {
			t.Fatalf("ListProjects() order = %+v", ps)
		}
		if !ps[0].Hidden {
			t.Error("hidden flag lost")
		}

		got, err := s.GetProject(ctx, "p2")
		if err != nil {
			t.Fatalf("GetProject() error = %v", err)
		}
		if len(got.RateChanges) != 2 || got.RateChanges[1].EffectiveDate.String() != "2024-03-01" {
			t.Fatalf("rate history = %+v", got.RateChanges)
		}
		if rate, _ := got.RateOn(*date("2024-03-10")); rate != 60 {
			t.Errorf("RateOn() = %v, want 60", rate)
		}

		own, err := s.ClientProjects(ctx, "c1")
		if err != nil || len(own) != 1 || own[0].ID != "p2" {
			t.Fatalf("ClientProjects() = %v, %v", own, err)
		}
	})

	t.Run("project update and delete", func(t *testing.T) {
		s := newStore(t)
		p := core.Project{ID: "p1", Name: "Old", ClientID: "c1", RateChanges: []core.RateChange{{HourlyRate: 10}}}
		if err := s.SaveProject(ctx, p); err != nil {
			t.Fatal(err)
		}
		if err := s.SaveProject(ctx, p); !errors.Is(err, core.ErrConsistencyViolation) {
			t.Fatalf("duplicate SaveProject() error = %v", err)
		}

		p.Name = "New"
		p.RateChanges = []core.RateChange{{HourlyRate: 20}}
		if err := s.UpdateProject(ctx, p); err != nil {
			t.Fatalf("UpdateProject() error = %v", err)
		}
		got, _ := s.GetProject(ctx, "p1")
		if got.Name != "New" || len(got.RateChanges) != 1 || got.RateChanges[0].HourlyRate != 20 {
			t.Fatalf("after update = %+v", got)
		}

		if err := s.DeleteProject(ctx, "p1"); err != nil {
			t.Fatalf("DeleteProject() error = %v", err)
		}
		if _, err := s.GetProject(ctx, "p1"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("GetProject() after delete error = %v", err)
		}
		if err := s.DeleteProject(ctx, "p1"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("second DeleteProject() error = %v", err)
		}
		if err := s.UpdateProject(ctx, p); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("UpdateProject() of missing error = %v", err)
		}
	})

	t.Run("clients", func(t *testing.T) {
		s := newStore(t)
		for _, c := range []core.Client{{ID: "c1", Name: "Zeta"}, {ID: "c2", Name: "Acme"}} {
			if err := s.SaveClient(ctx, c); err != nil {
				t.Fatalf("SaveClient() error = %v", err)
			}
		}
		cs, err := s.ListClients(ctx)
		if err != nil || len(cs) != 2 || cs[0].Name != "Acme" {
			t.Fatalf("ListClients() = %v, %v", cs, err)
		}

		if err := s.UpdateClient(ctx, core.Client{ID: "c1", Name: "Zeta", LogoPath: "/api/logos/c1_a.png"}); err != nil {
			t.Fatalf("UpdateClient() error = %v", err)
		}
		got, err := s.GetClient(ctx, "c1")
		if err != nil || got.LogoPath != "/api/logos/c1_a.png" {
			t.Fatalf("GetClient() = %+v, %v", got, err)
		}

		if err := s.DeleteClient(ctx, "c1"); err != nil {
			t.Fatalf("DeleteClient() error = %v", err)
		}
		if _, err := s.GetClient(ctx, "c1"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("GetClient() after delete error = %v", err)
		}
		if err := s.UpdateClient(ctx, core.Client{ID: "nope", Name: "x"}); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("UpdateClient() of missing error = %v", err)
		}
	})
}
