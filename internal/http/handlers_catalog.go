package http

import (
	"errors"
	"net/http"

	"billable/internal/core"
	"billable/internal/log"
)

// badInput writes malformed bodies as 400 and everything else through the
// usual mapping.
func (s *Server) badInput(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, errBadRequest) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Malformed request",
			log.FieldOperation, op, log.FieldError, err)
		BadRequestError(err.Error()).Write(w)
		return
	}
	writeError(w, r, op, err)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	ps, err := s.catalog.ListProjects(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Data(ps).Write(w)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var p core.Project
	if err := decodeJSON(w, r, &p); err != nil {
		s.badInput(w, r, log.OpCreate, err)
		return
	}
	p.Name = sanitizeInput(p.Name)
	saved, err := s.catalog.SaveProject(r.Context(), p)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Success(saved.ID).Write(w)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var p core.Project
	if err := decodeJSON(w, r, &p); err != nil {
		s.badInput(w, r, log.OpUpdate, err)
		return
	}
	p.Name = sanitizeInput(p.Name)
	saved, err := s.catalog.UpdateProject(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	// Rates feed every cached summary.
	s.months.Purge()
	NewJSONResponse().Success(saved.ID).Write(w)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.catalog.DeleteProject(r.Context(), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	s.months.Purge()
	NewJSONResponse().Success(id).Write(w)
}

// handleProjectSubresource serves /api/projects/client/{clientID} and
// /api/projects/{id}/rate.
func (s *Server) handleProjectSubresource(w http.ResponseWriter, r *http.Request) {
	a, b := r.PathValue("a"), r.PathValue("b")
	switch {
	case a == "client":
		s.clientProjects(w, r, b)
	case b == "rate":
		s.projectRate(w, r, a)
	default:
		NotFoundError("not found").Write(w)
	}
}

func (s *Server) clientProjects(w http.ResponseWriter, r *http.Request, clientID string) {
	ps, err := s.catalog.ClientProjects(r.Context(), clientID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Data(ps).Write(w)
}

type rateResponse struct {
	ProjectID  string    `json:"project_id"`
	Date       core.Date `json:"date"`
	HourlyRate float64   `json:"hourly_rate"`
}

func (s *Server) projectRate(w http.ResponseWriter, r *http.Request, projectID string) {
	resp := rateResponse{ProjectID: projectID}
	var err error
	if raw := r.URL.Query().Get("date"); raw != "" {
		resp.Date, err = core.ParseDate(raw)
		if err != nil {
			writeError(w, r, log.OpRead, err)
			return
		}
		resp.HourlyRate, err = s.ledger.GetRateForDate(r.Context(), projectID, resp.Date)
	} else {
		resp.Date = core.DateOf(timeNow())
		resp.HourlyRate, err = s.ledger.CurrentRate(r.Context(), projectID)
	}
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(resp).Write(w)
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	cs, err := s.catalog.ListClients(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Data(cs).Write(w)
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	name, logo, done, err := parseClientForm(w, r, s.maxLogoBytes)
	if err != nil {
		s.badInput(w, r, log.OpCreate, err)
		return
	}
	defer done()
	c, err := s.catalog.SaveClient(r.Context(), name, logo)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(c).Write(w)
}

func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	name, logo, done, err := parseClientForm(w, r, s.maxLogoBytes)
	if err != nil {
		s.badInput(w, r, log.OpUpdate, err)
		return
	}
	defer done()
	c, err := s.catalog.UpdateClient(r.Context(), r.PathValue("id"), name, logo)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(c).Write(w)
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.catalog.DeleteClient(r.Context(), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Success(id).Write(w)
}

func (s *Server) handleLogo(w http.ResponseWriter, r *http.Request) {
	path, err := s.logos.Path(r.PathValue("filename"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	http.ServeFile(w, r, path)
}
