package http

import (
	"net/http"

	"github.com/google/uuid"

	"billable/internal/log"
)

func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	ym, err := parseMonthPath(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	if l, ok := s.months.Get(ym); ok {
		NewJSONResponse().Header("X-Cache", "HIT").Data(l).Write(w)
		return
	}
	l, err := s.ledger.LoadMonth(r.Context(), ym)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	s.months.Set(l)
	NewJSONResponse().Header("X-Cache", "MISS").Data(l).Write(w)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badInput(w, r, log.OpCreate, err)
		return
	}
	task, err := req.task()
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	l, err := s.ledger.SaveTask(r.Context(), task)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	s.months.InvalidateFrom(l.Month)
	NewJSONResponse().Status(http.StatusCreated).Success(task.ID).Write(w)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	ym, err := parseMonthPath(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badInput(w, r, log.OpUpdate, err)
		return
	}
	fields, err := req.fields()
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	id := r.PathValue("id")
	if _, err := s.ledger.UpdateTask(r.Context(), ym, id, fields); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	s.months.InvalidateFrom(ym)
	NewJSONResponse().Success(id).Write(w)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	ym, err := parseMonthPath(r)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	id := r.PathValue("id")
	if _, err := s.ledger.DeleteTask(r.Context(), ym, id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	s.months.InvalidateFrom(ym)
	NewJSONResponse().Success(id).Write(w)
}

func (s *Server) handleRecurringTasks(w http.ResponseWriter, r *http.Request) {
	defs, err := s.ledger.LoadRecurringDefinitions(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Data(defs).Write(w)
}
