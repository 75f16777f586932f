package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"billable/internal/catalog"
	"billable/internal/core"
)

const maxJSONBody = 1 << 20

// decodeJSON reads a single JSON value from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, core.ErrValidation) {
			return err
		}
		return fmt.Errorf("%w: malformed JSON body: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return nil
}

var errBadRequest = errors.New("bad request")

// parseMonthPath reads {year}/{month} path values.
func parseMonthPath(r *http.Request) (core.YearMonth, error) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		return core.YearMonth{}, fmt.Errorf("%w: year %q", core.ErrValidation, r.PathValue("year"))
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		return core.YearMonth{}, fmt.Errorf("%w: month %q", core.ErrValidation, r.PathValue("month"))
	}
	return core.NewYearMonth(year, month)
}

// taskRequest is the body of POST /api/tasks. Hours accept a number or a
// decimal string.
type taskRequest struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	ClientID  string          `json:"client_id"`
	Date      core.Date       `json:"date"`
	Hours     json.RawMessage `json:"hours"`
	Title     string          `json:"title"`
	Notes     string          `json:"notes"`
	Recurring core.Recurrence `json:"recurring"`
}

func (t taskRequest) fields() (core.TaskFields, error) {
	hours, err := parseHours(t.Hours)
	if err != nil {
		return core.TaskFields{}, err
	}
	return core.TaskFields{
		ProjectID: strings.TrimSpace(t.ProjectID),
		ClientID:  strings.TrimSpace(t.ClientID),
		Hours:     hours,
		Title:     sanitizeInput(t.Title),
		Notes:     sanitizeInput(t.Notes),
		Recurring: t.Recurring,
	}, nil
}

func (t taskRequest) task() (core.Task, error) {
	f, err := t.fields()
	if err != nil {
		return core.Task{}, err
	}
	task := core.Task{ID: strings.TrimSpace(t.ID), Date: t.Date}
	task.Apply(f)
	return task, nil
}

func parseHours(raw json.RawMessage) (float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, fmt.Errorf("%w: hours required", core.ErrValidation)
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, fmt.Errorf("%w: hours: %v", core.ErrValidation, err)
		}
		s = str
	}
	return core.ParseDecimal(s)
}

// parseClientForm reads the multipart client form: a name and an
// optional logo file. The caller closes the returned logo body.
func parseClientForm(w http.ResponseWriter, r *http.Request, maxLogoBytes int64) (string, *catalog.Logo, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, maxLogoBytes+64<<10)
	if err := r.ParseMultipartForm(maxLogoBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, noop, fmt.Errorf("%w: upload larger than %d bytes", core.ErrValidation, maxLogoBytes)
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			return "", nil, noop, fmt.Errorf("%w: malformed form: %v", errBadRequest, err)
		}
		if err := r.ParseForm(); err != nil {
			return "", nil, noop, fmt.Errorf("%w: malformed form: %v", errBadRequest, err)
		}
	}

	name := sanitizeInput(r.FormValue("name"))
	file, header, err := r.FormFile("logo")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return name, nil, noop, nil
	}
	if err != nil {
		return "", nil, noop, fmt.Errorf("%w: logo: %v", errBadRequest, err)
	}
	if header.Size > maxLogoBytes {
		file.Close()
		return "", nil, noop, fmt.Errorf("%w: logo larger than %d bytes", core.ErrValidation, maxLogoBytes)
	}
	return name, &catalog.Logo{Filename: header.Filename, Body: io.Reader(file)}, func() { file.Close() }, nil
}
