// Package httpx exposes the typed JSON API the browser UI calls: one endpoint
// per operation, user-scoped via the X-User-Email header (authentication
// itself lives in front of this service).
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"timesheet/internal/model"
	"timesheet/internal/repository"
	"timesheet/internal/service"
	"timesheet/internal/teamwork"
)

// TrackerBrowser is the read side of the tracker used for project/task/person
// pickers.
type TrackerBrowser interface {
	ListProjects(ctx context.Context, personID int64) ([]teamwork.Project, error)
	ListProjectTasks(ctx context.Context, projectID int64, includeCompleted bool) ([]teamwork.Task, error)
	GetTask(ctx context.Context, remoteTaskID int64) (*teamwork.Task, error)
	SearchPeople(ctx context.Context, term string) ([]teamwork.Person, error)
}

type Handler struct {
	mux      *http.ServeMux
	users    *repository.UserRepository
	tasks    *service.TaskService
	calendar *service.CalendarService
	tracker  TrackerBrowser
}

func New(users *repository.UserRepository, tasks *service.TaskService, calendar *service.CalendarService, tracker TrackerBrowser) http.Handler {
	h := &Handler{
		mux:      http.NewServeMux(),
		users:    users,
		tasks:    tasks,
		calendar: calendar,
		tracker:  tracker,
	}
	h.routes()
	return h
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /healthz", h.health)
	h.mux.HandleFunc("GET /api/tasks", h.listTasks)
	h.mux.HandleFunc("POST /api/tasks", h.createTask)
	h.mux.HandleFunc("POST /api/tasks/local-id", h.newLocalID)
	h.mux.HandleFunc("GET /api/tasks/{id}", h.getTask)
	h.mux.HandleFunc("PATCH /api/tasks/{id}", h.updateTask)
	h.mux.HandleFunc("DELETE /api/tasks/{id}", h.deleteTask)
	h.mux.HandleFunc("POST /api/tasks/{id}/timer/start", h.startTimer)
	h.mux.HandleFunc("POST /api/timer/stop", h.stopTimer)
	h.mux.HandleFunc("GET /api/calendar", h.calendarRange)
	h.mux.HandleFunc("GET /api/projects", h.projects)
	h.mux.HandleFunc("GET /api/projects/{id}/tasks", h.projectTasks)
	h.mux.HandleFunc("GET /api/people", h.people)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true"})
}

// taskRequest is the create/update payload. Times are RFC 3339; id may be a
// negative placeholder on optimistic creates.
type taskRequest struct {
	LocalID            int64      `json:"localId,omitempty"`
	Start              time.Time  `json:"start"`
	End                *time.Time `json:"end"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	ActiveTimerRunning bool       `json:"activeTimerRunning"`
	LogTime            bool       `json:"logTime"`
	Billable           bool       `json:"billable"`
	Timezone           string     `json:"timezone"`
	TeamworkProjectID  *int64     `json:"teamworkProjectId"`
	TeamworkTaskID     *int64     `json:"teamworkTaskId"`
}

type taskResponse struct {
	ID                 int64      `json:"id"`
	Start              time.Time  `json:"start"`
	End                *time.Time `json:"end"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	ActiveTimerRunning bool       `json:"activeTimerRunning"`
	LogTime            bool       `json:"logTime"`
	Billable           bool       `json:"billable"`
	Timezone           string     `json:"timezone"`
	TeamworkProjectID  *int64     `json:"teamworkProjectId,omitempty"`
	TeamworkTaskID     *int64     `json:"teamworkTaskId,omitempty"`
	TimeEntryID        *int64     `json:"teamworkTimeEntryId,omitempty"`
}

func toTaskResponse(t *model.Task) taskResponse {
	resp := taskResponse{
		ID:                 t.ID,
		Start:              t.StartAt,
		End:                t.EndAt,
		Title:              t.Title,
		Description:        t.Description,
		ActiveTimerRunning: t.ActiveTimerRunning,
		LogTime:            t.LogTime,
		Billable:           t.Billable,
		Timezone:           t.Timezone,
	}
	if tw := t.TeamworkTask; tw != nil {
		resp.TeamworkProjectID = tw.TeamworkProjectID
		resp.TeamworkTaskID = tw.TeamworkTaskID
		resp.TimeEntryID = tw.TeamworkTimeEntryID
	}
	return resp
}

func (r taskRequest) toInput() service.TaskInput {
	return service.TaskInput{
		LocalID:            r.LocalID,
		StartAt:            r.Start,
		EndAt:              r.End,
		Title:              r.Title,
		Description:        r.Description,
		ActiveTimerRunning: r.ActiveTimerRunning,
		LogTime:            r.LogTime,
		Billable:           r.Billable,
		Timezone:           r.Timezone,
		TeamworkProjectID:  r.TeamworkProjectID,
		TeamworkTaskID:     r.TeamworkTaskID,
	}
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from/to")
		return
	}
	items, err := h.tasks.ListInRange(r.Context(), user, from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]taskResponse, 0, len(items))
	for i := range items {
		out = append(out, toTaskResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "json")
		return
	}
	task, err := h.tasks.Create(r.Context(), user, req.toInput())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

func (h *Handler) newLocalID(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.user(w, r); !ok {
		return
	}
	id, err := h.tasks.NewLocalID()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"localId": id})
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id")
		return
	}
	task, err := h.tasks.Get(r.Context(), user, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id")
		return
	}
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "json")
		return
	}
	task, err := h.tasks.Update(r.Context(), user, id, req.toInput())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id")
		return
	}
	if err := h.tasks.Delete(r.Context(), user, id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) startTimer(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id")
		return
	}
	task, err := h.tasks.StartTimer(r.Context(), user, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *Handler) stopTimer(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	task, err := h.tasks.StopTimer(r.Context(), user)
	if err != nil {
		if errors.Is(err, service.ErrNoRunningTimer) {
			writeError(w, http.StatusNotFound, "no_running_timer")
			return
		}
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *Handler) calendarRange(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "from/to")
		return
	}
	events, hours, err := h.calendar.ComposeRange(r.Context(), user, from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events":        events,
		"businessHours": hours,
	})
}

func (h *Handler) projects(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.user(w, r); !ok {
		return
	}
	var personID int64
	if raw := r.URL.Query().Get("person_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "person_id")
			return
		}
		personID = id
	}
	items, err := h.tracker.ListProjects(r.Context(), personID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) projectTasks(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.user(w, r); !ok {
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id")
		return
	}
	includeCompleted := r.URL.Query().Get("include_completed") == "true"
	items, err := h.tracker.ListProjectTasks(r.Context(), id, includeCompleted)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) people(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.user(w, r); !ok {
		return
	}
	term := r.URL.Query().Get("q")
	if term == "" {
		writeError(w, http.StatusBadRequest, "q")
		return
	}
	items, err := h.tracker.SearchPeople(r.Context(), term)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// user resolves the caller from the X-User-Email header, creating the row on
// first sight.
func (h *Handler) user(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	email := r.Header.Get("X-User-Email")
	if email == "" {
		writeError(w, http.StatusUnauthorized, "x-user-email")
		return nil, false
	}
	user, err := h.users.UpsertByEmail(r.Context(), email, "")
	if err != nil {
		h.fail(w, err)
		return nil, false
	}
	return user, true
}

// fail maps service errors onto status codes: 404 for missing rows, 400 for
// validation, 502 for tracker/calendar failures, 500 otherwise.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var apiErr *teamwork.APIError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, service.ErrInvalidStart),
		errors.Is(err, service.ErrInvalidTimezone):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr):
		log.Printf("tracker error: %v", err)
		writeError(w, http.StatusBadGateway, "external_service")
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal")
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func decodeJSON(r *http.Request, dst any) error {
	defer io.Copy(io.Discard, r.Body)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
