package teamwork

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func TestCreateTimeEntryForTask(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]TimeEntry

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		user, _, _ := r.BasicAuth()
		gotAuth = user
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		fmt.Fprint(w, `{"timeEntryId":"987","STATUS":"OK"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "apikey123")
	entry := TimeEntry{
		Date:        "20260302",
		Time:        "09:00",
		PersonID:    42,
		Hours:       1,
		Minutes:     30,
		Billable:    true,
		Description: "refactoring",
		TicketID:    "12345678",
	}
	id, err := c.CreateTimeEntryForTask(context.Background(), 70, entry)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != 987 {
		t.Fatalf("expected id 987, got %d", id)
	}
	if gotPath != "/tasks/70/time_entries.json" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotAuth != "apikey123" {
		t.Fatalf("expected api key as basic auth user, got %q", gotAuth)
	}
	sent := gotBody["time-entry"]
	if sent.Date != "20260302" || sent.Time != "09:00" || sent.Hours != 1 || sent.Minutes != 30 {
		t.Fatalf("entry payload mangled: %+v", sent)
	}
	if !sent.Billable || sent.TicketID != "12345678" {
		t.Fatalf("entry payload mangled: %+v", sent)
	}
}

func TestDeleteTimeEntry_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such entry", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	err := c.DeleteTimeEntry(context.Background(), 500)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", apiErr.Status)
	}
}

func TestListProjectTasks_Paginates(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		if size := r.URL.Query().Get("pageSize"); size != "250" {
			t.Errorf("expected pageSize 250, got %s", size)
		}

		n, _ := strconv.Atoi(page)
		count := 250
		if n == 2 {
			count = 3 // short page ends the walk
		}
		tasks := make([]Task, count)
		for i := range tasks {
			tasks[i] = Task{ID: int64((n-1)*250 + i + 1), ProjectID: 7}
		}
		json.NewEncoder(w).Encode(map[string][]Task{"todo-items": tasks})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	tasks, err := c.ListProjectTasks(context.Background(), 7, true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 253 {
		t.Fatalf("expected 253 tasks across pages, got %d", len(tasks))
	}
	if len(pages) != 2 || pages[0] != "1" || pages[1] != "2" {
		t.Fatalf("expected pages [1 2], got %v", pages)
	}
	if tasks[252].ID != 253 {
		t.Fatalf("page stitching broken, last id %d", tasks[252].ID)
	}
}

func TestFindPersonByEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if term := r.URL.Query().Get("searchTerm"); term != "dev@example.com" {
			t.Errorf("expected search term, got %q", term)
		}
		fmt.Fprint(w, `{"people":[
			{"id":"41","first-name":"Other","last-name":"Dev","email-address":"other@example.com"},
			{"id":"42","first-name":"The","last-name":"Dev","email-address":"dev@example.com"}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	person, err := c.FindPersonByEmail(context.Background(), "dev@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if person.ID != 42 {
		t.Fatalf("expected exact email match (id 42), got %d", person.ID)
	}
}

func TestGetTask_Hierarchy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tasks/80.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"todo-item":{
			"id":80,"project-id":8,"content":"parent work","parent-task-id":0,
			"subTasks":[{"id":81,"project-id":8,"content":"child","parent-task-id":80}]
		}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	task, err := c.GetTask(context.Background(), 80)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if task.ID != 80 || len(task.SubTasks) != 1 || task.SubTasks[0].ParentID != 80 {
		t.Fatalf("hierarchy not decoded: %+v", task)
	}
}

func TestNewClient_SiteNameBecomesHost(t *testing.T) {
	c := NewClient("acme", "key")
	if c.baseURL != "https://acme.teamwork.com" {
		t.Fatalf("expected site host, got %s", c.baseURL)
	}
}
