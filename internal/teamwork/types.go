package teamwork

// TimeEntry is the wire shape for a logged time entry. Date and Time are
// formatted in the task's own timezone (YYYYMMDD and HH:mm).
type TimeEntry struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	PersonID    int64  `json:"person-id,string"`
	Hours       int    `json:"hours,string"`
	Minutes     int    `json:"minutes,string"`
	Billable    bool   `json:"isbillable,string"`
	Description string `json:"description"`
	TicketID    string `json:"ticket-id,omitempty"`
}

// Project is a tracker project, as returned by the projects listing.
type Project struct {
	ID     int64  `json:"id,string"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Task is a tracker task. Parent and SubTasks carry the hierarchy when a
// single task is fetched by id.
type Task struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project-id"`
	Content   string `json:"content"`
	Completed bool   `json:"completed"`
	ParentID  int64  `json:"parent-task-id"`
	Parent    *Task  `json:"parent,omitempty"`
	SubTasks  []Task `json:"subTasks,omitempty"`
}

// Person is a tracker user; matched against local users by email.
type Person struct {
	ID        int64  `json:"id,string"`
	FirstName string `json:"first-name"`
	LastName  string `json:"last-name"`
	Email     string `json:"email-address"`
}
