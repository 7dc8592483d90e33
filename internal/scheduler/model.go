package scheduler

// Task is a unit of work that needs a fixed number of placements per period.
type Task struct {
	ID                  string `json:"id" yaml:"id"`
	Name                string `json:"name" yaml:"name"`
	ResourceName        string `json:"resourceName" yaml:"resourceName"`
	RequiredOccurrences int    `json:"requiredOccurrences" yaml:"requiredOccurrences"`
}

// Site is a location that hosts at most one task per day/slot cell.
type Site struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Request is the full scheduling input.
type Request struct {
	Tasks     []Task   `json:"tasks" yaml:"tasks"`
	Sites     []Site   `json:"sites" yaml:"sites"`
	TimeSlots []string `json:"timeSlots" yaml:"timeSlots"`
	Days      []string `json:"days" yaml:"days"`
}

// Entry is one placement of a task occurrence.
type Entry struct {
	Day          string `json:"day" yaml:"day"`
	TimeSlot     string `json:"timeSlot" yaml:"timeSlot"`
	TaskID       string `json:"taskId" yaml:"taskId"`
	SiteID       string `json:"siteId" yaml:"siteId"`
	ResourceName string `json:"resourceName" yaml:"resourceName"`
}

// Diagnostics summarises the feasibility of a run.
type Diagnostics struct {
	IsPossible      bool     `json:"isPossible" yaml:"isPossible"`
	Message         string   `json:"message" yaml:"message"`
	UnassignedTasks []string `json:"unassignedTasks" yaml:"unassignedTasks"`
}

// Fulfillment tallies achieved against required occurrences for a task.
type Fulfillment struct {
	TaskID       string `json:"taskId" yaml:"taskId"`
	TaskName     string `json:"taskName" yaml:"taskName"`
	ResourceName string `json:"resourceName" yaml:"resourceName"`
	Required     int    `json:"required" yaml:"required"`
	Achieved     int    `json:"achieved" yaml:"achieved"`
	Shortfall    int    `json:"shortfall" yaml:"shortfall"`
}

// Stats aggregates grid usage for a run.
type Stats struct {
	TotalRequired  int            `json:"totalRequired" yaml:"totalRequired"`
	TotalAvailable int            `json:"totalAvailable" yaml:"totalAvailable"`
	TotalPlaced    int            `json:"totalPlaced" yaml:"totalPlaced"`
	Utilization    float64        `json:"utilization" yaml:"utilization"`
	ResourceLoad   map[string]int `json:"resourceLoad" yaml:"resourceLoad"`
	FairnessScore  float64        `json:"fairnessScore" yaml:"fairnessScore"`
}

// Outcome names the terminal state reached by a run.
type Outcome string

const (
	OutcomeFeasible           Outcome = "feasible"
	OutcomePartial            Outcome = "partial"
	OutcomeCapacityInfeasible Outcome = "capacity_infeasible"
)

// Result is the complete output of a scheduling call.
type Result struct {
	Schedule    []Entry       `json:"schedule" yaml:"schedule"`
	Diagnostics Diagnostics   `json:"diagnostics" yaml:"diagnostics"`
	Fulfillment []Fulfillment `json:"fulfillment" yaml:"fulfillment"`
	Stats       Stats         `json:"stats" yaml:"stats"`
	Outcome     Outcome       `json:"outcome" yaml:"outcome"`
}
