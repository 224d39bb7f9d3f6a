package domain

import "strconv"

// OutputDocument is a build's executed-playbook log: one Phase per playbook,
// in execution order.
type OutputDocument []Phase

// Phase is a single executed playbook.
type Phase struct {
	Name  string                `json:"name"`
	Index int                   `json:"index"`
	Stats map[string]PhaseStats `json:"stats"`
	Plays []Play                `json:"plays"`
}

// PhaseID is the composite identifier of a phase: its name concatenated
// with its index.
func (p Phase) PhaseID() string {
	return p.Name + strconv.Itoa(p.Index)
}

// PhaseStats are one host's counters within a single phase.
type PhaseStats struct {
	Changed  int `json:"changed"`
	Failures int `json:"failures"`
	OK       int `json:"ok"`
}

// Identity names a play or task.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Play is one play within a playbook.
type Play struct {
	Play  Identity `json:"play"`
	Tasks []Task   `json:"tasks"`
}

// Task is one task within a play, with its per-host outcomes.
type Task struct {
	Task  Identity              `json:"task"`
	Hosts map[string]HostResult `json:"hosts"`
}

// HostResult is the outcome of a task on one host. A looped task carries its
// per-item outcomes in Results, which may nest further.
type HostResult struct {
	Failed  bool         `json:"failed,omitempty"`
	Changed bool         `json:"changed,omitempty"`
	RC      int          `json:"rc,omitempty"`
	Msg     any          `json:"msg,omitempty"`
	Item    any          `json:"item,omitempty"`
	Stdout  string       `json:"stdout,omitempty"`
	Stderr  string       `json:"stderr,omitempty"`
	Results []HostResult `json:"results,omitempty"`
}

// FailedTaskResult is a failing result annotated with the owning task's name.
type FailedTaskResult struct {
	TaskName string `json:"name"`
	HostResult
}

// HostStats are one host's counters merged across every phase of a build,
// plus the failing results collected along the way.
type HostStats struct {
	Changed  int                `json:"changed"`
	Failures int                `json:"failures"`
	OK       int                `json:"ok"`
	Failed   []FailedTaskResult `json:"failed"`
}

