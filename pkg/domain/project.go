package domain

import "time"

// Project is a workspace entry of the IDE. It remembers which process the
// project deploys to; the coordinator itself never persists anything.
type Project struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name,omitempty" yaml:"name,omitempty"`
	Process   ProcessRef `json:"process,omitempty" yaml:"process,omitempty"`
	Module    string     `json:"module,omitempty" yaml:"module,omitempty"`
	Readiness Readiness  `json:"readiness,omitempty" yaml:"readiness,omitempty"`
	// Source is the last code evaluated from the editor.
	Source    string    `json:"source,omitempty" yaml:"source,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewProject creates a project with no process attached yet.
func NewProject(id, name string) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Snapshot returns a copy safe to hand out.
func (p *Project) Snapshot() *Project {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
