// Package editor coordinates the input mode of editor instances that share a
// group, such as the panes of one project view.
//
// A Registry is owned by the application and passed where it is needed. Each
// non-empty group has exactly one active instance; the group's vim-mode flag
// is applied to whichever instance is active.
package editor

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	ErrGroupNotFound    = errors.New("editor group not found")
	ErrInstanceExists   = errors.New("editor instance already registered")
	ErrInstanceNotFound = errors.New("editor instance not found")
)

// Instance is an editor that can switch input mode.
type Instance interface {
	ID() string
	SetVimMode(on bool) error
}

// Group is a snapshot of one group.
type Group struct {
	ID        string   `json:"id"`
	Active    string   `json:"active"`
	Instances []string `json:"instances"`
	VimMode   bool     `json:"vim_mode"`
}

type group struct {
	instances []Instance
	active    int
	vim       bool
}

// Registry tracks instances per group.
type Registry struct {
	mu     sync.Mutex
	groups map[string]*group
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]*group)}
}

// Register adds inst to groupID, creating the group on first use. The first
// instance of a group becomes active and inherits the group's mode.
func (r *Registry) Register(groupID string, inst Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		g = &group{active: -1}
		r.groups[groupID] = g
	}
	if g.index(inst.ID()) >= 0 {
		return fmt.Errorf("%w: %s in %s", ErrInstanceExists, inst.ID(), groupID)
	}
	g.instances = append(g.instances, inst)
	if g.active < 0 {
		g.active = 0
		return inst.SetVimMode(g.vim)
	}
	return nil
}

// Unregister removes an instance. When it was active, the next registered
// instance takes over with the group's mode. An emptied group is removed.
func (r *Registry) Unregister(groupID, instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	i := g.index(instanceID)
	if i < 0 {
		return fmt.Errorf("%w: %s in %s", ErrInstanceNotFound, instanceID, groupID)
	}

	wasActive := i == g.active
	g.instances = slices.Delete(g.instances, i, i+1)
	if len(g.instances) == 0 {
		delete(r.groups, groupID)
		return nil
	}

	switch {
	case wasActive:
		if i >= len(g.instances) {
			i = 0
		}
		g.active = i
		return g.instances[i].SetVimMode(g.vim)
	case i < g.active:
		g.active--
	}
	return nil
}

// SetActive moves focus to instanceID and applies the group's mode to it.
func (r *Registry) SetActive(groupID, instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	i := g.index(instanceID)
	if i < 0 {
		return fmt.Errorf("%w: %s in %s", ErrInstanceNotFound, instanceID, groupID)
	}
	g.active = i
	return g.instances[i].SetVimMode(g.vim)
}

// Active returns the active instance of groupID.
func (r *Registry) Active(groupID string) (Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	return g.instances[g.active], nil
}

// SetVimMode switches the group's mode and applies it to the active instance.
func (r *Registry) SetVimMode(groupID string, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	g.vim = on
	return g.instances[g.active].SetVimMode(on)
}

// Dispose drops a group and turns vim mode off on all of its instances.
func (r *Registry) Dispose(groupID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	delete(r.groups, groupID)

	var errs []error
	if g.vim {
		for _, inst := range g.instances {
			if err := inst.SetVimMode(false); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", inst.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Groups returns a sorted snapshot of every group.
func (r *Registry) Groups() []Group {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Group, 0, len(r.groups))
	for id, g := range r.groups {
		ids := make([]string, len(g.instances))
		for i, inst := range g.instances {
			ids[i] = inst.ID()
		}
		out = append(out, Group{
			ID:        id,
			Active:    ids[g.active],
			Instances: ids,
			VimMode:   g.vim,
		})
	}
	slices.SortFunc(out, func(a, b Group) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func (g *group) index(id string) int {
	return slices.IndexFunc(g.instances, func(inst Instance) bool {
		return inst.ID() == id
	})
}

// Pane is an Instance that only remembers its mode. The HTTP backend uses it
// to mirror panes of the browser shell.
type Pane struct {
	id string

	mu  sync.Mutex
	vim bool
}

// NewPane creates a Pane.
func NewPane(id string) *Pane {
	return &Pane{id: id}
}

func (p *Pane) ID() string { return p.id }

func (p *Pane) SetVimMode(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vim = on
	return nil
}

// VimMode reports the last mode applied.
func (p *Pane) VimMode() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vim
}
