package plan

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/jmehdipour/intent-gateway/internal/config"
)

// AllTools is the config sentinel for "every catalog tool".
const AllTools = "*"

var ErrUnknownPlan = errors.New("unknown plan")

// ToolSet is either every tool or a closed set of names.
type ToolSet struct {
	all   bool
	names map[string]struct{}
}

func AllToolSet() ToolSet { return ToolSet{all: true} }

func NewToolSet(names ...string) ToolSet {
	s := ToolSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.names[n] = struct{}{}
	}
	return s
}

func (s ToolSet) All() bool { return s.all }

func (s ToolSet) Contains(tool string) bool {
	if s.all {
		return true
	}
	_, ok := s.names[tool]
	return ok
}

// Names lists the explicit names, sorted. Empty for the all-tools set.
func (s ToolSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Plan is a named bundle of entitlements. Nil pointers mean unlimited.
type Plan struct {
	ID            string
	DailyQuota    *uint64
	AllowedTools  ToolSet
	MaxResultRows *uint64
}

// Table is an immutable id -> plan map.
type Table struct {
	plans map[string]Plan
}

// ToolChecker reports whether a tool exists in the catalog.
type ToolChecker interface {
	Has(name string) bool
}

// Build validates plan config against the catalog and returns a table.
func Build(cfgs []config.PlanConfig, tools ToolChecker) (*Table, error) {
	if len(cfgs) == 0 {
		return nil, errors.New("no plans configured")
	}
	t := &Table{plans: make(map[string]Plan, len(cfgs))}
	for i, c := range cfgs {
		if c.ID == "" {
			return nil, fmt.Errorf("plans[%d]: empty id", i)
		}
		if _, dup := t.plans[c.ID]; dup {
			return nil, fmt.Errorf("plan %q: duplicate id", c.ID)
		}
		if c.DailyQuota != nil && *c.DailyQuota == 0 {
			return nil, fmt.Errorf("plan %q: daily_quota 0 admits nothing, omit it for unlimited", c.ID)
		}
		if c.MaxResultRows != nil && *c.MaxResultRows == 0 {
			return nil, fmt.Errorf("plan %q: max_result_rows must be positive", c.ID)
		}
		set, err := toolSet(c, tools)
		if err != nil {
			return nil, err
		}
		t.plans[c.ID] = Plan{
			ID:            c.ID,
			DailyQuota:    copyPtr(c.DailyQuota),
			AllowedTools:  set,
			MaxResultRows: copyPtr(c.MaxResultRows),
		}
	}
	return t, nil
}

func toolSet(c config.PlanConfig, tools ToolChecker) (ToolSet, error) {
	if len(c.AllowedTools) == 0 {
		return ToolSet{}, fmt.Errorf("plan %q: allowed_tools is empty", c.ID)
	}
	if len(c.AllowedTools) == 1 && c.AllowedTools[0] == AllTools {
		return AllToolSet(), nil
	}
	for _, name := range c.AllowedTools {
		if name == AllTools {
			return ToolSet{}, fmt.Errorf("plan %q: %q cannot be mixed with tool names", c.ID, AllTools)
		}
		if !tools.Has(name) {
			return ToolSet{}, fmt.Errorf("plan %q: unknown tool %q", c.ID, name)
		}
	}
	return NewToolSet(c.AllowedTools...), nil
}

func (t *Table) Get(id string) (Plan, bool) {
	p, ok := t.plans[id]
	return p, ok
}

func (t *Table) Len() int { return len(t.plans) }

// Registry serves the current plan table; Swap replaces it atomically.
type Registry struct {
	table atomic.Pointer[Table]
}

func NewRegistry(t *Table) *Registry {
	r := &Registry{}
	r.table.Store(t)
	return r
}

// Get returns the plan with the given id from the current table.
func (r *Registry) Get(id string) (Plan, error) {
	p, ok := r.table.Load().Get(id)
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
	}
	return p, nil
}

func (r *Registry) Swap(t *Table) {
	r.table.Store(t)
}

func copyPtr(v *uint64) *uint64 {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
