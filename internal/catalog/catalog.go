package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Arg is one named tool argument.
type Arg struct {
	Name        string
	Description string
	Required    bool
	Domain      Domain
}

// Binding is a fixed query template plus positional parameters.
type Binding struct {
	TemplateID string
	Params     []any
}

// Tool is a named business intent. Callers see Name, Description and the
// argument schema; the query behind it stays internal.
type Tool struct {
	Name        string
	Description string
	Args        []Arg
	// OneOf lists arguments of which at least one must be supplied.
	OneOf []string

	bind func(Args) Binding
}

func (t Tool) arg(name string) (Arg, bool) {
	for _, a := range t.Args {
		if a.Name == name {
			return a, true
		}
	}
	return Arg{}, false
}

// Bind maps validated arguments to the tool's query.
func (t Tool) Bind(a Args) Binding {
	return t.bind(a)
}

// InputSchema is the JSON schema advertised to callers.
func (t Tool) InputSchema() map[string]any {
	props := make(map[string]any, len(t.Args))
	required := make([]string, 0)
	for _, a := range t.Args {
		s := a.Domain.schema()
		if a.Description != "" {
			s["description"] = a.Description
		}
		props[a.Name] = s
		if a.Required {
			required = append(required, a.Name)
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// Catalog is the immutable set of tools and their query templates.
type Catalog struct {
	tools     map[string]Tool
	names     []string
	templates map[string]string
}

// New builds a catalog. It rejects duplicate tool names, tools without a
// binding and empty query templates.
func New(tools []Tool, templates map[string]string) (*Catalog, error) {
	c := &Catalog{
		tools:     make(map[string]Tool, len(tools)),
		templates: templates,
	}
	for _, t := range tools {
		if _, dup := c.tools[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", t.Name)
		}
		if t.bind == nil {
			return nil, fmt.Errorf("tool %q has no binding", t.Name)
		}
		c.tools[t.Name] = t
		c.names = append(c.names, t.Name)
	}
	sort.Strings(c.names)
	for id, text := range templates {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("template %q is empty", id)
		}
	}
	return c, nil
}

func (c *Catalog) Get(name string) (Tool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

func (c *Catalog) Has(name string) bool {
	_, ok := c.tools[name]
	return ok
}

// Names returns tool names in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Templates returns the query texts keyed by template id.
func (c *Catalog) Templates() map[string]string {
	out := make(map[string]string, len(c.templates))
	for k, v := range c.templates {
		out[k] = v
	}
	return out
}
