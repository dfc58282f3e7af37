package access

import (
	"errors"

	"github.com/jmehdipour/intent-gateway/internal/plan"
)

var (
	ErrToolNotInPlan = errors.New("tool not in plan")
	ErrUnknownTool   = errors.New("unknown tool")
)

// ToolChecker reports whether a tool exists in the catalog.
type ToolChecker interface {
	Has(name string) bool
}

// Controller decides whether a plan may call a tool. It holds no state.
type Controller struct {
	tools ToolChecker
}

func NewController(tools ToolChecker) *Controller {
	return &Controller{tools: tools}
}

// Authorize rejects tools missing from the catalog before checking the plan.
func (c *Controller) Authorize(p plan.Plan, tool string) error {
	if !c.tools.Has(tool) {
		return ErrUnknownTool
	}
	return Authorize(p, tool)
}

// Authorize is the plan check alone: the all-tools set admits everything.
func Authorize(p plan.Plan, tool string) error {
	if p.AllowedTools.Contains(tool) {
		return nil
	}
	return ErrToolNotInPlan
}
