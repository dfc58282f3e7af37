package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmehdipour/intent-gateway/internal/catalog"
	"github.com/jmehdipour/intent-gateway/internal/plan"
)

func TestAuthorize(t *testing.T) {
	basic := plan.Plan{ID: "basic", AllowedTools: plan.NewToolSet("search_films", "list_categories")}
	pro := plan.Plan{ID: "pro", AllowedTools: plan.AllToolSet()}

	assert.NoError(t, Authorize(basic, "search_films"))
	assert.ErrorIs(t, Authorize(basic, "get_revenue_summary"), ErrToolNotInPlan)
	assert.NoError(t, Authorize(pro, "get_revenue_summary"))
}

func TestControllerRejectsUnknownTool(t *testing.T) {
	c := NewController(catalog.MustSakila())
	pro := plan.Plan{ID: "pro", AllowedTools: plan.AllToolSet()}

	assert.ErrorIs(t, c.Authorize(pro, "query"), ErrUnknownTool)
	assert.NoError(t, c.Authorize(pro, "get_store_stats"))

	empty := plan.Plan{ID: "none", AllowedTools: plan.NewToolSet()}
	assert.ErrorIs(t, c.Authorize(empty, "get_store_stats"), ErrToolNotInPlan)
}
