package assistant

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func manyViews(n int) []ProductView {
	views := make([]ProductView, n)
	for i := range views {
		views[i] = ProductView{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Grade %d", i)}
	}
	return views
}

func TestProjectVisualCapsProductList(t *testing.T) {
	payload, ok := ProjectVisual([]FunctionResult{{
		Name:    "search_products",
		Success: true,
		Data:    map[string]any{"products": manyViews(10)},
	}})
	require.True(t, ok)
	require.Equal(t, "products", payload["kind"])
	require.Len(t, payload["products"].([]ProductView), maxVisualProducts)
}

func TestProjectVisualSkipsFailedResults(t *testing.T) {
	_, ok := ProjectVisual([]FunctionResult{{
		Name:  "search_products",
		Error: "timeout",
		Data:  map[string]any{"products": manyViews(3)},
	}})
	require.False(t, ok)
}

func TestProjectVisualFirstRecognizedWins(t *testing.T) {
	payload, ok := ProjectVisual([]FunctionResult{
		{Name: "check_cart_compatibility", Success: true, Data: map[string]any{"empty": true}},
		{Name: "get_recommendations", Success: true, Data: map[string]any{"products": manyViews(2)}},
		{Name: "search_products", Success: true, Data: map[string]any{"products": manyViews(4)}},
	})
	require.True(t, ok)
	require.Equal(t, "products", payload["kind"])
	require.Len(t, payload["products"].([]ProductView), 2)
}

func TestProjectVisualComparisonNeedsTwoProducts(t *testing.T) {
	_, ok := ProjectVisual([]FunctionResult{{
		Name:    "compare_products",
		Success: true,
		Data:    map[string]any{"products": manyViews(1), "attributes": []string{"price_egp"}},
	}})
	require.False(t, ok)

	payload, ok := ProjectVisual([]FunctionResult{{
		Name:    "compare_products",
		Success: true,
		Data:    map[string]any{"products": manyViews(2), "attributes": []string{"price_egp"}},
	}})
	require.True(t, ok)
	require.Equal(t, "comparison", payload["kind"])
}

func TestProjectVisualBudgetSolutionShape(t *testing.T) {
	items := []BudgetItem{{Product: ProductView{ID: "p1"}, QuantityKg: 50, Subtotal: 1975}}
	payload, ok := ProjectVisual([]FunctionResult{{
		Name:    "calculate_budget_solution",
		Success: true,
		Data: map[string]any{
			"budget": 2000.0, "total": 1975.0, "remaining": 25.0,
			"totalKg": 50.0, "feasible": true, "items": items,
		},
	}})
	require.True(t, ok)
	require.Equal(t, "budgetSolution", payload["kind"])

	sol := payload["budgetSolution"].(map[string]any)
	require.Equal(t, 2000.0, sol["budget"])
	require.Equal(t, true, sol["feasible"])
	require.Equal(t, items, sol["items"])
}

func TestProjectVisualEmptyBatch(t *testing.T) {
	_, ok := ProjectVisual(nil)
	require.False(t, ok)
}
