package assistant

// maxVisualProducts caps product lists in visual payloads so the client
// widget stays scannable.
const maxVisualProducts = 6

// ProjectVisual maps one tool batch to at most one structured side-channel
// payload the client can render without parsing prose. The first recognized
// successful result wins; error results and unknown tools produce nothing.
func ProjectVisual(results []FunctionResult) (map[string]any, bool) {
	for _, r := range results {
		if !r.Success {
			continue
		}
		if payload, ok := projectOne(r); ok {
			return payload, true
		}
	}
	return nil, false
}

func projectOne(r FunctionResult) (map[string]any, bool) {
	switch r.Name {
	case "search_products", "get_recommendations", "get_similar_products":
		views, ok := r.Data["products"].([]ProductView)
		if !ok || len(views) == 0 {
			return nil, false
		}
		if len(views) > maxVisualProducts {
			views = views[:maxVisualProducts]
		}
		return map[string]any{"kind": "products", "products": views}, true

	case "compare_products":
		views, ok := r.Data["products"].([]ProductView)
		if !ok || len(views) < 2 {
			return nil, false
		}
		return map[string]any{
			"kind":       "comparison",
			"products":   views,
			"attributes": r.Data["attributes"],
		}, true

	case "calculate_budget_solution":
		items, ok := r.Data["items"].([]BudgetItem)
		if !ok {
			return nil, false
		}
		return map[string]any{
			"kind": "budgetSolution",
			"budgetSolution": map[string]any{
				"budget":    r.Data["budget"],
				"total":     r.Data["total"],
				"remaining": r.Data["remaining"],
				"totalKg":   r.Data["totalKg"],
				"feasible":  r.Data["feasible"],
				"items":     items,
			},
		}, true
	}
	return nil, false
}
