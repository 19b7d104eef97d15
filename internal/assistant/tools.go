package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/deltapoly/assistant/internal/models"
	"github.com/deltapoly/assistant/internal/providers/llm"
	"github.com/deltapoly/assistant/internal/retrieval"
	pgrepo "github.com/deltapoly/assistant/internal/repositories/postgres"
)

// CartItem is client-supplied ephemeral state: what the caller already has.
type CartItem struct {
	ProductID  string  `json:"productId"`
	QuantityKg float64 `json:"quantityKg"`
}

// CallContext carries caller identity and ephemeral state into tool runs.
type CallContext struct {
	SessionKey string
	CustomerID *string
	Locale     string
	CartItems  []CartItem
}

// Tool pairs a declared schema with its implementation.
type Tool struct {
	Schema llm.ToolSchema
	Run    func(ctx context.Context, args map[string]any, cc CallContext) (map[string]any, error)
}

// ProductView is the reduced product shape fed back to the model and into
// visual payloads.
type ProductView struct {
	ID       string  `json:"id"`
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	PriceEGP float64 `json:"priceEgp"`
	Unit     string  `json:"unit"`
	StockKg  float64 `json:"stockKg"`
}

func toView(p models.Product, locale string) ProductView {
	return ProductView{
		ID:       p.ID,
		SKU:      p.SKU,
		Name:     p.Name(locale),
		Category: p.Category,
		PriceEGP: p.PriceEGP,
		Unit:     p.Unit,
		StockKg:  p.StockKg,
	}
}

// BudgetItem is one line of a budget solution.
type BudgetItem struct {
	Product    ProductView `json:"product"`
	QuantityKg float64     `json:"quantityKg"`
	Subtotal   float64     `json:"subtotal"`
}

type RegistryDeps struct {
	Products pgrepo.ProductRepo
	Searcher retrieval.ProductSearcher
}

// NewRegistry declares every callable tool with its schema and behavior.
func NewRegistry(deps RegistryDeps) []Tool {
	return []Tool{
		{
			Schema: llm.ToolSchema{
				Name:        "search_products",
				Description: "Semantic search over the product catalog. Returns ranked products with prices and stock.",
				Properties: map[string]llm.Property{
					"query":     {Type: "string", Description: "What the customer is looking for"},
					"max_price": {Type: "number", Description: "Optional price ceiling in EGP per unit"},
				},
				Required: []string{"query"},
			},
			Run: func(ctx context.Context, args map[string]any, cc CallContext) (map[string]any, error) {
				query := argString(args, "query")
				if query == "" {
					return nil, fmt.Errorf("query is required")
				}
				scored, err := deps.Searcher.Search(ctx, query, cc.Locale, 10, 0)
				if err != nil {
					return nil, err
				}
				maxPrice := argFloat(args, "max_price")
				views := make([]ProductView, 0, len(scored))
				for _, s := range scored {
					if maxPrice > 0 && s.Product.PriceEGP > maxPrice {
						continue
					}
					views = append(views, toView(s.Product, cc.Locale))
				}
				return map[string]any{"products": views, "count": len(views)}, nil
			},
		},
		{
			Schema: llm.ToolSchema{
				Name:        "get_recommendations",
				Description: "Recommend popular products, optionally within one material category.",
				Properties: map[string]llm.Property{
					"category": {Type: "string", Description: "Material category such as HDPE, LDPE, PP"},
				},
			},
			Run: func(ctx context.Context, args map[string]any, cc CallContext) (map[string]any, error) {
				category := argString(args, "category")
				var (
					rows []models.Product
					err  error
				)
				if category != "" {
					rows, err = deps.Products.CheapestByCategory(ctx, category, 6)
				} else {
					rows, err = deps.Products.TopSellers(ctx, 6)
				}
				if err != nil {
					return nil, err
				}
				return map[string]any{"products": viewsOf(rows, cc.Locale), "count": len(rows)}, nil
			},
		},
		{
			Schema: llm.ToolSchema{
				Name:        "get_similar_products",
				Description: "Find products similar to a given product id.",
				Properties: map[string]llm.Property{
					"product_id": {Type: "string", Description: "Reference product id"},
				},
				Required: []string{"product_id"},
			},
			Run: func(ctx context.Context, args map[string]any, cc CallContext) (map[string]any, error) {
				id := argString(args, "product_id")
				if id == "" {
					return nil, fmt.Errorf("product_id is required")
				}
				scored, err := deps.Products.Similar(ctx, id, 6)
				if err != nil {
					return nil, err
				}
				views := make([]ProductView, 0, len(scored))
				for _, s := range scored {
					views = append(views, toView(s.Product, cc.Locale))
				}
				return map[string]any{"products": views, "count": len(views)}, nil
			},
		},
		{
			Schema: llm.ToolSchema{
				Name:        "compare_products",
				Description: "Compare two or more products side by side.",
				Properties: map[string]llm.Property{
					"product_ids": {
						Type:        "array",
						Description: "Ids of the products to compare",
						Items:       &llm.Property{Type: "string"},
					},
				},
				Required: []string{"product_ids"},
			},
			Run: func(ctx context.Context, args map[string]any, cc CallContext) (map[string]any, error) {
				ids := argStrings(args, "product_ids")
				if len(ids) < 2 {
					return nil, fmt.Errorf("at least two product_ids are required")
				}
				rows, err := deps.Products.ByIDs(ctx, ids)
				if err != nil {
					return nil, err
				}
				if len(rows) < 2 {
					return nil, fmt.Errorf("found %d of %d requested products", len(rows), len(ids))
				}
				return map[string]any{
					"products":   viewsOf(rows, cc.Locale),
					"attributes": compareAttributes(rows),
				}, nil
			},
		},
		{
			Schema: llm.ToolSchema{
				Name:        "calculate_budget_solution",
				Description: "Plan the best purchase within a budget in EGP, optionally for one material category and target quantity.",
				Properties: map[string]llm.Property{
					"budget":      {Type: "number", Description: "Budget in EGP"},
					"category":    {Type: "string", Description: "Material category such as HDPE"},
					"quantity_kg": {Type: "number", Description: "Target quantity in kilograms"},
				},
				Required: []string{"budget"},
			},
			Run: func(ctx context.Context, args map[string]any, cc CallContext) (map[string]any, error) {
				budget := argFloat(args, "budget")
				if budget <= 0 {
					return nil, fmt.Errorf("budget must be positive")
				}
				rows, err := deps.Products.CheapestByCategory(ctx, argString(args, "category"), 10)
				if err != nil {
					return nil, err
				}
				return solveBudget(budget, argFloat(args, "quantity_kg"), rows, cc.Locale), nil
			},
		},
		{
			Schema: llm.ToolSchema{
				Name:        "check_cart_compatibility",
				Description: "Check the customer's current cart: availability, total weight, and mixed-material notes.",
				Properties:  map[string]llm.Property{},
			},
			Run: func(ctx context.Context, _ map[string]any, cc CallContext) (map[string]any, error) {
				if len(cc.CartItems) == 0 {
					return map[string]any{"empty": true}, nil
				}
				ids := make([]string, 0, len(cc.CartItems))
				qty := make(map[string]float64, len(cc.CartItems))
				for _, it := range cc.CartItems {
					ids = append(ids, it.ProductID)
					qty[it.ProductID] += it.QuantityKg
				}
				rows, err := deps.Products.ByIDs(ctx, ids)
				if err != nil {
					return nil, err
				}
				return cartReport(rows, qty, cc.Locale), nil
			},
		},
	}
}

// solveBudget greedily fills the budget from the cheapest suitable products.
func solveBudget(budget, targetKg float64, rows []models.Product, locale string) map[string]any {
	remaining := budget
	var items []BudgetItem
	var totalKg float64

	for _, p := range rows {
		if remaining <= 0 || p.PriceEGP <= 0 || p.StockKg <= 0 {
			continue
		}
		kg := remaining / p.PriceEGP
		if kg > p.StockKg {
			kg = p.StockKg
		}
		if targetKg > 0 && totalKg+kg > targetKg {
			kg = targetKg - totalKg
		}
		if kg <= 0 {
			continue
		}
		subtotal := kg * p.PriceEGP
		items = append(items, BudgetItem{Product: toView(p, locale), QuantityKg: kg, Subtotal: subtotal})
		remaining -= subtotal
		totalKg += kg
		if targetKg > 0 && totalKg >= targetKg {
			break
		}
	}

	return map[string]any{
		"budget":    budget,
		"total":     budget - remaining,
		"remaining": remaining,
		"totalKg":   totalKg,
		"items":     items,
		"feasible":  len(items) > 0 && (targetKg <= 0 || totalKg >= targetKg),
		"targetKg":  targetKg,
	}
}

func cartReport(rows []models.Product, qty map[string]float64, locale string) map[string]any {
	byID := make(map[string]models.Product, len(rows))
	categories := map[string]bool{}
	for _, p := range rows {
		byID[p.ID] = p
		categories[p.Category] = true
	}

	var totalKg, totalEGP float64
	var notes []string
	for id, kg := range qty {
		p, ok := byID[id]
		if !ok {
			notes = append(notes, fmt.Sprintf("product %s is no longer available", id))
			continue
		}
		if kg > p.StockKg {
			notes = append(notes, fmt.Sprintf("only %.0f kg of %s in stock", p.StockKg, p.Name(locale)))
		}
		totalKg += kg
		totalEGP += kg * p.PriceEGP
	}
	if len(categories) > 1 {
		notes = append(notes, "cart mixes material categories; confirm they ship together")
	}

	return map[string]any{
		"items":    len(qty),
		"totalKg":  totalKg,
		"totalEgp": totalEGP,
		"notes":    notes,
	}
}

// compareAttributes collects the union of attribute keys across the
// compared products, always including the catalog basics.
func compareAttributes(rows []models.Product) []string {
	attrs := map[string]bool{"price_egp": true, "stock_kg": true, "category": true}
	for _, p := range rows {
		if len(p.Attrs) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(p.Attrs, &m); err != nil {
			continue
		}
		for k := range m {
			attrs[k] = true
		}
	}
	out := make([]string, 0, len(attrs))
	for k := range attrs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func viewsOf(rows []models.Product, locale string) []ProductView {
	views := make([]ProductView, 0, len(rows))
	for _, p := range rows {
		views = append(views, toView(p, locale))
	}
	return views
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argFloat(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func argStrings(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
