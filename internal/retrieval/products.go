package retrieval

import (
	"context"
	"fmt"

	"github.com/deltapoly/assistant/internal/providers/embed"
	pgrepo "github.com/deltapoly/assistant/internal/repositories/postgres"
)

// PGProductSearcher embeds the query and ranks products by vector similarity
// in Postgres (pgvector).
type PGProductSearcher struct {
	embedder embed.Provider
	products pgrepo.ProductRepo
}

func NewPGProductSearcher(embedder embed.Provider, products pgrepo.ProductRepo) *PGProductSearcher {
	return &PGProductSearcher{embedder: embedder, products: products}
}

func (s *PGProductSearcher) Search(ctx context.Context, query, locale string, limit int, minScore float64) ([]ScoredProduct, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.products.SemanticSearch(ctx, vec, limit, minScore)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	out := make([]ScoredProduct, 0, len(rows))
	for _, row := range rows {
		out = append(out, ScoredProduct{
			Product: row.Product,
			Score:   row.Score,
			Snippet: productSnippet(row, locale),
		})
	}
	return out, nil
}

func productSnippet(row pgrepo.ScoredProduct, locale string) string {
	return fmt.Sprintf("%s [%s] (%s) — %.2f EGP/%s, %.0f kg in stock",
		row.Product.Name(locale), row.Product.SKU, row.Product.Category,
		row.Product.PriceEGP, row.Product.Unit, row.Product.StockKg)
}
