package postgres

import (
	"context"

	"github.com/deltapoly/assistant/internal/models"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// ScoredProduct is a product row plus its similarity score from a vector
// search (1 - cosine distance).
type ScoredProduct struct {
	models.Product `gorm:"embedded"`
	Score          float64 `gorm:"column:score"`
}

type ProductRepo interface {
	SemanticSearch(ctx context.Context, embedding []float32, limit int, minScore float64) ([]ScoredProduct, error)
	Similar(ctx context.Context, productID string, limit int) ([]ScoredProduct, error)
	ByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	CheapestByCategory(ctx context.Context, category string, limit int) ([]models.Product, error)
	TopSellers(ctx context.Context, limit int) ([]models.Product, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepo {
	return &productRepo{db: db}
}

func (r *productRepo) SemanticSearch(ctx context.Context, embedding []float32, limit int, minScore float64) ([]ScoredProduct, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(embedding)

	var rows []ScoredProduct
	err := r.db.WithContext(ctx).Raw(`
		SELECT p.*, 1 - (p.embedding <=> ?) AS score
		FROM products p
		WHERE p.embedding IS NOT NULL
		ORDER BY p.embedding <=> ?
		LIMIT ?`, vec, vec, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := rows[:0]
	for _, row := range rows {
		if row.Score >= minScore {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *productRepo) Similar(ctx context.Context, productID string, limit int) ([]ScoredProduct, error) {
	if limit <= 0 {
		limit = 6
	}

	var rows []ScoredProduct
	err := r.db.WithContext(ctx).Raw(`
		SELECT p.*, 1 - (p.embedding <=> ref.embedding) AS score
		FROM products p, products ref
		WHERE ref.id = ?
		  AND p.id <> ref.id
		  AND p.embedding IS NOT NULL
		  AND ref.embedding IS NOT NULL
		ORDER BY p.embedding <=> ref.embedding
		LIMIT ?`, productID, limit).Scan(&rows).Error
	return rows, err
}

func (r *productRepo) ByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

func (r *productRepo) CheapestByCategory(ctx context.Context, category string, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	q := r.db.WithContext(ctx).Where("stock_kg > 0")
	if category != "" {
		q = q.Where("category ILIKE ?", category)
	}
	var rows []models.Product
	err := q.Order("price_egp ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *productRepo) TopSellers(ctx context.Context, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 6
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("stock_kg > 0").
		Order("(attrs->>'sales_rank')::int NULLS LAST").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
