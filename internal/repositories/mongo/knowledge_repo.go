package mongo

import (
	"context"

	"github.com/deltapoly/assistant/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type KnowledgeRepository interface {
	Search(ctx context.Context, query, locale string, limit int) ([]models.KBArticle, error)
}

type knowledgeRepo struct {
	col *mongo.Collection
}

func NewKnowledgeRepo(db *mongo.Database) KnowledgeRepository {
	return &knowledgeRepo{col: db.Collection("kb_articles")}
}

// Search runs a $text query over title+body, ranked by textScore.
func (r *knowledgeRepo) Search(ctx context.Context, query, locale string, limit int) ([]models.KBArticle, error) {
	if limit <= 0 {
		limit = 5
	}

	filter := bson.M{"$text": bson.M{"$search": query}}
	if locale != "" {
		filter["locale"] = locale
	}

	opts := options.Find().
		SetProjection(bson.M{
			"title":  1,
			"body":   1,
			"locale": 1,
			"tags":   1,
			"score":  bson.M{"$meta": "textScore"},
		}).
		SetSort(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.KBArticle
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
