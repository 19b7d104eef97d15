package retrieval

import (
	"context"
	"strings"

	mongorepo "github.com/deltapoly/assistant/internal/repositories/mongo"
)

// MongoKnowledgeSearcher ranks knowledge-base articles with Mongo $text
// search.
type MongoKnowledgeSearcher struct {
	articles mongorepo.KnowledgeRepository
}

func NewMongoKnowledgeSearcher(articles mongorepo.KnowledgeRepository) *MongoKnowledgeSearcher {
	return &MongoKnowledgeSearcher{articles: articles}
}

func (s *MongoKnowledgeSearcher) Search(ctx context.Context, query, locale string, limit int) ([]ScoredArticle, error) {
	rows, err := s.articles.Search(ctx, query, locale, limit)
	if err != nil {
		return nil, err
	}

	out := make([]ScoredArticle, 0, len(rows))
	for _, a := range rows {
		out = append(out, ScoredArticle{
			Title:   a.Title,
			Snippet: firstLine(a.Body),
			Locale:  a.Locale,
			Score:   a.Score,
		})
	}
	return out, nil
}

func firstLine(body string) string {
	body = strings.TrimSpace(body)
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		return strings.TrimSpace(body[:i])
	}
	return body
}
