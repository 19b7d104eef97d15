package retrieval

import (
	"context"
	"time"

	"github.com/deltapoly/assistant/internal/cache"
	"github.com/deltapoly/assistant/internal/models"
	"github.com/sirupsen/logrus"
)

type ScoredProduct struct {
	Product models.Product `json:"product"`
	Score   float64        `json:"score"`
	Snippet string         `json:"snippet,omitempty"`
}

type ScoredArticle struct {
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Locale  string  `json:"locale"`
	Score   float64 `json:"score"`
}

// Results holds both ranked lists for one query. Transient, recomputed (or
// cache-served) per request, never persisted.
type Results struct {
	Products []ScoredProduct `json:"products"`
	Articles []ScoredArticle `json:"articles"`
}

func (r Results) Empty() bool { return len(r.Products) == 0 && len(r.Articles) == 0 }

type ProductSearcher interface {
	Search(ctx context.Context, query, locale string, limit int, minScore float64) ([]ScoredProduct, error)
}

type KnowledgeSearcher interface {
	Search(ctx context.Context, query, locale string, limit int) ([]ScoredArticle, error)
}

type Config struct {
	Timeout    time.Duration // budget for the combined dual lookup
	MaxResults int
	MinScore   float64
	CacheTTL   time.Duration
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 2500 * time.Millisecond
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 5
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Minute
	}
}

type Service struct {
	products ProductSearcher
	kb       KnowledgeSearcher
	cache    cache.Cache // optional
	cfg      Config
	log      *logrus.Logger
}

func NewService(products ProductSearcher, kb KnowledgeSearcher, c cache.Cache, cfg Config, log *logrus.Logger) *Service {
	cfg.defaults()
	return &Service{products: products, kb: kb, cache: c, cfg: cfg, log: log}
}

// Retrieve runs the product semantic search and the knowledge-base search
// concurrently under one deadline. Each source degrades independently to an
// empty list on failure; if the deadline elapses before both finish, both
// lists come back empty. Retrieval never fails the request.
func (s *Service) Retrieve(ctx context.Context, query, locale string) Results {
	cacheKey := "retrieval:" + locale + ":" + query
	if s.cache != nil {
		var cached Results
		if hit, err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
			return cached
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	prodCh := make(chan []ScoredProduct, 1)
	artCh := make(chan []ScoredArticle, 1)

	go func() {
		ps, err := s.products.Search(ctx, query, locale, s.cfg.MaxResults, s.cfg.MinScore)
		if err != nil {
			s.log.WithError(err).Warn("product retrieval degraded")
			ps = nil
		}
		prodCh <- ps
	}()
	go func() {
		as, err := s.kb.Search(ctx, query, locale, s.cfg.MaxResults)
		if err != nil {
			s.log.WithError(err).Warn("knowledge retrieval degraded")
			as = nil
		}
		artCh <- as
	}()

	var res Results
	for i := 0; i < 2; i++ {
		select {
		case ps := <-prodCh:
			res.Products = truncateProducts(ps, s.cfg.MaxResults)
		case as := <-artCh:
			res.Articles = truncateArticles(as, s.cfg.MaxResults)
		case <-ctx.Done():
			s.log.WithField("timeout_ms", s.cfg.Timeout.Milliseconds()).
				Warn("retrieval deadline elapsed, proceeding without context")
			return Results{}
		}
	}

	if s.cache != nil && !res.Empty() {
		if err := s.cache.SetJSON(ctx, cacheKey, res, s.cfg.CacheTTL); err != nil {
			s.log.WithError(err).Debug("retrieval cache write failed")
		}
	}
	return res
}

func truncateProducts(ps []ScoredProduct, max int) []ScoredProduct {
	if len(ps) > max {
		return ps[:max]
	}
	return ps
}

func truncateArticles(as []ScoredArticle, max int) []ScoredArticle {
	if len(as) > max {
		return as[:max]
	}
	return as
}
