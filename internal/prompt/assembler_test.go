package prompt

import (
	"strings"
	"testing"

	"github.com/deltapoly/assistant/internal/retrieval"
	"github.com/stretchr/testify/require"
)

func TestBuildEmptyContextStillCarriesPersona(t *testing.T) {
	out := Build(TierStandard, nil, retrieval.Results{})
	require.Contains(t, out, "polymers trading group")
	require.NotContains(t, out, "Relevant products")
	require.NotContains(t, out, "Knowledge base")
}

func TestBuildNumbersRetrievedProducts(t *testing.T) {
	res := retrieval.Results{
		Products: []retrieval.ScoredProduct{
			{Snippet: "HDPE BM-5502 — 39.50 EGP/kg, 1200 kg in stock"},
			{Snippet: "LDPE FL-2100 — 42.00 EGP/kg, 300 kg in stock"},
		},
	}
	out := Build(TierStandard, nil, res)
	require.Contains(t, out, "1. HDPE BM-5502")
	require.Contains(t, out, "2. LDPE FL-2100")
}

func TestBuildTruncatesLongKBSnippets(t *testing.T) {
	long := strings.Repeat("س", 500)
	res := retrieval.Results{
		Articles: []retrieval.ScoredArticle{{Title: "Returns", Snippet: long}},
	}
	out := Build(TierStandard, nil, res)
	require.NotContains(t, out, long)

	// rune-safe: budget counts characters, not bytes
	idx := strings.Index(out, "Returns: ")
	require.GreaterOrEqual(t, idx, 0)
	snippet := out[idx+len("Returns: "):]
	require.LessOrEqual(t, len([]rune(snippet)), kbSnippetBudget)
	require.True(t, strings.HasSuffix(snippet, "…"))
}

func TestBuildIncludesCallerProfile(t *testing.T) {
	out := Build(TierRich, &CallerProfile{
		CustomerID:  "cus_42",
		Locale:      "ar",
		CartSummary: "2 items, 350 kg",
	}, retrieval.Results{})
	require.Contains(t, out, "registered customer cus_42")
	require.Contains(t, out, "preferred language: ar")
	require.Contains(t, out, "current cart: 2 items, 350 kg")
}

func TestBuildIsPure(t *testing.T) {
	res := retrieval.Results{
		Products: []retrieval.ScoredProduct{{Snippet: "PP RA-130E — 44.25 EGP/kg"}},
	}
	first := Build(TierCompact, nil, res)
	second := Build(TierCompact, nil, res)
	require.Equal(t, first, second)
}
