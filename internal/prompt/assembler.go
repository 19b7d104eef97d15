package prompt

import (
	"fmt"
	"strings"

	"github.com/deltapoly/assistant/internal/retrieval"
)

type Tier string

const (
	TierCompact  Tier = "compact"
	TierStandard Tier = "standard"
	TierRich     Tier = "rich"
)

// kbSnippetBudget caps each knowledge-base snippet so the instruction stays
// bounded regardless of how much was retrieved.
const kbSnippetBudget = 200

type CallerProfile struct {
	CustomerID  string
	Locale      string
	CartSummary string
}

// Build assembles the system instruction from retrieved context and the
// caller profile. Pure: no I/O, no side effects.
func Build(tier Tier, profile *CallerProfile, res retrieval.Results) string {
	var b strings.Builder

	b.WriteString(persona(tier))
	b.WriteString("\n\nAnswer in the customer's language. Prices are in EGP. " +
		"Use the declared tools for product lookups, comparisons, and budget planning " +
		"instead of guessing catalog data.")

	if profile != nil {
		b.WriteString("\n\nCustomer profile:")
		if profile.CustomerID != "" {
			b.WriteString("\n- registered customer " + profile.CustomerID)
		}
		if profile.Locale != "" {
			b.WriteString("\n- preferred language: " + profile.Locale)
		}
		if profile.CartSummary != "" {
			b.WriteString("\n- current cart: " + profile.CartSummary)
		}
	}

	if len(res.Products) > 0 {
		b.WriteString("\n\nRelevant products:")
		for i, p := range res.Products {
			b.WriteString(fmt.Sprintf("\n%d. %s", i+1, p.Snippet))
		}
	}

	if len(res.Articles) > 0 {
		b.WriteString("\n\nKnowledge base:")
		for i, a := range res.Articles {
			b.WriteString(fmt.Sprintf("\n%d. %s: %s", i+1, a.Title, truncate(a.Snippet, kbSnippetBudget)))
		}
	}

	return b.String()
}

func persona(tier Tier) string {
	switch tier {
	case TierCompact:
		return "You are the sales assistant of a polymers trading group. Be brief and factual."
	case TierRich:
		return "You are the sales assistant of a multi-company polymers trading group serving " +
			"the Egyptian market. Help customers find materials, compare grades, plan purchases " +
			"within a budget, and answer questions about delivery, payment, and returns. " +
			"Be warm but concise, and always ground product claims in catalog data."
	default:
		return "You are the sales assistant of a polymers trading group serving the Egyptian " +
			"market. Help customers find materials, compare grades, and plan purchases within " +
			"a budget. Be concise and ground product claims in catalog data."
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
