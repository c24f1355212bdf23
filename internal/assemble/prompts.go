package assemble

import (
	"fmt"
	"strings"

	"github.com/pmprep/interview-cli/internal/model"
)

// bundleLimit caps how many decision summaries and quotes go into one
// prompt. More grounding than this adds tokens without adding signal.
const bundleLimit = 5

const questionSystemPrompt = `You write product-management interview questions grounded in real events at real companies.
Respond with ONLY a JSON object, no markdown fences, matching exactly:
{
  "type": "<interview type>",
  "company": "<company name>",
  "difficulty": "<medium|hard|expert>",
  "suggested_time_minutes": <int>,
  "situation_brief": "<2-3 sentence setup the candidate reads first>",
  "question": "<the question itself>",
  "follow_ups": ["<probing follow-up>", ...],
  "model_answer": {
    "what_happened": "<what the company actually did>",
    "key_reasoning": "<why it worked or failed>",
    "key_quote": "<verbatim quote from the source material>",
    "frameworks_mentioned": ["<framework>", ...],
    "full_answer": "<a complete strong answer a candidate could give>"
  }
}`

// typeInstructions holds one fixed instructional sentence per interview
// type. The closed map keeps adding a type a compile-visible change: a
// missing entry fails the lookup rather than silently reusing another
// type's instruction.
var typeInstructions = map[model.InterviewType]string{
	model.TypeBehavioral:    "Write a behavioral question asking the candidate to describe how they would have handled the situation this company faced, probing for ownership and judgment.",
	model.TypeProductSense:  "Write a product sense question asking the candidate to reason about user needs and product decisions in the situation this company faced.",
	model.TypeProductDesign: "Write a product design question asking the candidate to design or redesign the product or feature at the center of this company's situation.",
	model.TypeRCA:           "Write a root-cause-analysis question presenting a metric movement or incident drawn from this company's situation and asking the candidate to diagnose it.",
	model.TypeStrategy:      "Write a strategy question asking the candidate to evaluate or propose the strategic move this company made, including competitive and market considerations.",
	model.TypeMetrics:       "Write a metrics question asking the candidate to define success metrics and guardrails for the decision this company faced.",
	model.TypeEstimation:    "Write an estimation question asking the candidate to size a market, cost, or impact relevant to this company's situation, showing their reasoning.",
	model.TypeExecution:     "Write an execution question asking the candidate to plan the rollout, sequencing, and risk mitigation for the decision this company made.",
	model.TypeTechnical:     "Write a technical PM question asking the candidate to reason about the system design or technical trade-offs behind this company's decision.",
}

// contextBundle is the compact grounding block sent with every question
// prompt: the chosen company plus capped decision summaries and quotes.
func contextBundle(rec *model.Intelligence, c *model.Company) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Company: %s\n", c.Name)
	fmt.Fprintf(&b, "Context: %s\n", c.MentionContext)
	fmt.Fprintf(&b, "Source episode: %q with guest %s\n", rec.EpisodeTitle, rec.GuestName)

	b.WriteString("\nKey decisions:\n")
	for i, d := range c.Decisions {
		if i == bundleLimit {
			break
		}
		fmt.Fprintf(&b, "- %s\n", decisionSummary(d))
	}

	quotes := pooledQuotes(c)
	if len(quotes) > 0 {
		b.WriteString("\nVerbatim quotes:\n")
		for _, q := range quotes {
			fmt.Fprintf(&b, "- %q\n", q)
		}
	}
	return b.String()
}

// decisionSummary renders one decision as
// "<what> (Why: <why>) → <outcome>", dropping the clauses that are absent.
func decisionSummary(d model.Decision) string {
	var b strings.Builder
	b.WriteString(d.What)
	if d.Why != "" {
		fmt.Fprintf(&b, " (Why: %s)", d.Why)
	}
	if d.Outcome != "" {
		fmt.Fprintf(&b, " → %s", d.Outcome)
	}
	return b.String()
}

// pooledQuotes collects up to bundleLimit quotes, decisions first, then
// opinions, preserving source order.
func pooledQuotes(c *model.Company) []string {
	var quotes []string
	for _, d := range c.Decisions {
		if d.Quote != "" {
			quotes = append(quotes, d.Quote)
			if len(quotes) == bundleLimit {
				return quotes
			}
		}
	}
	for _, o := range c.Opinions {
		if o.Quote != "" {
			quotes = append(quotes, o.Quote)
			if len(quotes) == bundleLimit {
				return quotes
			}
		}
	}
	return quotes
}

func questionUserPrompt(rec *model.Intelligence, c *model.Company, typ model.InterviewType, diff model.Difficulty) string {
	var b strings.Builder
	b.WriteString(typeInstructions[typ])
	fmt.Fprintf(&b, "\nDifficulty: %s. Set \"type\" to %q and \"difficulty\" to %q.\n\n", diff, typ, diff)
	b.WriteString(contextBundle(rec, c))
	return b.String()
}
