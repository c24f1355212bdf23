package model

import "time"

// Transcript is one podcast episode's raw text plus its header metadata.
// Transcripts are read-only input; they are never written back.
type Transcript struct {
	EpisodeID    string `json:"episode_id"`
	GuestName    string `json:"guest_name"`
	EpisodeTitle string `json:"episode_title"`
	Body         string `json:"body"`
}

// Intelligence is the structured extraction derived from one transcript.
// At most one record exists per episode; re-extraction overwrites.
type Intelligence struct {
	EpisodeID       string      `json:"episode_id"`
	GuestName       string      `json:"guest_name"`
	EpisodeTitle    string      `json:"episode_title"`
	Companies       []Company   `json:"companies"`
	Frameworks      []Framework `json:"frameworks"`
	QuestionSeeds   []string    `json:"question_seeds"`
	MemorableQuotes []string    `json:"memorable_quotes"`
	ExtractedAt     time.Time   `json:"extracted_at"`
}

// Company is a company mention within one episode. The same name can recur
// across episodes; records are scoped to their Intelligence parent.
type Company struct {
	Name             string     `json:"name"`
	IsGuestCompany   bool       `json:"is_guest_company"`
	MentionContext   string     `json:"mention_context"`
	Decisions        []Decision `json:"decisions"`
	Opinions         []Opinion  `json:"opinions"`
	MetricsMentioned []string   `json:"metrics_mentioned"`
}

// Richness scores a company by how much question-generation grounding it
// carries. A company with a zero score cannot anchor a grounded question.
func (c Company) Richness() int {
	return len(c.Decisions) + len(c.Opinions)
}

// Decision is a concrete decision the guest described at a company.
type Decision struct {
	What    string `json:"what"`
	When    string `json:"when,omitempty"`
	Why     string `json:"why,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Quote   string `json:"quote,omitempty"`
}

// Opinion is a stated viewpoint attributed to the guest about a company.
type Opinion struct {
	Opinion string `json:"opinion"`
	Quote   string `json:"quote,omitempty"`
}

// FrameworkCategory classifies a framework by domain.
type FrameworkCategory string

const (
	CategoryPrioritization FrameworkCategory = "prioritization"
	CategoryStrategy       FrameworkCategory = "strategy"
	CategoryGrowth         FrameworkCategory = "growth"
	CategoryMetrics        FrameworkCategory = "metrics"
	CategoryDesign         FrameworkCategory = "design"
	CategoryExecution      FrameworkCategory = "execution"
	CategoryLeadership     FrameworkCategory = "leadership"
	CategoryAIML           FrameworkCategory = "ai_ml"
)

// Valid reports whether the category is a member of the closed set.
func (c FrameworkCategory) Valid() bool {
	switch c {
	case CategoryPrioritization, CategoryStrategy, CategoryGrowth,
		CategoryMetrics, CategoryDesign, CategoryExecution,
		CategoryLeadership, CategoryAIML:
		return true
	}
	return false
}

// Framework is a named method or mental model the guest explained.
type Framework struct {
	Name        string            `json:"name"`
	Creator     string            `json:"creator,omitempty"`
	Category    FrameworkCategory `json:"category"`
	Explanation string            `json:"explanation"`
	WhenToUse   string            `json:"when_to_use,omitempty"`
	Example     string            `json:"example,omitempty"`
	Quote       string            `json:"quote,omitempty"`
}

// RichestCompany returns the company with the highest richness score, or
// nil when no company has any decisions or opinions. Ties keep the first
// maximal element so selection is deterministic.
func (i *Intelligence) RichestCompany() *Company {
	var best *Company
	for idx := range i.Companies {
		c := &i.Companies[idx]
		if c.Richness() == 0 {
			continue
		}
		if best == nil || c.Richness() > best.Richness() {
			best = c
		}
	}
	return best
}
