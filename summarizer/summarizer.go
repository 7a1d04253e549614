// Package summarizer renders an itinerary as LLM-facing text that exposes
// every node's exact canonical id, so the Change Engine can resolve any id
// an LLM echoes back without ever falling back to a guess (spec.md §4.3,
// §9's "no fallback" contract).
package summarizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/wayfarer-ai/itinerary/core"
	"github.com/wayfarer-ai/itinerary/itinerary"
)

const trailingDirective = "When referencing nodes in operations, use the EXACT IDs shown above."

// defaultEncoding is the tiktoken encoding used to estimate token counts.
// cl100k_base is a reasonable stand-in across the providers the LLM Gateway
// routes to; it is an estimate, not an exact count for non-OpenAI models.
const defaultEncoding = "cl100k_base"

// Summarizer renders itineraries into token-bounded, id-exposing text.
type Summarizer struct {
	logger core.Logger
	enc    *tiktoken.Tiktoken
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithLogger attaches a component-scoped logger.
func WithLogger(logger core.Logger) Option {
	return func(s *Summarizer) {
		if logger == nil {
			return
		}
		if aware, ok := logger.(core.ComponentAwareLogger); ok {
			s.logger = aware.WithComponent("summarizer")
			return
		}
		s.logger = logger
	}
}

// New creates a Summarizer. If the tiktoken encoding table cannot be loaded
// (e.g. no network access to fetch the BPE ranks on first use), it falls
// back to a conservative character-based estimate rather than failing,
// since the summarizer must never block agent execution on tokenizer
// availability.
func New(opts ...Option) *Summarizer {
	s := &Summarizer{logger: &core.NoOpLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	if enc, err := tiktoken.GetEncoding(defaultEncoding); err == nil {
		s.enc = enc
	} else {
		s.logger.Warn("summarizer: falling back to char-based token estimate", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return s
}

func (s *Summarizer) countTokens(text string) int {
	if s.enc != nil {
		return len(s.enc.Encode(text, nil, nil))
	}
	// ~4 characters per token is the standard rough estimate when an exact
	// tokenizer is unavailable.
	return (len(text) + 3) / 4
}

// Render produces the LLM-facing text for it, staying under tokenBudget by
// truncating tips and labels before ever dropping a node or a day. A
// tokenBudget of 0 or less means unbounded.
func (s *Summarizer) Render(it *itinerary.Itinerary, tokenBudget int) string {
	lines := s.renderFull(it)
	text := strings.Join(lines, "\n")
	if tokenBudget <= 0 || s.countTokens(text) <= tokenBudget {
		return text
	}

	// Degrade in stages: drop tips first (least essential), then labels,
	// re-measuring after each stage. Node identity and timing are never
	// touched, since those are what the Change Engine depends on.
	for _, stage := range []int{stageDropTips, stageDropLabels} {
		lines = s.renderDegraded(it, stage)
		text = strings.Join(lines, "\n")
		if s.countTokens(text) <= tokenBudget {
			return text
		}
	}

	s.logger.Warn("summarizer: itinerary still exceeds token budget after full degradation", map[string]interface{}{
		"itineraryId": it.ItineraryID,
		"tokenBudget": tokenBudget,
		"tokens":      s.countTokens(text),
	})
	return text
}

const (
	stageDropTips = iota
	stageDropLabels
)

func (s *Summarizer) renderFull(it *itinerary.Itinerary) []string {
	return s.render(it, false, false)
}

func (s *Summarizer) renderDegraded(it *itinerary.Itinerary, stage int) []string {
	dropTips := stage >= stageDropTips
	dropLabels := stage >= stageDropLabels
	return s.render(it, dropTips, dropLabels)
}

func (s *Summarizer) render(it *itinerary.Itinerary, dropTips, dropLabels bool) []string {
	var lines []string
	for _, day := range it.Days {
		lines = append(lines, fmt.Sprintf("Day %d:", day.DayNumber))
		if len(day.Nodes) == 0 {
			lines = append(lines, "  No nodes")
			continue
		}
		for _, n := range day.Nodes {
			lines = append(lines, formatNode(n, dropTips, dropLabels)...)
		}
	}
	lines = append(lines, "", trailingDirective)
	return lines
}

// formatNode returns the node's required line plus any optional detail
// lines. The id/title/type/timing line is never dropped; tips and labels
// are the "least-essential fields" the budget-fitting pass sheds first.
func formatNode(n *itinerary.Node, dropTips, dropLabels bool) []string {
	out := []string{fmt.Sprintf("  %s: %s (%s) [%s-%s]", n.ID, n.Title, n.Type, n.StartTime, n.EndTime)}
	if !dropTips && len(n.Tips) > 0 {
		out = append(out, "    tips: "+strings.Join(n.Tips, "; "))
	}
	if !dropLabels && len(n.Labels) > 0 {
		out = append(out, "    labels: "+strings.Join(n.Labels, ", "))
	}
	return out
}
