package assess

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/codefleet/foreman/pkg/models"
)

const (
	// minScore and maxScore bound the complexity scale.
	minScore = 1.0
	maxScore = 10.0

	// secondaryThreshold is the rule score below which the secondary
	// assessment is skipped. Trivial tasks do not warrant the round-trip.
	secondaryThreshold = 2.0

	// DefaultSecondaryTimeout bounds the secondary assessment call so a
	// slow opinion never stalls routing.
	DefaultSecondaryTimeout = 15 * time.Second

	highKeywordWeight   = 2.0
	mediumKeywordWeight = 1.0
	lowKeywordWeight    = -1.0
	stepMarkerWeight    = 0.5
	priorityWeight      = 0.15
	iterationPenalty    = 1.5
)

// kindWeights orders task kinds by inherent difficulty: review work needs
// the most judgment, mechanical code changes the least.
var kindWeights = map[models.TaskKind]float64{
	models.TaskKindReview:   2.0,
	models.TaskKindTest:     1.5,
	models.TaskKindRefactor: 1.5,
	models.TaskKindDebug:    1.0,
	models.TaskKindCode:     0.5,
}

// SecondaryOpinion is the result of a secondary complexity assessment.
type SecondaryOpinion struct {
	// Score is the secondary model's 1-10 complexity estimate.
	Score float64
	// Reasoning is the model's free-text justification.
	Reasoning string
}

// SecondaryAssessor produces an external, lower-cost opinion on task
// complexity. Implementations must respect the context deadline.
type SecondaryAssessor interface {
	AssessComplexity(ctx context.Context, task *models.Task) (*SecondaryOpinion, error)
}

// Assessment carries the figures a scoring pass produced. All of them are
// projected onto the task for audit.
type Assessment struct {
	// RuleScore is the deterministic rule-based score.
	RuleScore float64
	// SecondaryScore is the secondary model's score, nil when the
	// secondary pass was skipped or failed.
	SecondaryScore *float64
	// FinalScore is the authoritative complexity used for routing.
	FinalScore float64
	// Method records which pass produced FinalScore.
	Method models.AssessmentMethod
	// Reasoning is the secondary model's justification, if any.
	Reasoning string
}

// Assessor scores task complexity.
type Assessor struct {
	keywords  ComplexityKeywords
	secondary SecondaryAssessor
	timeout   time.Duration
}

// Option configures an Assessor.
type Option func(*Assessor)

// WithSecondary attaches a secondary assessor.
func WithSecondary(s SecondaryAssessor) Option {
	return func(a *Assessor) { a.secondary = s }
}

// WithSecondaryTimeout overrides the secondary call deadline.
func WithSecondaryTimeout(d time.Duration) Option {
	return func(a *Assessor) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithKeywords overrides the keyword buckets.
func WithKeywords(kw ComplexityKeywords) Option {
	return func(a *Assessor) { a.keywords = kw }
}

// New creates an Assessor. Without WithSecondary it runs rule-only.
func New(opts ...Option) *Assessor {
	a := &Assessor{
		keywords: DefaultComplexityKeywords,
		timeout:  DefaultSecondaryTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RuleScore computes the deterministic rule-based complexity of a task,
// clamped to [1,10]. A task that has already failed an iteration is
// scored harder: it has demonstrated it is not as easy as it looks.
func (a *Assessor) RuleScore(task *models.Task) float64 {
	text := task.Text()
	lower := strings.ToLower(text)

	score := 0.0
	score += float64(countStepMarkers(text)) * stepMarkerWeight
	score += float64(countMatches(lower, a.keywords.High)) * highKeywordWeight
	score += float64(countMatches(lower, a.keywords.Medium)) * mediumKeywordWeight
	score += float64(countMatches(lower, a.keywords.Low)) * lowKeywordWeight
	score += kindWeights[task.Kind]
	score += float64(task.Priority) * priorityWeight
	score += float64(task.CurrentIteration) * iterationPenalty

	return clamp(score)
}

// Assess scores the task. The rule-based pass always runs; when its score
// reaches the secondary threshold and a secondary assessor is configured,
// the secondary opinion is requested under a bounded timeout and, on
// success, its value is authoritative: it has read the actual task text,
// not just keyword heuristics. Secondary failure degrades silently to the
// rule-based score.
func (a *Assessor) Assess(ctx context.Context, task *models.Task) Assessment {
	ruleScore := a.RuleScore(task)
	result := Assessment{
		RuleScore:  ruleScore,
		FinalScore: ruleScore,
		Method:     models.AssessmentRouterOnly,
	}

	if a.secondary == nil || ruleScore < secondaryThreshold {
		return result
	}

	opCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	opinion, err := a.secondary.AssessComplexity(opCtx, task)
	if err != nil {
		log.Printf("secondary assessment for task %s: %v (using rule score %.1f)", task.ID, err, ruleScore)
		return result
	}

	secondary := clamp(opinion.Score)
	result.SecondaryScore = &secondary
	result.FinalScore = secondary
	result.Method = models.AssessmentSecondary
	result.Reasoning = opinion.Reasoning
	return result
}

func clamp(score float64) float64 {
	if score < minScore {
		return minScore
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
