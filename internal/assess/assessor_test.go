package assess

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codefleet/foreman/pkg/models"
)

type stubSecondary struct {
	opinion *SecondaryOpinion
	err     error
	called  bool
	block   bool
}

func (s *stubSecondary) AssessComplexity(ctx context.Context, task *models.Task) (*SecondaryOpinion, error) {
	s.called = true
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.opinion, s.err
}

func TestRuleScoreKeywordBuckets(t *testing.T) {
	a := New()

	tests := []struct {
		name string
		task models.Task
		want float64
	}{
		{
			name: "three high keywords route above paid threshold",
			task: models.Task{
				Title:       "Refactor service architecture",
				Description: "Restructure the public api layer",
				Kind:        models.TaskKindCode,
				Priority:    5,
			},
			// refactor + architecture + api + restructure = 8, + kind 0.5
			// + priority 0.75, clamped to 9.25
			want: 9.25,
		},
		{
			name: "low keywords subtract to floor",
			task: models.Task{
				Title:       "Fix typo in readme",
				Description: "Formatting only",
				Kind:        models.TaskKindCode,
				Priority:    1,
			},
			want: minScore,
		},
		{
			name: "step markers add weight",
			task: models.Task{
				Title:       "Multi stage task",
				Description: "Step 1 do a thing. Step 2 do another. Step 3 verify.",
				Kind:        models.TaskKindCode,
				Priority:    1,
			},
			// 3 markers * 0.5 + kind 0.5 + priority 0.15 = 2.15
			want: 2.15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.RuleScore(&tt.task)
			if got != tt.want {
				t.Errorf("RuleScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRuleScoreHighKeywordScenario(t *testing.T) {
	a := New()
	task := &models.Task{
		Title:       "Platform work",
		Description: "refactor the architecture of the api",
		Kind:        models.TaskKindCode,
		Priority:    1,
	}
	got := a.RuleScore(task)
	if got < 6 {
		t.Errorf("three high keywords scored %v, want >= 6", got)
	}
}

func TestRuleScoreIterationPenalty(t *testing.T) {
	a := New()
	fresh := &models.Task{Title: "implement endpoint", Kind: models.TaskKindCode, Priority: 5}
	retried := &models.Task{Title: "implement endpoint", Kind: models.TaskKindCode, Priority: 5, CurrentIteration: 2}

	freshScore := a.RuleScore(fresh)
	retriedScore := a.RuleScore(retried)
	if retriedScore != freshScore+2*iterationPenalty {
		t.Errorf("retried = %v, fresh = %v, want penalty of %v per iteration", retriedScore, freshScore, iterationPenalty)
	}
}

func TestRuleScoreKindOrdering(t *testing.T) {
	a := New()
	base := models.Task{Title: "handle the payments module", Priority: 5}

	score := func(kind models.TaskKind) float64 {
		task := base
		task.Kind = kind
		return a.RuleScore(&task)
	}

	review := score(models.TaskKindReview)
	test := score(models.TaskKindTest)
	code := score(models.TaskKindCode)
	if !(review > test && test > code) {
		t.Errorf("kind ordering violated: review=%v test=%v code=%v", review, test, code)
	}
}

func TestRuleScoreClamped(t *testing.T) {
	a := New()
	task := &models.Task{
		Title:       "refactor architecture api security database schema migration",
		Description: "rewrite restructure distributed integration concurrency authentication",
		Kind:        models.TaskKindReview,
		Priority:    10,

		CurrentIteration: 5,
	}
	if got := a.RuleScore(task); got != maxScore {
		t.Errorf("RuleScore() = %v, want clamp at %v", got, maxScore)
	}
}

func TestAssessSecondaryAuthoritative(t *testing.T) {
	sec := &stubSecondary{opinion: &SecondaryOpinion{Score: 7.5, Reasoning: "touches shared state"}}
	a := New(WithSecondary(sec))

	task := &models.Task{Title: "refactor the api", Kind: models.TaskKindCode, Priority: 5}
	result := a.Assess(context.Background(), task)

	if !sec.called {
		t.Fatal("secondary not consulted")
	}
	if result.Method != models.AssessmentSecondary {
		t.Errorf("method = %s, want %s", result.Method, models.AssessmentSecondary)
	}
	if result.FinalScore != 7.5 {
		t.Errorf("final = %v, want secondary value 7.5", result.FinalScore)
	}
	if result.SecondaryScore == nil || *result.SecondaryScore != 7.5 {
		t.Errorf("secondary score not recorded: %v", result.SecondaryScore)
	}
	if result.RuleScore == 7.5 {
		t.Error("rule score should be preserved separately")
	}
}

func TestAssessSkipsSecondaryForTrivialTasks(t *testing.T) {
	sec := &stubSecondary{opinion: &SecondaryOpinion{Score: 9}}
	a := New(WithSecondary(sec))

	task := &models.Task{Title: "fix typo", Kind: models.TaskKindCode, Priority: 1}
	result := a.Assess(context.Background(), task)

	if sec.called {
		t.Error("secondary consulted for trivial task")
	}
	if result.Method != models.AssessmentRouterOnly {
		t.Errorf("method = %s, want %s", result.Method, models.AssessmentRouterOnly)
	}
}

func TestAssessSecondaryFailureFallsBack(t *testing.T) {
	sec := &stubSecondary{err: errors.New("upstream unavailable")}
	a := New(WithSecondary(sec))

	task := &models.Task{Title: "refactor the api", Kind: models.TaskKindCode, Priority: 5}
	result := a.Assess(context.Background(), task)

	if result.Method != models.AssessmentRouterOnly {
		t.Errorf("method = %s, want fallback %s", result.Method, models.AssessmentRouterOnly)
	}
	if result.FinalScore != result.RuleScore {
		t.Errorf("final = %v, want rule score %v", result.FinalScore, result.RuleScore)
	}
	if result.SecondaryScore != nil {
		t.Error("failed secondary must not record a score")
	}
}

func TestAssessSecondaryTimeout(t *testing.T) {
	sec := &stubSecondary{block: true}
	a := New(WithSecondary(sec), WithSecondaryTimeout(20*time.Millisecond))

	task := &models.Task{Title: "refactor the api", Kind: models.TaskKindCode, Priority: 5}

	start := time.Now()
	result := a.Assess(context.Background(), task)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("assessment blocked for %v", elapsed)
	}
	if result.Method != models.AssessmentRouterOnly {
		t.Errorf("method = %s, want fallback after timeout", result.Method)
	}
}

func TestAssessSecondaryScoreClamped(t *testing.T) {
	sec := &stubSecondary{opinion: &SecondaryOpinion{Score: 42}}
	a := New(WithSecondary(sec))

	task := &models.Task{Title: "refactor the api", Kind: models.TaskKindCode, Priority: 5}
	result := a.Assess(context.Background(), task)
	if result.FinalScore != maxScore {
		t.Errorf("final = %v, want clamp at %v", result.FinalScore, maxScore)
	}
}

func TestParseOpinion(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    float64
		wantErr bool
	}{
		{name: "bare json", text: `{"score": 6, "reasoning": "multi-file"}`, want: 6},
		{name: "fenced json", text: "```json\n{\"score\": 3.5, \"reasoning\": \"small\"}\n```", want: 3.5},
		{name: "prose wrapper", text: `Here is my assessment: {"score": 8, "reasoning": "risky"} as requested.`, want: 8},
		{name: "no json", text: "complexity is about 5", wantErr: true},
		{name: "missing score", text: `{"reasoning": "unsure"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOpinion(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseOpinion: %v", err)
			}
			if got.Score != tt.want {
				t.Errorf("score = %v, want %v", got.Score, tt.want)
			}
		})
	}
}
