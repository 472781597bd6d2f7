package analytics

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
)

// Insight kinds.
const (
	KindSuggestion = "suggestion"
	KindPositive   = "positive"
)

// Insight is an advisory message attached to a report.
type Insight struct {
	Rule    string `json:"rule"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Rule is a boolean CEL expression over Facts. When it evaluates to true
// the report carries its message.
//
// Available variables: profileCompleteness, profileViews, likesReceived,
// likesSent, messagesReceived, messagesSent, matches, popularityScore,
// activityScore, uniqueContacts (int) and viewToLike, likeToMatch,
// matchToMessage (double).
type Rule struct {
	Name       string `json:"name" yaml:"name"`
	Kind       string `json:"kind" yaml:"kind"`
	Expression string `json:"expression" yaml:"expression"`
	Message    string `json:"message" yaml:"message"`
}

// DefaultRules are the insight rules used when none are configured.
var DefaultRules = []Rule{
	{
		Name:       "complete_profile",
		Kind:       KindSuggestion,
		Expression: "profileCompleteness < 80",
		Message:    "Complete your profile to get more visibility.",
	},
	{
		Name:       "refresh_photos",
		Kind:       KindSuggestion,
		Expression: "profileViews >= 20 && viewToLike < 10.0",
		Message:    "Many people view your profile but few like it. Try updating your photos.",
	},
	{
		Name:       "be_more_active",
		Kind:       KindSuggestion,
		Expression: "activityScore < 30",
		Message:    "Interact more with other profiles to increase your chances.",
	},
	{
		Name:       "start_conversations",
		Kind:       KindSuggestion,
		Expression: "matches > 0 && messagesSent == 0",
		Message:    "You have matches waiting. Start a conversation!",
	},
	{
		Name:       "popular_profile",
		Kind:       KindPositive,
		Expression: "popularityScore >= 70",
		Message:    "Your profile is popular. Keep it up!",
	},
}

// Facts are the report values exposed to rule expressions.
type Facts struct {
	ProfileCompleteness int
	ProfileViews        int
	LikesReceived       int
	LikesSent           int
	MessagesReceived    int
	MessagesSent        int
	Matches             int
	PopularityScore     int
	ActivityScore       int
	UniqueContacts      int
	ViewToLike          float64
	LikeToMatch         float64
	MatchToMessage      float64
}

// FactsFrom extracts the rule inputs from a report.
func FactsFrom(r Report) Facts {
	return Facts{
		ProfileCompleteness: r.Summary.ProfileCompleteness,
		ProfileViews:        r.Stats.ProfileViews,
		LikesReceived:       r.Stats.LikesReceived,
		LikesSent:           r.Stats.LikesSent,
		MessagesReceived:    r.Stats.MessagesReceived,
		MessagesSent:        r.Stats.MessagesSent,
		Matches:             r.Matches.Count,
		PopularityScore:     r.Summary.PopularityScore,
		ActivityScore:       r.Summary.ActivityScore,
		UniqueContacts:      r.Summary.UniqueContacts,
		ViewToLike:          r.ConversionRates.ViewToLike,
		LikeToMatch:         r.ConversionRates.LikeToMatch,
		MatchToMessage:      r.ConversionRates.MatchToMessage,
	}
}

func (f Facts) activation() map[string]any {
	return map[string]any{
		"profileCompleteness": int64(f.ProfileCompleteness),
		"profileViews":        int64(f.ProfileViews),
		"likesReceived":       int64(f.LikesReceived),
		"likesSent":           int64(f.LikesSent),
		"messagesReceived":    int64(f.MessagesReceived),
		"messagesSent":        int64(f.MessagesSent),
		"matches":             int64(f.Matches),
		"popularityScore":     int64(f.PopularityScore),
		"activityScore":       int64(f.ActivityScore),
		"uniqueContacts":      int64(f.UniqueContacts),
		"viewToLike":          f.ViewToLike,
		"likeToMatch":         f.LikeToMatch,
		"matchToMessage":      f.MatchToMessage,
	}
}

var (
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// getCELEnv returns the shared CEL environment declaring the Facts variables.
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("profileCompleteness", cel.IntType),
			cel.Variable("profileViews", cel.IntType),
			cel.Variable("likesReceived", cel.IntType),
			cel.Variable("likesSent", cel.IntType),
			cel.Variable("messagesReceived", cel.IntType),
			cel.Variable("messagesSent", cel.IntType),
			cel.Variable("matches", cel.IntType),
			cel.Variable("popularityScore", cel.IntType),
			cel.Variable("activityScore", cel.IntType),
			cel.Variable("uniqueContacts", cel.IntType),
			cel.Variable("viewToLike", cel.DoubleType),
			cel.Variable("likeToMatch", cel.DoubleType),
			cel.Variable("matchToMessage", cel.DoubleType),
		)
	})
	return celEnv, celEnvErr
}

type compiledRule struct {
	Rule
	program cel.Program
}

// RuleSet is a compiled, ordered list of rules. Safe for concurrent use.
type RuleSet struct {
	rules []compiledRule
}

// NewRuleSet compiles rules. Every expression must type-check to bool.
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	rs := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %q: compile error: %w", r.Name, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %q: expression must return bool, got %s", r.Name, ast.OutputType())
		}

		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %q: program error: %w", r.Name, err)
		}
		if r.Kind == "" {
			r.Kind = KindSuggestion
		}
		rs.rules = append(rs.rules, compiledRule{Rule: r, program: prg})
	}
	return rs, nil
}

var (
	defaultRuleSet     *RuleSet
	defaultRuleSetErr  error
	defaultRuleSetOnce sync.Once
)

// DefaultRuleSet returns DefaultRules compiled once.
func DefaultRuleSet() (*RuleSet, error) {
	defaultRuleSetOnce.Do(func() {
		defaultRuleSet, defaultRuleSetErr = NewRuleSet(DefaultRules)
	})
	return defaultRuleSet, defaultRuleSetErr
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Evaluate returns the insights of every rule that holds, in rule order.
// A rule that fails at evaluation time is logged and skipped.
func (rs *RuleSet) Evaluate(f Facts) []Insight {
	insights := []Insight{}
	vars := f.activation()

	for _, r := range rs.rules {
		out, _, err := r.program.Eval(vars)
		if err != nil {
			slog.Warn("insight rule evaluation failed", "rule", r.Name, "error", err)
			continue
		}
		if hit, ok := out.Value().(bool); ok && hit {
			insights = append(insights, Insight{Rule: r.Name, Kind: r.Kind, Message: r.Message})
		}
	}
	return insights
}
