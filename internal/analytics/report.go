// Package analytics aggregates a user's interaction history into counters,
// conversion rates, daily trends, audience breakdowns and derived scores.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/onnwee/rendezvous/internal/interaction"
	"github.com/onnwee/rendezvous/internal/profile"
	"github.com/onnwee/rendezvous/internal/ranking"
)

// Period bounds in days.
const (
	DefaultPeriodDays = 30
	MaxPeriodDays     = 90
)

// NotInformed labels demographics the source user did not provide.
const NotInformed = "não informado"

// Age groups used by the audience breakdown.
const (
	AgeGroup18To24 = "18-24"
	AgeGroup25To34 = "25-34"
	AgeGroup35To44 = "35-44"
	AgeGroup45Plus = "45+"
)

// TopInterests is the number of interests reported by interest analysis.
const TopInterests = 10

// completenessBioChars is the bio length that must be exceeded to count as filled.
const completenessBioChars = 20

// Stats holds flat counters per interaction type and direction.
type Stats struct {
	ProfileViews       int `json:"profileViews"`
	LikesReceived      int `json:"likesReceived"`
	LikesSent          int `json:"likesSent"`
	SuperLikesReceived int `json:"superLikesReceived"`
	SuperLikesSent     int `json:"superLikesSent"`
	MessagesReceived   int `json:"messagesReceived"`
	MessagesSent       int `json:"messagesSent"`
	FollowsReceived    int `json:"followsReceived"`
	FollowsSent        int `json:"followsSent"`
}

// Matches lists the users with a mutual like.
type Matches struct {
	Count   int      `json:"count"`
	UserIDs []string `json:"userIds"`
}

// ConversionRates are percentages with one decimal. A zero denominator yields 0.
type ConversionRates struct {
	ViewToLike     float64 `json:"viewToLike"`
	LikeToMatch    float64 `json:"likeToMatch"`
	MatchToMessage float64 `json:"matchToMessage"`
}

// DailyStat counts received activity on one UTC calendar day.
type DailyStat struct {
	Date     string `json:"date"`
	Views    int    `json:"views"`
	Likes    int    `json:"likes"`
	Messages int    `json:"messages"`
	Matches  int    `json:"matches"`
}

// Demographics breaks received likes down by the liker's age group and gender.
type Demographics struct {
	AgeGroups map[string]int `json:"ageGroups"`
	Genders   map[string]int `json:"genders"`
}

// InterestStat is one interest among the users who liked the viewer.
type InterestStat struct {
	Interest string `json:"interest"`
	Count    int    `json:"count"`
	Shared   bool   `json:"shared"`
}

// Summary holds totals and derived scores.
type Summary struct {
	TotalReceived       int `json:"totalReceived"`
	TotalSent           int `json:"totalSent"`
	TotalInteractions   int `json:"totalInteractions"`
	UniqueContacts      int `json:"uniqueContacts"`
	ProfileCompleteness int `json:"profileCompleteness"`
	PopularityScore     int `json:"popularityScore"`
	ActivityScore       int `json:"activityScore"`
	PeriodDays          int `json:"periodDays"`
}

// Report is the analytics response for one user and period.
type Report struct {
	Stats            Stats           `json:"stats"`
	Matches          Matches         `json:"matches"`
	ConversionRates  ConversionRates `json:"conversionRates"`
	DailyStats       []DailyStat     `json:"dailyStats"`
	Demographics     Demographics    `json:"demographics"`
	InterestAnalysis []InterestStat  `json:"interestAnalysis"`
	Summary          Summary         `json:"summary"`
	Insights         []Insight       `json:"insights"`
}

// Aggregator builds reports. Rules may be nil, in which case no insights
// are produced.
type Aggregator struct {
	rules *RuleSet
}

// NewAggregator creates an Aggregator evaluating rules for insights.
func NewAggregator(rules *RuleSet) *Aggregator {
	return &Aggregator{rules: rules}
}

// Aggregate builds the report for viewer from the interactions it received
// (viewer is the target) and sent (viewer is the source) during the period.
// Missing optional data contributes zero; it never fails.
func (a *Aggregator) Aggregate(viewer *profile.Profile, received, sent []interaction.Record, periodDays int, now time.Time) Report {
	if periodDays <= 0 {
		periodDays = DefaultPeriodDays
	}

	stats := countStats(received, sent)
	matched := interaction.MatchedUsers(sent, received)
	if matched == nil {
		matched = []string{}
	}
	uniqueContacts := countUniqueTargets(sent)

	report := Report{
		Stats:   stats,
		Matches: Matches{Count: len(matched), UserIDs: matched},
		ConversionRates: ConversionRates{
			ViewToLike:     percent(stats.LikesReceived, stats.ProfileViews),
			LikeToMatch:    percent(len(matched), stats.LikesSent),
			MatchToMessage: percent(stats.MessagesReceived, len(matched)),
		},
		DailyStats:       dailyStats(received, matched, periodDays, now),
		Demographics:     demographics(received, now),
		InterestAnalysis: interestAnalysis(viewer, received),
		Summary: Summary{
			TotalReceived:       len(received),
			TotalSent:           len(sent),
			TotalInteractions:   len(received) + len(sent),
			UniqueContacts:      uniqueContacts,
			ProfileCompleteness: ProfileCompleteness(viewer),
			PopularityScore:     PopularityScore(stats.ProfileViews, stats.LikesReceived, stats.MessagesReceived),
			ActivityScore:       ActivityScore(len(sent), uniqueContacts),
			PeriodDays:          periodDays,
		},
		Insights: []Insight{},
	}

	if a != nil && a.rules != nil {
		report.Insights = a.rules.Evaluate(FactsFrom(report))
	}
	return report
}

// ProfileCompleteness returns the share of filled profile fields as a
// rounded percentage. The fields are avatar, bio longer than 20 characters,
// interests, location, birth date and gender.
func ProfileCompleteness(p *profile.Profile) int {
	if p == nil {
		return 0
	}

	filled := 0
	for _, ok := range []bool{
		p.HasAvatar(),
		utf8.RuneCountInString(strings.TrimSpace(p.Bio)) > completenessBioChars,
		len(p.Interests) > 0,
		p.Location != nil || strings.TrimSpace(p.LocationText) != "",
		p.BirthDate != nil,
		p.HasGender(),
	} {
		if ok {
			filled++
		}
	}
	return int(math.Round(float64(filled) / 6 * 100))
}

// PopularityScore is min(views,30) + min(likes*2,40) + min(messages*3,30).
func PopularityScore(views, likes, messages int) int {
	return min(views, 30) + min(likes*2, 40) + min(messages*3, 30)
}

// ActivityScore is min(sent*2,60) + min(uniqueContacts*4,40).
func ActivityScore(sent, uniqueContacts int) int {
	return min(sent*2, 60) + min(uniqueContacts*4, 40)
}

// AgeGroup maps an age to its audience bucket.
func AgeGroup(age int) string {
	switch {
	case age < 25:
		return AgeGroup18To24
	case age < 35:
		return AgeGroup25To34
	case age < 45:
		return AgeGroup35To44
	default:
		return AgeGroup45Plus
	}
}

func countStats(received, sent []interaction.Record) Stats {
	var s Stats
	for _, r := range received {
		switch r.Type {
		case interaction.TypeView:
			s.ProfileViews++
		case interaction.TypeLike:
			s.LikesReceived++
		case interaction.TypeSuperLike:
			s.SuperLikesReceived++
		case interaction.TypeMessage:
			s.MessagesReceived++
		case interaction.TypeFollow:
			s.FollowsReceived++
		}
	}
	for _, r := range sent {
		switch r.Type {
		case interaction.TypeLike:
			s.LikesSent++
		case interaction.TypeSuperLike:
			s.SuperLikesSent++
		case interaction.TypeMessage:
			s.MessagesSent++
		case interaction.TypeFollow:
			s.FollowsSent++
		}
	}
	return s
}

func countUniqueTargets(sent []interaction.Record) int {
	targets := make(map[string]struct{}, len(sent))
	for _, r := range sent {
		if r.TargetID != "" {
			targets[r.TargetID] = struct{}{}
		}
	}
	return len(targets)
}

// dailyStats returns periodDays buckets, oldest first, ending on now's UTC day.
func dailyStats(received []interaction.Record, matched []string, periodDays int, now time.Time) []DailyStat {
	matchSet := make(map[string]struct{}, len(matched))
	for _, id := range matched {
		matchSet[id] = struct{}{}
	}

	today := now.UTC()
	days := make([]DailyStat, periodDays)
	index := make(map[string]int, periodDays)
	for i := range periodDays {
		date := today.AddDate(0, 0, i-periodDays+1).Format(time.DateOnly)
		days[i] = DailyStat{Date: date}
		index[date] = i
	}

	for _, r := range received {
		i, ok := index[r.CreatedAt.UTC().Format(time.DateOnly)]
		if !ok {
			continue
		}
		switch r.Type {
		case interaction.TypeView:
			days[i].Views++
		case interaction.TypeLike:
			days[i].Likes++
			if _, ok := matchSet[r.SourceID]; ok {
				days[i].Matches++
			}
		case interaction.TypeMessage:
			days[i].Messages++
		}
	}
	return days
}

func demographics(received []interaction.Record, now time.Time) Demographics {
	d := Demographics{
		AgeGroups: make(map[string]int),
		Genders:   make(map[string]int),
	}
	for _, r := range received {
		if r.Type != interaction.TypeLike {
			continue
		}

		group := NotInformed
		if r.SourceBirthDate != nil {
			group = AgeGroup(ranking.AgeYears(*r.SourceBirthDate, now))
		}
		d.AgeGroups[group]++

		gender := NotInformed
		if r.SourceGender != nil && strings.TrimSpace(*r.SourceGender) != "" {
			gender = *r.SourceGender
		}
		d.Genders[gender]++
	}
	return d
}

// interestAnalysis counts each liker's interests once per liker.
func interestAnalysis(viewer *profile.Profile, received []interaction.Record) []InterestStat {
	own := make(map[string]struct{})
	if viewer != nil {
		for _, i := range profile.NormalizeTags(viewer.Interests) {
			own[i] = struct{}{}
		}
	}

	counts := make(map[string]int)
	seenLiker := make(map[string]struct{})
	for _, r := range received {
		if r.Type != interaction.TypeLike {
			continue
		}
		if _, dup := seenLiker[r.SourceID]; dup {
			continue
		}
		seenLiker[r.SourceID] = struct{}{}

		for _, interest := range profile.NormalizeTags(r.SourceInterests) {
			counts[interest]++
		}
	}

	out := make([]InterestStat, 0, len(counts))
	for interest, count := range counts {
		_, shared := own[interest]
		out = append(out, InterestStat{Interest: interest, Count: count, Shared: shared})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Interest < out[j].Interest
	})
	if len(out) > TopInterests {
		out = out[:TopInterests]
	}
	return out
}

// percent returns part/whole*100 with one decimal, or 0 when whole is 0.
func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}
