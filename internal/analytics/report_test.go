package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/rendezvous/internal/geo"
	"github.com/onnwee/rendezvous/internal/interaction"
	"github.com/onnwee/rendezvous/internal/profile"
)

var testNow = time.Date(2026, time.June, 15, 18, 30, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func rec(source, target string, typ interaction.Type, at time.Time) interaction.Record {
	return interaction.Record{SourceID: source, TargetID: target, Type: typ, CreatedAt: at}
}

func TestAggregate_Matches(t *testing.T) {
	sent := []interaction.Record{
		rec("me", "B", interaction.TypeLike, testNow),
		rec("me", "C", interaction.TypeLike, testNow),
		rec("me", "D", interaction.TypeLike, testNow),
	}
	received := []interaction.Record{
		rec("C", "me", interaction.TypeLike, testNow),
		rec("D", "me", interaction.TypeLike, testNow),
		rec("E", "me", interaction.TypeLike, testNow),
	}

	r := NewAggregator(nil).Aggregate(&profile.Profile{ID: "me"}, received, sent, 7, testNow)

	if r.Matches.Count != 2 {
		t.Errorf("expected 2 matches, got %d", r.Matches.Count)
	}
	if fmt.Sprint(r.Matches.UserIDs) != "[C D]" {
		t.Errorf("expected [C D], got %v", r.Matches.UserIDs)
	}
	if r.ConversionRates.LikeToMatch != 66.7 {
		t.Errorf("expected likeToMatch 66.7, got %f", r.ConversionRates.LikeToMatch)
	}
}

func TestAggregate_Stats(t *testing.T) {
	received := []interaction.Record{
		rec("a", "me", interaction.TypeView, testNow),
		rec("b", "me", interaction.TypeView, testNow),
		rec("c", "me", interaction.TypeView, testNow),
		rec("d", "me", interaction.TypeView, testNow),
		rec("a", "me", interaction.TypeLike, testNow),
		rec("b", "me", interaction.TypeSuperLike, testNow),
		rec("c", "me", interaction.TypeMessage, testNow),
		rec("d", "me", interaction.TypeFollow, testNow),
		rec("e", "me", interaction.TypePass, testNow),
	}
	sent := []interaction.Record{
		rec("me", "a", interaction.TypeLike, testNow),
		rec("me", "a", interaction.TypeMessage, testNow),
		rec("me", "x", interaction.TypeSuperLike, testNow),
		rec("me", "y", interaction.TypeFollow, testNow),
	}

	r := NewAggregator(nil).Aggregate(&profile.Profile{ID: "me"}, received, sent, 30, testNow)

	want := Stats{
		ProfileViews:       4,
		LikesReceived:      1,
		LikesSent:          1,
		SuperLikesReceived: 1,
		SuperLikesSent:     1,
		MessagesReceived:   1,
		MessagesSent:       1,
		FollowsReceived:    1,
		FollowsSent:        1,
	}
	if r.Stats != want {
		t.Errorf("expected %+v, got %+v", want, r.Stats)
	}

	if r.ConversionRates.ViewToLike != 25 {
		t.Errorf("expected viewToLike 25, got %f", r.ConversionRates.ViewToLike)
	}
	if r.ConversionRates.MatchToMessage != 100 {
		t.Errorf("expected matchToMessage 100, got %f", r.ConversionRates.MatchToMessage)
	}

	s := r.Summary
	if s.TotalReceived != 9 || s.TotalSent != 4 || s.TotalInteractions != 13 {
		t.Errorf("unexpected totals %+v", s)
	}
	if s.UniqueContacts != 3 {
		t.Errorf("expected 3 unique contacts, got %d", s.UniqueContacts)
	}
	// min(4,30) + min(2,40) + min(3,30)
	if s.PopularityScore != 9 {
		t.Errorf("expected popularity 9, got %d", s.PopularityScore)
	}
	// min(8,60) + min(12,40)
	if s.ActivityScore != 20 {
		t.Errorf("expected activity 20, got %d", s.ActivityScore)
	}
	if s.PeriodDays != 30 {
		t.Errorf("expected period 30, got %d", s.PeriodDays)
	}
}

// TestAggregate_ZeroDenominators tests that empty histories never produce NaN or Inf.
func TestAggregate_ZeroDenominators(t *testing.T) {
	r := NewAggregator(nil).Aggregate(nil, nil, nil, 0, testNow)

	for name, v := range map[string]float64{
		"viewToLike":     r.ConversionRates.ViewToLike,
		"likeToMatch":    r.ConversionRates.LikeToMatch,
		"matchToMessage": r.ConversionRates.MatchToMessage,
	} {
		if v != 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s: expected 0, got %f", name, v)
		}
	}
	if r.Summary.PeriodDays != DefaultPeriodDays {
		t.Errorf("expected default period, got %d", r.Summary.PeriodDays)
	}
	if len(r.DailyStats) != DefaultPeriodDays {
		t.Errorf("expected %d daily buckets, got %d", DefaultPeriodDays, len(r.DailyStats))
	}
	if r.Matches.UserIDs == nil || r.InterestAnalysis == nil || r.Insights == nil {
		t.Error("expected empty slices rather than nil")
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(data), "null") {
		t.Errorf("expected no nulls in %s", data)
	}
}

func TestAggregate_DailyStats(t *testing.T) {
	today := testNow
	yesterday := testNow.AddDate(0, 0, -1)
	// 23:30 in São Paulo on the 13th is 02:30 UTC on the 14th.
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	lateLocal := time.Date(2026, time.June, 13, 23, 30, 0, 0, saoPaulo)

	sent := []interaction.Record{rec("me", "m", interaction.TypeLike, today)}
	received := []interaction.Record{
		rec("v", "me", interaction.TypeView, today),
		rec("v", "me", interaction.TypeView, today),
		rec("m", "me", interaction.TypeLike, today),
		rec("x", "me", interaction.TypeLike, yesterday),
		rec("x", "me", interaction.TypeMessage, lateLocal),
		rec("old", "me", interaction.TypeView, testNow.AddDate(0, 0, -10)),
	}

	r := NewAggregator(nil).Aggregate(&profile.Profile{ID: "me"}, received, sent, 3, testNow)

	want := []DailyStat{
		{Date: "2026-06-13"},
		{Date: "2026-06-14", Likes: 1, Messages: 1},
		{Date: "2026-06-15", Views: 2, Likes: 1, Matches: 1},
	}
	if len(r.DailyStats) != len(want) {
		t.Fatalf("expected %d buckets, got %d", len(want), len(r.DailyStats))
	}
	for i := range want {
		if r.DailyStats[i] != want[i] {
			t.Errorf("bucket %d: expected %+v, got %+v", i, want[i], r.DailyStats[i])
		}
	}
}

func TestAggregate_Demographics(t *testing.T) {
	born := func(age int) *time.Time {
		return ptr(testNow.AddDate(-age, 0, -1))
	}
	likes := []interaction.Record{
		{SourceID: "a", Type: interaction.TypeLike, SourceBirthDate: born(19), SourceGender: ptr("female")},
		{SourceID: "b", Type: interaction.TypeLike, SourceBirthDate: born(24), SourceGender: ptr("female")},
		{SourceID: "c", Type: interaction.TypeLike, SourceBirthDate: born(25), SourceGender: ptr("male")},
		{SourceID: "d", Type: interaction.TypeLike, SourceBirthDate: born(44), SourceGender: ptr("  ")},
		{SourceID: "e", Type: interaction.TypeLike, SourceBirthDate: born(60)},
		{SourceID: "f", Type: interaction.TypeLike},
		{SourceID: "g", Type: interaction.TypeView, SourceBirthDate: born(30), SourceGender: ptr("male")},
	}

	r := NewAggregator(nil).Aggregate(&profile.Profile{ID: "me"}, likes, nil, 7, testNow)

	wantAges := map[string]int{
		AgeGroup18To24: 2,
		AgeGroup25To34: 1,
		AgeGroup35To44: 1,
		AgeGroup45Plus: 1,
		NotInformed:    1,
	}
	for k, v := range wantAges {
		if r.Demographics.AgeGroups[k] != v {
			t.Errorf("age group %s: expected %d, got %d", k, v, r.Demographics.AgeGroups[k])
		}
	}
	if len(r.Demographics.AgeGroups) != len(wantAges) {
		t.Errorf("unexpected age groups %v", r.Demographics.AgeGroups)
	}

	wantGenders := map[string]int{"female": 2, "male": 1, NotInformed: 3}
	for k, v := range wantGenders {
		if r.Demographics.Genders[k] != v {
			t.Errorf("gender %s: expected %d, got %d", k, v, r.Demographics.Genders[k])
		}
	}
}

func TestAggregate_InterestAnalysis(t *testing.T) {
	viewer := &profile.Profile{ID: "me", Interests: []string{"music", "Hiking"}}

	received := []interaction.Record{
		{SourceID: "a", Type: interaction.TypeLike, SourceInterests: []string{"music", "art"}},
		{SourceID: "a", Type: interaction.TypeLike, SourceInterests: []string{"music", "art"}},
		{SourceID: "b", Type: interaction.TypeLike, SourceInterests: []string{"Music", "hiking"}},
		{SourceID: "c", Type: interaction.TypeLike, SourceInterests: []string{"art", "food"}},
		{SourceID: "d", Type: interaction.TypeView, SourceInterests: []string{"chess"}},
	}
	for i := 0; i < 12; i++ {
		received = append(received, interaction.Record{
			SourceID:        fmt.Sprintf("z%d", i),
			Type:            interaction.TypeLike,
			SourceInterests: []string{fmt.Sprintf("zz-%02d", i)},
		})
	}

	r := NewAggregator(nil).Aggregate(viewer, received, nil, 7, testNow)

	if len(r.InterestAnalysis) != TopInterests {
		t.Fatalf("expected %d interests, got %d", TopInterests, len(r.InterestAnalysis))
	}
	want := []InterestStat{
		{Interest: "art", Count: 2},
		{Interest: "music", Count: 2, Shared: true},
		{Interest: "food", Count: 1},
		{Interest: "hiking", Count: 1, Shared: true},
		{Interest: "zz-00", Count: 1},
	}
	for i := range want {
		if r.InterestAnalysis[i] != want[i] {
			t.Errorf("position %d: expected %+v, got %+v", i, want[i], r.InterestAnalysis[i])
		}
	}
	for _, s := range r.InterestAnalysis {
		if s.Interest == "chess" {
			t.Error("interests of viewers who did not like must be ignored")
		}
	}
}

func TestProfileCompleteness(t *testing.T) {
	full := &profile.Profile{
		AvatarURL: ptr("https://cdn.example.com/a.jpg"),
		Bio:       strings.Repeat("b", 25),
		Interests: []string{"music", "travel"},
		Location:  &geo.Point{Lat: -8.05, Lng: -34.9},
		BirthDate: ptr(time.Date(1995, time.March, 3, 0, 0, 0, 0, time.UTC)),
		Gender:    ptr("female"),
	}

	tests := []struct {
		name     string
		profile  *profile.Profile
		expected int
	}{
		{"all fields", full, 100},
		{"avatar only", &profile.Profile{AvatarURL: ptr("https://cdn.example.com/a.jpg")}, 17},
		{"empty", &profile.Profile{}, 0},
		{"nil", nil, 0},
		{"short bio does not count", &profile.Profile{Bio: strings.Repeat("b", 20)}, 0},
		{"text location counts", &profile.Profile{LocationText: "Recife", Gender: ptr("male")}, 33},
		{"blank avatar does not count", &profile.Profile{AvatarURL: ptr(" ")}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProfileCompleteness(tt.profile); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestDerivedScores(t *testing.T) {
	tests := []struct {
		name     string
		got      int
		expected int
	}{
		{"popularity zero", PopularityScore(0, 0, 0), 0},
		{"popularity capped", PopularityScore(100, 100, 100), 100},
		{"popularity mixed", PopularityScore(10, 5, 2), 26},
		{"activity zero", ActivityScore(0, 0), 0},
		{"activity capped", ActivityScore(50, 20), 100},
		{"activity mixed", ActivityScore(12, 3), 36},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, tt.got)
			}
		})
	}
}

func TestAgeGroup(t *testing.T) {
	tests := []struct {
		age      int
		expected string
	}{
		{18, AgeGroup18To24},
		{24, AgeGroup18To24},
		{25, AgeGroup25To34},
		{34, AgeGroup25To34},
		{35, AgeGroup35To44},
		{44, AgeGroup35To44},
		{45, AgeGroup45Plus},
		{80, AgeGroup45Plus},
	}

	for _, tt := range tests {
		if got := AgeGroup(tt.age); got != tt.expected {
			t.Errorf("AgeGroup(%d) = %q, expected %q", tt.age, got, tt.expected)
		}
	}
}

func TestReport_JSON(t *testing.T) {
	rules, err := DefaultRuleSet()
	if err != nil {
		t.Fatalf("default rules: %v", err)
	}
	r := NewAggregator(rules).Aggregate(&profile.Profile{ID: "me"}, nil, nil, 7, testNow)

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"stats", "matches", "conversionRates", "dailyStats", "demographics", "interestAnalysis", "summary", "insights"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("expected key %q", key)
		}
	}

	summary := decoded["summary"].(map[string]any)
	for _, key := range []string{"profileCompleteness", "popularityScore", "activityScore", "uniqueContacts", "periodDays"} {
		if _, ok := summary[key]; !ok {
			t.Errorf("expected summary key %q", key)
		}
	}
}
