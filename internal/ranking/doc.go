// Package ranking provides the feature scorers, score aggregation and
// author diversity selection behind profile recommendations and the
// "For You" timeline.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
//	if err != nil {
//		slog.Warn("using default weights", "error", err)
//	}
//
//	// Build a profile breakdown
//	b := ranking.NewBreakdown(ranking.ProfileLimits(weights))
//	points, reason := ranking.InterestScore(viewer.Interests, candidate.Interests, weights.Profile.InterestMax)
//	b = b.With(ranking.BucketInterests, points, reason)
//	score := b.RoundedTotal()
//
//	// Cap posts per author in a ranked page
//	page := ranking.Diversify(posts, func(p post.Post) string { return p.AuthorID }, 20, ranking.AuthorCap)
//
// Scorers:
//
// Every scorer is a pure function returning a bounded contribution and,
// where applicable, a short human-readable reason. Scorers never fail;
// missing inputs contribute zero.
//
// Calibration:
//
// Point values live in Weights and can be tuned at deploy time with a JSON
// calibration file loaded at startup. The file is decoded over the
// defaults, so omitted keys keep their default while an explicit 0 turns a
// factor off. The per-author cap of the timeline is not a weight: AuthorCap
// is always 2 and a calibration file cannot change it. See
// configs/ranking.calibration.json.
package ranking
