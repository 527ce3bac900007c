package core

import (
	"testing"
	"time"

	"github.com/rowanvale/forest/pkg/models"
	"pgregory.net/rapid"
)

// =============================================================================
// Property: Serendipity Boost Bounds
// =============================================================================

// Feature: scoring, Property: Serendipity Boost Bounds
// *For any* task age and window, the serendipity contribution SHALL stay
// within [0, boost] and decay monotonically with age.
func TestProperty_SerendipityBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		sctx := testScoringContext(now)

		ageMinutes := rapid.IntRange(-120, 60*48).Draw(rt, "ageMinutes")
		createdAt := now.Add(-time.Duration(ageMinutes) * time.Minute)

		task := &models.Task{
			ID: "t", Title: "t", Depth: 2, Difficulty: 3,
			Duration: "30 minutes", Priority: 100,
			SerendipityCreatedAt: createdAt.Format(time.RFC3339),
		}
		plain := *task
		plain.SerendipityCreatedAt = ""

		boost := Score(task, 3, "1 hour", sctx) - Score(&plain, 3, "1 hour", sctx)
		if boost < 0 || boost > sctx.SerendipityBoost {
			rt.Errorf("boost %d outside [0, %d] at age %dm", boost, sctx.SerendipityBoost, ageMinutes)
		}
	})
}
