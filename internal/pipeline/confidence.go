package pipeline

import "github.com/medicita/medicita-platform/internal/nlu"

const (
	confidenceBase          = 0.5
	confidenceKnownIntent   = 0.3
	confidencePerEntity     = 0.1
	confidenceEntityCeiling = 0.2
)

// ComputeConfidence scores how confident the pipeline is in its reading of
// the message: a fixed base, a bonus for a recognized intent, and a bonus
// per extracted entity field up to a cap. The result is always in [0, 1].
func ComputeConfidence(intent nlu.Intent, entities nlu.Entities) float64 {
	score := confidenceBase
	if intent != nlu.IntentUnknown {
		score += confidenceKnownIntent
	}

	entityBonus := float64(entities.FieldCount()) * confidencePerEntity
	if entityBonus > confidenceEntityCeiling {
		entityBonus = confidenceEntityCeiling
	}
	score += entityBonus

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
