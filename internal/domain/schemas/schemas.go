// Package schemas declares the JSON Schema for every stage output. The agent
// adapter validates each model response against the stage's schema before the
// result is allowed anywhere near the aggregate; anything non-conforming is
// rejected, never coerced.
package schemas

import "cardforge/internal/domain"

// CardSchema describes a single card record. Reused by the card-level
// regeneration path, which redesigns one card in isolation.
var CardSchema = map[string]any{
	"type":     "object",
	"required": []any{"name", "type", "cost", "text"},
	"properties": map[string]any{
		"name":        map[string]any{"type": "string", "minLength": 1},
		"type":        map[string]any{"type": "string", "minLength": 1},
		"cost":        map[string]any{"type": "string"},
		"text":        map[string]any{"type": "string", "minLength": 1},
		"flavor_text": map[string]any{"type": "string"},
	},
}

// CardArtworkEntrySchema describes the artwork description generated for a
// single card.
var CardArtworkEntrySchema = map[string]any{
	"type":     "object",
	"required": []any{"artwork_description"},
	"properties": map[string]any{
		"artwork_description": map[string]any{"type": "string", "minLength": 1},
	},
}

var gameDesignSchema = map[string]any{
	"type": "object",
	"required": []any{
		"game_name", "concept", "core_mechanics", "win_condition", "game_flow", "starter_cards",
	},
	"properties": map[string]any{
		"game_name":      map[string]any{"type": "string", "minLength": 1},
		"concept":        map[string]any{"type": "string", "minLength": 1},
		"core_mechanics": map[string]any{"type": "array", "minItems": 1, "items": map[string]any{"type": "string"}},
		"win_condition":  map[string]any{"type": "string", "minLength": 1},
		"game_flow":      map[string]any{"type": "string", "minLength": 1},
		"starter_cards":  map[string]any{"type": "array", "minItems": 1, "items": CardSchema},
	},
}

var balanceSchema = map[string]any{
	"type":     "object",
	"required": []any{"balance_analysis", "suggested_card_changes"},
	"properties": map[string]any{
		"balance_analysis": map[string]any{"type": "string", "minLength": 1},
		"suggested_card_changes": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"card_name", "suggested_change", "reasoning"},
				"properties": map[string]any{
					"card_name":        map[string]any{"type": "string", "minLength": 1},
					"suggested_change": map[string]any{"type": "string", "minLength": 1},
					"reasoning":        map[string]any{"type": "string"},
				},
			},
		},
	},
}

var markdownDocSchema = map[string]any{
	"type":     "object",
	"required": []any{"text"},
	"properties": map[string]any{
		"text": map[string]any{"type": "string", "minLength": 1},
	},
}

var cardArtworkSchema = map[string]any{
	"type":     "object",
	"required": []any{"title_font", "body_font", "iconography", "cards"},
	"properties": map[string]any{
		"title_font":  map[string]any{"type": "string", "minLength": 1},
		"body_font":   map[string]any{"type": "string", "minLength": 1},
		"iconography": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"cards": map[string]any{
			"type":                 "object",
			"minProperties":        1,
			"additionalProperties": map[string]any{"type": "string", "minLength": 1},
		},
	},
}

var qaReportSchema = map[string]any{
	"type":     "object",
	"required": []any{"qa_summary", "issues_found"},
	"properties": map[string]any{
		"qa_summary": map[string]any{"type": "string", "minLength": 1},
		"issues_found": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"issue", "location", "suggestion"},
				"properties": map[string]any{
					"issue":      map[string]any{"type": "string"},
					"location":   map[string]any{"type": "string"},
					"suggestion": map[string]any{"type": "string"},
				},
			},
		},
	},
}

var byStage = map[string]map[string]any{
	domain.StageGameDesign:  gameDesignSchema,
	domain.StageBalance:     balanceSchema,
	domain.StageRulebook:    markdownDocSchema,
	domain.StageArtGuide:    markdownDocSchema,
	domain.StageCardArtwork: cardArtworkSchema,
	domain.StageQAReport:    qaReportSchema,
}

// ForStage returns the output schema for a pipeline stage.
func ForStage(stage string) (map[string]any, bool) {
	s, ok := byStage[stage]
	return s, ok
}
