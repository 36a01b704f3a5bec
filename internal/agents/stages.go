package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"cardforge/internal/domain"
)

// Stage declares one step of the generation pipeline: which upstream results
// it needs, whether the run can succeed without it, whether it may be re-run
// in isolation against a complete job, and how its prompt is built.
type Stage struct {
	Name       string
	DependsOn  []string
	Required   bool
	Rerunnable bool
	WantJSON   bool
	Prompt     func(in PromptInput) (string, error)
}

// PromptInput is everything a prompt builder may draw on. Aggregate is a
// read-only snapshot; builders must not mutate it.
type PromptInput struct {
	Spec       domain.GameSpec
	Aggregate  domain.AggregateState
	Feedback   *domain.BalanceAnalysis
	Round      int
	Regenerate bool
}

var pipeline = []Stage{
	{
		Name:       domain.StageGameDesign,
		Required:   true,
		Rerunnable: false, // regenerating the design in isolation would orphan every downstream stage; use card-level regeneration instead
		WantJSON:   true,
		Prompt:     designPrompt,
	},
	{
		Name:       domain.StageBalance,
		DependsOn:  []string{domain.StageGameDesign},
		Required:   true,
		Rerunnable: true,
		WantJSON:   true,
		Prompt:     balancePrompt,
	},
	{
		Name:       domain.StageRulebook,
		DependsOn:  []string{domain.StageGameDesign, domain.StageBalance},
		Required:   true,
		Rerunnable: true,
		Prompt:     rulebookPrompt,
	},
	{
		Name:       domain.StageArtGuide,
		DependsOn:  []string{domain.StageGameDesign, domain.StageBalance},
		Required:   true,
		Rerunnable: true,
		Prompt:     artGuidePrompt,
	},
	{
		Name:       domain.StageCardArtwork,
		DependsOn:  []string{domain.StageGameDesign, domain.StageArtGuide},
		Required:   true,
		Rerunnable: true,
		WantJSON:   true,
		Prompt:     artworkPrompt,
	},
	{
		Name: domain.StageQAReport,
		DependsOn: []string{
			domain.StageGameDesign, domain.StageBalance, domain.StageRulebook,
			domain.StageArtGuide, domain.StageCardArtwork,
		},
		Required:   true,
		Rerunnable: true,
		WantJSON:   true,
		Prompt:     qaPrompt,
	},
}

// Stages returns the pipeline stages in declaration order.
func Stages() []Stage {
	return pipeline
}

// StageByName looks a stage up by its aggregate key.
func StageByName(name string) (Stage, bool) {
	for _, s := range pipeline {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// RequiredStages lists the stage names a job must merge before it may
// complete.
func RequiredStages() []string {
	var out []string
	for _, s := range pipeline {
		if s.Required {
			out = append(out, s.Name)
		}
	}
	return out
}

func designPrompt(in PromptInput) (string, error) {
	sb := &strings.Builder{}
	sb.WriteString("You are an expert board game designer. Design a complete card game from the parameters below.\n")
	if in.Feedback != nil && len(in.Feedback.SuggestedCardChanges) > 0 {
		sb.WriteString("\nThis is a revision. Address the following balance feedback while preserving the core theme and vision:\n")
		for _, change := range in.Feedback.SuggestedCardChanges {
			fmt.Fprintf(sb, "- Card %q: %s (Reason: %s)\n", change.CardName, change.SuggestedChange, change.Reasoning)
		}
		if prior, err := in.Aggregate.Design(); err == nil {
			fmt.Fprintf(sb, "\nPrior design to revise:\n%s\n", describeDesign(prior))
		}
	}
	fmt.Fprintf(sb, "\nGame Parameters:\n")
	fmt.Fprintf(sb, "- Theme: %s\n", in.Spec.Theme)
	fmt.Fprintf(sb, "- Game Type: %s\n", in.Spec.GameType)
	fmt.Fprintf(sb, "- Player Count: %d-%d players\n", in.Spec.PlayerCount[0], in.Spec.PlayerCount[1])
	fmt.Fprintf(sb, "- Play Time: %s\n", in.Spec.PlayTime)
	fmt.Fprintf(sb, "- Complexity: %s\n", in.Spec.Complexity)
	fmt.Fprintf(sb, "- Play Style: %s\n", in.Spec.PlayStyle)
	fmt.Fprintf(sb, "- Art Style: %s\n", in.Spec.ArtStyle)
	fmt.Fprintf(sb, "- Additional Notes: %s\n", in.Spec.AdditionalNotes)
	sb.WriteString("\nRespond strictly with JSON matching this schema: ")
	sb.WriteString(`{"game_name":string,"concept":string,"core_mechanics":string[],"win_condition":string,"game_flow":string,"starter_cards":[{"name":string,"type":string,"cost":string,"text":string,"flavor_text":string}]}`)
	sb.WriteString(". Use Markdown inside string fields where lists or emphasis help.")
	return sb.String(), nil
}

func balancePrompt(in PromptInput) (string, error) {
	design, err := in.Aggregate.Design()
	if err != nil {
		return "", fmt.Errorf("%w: balance review requires a game design: %v", domain.ErrValidation, err)
	}
	sb := &strings.Builder{}
	sb.WriteString("You are a quantitative game designer specializing in balance. Analyze the design below and suggest initial balance adjustments.\n\n")
	sb.WriteString(describeDesign(design))
	sb.WriteString("\nReview the card costs and effects for outliers, assess whether the core loop has a clear path to victory, and propose specific, actionable card changes with reasoning.\n")
	sb.WriteString("Respond strictly with JSON: ")
	sb.WriteString(`{"balance_analysis":string,"suggested_card_changes":[{"card_name":string,"suggested_change":string,"reasoning":string}]}`)
	sb.WriteString(". If the set is balanced, suggested_card_changes must be an empty array.")
	if in.Regenerate {
		sb.WriteString(" This is a targeted regeneration of this stage alone; stay coherent with all previously accepted materials.")
	}
	return sb.String(), nil
}

func rulebookPrompt(in PromptInput) (string, error) {
	design, err := in.Aggregate.Design()
	if err != nil {
		return "", fmt.Errorf("%w: rulebook requires a game design: %v", domain.ErrValidation, err)
	}
	sb := &strings.Builder{}
	sb.WriteString("You are a professional rulebook writer for board games. Write a clear, comprehensive rulebook for the game below.\n\n")
	sb.WriteString(describeDesign(design))
	fmt.Fprintf(sb, "\nPlayer count: %d-%d.\n", in.Spec.PlayerCount[0], in.Spec.PlayerCount[1])
	sb.WriteString("\nStructure: Introduction, Components, Setup, Goal of the Game, Gameplay, Card Explanations, End of Game. ")
	sb.WriteString("Write in a friendly, easy-to-understand tone. Respond with the full rulebook as Markdown text only, no JSON wrapper.")
	if in.Regenerate {
		sb.WriteString(" This is a targeted regeneration of this stage alone; stay coherent with all previously accepted materials.")
	}
	return sb.String(), nil
}

func artGuidePrompt(in PromptInput) (string, error) {
	design, err := in.Aggregate.Design()
	if err != nil {
		return "", fmt.Errorf("%w: art direction requires a game design: %v", domain.ErrValidation, err)
	}
	sb := &strings.Builder{}
	sb.WriteString("You are an expert art director for board games. Create a concise art style guide for the game below.\n\n")
	fmt.Fprintf(sb, "Game Name: %s\nConcept: %s\nRequested Art Style: %s\n", design.GameName, design.Concept, in.Spec.ArtStyle)
	sb.WriteString("\nStructure: Overall Vision, Color Palette (5-7 colors with hex codes), Typography, Iconography, Card Layout, Inspirational Keywords. ")
	sb.WriteString("Respond with the full guide as Markdown text only, no JSON wrapper.")
	if in.Regenerate {
		sb.WriteString(" This is a targeted regeneration of this stage alone; stay coherent with all previously accepted materials.")
	}
	return sb.String(), nil
}

func artworkPrompt(in PromptInput) (string, error) {
	design, err := in.Aggregate.Design()
	if err != nil {
		return "", fmt.Errorf("%w: artwork generation requires a game design: %v", domain.ErrValidation, err)
	}
	guide := aggregateText(in.Aggregate, domain.StageArtGuide)
	if guide == "" {
		return "", fmt.Errorf("%w: artwork generation requires the art style guide", domain.ErrValidation)
	}
	sb := &strings.Builder{}
	sb.WriteString("You are a creative assistant generating art prompts for a card game. Using the art style guide, write one detailed visual paragraph per card, and pick fonts and iconography consistent with the guide.\n\n")
	fmt.Fprintf(sb, "Art Style Guide:\n%s\n\nCards:\n", guide)
	for _, card := range design.StarterCards {
		fmt.Fprintf(sb, "- %s (%s): %s", card.Name, card.Type, card.Text)
		if card.FlavorText != "" {
			fmt.Fprintf(sb, " — %s", card.FlavorText)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nRespond strictly with JSON: ")
	sb.WriteString(`{"title_font":string,"body_font":string,"iconography":string[],"cards":{"<card name>":"<artwork description>"}}`)
	sb.WriteString(". The cards object must contain exactly one entry per card listed above.")
	if in.Regenerate {
		sb.WriteString(" This is a targeted regeneration of this stage alone; stay coherent with all previously accepted materials.")
	}
	return sb.String(), nil
}

func qaPrompt(in PromptInput) (string, error) {
	for _, stage := range []string{domain.StageGameDesign, domain.StageBalance, domain.StageRulebook, domain.StageArtGuide, domain.StageCardArtwork} {
		if !in.Aggregate.Has(stage) {
			return "", fmt.Errorf("%w: qa review requires %s", domain.ErrValidation, stage)
		}
	}
	design, err := in.Aggregate.Design()
	if err != nil {
		return "", fmt.Errorf("%w: qa review requires a game design: %v", domain.ErrValidation, err)
	}
	sb := &strings.Builder{}
	sb.WriteString("You are a QA specialist for a game design studio. Review the complete set of generated materials for coherence, consistency, clarity and completeness.\n\n")
	sb.WriteString(describeDesign(design))
	fmt.Fprintf(sb, "\nRulebook:\n%s\n", aggregateText(in.Aggregate, domain.StageRulebook))
	fmt.Fprintf(sb, "\nArt Style Guide:\n%s\n", aggregateText(in.Aggregate, domain.StageArtGuide))
	if balance, err := in.Aggregate.Balance(); err == nil {
		fmt.Fprintf(sb, "\nBalance Analysis:\n%s\n", balance.Analysis)
	}
	if artwork, err := in.Aggregate.Artwork(); err == nil {
		sb.WriteString("\nCard Art Prompts:\n")
		for name, desc := range artwork.Cards {
			fmt.Fprintf(sb, "- %s: %s\n", name, desc)
		}
	}
	sb.WriteString("\nRespond strictly with JSON: ")
	sb.WriteString(`{"qa_summary":string,"issues_found":[{"issue":string,"location":string,"suggestion":string}]}`)
	sb.WriteString(". If no issues are found, issues_found must be an empty array.")
	if in.Regenerate {
		sb.WriteString(" This is a targeted regeneration of this stage alone; stay coherent with all previously accepted materials.")
	}
	return sb.String(), nil
}

func describeDesign(d *domain.GameDesign) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Game Design Document:\n")
	fmt.Fprintf(sb, "- Game Name: %s\n", d.GameName)
	fmt.Fprintf(sb, "- Concept: %s\n", d.Concept)
	fmt.Fprintf(sb, "- Core Mechanics: %s\n", strings.Join(d.CoreMechanics, ", "))
	fmt.Fprintf(sb, "- Win Condition: %s\n", d.WinCondition)
	fmt.Fprintf(sb, "- Game Flow: %s\n", d.GameFlow)
	sb.WriteString("- Starter Cards:\n")
	for _, card := range d.StarterCards {
		fmt.Fprintf(sb, "  - **%s** (%s, Cost: %s): %s\n", card.Name, card.Type, card.Cost, card.Text)
	}
	return sb.String()
}

func aggregateText(agg domain.AggregateState, stage string) string {
	raw, ok := agg[stage]
	if !ok {
		return ""
	}
	var doc struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	return doc.Text
}
