package domain

// Stage names key every StageResult in the aggregate. The serialized shape of
// the aggregate is a JSON object with exactly these keys once a job completes.
const (
	StageGameDesign  = "game_design"
	StageBalance     = "balance_analysis"
	StageRulebook    = "rulebook"
	StageArtGuide    = "art_style_guide"
	StageCardArtwork = "card_artwork"
	StageQAReport    = "qa_report"
)

// Card is a single playable card inside a design. Cards are identified by
// name within a job.
type Card struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Cost       string `json:"cost"`
	Text       string `json:"text"`
	FlavorText string `json:"flavor_text,omitempty"`
}

// GameDesign is the game_design stage output.
type GameDesign struct {
	GameName      string   `json:"game_name"`
	Concept       string   `json:"concept"`
	CoreMechanics []string `json:"core_mechanics"`
	WinCondition  string   `json:"win_condition"`
	GameFlow      string   `json:"game_flow"`
	StarterCards  []Card   `json:"starter_cards"`
}

// CardIndex returns the position of the named card in StarterCards, or -1.
func (d *GameDesign) CardIndex(name string) int {
	for i, c := range d.StarterCards {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// CardChange is one balance-suggested adjustment to a named card.
type CardChange struct {
	CardName        string `json:"card_name"`
	SuggestedChange string `json:"suggested_change"`
	Reasoning       string `json:"reasoning"`
}

// BalanceAnalysis is the balance_analysis stage output.
type BalanceAnalysis struct {
	Analysis             string       `json:"balance_analysis"`
	SuggestedCardChanges []CardChange `json:"suggested_card_changes"`
}

// Rulebook is the rulebook stage output: a markdown document.
type Rulebook struct {
	Text string `json:"text"`
}

// ArtStyleGuide is the art_style_guide stage output: a markdown document.
type ArtStyleGuide struct {
	Text string `json:"text"`
}

// CardArtwork is the card_artwork stage output: typography, iconography and a
// per-card artwork description keyed by card name.
type CardArtwork struct {
	TitleFont   string            `json:"title_font"`
	BodyFont    string            `json:"body_font"`
	Iconography []string          `json:"iconography"`
	Cards       map[string]string `json:"cards"`
}

// QAIssue is a single finding from the QA review.
type QAIssue struct {
	Issue      string `json:"issue"`
	Location   string `json:"location"`
	Suggestion string `json:"suggestion"`
}

// QAReport is the qa_report stage output.
type QAReport struct {
	QASummary   string    `json:"qa_summary"`
	IssuesFound []QAIssue `json:"issues_found"`
}
