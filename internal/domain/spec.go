package domain

import "fmt"

// Complexity enumerates supported rules-weight levels.
type Complexity string

const (
	ComplexityLight  Complexity = "light"
	ComplexityMedium Complexity = "medium"
	ComplexityHeavy  Complexity = "heavy"
)

// PlayStyle enumerates how players relate to each other.
type PlayStyle string

const (
	PlayStyleCooperative PlayStyle = "cooperative"
	PlayStyleCompetitive PlayStyle = "competitive"
)

// GameSpec is the immutable input captured at job submission. It is never
// mutated after Validate succeeds.
type GameSpec struct {
	Theme           string     `json:"game_theme"`
	GameType        string     `json:"game_type"`
	PlayerCount     [2]int     `json:"player_count"`
	PlayTime        string     `json:"play_time"`
	Complexity      Complexity `json:"complexity"`
	PlayStyle       PlayStyle  `json:"play_style"`
	ArtStyle        string     `json:"art_style"`
	AdditionalNotes string     `json:"additional_notes"`
}

// Validate checks the submission and applies defaults where the field is
// optional. Returns ErrValidation-wrapped errors so handlers can map to 400.
func (s *GameSpec) Validate() error {
	if s.Theme == "" {
		return fmt.Errorf("%w: game_theme is required", ErrValidation)
	}
	if s.GameType == "" {
		return fmt.Errorf("%w: game_type is required", ErrValidation)
	}
	if s.PlayerCount[0] <= 0 && s.PlayerCount[1] <= 0 {
		s.PlayerCount = [2]int{2, 4}
	}
	if s.PlayerCount[0] <= 0 {
		s.PlayerCount[0] = 1
	}
	if s.PlayerCount[1] < s.PlayerCount[0] {
		return fmt.Errorf("%w: player_count max %d below min %d", ErrValidation, s.PlayerCount[1], s.PlayerCount[0])
	}
	switch s.Complexity {
	case "":
		s.Complexity = ComplexityMedium
	case ComplexityLight, ComplexityMedium, ComplexityHeavy:
	default:
		return fmt.Errorf("%w: unknown complexity %q", ErrValidation, s.Complexity)
	}
	switch s.PlayStyle {
	case "":
		s.PlayStyle = PlayStyleCompetitive
	case PlayStyleCooperative, PlayStyleCompetitive:
	default:
		return fmt.Errorf("%w: unknown play_style %q", ErrValidation, s.PlayStyle)
	}
	if s.PlayTime == "" {
		s.PlayTime = "30-60 minutes"
	}
	return nil
}
