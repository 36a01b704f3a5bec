package genai

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cardforge/internal/domain"
)

// The synthetic renderer stands in for Gemini when no API key is configured.
// Outputs are deterministic for a given job and stage, and always conform to
// the stage schemas, so the adapter, orchestrator and stores behave exactly
// as they do against the real model. The first balance pass flags the
// deliberately under-costed opener card; the revision pass reports clean,
// which walks the feedback loop through one corrective round.

var titleCaser = cases.Title(language.English)

func (c *Client) synthetic(req Request) (string, error) {
	c.logger.Debug().
		Str("stage", req.Stage).
		Str("request_id", req.RequestID).
		Int("round", req.Round).
		Msg("genai: rendering synthetic stage output")

	switch req.Stage {
	case domain.StageGameDesign:
		return marshalSynthetic(syntheticDesign(req))
	case domain.StageBalance:
		return marshalSynthetic(syntheticBalance(req))
	case domain.StageRulebook:
		return syntheticRulebook(req), nil
	case domain.StageArtGuide:
		return syntheticArtGuide(req), nil
	case domain.StageCardArtwork:
		return marshalSynthetic(syntheticArtwork(req))
	case domain.StageQAReport:
		return marshalSynthetic(domain.QAReport{
			QASummary:   "All generated materials are coherent with the design document. Rulebook terminology matches the starter cards and the art direction follows the requested style.",
			IssuesFound: []domain.QAIssue{},
		})
	case TaskCardDesign:
		return marshalSynthetic(syntheticCard(req.TargetCard, req.Theme, req.Round))
	case TaskCardArt:
		return marshalSynthetic(map[string]string{
			"artwork_description": cardArtworkDescription(req.TargetCard, req.ArtStyle),
		})
	default:
		return "", fmt.Errorf("synthetic: unknown stage %q", req.Stage)
	}
}

func syntheticDesign(req Request) domain.GameDesign {
	theme := req.Theme
	if theme == "" {
		theme = "uncharted realms"
	}
	words := themeWords(theme)
	name := fmt.Sprintf("%s: %s", titleCaser.String(words[0]), titleCaser.String(words[len(words)-1])+" Ascendant")

	opener := domain.Card{
		Name: titleCaser.String(words[0]) + " Vanguard",
		Type: "Creature",
		Cost: "1 Energy",
		Text: "Gain 2 Energy and draw a card whenever this attacks.",
	}
	if req.Round > 0 {
		// Revised design applies the balance suggestion.
		opener.Cost = "3 Energy"
		opener.Text = "Gain 1 Energy whenever this attacks."
	}

	return domain.GameDesign{
		GameName: name,
		Concept: fmt.Sprintf(
			"A card game set in %s. Players race to claim %s sites while managing a shared pool of dwindling resources, trading tempo now for engine power later.",
			theme, titleCaser.String(words[0])),
		CoreMechanics: []string{"Deck Building", "Hand Management", "Engine Building"},
		WinCondition:  fmt.Sprintf("The first player to control three %s sites wins immediately.", titleCaser.String(words[0])),
		GameFlow:      "1. **Draw** two cards.\n2. **Play** any number of cards, paying their costs.\n3. **Attack** or develop.\n4. **Discard** down to seven cards.",
		StarterCards: []domain.Card{
			opener,
			{
				Name:       titleCaser.String(pickWord(words, 1)) + " Relay",
				Type:       "Action",
				Cost:       "2 Energy",
				Text:       "Draw two cards, then discard one.",
				FlavorText: "Signals cross the void faster than regret.",
			},
			{
				Name: titleCaser.String(pickWord(words, 2)) + " Harvest",
				Type: "Resource",
				Cost: "2 Energy",
				Text: "Gain 3 Energy at the start of your next turn.",
			},
		},
	}
}

func syntheticBalance(req Request) domain.BalanceAnalysis {
	words := themeWords(req.Theme)
	flagged := titleCaser.String(words[0]) + " Vanguard"
	if req.Round > 0 {
		return domain.BalanceAnalysis{
			Analysis:             "The revised costs bring the opener in line with the rest of the starter set. The economy curve now peaks at turn four, which fits the stated play time.",
			SuggestedCardChanges: []domain.CardChange{},
		}
	}
	return domain.BalanceAnalysis{
		Analysis: fmt.Sprintf("The starter set is close to parity, with one outlier: **%s** generates more value per Energy than any other card and snowballs unanswered.", flagged),
		SuggestedCardChanges: []domain.CardChange{{
			CardName:        flagged,
			SuggestedChange: "Increase cost to 3 Energy and reduce the attack trigger to 1 Energy.",
			Reasoning:       "At 1 Energy the card pays for itself the turn it is played, which invalidates the resource race.",
		}},
	}
}

func syntheticRulebook(req Request) string {
	theme := req.Theme
	if theme == "" {
		theme = "the game world"
	}
	return fmt.Sprintf(`# Rulebook

## Introduction
Welcome to a game of %s. Outmaneuver your rivals and claim victory.

## Components
- 60 cards (starter decks and shared market)
- Energy tokens

## Setup
Each player shuffles a starter deck and draws five cards. Place the market row face up.

## Goal of the Game
Control three sites before any other player.

## Gameplay
On your turn: draw two cards, play cards by paying their Energy cost, then attack or develop. Discard down to seven cards at the end of your turn.

## Card Explanations
**Creature** cards stay in play and can attack. **Action** cards resolve immediately. **Resource** cards produce Energy.

## End of Game
The game ends the moment a player controls three sites; that player wins.`, theme)
}

func syntheticArtGuide(req Request) string {
	style := req.ArtStyle
	if style == "" {
		style = "painterly science fantasy"
	}
	return fmt.Sprintf(`# Art Style Guide

## Overall Vision
Artwork should feel %s: vast, luminous and slightly melancholic.

## Color Palette
#0B1D3A, #1F4068, #4F9DDE, #F2C14E, #E84855

## Typography
Titles in a geometric display face, body text in a humanist sans-serif.

## Iconography
Clean line icons with a single accent color per resource.

## Card Layout
Illustration-focused with a lower third reserved for rules text.

## Inspirational Keywords
Luminous, Vast, Weathered, Drifting, Resolute`, style)
}

func syntheticArtwork(req Request) domain.CardArtwork {
	cards := make(map[string]string, len(req.CardNames))
	for _, name := range req.CardNames {
		cards[name] = cardArtworkDescription(name, req.ArtStyle)
	}
	fonts := [][2]string{{"Orbitron", "Inter"}, {"Cinzel", "Source Sans Pro"}, {"Rajdhani", "Lato"}}
	pick := fonts[deterministicSeed(req.RequestID, req.Theme)%uint64(len(fonts))]
	return domain.CardArtwork{
		TitleFont:   pick[0],
		BodyFont:    pick[1],
		Iconography: []string{"energy-bolt", "site-hex", "draw-arrow", "attack-claw"},
		Cards:       cards,
	}
}

func syntheticCard(name, theme string, round int) domain.Card {
	cost := "2 Energy"
	if round > 0 {
		cost = "3 Energy"
	}
	return domain.Card{
		Name:       name,
		Type:       "Creature",
		Cost:       cost,
		Text:       "When this enters play, scout the top card of any deck.",
		FlavorText: fmt.Sprintf("Born of %s, loyal to none.", strings.TrimSpace(theme)),
	}
}

func cardArtworkDescription(name, style string) string {
	if style == "" {
		style = "painterly science fantasy"
	}
	return fmt.Sprintf(
		"A %s rendering of %s dominating the frame, lit by a cold rim light against a deep gradient background. Composition favors a low angle with drifting particulate haze, echoing the palette of the style guide.",
		style, name)
}

func themeWords(theme string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(theme)))
	if len(fields) == 0 {
		return []string{"drift"}
	}
	return fields
}

func pickWord(words []string, i int) string {
	return words[i%len(words)]
}

func deterministicSeed(parts ...string) uint64 {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return binary.BigEndian.Uint64(h[:8])
}

func marshalSynthetic(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("synthetic: marshal: %w", err)
	}
	return string(b), nil
}
