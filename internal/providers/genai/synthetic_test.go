package genai

import (
	"context"
	"encoding/json"
	"testing"

	"cardforge/internal/domain"
)

func keylessClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if !client.Keyless() {
		t.Fatal("client without an API key must report keyless")
	}
	return client
}

func TestSyntheticIsDeterministic(t *testing.T) {
	a := keylessClient(t)
	b := keylessClient(t)
	req := Request{Stage: domain.StageGameDesign, RequestID: "job-1", Theme: "sunken empires"}

	first, err := a.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	second, err := b.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if first != second {
		t.Fatal("identical requests must produce identical synthetic output")
	}
}

func TestSyntheticDesignShape(t *testing.T) {
	client := keylessClient(t)
	raw, err := client.Generate(context.Background(), Request{
		Stage: domain.StageGameDesign, RequestID: "job-1", Theme: "sunken empires",
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	var design domain.GameDesign
	if err := json.Unmarshal([]byte(raw), &design); err != nil {
		t.Fatalf("synthetic design is not valid JSON: %v", err)
	}
	if design.GameName == "" || len(design.StarterCards) < 3 {
		t.Fatalf("synthetic design incomplete: %+v", design)
	}
	if design.StarterCards[0].Cost != "1 Energy" {
		t.Fatalf("round 0 opener should be under-costed, got %q", design.StarterCards[0].Cost)
	}

	revised, err := client.Generate(context.Background(), Request{
		Stage: domain.StageGameDesign, RequestID: "job-1", Theme: "sunken empires", Round: 1,
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	var revisedDesign domain.GameDesign
	if err := json.Unmarshal([]byte(revised), &revisedDesign); err != nil {
		t.Fatalf("revised design is not valid JSON: %v", err)
	}
	if revisedDesign.StarterCards[0].Cost != "3 Energy" {
		t.Fatalf("revision should apply the balance suggestion, got %q", revisedDesign.StarterCards[0].Cost)
	}
}

func TestSyntheticBalanceConverges(t *testing.T) {
	client := keylessClient(t)

	first, err := client.Generate(context.Background(), Request{
		Stage: domain.StageBalance, RequestID: "job-1", Theme: "sunken empires",
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	var initial domain.BalanceAnalysis
	if err := json.Unmarshal([]byte(first), &initial); err != nil {
		t.Fatalf("balance output invalid: %v", err)
	}
	if len(initial.SuggestedCardChanges) != 1 {
		t.Fatalf("first pass should flag exactly one card, got %d", len(initial.SuggestedCardChanges))
	}

	second, err := client.Generate(context.Background(), Request{
		Stage: domain.StageBalance, RequestID: "job-1", Theme: "sunken empires", Round: 1,
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	var revised domain.BalanceAnalysis
	if err := json.Unmarshal([]byte(second), &revised); err != nil {
		t.Fatalf("balance output invalid: %v", err)
	}
	if len(revised.SuggestedCardChanges) != 0 {
		t.Fatal("revision pass should report clean")
	}
}

func TestSyntheticArtworkCoversAllCards(t *testing.T) {
	client := keylessClient(t)
	names := []string{"Pearl Diver", "Tide Surge", "Kelp Harvest"}
	raw, err := client.Generate(context.Background(), Request{
		Stage: domain.StageCardArtwork, RequestID: "job-1", Theme: "sunken empires", CardNames: names,
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	var artwork domain.CardArtwork
	if err := json.Unmarshal([]byte(raw), &artwork); err != nil {
		t.Fatalf("artwork output invalid: %v", err)
	}
	for _, name := range names {
		if artwork.Cards[name] == "" {
			t.Fatalf("missing artwork description for %s", name)
		}
	}
	if artwork.TitleFont == "" || artwork.BodyFont == "" {
		t.Fatal("fonts must be chosen")
	}
}

func TestSyntheticUnknownStage(t *testing.T) {
	client := keylessClient(t)
	if _, err := client.Generate(context.Background(), Request{Stage: "mystery"}); err == nil {
		t.Fatal("unknown stage should error")
	}
}

func TestGenerateHonorsCancelledContext(t *testing.T) {
	client := keylessClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Generate(ctx, Request{Stage: domain.StageGameDesign}); err == nil {
		t.Fatal("cancelled context should abort generation")
	}
}
