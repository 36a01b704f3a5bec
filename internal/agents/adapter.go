package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"cardforge/internal/domain"
	"cardforge/internal/domain/schemas"
	"cardforge/internal/infra"
	"cardforge/internal/providers/genai"
)

// AdapterOptions bounds every external call the adapter makes.
type AdapterOptions struct {
	MaxAttempts    int
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (o *AdapterOptions) applyDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 8 * time.Second
	}
}

// Adapter invokes one model-backed capability per call and validates the
// structured output before it is allowed to exist. It holds no mutable state
// between invocations; a single adapter serves every concurrent stage.
type Adapter struct {
	gen    genai.Generator
	logger infra.Logger
	opts   AdapterOptions
}

// NewAdapter wires a generator behind the adapter contract.
func NewAdapter(gen genai.Generator, logger infra.Logger, opts AdapterOptions) *Adapter {
	opts.applyDefaults()
	return &Adapter{gen: gen, logger: logger, opts: opts}
}

// Invocation is one stage call. Aggregate is a read-only snapshot of
// everything merged so far.
type Invocation struct {
	JobID      string
	Stage      string
	Spec       domain.GameSpec
	Aggregate  domain.AggregateState
	Feedback   *domain.BalanceAnalysis
	Round      int
	Regenerate bool
}

// Invoke runs one stage and returns its validated raw output. Malformed
// inputs fail before any external call; transient call failures and response
// schema violations are retried up to the bound, with the prior invalid
// output and its violations handed back to the model as corrective context.
// Exhaustion yields a StageError, never a partial or guessed result.
func (a *Adapter) Invoke(ctx context.Context, inv Invocation) (json.RawMessage, error) {
	st, ok := StageByName(inv.Stage)
	if !ok {
		return nil, fmt.Errorf("%w: unknown stage %q", domain.ErrValidation, inv.Stage)
	}
	for _, dep := range st.DependsOn {
		if !inv.Aggregate.Has(dep) {
			return nil, fmt.Errorf("%w: stage %s requires %s", domain.ErrValidation, st.Name, dep)
		}
	}
	prompt, err := st.Prompt(PromptInput{
		Spec:       inv.Spec,
		Aggregate:  inv.Aggregate,
		Feedback:   inv.Feedback,
		Round:      inv.Round,
		Regenerate: inv.Regenerate,
	})
	if err != nil {
		return nil, err
	}
	schema, ok := schemas.ForStage(st.Name)
	if !ok {
		return nil, fmt.Errorf("%w: no schema for stage %q", domain.ErrValidation, st.Name)
	}

	req := genai.Request{
		Stage:     st.Name,
		Prompt:    prompt,
		WantJSON:  st.WantJSON,
		RequestID: inv.JobID,
		Round:     inv.Round,
		Theme:     inv.Spec.Theme,
		ArtStyle:  inv.Spec.ArtStyle,
	}
	if st.Name == domain.StageCardArtwork {
		design, err := inv.Aggregate.Design()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		for _, card := range design.StarterCards {
			req.CardNames = append(req.CardNames, card.Name)
		}
	}

	return a.generateValidated(ctx, st.Name, req, schema, !st.WantJSON)
}

// RedesignCard regenerates a single named card against the frozen aggregate.
func (a *Adapter) RedesignCard(ctx context.Context, jobID string, spec domain.GameSpec, agg domain.AggregateState, cardName string) (*domain.Card, error) {
	design, err := agg.Design()
	if err != nil {
		return nil, fmt.Errorf("%w: card redesign requires a game design: %v", domain.ErrValidation, err)
	}
	idx := design.CardIndex(cardName)
	if idx < 0 {
		return nil, fmt.Errorf("%w: card %q not found in design", domain.ErrValidation, cardName)
	}
	prior := design.StarterCards[idx]

	req := genai.Request{
		Stage:      genai.TaskCardDesign,
		Prompt:     cardRedesignPrompt(spec, design, prior),
		WantJSON:   true,
		RequestID:  jobID,
		TargetCard: cardName,
		Theme:      spec.Theme,
		ArtStyle:   spec.ArtStyle,
	}
	raw, err := a.generateValidated(ctx, genai.TaskCardDesign, req, schemas.CardSchema, false)
	if err != nil {
		return nil, err
	}
	var card domain.Card
	if err := json.Unmarshal(raw, &card); err != nil {
		return nil, fmt.Errorf("decode regenerated card: %w", err)
	}
	return &card, nil
}

// DescribeCardArt generates a fresh artwork description for one card,
// coherent with the accepted art style guide.
func (a *Adapter) DescribeCardArt(ctx context.Context, jobID string, spec domain.GameSpec, agg domain.AggregateState, card domain.Card) (string, error) {
	guide := aggregateText(agg, domain.StageArtGuide)
	if guide == "" {
		return "", fmt.Errorf("%w: card artwork requires the art style guide", domain.ErrValidation)
	}
	req := genai.Request{
		Stage:      genai.TaskCardArt,
		Prompt:     cardArtPrompt(guide, card),
		WantJSON:   true,
		RequestID:  jobID,
		TargetCard: card.Name,
		Theme:      spec.Theme,
		ArtStyle:   spec.ArtStyle,
	}
	raw, err := a.generateValidated(ctx, genai.TaskCardArt, req, schemas.CardArtworkEntrySchema, false)
	if err != nil {
		return "", err
	}
	var entry struct {
		ArtworkDescription string `json:"artwork_description"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return "", fmt.Errorf("decode artwork entry: %w", err)
	}
	return entry.ArtworkDescription, nil
}

func (a *Adapter) generateValidated(ctx context.Context, stage string, req genai.Request, schema map[string]any, wrapText bool) (json.RawMessage, error) {
	basePrompt := req.Prompt
	delay := a.opts.InitialBackoff

	var lastRaw string
	var lastDiags []string
	var lastErr error

	for attempt := 1; attempt <= a.opts.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
		raw, err := a.gen.Generate(callCtx, req)
		cancel()

		switch {
		case err != nil:
			if ctx.Err() != nil {
				// The run was aborted, not the call; do not retry.
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %v", domain.ErrTransientCall, err)
			a.logger.Warn().
				Str("stage", stage).
				Str("job_id", req.RequestID).
				Int("attempt", attempt).
				Err(err).
				Msg("agents: call failed")
		default:
			doc := raw
			if wrapText {
				wrapped, merr := json.Marshal(map[string]string{"text": raw})
				if merr != nil {
					return nil, fmt.Errorf("wrap text output: %w", merr)
				}
				doc = string(wrapped)
			} else {
				doc = extractJSONFragment(raw)
			}
			diags := validateAgainst(schema, doc)
			if len(diags) == 0 {
				if attempt > 1 {
					a.logger.Info().
						Str("stage", stage).
						Str("job_id", req.RequestID).
						Int("attempt", attempt).
						Msg("agents: retry succeeded")
				}
				return json.RawMessage(doc), nil
			}
			lastRaw = raw
			lastDiags = diags
			lastErr = domain.ErrSchemaViolation
			a.logger.Warn().
				Str("stage", stage).
				Str("job_id", req.RequestID).
				Int("attempt", attempt).
				Strs("violations", diags).
				Msg("agents: response failed schema validation")
			req.Prompt = correctivePrompt(basePrompt, raw, diags)
		}

		if attempt == a.opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > a.opts.MaxBackoff {
			delay = a.opts.MaxBackoff
		}
	}

	return nil, &domain.StageError{
		Stage:       stage,
		RawOutput:   lastRaw,
		Diagnostics: lastDiags,
		Err:         lastErr,
	}
}

// validateAgainst returns the list of schema violations, or an empty slice
// when the document conforms. A document that is not valid JSON at all counts
// as a single violation.
func validateAgainst(schema map[string]any, doc string) []string {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewStringLoader(doc))
	if err != nil {
		return []string{fmt.Sprintf("response is not a valid JSON document: %v", err)}
	}
	if result.Valid() {
		return nil
	}
	diags := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		diags = append(diags, desc.String())
	}
	return diags
}

func correctivePrompt(base, invalid string, diags []string) string {
	sb := fmt.Sprintf("%s\n\nYour previous response failed validation. Violations:\n", base)
	for _, d := range diags {
		sb += "- " + d + "\n"
	}
	sb += "\nPrevious response:\n" + invalid + "\n\nReturn a corrected response that satisfies the schema exactly."
	return sb
}

func cardRedesignPrompt(spec domain.GameSpec, design *domain.GameDesign, prior domain.Card) string {
	return fmt.Sprintf(
		"You are an expert board game designer. Redesign a single card from %q so it stays coherent with the accepted design below, without changing its name.\n\n%s\nCard to redesign: **%s** (%s, Cost: %s): %s\n\nRespond strictly with JSON: %s.",
		design.GameName, describeDesign(design), prior.Name, prior.Type, prior.Cost, prior.Text,
		`{"name":string,"type":string,"cost":string,"text":string,"flavor_text":string}`)
}

func cardArtPrompt(guide string, card domain.Card) string {
	return fmt.Sprintf(
		"You are a creative assistant generating art prompts for a card game. Using the art style guide below, write a single detailed paragraph describing the artwork for this card.\n\nArt Style Guide:\n%s\n\nCard: **%s** (%s): %s\n\nRespond strictly with JSON: %s.",
		guide, card.Name, card.Type, card.Text,
		`{"artwork_description":string}`)
}
