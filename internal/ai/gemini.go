package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"mapchat/internal/geo"
	"mapchat/internal/grounding"
	"mapchat/internal/logging"
)

// =============================================================================
// GEMINI CLIENT
// =============================================================================

const defaultModel = "gemini-2.5-flash"

// systemPrompt is the standing instruction set. The coordinate-tag
// contract in here is load-bearing: the grounding parser expects exactly
// this format at the end of replies that reference a specific place.
const systemPrompt = `You are a friendly, map-aware travel assistant.
When your answer refers to one specific physical place, append its
coordinates at the very end of your reply as a hidden tag in exactly
this format: {{LAT:<latitude>, LNG:<longitude>}}. Use decimal degrees.
Do not mention the tag or the coordinates in the visible text. If no
single specific place is involved, do not emit a tag.`

// GeminiClient calls the Gemini API with Google Search grounding enabled.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiClient creates a Gemini-backed Client.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: 0.7,
	}, nil
}

// Send submits the history window and returns the raw reply plus its
// grounding citations.
func (c *GeminiClient) Send(ctx context.Context, history []Turn, contextLocation *geo.Location) (*Reply, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "GeminiClient.Send")
	defer timer.Stop()

	if len(history) == 0 {
		return nil, fmt.Errorf("empty history window")
	}

	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		var role genai.Role = genai.RoleUser
		if turn.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(buildSystemPrompt(contextLocation), genai.RoleUser),
		Temperature:       genai.Ptr[float32](c.temperature),
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}

	logging.API("Sending %d turn(s) to %s (context location: %v)", len(history), c.model, contextLocation != nil)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		logging.APIError("GenerateContent failed: %v", err)
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("gemini returned an empty reply")
	}

	reply := &Reply{
		Text:      text,
		Citations: extractCitations(resp),
	}
	logging.API("Received reply: %d chars, %d citation(s)", len(reply.Text), len(reply.Citations))
	return reply, nil
}

func buildSystemPrompt(contextLocation *geo.Location) string {
	if contextLocation == nil {
		return systemPrompt
	}
	return fmt.Sprintf("%s\n\nThe user's current map context is latitude %.6f, longitude %.6f. Prefer answers relevant to that area when the question is ambiguous.",
		systemPrompt, contextLocation.Lat, contextLocation.Lng)
}

// extractCitations converts grounding chunks into the citation union.
// Maps chunks are always place citations; web chunks are classified by
// URI because maps links sometimes arrive through the web channel.
func extractCitations(resp *genai.GenerateContentResponse) []grounding.Citation {
	if len(resp.Candidates) == 0 {
		return nil
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return nil
	}

	var citations []grounding.Citation
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil {
			continue
		}
		switch {
		case chunk.Maps != nil:
			citations = append(citations, grounding.Citation{
				Kind:  grounding.KindPlace,
				URI:   chunk.Maps.URI,
				Title: chunk.Maps.Title,
			})
		case chunk.Web != nil:
			citations = append(citations, grounding.Citation{
				Kind:  grounding.ClassifyURI(chunk.Web.URI),
				URI:   chunk.Web.URI,
				Title: chunk.Web.Title,
			})
		}
	}
	return citations
}
