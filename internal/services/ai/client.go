package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tactix/internal/config"
	"github.com/tactix/internal/metrics"
	"github.com/tactix/internal/team"
	"github.com/tactix/pkg/logger"
)

// ErrMissingAPIKey is returned by every request when no API key is set.
var ErrMissingAPIKey = errors.New("AI API key not configured")

// Request kinds, used as metric labels.
const (
	KindAnalysis   = "analysis"
	KindScan       = "scan"
	KindDocument   = "document"
	KindCoaching   = "coaching"
	KindSimulation = "simulation"
)

// Client is a client for the OpenAI-compatible chat completions API.
type Client struct {
	apiKey      string
	apiURL      string
	model       string
	visionModel string
	limiter     *rate.Limiter
	httpClient  *http.Client
}

// NewClient creates a new AI client.
func NewClient(cfg *config.Config) *Client {
	limit := rate.Inf
	if cfg.AIRPM > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.AIRPM))
	}

	c := &Client{
		apiKey:      cfg.AIAPIKey,
		apiURL:      cfg.AIAPIURL,
		model:       cfg.AIModel,
		visionModel: cfg.AIVisionModel,
		limiter:     rate.NewLimiter(limit, 3),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	if c.visionModel == "" {
		c.visionModel = c.model
	}

	if c.apiKey != "" {
		logger.Log.Infof("Loaded AI API key (length: %d)", len(c.apiKey))
	} else {
		logger.Log.Warn("AI API key is missing")
	}
	logger.Log.Infof("AI API URL: %s", c.apiURL)
	logger.Log.Infof("AI models: %s / %s", c.model, c.visionModel)

	return c
}

// AnalyzeMatchup asks for a full tactical report of my team against the
// opponent.
func (c *Client) AnalyzeMatchup(ctx context.Context, my, opp team.Record, notes string, knowledge []string, lang string) (*AnalysisReport, error) {
	var sb strings.Builder

	sb.WriteString("RUN THE FULL ANALYSIS.\n")
	sb.WriteString(languageInstruction(lang) + "\n\n")
	sb.WriteString("MY TEAM:\n")
	writeTeam(&sb, my, true)
	sb.WriteString("\nOPPONENT:\n")
	writeTeam(&sb, opp, false)
	sb.WriteString("\nADDITIONAL NOTES:\n")
	sb.WriteString(strings.TrimSpace(notes) + "\n")
	sb.WriteString("\nCORE KNOWLEDGE BASE:\n")
	sb.WriteString(KnowledgeBase + "\n")
	sb.WriteString("\nIMPORTED KNOWLEDGE:\n")
	sb.WriteString(joinOrNone(knowledge))

	content, err := c.complete(ctx, KindAnalysis, c.model, AnalystPrompt, sb.String(), 0.7)
	if err != nil {
		return nil, err
	}
	return decode[AnalysisReport](content)
}

// ScanScreenshot extracts team fields from a game screenshot. A scan that
// recognised nothing is returned as an empty result, not an error.
func (c *Client) ScanScreenshot(ctx context.Context, image []byte, mimeType string) (team.ScanResult, error) {
	parts := []ContentPart{
		imagePart(image, mimeType),
		{Type: "text", Text: "Read this OSM screenshot and extract the data of the visible team."},
	}

	content, err := c.complete(ctx, KindScan, c.visionModel, ScoutPrompt, parts, 0.1)
	if err != nil {
		return team.ScanResult{}, err
	}
	wire, err := decode[scanWire](content)
	if err != nil {
		return team.ScanResult{}, err
	}
	return wire.toScan(), nil
}

// ProcessDocument extracts tactical knowledge from a document image.
func (c *Client) ProcessDocument(ctx context.Context, image []byte, mimeType, filename string) (*DocumentResult, error) {
	parts := []ContentPart{
		imagePart(image, mimeType),
		{Type: "text", Text: fmt.Sprintf("Read this tactical document (%s). Extract formations, rules and strategies.", filename)},
	}

	content, err := c.complete(ctx, KindDocument, c.visionModel, DocumentPrompt, parts, 0.2)
	if err != nil {
		return nil, err
	}
	return decode[DocumentResult](content)
}

// ProcessText extracts tactical knowledge from plain text such as an
// imported web page.
func (c *Client) ProcessText(ctx context.Context, text, source string) (*DocumentResult, error) {
	prompt := fmt.Sprintf("Read this tactical text from %s. Extract formations, rules and strategies.\n\n%s", source, text)

	content, err := c.complete(ctx, KindDocument, c.model, DocumentPrompt, prompt, 0.2)
	if err != nil {
		return nil, err
	}
	return decode[DocumentResult](content)
}

// GenerateCoachingGuide turns a report into a beginner walkthrough.
func (c *Client) GenerateCoachingGuide(ctx context.Context, report *AnalysisReport, knowledge []string, lang string) (*TutorialGuide, error) {
	if report == nil {
		return nil, fmt.Errorf("no report to coach from")
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("WRITE A BEGINNER GUIDE FOR THIS ANALYSIS:\n")
	sb.Write(reportJSON)
	sb.WriteString("\n\nMake it a step-by-step guide an OSM beginner can apply exactly.\n")
	sb.WriteString("\nUSE THESE INSIGHTS WHERE RELEVANT:\n")
	sb.WriteString(joinOrNone(knowledge))
	sb.WriteString("\n\n" + languageInstruction(lang))

	content, err := c.complete(ctx, KindCoaching, c.visionModel, CoachPrompt, sb.String(), 0.7)
	if err != nil {
		return nil, err
	}
	return decode[TutorialGuide](content)
}

// RunSimulation simulates the matchup with the given tactics.
func (c *Client) RunSimulation(ctx context.Context, my, opp team.Record, settings TacticalSettings, lines LineTactics, lang string) (*SimulationResult, error) {
	settingsJSON, _ := json.Marshal(settings)
	linesJSON, _ := json.Marshal(lines)

	var sb strings.Builder
	sb.WriteString("RUN THE MATCH SIMULATION.\n\n")
	sb.WriteString("MY TEAM:\n")
	sb.WriteString(fmt.Sprintf("- Formation: %s\n", my.Formation))
	sb.WriteString(fmt.Sprintf("- Rating: %d\n", my.AverageRating))
	sb.WriteString(fmt.Sprintf("- Venue: %s\n", my.Venue))
	sb.WriteString("\nMY TACTICS:\n")
	sb.Write(settingsJSON)
	sb.WriteString("\nLine tactics: ")
	sb.Write(linesJSON)
	sb.WriteString("\n\nOPPONENT:\n")
	sb.WriteString(fmt.Sprintf("- Formation: %s\n", opp.Formation))
	sb.WriteString(fmt.Sprintf("- Rating: %d\n", opp.AverageRating))
	sb.WriteString("\nSimulate the outcome from tactical coherence.\n\n")
	sb.WriteString(languageInstruction(lang))

	content, err := c.complete(ctx, KindSimulation, c.model, SimulationPrompt, sb.String(), 0.7)
	if err != nil {
		return nil, err
	}
	return decode[SimulationResult](content)
}

func writeTeam(sb *strings.Builder, r team.Record, withVenue bool) {
	sb.WriteString(fmt.Sprintf("- Name: %s\n", r.Name))
	sb.WriteString(fmt.Sprintf("- Formation: %s\n", r.Formation))
	sb.WriteString(fmt.Sprintf("- Avg rating: %d\n", r.AverageRating))
	if withVenue {
		sb.WriteString(fmt.Sprintf("- Venue: %s\n", r.Venue))
	}
	sb.WriteString(fmt.Sprintf("- Recent form: %s\n", team.FormString(r.RecentForm)))
	for _, p := range r.KeyPlayers {
		sb.WriteString(fmt.Sprintf("- Key player: %s %s %d\n", p.Name, p.Position, p.Rating))
	}
}

func joinOrNone(lines []string) string {
	if len(lines) == 0 {
		return "None"
	}
	return strings.Join(lines, "\n")
}

func imagePart(image []byte, mimeType string) ContentPart {
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	return ContentPart{
		Type:     "image_url",
		ImageURL: &ImageURL{URL: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)},
	}
}

// complete sends one chat request and returns the message content.
func (c *Client) complete(ctx context.Context, kind, model, system string, user any, temperature float64) (content string, err error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	start := time.Now()
	defer func() {
		metrics.RecordAIRequest(kind, err, time.Since(start))
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	payload := ChatRequest{
		Model: model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    temperature,
		MaxTokens:      20000,
		TopP:           1,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Log.Errorf("AI API error (%s): %d - %s", kind, resp.StatusCode, string(respBody))
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("no response from model")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// stripFences removes a surrounding markdown code block.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// decode parses the model output into T.
func decode[T any](content string) (*T, error) {
	var result T
	if err := json.Unmarshal([]byte(stripFences(content)), &result); err != nil {
		logger.Log.Warnf("Failed to parse AI JSON: %v", err)
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}
	return &result, nil
}
