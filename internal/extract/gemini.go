package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/runnerr0/chargebook/internal/log"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

const prompt = `Analyze this image of an EV charging screen or receipt.
Extract the following data points precisely. If a value is missing, return 0 or null.
- Energy charged (in kWh)
- Charging duration (in minutes, convert hours to minutes if necessary)
- Total cost (numeric)
- Current balance (remaining account balance, numeric)`

var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"energyKwh":       {Type: genai.TypeNumber, Description: "Energy in kWh"},
		"durationMinutes": {Type: genai.TypeNumber, Description: "Duration in minutes"},
		"cost":            {Type: genai.TypeNumber, Description: "Cost amount"},
		"balance":         {Type: genai.TypeNumber, Description: "Account balance"},
	},
	Required: []string{"energyKwh", "durationMinutes", "cost"},
}

// contentGenerator is the part of *genai.Models the client needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures NewGeminiClient.
type GeminiConfig struct {
	APIKey string
	Model  string
	Logger *log.Logger
}

// GeminiClient extracts values with a Gemini vision model.
type GeminiClient struct {
	models contentGenerator
	model  string
	log    *log.Logger
}

// NewGeminiClient creates a client for the Gemini API.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is not set")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiClient(c.Models, cfg.Model, cfg.Logger), nil
}

func newGeminiClient(models contentGenerator, model string, logger *log.Logger) *GeminiClient {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &GeminiClient{
		models: models,
		model:  model,
		log:    logger.WithComponent(log.ComponentExtract),
	}
}

// Model returns the model name requests are sent to.
func (c *GeminiClient) Model() string {
	return c.model
}

// Extract sends the image with the extraction prompt and parses the JSON
// answer. Every failure is an *Error.
func (c *GeminiClient) Extract(ctx context.Context, req Request) (Result, error) {
	mime, err := DetectMIMEType(req)
	if err != nil {
		return Result{}, err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.Image, mime),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		c.log.WarnContext(ctx, "Extraction request failed",
			log.FieldOperation, log.OpExtract,
			log.FieldModel, c.model,
			log.FieldError, err)
		return Result{}, &Error{Op: "request", Err: err}
	}
	if resp == nil {
		return Result{}, &Error{Op: "request", Err: errors.New("no response")}
	}

	res, err := ParseResult(resp.Text())
	if err != nil {
		c.log.WarnContext(ctx, "Extraction response unusable",
			log.FieldModel, c.model,
			log.FieldError, err)
		return Result{}, err
	}

	c.log.DebugContext(ctx, "Extracted values",
		log.FieldModel, c.model,
		log.FieldMIMEType, mime,
		log.FieldBytes, len(req.Image),
		log.FieldDuration, time.Since(start))
	return res, nil
}
