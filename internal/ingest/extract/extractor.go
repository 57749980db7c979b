// Package extract reads the structured showing fields off a rendered ticket
// page with a vision-capable model. It is a thin adapter: one request per
// page, strict response validation, no retries and no guessed fields.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

// Fields are the four values every ticket page must yield.
type Fields struct {
	Act      string `json:"act"`
	Location string `json:"location"`
	Date     string `json:"date"`  // DD-MM-YYYY
	Start    string `json:"start"` // HH:MM AM/PM
}

// Reason classifies an extraction failure so callers can present an
// actionable message instead of a generic one.
type Reason string

const (
	ReasonQuota       Reason = "quota"
	ReasonRateLimit   Reason = "rate_limit"
	ReasonBadResponse Reason = "bad_response"
	ReasonAPI         Reason = "api"
)

type ExtractionError struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExtractionError) Unwrap() error { return e.Err }

const prompt = `You are analyzing a festival ticket. Extract the following information and return it as JSON:

{
  "act": "The exact movie/film title as shown",
  "location": "The cinema or venue name",
  "date": "The date in DD-MM-YYYY format (e.g., '15-11-2025')",
  "start": "The start time in HH:MM AM/PM format (e.g., '06:45 PM')"
}

Important notes:
- Look for fields labeled "Act", "Location", "Date", and "Start"
- The date format is DD-MM-YYYY (day-month-year)
- The time format uses 12-hour clock with AM/PM
- Each page represents exactly ONE ticket (you are analyzing a single page)

Return ONLY valid JSON, no additional text or markdown formatting.`

// contentGenerator is the slice of *genai.GenerativeModel the extractor
// needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Extractor issues vision requests for ticket pages.
type Extractor struct {
	model contentGenerator
}

// NewExtractor builds an extractor on a Gemini model. Temperature is pinned
// to zero; the response must be reproducible enough to validate.
func NewExtractor(client *genai.Client, modelName string) *Extractor {
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	return &Extractor{model: model}
}

// Extract sends one page image to the model and returns the four ticket
// fields. A partial extraction is a full failure: if any field is missing or
// empty after parsing, the page fails.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (Fields, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Fields{}, &ExtractionError{Reason: ReasonAPI, Message: "failed to encode page image", Err: err}
	}

	resp, err := e.model.GenerateContent(ctx, genai.ImageData("png", buf.Bytes()), genai.Text(prompt))
	if err != nil {
		return Fields{}, classifyAPIError(err)
	}

	text, err := responseText(resp)
	if err != nil {
		return Fields{}, err
	}
	return ParseFields(text)
}

// responseText unwraps the first text part of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", &ExtractionError{Reason: ReasonBadResponse, Message: "no candidates returned from vision model"}
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", &ExtractionError{Reason: ReasonBadResponse, Message: "empty content returned from vision model"}
	}
	if txt, ok := candidate.Content.Parts[0].(genai.Text); ok {
		return string(txt), nil
	}
	return "", &ExtractionError{Reason: ReasonBadResponse, Message: "unexpected response format from vision model"}
}

// ParseFields parses the model's free-form reply. Markdown fencing is
// tolerated by extracting the first balanced {...} span; anything without a
// JSON object, or with a missing or empty required field, fails.
func ParseFields(text string) (Fields, error) {
	span, ok := firstJSONObject(text)
	if !ok {
		return Fields{}, &ExtractionError{Reason: ReasonBadResponse, Message: "response contains no JSON object"}
	}

	var fields Fields
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return Fields{}, &ExtractionError{Reason: ReasonBadResponse, Message: "response JSON is malformed", Err: err}
	}

	for name, value := range map[string]string{
		"act":      fields.Act,
		"location": fields.Location,
		"date":     fields.Date,
		"start":    fields.Start,
	} {
		if strings.TrimSpace(value) == "" {
			return Fields{}, &ExtractionError{
				Reason:  ReasonBadResponse,
				Message: fmt.Sprintf("missing required field %q in extracted data", name),
			}
		}
	}
	return fields, nil
}

// firstJSONObject returns the first balanced top-level {...} span in s.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// classifyAPIError maps provider errors onto the extraction taxonomy. Quota
// exhaustion and rate limiting both surface as HTTP 429; the message tells
// them apart.
func classifyAPIError(err error) *ExtractionError {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 429 {
		if strings.Contains(strings.ToLower(gerr.Message), "quota") ||
			strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
			return &ExtractionError{
				Reason:  ReasonQuota,
				Message: "vision API quota exceeded. Please check your billing and plan details",
				Err:     err,
			}
		}
		return &ExtractionError{
			Reason:  ReasonRateLimit,
			Message: "vision API rate limit exceeded. Please try again later",
			Err:     err,
		}
	}
	return &ExtractionError{Reason: ReasonAPI, Message: "vision request failed", Err: err}
}
