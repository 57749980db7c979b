// Package festival resolves the festival programme page URL for an act.
// Resolution is best-effort: a miss returns an empty link and never fails
// the caller.
package festival

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/generative-ai-go/genai"

	"festival-tickets/internal/logger"
)

const cacheKeyPrefix = "festival-link:"

const linkPrompt = `Find the exact IDFA (International Documentary Film Festival Amsterdam) festival page URL for this title: %q

The IDFA festival website uses different URL patterns:
1. For individual films: https://festival.idfa.nl/en/film/{uuid}/{film-slug}/
2. For shorts/composition programs: https://festival.idfa.nl/en/composition/{uuid}/{program-slug}/

Important:
- If the title starts with "Shorts:" or appears to be a program/compilation, use the /en/composition/ URL pattern
- For regular film titles, use the /en/film/ URL pattern
- Always include the trailing slash

If you know the exact URL for the title, respond with ONLY the full URL (including the trailing slash).
If you cannot find the URL or are uncertain, respond with exactly: null

Return format: Either the full URL or "null" (nothing else).`

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Finder looks up festival links with the generative model, caching results
// in Redis per act so repeat ingests of the same screening stay cheap.
type Finder struct {
	model    contentGenerator
	redis    *redis.Client
	cacheTTL time.Duration
	logger   *logger.Logger
}

func NewFinder(client *genai.Client, modelName string, redisClient *redis.Client, cacheTTL time.Duration, log *logger.Logger) *Finder {
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	return &Finder{
		model:    model,
		redis:    redisClient,
		cacheTTL: cacheTTL,
		logger:   log,
	}
}

// FindLink returns the festival page URL for the act, or "" when no link
// could be determined. All failure modes (model errors, invalid URLs, cache
// trouble) degrade to "".
func (f *Finder) FindLink(ctx context.Context, act string) string {
	if act == "" {
		return ""
	}

	key := cacheKeyPrefix + act
	if f.redis != nil {
		if cached, err := f.redis.Get(ctx, key).Result(); err == nil {
			return cached
		}
	}

	link := f.lookup(ctx, act)
	if link != "" && f.redis != nil {
		if err := f.redis.Set(ctx, key, link, f.cacheTTL).Err(); err != nil && f.logger != nil {
			f.logger.Warn("FESTIVAL", fmt.Sprintf("failed to cache link for %q: %v", act, err))
		}
	}
	return link
}

func (f *Finder) lookup(ctx context.Context, act string) string {
	resp, err := f.model.GenerateContent(ctx, genai.Text(fmt.Sprintf(linkPrompt, act)))
	if err != nil {
		if f.logger != nil {
			f.logger.Warn("FESTIVAL", fmt.Sprintf("link lookup for %q failed: %v", act, err))
		}
		return ""
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	txt, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return ""
	}

	return ValidateLink(string(txt))
}

// ValidateLink normalizes a model reply into a festival URL, or "" when the
// reply is not one. Markdown fencing and surrounding whitespace are
// tolerated; anything outside the known festival URL patterns is rejected.
func ValidateLink(reply string) string {
	url := strings.TrimSpace(reply)
	url = strings.TrimPrefix(url, "```")
	url = strings.TrimSuffix(url, "```")
	url = strings.TrimSpace(url)

	if url == "" || strings.EqualFold(url, "null") {
		return ""
	}

	if !strings.HasPrefix(url, "http") {
		return ""
	}
	if !strings.Contains(url, "festival.idfa.nl/en/film/") &&
		!strings.Contains(url, "festival.idfa.nl/en/composition/") {
		return ""
	}

	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	return url
}
