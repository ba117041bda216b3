// services/enrichment_service.go
package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/promptpulse/pulse-workflows/internal/models"
	"github.com/promptpulse/pulse-workflows/internal/textutil"
)

// Detected feature names
const (
	FeatureText           = "text"
	FeatureProducts       = "products"
	FeatureImages         = "images"
	FeatureTable          = "table"
	FeatureNavigationList = "navigation_list"
	FeatureLocalItems     = "local_businesses"
)

var (
	markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	tableRowRe      = regexp.MustCompile(`^\s*\|.*\|\s*$`)
)

// Intent keyword lists. Matched against the lowercased prompt text.
var intentKeywords = map[string][]string{
	models.IntentCommercial:    {"compare", "review", "rating", "best", "top", "price", "cost", "features", "vs", "versus", "pros", "cons", "recommendation", "brand", "model"},
	models.IntentLocal:         {"near me", "nearby", "local", "address", "location", "directions", "hours", "map", "restaurant", "store", "business", "service area", "city", "town"},
	models.IntentTransactional: {"buy", "purchase", "order", "booking", "reservation", "hire", "contact", "call", "quote", "estimate", "appointment", "schedule", "book now"},
	models.IntentNavigational:  {"website", "homepage", "official site", "main page", "portal", "directory", "login", "sign in", "dashboard", "menu", "navigation", "sitemap"},
	models.IntentInformational: {"what", "why", "how", "when", "where", "definition", "meaning", "explain", "guide", "tutorial", "learn", "understand", "compare", "difference", "overview"},
}

// Tie-break order for equal intent scores
var intentPriority = []string{
	models.IntentCommercial,
	models.IntentTransactional,
	models.IntentLocal,
	models.IntentNavigational,
	models.IntentInformational,
}

type enrichmentService struct {
	sanitizer *textutil.Sanitizer
	now       func() time.Time
}

// NewEnrichmentService creates the deterministic response scorer
func NewEnrichmentService() EnrichmentService {
	return &enrichmentService{
		sanitizer: textutil.NewSanitizer(),
		now:       time.Now,
	}
}

// Enrich runs every deterministic scorer over one normalized response.
// Scoring never fails: malformed inputs degrade to zero scores.
func (s *enrichmentService) Enrich(resp *models.NormalizedResponse, promptText string, brandMentions, domainMentions []string) *models.EnrichmentResult {
	result := &models.EnrichmentResult{
		BrandCounts:  make(map[string]int),
		DomainCounts: make(map[string]int),
	}

	result.SanitizedText = s.sanitizer.Sanitize(resp.AnswerText)

	// Brand presence against the sanitized answer text
	for _, brand := range brandMentions {
		if brand == "" {
			continue
		}
		count := textutil.CountBrandMentions(result.SanitizedText, brand)
		if count > 0 {
			result.BrandCounts[brand] = count
			result.MentionCount += count
		}
	}
	result.IsPresent = result.MentionCount > 0

	// Domain presence against the citation hostnames
	hostText := citationHostText(resp.Citations)
	for _, domain := range domainMentions {
		if domain == "" {
			continue
		}
		count := textutil.CountBrandMentions(hostText, domain)
		if count > 0 {
			result.DomainCounts[domain] = count
			result.DomainMentionCount += count
		}
	}
	result.IsDomainPresent = result.DomainMentionCount > 0

	result.Features = s.detectFeatures(resp)
	result.LCP = s.scoreLCP(resp, result.Features)
	result.Actionability = s.scoreActionability(resp, result.Features)
	result.Intent, result.IntentConfidence = s.classifyIntent(promptText, result.Features)

	return result
}

func citationHostText(citations []models.Citation) string {
	hosts := make([]string, 0, len(citations))
	for _, c := range citations {
		if c.Domain != "" {
			hosts = append(hosts, c.Domain)
		} else if c.URL != "" {
			hosts = append(hosts, textutil.Hostname(c.URL))
		}
	}
	return strings.Join(hosts, " ")
}

// detectFeatures builds the presence-with-count feature map. Only detected
// features appear as keys.
func (s *enrichmentService) detectFeatures(resp *models.NormalizedResponse) map[string]int {
	features := make(map[string]int)

	if strings.TrimSpace(resp.AnswerText) != "" {
		features[FeatureText] = 1
	}

	if resp.ProductCount > 0 {
		features[FeatureProducts] = resp.ProductCount
	}

	imageCount := len(markdownImageRe.FindAllString(resp.AnswerText, -1)) + resp.ImageItemCount
	if imageCount > 0 {
		features[FeatureImages] = imageCount
	}

	tableRows := 0
	for _, line := range strings.Split(resp.AnswerText, "\n") {
		if tableRowRe.MatchString(line) {
			tableRows++
		}
	}
	// Header, separator, and at least one data row
	if tableRows >= 3 {
		features[FeatureTable] = tableRows
	}

	if resp.LinkCount > 3 || resp.SourceCount > 0 {
		features[FeatureNavigationList] = resp.LinkCount + resp.SourceCount
	}

	if resp.HasMapFlag || resp.LocalItemCount > 0 {
		count := resp.LocalItemCount
		if count == 0 {
			count = 1
		}
		features[FeatureLocalItems] = count
	}

	return features
}

// scoreLCP computes the Linked Citation Potential score
func (s *enrichmentService) scoreLCP(resp *models.NormalizedResponse, features map[string]int) int {
	urls := make([]string, 0, len(resp.Citations))
	for _, c := range resp.Citations {
		if c.Domain != "" {
			urls = append(urls, c.Domain)
		} else {
			urls = append(urls, c.URL)
		}
	}
	distinct := len(textutil.DistinctHostnames(urls))

	score := min(distinct, 8) * 8

	if s.hasRecentCitation(resp.Citations, 90*24*time.Hour) {
		score += 10
	}
	if len(features) >= 2 {
		score += 10
	}
	if _, ok := features[FeatureNavigationList]; ok {
		score += 6
	}

	return clampScore(score)
}

// scoreActionability computes the decision-support score
func (s *enrichmentService) scoreActionability(resp *models.NormalizedResponse, features map[string]int) int {
	score := 0
	if _, ok := features[FeatureTable]; ok {
		score += 30
	}
	if _, ok := features[FeatureProducts]; ok {
		score += 20
	}
	if _, ok := features[FeatureLocalItems]; ok {
		score += 20
	}
	if _, ok := features[FeatureImages]; ok {
		score += 10
	}
	if _, ok := features[FeatureNavigationList]; ok {
		score += 10
	}

	// Stale citations are an opportunity to publish fresher content
	if newest := newestCitationDate(resp.Citations); newest != nil && s.now().Sub(*newest) > 365*24*time.Hour {
		score += 10
	}

	return clampScore(score)
}

func (s *enrichmentService) hasRecentCitation(citations []models.Citation, window time.Duration) bool {
	cutoff := s.now().Add(-window)
	for _, c := range citations {
		if c.PublishedAt != nil && c.PublishedAt.After(cutoff) {
			return true
		}
	}
	return false
}

func newestCitationDate(citations []models.Citation) *time.Time {
	var newest *time.Time
	for _, c := range citations {
		if c.PublishedAt == nil {
			continue
		}
		if newest == nil || c.PublishedAt.After(*newest) {
			newest = c.PublishedAt
		}
	}
	return newest
}

// Feature contributions to each intent category
var intentFeatureWeights = map[string]map[string]int{
	models.IntentCommercial:    {FeatureProducts: 25, FeatureTable: 15},
	models.IntentTransactional: {FeatureProducts: 15},
	models.IntentLocal:         {FeatureLocalItems: 30},
	models.IntentNavigational:  {FeatureNavigationList: 20},
	models.IntentInformational: {FeatureText: 10},
}

// classifyIntent scores the five intent categories and returns the winner with
// a 0-100 confidence
func (s *enrichmentService) classifyIntent(promptText string, features map[string]int) (string, int) {
	lower := strings.ToLower(promptText)
	scores := make(map[string]int, len(intentPriority))

	for _, category := range intentPriority {
		score := 0
		for feature, weight := range intentFeatureWeights[category] {
			if _, ok := features[feature]; ok {
				score += weight
			}
		}

		// Keyword hits contribute 10 each, capped at 40 per category
		keywordScore := 0
		for _, keyword := range intentKeywords[category] {
			keywordScore += countKeyword(lower, keyword) * 10
		}
		score += min(keywordScore, 40)

		scores[category] = score
	}
	scores[models.IntentInformational] += 20 // informational baseline

	// Winner by score, ties broken by category priority
	primary := models.IntentInformational
	top := -1
	for _, category := range intentPriority {
		if scores[category] > top {
			top = scores[category]
			primary = category
		}
	}

	second := -1
	for _, category := range intentPriority {
		if category == primary {
			continue
		}
		if scores[category] > second {
			second = scores[category]
		}
	}

	confidence := 0
	if top > 0 {
		confidence = (top - second) * 100 / top
	}

	return primary, confidence
}

// countKeyword counts whole-word occurrences of keyword in lowercased text
func countKeyword(lower, keyword string) int {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
	if err != nil {
		return 0
	}
	return len(re.FindAllString(lower, -1))
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// FeatureSummary renders the feature map for log lines, keys sorted
func FeatureSummary(features map[string]int) string {
	keys := make([]string, 0, len(features))
	for k := range features {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, features[k]))
	}
	return strings.Join(parts, " ")
}
