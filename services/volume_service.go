// services/volume_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/promptpulse/pulse-workflows/internal/models"
	"github.com/promptpulse/pulse-workflows/internal/providers/common"
)

// Typed volume-lookup failures, surfaced to callers that can react
// (bad credentials, exhausted credits, rate limits).
var (
	ErrVolumeAuth        = errors.New("volume provider rejected credentials")
	ErrVolumeCredits     = errors.New("volume provider credits exhausted")
	ErrVolumeRateLimited = errors.New("volume provider rate limited")
)

const maxVolumeKeywords = 50

// VolumeClient is the search-volume surface of the DataForSEO client
type VolumeClient interface {
	SearchVolume(ctx context.Context, req common.VolumeRequest) ([]common.VolumeItem, error)
}

type volumeService struct {
	client VolumeClient
}

// NewVolumeService creates the AI search volume client
func NewVolumeService(client VolumeClient) VolumeService {
	return &volumeService{client: client}
}

// BatchVolumes fetches volumes for all prompts in a single provider call and
// returns one entry per prompt, index-aligned. A prompt with no matching
// keyword data gets a nil entry; zero volume stays a valid non-nil answer.
func (s *volumeService) BatchVolumes(ctx context.Context, prompts []string, locationCode int) ([]*models.VolumeData, error) {
	out := make([]*models.VolumeData, len(prompts))
	if len(prompts) == 0 {
		return out, nil
	}

	seen := make(map[string]bool)
	keywords := make([]string, 0, len(prompts))
	for _, p := range prompts {
		k := strings.ToLower(strings.TrimSpace(p))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keywords = append(keywords, k)
		if len(keywords) == maxVolumeKeywords {
			break
		}
	}

	items, err := s.client.SearchVolume(ctx, common.VolumeRequest{
		Keywords:     keywords,
		LocationCode: locationCode,
		LanguageCode: "en",
	})
	if err != nil {
		var ue *common.UpstreamError
		if errors.As(err, &ue) {
			switch ue.StatusCode {
			case 401:
				return nil, ErrVolumeAuth
			case 402:
				return nil, ErrVolumeCredits
			case 429:
				return nil, ErrVolumeRateLimited
			}
		}
		// Any other failure degrades to all-nil entries
		fmt.Printf("[VolumeService] ⚠️ Volume lookup failed, returning null volumes: %v\n", err)
		return out, nil
	}

	byKeyword := make(map[string][]common.VolumeItem)
	for _, item := range items {
		k := strings.ToLower(item.Keyword)
		byKeyword[k] = append(byKeyword[k], item)
	}

	for i, p := range prompts {
		matches := byKeyword[strings.ToLower(strings.TrimSpace(p))]
		if len(matches) == 0 {
			continue
		}
		out[i] = aggregateVolume(matches)
	}

	return out, nil
}

func aggregateVolume(items []common.VolumeItem) *models.VolumeData {
	data := &models.VolumeData{}

	type monthKey struct{ year, month int }
	monthly := make(map[monthKey]int)

	for _, item := range items {
		data.CurrentVolume += item.SearchVolume
		for _, m := range item.MonthlySearches {
			monthly[monthKey{m.Year, m.Month}] += m.SearchVolume
		}
	}

	keys := make([]monthKey, 0, len(monthly))
	for k := range monthly {
		keys = append(keys, k)
	}
	// Newest first
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year > keys[j].year
		}
		return keys[i].month > keys[j].month
	})
	if len(keys) > 12 {
		keys = keys[:12]
	}

	sum := 0
	for _, k := range keys {
		v := monthly[k]
		data.MonthlyTrends = append(data.MonthlyTrends, models.MonthlyTrend{Year: k.year, Month: k.month, Volume: v})
		sum += v
		if v > data.PeakVolume {
			data.PeakVolume = v
		}
	}
	if len(keys) > 0 {
		data.AverageVolume = sum / len(keys)
	}

	return data
}
