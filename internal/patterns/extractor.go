// File: internal/patterns/extractor.go
// Description: Batch analysis of high-scoring prompts. Runs detached from the
// request path; the orchestrator invokes it from its background-learning
// phase and only logs the report.

package patterns

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/promptsmith/api/schemas"
)

// minTagShare is the fraction of the sample a tag must appear in to count as
// common.
const minTagShare = 0.3

// maxOpeners caps the reported opening words.
const maxOpeners = 5

// KeywordExtractor implements schemas.PatternExtractor with frequency
// counting over tags and opening words.
type KeywordExtractor struct {
	logger *zap.Logger
}

// NewKeywordExtractor builds the extractor.
func NewKeywordExtractor(logger *zap.Logger) *KeywordExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeywordExtractor{logger: logger.Named("patterns")}
}

// Extract summarizes recurring traits of entries. The input slice is a
// snapshot owned by the caller; it is read but never mutated.
func (e *KeywordExtractor) Extract(ctx context.Context, entries []schemas.HistoryEntry) (*schemas.PatternReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("cannot extract patterns from an empty sample")
	}

	var scoreSum, wordSum float64
	tagCounts := make(map[string]int)
	openerCounts := make(map[string]int)

	for _, entry := range entries {
		scoreSum += entry.Score

		words := strings.Fields(entry.Text)
		wordSum += float64(len(words))
		if len(words) > 0 {
			opener := strings.ToLower(strings.Trim(words[0], `.,:;!?"'`))
			if opener != "" {
				openerCounts[opener]++
			}
		}

		if entry.Context == nil {
			continue
		}
		for _, flag := range entry.Context.Flags() {
			tagCounts[flag]++
		}
		for _, fw := range entry.Context.Frameworks {
			tagCounts[fw]++
		}
	}

	n := len(entries)
	report := &schemas.PatternReport{
		SampleSize:       n,
		AverageScore:     scoreSum / float64(n),
		AverageWordCount: wordSum / float64(n),
		CommonTags:       commonTags(tagCounts, n),
		CommonOpeners:    topOpeners(openerCounts),
	}

	e.logger.Debug("Extracted prompt patterns",
		zap.Int("sample_size", report.SampleSize),
		zap.Float64("average_score", report.AverageScore),
		zap.Strings("common_tags", report.CommonTags),
	)
	return report, nil
}

// commonTags returns tags present in at least minTagShare of the sample,
// sorted by descending frequency, ties alphabetical.
func commonTags(counts map[string]int, sampleSize int) []string {
	threshold := int(math.Ceil(minTagShare * float64(sampleSize)))
	if threshold < 1 {
		threshold = 1
	}

	var tags []string
	for tag, count := range counts {
		if count >= threshold {
			tags = append(tags, tag)
		}
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	return tags
}

// topOpeners returns the most frequent opening words, up to maxOpeners,
// sorted by descending frequency, ties alphabetical. Openers that appear
// only once are noise and are dropped.
func topOpeners(counts map[string]int) []string {
	var openers []string
	for opener, count := range counts {
		if count >= 2 {
			openers = append(openers, opener)
		}
	}
	sort.Slice(openers, func(i, j int) bool {
		if counts[openers[i]] != counts[openers[j]] {
			return counts[openers[i]] > counts[openers[j]]
		}
		return openers[i] < openers[j]
	})
	if len(openers) > maxOpeners {
		openers = openers[:maxOpeners]
	}
	return openers
}
