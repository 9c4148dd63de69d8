package ingest

import (
	"strings"

	"github.com/WessleyAI/article-indexer/engine/cms"
	"github.com/WessleyAI/article-indexer/engine/domain"
	"github.com/WessleyAI/article-indexer/pkg/fn"
)

// thumbSlots are the promo item keys probed for a thumbnail, in priority order.
var thumbSlots = []string{"basic", "lead_art", "square1x1"}

// ExtractMetadata derives the canonical metadata record from a raw document.
// It never fails: fields that cannot be resolved are left empty.
func ExtractMetadata(raw cms.RawDocument) domain.Metadata {
	website := cms.First(raw.CanonicalWebsite, raw.Website)
	md := domain.Metadata{
		Title:            nonBlank(string(raw.Headlines.Basic)),
		URL:              BuildURL(cms.First(raw.CanonicalURL, raw.WebsiteURL), website),
		ExternalID:       string(raw.ID),
		PublishDate:      nonBlank(string(raw.PublishDate)),
		Datetime:         nonBlank(cms.First(raw.DisplayDate, raw.PublishDate)),
		FirstPublishDate: nonBlank(string(raw.FirstPublishDate)),
		Website:          nonBlank(website),
		Sections:         DedupePreserve(CollectNames(raw.Taxonomy.Sections)),
		Categories:       DedupePreserve(CollectNames(raw.Taxonomy.Categories)),
		Tags:             DedupePreserve(fn.Map(CollectNames(raw.Taxonomy.Tags), stripMention)),
	}
	for _, slot := range thumbSlots {
		if url := nonBlank(string(raw.PromoItems[slot].URL)); url != "" {
			md.Thumb = url
			break
		}
	}
	return md
}

// BuildURL resolves an article URL. Absolute candidates are returned as is;
// relative ones are joined to https://www.{website}.com when a website is
// known and returned unchanged otherwise.
func BuildURL(candidate, website string) string {
	switch {
	case candidate == "":
		return ""
	case strings.HasPrefix(candidate, "http"):
		return candidate
	case website != "":
		return "https://www." + website + ".com" + candidate
	default:
		return candidate
	}
}

// CollectNames maps taxonomy items to their display labels.
func CollectNames(items []cms.TaxonomyItem) []string {
	return fn.Map(items, cms.TaxonomyItem.Label)
}

// DedupePreserve drops blank values and duplicates, keeping the first
// occurrence of each value in order. The result is never nil.
func DedupePreserve(values []string) []string {
	kept := fn.Filter(values, func(v string) bool { return strings.TrimSpace(v) != "" })
	out := fn.Unique(kept)
	if out == nil {
		return []string{}
	}
	return out
}

func stripMention(tag string) string {
	return strings.TrimLeft(tag, "@")
}

func nonBlank(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}
