package game

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BenhadineKaoutar/picorpixel/internal/store"
)

const poolKey = "images:pool"

// ImagePool reads the validated admin image set. Upload, validation and
// curation happen in the admin tooling; this side only selects from the
// stored pool and falls back to synthesized placeholders when it is empty.
type ImagePool struct {
	kv store.KV
}

func NewImagePool(kv store.KV) *ImagePool {
	return &ImagePool{kv: kv}
}

// Images returns the full validated pool, or nil when none is stored.
func (p *ImagePool) Images(ctx context.Context) ([]GameImage, error) {
	raw, err := p.kv.Get(ctx, poolKey)
	if err != nil {
		return nil, fmt.Errorf("load image pool: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var images []GameImage
	if err := json.Unmarshal(raw, &images); err != nil {
		return nil, fmt.Errorf("decode image pool: %w", err)
	}
	return images, nil
}

// Placeholders synthesizes a balanced image set for environments without a
// curated pool. Half the images are labeled AI-generated.
func Placeholders(n int) []GameImage {
	if n <= 0 {
		return nil
	}
	images := make([]GameImage, 0, n)
	for i := 0; i < n; i++ {
		ai := i%2 == 1
		label := "photograph"
		if ai {
			label = "generated render"
		}
		images = append(images, GameImage{
			ID:            fmt.Sprintf("placeholder-%d", i+1),
			URL:           fmt.Sprintf("https://picsum.photos/seed/picorpixel-%d/800/600", i+1),
			IsAIGenerated: ai,
			Difficulty:    "medium",
			Source:        "placeholder",
			Explanation:   fmt.Sprintf("Placeholder %s used while the curated pool is empty.", label),
		})
	}
	return images
}
