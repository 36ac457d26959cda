// File: pkg/resolver/resolver.go
// Description: The element-detection cascade. Tiers run in a fixed order and
// short-circuit on the first success; confidence values are only comparable
// within a single tier, so the cascade never compares across methods.

package resolver

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mirelock/uipilot/api/schemas"
	"github.com/mirelock/uipilot/internal/config"
)

// ErrNoSelector is returned through logs when a description carries nothing
// the cascade can act on. The resolver result itself is a plain miss.
var ErrNoSelector = errors.New("element description has no usable selector")

// Providers bundles the optional capability backends the cascade draws on.
// A nil field means the capability is unavailable and its tier is skipped.
type Providers struct {
	Capturer  schemas.ScreenCapturer
	OCR       schemas.OCREngine
	Templates schemas.TemplateMatcher
	Regions   schemas.RegionDetector
	Captioner schemas.Captioner
}

// Resolver turns an element description into stable screen coordinates with
// a typed provenance and confidence score.
type Resolver struct {
	logger    *zap.Logger
	cfg       config.ResolverConfig
	providers Providers
}

// New creates a resolver with explicit, injected providers. There are no
// package-level caches; each resolver owns exactly what it was given.
func New(logger *zap.Logger, cfg config.ResolverConfig, providers Providers) *Resolver {
	return &Resolver{
		logger:    logger.Named("resolver"),
		cfg:       cfg,
		providers: providers,
	}
}

// Resolve runs the detection cascade: accessibility, OCR, template, learned.
// Provider errors are absorbed as "tier found nothing" and logged; no error
// ever crosses this boundary. tree is the optional live accessibility handle
// for the first tier; pass nil when no live UI is attached.
func (r *Resolver) Resolve(ctx context.Context, desc schemas.ElementDescription, tree schemas.AccessibilityTree) schemas.DetectionResult {
	if !desc.HasSelector() {
		r.logger.Debug("Resolve skipped", zap.Error(ErrNoSelector))
		return schemas.NoDetection()
	}

	if result, ok := r.resolveAccessibility(ctx, desc, tree); ok {
		return result
	}
	if result, ok := r.resolveOCR(ctx, desc); ok {
		return result
	}
	if result, ok := r.resolveTemplate(ctx, desc); ok {
		return result
	}
	if result, ok := r.resolveLearned(ctx, desc); ok {
		return result
	}

	r.logger.Debug("Cascade exhausted, element not found",
		zap.String("text", desc.Text),
		zap.String("control_id", desc.ControlID),
	)
	return schemas.NoDetection()
}

// resolveAccessibility tries each populated structural selector in turn
// (id, title, role, class) and returns on the first match. Structural
// matches are authoritative: confidence 1.0.
func (r *Resolver) resolveAccessibility(ctx context.Context, desc schemas.ElementDescription, tree schemas.AccessibilityTree) (schemas.DetectionResult, bool) {
	if tree == nil || !desc.HasAccessibilitySelector() {
		return schemas.DetectionResult{}, false
	}

	queries := []schemas.ElementDescription{
		{ControlID: desc.ControlID},
		{WindowTitle: desc.WindowTitle},
		{Role: desc.Role},
		{ClassName: desc.ClassName},
	}
	for _, q := range queries {
		if !q.HasAccessibilitySelector() {
			continue
		}
		handle, err := tree.QueryAccessibility(ctx, q)
		if err != nil {
			r.logger.Debug("Accessibility query failed, continuing cascade", zap.Error(err))
			continue
		}
		if handle == nil {
			continue
		}
		center := handle.Bounds().Center()
		return schemas.DetectionResult{
			Found:      true,
			Point:      &center,
			Confidence: 1.0,
			Method:     schemas.MethodAccessibility,
		}, true
	}
	return schemas.DetectionResult{}, false
}

// resolveOCR searches recognized text regions of a fresh capture for a
// case-insensitive containment match, rejecting low-confidence recognition.
func (r *Resolver) resolveOCR(ctx context.Context, desc schemas.ElementDescription) (schemas.DetectionResult, bool) {
	if r.providers.Capturer == nil || r.providers.OCR == nil || desc.Text == "" {
		return schemas.DetectionResult{}, false
	}

	img, err := r.providers.Capturer.CaptureScreen(ctx)
	if err != nil {
		r.logger.Warn("Screen capture failed for OCR tier", zap.Error(err))
		return schemas.DetectionResult{}, false
	}
	regions, err := r.providers.OCR.RecognizeText(ctx, img)
	if err != nil {
		r.logger.Warn("OCR recognition failed", zap.Error(err))
		return schemas.DetectionResult{}, false
	}

	needle := strings.ToLower(desc.Text)
	for _, region := range regions {
		if region.Confidence < r.cfg.OCRThreshold {
			continue
		}
		if strings.Contains(strings.ToLower(region.Text), needle) {
			center := region.BBox.Center()
			return schemas.DetectionResult{
				Found:       true,
				Point:       &center,
				Confidence:  region.Confidence,
				MatchedText: region.Text,
				Method:      schemas.MethodOCR,
			}, true
		}
	}
	return schemas.DetectionResult{}, false
}

// resolveTemplate matches the template image over a fresh capture.
func (r *Resolver) resolveTemplate(ctx context.Context, desc schemas.ElementDescription) (schemas.DetectionResult, bool) {
	if r.providers.Capturer == nil || r.providers.Templates == nil || desc.TemplateRef == "" {
		return schemas.DetectionResult{}, false
	}

	img, err := r.providers.Capturer.CaptureScreen(ctx)
	if err != nil {
		r.logger.Warn("Screen capture failed for template tier", zap.Error(err))
		return schemas.DetectionResult{}, false
	}
	match, err := r.providers.Templates.MatchTemplate(ctx, img, desc.TemplateRef, r.cfg.TemplateThreshold)
	if err != nil {
		r.logger.Warn("Template matching failed", zap.Error(err))
		return schemas.DetectionResult{}, false
	}
	if match == nil || match.Confidence < r.cfg.TemplateThreshold {
		return schemas.DetectionResult{}, false
	}

	center := match.BBox.Center()
	return schemas.DetectionResult{
		Found:      true,
		Point:      &center,
		Confidence: match.Confidence,
		Method:     schemas.MethodTemplate,
	}, true
}

// resolveLearned enumerates candidate regions, captions each one, and scores
// the captions against the target text with the tiered matcher. The highest
// positive score wins; ties go to the first-seen region.
func (r *Resolver) resolveLearned(ctx context.Context, desc schemas.ElementDescription) (schemas.DetectionResult, bool) {
	if r.providers.Capturer == nil || r.providers.Regions == nil || r.providers.Captioner == nil || desc.Text == "" {
		return schemas.DetectionResult{}, false
	}

	img, err := r.providers.Capturer.CaptureScreen(ctx)
	if err != nil {
		r.logger.Warn("Screen capture failed for learned tier", zap.Error(err))
		return schemas.DetectionResult{}, false
	}
	regions, err := r.providers.Regions.DetectRegions(ctx, img)
	if err != nil {
		r.logger.Warn("Region detection failed", zap.Error(err))
		return schemas.DetectionResult{}, false
	}

	// The provider contract pre-sorts by confidence descending; a stable
	// sort enforces it without disturbing first-seen tie ordering.
	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Confidence > regions[j].Confidence
	})

	var (
		bestScore   float64
		bestRegion  schemas.Region
		bestCaption string
		found       bool
	)
	for _, region := range regions {
		caption, err := r.providers.Captioner.Caption(ctx, img, region.BBox)
		if err != nil {
			r.logger.Debug("Caption generation failed for region", zap.Error(err))
			continue
		}
		sc := scoreCaption(caption, desc.Text, r.cfg.Matching)
		if sc.tier == tierNone {
			continue
		}
		score := region.Confidence*sc.multiplier + sc.bonus
		if score > bestScore {
			bestScore = score
			bestRegion = region
			bestCaption = caption
			found = true
		}
	}
	if !found || bestScore <= 0 {
		return schemas.DetectionResult{}, false
	}

	center := bestRegion.BBox.Center()
	return schemas.DetectionResult{
		Found:       true,
		Point:       &center,
		Confidence:  bestScore,
		MatchedText: bestCaption,
		Method:      schemas.MethodLearned,
	}, true
}

// ResolveAll runs every serviceable tier without short-circuiting and
// returns each tier's candidate. Diagnostic use only; Resolve remains the
// authoritative, short-circuiting contract.
func (r *Resolver) ResolveAll(ctx context.Context, desc schemas.ElementDescription, tree schemas.AccessibilityTree) []schemas.DetectionResult {
	if !desc.HasSelector() {
		return nil
	}
	var out []schemas.DetectionResult
	if result, ok := r.resolveAccessibility(ctx, desc, tree); ok {
		out = append(out, result)
	}
	if result, ok := r.resolveOCR(ctx, desc); ok {
		out = append(out, result)
	}
	if result, ok := r.resolveTemplate(ctx, desc); ok {
		out = append(out, result)
	}
	if result, ok := r.resolveLearned(ctx, desc); ok {
		out = append(out, result)
	}
	return out
}
