package translation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/voxlate/internal/events"
	"horse.fit/voxlate/internal/language"
)

const (
	UsageTranslationSuccess = "translation_success"
	UsageTranslationError   = "translation_error"

	// DefaultTestText is translated from English to Arabic by provider tests.
	DefaultTestText = "Hello, world!"
)

// UsageRecorder receives one event per completed translate call.
type UsageRecorder interface {
	Record(ctx context.Context, eventType string, data map[string]any)
}

// Preferences selects the primary provider and whether to fall back.
type Preferences struct {
	PrimaryAPI     string
	EnableFallback bool
}

type OrchestratorOptions struct {
	Bus             *events.Bus
	Usage           UsageRecorder
	Logger          zerolog.Logger
	Preferences     Preferences
	ProviderTimeout time.Duration
}

// ProviderInfo describes a provider currently able to serve requests.
type ProviderInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	CanDetect   bool   `json:"canDetect"`
}

// ProviderTestResult is one entry of TestAllProviders.
type ProviderTestResult struct {
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

type namedDetector struct {
	name     string
	detector Detector
}

// Orchestrator selects among registered providers and aggregates their results.
type Orchestrator struct {
	registry *Registry
	bus      *events.Bus
	usage    UsageRecorder
	logger   zerolog.Logger
	timeout  time.Duration

	mu        sync.RWMutex
	prefs     Preferences
	detectors []namedDetector
}

func NewOrchestrator(registry *Registry, opts OrchestratorOptions) *Orchestrator {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Orchestrator{
		registry: registry,
		bus:      opts.Bus,
		usage:    opts.Usage,
		logger:   opts.Logger,
		timeout:  opts.ProviderTimeout,
		prefs:    opts.Preferences,
	}
}

// Registry returns the provider registry backing the orchestrator.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Preferences returns the active primary/fallback selection.
func (o *Orchestrator) Preferences() Preferences {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.prefs
}

// Apply replaces the preferences and re-configures every provider. Providers
// missing from configs receive an empty configuration.
func (o *Orchestrator) Apply(prefs Preferences, configs map[string]ProviderConfig) {
	o.mu.Lock()
	o.prefs = prefs
	o.mu.Unlock()

	for _, provider := range o.registry.Providers() {
		configurable, ok := provider.(Configurable)
		if !ok {
			continue
		}
		configurable.Configure(configs[normalizeProviderName(provider.Name())])
	}
	o.logger.Info().
		Str("primary", prefs.PrimaryAPI).
		Bool("fallback", prefs.EnableFallback).
		Msg("translation providers configured")
}

// AddDetector registers a detector that is not a translation provider.
func (o *Orchestrator) AddDetector(name string, detector Detector) {
	if detector == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.detectors = append(o.detectors, namedDetector{name: name, detector: detector})
}

// Translate runs the primary provider and, when enabled, the fallback chain.
// The first success wins.
func (o *Orchestrator) Translate(ctx context.Context, req Request) (*Result, error) {
	normalized, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}
	textLength := utf8.RuneCountInString(req.Text)

	result, err := o.translateChain(ctx, normalized)
	if err != nil {
		o.logger.Warn().Err(err).
			Str("source_lang", normalized.SourceLang).
			Str("target_lang", normalized.TargetLang).
			Msg("translation failed")
		events.Publish(o.bus, TopicTranslationError, ErrorEvent{
			Error:      err.Error(),
			SourceLang: normalized.SourceLang,
			TargetLang: normalized.TargetLang,
			UserID:     normalized.UserID,
		})
		o.record(ctx, UsageTranslationError, map[string]any{
			"error":      err.Error(),
			"textLength": textLength,
			"sourceLang": normalized.SourceLang,
			"targetLang": normalized.TargetLang,
			"userId":     normalized.UserID,
		})
		return nil, err
	}

	events.Publish(o.bus, TopicTranslationCompleted, CompletedEvent{
		Text:       normalized.Text,
		SourceLang: normalized.SourceLang,
		TargetLang: normalized.TargetLang,
		TextLength: textLength,
		UserID:     normalized.UserID,
		Result:     *result,
	})
	o.record(ctx, UsageTranslationSuccess, map[string]any{
		"api":        result.API,
		"textLength": textLength,
		"sourceLang": normalized.SourceLang,
		"targetLang": normalized.TargetLang,
		"confidence": result.Confidence,
		"userId":     normalized.UserID,
	})
	return result, nil
}

func (o *Orchestrator) translateChain(ctx context.Context, req Request) (*Result, error) {
	prefs := o.Preferences()
	primary := normalizeProviderName(prefs.PrimaryAPI)
	if primary == "" {
		primary = DefaultPrimaryProvider
	}

	result, attemptErr := o.attempt(ctx, primary, req)
	if attemptErr == nil {
		return result, nil
	}
	if !prefs.EnableFallback {
		return nil, attemptErr
	}

	attempts := []*AttemptError{attemptErr}
	for _, name := range FallbackChain {
		if name == primary {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("translation canceled after %d attempts: %w", len(attempts), err)
		}
		result, attemptErr = o.attempt(ctx, name, req)
		if attemptErr == nil {
			o.logger.Info().
				Str("primary", primary).
				Str("provider", name).
				Int("failed_attempts", len(attempts)).
				Msg("translation served by fallback provider")
			return result, nil
		}
		attempts = append(attempts, attemptErr)
	}
	return nil, &ChainError{Attempts: attempts}
}

// attempt calls one provider and converts every failure, including panics
// and unavailable providers, into an AttemptError.
func (o *Orchestrator) attempt(ctx context.Context, name string, req Request) (result *Result, attemptErr *AttemptError) {
	provider, err := o.registry.Provider(name)
	if err != nil {
		return nil, &AttemptError{Provider: name, Err: ErrUnknownProvider}
	}
	if !provider.Available() {
		return nil, &AttemptError{Provider: name, Err: ErrProviderUnavailable}
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			result = nil
			attemptErr = &AttemptError{Provider: name, Err: fmt.Errorf("provider panicked: %v", recovered)}
		}
	}()

	callCtx, cancel := o.providerContext(ctx)
	defer cancel()

	raw, err := provider.Translate(callCtx, req)
	if err != nil {
		return nil, &AttemptError{Provider: name, Err: err}
	}
	if raw == nil || strings.TrimSpace(raw.Translation) == "" {
		return nil, &AttemptError{Provider: name, Err: ErrEmptyTranslation}
	}
	return finalizeResult(name, raw), nil
}

// TranslateAll queries every available provider concurrently and returns
// the successful results. Individual failures are logged and dropped.
func (o *Orchestrator) TranslateAll(ctx context.Context, req Request) ([]Result, error) {
	normalized, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	providers := o.availableProviders()
	results := make([]*Result, len(providers))
	var group errgroup.Group
	for i, provider := range providers {
		name := normalizeProviderName(provider.Name())
		group.Go(func() error {
			result, attemptErr := o.attempt(ctx, name, normalized)
			if attemptErr != nil {
				o.logger.Debug().Err(attemptErr).Str("provider", name).Msg("provider dropped from aggregation")
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = group.Wait()

	out := make([]Result, 0, len(results))
	for _, result := range results {
		if result != nil {
			out = append(out, *result)
		}
	}
	return out, nil
}

// DetectLanguage queries every available detector concurrently and returns
// the detection with the highest confidence. Ties keep registration order.
func (o *Orchestrator) DetectLanguage(ctx context.Context, text string) (*Detection, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	detectors := o.availableDetectors()
	if len(detectors) == 0 {
		return nil, fmt.Errorf("no detectors available: %w", ErrDetectionFailed)
	}

	detections := make([]*Detection, len(detectors))
	failures := make([]error, len(detectors))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, candidate := range detectors {
		group.Go(func() error {
			detection, err := o.detect(groupCtx, candidate, text)
			if err != nil {
				failures[i] = &AttemptError{Provider: candidate.name, Err: err}
				return nil
			}
			detections[i] = detection
			return nil
		})
	}
	_ = group.Wait()

	var best *Detection
	for _, detection := range detections {
		if detection == nil {
			continue
		}
		if best == nil || detection.Confidence > best.Confidence {
			best = detection
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %w", ErrDetectionFailed, errors.Join(failures...))
	}
	return best, nil
}

func (o *Orchestrator) detect(ctx context.Context, candidate namedDetector, text string) (detection *Detection, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			detection = nil
			err = fmt.Errorf("detector panicked: %v", recovered)
		}
	}()

	callCtx, cancel := o.providerContext(ctx)
	defer cancel()

	detection, err = candidate.detector.DetectLanguage(callCtx, text)
	if err != nil {
		return nil, err
	}
	if detection == nil || strings.TrimSpace(detection.Language) == "" {
		return nil, fmt.Errorf("empty detection")
	}
	out := *detection
	if out.API == "" {
		out.API = candidate.name
	}
	out.Language = language.NormalizeTag(out.Language)
	out.Confidence = clampConfidence(out.Confidence)
	return &out, nil
}

// AvailableProviders lists providers that can currently serve requests.
func (o *Orchestrator) AvailableProviders() []ProviderInfo {
	providers := o.availableProviders()
	out := make([]ProviderInfo, 0, len(providers))
	for _, provider := range providers {
		_, canDetect := provider.(Detector)
		name := normalizeProviderName(provider.Name())
		out = append(out, ProviderInfo{
			Name:        name,
			DisplayName: DisplayName(name),
			CanDetect:   canDetect,
		})
	}
	return out
}

// TestProvider translates text from English to Arabic with one provider,
// bypassing the fallback chain, events and usage counters.
func (o *Orchestrator) TestProvider(ctx context.Context, name, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultTestText
	}
	provider, err := o.registry.Provider(name)
	if err != nil {
		return nil, err
	}
	if !provider.Available() {
		return nil, fmt.Errorf("%s: %w", DisplayName(name), ErrProviderUnavailable)
	}

	result, attemptErr := o.attempt(ctx, normalizeProviderName(provider.Name()), Request{
		Text:       strings.TrimSpace(text),
		SourceLang: "en",
		TargetLang: "ar",
	})
	if attemptErr != nil {
		return nil, attemptErr
	}
	return result, nil
}

// TestAllProviders runs TestProvider against every registered provider in
// registration order. Unavailable providers are reported as errors.
func (o *Orchestrator) TestAllProviders(ctx context.Context, text string) map[string]ProviderTestResult {
	out := make(map[string]ProviderTestResult)
	for _, name := range o.registry.ProviderNames() {
		result, err := o.TestProvider(ctx, name, text)
		if err != nil {
			out[name] = ProviderTestResult{Error: err.Error()}
			continue
		}
		out[name] = ProviderTestResult{Result: result}
	}
	return out
}

// ListenForRequests serves TopicTranslationRequested events until the
// returned function is called. Successes are published on
// TopicTranslationResult; failures are already published by Translate.
func (o *Orchestrator) ListenForRequests(ctx context.Context) func() {
	return events.Subscribe(o.bus, TopicTranslationRequested, func(event RequestedEvent) {
		result, err := o.Translate(ctx, Request{
			Text:       event.Text,
			SourceLang: event.SourceLang,
			TargetLang: event.TargetLang,
			UserID:     event.UserID,
		})
		if err != nil {
			if IsValidationError(err) {
				events.Publish(o.bus, TopicTranslationError, ErrorEvent{
					Error:      err.Error(),
					SourceLang: event.SourceLang,
					TargetLang: event.TargetLang,
					UserID:     event.UserID,
				})
			}
			return
		}
		events.Publish(o.bus, TopicTranslationResult, *result)
	})
}

func (o *Orchestrator) availableProviders() []Provider {
	all := o.registry.Providers()
	out := make([]Provider, 0, len(all))
	for _, provider := range all {
		if provider.Available() {
			out = append(out, provider)
		}
	}
	return out
}

func (o *Orchestrator) availableDetectors() []namedDetector {
	var out []namedDetector
	for _, provider := range o.availableProviders() {
		if detector, ok := provider.(Detector); ok {
			out = append(out, namedDetector{name: normalizeProviderName(provider.Name()), detector: detector})
		}
	}
	o.mu.RLock()
	out = append(out, o.detectors...)
	o.mu.RUnlock()
	return out
}

func (o *Orchestrator) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}

func (o *Orchestrator) record(ctx context.Context, eventType string, data map[string]any) {
	if o.usage == nil {
		return
	}
	o.usage.Record(ctx, eventType, data)
}

func normalizeRequest(req Request) (Request, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Request{}, ErrEmptyText
	}
	target := language.NormalizeTag(req.TargetLang)
	if target == "" || target == language.Auto {
		return Request{}, ErrTargetLanguageRequired
	}
	return Request{
		Text:       text,
		SourceLang: language.NormalizeSource(req.SourceLang),
		TargetLang: target,
		Options:    req.Options,
		UserID:     strings.TrimSpace(req.UserID),
	}, nil
}

func finalizeResult(name string, raw *Result) *Result {
	out := *raw
	out.Success = true
	out.API = name
	out.Translation = strings.TrimSpace(out.Translation)
	out.Confidence = clampConfidence(out.Confidence)
	if out.Alternatives == nil {
		out.Alternatives = []string{}
	} else {
		out.Alternatives = append([]string(nil), out.Alternatives...)
	}
	return &out
}

func clampConfidence(value float64) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
