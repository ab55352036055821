package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/greengrowth/taxagent/internal/config"
	"github.com/greengrowth/taxagent/internal/core/ports"
	"github.com/greengrowth/taxagent/internal/core/tax"
	"github.com/greengrowth/taxagent/internal/core/usecase"
	"github.com/greengrowth/taxagent/internal/infrastructure/docstore/memory"
	"github.com/greengrowth/taxagent/internal/infrastructure/extraction/gemini"
	"github.com/greengrowth/taxagent/internal/infrastructure/extraction/openaicompat"
	"github.com/greengrowth/taxagent/internal/infrastructure/formfill/summary"
	"github.com/greengrowth/taxagent/internal/infrastructure/formfill/workbook"
	"github.com/greengrowth/taxagent/internal/infrastructure/resilience"
	"github.com/greengrowth/taxagent/internal/infrastructure/textextract/pdftext"
	"github.com/greengrowth/taxagent/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Processor      ports.ReturnProcessor
	FieldExtractor ports.FieldExtractor
	NewStore       func() ports.DocumentStore
	Populators     map[string]ports.FormPopulator
	Metrics        *metrics.HTTPServerMetrics
}

func New(cfg config.Config) (*App, error) {
	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:        cfg.RetryMaxAttempts,
		RetryInitialBackoff:     time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:         time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond,
		RetryMultiplier:         2.0,
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(cfg.BreakerMinRequests),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      time.Duration(cfg.BreakerOpenTimeoutSec) * time.Second,
		BreakerHalfOpenMaxCalls: uint32(cfg.BreakerHalfOpenMaxCalls),
	})

	fieldExtractor, err := buildFieldExtractor(cfg, executor)
	if err != nil {
		return nil, err
	}

	tables, err := tax.LoadTables()
	if err != nil {
		return nil, fmt.Errorf("load tax tables: %w", err)
	}
	engine := tax.NewEngine(tables)

	processor := usecase.NewProcessReturnUseCase(
		pdftext.New(),
		fieldExtractor,
		engine,
		cfg.MaxConcurrentExtractions,
	)

	return &App{
		Config:         cfg,
		Processor:      processor,
		FieldExtractor: fieldExtractor,
		NewStore:       func() ports.DocumentStore { return memory.New() },
		Populators: map[string]ports.FormPopulator{
			"summary":  summary.New(),
			"workbook": workbook.New(),
		},
		Metrics: metrics.NewHTTPServerMetrics("taxagent-api"),
	}, nil
}

func buildFieldExtractor(cfg config.Config, executor *resilience.Executor) (ports.FieldExtractor, error) {
	switch strings.ToLower(cfg.ExtractionProvider) {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
		limiter := rate.NewLimiter(rate.Limit(cfg.ExtractionRateLimitRPS), cfg.ExtractionRateLimitBurst)
		return gemini.New(gemini.Config{
			BaseURL: cfg.GeminiAPIURL,
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		}, limiter, executor), nil
	case "openai":
		return openaicompat.New(openaicompat.Config{
			BaseURL: cfg.OpenAIBaseURL,
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
		}, executor), nil
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.ExtractionProvider)
	}
}
