package translate

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"captioner/internal/config"
	"captioner/internal/language"
	"captioner/internal/logging"
	"captioner/internal/transcript"
)

// WordTranslator is the external translation engine.
type WordTranslator interface {
	TranslateWords(ctx context.Context, words []string, target string) ([]string, error)
	TranslateWord(ctx context.Context, word, target string) (string, error)
}

// Settings bound the translation fan-out.
type Settings struct {
	MinTokenRunes int
	Concurrency   int
	BatchSize     int
}

// SettingsFromConfig copies the translation section of cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		MinTokenRunes: cfg.Translation.MinTokenRunes,
		Concurrency:   cfg.Translation.Concurrency,
		BatchSize:     cfg.Translation.BatchSize,
	}
}

// Outcome is a translated copy of a segment sequence.
type Outcome struct {
	Target        language.Target
	Segments      []transcript.Segment
	Translated    int
	PassedThrough int
	Fallbacks     int
}

// Engine translates transcripts.
type Engine struct {
	client   WordTranslator
	settings Settings
	logger   *slog.Logger
}

// NewEngine wraps client. Non-positive settings fall back to serial,
// one-word batches with a two-rune minimum.
func NewEngine(client WordTranslator, settings Settings, logger *slog.Logger) *Engine {
	if settings.MinTokenRunes <= 0 {
		settings.MinTokenRunes = 2
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = 1
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = 1
	}
	return &Engine{
		client:   client,
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "translate"),
	}
}

// Translate returns segments with every eligible word translated into
// targetCode. The input is not modified. Only an invalid target or a
// cancelled context produce an error.
func (e *Engine) Translate(ctx context.Context, segments []transcript.Segment, targetCode string) (Outcome, error) {
	target, err := language.ResolveTarget(targetCode)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Target: target, Segments: make([]transcript.Segment, len(segments))}
	copy(out.Segments, segments)

	eligible := make([]int, 0, len(segments))
	for i, seg := range segments {
		if utf8.RuneCountInString(strings.TrimSpace(seg.Word)) < e.settings.MinTokenRunes {
			out.PassedThrough++
			continue
		}
		eligible = append(eligible, i)
	}

	logger := logging.WithContext(ctx, e.logger)
	var fallbacks atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.settings.Concurrency)
	for start := 0; start < len(eligible); start += e.settings.BatchSize {
		batch := eligible[start:min(start+e.settings.BatchSize, len(eligible))]
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			words := make([]string, len(batch))
			for i, idx := range batch {
				words[i] = strings.TrimSpace(segments[idx].Word)
			}
			translated := e.translateBatch(groupCtx, logger, words, target.Display, &fallbacks)
			// Each batch writes a disjoint set of indices.
			for i, idx := range batch {
				out.Segments[idx].Word = translated[i]
			}
			return groupCtx.Err()
		})
	}
	if err := group.Wait(); err != nil {
		return Outcome{}, err
	}

	out.Fallbacks = int(fallbacks.Load())
	out.Translated = len(eligible) - out.Fallbacks
	logger.Info("transcript translated",
		logging.String("target", target.Code),
		logging.Int("translated", out.Translated),
		logging.Int("passed_through", out.PassedThrough),
		logging.Int("fallbacks", out.Fallbacks),
	)
	return out, nil
}

func (e *Engine) translateBatch(ctx context.Context, logger *slog.Logger, words []string, target string, fallbacks *atomic.Int64) []string {
	translated, err := e.client.TranslateWords(ctx, words, target)
	if err == nil && len(translated) == len(words) {
		for i := range translated {
			if strings.TrimSpace(translated[i]) == "" {
				translated[i] = words[i]
				fallbacks.Add(1)
			}
		}
		return translated
	}
	if ctx.Err() != nil {
		return words
	}
	if len(words) > 1 {
		logger.Debug("batch translation failed; translating words individually",
			logging.Int("words", len(words)),
			logging.Error(err),
		)
	}

	result := make([]string, len(words))
	for i, word := range words {
		single, err := e.client.TranslateWord(ctx, word, target)
		if err != nil || strings.TrimSpace(single) == "" {
			if ctx.Err() != nil {
				return words
			}
			fallbacks.Add(1)
			logging.WarnWithContext(logger, "word translation failed; keeping original", "translation_token_failure",
				logging.String("word", word),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the translation service; the original word is kept"),
			)
			result[i] = word
			continue
		}
		result[i] = strings.TrimSpace(single)
	}
	return result
}
