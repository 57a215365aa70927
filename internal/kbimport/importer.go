// Package kbimport loads curated knowledge cards from YAML or JSON files.
package kbimport

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/english-trainer-backend/internal/domain/kb"
	"github.com/yungbote/english-trainer-backend/internal/domain/trainer"
	"github.com/yungbote/english-trainer-backend/internal/pkg/dbctx"
	"github.com/yungbote/english-trainer-backend/internal/pkg/logger"
	"github.com/yungbote/english-trainer-backend/internal/trainer/provider"
)

//go:embed samples.yaml
var sampleCards []byte

// CardSpec is one card as written in an import file. Omitted fields take
// the import defaults.
type CardSpec struct {
	Title       string `yaml:"title" json:"title"`
	Scenario    string `yaml:"scenario" json:"scenario"`
	Track       string `yaml:"track" json:"track"`
	Level       string `yaml:"level" json:"level"`
	Subskill    string `yaml:"subskill" json:"subskill"`
	RegionStyle string `yaml:"region_style" json:"region_style"`
	Content     string `yaml:"content" json:"content"`
	WhenToUse   string `yaml:"when_to_use" json:"when_to_use"`
	SourceType  string `yaml:"source_type" json:"source_type"`
	IsActive    *bool  `yaml:"is_active" json:"is_active"`
}

type CardStore interface {
	Upsert(dbc dbctx.Context, row *kb.PublicCard) (*kb.PublicCard, error)
	UpdateEmbedding(dbc dbctx.Context, id uuid.UUID, emb []float32) error
}

type EmbedScheduler interface {
	EnqueuePublicCardEmbedding(ctx context.Context, cardID uuid.UUID) error
}

type Options struct {
	// Embedder embeds inline when set; otherwise cards go to the job queue.
	Embedder    provider.EmbeddingProvider
	Queue       EmbedScheduler
	Concurrency int
}

type Result struct {
	Imported int
	Embedded int
	Enqueued int
	Skipped  []string
}

type Importer struct {
	log   *logger.Logger
	store CardStore
	opts  Options
}

func New(log *logger.Logger, store CardStore, opts Options) *Importer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Importer{log: log.With("component", "CardImporter"), store: store, opts: opts}
}

// SampleCards returns the built-in development cards.
func SampleCards() ([]CardSpec, error) {
	return Parse(sampleCards, "yaml")
}

// ReadFile parses path as JSON when it ends in .json, YAML otherwise.
func ReadFile(path string) ([]CardSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cards: %w", err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	return Parse(raw, format)
}

func Parse(raw []byte, format string) ([]CardSpec, error) {
	var specs []CardSpec
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&specs); err != nil {
			return nil, fmt.Errorf("decode json cards: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&specs); err != nil {
			return nil, fmt.Errorf("decode yaml cards: %w", err)
		}
	}
	return specs, nil
}

// ToCard applies defaults and validates vocabularies.
func (s CardSpec) ToCard() (*kb.PublicCard, error) {
	card := &kb.PublicCard{
		Title:       strings.TrimSpace(s.Title),
		Scenario:    strings.TrimSpace(s.Scenario),
		Track:       orDefault(s.Track, trainer.TrackWorkplace),
		Level:       orDefault(s.Level, trainer.LevelJunior),
		Subskill:    orDefault(s.Subskill, "general"),
		RegionStyle: orDefault(s.RegionStyle, kb.RegionEU),
		Content:     strings.TrimSpace(s.Content),
		WhenToUse:   strings.TrimSpace(s.WhenToUse),
		SourceType:  orDefault(s.SourceType, kb.SourceTemplate),
		IsActive:    s.IsActive == nil || *s.IsActive,
	}
	switch {
	case card.Title == "":
		return nil, fmt.Errorf("missing title")
	case !trainer.IsScenario(card.Scenario):
		return nil, fmt.Errorf("unknown scenario %q", card.Scenario)
	case !trainer.IsTrack(card.Track):
		return nil, fmt.Errorf("unknown track %q", card.Track)
	case !trainer.IsLevel(card.Level):
		return nil, fmt.Errorf("unknown level %q", card.Level)
	case card.Content == "":
		return nil, fmt.Errorf("missing content")
	}
	return card, nil
}

// Import upserts every valid card by (title, scenario), then embeds them.
// Invalid cards are skipped and reported; an embedding failure leaves the
// card for the backfill job.
func (im *Importer) Import(ctx context.Context, specs []CardSpec) (Result, error) {
	var res Result
	dbc := dbctx.Context{Ctx: ctx}
	var stored []*kb.PublicCard
	for i, spec := range specs {
		card, err := spec.ToCard()
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Sprintf("#%d %q: %v", i, spec.Title, err))
			continue
		}
		row, err := im.store.Upsert(dbc, card)
		if err != nil {
			return res, fmt.Errorf("upsert %q: %w", card.Title, err)
		}
		stored = append(stored, row)
		res.Imported++
	}

	if im.opts.Embedder == nil {
		for _, row := range stored {
			if im.opts.Queue == nil {
				break
			}
			if err := im.opts.Queue.EnqueuePublicCardEmbedding(ctx, row.ID); err != nil {
				im.log.Warn("enqueue card embedding failed", "card_id", row.ID, "error", err)
				continue
			}
			res.Enqueued++
		}
		return res, nil
	}

	embedded := make([]bool, len(stored))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.opts.Concurrency)
	for i, row := range stored {
		i, row := i, row
		g.Go(func() error {
			vec, err := im.opts.Embedder.EmbedText(gctx, row.EmbeddingText())
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				im.log.Warn("embed card failed", "card_id", row.ID, "error", err)
				return nil
			}
			if err := im.store.UpdateEmbedding(dbctx.Context{Ctx: gctx}, row.ID, vec); err != nil {
				return fmt.Errorf("store embedding for %q: %w", row.Title, err)
			}
			embedded[i] = true
			return nil
		})
	}
	err := g.Wait()
	for _, ok := range embedded {
		if ok {
			res.Embedded++
		}
	}
	return res, err
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
