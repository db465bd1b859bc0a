// Package seed loads PREDEFINED response templates from a YAML file and
// upserts them into the store at startup.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/guardrails/internal/core/domain"
	"github.com/artpar/guardrails/internal/shell/store"
)

var (
	// ErrEmptyInput is returned when the seed file has no content.
	ErrEmptyInput = errors.New("seed file is empty")

	// ErrInvalidEntry is returned when an entry fails validation.
	ErrInvalidEntry = errors.New("invalid seed entry")
)

// File is the on-disk seed format:
//
//	response_templates:
//	  - response: "I'm sorry, but I can't help with that request."
//	    description: Generic refusal
type File struct {
	ResponseTemplates []Entry `yaml:"response_templates"`
}

// Entry is one PREDEFINED response template.
type Entry struct {
	Response    string `yaml:"response"`
	Description string `yaml:"description"`
}

// Parse decodes and validates seed content. Responses must be non-empty,
// unique within the file, and descriptions within the length limit.
func Parse(content []byte) (*File, error) {
	if strings.TrimSpace(string(content)) == "" {
		return nil, ErrEmptyInput
	}

	var f File
	if err := yaml.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	seen := make(map[string]int, len(f.ResponseTemplates))
	for i, e := range f.ResponseTemplates {
		if err := domain.ValidateResponse(e.Response); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidEntry, i, err)
		}
		if err := domain.ValidateDescription(e.Description); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidEntry, i, err)
		}
		if prev, ok := seen[e.Response]; ok {
			return nil, fmt.Errorf("%w: entry %d duplicates entry %d", ErrInvalidEntry, i, prev)
		}
		seen[e.Response] = i
	}
	return &f, nil
}

// Load reads and parses the seed file at path.
func Load(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(content)
}

// Upserter is the store surface needed to apply a seed file.
type Upserter interface {
	UpsertPredefinedTemplate(ctx context.Context, response, description string) (bool, error)
	WithTx(ctx context.Context, fn func(store.Store) error) error
}

// Result counts what Apply changed.
type Result struct {
	Inserted int
	Existing int
}

// Apply upserts every entry in one transaction. Existing PREDEFINED templates
// keep their id and get the file's description.
func Apply(ctx context.Context, s Upserter, f *File, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var res Result
	err := s.WithTx(ctx, func(tx store.Store) error {
		res = Result{}
		for _, e := range f.ResponseTemplates {
			inserted, err := tx.UpsertPredefinedTemplate(ctx, e.Response, e.Description)
			if err != nil {
				return err
			}
			if inserted {
				res.Inserted++
			} else {
				res.Existing++
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("apply seed: %w", err)
	}

	logger.Info("predefined response templates seeded", "inserted", res.Inserted, "existing", res.Existing)
	return res, nil
}
