package pos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/seed"
)

const posSeedApplication = "pos"

type bootstrapSeedDocument struct {
	Sections []sectionSeed `json:"sections"`
	Tables   []tableSeed   `json:"tables"`
}

type sectionSeed struct {
	Name      string `json:"name"`
	Color     string `json:"color"`
	SortOrder int    `json:"sort_order"`
}

type tableSeed struct {
	Name     string  `json:"name"`
	Section  string  `json:"section"`
	Capacity int     `json:"capacity"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

func loadSeeds(seedFS fs.FS) (bootstrapSeedDocument, error) {
	seedBytes, err := fs.ReadFile(seedFS, "seed.json")
	if err != nil {
		return bootstrapSeedDocument{}, fmt.Errorf("read seed.json: %w", err)
	}

	if len(seedBytes) == 0 {
		return bootstrapSeedDocument{}, errors.New("pos seed file is empty")
	}

	var doc bootstrapSeedDocument
	if err := json.Unmarshal(seedBytes, &doc); err != nil {
		return bootstrapSeedDocument{}, fmt.Errorf("decode pos seed file: %w", err)
	}

	if len(doc.Sections) == 0 || len(doc.Tables) == 0 {
		return bootstrapSeedDocument{}, errors.New("pos seed file needs sections and tables")
	}

	return doc, nil
}

// ApplySeeds ensures the floor plan from seed.json exists.
func ApplySeeds(ctx context.Context, tracker seed.Tracker, repos Repos, seedFS fs.FS, logger aqm.Logger) error {
	if repos.SectionRepo == nil || repos.TableRepo == nil {
		return errors.New("section and table repositories are required")
	}

	doc, err := loadSeeds(seedFS)
	if err != nil {
		return err
	}

	defs := buildSeedDefinitions(doc, repos, logger)
	if len(defs) == 0 {
		logger.Info("No pos seeds to apply")
		return nil
	}

	logger.Info("Applying pos seeds")
	if err := seed.Apply(ctx, tracker, defs, posSeedApplication); err != nil {
		return err
	}
	logger.Info("Pos seeds applied successfully")
	return nil
}

func buildSeedDefinitions(doc bootstrapSeedDocument, repos Repos, logger aqm.Logger) []seed.Seed {
	var defs []seed.Seed

	for _, s := range doc.Sections {
		seedData := s
		if strings.TrimSpace(seedData.Name) == "" {
			logger.Info("Skipping seed section with empty name")
			continue
		}
		defs = append(defs, seed.Seed{
			ID:          fmt.Sprintf("2026-10-01_section_%s", seedIdentifier(seedData.Name)),
			Description: fmt.Sprintf("Ensure section %s exists", seedData.Name),
			Run: func(ctx context.Context) error {
				return seedData.ensureSection(ctx, repos.SectionRepo, logger)
			},
		})
	}

	for _, t := range doc.Tables {
		seedData := t
		if strings.TrimSpace(seedData.Name) == "" {
			logger.Info("Skipping seed table with empty name")
			continue
		}
		defs = append(defs, seed.Seed{
			ID:          fmt.Sprintf("2026-10-01_table_%s", seedIdentifier(seedData.Name)),
			Description: fmt.Sprintf("Ensure table %s exists", seedData.Name),
			Run: func(ctx context.Context) error {
				return seedData.ensureTable(ctx, repos, logger)
			},
		})
	}

	return defs
}

func seedIdentifier(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}

	replacer := strings.NewReplacer("-", "_", " ", "_", "/", "_", "\\", "_")
	value = replacer.Replace(value)

	var builder strings.Builder
	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			builder.WriteRune(r)
		}
	}

	result := builder.String()
	if result == "" {
		return "seed"
	}
	return result
}

func (s sectionSeed) ensureSection(ctx context.Context, repo SectionRepo, logger aqm.Logger) error {
	existing, err := findSection(ctx, repo, s.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		logger.Info("Seed section already exists", "name", s.Name)
		return nil
	}

	section := &Section{
		Name:      s.Name,
		Color:     s.Color,
		SortOrder: s.SortOrder,
	}
	section.SetID(aqm.GenerateNewID())

	if err := repo.Create(ctx, section); err != nil {
		return fmt.Errorf("create seed section %s: %w", s.Name, err)
	}

	logger.Info("Seed section created", "name", s.Name, "id", section.ID.String())
	return nil
}

func (s tableSeed) ensureTable(ctx context.Context, repos Repos, logger aqm.Logger) error {
	existing, err := repos.TableRepo.GetByName(ctx, s.Name)
	if err != nil {
		return fmt.Errorf("look up seed table %s: %w", s.Name, err)
	}
	if existing != nil {
		logger.Info("Seed table already exists", "name", s.Name)
		return nil
	}

	section, err := findSection(ctx, repos.SectionRepo, s.Section)
	if err != nil {
		return err
	}
	if section == nil {
		return fmt.Errorf("seed table %s references unknown section %q", s.Name, s.Section)
	}

	table := NewTable()
	table.SectionID = section.ID
	table.Name = s.Name
	table.Capacity = s.Capacity
	table.Position = Position{X: s.X, Y: s.Y}
	table.BeforeCreate()

	if err := repos.TableRepo.Create(ctx, table); err != nil {
		return fmt.Errorf("create seed table %s: %w", s.Name, err)
	}

	logger.Info("Seed table created", "name", s.Name, "id", table.ID.String())
	return nil
}

func findSection(ctx context.Context, repo SectionRepo, name string) (*Section, error) {
	sections, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list existing sections: %w", err)
	}
	for _, existing := range sections {
		if strings.EqualFold(existing.Name, name) {
			return existing, nil
		}
	}
	return nil, nil
}

// SeedingFunc returns an aqm lifecycle OnStart-compatible function which
// starts applying pos seeds in the background.
func SeedingFunc(seedCtx context.Context, tracker seed.Tracker, repos Repos, seedFS fs.FS, logger aqm.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	return func(ctx context.Context) error {
		logger.Info("Starting pos seeding in background")
		go func() {
			if err := ApplySeeds(seedCtx, tracker, repos, seedFS, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("Pos seeds failed: %v", err)
			} else if err == nil {
				logger.Info("Pos seeding completed successfully")
			}
		}()
		return nil
	}
}

// StopFunc returns an aqm lifecycle OnStop-compatible function which calls
// the provided cancel function to stop any background seeding goroutine.
func StopFunc(cancelFunc context.CancelFunc) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if cancelFunc != nil {
			cancelFunc()
		}
		return nil
	}
}
