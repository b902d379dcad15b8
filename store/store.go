package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/maastricht-university/alignment-qc/measure"
	"github.com/maastricht-university/alignment-qc/quality"
)

// ErrRunNotFound is returned by Report for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

const batchSize = 500

type Store struct{ db *gorm.DB }

// Open connects to dsn and migrates the schema. postgres:// and mysql
// prefixes pick those dialects; anything else is a SQLite path (or
// ":memory:").
func Open(dsn string) (*Store, error) {
	dial, isSQLite := getDialector(dsn)
	if isSQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if isSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// one connection keeps ":memory:" a single database
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}
	if err := db.AutoMigrate(&Run{}, &Phoneme{}, &Word{}, &Issue{}); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return &Store{db: db}, nil
}

// getDialector returns the dialector and whether it is SQLite.
func getDialector(dsn string) (gorm.Dialector, bool) {
	switch {
	case strings.HasPrefix(dsn, "postgres"):
		return postgres.Open(dsn), false
	case strings.HasPrefix(dsn, "mysql://"):
		return mysql.Open(strings.TrimPrefix(dsn, "mysql://")), false
	default:
		return sqlite.Open(dsn), true
	}
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRun writes the dataset, the report and its issues in one transaction.
func (s *Store) SaveRun(ctx context.Context, runID string, d *measure.Dataset, r *quality.Report) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	run := Run{
		ID:            runID,
		GeneratedAt:   r.GeneratedAt,
		TotalUnits:    r.TotalUnits,
		TotalPhonemes: r.TotalPhonemes,
		TotalWords:    r.TotalWords,
		FlaggedUnits:  r.FlaggedUnits,
		TotalIssues:   r.TotalIssues,
		ErrorRate:     r.ErrorRate,
		Verdict:       string(r.Verdict),
		Skipped:       len(r.Skipped),
		Report:        string(raw),
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		if ps := phonemeRows(runID, d.Phonemes); len(ps) > 0 {
			if err := tx.CreateInBatches(ps, batchSize).Error; err != nil {
				return err
			}
		}
		if ws := wordRows(runID, d.Words); len(ws) > 0 {
			if err := tx.CreateInBatches(ws, batchSize).Error; err != nil {
				return err
			}
		}
		if is := issueRows(runID, r.Issues); len(is) > 0 {
			if err := tx.CreateInBatches(is, batchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Reports lists stored runs, newest first.
func (s *Store) Reports(ctx context.Context) ([]Run, error) {
	var out []Run
	err := s.db.WithContext(ctx).Omit("report").Order("generated_at DESC, id").Find(&out).Error
	return out, err
}

// Report decodes the full report of one run.
func (s *Store) Report(ctx context.Context, runID string) (*quality.Report, error) {
	var run Run
	err := s.db.WithContext(ctx).Where("id = ?", runID).Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	var r quality.Report
	if err := json.Unmarshal([]byte(run.Report), &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", runID, err)
	}
	return &r, nil
}

// Phonemes loads the phoneme rows of a run in recording and tier order.
func (s *Store) Phonemes(ctx context.Context, runID string) ([]Phoneme, error) {
	var out []Phoneme
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("recording, idx").Find(&out).Error
	return out, err
}

// IssueCounts returns issue totals per category for a run.
func (s *Store) IssueCounts(ctx context.Context, runID string) (map[string]int, error) {
	var rows []struct {
		Category string
		N        int
	}
	err := s.db.WithContext(ctx).Model(&Issue{}).
		Select("category, count(*) as n").
		Where("run_id = ?", runID).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Category] = r.N
	}
	return out, nil
}

func phonemeRows(runID string, ps []measure.PhonemeMeasurement) []Phoneme {
	out := make([]Phoneme, len(ps))
	for i, p := range ps {
		out[i] = Phoneme{
			RunID:         runID,
			Recording:     p.Recording,
			Index:         p.Index,
			Label:         p.Label,
			Start:         p.Start,
			End:           p.End,
			Duration:      p.Duration,
			IsVowel:       p.Vowel,
			Class:         string(p.Class),
			F1:            p.F1,
			F2:            p.F2,
			F3:            p.F3,
			PitchMean:     p.PitchMean,
			PitchSD:       p.PitchSD,
			PitchMin:      p.PitchMin,
			PitchMax:      p.PitchMax,
			IntensityMean: p.IntensityMean,
			IntensitySD:   p.IntensitySD,
		}
	}
	return out
}

func wordRows(runID string, ws []measure.WordMeasurement) []Word {
	out := make([]Word, len(ws))
	for i, w := range ws {
		out[i] = Word{
			RunID:     runID,
			Recording: w.Recording,
			Index:     w.Index,
			Label:     w.Label,
			Start:     w.Start,
			End:       w.End,
			Duration:  w.Duration,
		}
	}
	return out
}

func issueRows(runID string, is []quality.Issue) []Issue {
	out := make([]Issue, len(is))
	for i, x := range is {
		k := x.Primary()
		out[i] = Issue{
			RunID:       runID,
			Category:    string(x.Category),
			Type:        x.Type,
			Severity:    string(x.Severity),
			Recording:   k.Recording,
			UnitKind:    string(k.Kind),
			UnitLabel:   k.Label,
			UnitStart:   k.Start,
			Refs:        len(x.Refs),
			Description: x.Description,
		}
	}
	return out
}
