package measure

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

const (
	PhonemeTableFile = "phoneme_measurements.csv"
	WordTableFile    = "word_measurements.csv"
)

var phonemeColumns = []string{
	"file", "index", "phoneme", "start_time", "end_time", "duration", "is_vowel",
	"f1_mean", "f2_mean", "f3_mean",
	"f0_mean", "f0_std", "f0_min", "f0_max",
	"intensity_mean", "intensity_std",
}

var wordColumns = []string{"file", "index", "word", "start_time", "end_time", "duration"}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func formatOpt(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func WritePhonemes(w io.Writer, rows []PhonemeMeasurement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(phonemeColumns); err != nil {
		return err
	}
	for _, m := range rows {
		rec := []string{
			m.Recording, strconv.Itoa(m.Index), m.Label,
			formatFloat(m.Start), formatFloat(m.End), formatFloat(m.Duration),
			strconv.FormatBool(m.Vowel),
			formatOpt(m.F1), formatOpt(m.F2), formatOpt(m.F3),
			formatOpt(m.PitchMean), formatOpt(m.PitchSD), formatOpt(m.PitchMin), formatOpt(m.PitchMax),
			formatOpt(m.IntensityMean), formatOpt(m.IntensitySD),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteWords(w io.Writer, rows []WordMeasurement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(wordColumns); err != nil {
		return err
	}
	for _, m := range rows {
		rec := []string{
			m.Recording, strconv.Itoa(m.Index), m.Label,
			formatFloat(m.Start), formatFloat(m.End), formatFloat(m.Duration),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTables writes both measurement tables into dir.
func WriteTables(dir string, d *Dataset) error {
	if err := writeFile(filepath.Join(dir, PhonemeTableFile), func(w io.Writer) error {
		return WritePhonemes(w, d.Phonemes)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, WordTableFile), func(w io.Writer) error {
		return WriteWords(w, d.Words)
	})
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// ReadTables loads the tables written by WriteTables.
func ReadTables(dir string, c Classifier) (*Dataset, error) {
	pf, err := os.Open(filepath.Join(dir, PhonemeTableFile))
	if err != nil {
		return nil, err
	}
	defer pf.Close()
	phonemes, err := ReadPhonemes(pf, c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PhonemeTableFile, err)
	}

	wf, err := os.Open(filepath.Join(dir, WordTableFile))
	if err != nil {
		return nil, err
	}
	defer wf.Close()
	words, err := ReadWords(wf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", WordTableFile, err)
	}
	d := &Dataset{Phonemes: phonemes, Words: words}
	d.Sort()
	return d, nil
}

// table reads a header row and gives column access by name. Rows without
// an index column are numbered in file order per recording.
type table struct {
	cols map[string]int
	row  []string
	line int
	next map[string]int
}

func readTable(r io.Reader, required []string, each func(t *table) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty table")
		}
		return err
	}
	t := &table{cols: map[string]int{}, line: 1, next: map[string]int{}}
	for i, h := range header {
		t.cols[h] = i
	}
	for _, c := range required {
		if _, ok := t.cols[c]; !ok {
			return fmt.Errorf("missing column %q", c)
		}
	}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		t.line++
		t.row = row
		if err := each(t); err != nil {
			return fmt.Errorf("line %d: %w", t.line, err)
		}
	}
}

func (t *table) str(col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(t.row) {
		return ""
	}
	return t.row[i]
}

func (t *table) float(col string) (float64, error) {
	v, err := strconv.ParseFloat(t.str(col), 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", col, err)
	}
	return v, nil
}

func (t *table) opt(col string) (*float64, error) {
	s := t.str(col)
	if s == "" || s == "NaN" || s == "nan" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", col, err)
	}
	return &v, nil
}

func (t *table) index(recording string) (int, error) {
	if s := t.str("index"); s != "" {
		return strconv.Atoi(s)
	}
	i := t.next[recording]
	t.next[recording] = i + 1
	return i, nil
}

func (t *table) span() (start, end, dur float64, err error) {
	if start, err = t.float("start_time"); err != nil {
		return
	}
	if end, err = t.float("end_time"); err != nil {
		return
	}
	dur = end - start
	if t.str("duration") != "" {
		dur, err = t.float("duration")
	}
	return
}

func ReadPhonemes(r io.Reader, c Classifier) ([]PhonemeMeasurement, error) {
	var out []PhonemeMeasurement
	err := readTable(r, []string{"file", "phoneme", "start_time", "end_time"}, func(t *table) error {
		m := PhonemeMeasurement{Recording: t.str("file"), Label: t.str("phoneme")}
		var err error
		if m.Index, err = t.index(m.Recording); err != nil {
			return err
		}
		if m.Start, m.End, m.Duration, err = t.span(); err != nil {
			return err
		}
		m.Vowel = IsVowel(m.Label)
		if s := t.str("is_vowel"); s != "" {
			if m.Vowel, err = strconv.ParseBool(s); err != nil {
				return fmt.Errorf("column is_vowel: %w", err)
			}
		}
		m.Class = c.Classify(m.Label)

		for col, dst := range map[string]**float64{
			"f1_mean": &m.F1, "f2_mean": &m.F2, "f3_mean": &m.F3,
			"f0_mean": &m.PitchMean, "f0_std": &m.PitchSD, "f0_min": &m.PitchMin, "f0_max": &m.PitchMax,
			"intensity_mean": &m.IntensityMean, "intensity_std": &m.IntensitySD,
		} {
			if *dst, err = t.opt(col); err != nil {
				return err
			}
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

func ReadWords(r io.Reader) ([]WordMeasurement, error) {
	var out []WordMeasurement
	err := readTable(r, []string{"file", "word", "start_time", "end_time"}, func(t *table) error {
		m := WordMeasurement{Recording: t.str("file"), Label: t.str("word")}
		var err error
		if m.Index, err = t.index(m.Recording); err != nil {
			return err
		}
		if m.Start, m.End, m.Duration, err = t.span(); err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	return out, err
}
