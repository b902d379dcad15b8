package orchestrator

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	cfg "github.com/maastricht-university/alignment-qc/config"
	"github.com/maastricht-university/alignment-qc/measure"
	"github.com/maastricht-university/alignment-qc/quality"
)

const fixtureRate = 16000

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func writeWAV(t *testing.T, path string, seconds, freq float64) {
	t.Helper()
	n := int(seconds * fixtureRate)
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(12000 * math.Sin(2*math.Pi*freq*float64(i)/fixtureRate))
	}
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+2*n))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(fixtureRate))
	binary.Write(&buf, binary.LittleEndian, uint32(fixtureRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(2*n))
	binary.Write(&buf, binary.LittleEndian, samples)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

const validGrid = `File type = "ooTextFile"
Object class = "TextGrid"

xmin = 0
xmax = 0.5
tiers? <exists>
size = 2
item []:
    item [1]:
        class = "IntervalTier"
        name = "words"
        xmin = 0
        xmax = 0.5
        intervals: size = 3
        intervals [1]:
            xmin = 0
            xmax = 0.1
            text = ""
        intervals [2]:
            xmin = 0.1
            xmax = 0.45
            text = "hello"
        intervals [3]:
            xmin = 0.45
            xmax = 0.5
            text = ""
    item [2]:
        class = "IntervalTier"
        name = "phones"
        xmin = 0
        xmax = 0.5
        intervals: size = 5
        intervals [1]:
            xmin = 0
            xmax = 0.1
            text = "sil"
        intervals [2]:
            xmin = 0.1
            xmax = 0.18
            text = "HH"
        intervals [3]:
            xmin = 0.18
            xmax = 0.3
            text = "AH0"
        intervals [4]:
            xmin = 0.3
            xmax = 0.45
            text = "OW1"
        intervals [5]:
            xmin = 0.45
            xmax = 0.5
            text = ""
`

const phonesPerGrid = 5

// truncated inside the phone tier
const brokenGrid = `File type = "ooTextFile"
Object class = "TextGrid"
xmin = 0
xmax = 0.5
tiers? <exists>
size = 1
item []:
    item [1]:
        class = "IntervalTier"
        name = "phones"
        xmin = 0
`

type corpus struct {
	audio, grids, out string
}

// newCorpus writes rec1..rec5 (rec3 malformed) and an orphan waveform.
func newCorpus(t *testing.T) corpus {
	t.Helper()
	root := t.TempDir()
	c := corpus{
		audio: filepath.Join(root, "wav"),
		grids: filepath.Join(root, "aligned"),
		out:   filepath.Join(root, "outputs"),
	}
	for _, d := range []string{c.audio, c.grids} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("rec%d", i)
		writeWAV(t, filepath.Join(c.audio, id+".wav"), 0.5, 120+10*float64(i))
		grid := validGrid
		if i == 3 {
			grid = brokenGrid
		}
		if err := os.WriteFile(filepath.Join(c.grids, id+".TextGrid"), []byte(grid), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeWAV(t, filepath.Join(c.audio, "orphan.wav"), 0.2, 100)
	return c
}

func (c corpus) config(workers int) *cfg.Root {
	r := cfg.Default()
	r.Pipeline.Workers = workers
	r.Paths = cfg.Paths{Audio: c.audio, TextGrids: c.grids, Outputs: c.out}
	return r
}

var fixedNow = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

type fakeStore struct {
	runID   string
	units   int
	verdict quality.Verdict
	err     error
}

func (s *fakeStore) SaveRun(ctx context.Context, runID string, d *measure.Dataset, r *quality.Report) error {
	s.runID, s.units, s.verdict = runID, len(d.Phonemes)+len(d.Words), r.Verdict
	return s.err
}

func TestRunSkipsBrokenRecordings(t *testing.T) {
	c := newCorpus(t)
	st := &fakeStore{}
	res, err := NewPipeline(c.config(3), quietLogger(), WithStore(st), WithClock(fixedNow)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Processed != 4 {
		t.Errorf("processed = %d, want 4", res.Processed)
	}
	want := []Skip{
		{Recording: "orphan", Stage: StageDiscover},
		{Recording: "rec3", Stage: StageParse},
	}
	if len(res.Skipped) != len(want) {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	for i, w := range want {
		got := res.Skipped[i]
		if got.Recording != w.Recording || got.Stage != w.Stage || got.Reason == "" {
			t.Errorf("skip %d = %+v, want %s/%s", i, got, w.Recording, w.Stage)
		}
	}
	if !reflect.DeepEqual(res.Report.Skipped, res.Skipped) {
		t.Errorf("report skips = %+v", res.Report.Skipped)
	}

	if ids := res.Dataset.Recordings(); !reflect.DeepEqual(ids, []string{"rec1", "rec2", "rec4", "rec5"}) {
		t.Errorf("recordings = %v", ids)
	}
	if n := len(res.Dataset.Phonemes); n != 4*phonesPerGrid {
		t.Errorf("phonemes = %d", n)
	}
	if n := len(res.Dataset.Words); n != 4 {
		t.Errorf("words = %d", n)
	}
	if res.Report.TotalUnits != 4*phonesPerGrid+4 {
		t.Errorf("total units = %d", res.Report.TotalUnits)
	}
	if !res.Report.GeneratedAt.Equal(fixedNow()) {
		t.Errorf("report time = %v", res.Report.GeneratedAt)
	}

	if st.runID != res.RunID || st.units != res.Report.TotalUnits || st.verdict != res.Report.Verdict {
		t.Errorf("store saw %+v", st)
	}
}

func TestRunPersistsRunDirectory(t *testing.T) {
	c := newCorpus(t)
	res, err := NewPipeline(c.config(2), quietLogger(), WithClock(fixedNow)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(filepath.Base(res.OutputDir), "run_20250301-120000_") {
		t.Errorf("run dir = %s", res.OutputDir)
	}
	for _, name := range []string{measure.PhonemeTableFile, measure.WordTableFile, SummaryFile, ReportFile("json"), BundleFile} {
		if _, err := os.Stat(filepath.Join(res.OutputDir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	var b Bundle
	raw, err := os.ReadFile(filepath.Join(res.OutputDir, BundleFile))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		t.Fatal(err)
	}
	if b.RunID != res.RunID || len(b.Recordings) != 5 || len(b.Skipped) != 2 || b.Verdict != string(res.Report.Verdict) {
		t.Errorf("bundle = %+v", b)
	}

	rep, err := quality.ReadReport(filepath.Join(res.OutputDir, ReportFile("json")))
	if err != nil {
		t.Fatal(err)
	}
	if rep.TotalUnits != res.Report.TotalUnits || rep.FlaggedUnits != res.Report.FlaggedUnits {
		t.Errorf("persisted report = %+v", rep)
	}

	ds, err := measure.ReadTables(res.OutputDir, measure.NewClassifier(cfg.Default().Measure.SilenceLabels))
	if err != nil {
		t.Fatal(err)
	}
	if len(ds.Phonemes) != len(res.Dataset.Phonemes) || len(ds.Words) != len(res.Dataset.Words) {
		t.Errorf("tables hold %d/%d rows", len(ds.Phonemes), len(ds.Words))
	}
}

func TestRunIsIndependentOfWorkerCount(t *testing.T) {
	c := newCorpus(t)
	one, err := NewPipeline(c.config(1), quietLogger(), WithClock(fixedNow)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	many, err := NewPipeline(c.config(8), quietLogger(), WithClock(fixedNow)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(one.Dataset, many.Dataset) {
		t.Error("datasets differ between 1 and 8 workers")
	}
	if !reflect.DeepEqual(one.Report, many.Report) {
		t.Error("reports differ between 1 and 8 workers")
	}
}

func TestMeasureWritesNoReport(t *testing.T) {
	c := newCorpus(t)
	res, err := NewPipeline(c.config(2), quietLogger(), WithClock(fixedNow)).Measure(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Report != nil {
		t.Error("measure produced a report")
	}
	if _, err := os.Stat(filepath.Join(res.OutputDir, ReportFile("json"))); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("report file: %v", err)
	}
	if res.Summary.TotalFiles != 4 {
		t.Errorf("summary files = %d", res.Summary.TotalFiles)
	}
}

func TestRunDeliversReport(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newCorpus(t)
	conf := c.config(2)
	conf.Report.WebhookURL = srv.URL
	// delivery failures are logged, not fatal
	if _, err := NewPipeline(conf, quietLogger()).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("webhook calls = %d", calls.Load())
	}
}

func TestRunStoreFailure(t *testing.T) {
	c := newCorpus(t)
	st := &fakeStore{err: errors.New("db gone")}
	res, err := NewPipeline(c.config(2), quietLogger(), WithStore(st)).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "db gone") {
		t.Fatalf("err = %v", err)
	}
	if res == nil || res.OutputDir == "" {
		t.Error("files should be written before the store")
	}
}

func TestRunCancelled(t *testing.T) {
	c := newCorpus(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewPipeline(c.config(2), quietLogger()).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestDiscover(t *testing.T) {
	audioDir, gridDir := t.TempDir(), t.TempDir()
	touch := func(dir, name string) {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	touch(audioDir, "b.WAV")
	touch(audioDir, "a.wav")
	touch(audioDir, "c.wav")
	touch(audioDir, "readme.txt")
	touch(gridDir, "a.TextGrid")
	touch(gridDir, "b.textgrid")
	touch(gridDir, "d.TextGrid")

	pairs, missing, err := Discover(audioDir, gridDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 2 || pairs[0].ID != "a" || pairs[1].ID != "b" {
		t.Fatalf("pairs = %+v", pairs)
	}
	if pairs[1].AudioPath != filepath.Join(audioDir, "b.WAV") {
		t.Errorf("audio path = %s", pairs[1].AudioPath)
	}
	if len(missing) != 2 ||
		missing[0].ID != "c" || missing[0].Missing != "textgrid" ||
		missing[1].ID != "d" || missing[1].Missing != "audio" {
		t.Errorf("missing = %+v", missing)
	}

	if _, _, err := Discover(filepath.Join(audioDir, "nope"), gridDir); err == nil {
		t.Error("missing directory accepted")
	}
}
