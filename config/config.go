package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Pipeline struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	// Workers bounds how many recordings are parsed and measured at once.
	Workers int `yaml:"workers" mapstructure:"workers" validate:"gte=1"`
}

type Paths struct {
	Audio     string `yaml:"audio" mapstructure:"audio"`
	TextGrids string `yaml:"textgrids" mapstructure:"textgrids"`
	Outputs   string `yaml:"outputs" mapstructure:"outputs"`
}

// Analysis parameterises the signal analyzer. Times are seconds, frequencies Hz.
type Analysis struct {
	TimeStep           float64 `yaml:"time_step" mapstructure:"time_step" validate:"gt=0"`
	MinDuration        float64 `yaml:"min_duration" mapstructure:"min_duration" validate:"gt=0"`
	PitchFloor         float64 `yaml:"pitch_floor" mapstructure:"pitch_floor" validate:"gt=0"`
	PitchCeiling       float64 `yaml:"pitch_ceiling" mapstructure:"pitch_ceiling" validate:"gtfield=PitchFloor"`
	VoicingThreshold   float64 `yaml:"voicing_threshold" mapstructure:"voicing_threshold" validate:"gt=0,lt=1"`
	SilenceThreshold   float64 `yaml:"silence_threshold" mapstructure:"silence_threshold" validate:"gte=0,lt=1"`
	OctaveCost         float64 `yaml:"octave_cost" mapstructure:"octave_cost" validate:"gte=0"`
	IntensityMinPitch  float64 `yaml:"intensity_min_pitch" mapstructure:"intensity_min_pitch" validate:"gt=0"`
	MaxFormant         float64 `yaml:"max_formant" mapstructure:"max_formant" validate:"gt=0"`
	NumFormants        int     `yaml:"num_formants" mapstructure:"num_formants" validate:"gte=1,lte=5"`
	FormantWindow      float64 `yaml:"formant_window" mapstructure:"formant_window" validate:"gt=0"`
	PreEmphasisFrom    float64 `yaml:"pre_emphasis_from" mapstructure:"pre_emphasis_from" validate:"gte=0"`
	FormantPoints      int     `yaml:"formant_points" mapstructure:"formant_points" validate:"gte=1"`
	FormantMinDuration float64 `yaml:"formant_min_duration" mapstructure:"formant_min_duration" validate:"gte=0"`
}

type Measure struct {
	// SkipEmptyLabels drops blank-labeled intervals instead of measuring them.
	SkipEmptyLabels bool     `yaml:"skip_empty_labels" mapstructure:"skip_empty_labels"`
	SilenceLabels   []string `yaml:"silence_labels" mapstructure:"silence_labels"`
	IntervalWorkers int      `yaml:"interval_workers" mapstructure:"interval_workers" validate:"gte=1"`
}

// Band is an inclusive [Min, Max] duration range in seconds.
type Band struct {
	Min float64 `yaml:"min" mapstructure:"min" validate:"gte=0"`
	Max float64 `yaml:"max" mapstructure:"max" validate:"gtfield=Min"`
}

type DurationBands struct {
	Vowel     Band `yaml:"vowel" mapstructure:"vowel"`
	Consonant Band `yaml:"consonant" mapstructure:"consonant"`
	Silence   Band `yaml:"silence" mapstructure:"silence"`
}

type Timing struct {
	Epsilon   float64 `yaml:"epsilon" mapstructure:"epsilon" validate:"gte=0"`
	MajorJump float64 `yaml:"major_jump" mapstructure:"major_jump" validate:"gtefield=Epsilon"`
}

const (
	GroupByClass   = "class"
	GroupByPhoneme = "phoneme"
)

type Outlier struct {
	Sigma          float64 `yaml:"sigma" mapstructure:"sigma" validate:"gt=0"`
	GroupBy        string  `yaml:"group_by" mapstructure:"group_by" validate:"oneof=class phoneme"`
	MinGroupSize   int     `yaml:"min_group_size" mapstructure:"min_group_size" validate:"gte=2"`
	IncludeSilence bool    `yaml:"include_silence" mapstructure:"include_silence"`
}

type Consistency struct {
	BoundaryEpsilon float64 `yaml:"boundary_epsilon" mapstructure:"boundary_epsilon" validate:"gte=0"`
	Tolerance       float64 `yaml:"tolerance" mapstructure:"tolerance" validate:"gte=0"`
}

// Verdict holds exclusive upper error-rate bounds (fractions) for each tier.
type Verdict struct {
	Excellent float64 `yaml:"excellent" mapstructure:"excellent" validate:"gt=0"`
	Good      float64 `yaml:"good" mapstructure:"good" validate:"gtfield=Excellent"`
	Fair      float64 `yaml:"fair" mapstructure:"fair" validate:"gtfield=Good,lte=1"`
}

type Quality struct {
	Duration    DurationBands `yaml:"duration" mapstructure:"duration"`
	Timing      Timing        `yaml:"timing" mapstructure:"timing"`
	Outlier     Outlier       `yaml:"outlier" mapstructure:"outlier"`
	Consistency Consistency   `yaml:"consistency" mapstructure:"consistency"`
	Verdict     Verdict       `yaml:"verdict" mapstructure:"verdict"`
}

type Aligner struct {
	Command       string   `yaml:"command" mapstructure:"command"`
	Dictionary    string   `yaml:"dictionary" mapstructure:"dictionary"`
	AcousticModel string   `yaml:"acoustic_model" mapstructure:"acoustic_model"`
	ExtraArgs     []string `yaml:"extra_args" mapstructure:"extra_args"`
}

type Store struct {
	// DSN selects the database; empty disables the store.
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

type Report struct {
	Format         string `yaml:"format" mapstructure:"format" validate:"oneof=json yaml"`
	WebhookURL     string `yaml:"webhook_url" mapstructure:"webhook_url"`
	WebhookTimeout int    `yaml:"webhook_timeout" mapstructure:"webhook_timeout" validate:"gte=1"`
}

// Timeout is the webhook request timeout; WebhookTimeout counts seconds.
func (r Report) Timeout() time.Duration { return time.Duration(r.WebhookTimeout) * time.Second }

type Log struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type Root struct {
	Pipeline Pipeline `yaml:"pipeline" mapstructure:"pipeline"`
	Paths    Paths    `yaml:"paths" mapstructure:"paths"`
	Analysis Analysis `yaml:"analysis" mapstructure:"analysis"`
	Measure  Measure  `yaml:"measure" mapstructure:"measure"`
	Quality  Quality  `yaml:"quality" mapstructure:"quality"`
	Aligner  Aligner  `yaml:"aligner" mapstructure:"aligner"`
	Store    Store    `yaml:"store" mapstructure:"store"`
	Report   Report   `yaml:"report" mapstructure:"report"`
	Log      Log      `yaml:"log" mapstructure:"log"`
}

// Default returns the configuration every threshold falls back to.
func Default() *Root {
	return &Root{
		Pipeline: Pipeline{Name: "alignment-qc", Version: "0.1.0", Workers: 4},
		Paths:    Paths{Audio: "data/corpus", TextGrids: "data/aligned", Outputs: "outputs"},
		Analysis: Analysis{
			TimeStep:           0.01,
			MinDuration:        0.025,
			PitchFloor:         75,
			PitchCeiling:       500,
			VoicingThreshold:   0.45,
			SilenceThreshold:   0.03,
			OctaveCost:         0.01,
			IntensityMinPitch:  75,
			MaxFormant:         5500,
			NumFormants:        5,
			FormantWindow:      0.025,
			PreEmphasisFrom:    50,
			FormantPoints:      3,
			FormantMinDuration: 0.03,
		},
		Measure: Measure{
			SilenceLabels:   []string{"", "sil", "sp", "spn"},
			IntervalWorkers: 1,
		},
		Quality: Quality{
			Duration: DurationBands{
				Vowel:     Band{Min: 0.030, Max: 0.400},
				Consonant: Band{Min: 0.020, Max: 0.250},
				Silence:   Band{Min: 0, Max: 2.000},
			},
			Timing:      Timing{Epsilon: 0.001, MajorJump: 0.05},
			Outlier:     Outlier{Sigma: 3, GroupBy: GroupByClass, MinGroupSize: 3},
			Consistency: Consistency{BoundaryEpsilon: 0.001, Tolerance: 0.010},
			Verdict:     Verdict{Excellent: 0.05, Good: 0.10, Fair: 0.20},
		},
		Aligner: Aligner{Command: "mfa", Dictionary: "english_us_arpa", AcousticModel: "english_us_arpa"},
		Report:  Report{Format: "json", WebhookTimeout: 60},
		Log:     Log{Level: "info", Format: "text"},
	}
}

// NewViper returns a viper instance reading AQC_* environment overrides,
// e.g. AQC_QUALITY_OUTLIER_SIGMA=2.5.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("AQC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load layers defaults, the config file, environment and any flags already
// bound on v, then validates the result. With an empty path the file is
// looked up under config/<CONFIG_ENV>/config.yaml; a missing file is fine.
func Load(v *viper.Viper, path string) (*Root, error) {
	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, err
	}
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = guessPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func guessPath() string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	guess := []string{
		filepath.Join("config", env, "config.yaml"),
		"config.yaml",
	}
	for _, p := range guess {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// YAML renders the configuration the way Load reads it.
func (r *Root) YAML() ([]byte, error) { return yaml.Marshal(r) }

// ConfigurationError reports a threshold or band that would invalidate
// every downstream verdict.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field the engine depends on. All problems are
// returned joined; each is a *ConfigurationError.
func (r *Root) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, &ConfigurationError{
			Field:  strings.TrimPrefix(fe.Namespace(), "Root."),
			Reason: reason(fe),
		})
	}
	return errors.Join(errs...)
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("must be greater than %s, got %v", fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("must be less than %s, got %v", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	case "gtfield", "gtefield":
		return fmt.Sprintf("must exceed %s, got %v", fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	}
	return fmt.Sprintf("failed %q check, got %v", fe.Tag(), fe.Value())
}

