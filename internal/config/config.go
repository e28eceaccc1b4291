package config

import (
	"fmt"
	"os"
	"time"

	govalidator "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"exam-simulator/internal/domain"
)

var validate = govalidator.New()

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Bank struct {
		Dir     string `yaml:"dir"`
		Default string `yaml:"default"`
		TTL     string `yaml:"ttl"`
	} `yaml:"bank"`
	Exam Exam `yaml:"exam"`
}

// Exam holds the exam rules.
type Exam struct {
	TimeLimit     string             `yaml:"timeLimit"`
	QuestionCount int                `yaml:"questionCount" validate:"gt=0"`
	PassingScore  float64            `yaml:"passingScore" validate:"gt=0,lte=1"`
	RankWeights   domain.RankWeights `yaml:"rankWeights" validate:"dive,keys,oneof=A B C D,endkeys,gte=0,lte=1"`
	WarningTime   string             `yaml:"warningTime"`
	DangerTime    string             `yaml:"dangerTime"`
	TickInterval  string             `yaml:"tickInterval"`
	FillAttempts  int                `yaml:"fillAttempts" validate:"gte=0"`
	ShufflePasses int                `yaml:"shufflePasses" validate:"gte=0"`
	HistoryLimit  int                `yaml:"historyLimit" validate:"gte=0"`
	RankFilter    domain.Rank        `yaml:"rankFilter" validate:"omitempty,oneof=A B C D"`
}

// Default mirrors the rules of the paper exam the simulator reproduces.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "pretty"
	cfg.Bank.Dir = "banks"
	cfg.Bank.Default = "default"
	cfg.Bank.TTL = "10m"
	cfg.Redis.TTL = "45m"
	cfg.SQLite.Path = "exam.db"
	cfg.Exam = Exam{
		TimeLimit:     "30m",
		QuestionCount: 20,
		PassingScore:  0.6,
		RankWeights: domain.RankWeights{
			domain.RankA: 0.10,
			domain.RankB: 0.25,
			domain.RankC: 0.35,
			domain.RankD: 0.30,
		},
		WarningTime:   "5m",
		DangerTime:    "1m",
		TickInterval:  "1s",
		FillAttempts:  1000,
		ShufflePasses: 3,
		HistoryLimit:  20,
	}
	return cfg
}

// Load reads YAML config from path on top of Default. Env overrides for
// PORT, LOG_LEVEL and LOG_FORMAT are applied afterwards.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	// Weights from the file replace the defaults instead of merging into them.
	defaults := cfg.Exam.RankWeights
	cfg.Exam.RankWeights = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Exam.RankWeights == nil {
		cfg.Exam.RankWeights = defaults
	}
	applyEnv(&cfg)
	if err := cfg.Exam.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects exam rules no session could satisfy.
func (e Exam) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("invalid exam rules: %w", err)
	}
	sum := 0.0
	for _, w := range e.RankWeights {
		sum += w
	}
	if sum > 1+1e-9 {
		return fmt.Errorf("invalid exam rules: rank weights sum to %.2f, above 1", sum)
	}
	if e.TimeLimitSeconds() <= 0 {
		return fmt.Errorf("invalid exam rules: time limit %q is not positive", e.TimeLimit)
	}
	return nil
}

// LoadOrDefault behaves like Load but falls back to Default when the file is absent.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil && os.IsNotExist(err) {
		cfg = Default()
		applyEnv(&cfg)
		return cfg, nil
	}
	return cfg, err
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// TimeLimitSeconds returns the exam time limit in whole seconds.
func (e Exam) TimeLimitSeconds() int {
	return int(Duration(e.TimeLimit, 30*time.Minute) / time.Second)
}

// WarningSeconds returns the remaining-time boundary of the warning callback.
func (e Exam) WarningSeconds() int {
	return int(Duration(e.WarningTime, 5*time.Minute) / time.Second)
}

// DangerSeconds returns the remaining-time boundary of the danger callback.
func (e Exam) DangerSeconds() int {
	return int(Duration(e.DangerTime, time.Minute) / time.Second)
}

// Tick returns the timer polling cadence.
func (e Exam) Tick() time.Duration {
	return Duration(e.TickInterval, time.Second)
}
