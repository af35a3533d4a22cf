// Package config resolves the immutable run configuration from CLI flags,
// environment variables, an optional YAML defaults file, and built-in
// defaults (spec.md §4.1, SPEC_FULL.md §A.3). Resolution never performs
// network I/O; file I/O is limited to reading the optional defaults file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/silverbeer/match-scraper/internal/errs"
	"github.com/silverbeer/match-scraper/internal/matchmodel"
)

var knownDivisions = map[string]bool{
	"Northeast": true, "Southeast": true, "Midwest": true, "Southwest": true,
	"Northwest": true, "National": true,
}

// RoutingTarget names exactly one of a direct queue or a fanout exchange
// (spec.md §4.8's routing contract).
type RoutingTarget struct {
	Queue    string
	Exchange string
}

// IsDirectQueue reports whether the target is a direct queue (vs. fanout).
func (r RoutingTarget) IsDirectQueue() bool { return r.Queue != "" }

// Config is the fully-resolved, immutable run configuration.
type Config struct {
	League   matchmodel.League
	AgeGroup matchmodel.AgeGroup
	Division string
	Club     string

	FromDate string // YYYY-MM-DD, resolved
	ToDate   string // YYYY-MM-DD, resolved

	Routing      RoutingTarget
	SubmitQueue  bool
	BrokerURL    string

	Headless bool
	Timeout  time.Duration
	SlowMo   time.Duration

	AuditDir  string
	StateFile string

	LogLevel string
	Verbose  bool

	MetricsAddr string
	DryRun      bool
}

// Raw carries the unresolved CLI-flag values before offset/env merging.
// Cobra binds flags directly into this struct; Resolve() turns it into a
// Config.
type Raw struct {
	League         string
	AgeGroup       string
	Division       string
	Club           string
	From, To       string
	StartOffset    *int
	EndOffset      *int
	Queue          string
	Exchange       string
	NoSubmitQueue  bool
	Headless       bool
	NoHeadless     bool
	TimeoutMS      int
	SlowMS         int
	Verbose        bool
	MetricsAddr    string
	DryRun         bool
	AuditDir       string
	StateFile      string
	ConfigFile     string
}

// fileDefaults is the shape of an optional YAML defaults file.
type fileDefaults struct {
	League      string `yaml:"league"`
	AgeGroup    string `yaml:"age_group"`
	Division    string `yaml:"division"`
	Exchange    string `yaml:"exchange"`
	AuditDir    string `yaml:"audit_dir"`
	StateFile   string `yaml:"state_file"`
	LogLevel    string `yaml:"log_level"`
	Headless    *bool  `yaml:"headless"`
	TimeoutMS   int    `yaml:"browser_timeout_ms"`
}

// LoadFileDefaults reads an optional YAML defaults file. A missing file is
// not an error — it simply contributes no overrides (§A.3: CLI > env > file
// > built-in defaults).
func LoadFileDefaults(path string) (*fileDefaults, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var fd fileDefaults
	if err := yaml.Unmarshal(b, &fd); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &fd, nil
}

// Resolve merges raw CLI flags, the process environment, the given file
// defaults, and built-in defaults into a validated Config. Precedence is
// CLI > environment > file > defaults, per spec.md §4.1.
func Resolve(r Raw, fd *fileDefaults, now time.Time) (Config, error) {
	cfg := Config{
		AgeGroup:  matchmodel.U14,
		Division:  "Northeast",
		Headless:  true,
		Timeout:   30 * time.Second,
		AuditDir:  "./audit",
		StateFile: "./audit/.state/last-run-state.json",
		LogLevel:  "info",
	}
	cfg.Routing.Exchange = "matches-fanout"

	if fd != nil {
		if fd.League != "" {
			cfg.League = matchmodel.League(fd.League)
		}
		if fd.AgeGroup != "" {
			cfg.AgeGroup = matchmodel.AgeGroup(fd.AgeGroup)
		}
		if fd.Division != "" {
			cfg.Division = fd.Division
		}
		if fd.Exchange != "" {
			cfg.Routing.Exchange = fd.Exchange
		}
		if fd.AuditDir != "" {
			cfg.AuditDir = fd.AuditDir
		}
		if fd.StateFile != "" {
			cfg.StateFile = fd.StateFile
		}
		if fd.LogLevel != "" {
			cfg.LogLevel = fd.LogLevel
		}
		if fd.Headless != nil {
			cfg.Headless = *fd.Headless
		}
		if fd.TimeoutMS > 0 {
			cfg.Timeout = time.Duration(fd.TimeoutMS) * time.Millisecond
		}
	}

	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		cfg.BrokerURL = v
	}
	if v := os.Getenv("AUDIT_DIR"); v != "" {
		cfg.AuditDir = v
	}
	if v := os.Getenv("STATE_FILE"); v != "" {
		cfg.StateFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HEADLESS"); v != "" {
		cfg.Headless = v != "0" && v != "false"
	}
	if v := os.Getenv("BROWSER_TIMEOUT"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Timeout = time.Duration(ms) * time.Millisecond
		}
	}

	if r.League != "" {
		cfg.League = matchmodel.League(r.League)
	}
	if r.AgeGroup != "" {
		cfg.AgeGroup = matchmodel.AgeGroup(r.AgeGroup)
	}
	if r.Division != "" {
		cfg.Division = r.Division
	}
	cfg.Club = r.Club
	if r.Queue != "" {
		cfg.Routing.Queue = r.Queue
		cfg.Routing.Exchange = "" // xor: an explicit queue overrides the default fanout
	} else if r.Exchange != "" {
		cfg.Routing.Exchange = r.Exchange
		cfg.Routing.Queue = ""
	}
	cfg.SubmitQueue = !r.NoSubmitQueue
	if r.Headless {
		cfg.Headless = true
	}
	if r.NoHeadless {
		cfg.Headless = false
	}
	if r.TimeoutMS > 0 {
		cfg.Timeout = time.Duration(r.TimeoutMS) * time.Millisecond
	}
	if r.SlowMS > 0 {
		cfg.SlowMo = time.Duration(r.SlowMS) * time.Millisecond
	}
	cfg.Verbose = r.Verbose
	if r.AuditDir != "" {
		cfg.AuditDir = r.AuditDir
	}
	if r.StateFile != "" {
		cfg.StateFile = r.StateFile
	}
	cfg.MetricsAddr = r.MetricsAddr
	cfg.DryRun = r.DryRun

	// Resolve the calendar range: absolute from/to takes priority over
	// integer offsets (spec.md §4.1).
	if r.From != "" && r.To != "" {
		cfg.FromDate = r.From
		cfg.ToDate = r.To
	} else {
		start, end := 0, 13
		if r.StartOffset != nil {
			start = *r.StartOffset
		}
		if r.EndOffset != nil {
			end = *r.EndOffset
		}
		cfg.FromDate = now.AddDate(0, 0, start).Format("2006-01-02")
		cfg.ToDate = now.AddDate(0, 0, end).Format("2006-01-02")
	}

	if err := validate(cfg, r); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config, r Raw) error {
	if !cfg.League.Valid() {
		return errs.NewConfigError("league must be one of Homegrown, Academy; got %q", cfg.League)
	}
	if !cfg.AgeGroup.Valid() {
		return errs.NewConfigError("age_group must be one of U13..U19; got %q", cfg.AgeGroup)
	}
	if !knownDivisions[cfg.Division] {
		return errs.NewConfigError("division %q is not a recognized division", cfg.Division)
	}
	if cfg.Routing.Queue != "" && cfg.Routing.Exchange != "" {
		return errs.NewConfigError("--queue and --exchange are mutually exclusive")
	}
	if r.NoSubmitQueue && (r.Queue != "" || r.Exchange != "") {
		return errs.NewConfigError("--no-submit-queue conflicts with an explicit --queue or --exchange target")
	}
	if cfg.FromDate > cfg.ToDate {
		return errs.NewConfigError("from date %s is after to date %s", cfg.FromDate, cfg.ToDate)
	}
	if cfg.SubmitQueue && cfg.BrokerURL == "" {
		return errs.NewConfigError("RABBITMQ_URL is required unless --no-submit-queue is set")
	}
	return nil
}
