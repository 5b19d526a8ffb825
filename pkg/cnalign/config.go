package cnalign

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/agorelick/CNalign/pkg/mip"
)

// Duration is a time.Duration that unmarshals from YAML strings such as
// "60s" or "2m" as well as plain integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return errors.Wrapf(err, "parsing duration %q", s)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return errors.Errorf("cannot parse %q as a duration", value.Value)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// Config is the full configuration surface of a run. Zero values are not
// meaningful; start from DefaultConfig and override.
type Config struct {
	// MinPloidy and MaxPloidy bound each sample's ploidy variable.
	MinPloidy float64 `yaml:"min_ploidy"`
	MaxPloidy float64 `yaml:"max_ploidy"`
	// MinPurity and MaxPurity bound each sample's purity; the model works
	// with inverse purity z = 1/purity, so the bounds are applied
	// reciprocally.
	MinPurity float64 `yaml:"min_purity"`
	MaxPurity float64 `yaml:"max_purity"`

	// MinAlignedSegMb is the minimum segment length for a cell to count
	// toward clonality.
	MinAlignedSegMb float64 `yaml:"min_aligned_seg_mb"`
	// MaxHomdelMb caps the total homozygously deleted megabases per sample.
	MaxHomdelMb float64 `yaml:"max_homdel_mb"`

	// Deviation thresholds for the closeness predicates.
	DeltaTCNToInt    float64 `yaml:"delta_tcn_to_int"`
	DeltaTCNToAvg    float64 `yaml:"delta_tcn_to_avg"`
	DeltaTCNAvgToInt float64 `yaml:"delta_tcnavg_to_int"`
	DeltaMCNToInt    float64 `yaml:"delta_mcn_to_int"`
	DeltaMCNToAvg    float64 `yaml:"delta_mcn_to_avg"`
	DeltaMCNAvgToInt float64 `yaml:"delta_mcnavg_to_int"`

	// MCNWeight in [0,1] blends the MCN error against the TCN error in
	// the second objective level.
	MCNWeight float64 `yaml:"mcn_weight"`
	// Rho in (0,1] is the minimum fraction of samples whose cell must
	// match (and carry a CNA on a large-enough segment) for the segment
	// to count as clonal.
	Rho float64 `yaml:"rho"`

	// StagnationTimeout is how long a priority level may go without
	// incumbent improvement before it is cut off.
	StagnationTimeout Duration `yaml:"stagnation_timeout"`

	// MinCNASegmentsPerSample is a lower bound on CNA-bearing segments
	// in every sample.
	MinCNASegmentsPerSample int `yaml:"min_cna_segments_per_sample"`

	// Obj2ClonalOnly masks the error totals to cells of clonal segments.
	// When no segment reaches allmatch under this setting, both totals
	// are identically zero and the second level is flat; this is a
	// deliberate configuration consequence, not a fallback trigger.
	Obj2ClonalOnly bool `yaml:"obj2_clonalonly"`

	// SolCount is the solution pool size to request.
	SolCount int `yaml:"sol_count"`

	// MaxCopies caps copy-number variables; it exists so every variable
	// has finite bounds for engines that expand indicators via big-M.
	MaxCopies float64 `yaml:"max_copies"`

	// Workers is the engine's parallel node evaluation width.
	Workers int `yaml:"workers"`

	// LicenseFile optionally points to a WLS credential file for remote
	// engines. In-process engines ignore the credentials.
	LicenseFile string `yaml:"license_file"`
}

// DefaultConfig mirrors the tool's published defaults.
func DefaultConfig() Config {
	return Config{
		MinPloidy:               1.5,
		MaxPloidy:               5.5,
		MinPurity:               0.1,
		MaxPurity:               1.0,
		MinAlignedSegMb:         5,
		MaxHomdelMb:             50,
		DeltaTCNToInt:           0.2,
		DeltaTCNToAvg:           0.2,
		DeltaTCNAvgToInt:        0.2,
		DeltaMCNToInt:           0.2,
		DeltaMCNToAvg:           0.2,
		DeltaMCNAvgToInt:        0.2,
		MCNWeight:               0.5,
		Rho:                     0.8,
		StagnationTimeout:       Duration(60 * time.Second),
		MinCNASegmentsPerSample: 0,
		Obj2ClonalOnly:          false,
		SolCount:                1,
		MaxCopies:               32,
		Workers:                 1,
	}
}

// Validate checks the configuration; failures are configuration errors
// reported before any variable is built.
func (c Config) Validate() error {
	if c.MinPloidy > c.MaxPloidy {
		return errors.Errorf("ploidy bounds out of order: min %g > max %g", c.MinPloidy, c.MaxPloidy)
	}
	if c.MinPloidy <= 0 {
		return errors.Errorf("min ploidy must be positive, got %g", c.MinPloidy)
	}
	if c.MinPurity > c.MaxPurity {
		return errors.Errorf("purity bounds out of order: min %g > max %g", c.MinPurity, c.MaxPurity)
	}
	if c.MinPurity <= 0 || c.MaxPurity > 1 {
		return errors.Errorf("purity bounds must lie in (0,1], got [%g,%g]", c.MinPurity, c.MaxPurity)
	}
	if c.MCNWeight < 0 || c.MCNWeight > 1 {
		return errors.Errorf("mcn_weight must lie in [0,1], got %g", c.MCNWeight)
	}
	if c.Rho <= 0 || c.Rho > 1 {
		return errors.Errorf("rho must lie in (0,1], got %g", c.Rho)
	}
	if c.MinAlignedSegMb < 0 {
		return errors.Errorf("min_aligned_seg_mb must be non-negative, got %g", c.MinAlignedSegMb)
	}
	if c.MaxHomdelMb < 0 {
		return errors.Errorf("max_homdel_mb must be non-negative, got %g", c.MaxHomdelMb)
	}
	if c.StagnationTimeout <= 0 {
		return errors.Errorf("stagnation timeout must be positive, got %v", c.StagnationTimeout)
	}
	if c.SolCount < 1 {
		return errors.Errorf("sol_count must be at least 1, got %d", c.SolCount)
	}
	if c.MaxCopies <= 0 {
		return errors.Errorf("max_copies must be positive, got %g", c.MaxCopies)
	}
	for name, d := range map[string]float64{
		"delta_tcn_to_int":    c.DeltaTCNToInt,
		"delta_tcn_to_avg":    c.DeltaTCNToAvg,
		"delta_tcnavg_to_int": c.DeltaTCNAvgToInt,
		"delta_mcn_to_int":    c.DeltaMCNToInt,
		"delta_mcn_to_avg":    c.DeltaMCNToAvg,
		"delta_mcnavg_to_int": c.DeltaMCNAvgToInt,
	} {
		if d < 0 {
			return errors.Errorf("%s must be non-negative, got %g", name, d)
		}
	}
	return nil
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parsing config file")
	}
	return cfg, nil
}

// ReadCredentials parses a WLS license file into engine credentials. The
// file carries KEY=value lines for WLSACCESSID, WLSSECRET and LICENSEID;
// other lines (comments, blank lines) are ignored. A missing key or a
// malformed LICENSEID is a configuration error.
func ReadCredentials(path string) (*mip.Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening license file")
	}
	defer f.Close()

	cred := &mip.Credentials{LicenseID: -1}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "WLSACCESSID":
			cred.AccessID = strings.TrimSpace(value)
		case "WLSSECRET":
			cred.Secret = strings.TrimSpace(value)
		case "LICENSEID":
			id, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, errors.Wrapf(err, "license file %s: malformed LICENSEID", path)
			}
			cred.LicenseID = id
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading license file")
	}
	if cred.AccessID == "" || cred.Secret == "" || cred.LicenseID < 0 {
		return nil, errors.Errorf("license file %s: WLSACCESSID, WLSSECRET and LICENSEID are all required", path)
	}
	return cred, nil
}
