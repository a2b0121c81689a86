// Package simconfig reads the flat key-value environment the engine is
// configured from, once at startup: input/output locations, termination
// limits, restitution coefficients, plus a configurable Newton
// dt-zero threshold and a debug-logging flag.
package simconfig

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the fully-parsed, immutable run configuration.
type Config struct {
	// NDims is the dimensionality N of the simulation; 2, 3, and 4 are
	// supported.
	NDims          int
	InputDirectory string
	TMax           float64
	WTMax          float64
	SaveRate       float64
	LogRate        float64
	RestCoefPP     float64
	RestCoefPW     float64

	// NewtonDtZeroThreshold overrides restitution to 1 when the relative
	// speed between colliding participants drops below this value, so a
	// nearly-grazing or co-moving pair does not get rescheduled at dt=0
	// forever. Defaults to 1e-4.
	NewtonDtZeroThreshold float64
	// Debug enables debug-level log output. No separate invariant-checking
	// pass over the grid or event lists is run.
	Debug bool
}

const defaultDtZeroThreshold = 1e-4

// Load reads every key once from the process environment. Missing required
// keys are a fatal configuration error.
func Load() (*Config, error) {
	c := &Config{NewtonDtZeroThreshold: defaultDtZeroThreshold}
	var err error

	ndims, err := getInt("NDIMS")
	if err != nil {
		return nil, err
	}
	if ndims < 2 || ndims > 4 {
		return nil, fmt.Errorf("NDIMS must be 2, 3, or 4, got %d", ndims)
	}
	c.NDims = ndims

	if c.InputDirectory, err = getString("INPUT_DIRECTORY"); err != nil {
		return nil, err
	}
	if c.TMax, err = getFloat("TMAX"); err != nil {
		return nil, err
	}
	if c.WTMax, err = getFloat("WTMAX"); err != nil {
		return nil, err
	}
	if c.SaveRate, err = getFloat("SAVE_RATE"); err != nil {
		return nil, err
	}
	if c.LogRate, err = getFloat("LOG_RATE"); err != nil {
		return nil, err
	}
	if c.RestCoefPP, err = getFloat("RESTCOEF_PP"); err != nil {
		return nil, err
	}
	if c.RestCoefPW, err = getFloat("RESTCOEF_PW"); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("NEWTON_DT_ZERO_THRESHOLD"); ok {
		c.NewtonDtZeroThreshold, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing NEWTON_DT_ZERO_THRESHOLD: %w", err)
		}
	}
	if v, ok := os.LookupEnv("DEBUG"); ok {
		c.Debug, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("parsing DEBUG: %w", err)
		}
	}

	if err := c.validateRestitution(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validateRestitution() error {
	for name, v := range map[string]float64{"restcoef_pp": c.RestCoefPP, "restcoef_pw": c.RestCoefPW} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %v", name, v)
		}
	}
	return nil
}

func getString(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("missing required configuration key %s", key)
	}
	return v, nil
}

func getInt(key string) (int, error) {
	v, err := getString(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string) (float64, error) {
	v, err := getString(key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return f, nil
}
