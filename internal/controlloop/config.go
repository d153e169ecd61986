// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package controlloop

import (
	"time"

	"grimm.is/flowshell/internal/errors"
)

// Config holds the load policy. Loads in [LowWater, HighWater] neither grow
// nor shrink the table.
type Config struct {
	Interval time.Duration `json:"interval"`

	HighWater int64 `json:"high_water"`
	LowWater  int64 `json:"low_water"`
	Capacity  int   `json:"capacity"`

	GrowMin   int `json:"grow_min"`
	GrowMax   int `json:"grow_max"`
	ShrinkMin int `json:"shrink_min"`
	ShrinkMax int `json:"shrink_max"`

	ChurnProbability  float64 `json:"churn_probability"`
	ChurnMax          int     `json:"churn_max"`
	LoadAnnotationMax int     `json:"load_annotation_max"`

	Priorities []int `json:"priorities"`
}

// DefaultConfig returns the reference policy.
func DefaultConfig() Config {
	return Config{
		Interval:          6 * time.Second,
		HighWater:         200,
		LowWater:          150,
		Capacity:          20,
		GrowMin:           1,
		GrowMax:           3,
		ShrinkMin:         1,
		ShrinkMax:         2,
		ChurnProbability:  0.3,
		ChurnMax:          3,
		LoadAnnotationMax: 1000,
		Priorities:        []int{100, 200, 300},
	}
}

// Validate checks the policy for internal consistency.
func (c Config) Validate() error {
	switch {
	case c.Interval <= 0:
		return errors.New(errors.KindValidation, "interval must be positive")
	case c.LowWater > c.HighWater:
		return errors.Errorf(errors.KindValidation, "low water %d above high water %d", c.LowWater, c.HighWater)
	case c.Capacity < 0:
		return errors.New(errors.KindValidation, "capacity must not be negative")
	case c.GrowMin < 0 || c.GrowMin > c.GrowMax:
		return errors.Errorf(errors.KindValidation, "invalid grow range [%d,%d]", c.GrowMin, c.GrowMax)
	case c.ShrinkMin < 0 || c.ShrinkMin > c.ShrinkMax:
		return errors.Errorf(errors.KindValidation, "invalid shrink range [%d,%d]", c.ShrinkMin, c.ShrinkMax)
	case c.ChurnProbability < 0 || c.ChurnProbability > 1:
		return errors.Errorf(errors.KindValidation, "churn probability %v outside [0,1]", c.ChurnProbability)
	case c.ChurnMax < 0:
		return errors.New(errors.KindValidation, "churn max must not be negative")
	case c.LoadAnnotationMax < 0:
		return errors.New(errors.KindValidation, "load annotation max must not be negative")
	case len(c.Priorities) == 0:
		return errors.New(errors.KindValidation, "at least one priority is required")
	}
	return nil
}
