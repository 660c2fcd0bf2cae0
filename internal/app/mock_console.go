// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"os"
	"time"

	"github.com/relabs-tech/headtracker/internal/config"
	"github.com/relabs-tech/headtracker/internal/headtracker"
	"github.com/relabs-tech/headtracker/internal/sensors"
)

// RunMockConsole runs the tracker in-process on the synthetic source and
// prints every tenth status. No broker is needed.
func RunMockConsole() error {
	cfg := config.Get()

	tr, err := headtracker.New(cfg.Tracker)
	if err != nil {
		return err
	}
	src := sensors.NewMockSource(time.Duration(cfg.MockWarmup) * time.Millisecond)

	ticker := time.NewTicker(time.Duration(cfg.IMUSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	n := 0
	for range ticker.C {
		r, err := src.Next()
		if err != nil {
			return err
		}

		u, ok := tr.FeedSample(r.Sample, r.TimestampNanos)
		n++
		if n%10 != 0 {
			continue
		}

		if !ok {
			printStatus(os.Stdout, Status{
				Calibrated: tr.IsCalibrated(),
				Progress:   tr.CalibrationProgress(),
			})
			continue
		}
		printStatus(os.Stdout, statusFromUpdate(u, 100, time.Now()))
	}
	return nil
}
