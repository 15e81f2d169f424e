package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/penichelab/ocean-dashboard/internal/ocean"
)

// scriptTimeout is the hard kill deadline for the retrieval script. CMEMS
// subsetting can legitimately take minutes.
const scriptTimeout = 5 * time.Minute

// ModelRunner executes the external ocean-model retrieval and returns its
// stdout. It exists so the subprocess can be swapped for an HTTP client if
// the upstream ever exposes one.
type ModelRunner interface {
	Run(ctx context.Context, start, end time.Time) ([]byte, error)
}

// ScriptRunner runs the CMEMS retrieval script (a Python program, treated as
// a black box that prints JSON to stdout).
type ScriptRunner struct {
	Command string   // e.g. "python3"
	Args    []string // e.g. ["scripts/cmems_tides.py"]
	Timeout time.Duration
}

func (r *ScriptRunner) Run(ctx context.Context, start, end time.Time) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = scriptTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, r.Args...),
		"--start", start.UTC().Format("2006-01-02T15:04:05"),
		"--end", end.UTC().Format("2006-01-02T15:04:05"),
		"--variables", "VHM0,zos",
	)

	cmd := exec.CommandContext(ctx, r.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &ocean.ScriptError{Reason: "killed after deadline", Err: ctx.Err()}
		}
		return nil, &ocean.ScriptError{
			Reason: fmt.Sprintf("exited with error: %v", err),
			Stderr: truncate(stderr.String(), 512),
			Err:    err,
		}
	}
	return stdout.Bytes(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// CMEMS fetches scientific ocean-model variables through a ModelRunner.
type CMEMS struct {
	runner ModelRunner
	window time.Duration

	now func() time.Time
}

func NewCMEMS(runner ModelRunner) *CMEMS {
	return &CMEMS{
		runner: runner,
		window: 12 * time.Hour,
		now:    time.Now,
	}
}

func (c *CMEMS) Source() ocean.Source { return ocean.SourceCMEMS }

type cmemsOutput struct {
	Status string `json:"status"`
	Points []struct {
		Time          string   `json:"time"`
		VHM0          *float64 `json:"VHM0"`
		Zos           *float64 `json:"zos"`
		WaterTemp     *float64 `json:"water_temp"`
		WindSpeed     *float64 `json:"wind_speed"`
		WavePeriod    *float64 `json:"wave_period"`
		WaveDirection *float64 `json:"wave_direction"`
		Pressure      *float64 `json:"pressure"`
	} `json:"points"`
}

// Fetch runs the script for a forward window and maps its point series onto
// a snapshot: first point becomes current, the rest become forecast entries.
func (c *CMEMS) Fetch(ctx context.Context, loc ocean.Location) (*ocean.Snapshot, error) {
	start := c.now().UTC()
	out, err := c.runner.Run(ctx, start, start.Add(c.window))
	if err != nil {
		return nil, err
	}

	var parsed cmemsOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, &ocean.ScriptError{Reason: "stdout is not valid JSON", Err: err}
	}
	if len(parsed.Points) == 0 {
		return nil, &ocean.ScriptError{Reason: "no data points in script output"}
	}

	snap := &ocean.Snapshot{ObservedAt: start}
	for i, p := range parsed.Points {
		m := ocean.Metrics{
			WaveHeight:       p.VHM0,
			SeaLevelAnomaly:  p.Zos,
			WaterTemperature: p.WaterTemp,
			WindSpeed:        p.WindSpeed,
			Pressure:         p.Pressure,
		}
		if i == 0 {
			snap.Current = m
			if ts, err := time.Parse("2006-01-02T15:04:05", p.Time); err == nil {
				snap.ObservedAt = ts.UTC()
			}
			continue
		}
		ts, err := time.Parse("2006-01-02T15:04:05", p.Time)
		if err != nil {
			continue
		}
		snap.Forecast = append(snap.Forecast, ocean.ForecastPoint{
			Time:    ts.UTC(),
			Source:  ocean.SourceCMEMS,
			Metrics: m,
		})
	}
	return snap, nil
}
