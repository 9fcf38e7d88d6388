package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"smart-maintenance/internal/config"
	maintenanceapp "smart-maintenance/internal/maintenance/application"
	maintenance "smart-maintenance/internal/maintenance/domain"
	telemetry "smart-maintenance/internal/telemetry/domain"
	"smart-maintenance/internal/telemetry/interfaces/csvfile"
)

var runFlags struct {
	csvPath     string
	deviceID    string
	temperature float64
	pressure    float64
	cpuLoad     float64
	threshold   float64
	topK        int
	allRows     bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once and print the reports as JSON",
	Long: `Runs the maintenance pipeline for a single sample given by flags, or for
the latest row per device of a CSV file (--csv). With --all-rows every CSV row is
processed in order so trend rules see the full history.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a, err := buildApp(cmd.Context(), cfg, newLogger(cfg, os.Stderr))
		if err != nil {
			return err
		}
		defer a.Close()

		samples, err := loadRunSamples(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		opts := maintenanceapp.RunOptions{TenantID: cfg.TenantID, TopK: runFlags.topK}
		if cmd.Flags().Changed("alert-threshold") {
			threshold := runFlags.threshold
			opts.AlertThreshold = &threshold
		}
		return runSamples(cmd.Context(), a.orchestrator, samples, opts, cmd.OutOrStdout())
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.csvPath, "csv", "", "CSV file with Timestamp,DeviceID,Temperature,Pressure,CPU_Usage columns")
	f.BoolVar(&runFlags.allRows, "all-rows", false, "process every CSV row instead of the latest per device")
	f.StringVar(&runFlags.deviceID, "device", "", "device id for a single sample")
	f.Float64Var(&runFlags.temperature, "temperature", 0, "temperature reading")
	f.Float64Var(&runFlags.pressure, "pressure", 0, "pressure reading")
	f.Float64Var(&runFlags.cpuLoad, "cpu", 0, "cpu load reading")
	f.Float64Var(&runFlags.threshold, "alert-threshold", 0, "override the catalog alert threshold")
	f.IntVar(&runFlags.topK, "top-k", 0, "override the evidence top-k")
}

func loadRunSamples(ctx context.Context, cmd *cobra.Command) ([]telemetry.Sample, error) {
	if runFlags.csvPath != "" {
		file, err := os.Open(runFlags.csvPath)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		samples, err := readCSV(ctx, file)
		if err != nil {
			return nil, err
		}
		if runFlags.allRows {
			return samples, nil
		}
		return telemetry.LatestPerDevice(samples), nil
	}
	if runFlags.deviceID == "" {
		return nil, errors.New("either --csv or --device is required")
	}
	sample := telemetry.Sample{DeviceID: runFlags.deviceID, Timestamp: time.Now().UTC()}
	if cmd.Flags().Changed("temperature") {
		sample.Temperature = telemetry.Float(runFlags.temperature)
	}
	if cmd.Flags().Changed("pressure") {
		sample.Pressure = telemetry.Float(runFlags.pressure)
	}
	if cmd.Flags().Changed("cpu") {
		sample.CPULoad = telemetry.Float(runFlags.cpuLoad)
	}
	return []telemetry.Sample{sample}, nil
}

func readCSV(ctx context.Context, r io.Reader) ([]telemetry.Sample, error) {
	reader, err := csvfile.NewReader(r)
	if err != nil {
		return nil, err
	}
	return csvfile.ReadAll(ctx, reader)
}

type runOutput struct {
	DeviceID string              `json:"device_id"`
	Report   *maintenance.Report `json:"report,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// runSamples processes samples in order and writes one JSON document per sample.
// It returns an error when any sample failed.
func runSamples(ctx context.Context, orchestrator *maintenanceapp.Orchestrator, samples []telemetry.Sample, opts maintenanceapp.RunOptions, out io.Writer) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	failed := 0
	for _, sample := range samples {
		report, err := orchestrator.RunWithOptions(ctx, sample, opts)
		result := runOutput{DeviceID: sample.DeviceID, Report: report}
		if err != nil {
			failed++
			result.Error = err.Error()
		}
		if err := encoder.Encode(result); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(samples))
	}
	return nil
}
