package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"smart-maintenance/internal/config"
	maintenanceapp "smart-maintenance/internal/maintenance/application"
	telemetry "smart-maintenance/internal/telemetry/domain"
	"smart-maintenance/internal/telemetry/interfaces/mqtt"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Feed telemetry into the pipeline",
}

var ingestMQTTCmd = &cobra.Command{
	Use:   "mqtt",
	Short: "Consume JSON telemetry from MQTT_BROKER/MQTT_TOPIC until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		a, err := buildApp(ctx, cfg, newLogger(cfg, os.Stdout))
		if err != nil {
			return err
		}
		defer a.Close()
		return consumeMQTT(ctx, a)
	},
}

var ingestCSVCmd = &cobra.Command{
	Use:   "csv <file>",
	Short: "Run every row of a CSV file as a batch, devices in parallel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := newLogger(cfg, os.Stderr)
		a, err := buildApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer file.Close()
		samples, err := readCSV(cmd.Context(), file)
		if err != nil {
			return err
		}
		items, err := a.orchestrator.RunBatch(cmd.Context(), samples, maintenanceapp.RunOptions{TenantID: cfg.TenantID})
		if err != nil {
			return err
		}
		failed := 0
		for _, item := range items {
			if item.Err != nil {
				failed++
				logger.Error().Err(item.Err).Int("row", item.Index).Str("device_id", item.DeviceID).Msg("sample failed")
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%.2f\n", item.DeviceID, item.Report.ID, item.Report.Assessment.RiskScore)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d samples failed", failed, len(items))
		}
		return nil
	},
}

func init() {
	ingestCmd.AddCommand(ingestMQTTCmd)
	ingestCmd.AddCommand(ingestCSVCmd)
}

func consumeMQTT(ctx context.Context, a *app) error {
	client, err := mqtt.NewClient(a.cfg.MQTTBroker, a.cfg.MQTTClientID)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	opts := maintenanceapp.RunOptions{TenantID: a.cfg.TenantID}
	handler := func(ctx context.Context, sample telemetry.Sample) error {
		_, err := a.orchestrator.RunWithOptions(ctx, sample, opts)
		return err
	}
	subscriber, err := mqtt.NewSubscriber(client, a.cfg.MQTTTopic, handler, mqtt.WithLogger(a.logger))
	if err != nil {
		return err
	}
	return subscriber.Run(ctx)
}
