// Command stepsim publishes synthetic pedometer readings to an MQTT broker.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"step-tracker/internal/logging"
	"step-tracker/internal/sensor"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	sensorID   string
	brokerAddr string
	topic      string
	interval   time.Duration
	maxStep    int
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "stepsim",
	Short: "Publish simulated step increments and daily totals over MQTT",
	RunE: func(cmd *cobra.Command, args []string) error {
		if maxStep <= 0 {
			return fmt.Errorf("--max-step must be positive")
		}
		level := "info"
		if verbose {
			level = "debug"
		}
		logger, err := logging.New(level, true)
		if err != nil {
			return err
		}
		defer logger.Sync()

		opts := mqtt.NewClientOptions().AddBroker(brokerAddr).SetClientID(sensorID)
		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("connect %s: %w", brokerAddr, token.Error())
		}
		defer client.Disconnect(250)

		sim := sensor.NewSimulator(sensorID, client, topic, interval, maxStep, time.Local, logger)
		sim.Start()
		defer sim.Stop()
		logger.Info("simulator running",
			zap.String("broker", brokerAddr), zap.String("topic", topic), zap.Duration("interval", interval))

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		<-sigs
		return nil
	},
}

func main() {
	rootCmd.Flags().StringVar(&sensorID, "sensor-id", "pedometer-01", "sensor identifier")
	rootCmd.Flags().StringVar(&brokerAddr, "broker", "tcp://localhost:1883", "MQTT broker address")
	rootCmd.Flags().StringVar(&topic, "topic", "steps", "base topic")
	rootCmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "publish interval")
	rootCmd.Flags().IntVar(&maxStep, "max-step", 40, "largest increment per interval")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
