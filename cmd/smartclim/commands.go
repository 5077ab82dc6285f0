package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/zberg/go-smartclim/internal/app"
	"github.com/zberg/go-smartclim/internal/config"
	"github.com/zberg/go-smartclim/internal/logging"
	"github.com/zberg/go-smartclim/pkg/smartclim"
)

var (
	deviceMAC string
	adapterID string
	timeout   time.Duration
	retries   int
	debug     bool

	scanDuration time.Duration
	envFile      string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceMAC, "mac", "", "MAC address of the sensor (XX:XX:XX:XX:XX:XX)")
	rootCmd.PersistentFlags().StringVar(&adapterID, "adapter", "hci0", "Bluetooth adapter to use")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Connection timeout")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", 2, "Retries for a failed value read")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	discoverCmd.Flags().DurationVar(&scanDuration, "duration", 10*time.Second, "How long to scan")
	monitorCmd.Flags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file with monitor settings")

	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(valCmd)
	rootCmd.AddCommand(rawCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(monitorCmd)
}

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "Show device information and current values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := getClient(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		info, err := client.ReadDeviceInfo(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading device information: %w", err)
		}
		r, err := client.ReadValues(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading values: %w", err)
		}

		printReport(cmd.OutOrStdout(), &info, r)
		return nil
	},
}

var valCmd = &cobra.Command{
	Use:   "val",
	Short: "Show temperature, humidity and battery level",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := readValues(cmd)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), nil, r)
		return nil
	},
}

var rawCmd = &cobra.Command{
	Use:   "raw",
	Short: "Print temperature, humidity and battery level on one line",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := readValues(cmd)
		if err != nil {
			return err
		}
		printRaw(cmd.OutOrStdout(), r)
		return nil
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode [payload]",
	Short: "Decode a captured value payload without connecting",
	Long: `Decode a captured value payload without connecting. The payload may be
plain hex ("05d600002f0000000064") or a gatttool line
("Characteristic value/descriptor: 05 d6 00 00 2f 00 00 00 00 64").`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := smartclim.ParsePayload(args[0])
		if err != nil {
			return err
		}
		r, err := smartclim.Decode(data)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), nil, r)
		return nil
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scan for SmartClim sensors nearby",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if scanDuration <= 0 {
			return fmt.Errorf("invalid --duration %v: must be positive", scanDuration)
		}
		logger := cliLogger()
		fmt.Fprintln(cmd.OutOrStdout(), "Scanning for sensors...")

		ctx, cancel := context.WithTimeout(cmd.Context(), scanDuration)
		defer cancel()

		results, err := smartclim.Discover(ctx,
			smartclim.WithAdapter(adapterID),
			smartclim.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("discovering: %w", err)
		}
		printDiscovered(cmd.OutOrStdout(), results)
		return nil
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Measure periodically and publish to Domoticz over MQTT",
	Long: `Measure the sensor periodically and publish every reading to Domoticz over
MQTT. Settings come from the environment, optionally loaded from --env-file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		if debug {
			cfg.LogLevel = slog.LevelDebug
		}

		logger := logging.New(cfg.LogLevel, cfg.AppEnv, version, "smartclim")
		logger.Info("starting", "version", version, "env", cfg.AppEnv)

		err = app.Run(cmd.Context(), cfg, logger)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func cliLogger() *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return logging.New(level, "dev", version, "smartclim")
}

func clientOptions() []smartclim.ClientOption {
	return []smartclim.ClientOption{
		smartclim.WithAdapter(adapterID),
		smartclim.WithConnectTimeout(timeout),
		smartclim.WithRetries(retries),
		smartclim.WithLogger(cliLogger()),
	}
}

func getClient(cmd *cobra.Command) (*smartclim.Client, error) {
	if deviceMAC == "" {
		return nil, errors.New("device address required: use --mac or run discover first")
	}
	if err := smartclim.ValidateAddress(deviceMAC); err != nil {
		return nil, err
	}

	return smartclim.NewClient(cmd.Context(), deviceMAC, clientOptions()...)
}

func readValues(cmd *cobra.Command) (smartclim.Reading, error) {
	client, err := getClient(cmd)
	if err != nil {
		return smartclim.Reading{}, err
	}
	defer client.Close()

	r, err := client.ReadValues(cmd.Context())
	if err != nil {
		return smartclim.Reading{}, fmt.Errorf("reading values: %w", err)
	}
	return r, nil
}
