package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zberg/go-smartclim/pkg/smartclim"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	DeviceMAC       string
	Adapter         string
	MeasureInterval time.Duration
	Retries         int

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string
	DomoticzIdx  int

	HTTPAddr string
}

// Load reads envFile into the process environment, without overriding
// variables that are already set, and then calls LoadFromEnv.
// A missing envFile is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return LoadFromEnv()
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := ParseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	mac := strings.ToUpper(strings.TrimSpace(os.Getenv("SMARTCLIM_MAC")))
	if mac == "" {
		return Config{}, errors.New("SMARTCLIM_MAC is required")
	}
	if err := smartclim.ValidateAddress(mac); err != nil {
		return Config{}, fmt.Errorf("invalid SMARTCLIM_MAC: %w", err)
	}

	intervalStr := getEnv("SMARTCLIM_INTERVAL", "15")
	intervalMin, err := strconv.Atoi(intervalStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SMARTCLIM_INTERVAL %q: %w", intervalStr, err)
	}
	if intervalMin < 2 {
		return Config{}, fmt.Errorf("SMARTCLIM_INTERVAL must be at least 2 minutes, got %d", intervalMin)
	}

	retriesStr := getEnv("SMARTCLIM_RETRIES", "2")
	retries, err := strconv.Atoi(retriesStr)
	if err != nil || retries < 0 {
		return Config{}, fmt.Errorf("invalid SMARTCLIM_RETRIES %q", retriesStr)
	}

	mqttPortStr := getEnv("MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}
	if mqttPort < 1 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT must be between 1 and 65535, got %d", mqttPort)
	}

	idxStr := strings.TrimSpace(os.Getenv("DOMOTICZ_IDX"))
	if idxStr == "" {
		return Config{}, errors.New("DOMOTICZ_IDX is required")
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DOMOTICZ_IDX %q: %w", idxStr, err)
	}
	if idx <= 0 {
		return Config{}, fmt.Errorf("DOMOTICZ_IDX must be positive, got %d", idx)
	}

	return Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		DeviceMAC:       mac,
		Adapter:         getEnv("SMARTCLIM_ADAPTER", "hci0"),
		MeasureInterval: time.Duration(intervalMin) * time.Minute,
		Retries:         retries,
		MQTTBroker:      getEnv("MQTT_BROKER", "localhost"),
		MQTTPort:        mqttPort,
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "smartclim"),
		MQTTTopic:       getEnv("MQTT_TOPIC", "domoticz/in"),
		DomoticzIdx:     idx,
		HTTPAddr:        strings.TrimSpace(os.Getenv("HTTP_ADDR")),
	}, nil
}

// ParseLogLevel maps a level name onto a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
