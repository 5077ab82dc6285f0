package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/zberg/go-smartclim/pkg/smartclim"
)

const rule = "-------------------------------------"

func formatTemperature(t float64) string {
	return strconv.FormatFloat(t, 'f', 1, 64)
}

func printValues(w io.Writer, r smartclim.Reading) {
	fmt.Fprintf(w, "Temperature       = %s℃\n", formatTemperature(r.Temperature))
	fmt.Fprintf(w, "Humidity          = %d%%\n", r.Humidity)
	fmt.Fprintf(w, "Battery           = %d%%\n", r.Battery)
	fmt.Fprintf(w, "Comfort           = %s\n", r.HumidityStatus())
}

func printReport(w io.Writer, info *smartclim.DeviceInfo, r smartclim.Reading) {
	fmt.Fprintln(w, rule)
	if info != nil {
		fmt.Fprintf(w, "Device name       = %s\n", info.Name)
		fmt.Fprintf(w, "Model number      = %s\n", info.ModelNumber)
		fmt.Fprintf(w, "Serial number     = %s\n", info.SerialNumber)
		fmt.Fprintf(w, "Firmware revision = %s\n", info.FirmwareRevision)
		fmt.Fprintf(w, "Hardware revision = %s\n", info.HardwareRevision)
		fmt.Fprintf(w, "Software revision = %s\n", info.SoftwareRevision)
		fmt.Fprintf(w, "Manufacturer      = %s\n", info.Manufacturer)
		fmt.Fprintln(w, rule)
	}
	printValues(w, r)
	fmt.Fprintln(w, rule)
}

// printRaw writes the values on one line for scripts.
func printRaw(w io.Writer, r smartclim.Reading) {
	fmt.Fprintf(w, "%s %d %d\n", formatTemperature(r.Temperature), r.Humidity, r.Battery)
}

func printDiscovered(w io.Writer, results []smartclim.DiscoveryResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No sensors found.")
		return
	}
	for _, res := range results {
		fmt.Fprintf(w, "Found %s at %s (RSSI %d dBm)\n", res.Name, res.Address, res.RSSI)
	}
}
