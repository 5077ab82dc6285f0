//go:build linux

package smartclim

import (
	"context"
	"fmt"
	"strings"

	"tinygo.org/x/bluetooth"
)

// maxValueLen is the largest attribute value an ATT read can return.
const maxValueLen = 512

// bleDevice is a BlueZ connection with its discovered characteristics.
type bleDevice struct {
	dev   bluetooth.Device
	chars map[string]bluetooth.DeviceCharacteristic
}

func (d *bleDevice) Read(uuid string) ([]byte, error) {
	char, ok := d.chars[strings.ToLower(uuid)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCharacteristicNotFound, uuid)
	}

	buf := make([]byte, maxValueLen)
	n, err := char.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (d *bleDevice) Disconnect() error {
	return d.dev.Disconnect()
}

func parseAddress(mac string) (bluetooth.Address, error) {
	m, err := bluetooth.ParseMAC(mac)
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: m}}, nil
}

func enableAdapter(id string) (*bluetooth.Adapter, error) {
	adapter := bluetooth.NewAdapter(id)
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("ble enable (%s): %w", id, err)
	}
	return adapter, nil
}

func dialBLE(ctx context.Context, mac string, cfg *clientConfig) (peripheral, error) {
	addr, err := parseAddress(mac)
	if err != nil {
		return nil, err
	}

	adapter, err := enableAdapter(cfg.adapter)
	if err != nil {
		return nil, err
	}

	type result struct {
		dev *bleDevice
		err error
	}
	resCh := make(chan result, 1)

	go func() {
		dev, err := adapter.Connect(addr, bluetooth.ConnectionParams{
			ConnectionTimeout: bluetooth.NewDuration(cfg.connectTimeout),
		})
		if err != nil {
			resCh <- result{err: err}
			return
		}

		chars, err := discoverCharacteristics(dev)
		if err != nil {
			_ = dev.Disconnect()
			resCh <- result{err: err}
			return
		}
		resCh <- result{dev: &bleDevice{dev: dev, chars: chars}}
	}()

	select {
	case res := <-resCh:
		if res.err != nil {
			return nil, res.err
		}
		return res.dev, nil
	case <-ctx.Done():
		// Drop a connection that completes after the caller gave up.
		go func() {
			if res := <-resCh; res.err == nil {
				_ = res.dev.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

func discoverCharacteristics(dev bluetooth.Device) (map[string]bluetooth.DeviceCharacteristic, error) {
	services, err := dev.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("could not discover services: %w", err)
	}

	chars := make(map[string]bluetooth.DeviceCharacteristic)
	for _, service := range services {
		found, err := service.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("could not discover characteristics: %w", err)
		}
		for _, char := range found {
			chars[strings.ToLower(char.UUID().String())] = char
		}
	}

	if _, ok := chars[UUIDGetValues]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrCharacteristicNotFound, UUIDGetValues)
	}
	return chars, nil
}

func scanBLE(ctx context.Context, cfg *clientConfig, onFound func(DiscoveryResult)) error {
	adapter, err := enableAdapter(cfg.adapter)
	if err != nil {
		return err
	}
	// StopScan before Scan has started is a no-op, and Scan would then
	// block forever.
	if ctx.Err() != nil {
		return nil
	}

	go func() {
		<-ctx.Done()
		_ = adapter.StopScan()
	}()

	// adapter.Scan blocks until StopScan() or error.
	err = adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		onFound(DiscoveryResult{
			Address: r.Address.String(),
			Name:    r.LocalName(),
			RSSI:    int(r.RSSI),
		})
	})

	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ble scan: %w", err)
	}
	return nil
}
