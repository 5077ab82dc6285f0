package smartclim

import "strings"

// DeviceInfo holds the GATT device information strings of a sensor.
//
// A BBW200 running firmware V1.5 reports:
//
//	Name:             "Smart Clim"
//	ModelNumber:      "BeeWi BBW200"
//	FirmwareRevision: "V1.5 R140514"
//	HardwareRevision: "1.0"
//	Manufacturer:     "Voxland"
type DeviceInfo struct {
	Name             string
	ModelNumber      string
	SerialNumber     string
	FirmwareRevision string
	HardwareRevision string
	SoftwareRevision string
	Manufacturer     string
}

// fields pairs each characteristic with its destination field.
func (d *DeviceInfo) fields() []struct {
	uuid string
	dst  *string
} {
	return []struct {
		uuid string
		dst  *string
	}{
		{UUIDDeviceName, &d.Name},
		{UUIDModelNumber, &d.ModelNumber},
		{UUIDSerialNumber, &d.SerialNumber},
		{UUIDFirmwareRevision, &d.FirmwareRevision},
		{UUIDHardwareRevision, &d.HardwareRevision},
		{UUIDSoftwareRevision, &d.SoftwareRevision},
		{UUIDManufacturerName, &d.Manufacturer},
	}
}

// printable keeps the printable ASCII bytes of a characteristic value.
// The sensor pads its strings with NUL bytes.
func printable(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if c > 31 && c < 127 {
			b.WriteByte(c)
		}
	}
	return b.String()
}
