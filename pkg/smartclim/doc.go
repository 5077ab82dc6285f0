// Package smartclim provides a client for reading BeeWi BBW200
// "SmartClim" temperature and humidity sensors over Bluetooth Low Energy.
//
// # Basic Usage
//
//	ctx := context.Background()
//	client, err := smartclim.NewClient(ctx, "5C:31:3E:00:11:22")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	reading, err := client.ReadValues(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(reading.Temperature, reading.Humidity, reading.HumidityStatus())
//
// # Configuration
//
// The client can be configured using functional options:
//
//	client, err := smartclim.NewClient(ctx, "5C:31:3E:00:11:22",
//	    smartclim.WithAdapter("hci1"),
//	    smartclim.WithConnectTimeout(15*time.Second),
//	    smartclim.WithRetries(3),
//	    smartclim.WithLogger(slog.Default()),
//	)
//
// # Protocol
//
// The sensor exposes its current values as a 10 byte characteristic
// (a8b3fb43-4834-4051-89d0-3de95cddd318, handle 0x003f). Decode turns that
// payload into a Reading without any Bluetooth access, and Classify derives
// the Domoticz humidity status from temperature and humidity.
//
// Bluetooth access uses BlueZ and is only available on Linux.
package smartclim
