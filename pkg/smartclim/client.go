package smartclim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

var (
	ErrInvalidAddress         = errors.New("invalid device address")
	ErrCharacteristicNotFound = errors.New("characteristic not found")
	ErrClosed                 = errors.New("client closed")
	ErrUnsupportedPlatform    = errors.New("bluetooth not supported on this platform")
)

// peripheral is a connected sensor whose characteristics are addressed by
// lowercase UUID string.
type peripheral interface {
	Read(uuid string) ([]byte, error)
	Disconnect() error
}

// dialFunc connects to the sensor at mac and discovers its characteristics.
type dialFunc func(ctx context.Context, mac string, cfg *clientConfig) (peripheral, error)

// Client represents a connection to a BeeWi SmartClim sensor.
type Client struct {
	dev            peripheral
	addr           string
	requestTimeout time.Duration
	retries        int
	retryDelay     time.Duration
	logger         *slog.Logger
	mu             sync.Mutex
	isClosed       bool

	// inflight holds a token while a peripheral read is running, including
	// a read whose caller already gave up.
	inflight chan struct{}
}

// NewClient connects to the sensor with the given MAC address.
// The context is used for the connection timeout.
// Options can be provided to configure the client behavior.
func NewClient(ctx context.Context, mac string, opts ...ClientOption) (*Client, error) {
	return newClient(ctx, mac, dialBLE, opts...)
}

func newClient(ctx context.Context, mac string, dial dialFunc, opts ...ClientOption) (*Client, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("invalid option: %w", err)
	}

	if err := ValidateAddress(mac); err != nil {
		return nil, err
	}
	mac = strings.ToUpper(mac)

	// Apply connect timeout to context if not already set
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.connectTimeout)
		defer cancel()
	}

	dev, err := dial(ctx, mac, cfg)
	if err != nil {
		if cfg.logger != nil {
			cfg.logger.Error("failed to connect", "addr", mac, "adapter", cfg.adapter, "error", err)
		}
		return nil, fmt.Errorf("connect %s: %w", mac, err)
	}

	c := &Client{
		dev:            dev,
		addr:           mac,
		requestTimeout: cfg.requestTimeout,
		retries:        cfg.retries,
		retryDelay:     500 * time.Millisecond,
		logger:         cfg.logger,
		inflight:       make(chan struct{}, 1),
	}

	if c.logger != nil {
		c.logger.Debug("connected to sensor", "addr", mac, "adapter", cfg.adapter)
	}

	return c, nil
}

// ValidateAddress checks that s is a MAC address in the
// XX:XX:XX:XX:XX:XX format.
func ValidateAddress(s string) error {
	if len(s) != 17 || strings.Count(s, ":") != 5 {
		return fmt.Errorf("%w: %q must be in the format XX:XX:XX:XX:XX:XX", ErrInvalidAddress, s)
	}
	if _, err := net.ParseMAC(s); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	return nil
}

// Address returns the MAC address of the connected sensor.
func (c *Client) Address() string {
	return c.addr
}

// Close disconnects from the sensor. A read still running on the
// peripheral is given up to the request timeout to finish first.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.isClosed {
		c.mu.Unlock()
		return nil
	}
	c.isClosed = true
	c.mu.Unlock()

	timer := time.NewTimer(c.requestTimeout)
	defer timer.Stop()
	select {
	case c.inflight <- struct{}{}:
		defer func() { <-c.inflight }()
	case <-timer.C:
		if c.logger != nil {
			c.logger.Warn("closing with a read in flight", "addr", c.addr)
		}
	}

	if c.logger != nil {
		c.logger.Debug("connection closed", "addr", c.addr)
	}
	return c.dev.Disconnect()
}

func (c *Client) closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isClosed
}

// read performs one characteristic read. At most one peripheral read runs
// per client; a read abandoned on timeout keeps its slot until the
// peripheral returns.
func (c *Client) read(ctx context.Context, uuid string) ([]byte, error) {
	if c.closed() {
		return nil, ErrClosed
	}

	// Apply request timeout if context has no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	select {
	case c.inflight <- struct{}{}:
	case <-ctx.Done():
		if c.logger != nil {
			c.logger.Warn("previous read still in flight", "uuid", uuid)
		}
		return nil, fmt.Errorf("read %s canceled: %w", uuid, ctx.Err())
	}
	if c.closed() {
		<-c.inflight
		return nil, ErrClosed
	}

	type result struct {
		data []byte
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		defer func() { <-c.inflight }()
		data, err := c.dev.Read(uuid)
		resCh <- result{data: data, err: err}
	}()

	select {
	case res := <-resCh:
		if res.err != nil {
			return nil, fmt.Errorf("read %s: %w", uuid, res.err)
		}
		if c.logger != nil {
			c.logger.Debug("characteristic read", "uuid", uuid, "dataLen", len(res.data))
		}
		return res.data, nil
	case <-ctx.Done():
		if c.logger != nil {
			c.logger.Warn("read timeout", "uuid", uuid)
		}
		return nil, fmt.Errorf("read %s canceled: %w", uuid, ctx.Err())
	}
}

// ReadRaw returns the undecoded value of the "get values" characteristic.
func (c *Client) ReadRaw(ctx context.Context) ([]byte, error) {
	return c.read(ctx, UUIDGetValues)
}

// ReadValues reads and decodes the current temperature, humidity and
// battery level. Failed reads and malformed payloads are retried up to
// the configured number of retries.
func (c *Client) ReadValues(ctx context.Context) (Reading, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return Reading{}, fmt.Errorf("read values canceled: %w", ctx.Err())
			}
		}

		data, err := c.ReadRaw(ctx)
		if err == nil {
			var r Reading
			r, err = Decode(data)
			if err == nil {
				if c.logger != nil {
					c.logger.Debug("values decoded", "addr", c.addr,
						"temperature", r.Temperature, "humidity", r.Humidity, "battery", r.Battery)
				}
				return r, nil
			}
		}
		lastErr = err

		if errors.Is(err, ErrClosed) || errors.Is(err, ErrCharacteristicNotFound) || ctx.Err() != nil {
			break
		}
		if c.logger != nil {
			c.logger.Warn("read values failed", "addr", c.addr, "attempt", attempt+1, "error", err)
		}
	}
	return Reading{}, lastErr
}

// ReadDeviceInfo reads the device information strings. Characteristics
// the sensor does not expose are left empty.
func (c *Client) ReadDeviceInfo(ctx context.Context) (DeviceInfo, error) {
	var info DeviceInfo
	for _, f := range info.fields() {
		data, err := c.read(ctx, f.uuid)
		if errors.Is(err, ErrCharacteristicNotFound) {
			continue
		}
		if err != nil {
			return DeviceInfo{}, err
		}
		*f.dst = printable(data)
	}
	return info, nil
}

// ReadOnce connects to the sensor, reads its values and disconnects.
func ReadOnce(ctx context.Context, mac string, opts ...ClientOption) (Reading, error) {
	client, err := NewClient(ctx, mac, opts...)
	if err != nil {
		return Reading{}, err
	}
	defer client.Close()

	return client.ReadValues(ctx)
}
