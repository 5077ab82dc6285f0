package smartclim

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMAC = "5C:31:3E:00:11:22"

// fakeSensor serves characteristic values from memory. Each read of a
// UUID pops the next queued response; the last one repeats.
type fakeSensor struct {
	mu           sync.Mutex
	responses    map[string][]fakeResponse
	reads        map[string]int
	block        chan struct{}
	delay        time.Duration
	disconnected bool

	active    int
	maxActive int
}

type fakeResponse struct {
	data []byte
	err  error
}

func newFakeSensor() *fakeSensor {
	return &fakeSensor{
		responses: make(map[string][]fakeResponse),
		reads:     make(map[string]int),
	}
}

func (f *fakeSensor) set(uuid string, rs ...fakeResponse) {
	f.responses[uuid] = rs
}

func (f *fakeSensor) Read(uuid string) ([]byte, error) {
	f.mu.Lock()
	f.active++
	f.maxActive = max(f.maxActive, f.active)
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--

	rs, ok := f.responses[uuid]
	if !ok {
		return nil, ErrCharacteristicNotFound
	}
	i := f.reads[uuid]
	f.reads[uuid]++
	if i >= len(rs) {
		i = len(rs) - 1
	}
	return rs[i].data, rs[i].err
}

func (f *fakeSensor) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	return nil
}

func (f *fakeSensor) concurrency() (active, maxActive int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.maxActive
}

func (f *fakeSensor) isDisconnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

func (f *fakeSensor) readCount(uuid string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[uuid]
}

func dialFake(f *fakeSensor) dialFunc {
	return func(context.Context, string, *clientConfig) (peripheral, error) {
		return f, nil
	}
}

func newTestClient(t *testing.T, f *fakeSensor, opts ...ClientOption) *Client {
	t.Helper()
	c, err := newClient(context.Background(), testMAC, dialFake(f), opts...)
	require.NoError(t, err)
	c.retryDelay = time.Millisecond
	return c
}

func payload(s string) []byte {
	b, _ := hex.DecodeString(s)
	return b
}

func TestNewClient_InvalidAddress(t *testing.T) {
	for _, mac := range []string{"", "sc1", "5C:31:3E:00:11", "5C-31-3E-00-11-22", "ZZ:31:3E:00:11:22"} {
		_, err := newClient(context.Background(), mac, dialFake(newFakeSensor()))
		assert.ErrorIs(t, err, ErrInvalidAddress, mac)
	}
}

func TestNewClient_InvalidOption(t *testing.T) {
	_, err := newClient(context.Background(), testMAC, dialFake(newFakeSensor()), WithRetries(-1))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid option")
}

func TestNewClient_DialError(t *testing.T) {
	dialErr := errors.New("le-connection-abort-by-local")
	dial := func(context.Context, string, *clientConfig) (peripheral, error) {
		return nil, dialErr
	}

	_, err := newClient(context.Background(), testMAC, dial)
	assert.ErrorIs(t, err, dialErr)
	assert.Contains(t, err.Error(), testMAC)
}

func TestNewClient_AppliesConnectTimeout(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	dial := func(ctx context.Context, _ string, _ *clientConfig) (peripheral, error) {
		deadline, hasDeadline = ctx.Deadline()
		return newFakeSensor(), nil
	}

	_, err := newClient(context.Background(), testMAC, dial, WithConnectTimeout(time.Minute))
	require.NoError(t, err)
	assert.True(t, hasDeadline)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestNewClient_PassesConfigToDialer(t *testing.T) {
	var gotMAC, gotAdapter string
	dial := func(_ context.Context, mac string, cfg *clientConfig) (peripheral, error) {
		gotMAC, gotAdapter = mac, cfg.adapter
		return newFakeSensor(), nil
	}

	c, err := newClient(context.Background(), "5c:31:3e:00:11:22", dial, WithAdapter("hci1"))
	require.NoError(t, err)
	assert.Equal(t, testMAC, gotMAC)
	assert.Equal(t, "hci1", gotAdapter)
	assert.Equal(t, testMAC, c.Address())
}

func TestReadValues(t *testing.T) {
	f := newFakeSensor()
	f.set(UUIDGetValues, fakeResponse{data: payload("05d600002f0000000064")})
	c := newTestClient(t, f)

	r, err := c.ReadValues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Reading{Temperature: 21.4, Humidity: 47, Battery: 100}, r)
	assert.Equal(t, 1, f.readCount(UUIDGetValues))
}

func TestReadValues_RetriesReadError(t *testing.T) {
	f := newFakeSensor()
	f.set(UUIDGetValues,
		fakeResponse{err: errors.New("device busy")},
		fakeResponse{data: payload("05d600002f0000000064")},
	)
	c := newTestClient(t, f)

	r, err := c.ReadValues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 21.4, r.Temperature)
	assert.Equal(t, 2, f.readCount(UUIDGetValues))
}

func TestReadValues_RetriesMalformedPayload(t *testing.T) {
	f := newFakeSensor()
	f.set(UUIDGetValues,
		fakeResponse{data: payload("05d600")},
		fakeResponse{data: payload("05d600002f0000000064")},
	)
	c := newTestClient(t, f)

	_, err := c.ReadValues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.readCount(UUIDGetValues))
}

func TestReadValues_GivesUpAfterRetries(t *testing.T) {
	f := newFakeSensor()
	f.set(UUIDGetValues, fakeResponse{data: payload("05d600")})
	c := newTestClient(t, f, WithRetries(3))

	r, err := c.ReadValues(context.Background())
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.Equal(t, Reading{}, r)
	assert.Equal(t, 4, f.readCount(UUIDGetValues))
}

func TestReadValues_NoRetryWhenCharacteristicMissing(t *testing.T) {
	f := newFakeSensor()
	c := newTestClient(t, f)

	_, err := c.ReadValues(context.Background())
	assert.ErrorIs(t, err, ErrCharacteristicNotFound)
	assert.Equal(t, 0, f.readCount(UUIDGetValues))
}

func TestReadValues_RequestTimeout(t *testing.T) {
	f := newFakeSensor()
	f.block = make(chan struct{})
	defer close(f.block)
	f.set(UUIDGetValues, fakeResponse{data: payload("05d600002f0000000064")})
	c := newTestClient(t, f, WithRequestTimeout(10*time.Millisecond), WithRetries(0))

	_, err := c.ReadValues(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReadValues_TimedOutReadsDoNotOverlap(t *testing.T) {
	f := newFakeSensor()
	f.delay = 200 * time.Millisecond
	f.set(UUIDGetValues, fakeResponse{data: payload("05d600002f0000000064")})
	c := newTestClient(t, f, WithRequestTimeout(5*time.Millisecond), WithRetries(3))

	_, err := c.ReadValues(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.Eventually(t, func() bool {
		active, _ := f.concurrency()
		return active == 0
	}, time.Second, time.Millisecond)
	_, maxActive := f.concurrency()
	assert.Equal(t, 1, maxActive)
	assert.Equal(t, 1, f.readCount(UUIDGetValues))
}

func TestReadValues_WaitsForAbandonedRead(t *testing.T) {
	f := newFakeSensor()
	f.delay = 20 * time.Millisecond
	f.set(UUIDGetValues, fakeResponse{data: payload("05d600002f0000000064")})
	c := newTestClient(t, f, WithRequestTimeout(5*time.Millisecond))

	_, err := c.ReadRaw(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r, err := c.ReadValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, 47, r.Humidity)

	_, maxActive := f.concurrency()
	assert.Equal(t, 1, maxActive)
}

func TestClose_WaitsForReadInFlight(t *testing.T) {
	f := newFakeSensor()
	f.delay = 20 * time.Millisecond
	f.set(UUIDGetValues, fakeResponse{data: payload("05d600002f0000000064")})
	c := newTestClient(t, f, WithRequestTimeout(time.Second))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.ReadRaw(context.Background())
	}()
	require.Eventually(t, func() bool {
		active, _ := f.concurrency()
		return active == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, c.Close())
	active, _ := f.concurrency()
	assert.Equal(t, 0, active, "disconnect ran during a read")
	assert.True(t, f.isDisconnected())
	<-done
}

func TestReadValues_ContextCanceled(t *testing.T) {
	f := newFakeSensor()
	f.set(UUIDGetValues, fakeResponse{err: errors.New("device busy")})
	c := newTestClient(t, f)
	c.retryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.ReadValues(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadRaw(t *testing.T) {
	f := newFakeSensor()
	f.set(UUIDGetValues, fakeResponse{data: payload("05d600002f0000000064")})
	c := newTestClient(t, f)

	data, err := c.ReadRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "05d600002f0000000064", hex.EncodeToString(data))
}

func TestReadDeviceInfo(t *testing.T) {
	f := newFakeSensor()
	f.set(UUIDDeviceName, fakeResponse{data: []byte("Smart Clim")})
	f.set(UUIDModelNumber, fakeResponse{data: []byte("BeeWi BBW200\x00")})
	f.set(UUIDSerialNumber, fakeResponse{data: []byte{0x00}})
	f.set(UUIDFirmwareRevision, fakeResponse{data: []byte("V1.5 R140514\x00")})
	f.set(UUIDHardwareRevision, fakeResponse{data: []byte("1.0\x00")})
	f.set(UUIDManufacturerName, fakeResponse{data: []byte("Voxland\x00")})
	c := newTestClient(t, f)

	info, err := c.ReadDeviceInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DeviceInfo{
		Name:             "Smart Clim",
		ModelNumber:      "BeeWi BBW200",
		FirmwareRevision: "V1.5 R140514",
		HardwareRevision: "1.0",
		Manufacturer:     "Voxland",
	}, info)
}

func TestReadDeviceInfo_ReadError(t *testing.T) {
	f := newFakeSensor()
	f.set(UUIDDeviceName, fakeResponse{err: errors.New("not connected")})
	c := newTestClient(t, f)

	_, err := c.ReadDeviceInfo(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestClose(t *testing.T) {
	f := newFakeSensor()
	f.set(UUIDGetValues, fakeResponse{data: payload("05d600002f0000000064")})
	c := newTestClient(t, f)

	require.NoError(t, c.Close())
	assert.True(t, f.disconnected)
	require.NoError(t, c.Close())

	_, err := c.ReadValues(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, f.readCount(UUIDGetValues))
}

func TestPrintable(t *testing.T) {
	assert.Equal(t, "V1.5 R140514", printable([]byte("V1.5 R140514\x00")))
	assert.Equal(t, "", printable([]byte{0x00, 0x0a, 0x7f, 0xff}))
	assert.Equal(t, "", printable(nil))
}
