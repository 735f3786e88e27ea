package scanner

import (
	"context"
	"sync"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// TopicCodeDecoded is the event bus topic decoded code strings are
// published on. Subscribers receive the raw code text.
const TopicCodeDecoded = "scanner.code.decoded"

// Facing selects which camera to acquire.
type Facing string

const (
	FacingFront Facing = "user"
	FacingRear  Facing = "environment"
)

// Frame is one captured video frame, encoding left to the device.
type Frame []byte

// Stream is an open capture stream. Close releases every acquired
// device track and must be called on all exit paths.
type Stream interface {
	Frames() <-chan Frame
	Close() error
}

// CaptureDevice acquires a camera. With exact set the facing
// constraint is strict; a relaxed open may return any camera.
type CaptureDevice interface {
	Open(ctx context.Context, facing Facing, exact bool) (Stream, error)
}

// Decoder extracts a QR/barcode string from a frame. The decoding
// algorithm is an external capability.
type Decoder interface {
	Decode(frame Frame) (code string, ok bool)
}

// ErrDeviceUnavailable is surfaced after both the exact and the
// relaxed acquisition attempts fail.
var ErrDeviceUnavailable = errors.New("camera unavailable or permission denied")

// Adapter wraps a capture device and publishes decoded codes on the
// event bus. Acquisition is retried once with a relaxed facing
// constraint before an error is surfaced; the adapter never panics on
// device failure, it degrades to an error state readable via Err.
type Adapter struct {
	mu sync.Mutex

	device  CaptureDevice
	decoder Decoder
	bus     EventBus.Bus

	facing  Facing
	stream  Stream
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	lastErr error
}

func NewAdapter(device CaptureDevice, decoder Decoder, bus EventBus.Bus) *Adapter {
	return &Adapter{
		device:  device,
		decoder: decoder,
		bus:     bus,
		facing:  FacingRear,
	}
}

// Bus returns the event bus decoded codes are published on.
func (a *Adapter) Bus() EventBus.Bus { return a.bus }

// Facing returns the current facing preference.
func (a *Adapter) Facing() Facing {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.facing
}

// Err returns the last acquisition error, or nil.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Running reports whether a stream is currently open.
func (a *Adapter) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Start acquires a camera matching the facing preference and begins
// the decode loop. An exact-constraint failure is retried once with
// the relaxed constraint before the error is surfaced.
func (a *Adapter) Start(ctx context.Context, facing Facing) error {
	a.Stop()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.facing = facing
	stream, err := a.device.Open(ctx, facing, true)
	if err != nil {
		zap.L().Warn("exact camera constraint failed, retrying relaxed",
			zap.String("facing", string(facing)), zap.Error(err))
		stream, err = a.device.Open(ctx, facing, false)
	}
	if err != nil {
		a.lastErr = errors.Wrap(ErrDeviceUnavailable, err.Error())
		return a.lastErr
	}

	loopCtx, cancel := context.WithCancel(ctx)
	a.stream = stream
	a.cancel = cancel
	a.running = true
	a.lastErr = nil

	a.wg.Add(1)
	go a.decodeLoop(loopCtx, stream)
	return nil
}

func (a *Adapter) decodeLoop(ctx context.Context, stream Stream) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, okc := <-stream.Frames():
			if !okc {
				return
			}
			code, ok := a.decoder.Decode(frame)
			if !ok {
				continue
			}
			// Pending frames after cancellation are discarded.
			select {
			case <-ctx.Done():
				return
			default:
			}
			a.bus.Publish(TopicCodeDecoded, code)
		}
	}
}

// Stop releases the device stream. It is idempotent and safe to call
// on every exit path.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	cancel := a.cancel
	stream := a.stream
	a.cancel = nil
	a.stream = nil
	a.running = false
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		if err := stream.Close(); err != nil {
			zap.L().Warn("scanner stream close failed", zap.Error(err))
		}
	}
	a.wg.Wait()
}

// Toggle flips the facing preference and restarts the stream.
func (a *Adapter) Toggle(ctx context.Context) error {
	next := FacingRear
	if a.Facing() == FacingRear {
		next = FacingFront
	}
	return a.Start(ctx, next)
}
