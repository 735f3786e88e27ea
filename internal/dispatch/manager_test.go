package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/pkg/errors"

	"github.com/fitbarz/kitcontrol/internal/scanner"
)

type fakeStream struct {
	frames chan scanner.Frame
}

func (s *fakeStream) Frames() <-chan scanner.Frame { return s.frames }
func (s *fakeStream) Close() error                 { return nil }

type fakeDevice struct {
	stream *fakeStream
}

func (d *fakeDevice) Open(ctx context.Context, facing scanner.Facing, exact bool) (scanner.Stream, error) {
	return d.stream, nil
}

type frameDecoder struct{}

func (frameDecoder) Decode(frame scanner.Frame) (string, bool) {
	return string(frame), len(frame) > 0
}

func scanningSession(t *testing.T, m *Manager, codes ...string) *Session {
	t.Helper()
	s := m.Create()
	if err := s.Login("Juan", "ORD-7", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := s.SelectProduct(testProduct(codes...)); err != nil {
		t.Fatalf("select: %v", err)
	}
	return s
}

func TestManagerCreateGetClose(t *testing.T) {
	m := NewManager(&memoryLog{}, NameRoleResolver("FS"), nil)

	s := m.Create()
	got, err := m.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("get created session: %v", err)
	}

	m.Close(s.ID())
	if _, err := m.Get(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestOpenScannerRequiresScanningState(t *testing.T) {
	device := &fakeDevice{stream: &fakeStream{frames: make(chan scanner.Frame)}}
	factory := func() *scanner.Adapter {
		return scanner.NewAdapter(device, frameDecoder{}, EventBus.New())
	}
	m := NewManager(&memoryLog{}, NameRoleResolver("FS"), factory)

	s := m.Create()
	err := m.OpenScanner(context.Background(), s.ID(), scanner.FacingRear)
	if !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState for logged-out session, got %v", err)
	}
}

func TestDecodedCodesConfirmTargets(t *testing.T) {
	device := &fakeDevice{stream: &fakeStream{frames: make(chan scanner.Frame, 4)}}
	factory := func() *scanner.Adapter {
		return scanner.NewAdapter(device, frameDecoder{}, EventBus.New())
	}
	m := NewManager(&memoryLog{}, NameRoleResolver("FS"), factory)
	s := scanningSession(t, m, "A-1", "A-2")

	if err := m.OpenScanner(context.Background(), s.ID(), scanner.FacingRear); err != nil {
		t.Fatalf("open scanner: %v", err)
	}
	defer m.CloseScanner(s.ID())

	device.stream.frames <- scanner.Frame("A-1")
	device.stream.frames <- scanner.Frame("garbage") // rejected, no state change
	device.stream.frames <- scanner.Frame("A-2")

	deadline := time.After(2 * time.Second)
	for !s.IsComplete() {
		select {
		case <-deadline:
			confirmed, total, _ := s.Progress()
			t.Fatalf("targets not confirmed in time: %d/%d", confirmed, total)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestCloseScannerIsIdempotent(t *testing.T) {
	device := &fakeDevice{stream: &fakeStream{frames: make(chan scanner.Frame)}}
	factory := func() *scanner.Adapter {
		return scanner.NewAdapter(device, frameDecoder{}, EventBus.New())
	}
	m := NewManager(&memoryLog{}, NameRoleResolver("FS"), factory)
	s := scanningSession(t, m, "A-1")

	if err := m.OpenScanner(context.Background(), s.ID(), scanner.FacingRear); err != nil {
		t.Fatalf("open scanner: %v", err)
	}
	if _, ok := m.Scanner(s.ID()); !ok {
		t.Fatalf("scanner not registered")
	}

	m.CloseScanner(s.ID())
	if _, ok := m.Scanner(s.ID()); ok {
		t.Fatalf("scanner still registered after close")
	}
	m.CloseScanner(s.ID()) // no-op
}

func TestOpenScannerWithoutDevice(t *testing.T) {
	m := NewManager(&memoryLog{}, NameRoleResolver("FS"), nil)
	s := scanningSession(t, m, "A-1")

	if err := m.OpenScanner(context.Background(), s.ID(), scanner.FacingRear); err == nil {
		t.Fatalf("expected error when no capture device is configured")
	}
}
