package pmu

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
)

func TestSerialDialer_Dial_EmptyDevicePath(t *testing.T) {
	dialer := SerialDialer{}

	transport, err := dialer.Dial()

	if err == nil {
		t.Error("expected error for empty device path")
	}
	if transport != nil {
		t.Error("expected nil transport for empty device path")
	}
	if err.Error() != "pmu: device path is required" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestSerialDialer_Dial_DeviceNotFound(t *testing.T) {
	dialer := SerialDialer{
		DevicePath: "/dev/nonexistent-pmu-uart",
	}

	transport, err := dialer.Dial()

	var notFound *DeviceNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected DeviceNotFoundError, got: %v", err)
	}
	if notFound.Device != "/dev/nonexistent-pmu-uart" {
		t.Errorf("error should carry the device path, got: %q", notFound.Device)
	}
	if transport != nil {
		t.Error("expected nil transport for missing device")
	}
}

// Test the interface compliance
func TestTransportInterface(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTransport := NewMockTransport(ctrl)

	var _ Transport = mockTransport

	data := []byte("ping\n")
	mockTransport.EXPECT().Write(data).Return(len(data), nil)
	mockTransport.EXPECT().ReadChunk(100 * time.Millisecond).Return([]byte("pong"), nil)
	mockTransport.EXPECT().Close().Return(nil)

	n, err := mockTransport.Write(data)
	if err != nil {
		t.Errorf("unexpected write error: %v", err)
	}
	if n != len(data) {
		t.Errorf("expected %d bytes written, got %d", len(data), n)
	}

	chunk, err := mockTransport.ReadChunk(100 * time.Millisecond)
	if err != nil {
		t.Errorf("unexpected read error: %v", err)
	}
	if string(chunk) != "pong" {
		t.Errorf("unexpected chunk: %q", chunk)
	}

	if err := mockTransport.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

func TestDialerInterface(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDialer := NewMockDialer(ctrl)
	mockTransport := NewMockTransport(ctrl)

	var _ Dialer = mockDialer

	mockDialer.EXPECT().Dial().Return(mockTransport, nil)

	transport, err := mockDialer.Dial()
	if err != nil {
		t.Errorf("unexpected dial error: %v", err)
	}
	if transport != mockTransport {
		t.Error("expected mock transport to be returned")
	}
}
