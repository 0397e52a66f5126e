package device

import (
	"sync"

	"github.com/Honorable-Knights-of-the-Roundtable/serialwav/pkg/audiodevice"
)

// An AudioSinkDevice that keeps every written byte in memory instead of on disk.
//
// A minimal example of the architecture of an AudioSinkDevice, useful in testing.
type DummyAudioSinkDevice struct {
	properties audiodevice.DeviceProperties

	mu     sync.Mutex
	data   []byte
	writes []int
	closed bool
}

func NewDummyAudioSinkDevice(properties audiodevice.DeviceProperties) *DummyAudioSinkDevice {
	return &DummyAudioSinkDevice{
		properties: properties,
	}
}

func (d *DummyAudioSinkDevice) WriteFrames(data []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, errDeviceClosed
	}
	d.data = append(d.data, data...)
	d.writes = append(d.writes, len(data))
	return len(data), nil
}

// Every byte written so far, in order.
func (d *DummyAudioSinkDevice) Data() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.data...)
}

// Length of each WriteFrames call, in order.
func (d *DummyAudioSinkDevice) Writes() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.writes...)
}

func (d *DummyAudioSinkDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *DummyAudioSinkDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *DummyAudioSinkDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.properties
}
