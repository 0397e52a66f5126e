package audiodevice

import "errors"

var (
	errNonPositiveProperty = errors.New("device properties must be positive")
	errUnsupportedBitDepth = errors.New("bit depth must be one of 8, 16 or 32")
)

type DeviceProperties struct {
	SampleRate  int
	NumChannels int

	// Bits per sample. Only 16 bit PCM is produced by serial capture devices.
	BitDepth int
}

// Bytes occupied by one frame, i.e. one sample for every channel.
func (p DeviceProperties) BytesPerFrame() int {
	return p.NumChannels * p.BitDepth / 8
}

// Check that every property is positive and the bit depth is supported.
func (p DeviceProperties) Validate() error {
	if p.SampleRate <= 0 || p.NumChannels <= 0 || p.BitDepth <= 0 {
		return errNonPositiveProperty
	}
	switch p.BitDepth {
	case 8, 16, 32:
	default:
		return errUnsupportedBitDepth
	}
	return nil
}

// Properties of the mono 16 bit PCM stream sent by the microcontroller
// at the given sample rate.
func MonoPCM16(sampleRate int) DeviceProperties {
	return DeviceProperties{
		SampleRate:  sampleRate,
		NumChannels: 1,
		BitDepth:    16,
	}
}

// Interface for audio sink devices that consume raw little endian PCM bytes,
// e.g. a .WAV file on disk.
type AudioSinkDevice interface {
	// Append raw PCM bytes to the device, in order.
	//
	// Returns the number of bytes accepted, which is always len(data) unless an error occurs.
	WriteFrames(data []byte) (int, error)

	GetDeviceProperties() DeviceProperties

	// Finalize the device, flushing all written frames.
	//
	// Close must be safe to call more than once.
	Close() error
}
