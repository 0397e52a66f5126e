package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/serialwav/pkg/audiodevice"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

const wavFormatPCM = 1

var errDeviceClosed = errors.New("file audio output device is closed")

// --------------------------------------------------------------------------------
// FileAudioOutputDevice

// Define an AudioSinkDevice that writes raw little endian PCM bytes to a .WAV file.
// Note the resulting file is only valid once the device is closed.
type FileAudioOutputDevice struct {
	logger     *slog.Logger
	properties audiodevice.DeviceProperties

	closeOnce sync.Once
	closeErr  error
	closed    bool

	encoder    *wav.Encoder
	fileHandle *os.File
	bufFormat  *goaudio.Format

	// Bytes of an incomplete sample, carried over to the next call to WriteFrames
	carry        []byte
	bytesWritten int
}

// Create a new FileAudioOutputDevice that writes PCM bytes to a .WAV file at the specified path.
// Any existing file at the path is truncated.
//
// The WAV header is written immediately, so even a device that never receives
// a frame produces a valid (empty) file once closed.
func NewFileAudioOutputDevice(
	audioFilePath string,
	properties audiodevice.DeviceProperties,
) (*FileAudioOutputDevice, error) {
	uuid := uuid.New()
	logger := slog.Default().With(
		"file output device uuid", uuid,
	)

	if err := properties.Validate(); err != nil {
		logger.Error(
			"invalid properties for file audio output",
			"properties", properties,
			"err", err,
		)
		return nil, err
	}

	f, err := os.Create(audioFilePath)
	if err != nil {
		logger.Error(
			"could not create audio file",
			"audioFile", audioFilePath,
			"err", err,
		)
		return nil, err
	}

	encoder := wav.NewEncoder(f, properties.SampleRate, properties.BitDepth, properties.NumChannels, wavFormatPCM)
	bufFormat := &goaudio.Format{
		SampleRate:  properties.SampleRate,
		NumChannels: properties.NumChannels,
	}

	// Writing an empty buffer forces the RIFF and fmt headers out
	if err := encoder.Write(&goaudio.IntBuffer{Format: bufFormat, SourceBitDepth: properties.BitDepth}); err != nil {
		logger.Error(
			"could not write wav header",
			"audioFile", audioFilePath,
			"err", err,
		)
		f.Close()
		return nil, err
	}

	logger.Debug(
		"created audio file",
		"audioFile", audioFilePath,
		"sampleRate", encoder.SampleRate,
		"channels", encoder.NumChans,
		"bitDepth", encoder.BitDepth,
	)

	return &FileAudioOutputDevice{
		logger:     logger,
		properties: properties,
		encoder:    encoder,
		fileHandle: f,
		bufFormat:  bufFormat,
		carry:      make([]byte, 0, properties.BytesPerFrame()),
	}, nil
}

// Append raw little endian PCM bytes to the file, in order.
//
// Only whole frames reach the encoder. Trailing bytes of a partial frame are
// held back and prepended to the next call, so chunk boundaries need not align with samples.
func (d *FileAudioOutputDevice) WriteFrames(data []byte) (int, error) {
	if d.closed {
		return 0, errDeviceClosed
	}
	if len(data) == 0 {
		return 0, nil
	}

	frameBytes := d.properties.BytesPerFrame()
	pending := data
	if len(d.carry) > 0 {
		pending = append(append(make([]byte, 0, len(d.carry)+len(data)), d.carry...), data...)
		d.carry = d.carry[:0]
	}

	wholeBytes := len(pending) - len(pending)%frameBytes
	d.carry = append(d.carry, pending[wholeBytes:]...)
	if wholeBytes == 0 {
		d.bytesWritten += len(data)
		return len(data), nil
	}

	if err := d.encoder.Write(d.intBuffer(pending[:wholeBytes])); err != nil {
		d.logger.Error("error while writing frames to file", "err", err)
		return 0, err
	}
	d.bytesWritten += len(data)

	d.logger.Debug("wrote frames", "bytes", len(data), "totalBytes", d.bytesWritten)
	return len(data), nil
}

func (d *FileAudioOutputDevice) intBuffer(pcm []byte) *goaudio.IntBuffer {
	sampleBytes := d.properties.BitDepth / 8
	buf := &goaudio.IntBuffer{
		Format:         d.bufFormat,
		Data:           make([]int, len(pcm)/sampleBytes),
		SourceBitDepth: d.properties.BitDepth,
	}
	for i := range buf.Data {
		sample := pcm[i*sampleBytes : (i+1)*sampleBytes]
		switch sampleBytes {
		case 1:
			buf.Data[i] = int(sample[0])
		case 2:
			buf.Data[i] = int(int16(binary.LittleEndian.Uint16(sample)))
		case 4:
			buf.Data[i] = int(int32(binary.LittleEndian.Uint32(sample)))
		}
	}
	return buf
}

// Number of PCM bytes handed to WriteFrames so far.
func (d *FileAudioOutputDevice) BytesWritten() int {
	return d.bytesWritten
}

// Finalize the .WAV header, sync and close the file.
//
// A trailing partial frame is padded with zero bytes so the file stays frame aligned.
func (d *FileAudioOutputDevice) Close() error {
	d.closeOnce.Do(func() {
		d.logger.Debug("shutdown called")
		d.closed = true

		var padErr error
		if len(d.carry) > 0 {
			d.logger.Warn(
				"padding incomplete trailing frame",
				"danglingBytes", len(d.carry),
			)
			padded := make([]byte, d.properties.BytesPerFrame())
			copy(padded, d.carry)
			padErr = d.encoder.Write(d.intBuffer(padded))
			d.carry = d.carry[:0]
		}

		d.closeErr = errors.Join(
			padErr,
			d.encoder.Close(),
			d.fileHandle.Sync(),
			d.fileHandle.Close(),
		)
		if d.closeErr != nil {
			d.logger.Error("error while finalizing audio file", "err", d.closeErr)
		}
	})
	return d.closeErr
}

func (d *FileAudioOutputDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.properties
}

// --------------------------------------------------------------------------------
// FileAudioInputDevice

// Define a read only view of an existing .WAV file, used to inspect recordings.
type FileAudioInputDevice struct {
	logger     *slog.Logger
	decoder    *wav.Decoder
	fileHandle *os.File
}

// Open a .WAV file and seek to its PCM data.
func NewFileAudioInputDevice(audioFilePath string) (*FileAudioInputDevice, error) {
	uuid := uuid.New()
	logger := slog.Default().With(
		"file input device uuid", uuid,
	)

	f, err := os.Open(audioFilePath)
	if err != nil {
		logger.Error(
			"could not open audio file",
			"audioFile", audioFilePath,
			"err", err,
		)
		return nil, err
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		logger.Error(
			"could not decode audio file",
			"audioFile", audioFilePath,
			"err", decoder.Err(),
		)
		f.Close()
		return nil, fmt.Errorf("%s is not a valid wav file", audioFilePath)
	}
	if err := decoder.FwdToPCM(); err != nil {
		logger.Error(
			"could not find pcm data in audio file",
			"audioFile", audioFilePath,
			"err", err,
		)
		f.Close()
		return nil, err
	}

	logger.Debug(
		"loaded audio file",
		"audioFile", audioFilePath,
		"sampleRate", decoder.SampleRate,
		"channels", decoder.NumChans,
		"pcmBytes", decoder.PCMSize,
	)

	return &FileAudioInputDevice{
		logger:     logger,
		decoder:    decoder,
		fileHandle: f,
	}, nil
}

// Size in bytes of the PCM data chunk, as recorded in the file header.
func (d *FileAudioInputDevice) PCMBytes() int {
	return d.decoder.PCMSize
}

func (d *FileAudioInputDevice) Duration() time.Duration {
	bytesPerSecond := d.GetDeviceProperties().BytesPerFrame() * int(d.decoder.SampleRate)
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(d.decoder.PCMSize) * time.Second / time.Duration(bytesPerSecond)
}

// Read every sample in the file.
func (d *FileAudioInputDevice) Samples() ([]int, error) {
	buf, err := d.decoder.FullPCMBuffer()
	if err != nil {
		d.logger.Error("could not get full PCM buffer from audio file", "err", err)
		return nil, err
	}
	return buf.Data, nil
}

func (d *FileAudioInputDevice) Close() error {
	d.logger.Debug("shutdown called")
	return d.fileHandle.Close()
}

func (d *FileAudioInputDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return audiodevice.DeviceProperties{
		SampleRate:  int(d.decoder.SampleRate),
		NumChannels: int(d.decoder.NumChans),
		BitDepth:    int(d.decoder.BitDepth),
	}
}
