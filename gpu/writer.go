// Package gpu adapts gogpu/wgpu HAL buffers to the shadercache upload
// contract.
//
// The destination buffer for kernel uploads is owned by the caller's
// resource manager; this package allocates it on a hal.Device and wraps
// the device queue's buffer writes in a bounds-checked
// shadercache.KernelWriter. Applications sharing one GPU device (e.g. a
// gogpu window) can hand their device over through a
// gpucontext.DeviceProvider.
package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/shadercache"
)

// Writer errors.
var (
	// ErrNilDevice is returned when allocating a buffer without a device.
	ErrNilDevice = errors.New("gpu: device is nil")

	// ErrNilQueue is returned when creating a writer without a queue.
	ErrNilQueue = errors.New("gpu: queue is nil")

	// ErrNilBuffer is returned when creating a writer without a buffer.
	ErrNilBuffer = errors.New("gpu: buffer is nil")

	// ErrNilProvider is returned when a nil device provider is passed.
	ErrNilProvider = errors.New("gpu: nil DeviceProvider")

	// ErrNoHALAccess is returned when a provider does not expose raw HAL
	// device and queue handles.
	ErrNoHALAccess = errors.New("gpu: provider does not expose HAL access")

	// ErrInvalidSize is returned when allocating a zero-sized buffer.
	ErrInvalidSize = errors.New("gpu: buffer size must be positive")

	// ErrWriteOutOfRange is returned when a kernel write would exceed the
	// destination buffer.
	ErrWriteOutOfRange = errors.New("gpu: write exceeds buffer size")
)

// Writer implements shadercache.KernelWriter on a HAL buffer. Writes go
// through the device queue and are bounds-checked against the buffer
// size, since HAL queue writes have no error return of their own.
type Writer struct {
	queue  hal.Queue
	buffer hal.Buffer
	size   uint64
}

// NewWriter wraps an existing buffer and queue. size is the buffer's
// capacity in bytes; writes beyond it fail with ErrWriteOutOfRange.
func NewWriter(queue hal.Queue, buffer hal.Buffer, size uint64) (*Writer, error) {
	if queue == nil {
		return nil, ErrNilQueue
	}
	if buffer == nil {
		return nil, ErrNilBuffer
	}
	return &Writer{queue: queue, buffer: buffer, size: size}, nil
}

// Write implements shadercache.KernelWriter.
func (w *Writer) Write(offset uint32, data []byte) error {
	if uint64(offset)+uint64(len(data)) > w.size {
		return fmt.Errorf("%w: offset %d + %d bytes > %d",
			ErrWriteOutOfRange, offset, len(data), w.size)
	}
	if len(data) == 0 {
		return nil
	}
	w.queue.WriteBuffer(w.buffer, uint64(offset), data)
	return nil
}

// Buffer returns the underlying HAL buffer, for binding the kernel
// memory into command-stream state.
func (w *Writer) Buffer() hal.Buffer { return w.buffer }

// Size returns the buffer capacity in bytes.
func (w *Writer) Size() uint64 { return w.size }

// CreateKernelBuffer allocates a device buffer for uploaded kernels.
// Size it with a dry-run Upload call (nil writer) so alignment and the
// prefetch margin are accounted for.
func CreateKernelBuffer(device hal.Device, size uint64) (hal.Buffer, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if size == 0 {
		return nil, ErrInvalidSize
	}

	desc := &hal.BufferDescriptor{
		Label: "shadercache-kernels",
		Size:  size,
		Usage: gputypes.BufferUsageCopyDst | gputypes.BufferUsageStorage,
	}
	buffer, err := device.CreateBuffer(desc)
	if err != nil {
		return nil, fmt.Errorf("gpu: kernel buffer creation failed: %w", err)
	}

	shadercache.Logger().Debug("allocated kernel buffer", "size", size)

	return buffer, nil
}

// NewWriterFromProvider allocates a kernel buffer on a shared GPU device
// and returns a Writer targeting it.
//
// The provider must also expose raw HAL access through HalDevice() any
// and HalQueue() any returning hal.Device and hal.Queue, as gogpu
// windows do.
func NewWriterFromProvider(provider gpucontext.DeviceProvider, size uint64) (*Writer, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}

	hp, ok := provider.(interface {
		HalDevice() any
		HalQueue() any
	})
	if !ok {
		return nil, ErrNoHALAccess
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALAccess)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALAccess)
	}

	buffer, err := CreateKernelBuffer(device, size)
	if err != nil {
		return nil, err
	}

	return NewWriter(queue, buffer, size)
}
