// Package safetensors reads HuggingFace safetensors checkpoint files.
//
// Files are memory-mapped read-only where the platform supports it so
// tensor access is zero-copy; otherwise the whole file is read into
// memory. The returned File must be closed to release any mapping.
package safetensors

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/goccy/go-json"
)

// TensorInfo describes one tensor in the file. Start and End are byte
// offsets relative to the start of the data section.
type TensorInfo struct {
	DType string
	Shape []int
	Start int64
	End   int64
}

type File struct {
	Path    string
	Tensors map[string]TensorInfo

	data      []byte
	dataStart int64
	mmapped   bool
}

type tensorHeader struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

// Open maps the file at path and parses its header.
func Open(path string) (*File, error) {
	data, mmapped, err := mapFile(path)
	if err != nil {
		return nil, err
	}
	f, err := parse(path, data, mmapped)
	if err != nil {
		if mmapped {
			_ = unmapFile(data)
		}
		return nil, err
	}
	return f, nil
}

func parse(path string, data []byte, mmapped bool) (*File, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("safetensors %s: file too small", path)
	}
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > uint64(len(data)-8) {
		return nil, fmt.Errorf("safetensors %s: header length %d exceeds file size", path, headerLen)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &raw); err != nil {
		return nil, fmt.Errorf("safetensors %s: parse header: %w", path, err)
	}
	delete(raw, "__metadata__")

	dataStart := int64(8 + headerLen)
	dataLen := int64(len(data)) - dataStart

	tensors := make(map[string]TensorInfo, len(raw))
	for name, msg := range raw {
		var th tensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("safetensors %s: tensor %s: %w", path, name, err)
		}
		if len(th.DataOffsets) != 2 || th.DataOffsets[1] < th.DataOffsets[0] || th.DataOffsets[1] > dataLen {
			return nil, fmt.Errorf("safetensors %s: tensor %s: invalid data_offsets", path, name)
		}
		tensors[name] = TensorInfo{
			DType: th.DType,
			Shape: th.Shape,
			Start: th.DataOffsets[0],
			End:   th.DataOffsets[1],
		}
	}

	return &File{
		Path:      path,
		Tensors:   tensors,
		data:      data,
		dataStart: dataStart,
		mmapped:   mmapped,
	}, nil
}

// Close releases the file mapping. The file and any raw tensor slices
// obtained from it must not be used afterwards.
func (f *File) Close() error {
	if f.mmapped && f.data != nil {
		err := unmapFile(f.data)
		f.data = nil
		return err
	}
	f.data = nil
	return nil
}

// Tensor returns the metadata for a named tensor.
func (f *File) Tensor(name string) (TensorInfo, bool) {
	t, ok := f.Tensors[name]
	return t, ok
}

// Names returns all tensor names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Tensors))
	for name := range f.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TensorRaw returns the raw bytes of a tensor as a view into the
// mapped file. The slice is only valid until Close.
func (f *File) TensorRaw(name string) ([]byte, TensorInfo, error) {
	t, ok := f.Tensors[name]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("tensor not found: %s", name)
	}
	if f.data == nil {
		return nil, TensorInfo{}, fmt.Errorf("tensor %s: file is closed", name)
	}
	return f.data[f.dataStart+t.Start : f.dataStart+t.End], t, nil
}

// TensorF32 reads a tensor and converts it to float32. F32, BF16 and
// F16 dtypes are supported.
func (f *File) TensorF32(name string) ([]float32, TensorInfo, error) {
	raw, info, err := f.TensorRaw(name)
	if err != nil {
		return nil, TensorInfo{}, err
	}
	n, err := numElements(info.Shape)
	if err != nil {
		return nil, TensorInfo{}, fmt.Errorf("tensor %s: %w", name, err)
	}
	out := make([]float32, n)
	switch info.DType {
	case "F32":
		if len(raw) != n*4 {
			return nil, TensorInfo{}, fmt.Errorf("tensor %s: invalid f32 data size", name)
		}
		for i := 0; i < n; i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case "BF16":
		if len(raw) != n*2 {
			return nil, TensorInfo{}, fmt.Errorf("tensor %s: invalid bf16 data size", name)
		}
		for i := 0; i < n; i++ {
			out[i] = bf16ToF32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case "F16":
		if len(raw) != n*2 {
			return nil, TensorInfo{}, fmt.Errorf("tensor %s: invalid f16 data size", name)
		}
		for i := 0; i < n; i++ {
			out[i] = fp16ToF32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	default:
		return nil, TensorInfo{}, fmt.Errorf("tensor %s: unsupported dtype %s", name, info.DType)
	}
	return out, info, nil
}

func numElements(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("invalid dim %d", d)
		}
		if d > 0 && n > (int(^uint(0)>>1))/d {
			return 0, fmt.Errorf("tensor too large")
		}
		n *= d
	}
	return n, nil
}

func bf16ToF32(u uint16) float32 {
	return math.Float32frombits(uint32(u) << 16)
}

func fp16ToF32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1F
	frac := uint32(h & 0x3FF)
	var f uint32
	switch exp {
	case 0:
		if frac == 0 {
			f = sign << 31
		} else {
			e := uint32(127 - 15 + 1)
			for (frac & 0x400) == 0 {
				frac <<= 1
				e--
			}
			frac &= 0x3FF
			f = (sign << 31) | (e << 23) | (frac << 13)
		}
	case 0x1F:
		f = (sign << 31) | 0x7F800000 | (frac << 13)
	default:
		e := exp + (127 - 15)
		f = (sign << 31) | (e << 23) | (frac << 13)
	}
	return math.Float32frombits(f)
}
