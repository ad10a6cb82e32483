package tensor

// Mat represents a dense row-major matrix of float32 values.
//
// R and C are the number of rows and columns. Stride is the number of
// elements between the starts of two consecutive rows; for row-major
// matrices this equals C. Mat performs no bounds checking beyond what
// Go slices provide; out-of-range indices panic.
type Mat struct {
	R, C   int
	Stride int
	Data   []float32
}

// NewMat allocates a zero-initialised matrix with r rows and c columns.
func NewMat(r, c int) *Mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return &Mat{R: r, C: c, Stride: c, Data: make([]float32, r*c)}
}

// NewMatFromData creates a matrix backed by existing data. The data
// length must equal r*c.
func NewMatFromData(r, c int, data []float32) *Mat {
	if r*c != len(data) {
		panic("data length mismatch")
	}
	return &Mat{R: r, C: c, Stride: c, Data: data}
}

// Row returns the i-th row as a slice view.
func (m *Mat) Row(i int) []float32 {
	return m.Data[i*m.Stride : i*m.Stride+m.C]
}

// MatVec computes dst = m * x where x has length m.C and dst has
// length m.R.
func MatVec(dst []float32, m *Mat, x []float32) {
	if len(x) < m.C || len(dst) < m.R {
		panic("MatVec: dimension mismatch")
	}
	for r := 0; r < m.R; r++ {
		row := m.Data[r*m.Stride : r*m.Stride+m.C]
		var sum float32
		for i, v := range row {
			sum += v * x[i]
		}
		dst[r] = sum
	}
}
