// Package t5 runs T5-family encoder-decoder models on the CPU in
// float32. The encoder consumes the whole prompt once; the decoder is
// stepped token by token with self- and cross-attention KV caches.
package t5

import (
	"fmt"
	"math"

	"github.com/prosefix/prosefix/internal/tensor"
)

type attnLayer struct {
	norm           []float32
	wq, wk, wv, wo *tensor.Mat
}

type ffLayer struct {
	norm   []float32
	wi     *tensor.Mat
	wiGate *tensor.Mat // nil for dense (non-gated) variants
	wo     *tensor.Mat
	act    func(float32) float32
}

type encoderBlock struct {
	attn attnLayer
	ff   ffLayer
}

type decoderBlock struct {
	self  attnLayer
	cross attnLayer
	ff    ffLayer
}

// Instance is a loaded T5 model plus the mutable state of one
// generation pass. It is not safe for concurrent use.
type Instance struct {
	cfg *Config

	emb    *tensor.Mat // [vocab, d_model]
	lmHead *tensor.Mat // nil when word embeddings are tied

	encoder     []encoderBlock
	encoderNorm []float32
	encRelBias  *tensor.Mat // [num_buckets, num_heads], shared by all encoder blocks

	decoder     []decoderBlock
	decoderNorm []float32
	decRelBias  *tensor.Mat

	maxDecode int

	// Per-prompt state.
	encStates      []float32 // encLen * d_model, after final norm
	encLen         int
	crossK, crossV [][]float32 // per decoder block: encLen * inner
	selfK, selfV   [][]float32 // per decoder block: maxDecode * inner
	pos            int

	scratch scratchBuffers
}

type scratchBuffers struct {
	x, normed, proj []float32 // d_model
	q, k, v, attn   []float32 // inner
	ffUp, ffGate    []float32 // d_ff
	scores          []float32
	logits          []float32
}

// Config returns the model configuration.
func (m *Instance) Config() *Config {
	return m.cfg
}

// MaxDecode returns the decoder step capacity.
func (m *Instance) MaxDecode() int {
	return m.maxDecode
}

func (m *Instance) initState() {
	cfg := m.cfg
	inner := cfg.InnerDim()
	m.selfK = make([][]float32, len(m.decoder))
	m.selfV = make([][]float32, len(m.decoder))
	for i := range m.decoder {
		m.selfK[i] = make([]float32, m.maxDecode*inner)
		m.selfV[i] = make([]float32, m.maxDecode*inner)
	}
	m.crossK = make([][]float32, len(m.decoder))
	m.crossV = make([][]float32, len(m.decoder))
	m.scratch = scratchBuffers{
		x:      make([]float32, cfg.DModel),
		normed: make([]float32, cfg.DModel),
		proj:   make([]float32, cfg.DModel),
		q:      make([]float32, inner),
		k:      make([]float32, inner),
		v:      make([]float32, inner),
		attn:   make([]float32, inner),
		ffUp:   make([]float32, cfg.DFF),
		ffGate: make([]float32, cfg.DFF),
		scores: make([]float32, m.maxDecode),
		logits: make([]float32, cfg.VocabSize),
	}
}

// Reset discards the encoded prompt and all decoder state.
func (m *Instance) Reset() {
	m.encStates = nil
	m.encLen = 0
	m.pos = 0
	for i := range m.crossK {
		m.crossK[i] = nil
		m.crossV[i] = nil
	}
}

// EncodePrompt runs the encoder over the prompt ids and prepares the
// decoder caches. It must be called before ForwardToken.
func (m *Instance) EncodePrompt(ids []int) error {
	if len(ids) == 0 {
		return fmt.Errorf("empty prompt")
	}
	cfg := m.cfg
	for _, id := range ids {
		if id < 0 || id >= cfg.VocabSize {
			return fmt.Errorf("prompt token id %d out of range", id)
		}
	}
	m.Reset()

	d := cfg.DModel
	inner := cfg.InnerDim()
	L := len(ids)

	// Embed.
	x := make([]float32, L*d)
	for i, id := range ids {
		copy(x[i*d:(i+1)*d], m.emb.Row(id))
	}

	// Relative position bias lookup per (rel, head), shared across
	// blocks: T5 computes the bias in the first block and reuses it.
	bias := m.relBiasTable(L, L, true, m.encRelBias)

	q := make([]float32, L*inner)
	k := make([]float32, L*inner)
	v := make([]float32, L*inner)
	attnOut := make([]float32, L*inner)
	scores := make([]float32, L)

	for bi := range m.encoder {
		blk := &m.encoder[bi]

		// Self-attention sublayer.
		for i := 0; i < L; i++ {
			tensor.RMSNorm(m.scratch.normed, x[i*d:(i+1)*d], blk.attn.norm, float32(cfg.LayerNormEps))
			tensor.MatVec(q[i*inner:(i+1)*inner], blk.attn.wq, m.scratch.normed)
			tensor.MatVec(k[i*inner:(i+1)*inner], blk.attn.wk, m.scratch.normed)
			tensor.MatVec(v[i*inner:(i+1)*inner], blk.attn.wv, m.scratch.normed)
		}
		for h := 0; h < cfg.NumHeads; h++ {
			ho := h * cfg.DKV
			for i := 0; i < L; i++ {
				qh := q[i*inner+ho : i*inner+ho+cfg.DKV]
				for j := 0; j < L; j++ {
					kh := k[j*inner+ho : j*inner+ho+cfg.DKV]
					scores[j] = tensor.Dot(qh, kh) + bias[h][j-i+L-1]
				}
				tensor.Softmax(scores[:L])
				out := attnOut[i*inner+ho : i*inner+ho+cfg.DKV]
				for c := range out {
					out[c] = 0
				}
				for j := 0; j < L; j++ {
					w := scores[j]
					vh := v[j*inner+ho : j*inner+ho+cfg.DKV]
					for c := range out {
						out[c] += w * vh[c]
					}
				}
			}
		}
		for i := 0; i < L; i++ {
			tensor.MatVec(m.scratch.proj, blk.attn.wo, attnOut[i*inner:(i+1)*inner])
			tensor.Add(x[i*d:(i+1)*d], m.scratch.proj)
		}

		// Feed-forward sublayer.
		for i := 0; i < L; i++ {
			m.feedForward(&blk.ff, x[i*d:(i+1)*d])
		}
	}

	// Final norm.
	m.encStates = make([]float32, L*d)
	for i := 0; i < L; i++ {
		tensor.RMSNorm(m.encStates[i*d:(i+1)*d], x[i*d:(i+1)*d], m.encoderNorm, float32(cfg.LayerNormEps))
	}
	m.encLen = L

	// Cross-attention keys and values are fixed for the prompt;
	// compute them once per decoder block.
	for bi := range m.decoder {
		blk := &m.decoder[bi]
		ck := make([]float32, L*inner)
		cv := make([]float32, L*inner)
		for i := 0; i < L; i++ {
			tensor.MatVec(ck[i*inner:(i+1)*inner], blk.cross.wk, m.encStates[i*d:(i+1)*d])
			tensor.MatVec(cv[i*inner:(i+1)*inner], blk.cross.wv, m.encStates[i*d:(i+1)*d])
		}
		m.crossK[bi] = ck
		m.crossV[bi] = cv
	}

	if len(m.scratch.scores) < L {
		m.scratch.scores = make([]float32, L)
	}
	return nil
}

// ForwardToken advances the decoder by one token and returns logits
// for the next token. The first call after EncodePrompt should pass
// the decoder start token.
func (m *Instance) ForwardToken(id int) ([]float32, error) {
	cfg := m.cfg
	if m.encLen == 0 {
		return nil, fmt.Errorf("no encoded prompt; call EncodePrompt first")
	}
	if id < 0 || id >= cfg.VocabSize {
		return nil, fmt.Errorf("token id %d out of range", id)
	}
	if m.pos >= m.maxDecode {
		return nil, fmt.Errorf("decoder capacity %d exceeded", m.maxDecode)
	}

	d := cfg.DModel
	inner := cfg.InnerDim()
	eps := float32(cfg.LayerNormEps)
	x := m.scratch.x
	copy(x, m.emb.Row(id))

	for bi := range m.decoder {
		blk := &m.decoder[bi]

		// Causal self-attention over the cached steps.
		tensor.RMSNorm(m.scratch.normed, x, blk.self.norm, eps)
		tensor.MatVec(m.scratch.q, blk.self.wq, m.scratch.normed)
		tensor.MatVec(m.scratch.k, blk.self.wk, m.scratch.normed)
		tensor.MatVec(m.scratch.v, blk.self.wv, m.scratch.normed)
		copy(m.selfK[bi][m.pos*inner:(m.pos+1)*inner], m.scratch.k)
		copy(m.selfV[bi][m.pos*inner:(m.pos+1)*inner], m.scratch.v)

		steps := m.pos + 1
		scores := m.scratch.scores[:steps]
		for h := 0; h < cfg.NumHeads; h++ {
			ho := h * cfg.DKV
			qh := m.scratch.q[ho : ho+cfg.DKV]
			for j := 0; j < steps; j++ {
				kh := m.selfK[bi][j*inner+ho : j*inner+ho+cfg.DKV]
				scores[j] = tensor.Dot(qh, kh) + m.decBias(h, j-m.pos)
			}
			tensor.Softmax(scores)
			out := m.scratch.attn[ho : ho+cfg.DKV]
			for c := range out {
				out[c] = 0
			}
			for j := 0; j < steps; j++ {
				w := scores[j]
				vh := m.selfV[bi][j*inner+ho : j*inner+ho+cfg.DKV]
				for c := range out {
					out[c] += w * vh[c]
				}
			}
		}
		tensor.MatVec(m.scratch.proj, blk.self.wo, m.scratch.attn)
		tensor.Add(x, m.scratch.proj)

		// Cross-attention over the encoded prompt; no position bias.
		tensor.RMSNorm(m.scratch.normed, x, blk.cross.norm, eps)
		tensor.MatVec(m.scratch.q, blk.cross.wq, m.scratch.normed)
		encScores := m.scratch.scores[:m.encLen]
		for h := 0; h < cfg.NumHeads; h++ {
			ho := h * cfg.DKV
			qh := m.scratch.q[ho : ho+cfg.DKV]
			for j := 0; j < m.encLen; j++ {
				kh := m.crossK[bi][j*inner+ho : j*inner+ho+cfg.DKV]
				encScores[j] = tensor.Dot(qh, kh)
			}
			tensor.Softmax(encScores)
			out := m.scratch.attn[ho : ho+cfg.DKV]
			for c := range out {
				out[c] = 0
			}
			for j := 0; j < m.encLen; j++ {
				w := encScores[j]
				vh := m.crossV[bi][j*inner+ho : j*inner+ho+cfg.DKV]
				for c := range out {
					out[c] += w * vh[c]
				}
			}
		}
		tensor.MatVec(m.scratch.proj, blk.cross.wo, m.scratch.attn)
		tensor.Add(x, m.scratch.proj)

		m.feedForward(&blk.ff, x)
	}

	tensor.RMSNorm(m.scratch.normed, x, m.decoderNorm, eps)
	logits := m.scratch.logits
	if m.lmHead != nil {
		tensor.MatVec(logits, m.lmHead, m.scratch.normed)
	} else {
		// Tied embeddings scale the decoder output by d_model^-1/2.
		scale := float32(1.0 / math.Sqrt(float64(d)))
		for i := range m.scratch.normed {
			m.scratch.normed[i] *= scale
		}
		tensor.MatVec(logits, m.emb, m.scratch.normed)
	}

	m.pos++
	return logits, nil
}

// feedForward applies the (gated) feed-forward sublayer to x in place,
// including the residual connection.
func (m *Instance) feedForward(ff *ffLayer, x []float32) {
	eps := float32(m.cfg.LayerNormEps)
	tensor.RMSNorm(m.scratch.normed, x, ff.norm, eps)
	tensor.MatVec(m.scratch.ffUp, ff.wi, m.scratch.normed)
	if ff.wiGate != nil {
		tensor.MatVec(m.scratch.ffGate, ff.wiGate, m.scratch.normed)
		for i := range m.scratch.ffUp {
			m.scratch.ffUp[i] = ff.act(m.scratch.ffUp[i]) * m.scratch.ffGate[i]
		}
	} else {
		for i := range m.scratch.ffUp {
			m.scratch.ffUp[i] = ff.act(m.scratch.ffUp[i])
		}
	}
	tensor.MatVec(m.scratch.proj, ff.wo, m.scratch.ffUp)
	tensor.Add(x, m.scratch.proj)
}

// relBiasTable builds a [head][rel] lookup where rel indexes relative
// positions from -(qLen-1) to kLen-1, offset by qLen-1.
func (m *Instance) relBiasTable(qLen, kLen int, bidirectional bool, rel *tensor.Mat) [][]float32 {
	cfg := m.cfg
	span := qLen + kLen - 1
	table := make([][]float32, cfg.NumHeads)
	for h := range table {
		table[h] = make([]float32, span)
	}
	for off := 0; off < span; off++ {
		relPos := off - (qLen - 1)
		bucket := relativeBucket(relPos, bidirectional, cfg.RelAttnNumBuckets, cfg.RelAttnMaxDistance)
		row := rel.Row(bucket)
		for h := 0; h < cfg.NumHeads; h++ {
			table[h][off] = row[h]
		}
	}
	return table
}

// decBias returns the causal self-attention bias for head h and
// relative position relPos (key position minus query position).
func (m *Instance) decBias(h, relPos int) float32 {
	bucket := relativeBucket(relPos, false, m.cfg.RelAttnNumBuckets, m.cfg.RelAttnMaxDistance)
	return m.decRelBias.Row(bucket)[h]
}

// relativeBucket maps a relative position to a bias bucket, mirroring
// the bucketing of the original T5 relative attention.
func relativeBucket(relPos int, bidirectional bool, numBuckets, maxDistance int) int {
	bucket := 0
	if bidirectional {
		numBuckets /= 2
		if relPos > 0 {
			bucket += numBuckets
		}
		if relPos < 0 {
			relPos = -relPos
		}
	} else {
		if relPos > 0 {
			relPos = 0
		}
		relPos = -relPos
	}
	maxExact := numBuckets / 2
	if relPos < maxExact {
		return bucket + relPos
	}
	large := maxExact + int(
		math.Log(float64(relPos)/float64(maxExact))/
			math.Log(float64(maxDistance)/float64(maxExact))*
			float64(numBuckets-maxExact))
	if large > numBuckets-1 {
		large = numBuckets - 1
	}
	return bucket + large
}
