package t5

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prosefix/prosefix/internal/safetensors"
	"github.com/prosefix/prosefix/internal/tensor"
)

const weightsFileName = "model.safetensors"

// Load reads config.json and model.safetensors from dir and builds an
// Instance with decoder capacity maxDecode.
func Load(dir string, maxDecode int) (*Instance, error) {
	cfg, err := LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, weightsFileName)
	if _, err := os.Stat(path); err != nil {
		if _, idxErr := os.Stat(filepath.Join(dir, weightsFileName+".index.json")); idxErr == nil {
			return nil, fmt.Errorf("%s is a sharded checkpoint; merge it into a single %s", dir, weightsFileName)
		}
		return nil, fmt.Errorf("model weights: %w", err)
	}
	sf, err := safetensors.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sf.Close() }()

	return build(cfg, sf, maxDecode)
}

func build(cfg *Config, sf *safetensors.File, maxDecode int) (*Instance, error) {
	if maxDecode < 1 {
		return nil, fmt.Errorf("decoder capacity must be positive, got %d", maxDecode)
	}
	gated, actName, err := cfg.activation()
	if err != nil {
		return nil, err
	}
	act := tensor.Relu
	if actName == "gelu" || actName == "gelu_new" {
		act = tensor.GeluTanh
	}

	m := &Instance{cfg: cfg, maxDecode: maxDecode}

	m.emb, err = loadMatCandidates(sf, []string{"shared.weight", "encoder.embed_tokens.weight"}, cfg.VocabSize, cfg.DModel)
	if err != nil {
		return nil, err
	}
	if !cfg.TieWordEmb {
		m.lmHead, err = loadMat(sf, "lm_head.weight", cfg.VocabSize, cfg.DModel)
		if err != nil {
			return nil, err
		}
	}

	inner := cfg.InnerDim()

	m.encoder = make([]encoderBlock, cfg.NumLayers)
	for i := range m.encoder {
		prefix := fmt.Sprintf("encoder.block.%d", i)
		attn, err := loadAttn(sf, prefix+".layer.0", "SelfAttention", cfg.DModel, inner)
		if err != nil {
			return nil, err
		}
		ff, err := loadFF(sf, prefix+".layer.1", cfg, gated, act)
		if err != nil {
			return nil, err
		}
		m.encoder[i] = encoderBlock{attn: attn, ff: ff}
	}
	m.encoderNorm, err = loadVec(sf, "encoder.final_layer_norm.weight", cfg.DModel)
	if err != nil {
		return nil, err
	}
	m.encRelBias, err = loadMat(sf, "encoder.block.0.layer.0.SelfAttention.relative_attention_bias.weight",
		cfg.RelAttnNumBuckets, cfg.NumHeads)
	if err != nil {
		return nil, err
	}

	m.decoder = make([]decoderBlock, cfg.NumDecoderLayers)
	for i := range m.decoder {
		prefix := fmt.Sprintf("decoder.block.%d", i)
		self, err := loadAttn(sf, prefix+".layer.0", "SelfAttention", cfg.DModel, inner)
		if err != nil {
			return nil, err
		}
		cross, err := loadAttn(sf, prefix+".layer.1", "EncDecAttention", cfg.DModel, inner)
		if err != nil {
			return nil, err
		}
		ff, err := loadFF(sf, prefix+".layer.2", cfg, gated, act)
		if err != nil {
			return nil, err
		}
		m.decoder[i] = decoderBlock{self: self, cross: cross, ff: ff}
	}
	m.decoderNorm, err = loadVec(sf, "decoder.final_layer_norm.weight", cfg.DModel)
	if err != nil {
		return nil, err
	}
	m.decRelBias, err = loadMat(sf, "decoder.block.0.layer.0.SelfAttention.relative_attention_bias.weight",
		cfg.RelAttnNumBuckets, cfg.NumHeads)
	if err != nil {
		return nil, err
	}

	m.initState()
	return m, nil
}

func loadAttn(sf *safetensors.File, prefix, attnName string, dModel, inner int) (attnLayer, error) {
	var a attnLayer
	var err error
	if a.norm, err = loadVec(sf, prefix+".layer_norm.weight", dModel); err != nil {
		return a, err
	}
	base := prefix + "." + attnName
	if a.wq, err = loadMat(sf, base+".q.weight", inner, dModel); err != nil {
		return a, err
	}
	if a.wk, err = loadMat(sf, base+".k.weight", inner, dModel); err != nil {
		return a, err
	}
	if a.wv, err = loadMat(sf, base+".v.weight", inner, dModel); err != nil {
		return a, err
	}
	if a.wo, err = loadMat(sf, base+".o.weight", dModel, inner); err != nil {
		return a, err
	}
	return a, nil
}

func loadFF(sf *safetensors.File, prefix string, cfg *Config, gated bool, act func(float32) float32) (ffLayer, error) {
	ff := ffLayer{act: act}
	var err error
	if ff.norm, err = loadVec(sf, prefix+".layer_norm.weight", cfg.DModel); err != nil {
		return ff, err
	}
	base := prefix + ".DenseReluDense"
	if gated {
		// wi_0 feeds the activation, wi_1 the linear gate.
		if ff.wi, err = loadMat(sf, base+".wi_0.weight", cfg.DFF, cfg.DModel); err != nil {
			return ff, err
		}
		if ff.wiGate, err = loadMat(sf, base+".wi_1.weight", cfg.DFF, cfg.DModel); err != nil {
			return ff, err
		}
	} else {
		if ff.wi, err = loadMat(sf, base+".wi.weight", cfg.DFF, cfg.DModel); err != nil {
			return ff, err
		}
	}
	if ff.wo, err = loadMat(sf, base+".wo.weight", cfg.DModel, cfg.DFF); err != nil {
		return ff, err
	}
	return ff, nil
}

func loadMat(sf *safetensors.File, name string, rows, cols int) (*tensor.Mat, error) {
	data, info, err := sf.TensorF32(name)
	if err != nil {
		return nil, err
	}
	if len(info.Shape) != 2 || info.Shape[0] != rows || info.Shape[1] != cols {
		return nil, fmt.Errorf("tensor %s: shape %v, want [%d %d]", name, info.Shape, rows, cols)
	}
	return tensor.NewMatFromData(rows, cols, data), nil
}

func loadMatCandidates(sf *safetensors.File, names []string, rows, cols int) (*tensor.Mat, error) {
	var lastErr error
	for _, name := range names {
		if _, ok := sf.Tensor(name); !ok {
			continue
		}
		m, err := loadMat(sf, name, rows, cols)
		if err == nil {
			return m, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("none of %v found in %s", names, sf.Path)
}

func loadVec(sf *safetensors.File, name string, length int) ([]float32, error) {
	data, info, err := sf.TensorF32(name)
	if err != nil {
		return nil, err
	}
	if len(data) != length {
		return nil, fmt.Errorf("tensor %s: shape %v, want [%d]", name, info.Shape, length)
	}
	return data, nil
}
