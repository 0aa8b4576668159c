// Package onnx runs exported CLIP-style vision and text towers locally with
// ONNX Runtime. Both towers must project into the same embedding space.
package onnx

import (
	"context"
	"fmt"
	"sync"

	"github.com/daulet/tokenizers"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/papercomputeco/snaps/pkg/embeddings"
	"github.com/papercomputeco/snaps/pkg/imageutil"
	"github.com/papercomputeco/snaps/pkg/vector"
)

const (
	DefaultImageSize  = 224
	DefaultMaxTokens  = 77
	DefaultDimensions = 512
)

// Config holds the model artefact locations and tensor layout.
type Config struct {
	// LibraryPath points at libonnxruntime. Empty uses the platform default.
	LibraryPath string

	VisionModelPath string
	TextModelPath   string
	TokenizerPath   string

	Dimensions uint
	ImageSize  int
	MaxTokens  int

	Logger *zap.Logger
}

// Embedder holds one session per tower with preallocated tensors. Runs are
// serialized because sessions bind their input and output tensors.
type Embedder struct {
	mu sync.Mutex

	tokenizer *tokenizers.Tokenizer

	vision      *ort.AdvancedSession
	pixelValues *ort.Tensor[float32]
	imageEmbeds *ort.Tensor[float32]

	text          *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	textEmbeds    *ort.Tensor[float32]

	imageSize int
	maxTokens int
	logger    *zap.Logger
	once      sync.Once
}

// NewEmbedder initializes ONNX Runtime and loads both towers.
func NewEmbedder(c Config) (*Embedder, error) {
	if c.VisionModelPath == "" || c.TextModelPath == "" || c.TokenizerPath == "" {
		return nil, fmt.Errorf("onnx embedder requires vision model, text model and tokenizer paths")
	}
	if c.Dimensions == 0 {
		c.Dimensions = DefaultDimensions
	}
	if c.ImageSize <= 0 {
		c.ImageSize = DefaultImageSize
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	if c.LibraryPath != "" {
		ort.SetSharedLibraryPath(c.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("init onnx: %w", err)
	}

	e := &Embedder{
		imageSize: c.ImageSize,
		maxTokens: c.MaxTokens,
		logger:    c.Logger,
	}

	if err := e.load(c); err != nil {
		e.Close()
		return nil, err
	}

	c.Logger.Info("onnx embedder initialized",
		zap.String("vision_model", c.VisionModelPath),
		zap.String("text_model", c.TextModelPath),
		zap.Uint("dimensions", c.Dimensions),
	)

	return e, nil
}

func (e *Embedder) load(c Config) error {
	var err error
	dims := int64(c.Dimensions)
	size := int64(c.ImageSize)
	tokens := int64(c.MaxTokens)

	e.pixelValues, err = ort.NewTensor(ort.NewShape(1, 3, size, size), make([]float32, 3*size*size))
	if err != nil {
		return fmt.Errorf("create pixel tensor: %w", err)
	}
	e.imageEmbeds, err = ort.NewTensor(ort.NewShape(1, dims), make([]float32, dims))
	if err != nil {
		return fmt.Errorf("create image output tensor: %w", err)
	}
	e.vision, err = ort.NewAdvancedSession(
		c.VisionModelPath,
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		[]ort.ArbitraryTensor{e.pixelValues},
		[]ort.ArbitraryTensor{e.imageEmbeds},
		nil,
	)
	if err != nil {
		return fmt.Errorf("create vision session: %w", err)
	}

	e.inputIDs, err = ort.NewTensor(ort.NewShape(1, tokens), make([]int64, tokens))
	if err != nil {
		return fmt.Errorf("create input tensor: %w", err)
	}
	e.attentionMask, err = ort.NewTensor(ort.NewShape(1, tokens), make([]int64, tokens))
	if err != nil {
		return fmt.Errorf("create attention tensor: %w", err)
	}
	e.textEmbeds, err = ort.NewTensor(ort.NewShape(1, dims), make([]float32, dims))
	if err != nil {
		return fmt.Errorf("create text output tensor: %w", err)
	}
	e.text, err = ort.NewAdvancedSession(
		c.TextModelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"text_embeds"},
		[]ort.ArbitraryTensor{e.inputIDs, e.attentionMask},
		[]ort.ArbitraryTensor{e.textEmbeds},
		nil,
	)
	if err != nil {
		return fmt.Errorf("create text session: %w", err)
	}

	e.tokenizer, err = tokenizers.FromFile(c.TokenizerPath)
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}
	return nil
}

// Embed tokenizes the text and runs the text tower.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ids, _ := e.tokenizer.Encode(text, true)
	ids64, mask := padTokens(ids, e.maxTokens)
	copy(e.inputIDs.GetData(), ids64)
	copy(e.attentionMask.GetData(), mask)

	if err := e.text.Run(); err != nil {
		return nil, fmt.Errorf("%w: text inference: %v", vector.ErrEmbedding, err)
	}

	return copyNormalized(e.textEmbeds.GetData()), nil
}

// EmbedImage decodes and preprocesses the image and runs the vision tower.
func (e *Embedder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := imageutil.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrEmbedding, err)
	}
	pixels := imageutil.Preprocess(img, e.imageSize, imageutil.CLIPNormalization)

	e.mu.Lock()
	defer e.mu.Unlock()

	copy(e.pixelValues.GetData(), pixels)
	if err := e.vision.Run(); err != nil {
		return nil, fmt.Errorf("%w: vision inference: %v", vector.ErrEmbedding, err)
	}

	return copyNormalized(e.imageEmbeds.GetData()), nil
}

// padTokens truncates or zero-pads token ids to maxLen and builds the
// matching attention mask.
func padTokens(ids []uint32, maxLen int) ([]int64, []int64) {
	inputIDs := make([]int64, maxLen)
	mask := make([]int64, maxLen)
	for i := 0; i < len(ids) && i < maxLen; i++ {
		inputIDs[i] = int64(ids[i])
		mask[i] = 1
	}
	return inputIDs, mask
}

// copyNormalized detaches the output from the reused tensor buffer.
func copyNormalized(out []float32) []float32 {
	v := make([]float32, len(out))
	copy(v, out)
	return vector.Normalize(v)
}

// Close destroys sessions, tensors and the ONNX environment.
func (e *Embedder) Close() error {
	e.once.Do(func() {
		if e.vision != nil {
			e.vision.Destroy()
		}
		if e.text != nil {
			e.text.Destroy()
		}
		for _, t := range []*ort.Tensor[float32]{e.pixelValues, e.imageEmbeds, e.textEmbeds} {
			if t != nil {
				t.Destroy()
			}
		}
		for _, t := range []*ort.Tensor[int64]{e.inputIDs, e.attentionMask} {
			if t != nil {
				t.Destroy()
			}
		}
		if e.tokenizer != nil {
			e.tokenizer.Close()
		}
		ort.DestroyEnvironment()
	})
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
