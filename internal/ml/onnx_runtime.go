package ml

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	onnxruntime "github.com/yalue/onnxruntime_go"

	"seasoncast/pkg/errors"
	"seasoncast/pkg/logger"
)

// Default tensor names produced by skl2onnx for a classifier exported with zipmap disabled
const (
	DefaultInputName         = "float_input"
	DefaultLabelOutput       = "output_label"
	DefaultProbabilityOutput = "output_probability"
)

var runtimeMu sync.Mutex

// InitRuntime points the binding at the onnxruntime shared library and
// initializes the environment. Safe to call more than once.
func InitRuntime(libraryPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if onnxruntime.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		onnxruntime.SetSharedLibraryPath(libraryPath)
	}
	if err := onnxruntime.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "failed to initialize ONNX runtime")
	}
	return nil
}

// ShutdownRuntime releases the environment once every model is destroyed
func ShutdownRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if !onnxruntime.IsInitialized() {
		return nil
	}
	return onnxruntime.DestroyEnvironment()
}

// ModelConfig describes one exported classifier
type ModelConfig struct {
	Path              string
	InputName         string
	LabelOutput       string
	ProbabilityOutput string
	NumClasses        int
}

func (c *ModelConfig) applyDefaults() {
	if c.InputName == "" {
		c.InputName = DefaultInputName
	}
	if c.LabelOutput == "" {
		c.LabelOutput = DefaultLabelOutput
	}
	if c.ProbabilityOutput == "" {
		c.ProbabilityOutput = DefaultProbabilityOutput
	}
}

// ONNXModel wraps ONNX Runtime session for ML inference.
// Predict may be called from many goroutines; tensors are allocated per call.
type ONNXModel struct {
	mu         sync.RWMutex
	session    *onnxruntime.DynamicAdvancedSession
	path        string
	fingerprint string
	numClasses  int
}

// FileFingerprint returns a short content hash of a model file
func FileFingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "model file %s", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "hash model file %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)[:6]), nil
}

// LoadONNXModel loads an ONNX model from file. InitRuntime must have been called.
func LoadONNXModel(cfg ModelConfig) (*ONNXModel, error) {
	cfg.applyDefaults()
	if cfg.NumClasses <= 0 {
		return nil, errors.NewValidationError("num_classes", "must be positive", cfg.NumClasses)
	}

	info, err := os.Stat(cfg.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "model file %s", cfg.Path)
	}

	fingerprint, err := FileFingerprint(cfg.Path)
	if err != nil {
		return nil, err
	}

	if !onnxruntime.IsInitialized() {
		if err := InitRuntime(""); err != nil {
			return nil, err
		}
	}

	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}
	defer options.Destroy()

	session, err := onnxruntime.NewDynamicAdvancedSession(cfg.Path,
		[]string{cfg.InputName}, []string{cfg.LabelOutput, cfg.ProbabilityOutput}, options)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load ONNX model %s", cfg.Path)
	}

	logger.Get().Infow("Loaded ONNX model",
		"path", cfg.Path,
		"size", humanize.Bytes(uint64(info.Size())),
		"classes", cfg.NumClasses,
		"fingerprint", fingerprint,
	)

	return &ONNXModel{
		session:     session,
		path:        cfg.Path,
		fingerprint: fingerprint,
		numClasses:  cfg.NumClasses,
	}, nil
}

// Fingerprint identifies the weights the session was loaded from
func (m *ONNXModel) Fingerprint() string {
	return m.fingerprint
}

// Predict runs inference on one feature row.
// Returns the predicted class index and the per-class probabilities.
func (m *ONNXModel) Predict(features []float64) (int, []float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return 0, nil, errors.Wrap(errors.ErrModelNotLoaded, m.path)
	}

	// Input: float32 [1, num_features]
	input := make([]float32, len(features))
	for i, f := range features {
		input[i] = float32(f)
	}
	inputTensor, err := onnxruntime.NewTensor(onnxruntime.NewShape(1, int64(len(input))), input)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to create input tensor")
	}
	defer inputTensor.Destroy()

	// Output 1: predicted class (int64, shape [1])
	labelTensor, err := onnxruntime.NewEmptyTensor[int64](onnxruntime.NewShape(1))
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to create label output tensor")
	}
	defer labelTensor.Destroy()

	// Output 2: probabilities (float32, shape [1, num_classes])
	probTensor, err := onnxruntime.NewEmptyTensor[float32](onnxruntime.NewShape(1, int64(m.numClasses)))
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to create probabilities output tensor")
	}
	defer probTensor.Destroy()

	err = m.session.Run([]onnxruntime.Value{inputTensor}, []onnxruntime.Value{labelTensor, probTensor})
	if err != nil {
		return 0, nil, errors.Wrap(err, "inference failed")
	}

	raw := probTensor.GetData()
	probabilities := make([]float64, len(raw))
	for i, p := range raw {
		probabilities[i] = float64(p)
	}

	return int(labelTensor.GetData()[0]), probabilities, nil
}

// Destroy cleans up the ONNX session
func (m *ONNXModel) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		if err := m.session.Destroy(); err != nil {
			logger.Get().Warnw("Failed to destroy ONNX session", "path", m.path, "error", err)
		}
		m.session = nil
	}
}
