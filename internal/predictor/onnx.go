package predictor

import (
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"dailytrader/internal/model"
)

const (
	onnxWindow   = 60 // bars per inference window
	onnxFeatures = 6  // open, high, low, close, volume, return
)

var ortInit sync.Once

func initializeORT() error {
	libPath := "/usr/lib/libonnxruntime.so"
	if runtime.GOOS == "windows" {
		libPath = "onnxruntime.dll"
	} else if runtime.GOOS == "darwin" {
		libPath = "libonnxruntime.dylib"
	}
	ort.SetSharedLibraryPath(libPath)
	return ort.InitializeEnvironment()
}

// ONNX serves next-close predictions from a pretrained model file. The model
// consumes a (1, 60, 6) window of normalized OHLCV bars plus the bar-over-bar
// return and emits the predicted next close as its first output value.
type ONNX struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewONNX loads a pretrained model from modelPath.
func NewONNX(modelPath string) (*ONNX, error) {
	var initErr error
	ortInit.Do(func() { initErr = initializeORT() })
	if initErr != nil {
		return nil, fmt.Errorf("onnx runtime init: %w", initErr)
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, onnxWindow, onnxFeatures),
		make([]float32, onnxWindow*onnxFeatures))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create session for %s: %w", modelPath, err)
	}

	return &ONNX{session: session, input: inputTensor, output: outputTensor}, nil
}

// Trained always reports true; the model ships pretrained.
func (o *ONNX) Trained() bool { return true }

// Train is unsupported for pretrained models.
func (o *ONNX) Train([]model.Bar) (Report, error) {
	return Report{}, ErrPretrained
}

// Predict runs inference over the trailing window of bars.
func (o *ONNX) Predict(bars []model.Bar) (Prediction, error) {
	if len(bars) < onnxWindow {
		return Prediction{}, fmt.Errorf("%w: have %d bars, need %d",
			ErrInsufficientData, len(bars), onnxWindow)
	}
	window := bars[len(bars)-onnxWindow:]
	current := window[len(window)-1].Close

	o.mu.Lock()
	defer o.mu.Unlock()

	data := o.input.GetData()
	for i, b := range window {
		ret := 0.0
		if i > 0 && window[i-1].Close != 0 {
			ret = (b.Close - window[i-1].Close) / window[i-1].Close
		}
		base := i * onnxFeatures
		data[base+0] = float32(b.Open / current)
		data[base+1] = float32(b.High / current)
		data[base+2] = float32(b.Low / current)
		data[base+3] = float32(b.Close / current)
		data[base+4] = float32(b.Volume)
		data[base+5] = float32(ret)
	}

	if err := o.session.Run(); err != nil {
		return Prediction{}, fmt.Errorf("inference failed: %w", err)
	}

	predicted := float64(o.output.GetData()[0]) * current
	change := predicted - current
	changePct := 0.0
	if current != 0 {
		changePct = change / current * 100
	}
	return Prediction{
		PredictedPrice:     predicted,
		CurrentPrice:       current,
		PredictedChange:    change,
		PredictedChangePct: changePct,
	}, nil
}

// Close releases the session and its tensors.
func (o *ONNX) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session != nil {
		o.session.Destroy()
	}
	if o.input != nil {
		o.input.Destroy()
	}
	if o.output != nil {
		o.output.Destroy()
	}
	o.session, o.input, o.output = nil, nil, nil
}
