// Package dnn runs SSD style detection graphs through OpenCV's dnn module.
package dnn

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"hazardcam/internal/logger"
	"hazardcam/internal/model"
	"hazardcam/internal/service/ai"
)

// Options describe the network input. Zero values fall back to the
// MobileNet-SSD COCO settings.
type Options struct {
	InputSize image.Point
	Scale     float64
	Mean      float64
}

func (o Options) withDefaults() Options {
	if o.InputSize == (image.Point{}) {
		o.InputSize = image.Pt(300, 300)
	}
	if o.Scale == 0 {
		o.Scale = 1.0 / 127.5
	}
	if o.Mean == 0 {
		o.Mean = 127.5
	}
	return o
}

// Detector wraps a gocv.Net. Forward is not safe for concurrent use on a
// shared net, so calls are serialized.
type Detector struct {
	mu     sync.Mutex
	net    gocv.Net
	labels ai.Labels
	opts   Options
	logger *logger.Logger
}

// New loads the network from modelPath and the optional configPath.
func New(modelPath, configPath string, labels ai.Labels, opts Options, log *logger.Logger) (*Detector, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	log.Info("Detection network initialized from %s", modelPath)
	return &Detector{
		net:    net,
		labels: labels,
		opts:   opts.withDefaults(),
		logger: log,
	}, nil
}

func (d *Detector) Infer(ctx context.Context, frame image.Image, threshold float64) ([]model.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrInference, err)
	}

	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to convert frame: %v", ai.ErrInference, err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("%w: converted frame is empty", ai.ErrInference)
	}

	mean := gocv.NewScalar(d.opts.Mean, d.opts.Mean, d.opts.Mean, 0)
	blob := gocv.BlobFromImage(mat, d.opts.Scale, d.opts.InputSize, mean, true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	// SSD graphs emit [1, 1, N, 7]. Anything else, such as a YOLO export,
	// has to run on the onnx backend.
	dims := output.Size()
	if output.Empty() || len(dims) == 0 || dims[len(dims)-1] != ai.SSDRowSize {
		return nil, fmt.Errorf("%w: output shape %v is not an SSD detection layout; YOLO models need the onnx backend", ai.ErrInference, dims)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read output: %v", ai.ErrInference, err)
	}

	raw, err := ai.DecodeSSD(data, float64(mat.Cols()), float64(mat.Rows()), d.labels, threshold)
	if err != nil {
		return nil, err
	}

	detections := ai.Normalize(raw, frame.Bounds(), threshold)
	for _, det := range detections {
		d.logger.Debug("Detected %s (%.2f)", det.Label, det.Confidence)
	}
	return detections, nil
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
