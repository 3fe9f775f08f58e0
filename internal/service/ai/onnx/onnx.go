// Package onnx runs YOLOv8 ONNX exports through onnxruntime.
package onnx

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"

	"hazardcam/internal/logger"
	"hazardcam/internal/model"
	"hazardcam/internal/service/ai"
)

const (
	DefaultInputSize = 640
	DefaultNumBoxes  = 8400
	IoUThreshold     = 0.45
)

type Options struct {
	LibraryPath string // onnxruntime shared library; empty uses the system default
	PoolSize    int
	InputSize   int
	NumBoxes    int
	InputName   string
	OutputName  string
}

func (o Options) withDefaults() Options {
	if o.InputSize <= 0 {
		o.InputSize = DefaultInputSize
	}
	if o.NumBoxes <= 0 {
		o.NumBoxes = DefaultNumBoxes
	}
	if o.InputName == "" {
		o.InputName = "images"
	}
	if o.OutputName == "" {
		o.OutputName = "output0"
	}
	return o
}

type Detector struct {
	pool   *sessionPool
	labels ai.Labels
	opts   Options
	logger *logger.Logger
}

// New initializes the onnxruntime environment and a pool of sessions for the
// model at modelPath. Only one Detector should exist per process.
func New(modelPath string, labels ai.Labels, opts Options, log *logger.Logger) (*Detector, error) {
	opts = opts.withDefaults()

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize onnx environment: %w", err)
	}

	d := &Detector{labels: labels, opts: opts, logger: log}
	pool, err := newSessionPool(opts.PoolSize, func() (*session, error) {
		return d.newSession(modelPath)
	})
	if err != nil {
		_ = ort.DestroyEnvironment()
		return nil, err
	}
	d.pool = pool

	log.Info("ONNX detector initialized from %s (%d classes)", modelPath, len(labels))
	return d, nil
}

func (d *Detector) newSession(modelPath string) (*session, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	size := int64(d.opts.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+len(d.labels)), int64(d.opts.NumBoxes)))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	run, err := ort.NewAdvancedSession(
		modelPath,
		[]string{d.opts.InputName},
		[]string{d.opts.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return &session{run: run, input: input, output: output}, nil
}

func (d *Detector) Infer(ctx context.Context, frame image.Image, threshold float64) ([]model.Detection, error) {
	s, err := d.pool.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrInference, err)
	}
	defer d.pool.release(s)

	size := d.opts.InputSize
	resized := imaging.Resize(frame, size, size, imaging.Linear)
	fillInput(resized, s.input.GetData())

	if err := s.run.Run(); err != nil {
		return nil, fmt.Errorf("%w: model inference: %v", ai.ErrInference, err)
	}

	bounds := frame.Bounds()
	raw, err := ai.DecodeYOLO(
		s.output.GetData(),
		len(d.labels),
		d.opts.NumBoxes,
		float64(bounds.Dx())/float64(size),
		float64(bounds.Dy())/float64(size),
		d.labels,
		threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrInference, err)
	}

	return ai.Normalize(ai.NMS(raw, IoUThreshold), bounds, threshold), nil
}

// fillInput writes img into dst as planar RGB scaled to [0,1].
func fillInput(img *image.NRGBA, dst []float32) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	plane := w * h
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			i := y*w + x
			px := row[x*4 : x*4+3]
			dst[i] = float32(px[0]) / 255.0
			dst[plane+i] = float32(px[1]) / 255.0
			dst[2*plane+i] = float32(px[2]) / 255.0
		}
	}
}

func (d *Detector) Close() error {
	d.pool.destroy()
	return ort.DestroyEnvironment()
}
