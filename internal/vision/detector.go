package vision

import (
	"fmt"
	"image"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facetrack/internal/models"
)

// Detector is the black-box face detection capability: given a frame, produce
// zero or more face regions with confidence scores. Implementations must be
// safe to Close more than once.
type Detector interface {
	Detect(img image.Image) ([]models.RawDetection, error)
	Close()
}

// ONNXDetector runs RetinaFace face detection using ONNX Runtime. It is the
// built-in detector and also how uploaded custom artifacts are opened.
type ONNXDetector struct {
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	threshold     float32
	inputW        int
	inputH        int
	closed        bool
}

// stride configuration for RetinaFace det_10g
var strides = []int{8, 16, 32}

// anchorsPerStride is the number of anchors per pixel at each stride
const anchorsPerStride = 2

// NewONNXDetector loads a RetinaFace-compatible ONNX model from disk.
func NewONNXDetector(modelPath string, threshold float32) (*ONNXDetector, error) {
	inputW, inputH := 640, 640

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// det_10g output shapes (no batch dimension):
	// scores:  [12800,1] [3200,1] [800,1]  -> stride 8, 16, 32
	// bboxes:  [12800,4] [3200,4] [800,4]  -> stride 8, 16, 32
	// 12800 = (640/8)*(640/8)*2, 3200 = (640/16)^2*2, 800 = (640/32)^2*2
	type outputSpec struct {
		name  string
		shape ort.Shape
	}

	outputs := []outputSpec{
		{"448", ort.NewShape(12800, 1)},
		{"471", ort.NewShape(3200, 1)},
		{"494", ort.NewShape(800, 1)},
		{"451", ort.NewShape(12800, 4)},
		{"474", ort.NewShape(3200, 4)},
		{"497", ort.NewShape(800, 4)},
	}

	outputNames := make([]string, len(outputs))
	outputTensors := make([]*ort.Tensor[float32], len(outputs))
	outputValues := make([]ort.Value, len(outputs))

	for i, spec := range outputs {
		outputNames[i] = spec.name
		t, err := ort.NewEmptyTensor[float32](spec.shape)
		if err != nil {
			for j := 0; j < i; j++ {
				outputTensors[j].Destroy()
			}
			inputTensor.Destroy()
			return nil, fmt.Errorf("create output tensor %d (%s): %w", i, spec.name, err)
		}
		outputTensors[i] = t
		outputValues[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		outputNames,
		[]ort.Value{inputTensor},
		outputValues,
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		for _, t := range outputTensors {
			t.Destroy()
		}
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &ONNXDetector{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: outputTensors,
		threshold:     threshold,
		inputW:        inputW,
		inputH:        inputH,
	}, nil
}

// Detect runs face detection on a decoded frame. The preprocessed tensor data
// is scoped to this call; nothing frame-related is retained on the detector.
func (d *ONNXDetector) Detect(img image.Image) ([]models.RawDetection, error) {
	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	input := preprocessForDetection(img, d.inputW, d.inputH)
	copy(d.inputTensor.GetData(), input)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	boxes := d.parseDetections(origW, origH)
	boxes = nms(boxes, 0.4)

	detections := make([]models.RawDetection, 0, len(boxes))
	for _, b := range boxes {
		detections = append(detections, models.RawDetection{
			Box: models.BoundingBox{
				X:      int(b.bbox[0]),
				Y:      int(b.bbox[1]),
				Width:  int(b.bbox[2] - b.bbox[0]),
				Height: int(b.bbox[3] - b.bbox[1]),
			},
			Score: clampF(b.score, 0, 1),
		})
	}
	return detections, nil
}

// rawBox is an intermediate detection in x1,y1,x2,y2 pixel coordinates.
type rawBox struct {
	bbox  [4]float32
	score float32
}

// parseDetections decodes anchor-based RetinaFace outputs at strides 8, 16, 32.
func (d *ONNXDetector) parseDetections(origW, origH int) []rawBox {
	var boxes []rawBox

	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	for si, stride := range strides {
		scores := d.outputTensors[si].GetData()   // [N, 1]
		bboxes := d.outputTensors[si+3].GetData() // [N, 4]

		fmW := d.inputW / stride
		fmH := d.inputH / stride

		idx := 0
		for cy := 0; cy < fmH; cy++ {
			for cx := 0; cx < fmW; cx++ {
				for a := 0; a < anchorsPerStride; a++ {
					score := scores[idx]

					if score >= d.threshold {
						anchorX := float32(cx) * float32(stride)
						anchorY := float32(cy) * float32(stride)

						// Model outputs anchor-relative distances scaled by stride.
						st := float32(stride)
						x1 := (anchorX - bboxes[idx*4+0]*st) * scaleW
						y1 := (anchorY - bboxes[idx*4+1]*st) * scaleH
						x2 := (anchorX + bboxes[idx*4+2]*st) * scaleW
						y2 := (anchorY + bboxes[idx*4+3]*st) * scaleH

						x1 = clampF(x1, 0, float32(origW))
						y1 = clampF(y1, 0, float32(origH))
						x2 = clampF(x2, 0, float32(origW))
						y2 = clampF(y2, 0, float32(origH))

						boxes = append(boxes, rawBox{
							bbox:  [4]float32{x1, y1, x2, y2},
							score: score,
						})
					}
					idx++
				}
			}
		}
	}

	return boxes
}

func (d *ONNXDetector) Close() {
	if d.closed {
		return
	}
	d.closed = true
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

// nms performs Non-Maximum Suppression on detections.
func nms(boxes []rawBox, iouThreshold float32) []rawBox {
	if len(boxes) == 0 {
		return boxes
	}

	sort.Slice(boxes, func(i, j int) bool {
		return boxes[i].score > boxes[j].score
	})

	keep := make([]bool, len(boxes))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(boxes); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(boxes); j++ {
			if !keep[j] {
				continue
			}
			if iou(boxes[i].bbox, boxes[j].bbox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []rawBox
	for i, b := range boxes {
		if keep[i] {
			result = append(result, b)
		}
	}
	return result
}

func iou(a, b [4]float32) float32 {
	x1 := float32(math.Max(float64(a[0]), float64(b[0])))
	y1 := float32(math.Max(float64(a[1]), float64(b[1])))
	x2 := float32(math.Min(float64(a[2]), float64(b[2])))
	y2 := float32(math.Min(float64(a[3]), float64(b[3])))

	intersection := float32(math.Max(0, float64(x2-x1))) * float32(math.Max(0, float64(y2-y1)))

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clampF(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
