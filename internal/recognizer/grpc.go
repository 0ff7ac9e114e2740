package recognizer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"shopvision/internal/config"
	"shopvision/internal/logger"
	"shopvision/internal/models"
)

// Model server service and methods.
const (
	ServiceName         = "shopvision.vision.v1.Recognizer"
	MethodDetectObjects = "DetectObjects"
	MethodCaption       = "Caption"
	MethodReadText      = "ReadText"

	codecName = "json"
)

// Item-level thresholds applied to raw model output.
const (
	DefaultDetectionThreshold = 0.3
	DefaultTextThreshold      = 0.5
	DefaultCaptionConfidence  = 0.5
)

// jsonCodec lets the client talk to the model server without generated stubs.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// ImageRequest is the payload of every recognizer call.
type ImageRequest struct {
	MIMEType string `json:"mimeType,omitempty"`
	Image    []byte `json:"image"`
}

// Detection is one detected object.
type Detection struct {
	Label      string    `json:"label"`
	Box        []float64 `json:"box,omitempty"`
	Confidence float64   `json:"confidence"`
}

// DetectResponse is returned by DetectObjects.
type DetectResponse struct {
	Detections []Detection `json:"detections"`
}

// CaptionResponse is returned by Caption.
type CaptionResponse struct {
	Caption    string  `json:"caption"`
	Confidence float64 `json:"confidence,omitempty"`
}

// TextRegion is one OCR hit.
type TextRegion struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// ReadTextResponse is returned by ReadText.
type ReadTextResponse struct {
	Regions []TextRegion `json:"regions"`
}

// Client talks to the model server hosting the three recognizers.
type Client struct {
	conn               *grpc.ClientConn
	logger             *logger.Logger
	now                func() time.Time
	detectionThreshold float64
	textThreshold      float64
}

// NewClient creates a client for the model server at cfg.Address. The
// connection is established lazily on the first call.
func NewClient(cfg config.RecognizerConfig, log *logger.Logger) (*Client, error) {
	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to model server at %s: %w", cfg.Address, err)
	}

	if log == nil {
		log = logger.Discard()
	}

	return &Client{
		conn:               conn,
		logger:             log.Component("model-client"),
		now:                time.Now,
		detectionThreshold: DefaultDetectionThreshold,
		textThreshold:      DefaultTextThreshold,
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Recognizers returns the category, caption and text recognizers backed by this client.
func (c *Client) Recognizers() []Recognizer {
	return []Recognizer{
		Func{SignalKind: models.SignalCategory, RecognizeFunc: c.DetectCategory},
		Func{SignalKind: models.SignalCaption, RecognizeFunc: c.Caption},
		Func{SignalKind: models.SignalText, RecognizeFunc: c.ReadText},
	}
}

func (c *Client) invoke(ctx context.Context, method string, img models.Image, resp any) error {
	req := &ImageRequest{Image: img.Data, MIMEType: img.MIMEType}

	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp); err != nil {
		return fmt.Errorf("%s call failed: %w", method, err)
	}

	return nil
}

// DetectCategory returns the most confident detection above the detection threshold.
func (c *Client) DetectCategory(ctx context.Context, img models.Image) (models.RecognitionSignal, error) {
	var resp DetectResponse
	if err := c.invoke(ctx, MethodDetectObjects, img, &resp); err != nil {
		return models.RecognitionSignal{}, err
	}

	var best *Detection

	for i := range resp.Detections {
		d := &resp.Detections[i]
		if d.Label == "" || d.Confidence <= c.detectionThreshold {
			continue
		}

		if best == nil || d.Confidence > best.Confidence {
			best = d
		}
	}

	if best == nil {
		return models.RecognitionSignal{}, ErrNoRecognition
	}

	return models.NewCategorySignal(best.Label, best.Confidence, c.now()), nil
}

// Caption returns the generated caption. Servers that report no score get DefaultCaptionConfidence.
func (c *Client) Caption(ctx context.Context, img models.Image) (models.RecognitionSignal, error) {
	var resp CaptionResponse
	if err := c.invoke(ctx, MethodCaption, img, &resp); err != nil {
		return models.RecognitionSignal{}, err
	}

	if resp.Caption == "" {
		return models.RecognitionSignal{}, ErrNoRecognition
	}

	conf := resp.Confidence
	if conf == 0 {
		conf = DefaultCaptionConfidence
	}

	return models.NewCaptionSignal(resp.Caption, conf, c.now()), nil
}

// ReadText keeps OCR regions above the text threshold. The signal confidence
// is the mean of the kept regions.
func (c *Client) ReadText(ctx context.Context, img models.Image) (models.RecognitionSignal, error) {
	var resp ReadTextResponse
	if err := c.invoke(ctx, MethodReadText, img, &resp); err != nil {
		return models.RecognitionSignal{}, err
	}

	var (
		tokens []string
		sum    float64
	)

	for _, r := range resp.Regions {
		if r.Text == "" || r.Confidence <= c.textThreshold {
			continue
		}

		tokens = append(tokens, r.Text)
		sum += r.Confidence
	}

	if len(tokens) == 0 {
		return models.RecognitionSignal{}, ErrNoRecognition
	}

	return models.NewTextSignal(tokens, sum/float64(len(tokens)), c.now()), nil
}
