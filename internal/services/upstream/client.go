package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrStatus is returned when the inference service answers with a non-2xx status.
var ErrStatus = errors.New("upstream returned non-success status")

// Ack is the JSON acknowledgement returned by lifecycle calls.
type Ack map[string]any

// CameraStatus is the per-camera part of check_status.
type CameraStatus struct {
	FPSCamera float64 `json:"fps_camera"`
}

// Status is the decoded check_status response.
type Status struct {
	Cameras map[string]CameraStatus `json:"cameras"`
}

// ImageOptions are the rendering flags accepted by get_image.
type ImageOptions struct {
	Processed            bool
	FontSize             float64
	ShowConfidence       bool
	ShowID               bool
	ShowSpeed            bool
	ShowPosition         bool
	ShowEstela           bool
	ShowKeypoints        bool
	ShowContours         bool
	ShowOnlySegmentation bool
}

// DefaultImageOptions matches the service defaults: annotated image with every overlay.
func DefaultImageOptions() ImageOptions {
	return ImageOptions{
		Processed:      true,
		FontSize:       1,
		ShowConfidence: true,
		ShowID:         true,
		ShowSpeed:      true,
		ShowPosition:   true,
		ShowEstela:     true,
		ShowKeypoints:  true,
		ShowContours:   true,
	}
}

// RawImageOptions asks for the camera image without annotations.
func RawImageOptions() ImageOptions {
	opts := DefaultImageOptions()
	opts.Processed = false
	return opts
}

func (o ImageOptions) values(camera string) url.Values {
	q := url.Values{}
	q.Set("camera_name", camera)
	q.Set("processed", strconv.FormatBool(o.Processed))
	q.Set("font_size", strconv.FormatFloat(o.FontSize, 'f', -1, 64))
	q.Set("show_confidence", strconv.FormatBool(o.ShowConfidence))
	q.Set("show_id", strconv.FormatBool(o.ShowID))
	q.Set("show_speed", strconv.FormatBool(o.ShowSpeed))
	q.Set("show_position", strconv.FormatBool(o.ShowPosition))
	q.Set("show_estela", strconv.FormatBool(o.ShowEstela))
	q.Set("show_keypoints", strconv.FormatBool(o.ShowKeypoints))
	q.Set("show_contours", strconv.FormatBool(o.ShowContours))
	q.Set("show_only_segmentation", strconv.FormatBool(o.ShowOnlySegmentation))
	return q
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	ConfigPath     string
	Timeout        time.Duration // control calls and single images
	ConnectTimeout time.Duration // dial and response headers of the stream endpoint
}

// Client talks to the detection/inference service over HTTP.
type Client struct {
	baseURL    string
	configPath string
	http       *http.Client
	stream     *http.Client
}

// New creates a client. The stream client has no overall timeout since a
// stream body is read for the whole recording; only connect and response
// headers are bounded.
func New(opts Options) *Client {
	dialer := &net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}
	streamTransport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: opts.ConnectTimeout,
		MaxIdleConnsPerHost:   16,
	}

	return &Client{
		baseURL:    opts.BaseURL,
		configPath: opts.ConfigPath,
		http:       &http.Client{Timeout: opts.Timeout},
		stream:     &http.Client{Transport: streamTransport},
	}
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LoadCamerasAndModels asks the service to load its camera/model configuration.
func (c *Client) LoadCamerasAndModels(ctx context.Context) (Ack, error) {
	q := url.Values{}
	q.Set("cfg_path", c.configPath)

	var ack Ack
	if err := c.doJSON(ctx, http.MethodPost, "/load_cameras_and_models", q, &ack); err != nil {
		return nil, fmt.Errorf("load cameras and models: %w", err)
	}
	return ack, nil
}

// StartProcess starts detection and inference.
func (c *Client) StartProcess(ctx context.Context) (Ack, error) {
	var ack Ack
	if err := c.doJSON(ctx, http.MethodPost, "/start_process", nil, &ack); err != nil {
		return nil, fmt.Errorf("start process: %w", err)
	}
	return ack, nil
}

// StopProcess stops detection and inference.
func (c *Client) StopProcess(ctx context.Context) (Ack, error) {
	var ack Ack
	if err := c.doJSON(ctx, http.MethodPost, "/stop_process", nil, &ack); err != nil {
		return nil, fmt.Errorf("stop process: %w", err)
	}
	return ack, nil
}

// CheckStatus returns the processing status, including per-camera fps.
func (c *Client) CheckStatus(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.doJSON(ctx, http.MethodGet, "/check_status", nil, &status); err != nil {
		return nil, fmt.Errorf("check status: %w", err)
	}
	return &status, nil
}

// GetResults returns the latest detection results of every camera.
func (c *Client) GetResults(ctx context.Context) (map[string]any, error) {
	var results map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/get_results", nil, &results); err != nil {
		return nil, fmt.Errorf("get results: %w", err)
	}
	return results, nil
}

// GetImageAndDetections returns the current image together with its detections.
func (c *Client) GetImageAndDetections(ctx context.Context, camera string, opts ImageOptions) (map[string]any, error) {
	var out map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/get_image_n_detections", opts.values(camera), &out); err != nil {
		return nil, fmt.Errorf("get image and detections %s: %w", camera, err)
	}
	return out, nil
}

// GetCalibration returns the calibration of one camera.
func (c *Client) GetCalibration(ctx context.Context, camera string) (map[string]any, error) {
	q := url.Values{}
	q.Set("camera_name", camera)

	var calib map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/get_calibration", q, &calib); err != nil {
		return nil, fmt.Errorf("get calibration %s: %w", camera, err)
	}
	return calib, nil
}

// GetCameraProperties returns the static properties of one camera.
func (c *Client) GetCameraProperties(ctx context.Context, camera string) (map[string]any, error) {
	q := url.Values{}
	q.Set("camera_name", camera)

	var props map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/get_camera_properties", q, &props); err != nil {
		return nil, fmt.Errorf("get camera properties %s: %w", camera, err)
	}
	return props, nil
}

// GetImage fetches the current image of one camera as encoded bytes.
func (c *Client) GetImage(ctx context.Context, camera string, opts ImageOptions) ([]byte, error) {
	resp, err := c.do(ctx, c.http, http.MethodGet, "/get_image", opts.values(camera))
	if err != nil {
		return nil, fmt.Errorf("get image %s: %w", camera, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("get image %s: read body: %w", camera, err)
	}
	return data, nil
}

// OpenStream opens the continuous frame stream of one camera. The caller
// owns the returned body and must close it; cancelling ctx aborts reads.
func (c *Client) OpenStream(ctx context.Context, camera string, processed bool) (io.ReadCloser, error) {
	q := url.Values{}
	q.Set("camera_name", camera)
	q.Set("processed", strconv.FormatBool(processed))

	resp, err := c.do(ctx, c.stream, http.MethodGet, "/stream", q)
	if err != nil {
		return nil, fmt.Errorf("open stream %s: %w", camera, err)
	}
	return resp.Body, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, out any) error {
	resp, err := c.do(ctx, c.http, method, path, q)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do performs the request and returns the response only on 2xx.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, q url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		log.Debug().
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("Upstream request failed")
		return nil, fmt.Errorf("%w: %s %s: %d", ErrStatus, method, path, resp.StatusCode)
	}

	return resp, nil
}
