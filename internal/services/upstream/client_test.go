package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeService struct {
	mu       sync.Mutex
	requests []*http.Request
}

func (f *fakeService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r)
		f.mu.Unlock()
	}
	mux.HandleFunc("/load_cameras_and_models", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		require.Equal(t, http.MethodPost, r.Method)
		_, _ = io.WriteString(w, `{"message":"loaded"}`)
	})
	mux.HandleFunc("/start_process", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = io.WriteString(w, `{"message":"started"}`)
	})
	mux.HandleFunc("/stop_process", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/check_status", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = io.WriteString(w, `{"cameras":{"cam1":{"fps_camera":12.5,"status":"ok"},"cam2":{"fps_camera":25}}}`)
	})
	mux.HandleFunc("/get_camera_properties", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = io.WriteString(w, `{"width":1280,"height":720}`)
	})
	mux.HandleFunc("/get_results", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = io.WriteString(w, `{"cam1":{"detections":[]}}`)
	})
	mux.HandleFunc("/get_image_n_detections", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = io.WriteString(w, `{"image":"","detections":[{"id":1}]}`)
	})
	mux.HandleFunc("/get_image", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = w.Write([]byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9})
	})
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_, _ = w.Write([]byte{0xFF, 0xD8, 0x02, 0xFF, 0xD9})
	})
	return mux
}

func (f *fakeService) last() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T) (*Client, *fakeService) {
	svc := &fakeService{}
	srv := httptest.NewServer(svc.handler(t))
	t.Cleanup(srv.Close)

	c := New(Options{
		BaseURL:        srv.URL,
		ConfigPath:     "/cfgs/cfg.json",
		Timeout:        5 * time.Second,
		ConnectTimeout: 5 * time.Second,
	})
	return c, svc
}

func TestLifecycle(t *testing.T) {
	c, svc := newTestClient(t)
	ctx := context.Background()

	ack, err := c.LoadCamerasAndModels(ctx)
	require.NoError(t, err)
	require.Equal(t, "loaded", ack["message"])
	require.Equal(t, "/cfgs/cfg.json", svc.last().URL.Query().Get("cfg_path"))

	_, err = c.StartProcess(ctx)
	require.NoError(t, err)

	_, err = c.StopProcess(ctx)
	require.ErrorIs(t, err, ErrStatus)
}

func TestCheckStatus(t *testing.T) {
	c, _ := newTestClient(t)

	status, err := c.CheckStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, status.Cameras, 2)
	require.Equal(t, 12.5, status.Cameras["cam1"].FPSCamera)
}

func TestGetImage(t *testing.T) {
	c, svc := newTestClient(t)

	data, err := c.GetImage(context.Background(), "cam1", RawImageOptions())
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}, data)

	q := svc.last().URL.Query()
	require.Equal(t, "cam1", q.Get("camera_name"))
	require.Equal(t, "false", q.Get("processed"))
	require.Equal(t, "true", q.Get("show_estela"))
	require.Equal(t, "1", q.Get("font_size"))
}

func TestResults(t *testing.T) {
	c, svc := newTestClient(t)
	ctx := context.Background()

	results, err := c.GetResults(ctx)
	require.NoError(t, err)
	require.Contains(t, results, "cam1")

	out, err := c.GetImageAndDetections(ctx, "cam1", DefaultImageOptions())
	require.NoError(t, err)
	require.Len(t, out["detections"], 1)
	require.Equal(t, "true", svc.last().URL.Query().Get("processed"))

	_, err = c.GetCalibration(ctx, "cam1")
	require.ErrorIs(t, err, ErrStatus)
}

func TestGetCameraProperties(t *testing.T) {
	c, svc := newTestClient(t)

	props, err := c.GetCameraProperties(context.Background(), "cam2")
	require.NoError(t, err)
	require.Equal(t, float64(1280), props["width"])
	require.Equal(t, "cam2", svc.last().URL.Query().Get("camera_name"))
}

func TestOpenStream(t *testing.T) {
	c, svc := newTestClient(t)

	body, err := c.OpenStream(context.Background(), "cam1", false)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 0xD8, 0x02, 0xFF, 0xD9}, data)
	require.Equal(t, "false", svc.last().URL.Query().Get("processed"))
}

func TestUnreachable(t *testing.T) {
	c := New(Options{
		BaseURL:        "http://127.0.0.1:1",
		Timeout:        time.Second,
		ConnectTimeout: time.Second,
	})

	_, err := c.OpenStream(context.Background(), "cam1", false)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrStatus)
}
