package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"kepler-recorder-go/internal/config"
	"kepler-recorder-go/internal/logging"
	"kepler-recorder-go/internal/models"
	"kepler-recorder-go/internal/services/capture"
	"kepler-recorder-go/internal/services/messaging"
	"kepler-recorder-go/internal/services/storage"
	"kepler-recorder-go/internal/services/upstream"
)

var (
	ErrNoCameras      = errors.New("no cameras configured")
	ErrAlreadyRunning = errors.New("a recording session is already running")
	ErrStopped        = errors.New("recorder is stopping")
)

// SetupError is a failure before any camera was started. It is the only
// error that should fail the process.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("recording setup failed at %s: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Upstream is the part of the inference service the recorder drives.
type Upstream interface {
	LoadCamerasAndModels(ctx context.Context) (upstream.Ack, error)
	StartProcess(ctx context.Context) (upstream.Ack, error)
	StopProcess(ctx context.Context) (upstream.Ack, error)
	CheckStatus(ctx context.Context) (*upstream.Status, error)
	GetCameraProperties(ctx context.Context, camera string) (map[string]any, error)
	capture.StreamOpener
	capture.ImageFetcher
}

// Catalog stores finished sessions.
type Catalog interface {
	SaveSession(ctx context.Context, s *models.RecordingSession) error
}

// HealthReporter is told whether the last session could be set up.
type HealthReporter interface {
	SetRecorderServing(ok bool)
}

// Deps are the collaborators of the recorder. Reconciler, Catalog, Publisher
// and Health may be nil.
type Deps struct {
	Upstream   Upstream
	Decoder    capture.Decoder
	Sinks      capture.SinkFactory
	Reconciler capture.Reconciler
	Store      *storage.Store
	Catalog    Catalog
	Publisher  messaging.Publisher
	Health     HealthReporter
}

// Options override configuration for a single session.
type Options struct {
	Cameras  []string
	Duration time.Duration
	Mode     models.CaptureMode
}

type Service struct {
	cfg  *config.Config
	deps Deps
	log  zerolog.Logger

	now    func() time.Time
	settle func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	active   *activeSession
	last     *models.RecordingSession
	stopping atomic.Bool
}

type activeSession struct {
	session *models.RecordingSession
	stop    *capture.StopSignal
	cameras []*capture.Session
}

func NewService(cfg *config.Config, deps Deps) *Service {
	if deps.Publisher == nil {
		deps.Publisher = messaging.Noop{}
	}
	return &Service{
		cfg:    cfg,
		deps:   deps,
		log:    logging.NewServiceLogger(cfg, "recorder"),
		now:    time.Now,
		settle: sleepCtx,
	}
}

// Run records one session and blocks until every camera has finished and
// the upstream processing has been stopped. It returns ErrStopped without
// recording when Stop was called before the session could begin.
func (s *Service) Run(ctx context.Context, opts Options) (*models.RecordingSession, error) {
	act, err := s.begin(opts, false)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, act, opts)
}

// Start launches a session in the background. ctx must outlive the session.
// An explicit Start clears an earlier Stop.
func (s *Service) Start(ctx context.Context, opts Options) (*models.RecordingSession, error) {
	act, err := s.begin(opts, true)
	if err != nil {
		return nil, err
	}

	snapshot := *act.session
	go func() {
		if _, err := s.execute(ctx, act, opts); err != nil {
			s.log.Error().Err(err).Str("session_id", snapshot.ID).Msg("Background recording session failed")
		}
	}()
	return &snapshot, nil
}

// Loop runs sessions back to back until ctx is done, Stop is called or a
// session fails to set up.
func (s *Service) Loop(ctx context.Context, opts Options) error {
	for n := 1; ; n++ {
		sess, err := s.Run(ctx, opts)
		if errors.Is(err, ErrStopped) {
			return nil
		}
		if err != nil {
			return err
		}
		s.log.Info().Int("iteration", n).Str("session_id", sess.ID).Msg("Loop iteration finished")

		if ctx.Err() != nil || s.stopping.Load() {
			return nil
		}
		if err := s.settle(ctx, s.cfg.LoopPause); err != nil || s.stopping.Load() {
			return nil
		}
	}
}

// Stop raises the stop signal of the running session. It returns false
// when nothing is running.
func (s *Service) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopping.Store(true)
	if s.active == nil {
		return false
	}
	s.log.Info().Str("session_id", s.active.session.ID).Msg("Stop requested")
	s.active.stop.Set()
	return true
}

// Status describes the running session, if any.
func (s *Service) Status() models.RecordingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return models.RecordingStatus{}
	}

	started := s.active.session.StartedAt
	st := models.RecordingStatus{
		Running:   true,
		SessionID: s.active.session.ID,
		OutputDir: s.active.session.OutputDir,
		StartedAt: &started,
		Stopping:  s.active.stop.IsSet(),
	}
	for _, cs := range s.active.cameras {
		st.Cameras = append(st.Cameras, models.CameraProgress{
			Camera:     cs.Camera(),
			State:      cs.State(),
			FrameCount: cs.FrameCount(),
		})
	}
	return st
}

// Last returns the most recently finished session.
func (s *Service) Last() *models.RecordingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// begin registers a new active session. Unless explicit, a pending Stop
// refuses it so a stop requested between sessions is not lost.
func (s *Service) begin(opts Options, explicit bool) (*activeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return nil, ErrAlreadyRunning
	}
	if !explicit && s.stopping.Load() {
		return nil, ErrStopped
	}

	mode := opts.Mode
	if mode == "" {
		mode = models.CaptureMode(s.cfg.CaptureMode)
	}

	act := &activeSession{
		session: &models.RecordingSession{
			ID:             uuid.NewString(),
			Mode:           mode,
			TargetDuration: s.duration(opts),
			TargetFPS:      s.cfg.TargetFPS,
			StartedAt:      s.now(),
		},
		stop: capture.NewStopSignal(),
	}
	s.active = act
	if explicit {
		s.stopping.Store(false)
	}
	return act, nil
}

func (s *Service) execute(ctx context.Context, act *activeSession, opts Options) (*models.RecordingSession, error) {
	sess := act.session
	log := s.log.With().Str("session_id", sess.ID).Logger()

	log.Info().
		Str("mode", sess.Mode.String()).
		Dur("duration", sess.TargetDuration).
		Float64("target_fps", sess.TargetFPS).
		Msg("Recording session starting")

	err := s.record(ctx, act, opts, log)

	s.mu.Lock()
	sess.FinishedAt = s.now()
	if err != nil {
		sess.Error = err.Error()
	}
	s.mu.Unlock()

	s.finish(ctx, sess, err, log)

	s.mu.Lock()
	s.active = nil
	s.last = sess
	s.mu.Unlock()

	return sess, err
}

// record runs the setup, fan-out and teardown of one session.
func (s *Service) record(ctx context.Context, act *activeSession, opts Options, log zerolog.Logger) error {
	sess := act.session

	if !sess.Mode.IsValid() {
		return &SetupError{Op: "mode", Err: fmt.Errorf("unknown capture mode %q", sess.Mode)}
	}
	if err := s.deps.Store.CheckFree(s.cfg.MinFreeDiskMB); err != nil {
		return &SetupError{Op: "disk", Err: err}
	}

	if _, err := s.deps.Upstream.LoadCamerasAndModels(ctx); err != nil {
		return &SetupError{Op: "load", Err: err}
	}
	if _, err := s.deps.Upstream.StartProcess(ctx); err != nil {
		return &SetupError{Op: "start", Err: err}
	}
	defer s.teardown(ctx, act.stop, log)

	status := &statusCache{upstream: s.deps.Upstream}

	names, err := s.resolveCameras(ctx, opts, status)
	if err != nil {
		return &SetupError{Op: "cameras", Err: err}
	}
	sess.Cameras = s.describeCameras(ctx, names, log)
	rates := s.provisionalRates(ctx, names, status, log)

	if err := s.settle(ctx, s.cfg.SettleDelay); err != nil {
		return err
	}

	dir, err := s.deps.Store.NewSessionDir(s.now())
	if err != nil {
		return &SetupError{Op: "output", Err: err}
	}
	s.mu.Lock()
	sess.OutputDir = dir
	s.mu.Unlock()

	s.publish(messaging.SessionStarted, s.sessionEvent(sess), log)
	log.Info().Str("output_dir", dir).Strs("cameras", names).Msg("Recording cameras")

	sess.Outcomes = s.fanOut(ctx, act, names, outputNames(names, log), rates)
	return nil
}

// fanOut runs one camera session per camera and waits for all of them.
func (s *Service) fanOut(ctx context.Context, act *activeSession, names []string, files map[string]string, rates map[string]float64) []models.CameraOutcome {
	sess := act.session
	sessions := make([]*capture.Session, len(names))
	for i, name := range names {
		sessions[i] = s.newCameraSession(act, name, files[name], rates[name])
	}

	s.mu.Lock()
	act.cameras = sessions
	s.mu.Unlock()

	outcomes := make([]models.CameraOutcome, len(sessions))

	var g errgroup.Group
	g.SetLimit(len(sessions))
	for i, cs := range sessions {
		g.Go(func() error {
			outcomes[i] = cs.Run(ctx)
			s.publish(messaging.CameraFinished, s.cameraEvent(sess.ID, outcomes[i]), s.log)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *Service) newCameraSession(act *activeSession, name, file string, rate float64) *capture.Session {
	sess := act.session
	logger := logging.WithCamera(s.log, name).With().Str("session_id", sess.ID).Logger()

	var source capture.Source
	switch sess.Mode {
	case models.CaptureModePoll:
		source = capture.NewPollSource(name, s.deps.Upstream, s.deps.Decoder, upstream.RawImageOptions(), s.cfg.TargetFPS, act.stop, logger)
	default:
		source = capture.NewStreamSource(name, s.deps.Upstream, s.deps.Decoder, capture.StreamOptions{
			ChunkSize:     s.cfg.ReadChunkSize,
			ReadTimeout:   s.cfg.StreamReadTimeout,
			MaxFrameBytes: s.cfg.MaxFrameBytes,
		}, logger)
	}

	cfg := capture.SessionConfig{
		Camera:         name,
		OutputPath:     filepath.Join(sess.OutputDir, file+"."+s.cfg.VideoExtension),
		Duration:       sess.TargetDuration,
		TargetFPS:      s.cfg.TargetFPS,
		ProvisionalFPS: rate,
		FrameBudget:    s.cfg.FrameBudgetFor(sess.TargetDuration),
		ProgressEvery:  s.cfg.ProgressEveryFrames,
		AbortOnError:   s.cfg.AbortOnCameraError,
	}
	return capture.NewSession(cfg, source, s.deps.Sinks, s.deps.Reconciler, act.stop, logger)
}

// teardown always runs once the upstream process was started, even when
// ctx is already cancelled.
func (s *Service) teardown(ctx context.Context, stop *capture.StopSignal, log zerolog.Logger) {
	stop.Set()

	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.TeardownTimeout)
	defer cancel()

	if _, err := s.deps.Upstream.StopProcess(tctx); err != nil {
		log.Error().Err(err).Msg("Failed to stop upstream processing")
		return
	}
	log.Info().Msg("Upstream processing stopped")
}

func (s *Service) finish(ctx context.Context, sess *models.RecordingSession, err error, log zerolog.Logger) {
	var setupErr *SetupError
	if s.deps.Health != nil {
		s.deps.Health.SetRecorderServing(!errors.As(err, &setupErr))
	}

	s.publish(messaging.SessionFinished, s.sessionEvent(sess), log)

	if s.deps.Catalog != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if cerr := s.deps.Catalog.SaveSession(cctx, sess); cerr != nil {
			log.Error().Err(cerr).Msg("Failed to save session to catalog")
		}
		cancel()
	}

	if sess.OutputDir != "" && s.cfg.VideoMaxSessions > 0 {
		removed, perr := s.deps.Store.Prune(s.cfg.VideoMaxSessions)
		if perr != nil {
			log.Error().Err(perr).Msg("Failed to prune old sessions")
		}
		for _, d := range removed {
			log.Info().Str("dir", d).Msg("Removed old session")
		}
	}

	if err != nil {
		log.Error().Err(err).Msg("Recording session failed")
		return
	}
	log.Info().
		Str("output_dir", sess.OutputDir).
		Int("cameras", len(sess.Outcomes)).
		Int("recorded", sess.RecordedCount()).
		Dur("took", sess.FinishedAt.Sub(sess.StartedAt)).
		Msg("Recording session finished")
}

func (s *Service) resolveCameras(ctx context.Context, opts Options, status *statusCache) ([]string, error) {
	names := opts.Cameras
	if len(names) == 0 {
		names = s.cfg.Cameras
	}

	if len(names) == 0 {
		st, err := status.get(ctx)
		if err != nil {
			return nil, fmt.Errorf("discover cameras: %w", err)
		}
		for name := range st.Cameras {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	seen := make(map[string]bool, len(names))
	var unique []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		unique = append(unique, n)
	}
	if len(unique) == 0 {
		return nil, ErrNoCameras
	}
	return unique, nil
}

func (s *Service) describeCameras(ctx context.Context, names []string, log zerolog.Logger) []models.CameraDescriptor {
	out := make([]models.CameraDescriptor, len(names))
	for i, name := range names {
		out[i] = models.CameraDescriptor{Name: name}
		if !s.cfg.FetchCameraProps {
			continue
		}
		props, err := s.deps.Upstream.GetCameraProperties(ctx, name)
		if err != nil {
			log.Warn().Err(err).Str("camera", name).Msg("Failed to fetch camera properties")
			continue
		}
		out[i].Properties = props
	}
	return out
}

// provisionalRates seeds each writer with the rate the upstream reports for
// its camera. Cameras without a usable rate are left out and fall back to
// the target rate.
func (s *Service) provisionalRates(ctx context.Context, names []string, status *statusCache, log zerolog.Logger) map[string]float64 {
	if !s.cfg.UseProvisionalFPS {
		return nil
	}

	st, err := status.get(ctx)
	if err != nil {
		log.Warn().Err(err).Float64("target_fps", s.cfg.TargetFPS).Msg("Failed to read camera rates, using target fps")
		return nil
	}

	rates := make(map[string]float64, len(names))
	for _, name := range names {
		fps := st.Cameras[name].FPSCamera
		if fps <= 0 {
			log.Warn().Str("camera", name).Float64("target_fps", s.cfg.TargetFPS).Msg("No camera rate reported, using target fps")
			continue
		}
		rates[name] = fps
	}
	return rates
}

func (s *Service) duration(opts Options) time.Duration {
	if opts.Duration > 0 {
		return opts.Duration
	}
	return s.cfg.RecordDuration
}

func (s *Service) publish(kind string, event any, log zerolog.Logger) {
	if err := s.deps.Publisher.Publish(messaging.Subject(s.cfg.EventsSubject, kind), event); err != nil {
		log.Warn().Err(err).Str("event", kind).Msg("Failed to publish event")
	}
}

func (s *Service) sessionEvent(sess *models.RecordingSession) messaging.SessionEvent {
	cams := make([]string, len(sess.Cameras))
	for i, c := range sess.Cameras {
		cams[i] = c.Name
	}
	return messaging.SessionEvent{
		SessionID:  sess.ID,
		InstanceID: s.cfg.InstanceID,
		OutputDir:  sess.OutputDir,
		Cameras:    cams,
		StartedAt:  sess.StartedAt,
		FinishedAt: sess.FinishedAt,
		Recorded:   sess.RecordedCount(),
		Error:      sess.Error,
	}
}

func (s *Service) cameraEvent(sessionID string, o models.CameraOutcome) messaging.CameraEvent {
	ev := messaging.CameraEvent{
		SessionID:     sessionID,
		InstanceID:    s.cfg.InstanceID,
		CameraOutcome: o,
	}
	if o.OutputPath != "" {
		if fi, err := os.Stat(o.OutputPath); err == nil {
			ev.FileSize = fi.Size()
		}
	}
	return ev
}

// statusCache fetches check_status at most once per session.
type statusCache struct {
	upstream Upstream
	status   *upstream.Status
	err      error
	done     bool
}

func (c *statusCache) get(ctx context.Context) (*upstream.Status, error) {
	if !c.done {
		c.status, c.err = c.upstream.CheckStatus(ctx)
		c.done = true
	}
	return c.status, c.err
}

// outputNames maps every camera to a file name no other camera of the
// session uses. Names that collide once sanitized get a _2, _3 suffix in
// camera order. Comparison ignores case for case-insensitive filesystems.
func outputNames(names []string, log zerolog.Logger) map[string]string {
	files := make(map[string]string, len(names))
	used := make(map[string]bool, len(names))
	for _, name := range names {
		base := fileName(name)
		file := base
		for n := 2; used[strings.ToLower(file)]; n++ {
			file = fmt.Sprintf("%s_%d", base, n)
		}
		if file != base {
			log.Warn().Str("camera", name).Str("file", file).Msg("Camera file name collides with another camera, using suffix")
		}
		used[strings.ToLower(file)] = true
		files[name] = file
	}
	return files
}

// fileName makes a camera name safe to use as a file name.
func fileName(camera string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return r.Replace(camera)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
