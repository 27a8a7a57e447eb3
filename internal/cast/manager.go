// Package cast owns the device registry lifecycle and dispatches commands
// against discovered cast devices.
package cast

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/monpham/mcp-homecast/internal/adapters"
	"github.com/monpham/mcp-homecast/internal/domain"
	"github.com/monpham/mcp-homecast/internal/registry"
	"github.com/monpham/mcp-homecast/internal/tts"
)

const (
	defaultDiscoveryTimeout = 10 * time.Second
	minDiscoveryTimeout     = time.Second
	defaultCommandTimeout   = 15 * time.Second

	defaultContentType = "audio/mp3"
)

type Options struct {
	CommandTimeout   time.Duration
	DiscoveryTimeout time.Duration
	Logger           *slog.Logger
}

type Manager struct {
	scanner  adapters.Scanner
	dialer   adapters.DeviceDialer
	registry *registry.Registry
	logger   *slog.Logger

	commandTimeout   time.Duration
	discoveryTimeout time.Duration

	// Concurrent discovery passes are serialized: registry replacement is
	// wholesale, so overlapping scans would be order-dependent and lossy.
	discoverMu sync.Mutex

	now func() time.Time
}

func NewManager(scanner adapters.Scanner, dialer adapters.DeviceDialer, reg *registry.Registry, opts Options) *Manager {
	if reg == nil {
		reg = registry.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	commandTimeout := opts.CommandTimeout
	if commandTimeout <= 0 {
		commandTimeout = defaultCommandTimeout
	}
	discoveryTimeout := opts.DiscoveryTimeout
	if discoveryTimeout <= 0 {
		discoveryTimeout = defaultDiscoveryTimeout
	}

	return &Manager{
		scanner:          scanner,
		dialer:           dialer,
		registry:         reg,
		logger:           logger,
		commandTimeout:   commandTimeout,
		discoveryTimeout: discoveryTimeout,
		now:              time.Now,
	}
}

// Discover scans the local network for cast devices for up to timeoutSeconds
// and replaces the registry contents with the result. Finding zero devices
// is a successful (empty) pass; only scan-level failures leave the registry
// untouched.
func (m *Manager) Discover(ctx context.Context, timeoutSeconds float64) ([]domain.Device, error) {
	if m.scanner == nil {
		return nil, toolError(domain.ErrCodeInternalError, "discovery scanner is not configured")
	}

	wait := m.discoveryTimeout
	if timeoutSeconds > 0 {
		wait = time.Duration(timeoutSeconds * float64(time.Second))
	}
	if wait < minDiscoveryTimeout {
		wait = minDiscoveryTimeout
	}

	m.discoverMu.Lock()
	defer m.discoverMu.Unlock()

	started := m.now()
	m.logger.Debug("cast_discovery_start", slog.Duration("timeout", wait))

	scanCtx, cancelScan := context.WithTimeout(ctx, wait)
	defer cancelScan()

	entries, err := m.scanner.Scan(scanCtx)
	if err != nil {
		return nil, toolError(domain.ErrCodeDiscoveryFailed, fmt.Sprintf("device scan failed: %v", err))
	}

	found := make([]domain.Device, 0, 4)
	seen := map[string]bool{}
	for entry := range entries {
		if entry.Host == "" {
			m.logger.Warn("cast_discovery_skip_entry",
				slog.String("name", entry.Name),
				slog.String("reason", "no resolvable address"),
			)
			continue
		}
		if entry.UUID != "" && seen[entry.UUID] {
			continue
		}
		seen[entry.UUID] = true
		found = append(found, normalizeEntry(entry))
	}

	// The entry channel closes when the scan context is done; distinguish a
	// parent cancellation from the expected scan deadline.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	at := m.now()
	m.registry.Replace(found, at)
	m.logger.Info("cast_discovery_done",
		slog.Int("device_count", len(found)),
		slog.Int64("duration_ms", at.Sub(started).Milliseconds()),
	)
	return found, nil
}

// List returns the cached registry contents and the last discovery time.
func (m *Manager) List() ([]domain.Device, time.Time) {
	return m.registry.Snapshot()
}

// Status queries the live receiver state of a named device.
func (m *Manager) Status(ctx context.Context, deviceName string) (*domain.DeviceStatus, error) {
	dev, err := m.resolve(deviceName)
	if err != nil {
		return nil, err
	}

	var status *domain.DeviceStatus
	err = m.withConn(ctx, dev, "status", func(conn adapters.DeviceConn) error {
		if err := conn.Refresh(); err != nil {
			return unreachableError(dev, err)
		}
		status = snapshotStatus(dev, conn.State())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// Play loads a media URL on a named device. The load is acknowledged once
// the device accepts the session; playback is not tracked afterwards.
func (m *Manager) Play(ctx context.Context, req domain.PlayRequest) error {
	dev, err := m.resolve(req.DeviceName)
	if err != nil {
		return err
	}
	mediaURL := strings.TrimSpace(req.MediaURL)
	if mediaURL == "" {
		return toolError(domain.ErrCodePlaybackRejected, "media_url is empty")
	}
	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}

	m.logger.Info("cast_play",
		slog.String("device", dev.FriendlyName),
		slog.String("media_url", mediaURL),
		slog.String("content_type", contentType),
	)
	return m.withConn(ctx, dev, "play", func(conn adapters.DeviceConn) error {
		if err := conn.Load(mediaURL, contentType); err != nil {
			return toolError(domain.ErrCodePlaybackRejected,
				fmt.Sprintf("device %q rejected playback: %v", displayName(dev), err))
		}
		return nil
	})
}

// Pause pauses playback on a named device.
func (m *Manager) Pause(ctx context.Context, deviceName string) error {
	return m.transportCommand(ctx, deviceName, "pause", adapters.DeviceConn.Pause)
}

// Resume resumes paused playback on a named device.
func (m *Manager) Resume(ctx context.Context, deviceName string) error {
	return m.transportCommand(ctx, deviceName, "resume", adapters.DeviceConn.Unpause)
}

// Stop stops the active media session on a named device.
func (m *Manager) Stop(ctx context.Context, deviceName string) error {
	return m.transportCommand(ctx, deviceName, "stop", adapters.DeviceConn.StopMedia)
}

// SetVolume sets the device volume. The level is passed through unclamped;
// range validation is the caller's concern.
func (m *Manager) SetVolume(ctx context.Context, deviceName string, level float64) error {
	dev, err := m.resolve(deviceName)
	if err != nil {
		return err
	}
	return m.withConn(ctx, dev, "set_volume", func(conn adapters.DeviceConn) error {
		if err := conn.SetVolume(level); err != nil {
			return unreachableError(dev, err)
		}
		return nil
	})
}

// SpeakText synthesizes speech via the TTS endpoint and plays it on the
// named device. It is deliberately a degenerate case of Play against a
// constructed URL, not a separate transport primitive.
func (m *Manager) SpeakText(ctx context.Context, req domain.SpeakRequest) error {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return toolError(domain.ErrCodePlaybackRejected, "text is empty")
	}
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = tts.DefaultLanguage
	}

	m.logger.Info("cast_speak",
		slog.String("device", req.DeviceName),
		slog.String("language", language),
	)
	return m.Play(ctx, domain.PlayRequest{
		DeviceName:  req.DeviceName,
		MediaURL:    tts.SpeechURL(text, language),
		ContentType: tts.ContentType,
	})
}

func (m *Manager) transportCommand(ctx context.Context, deviceName, operation string, call func(adapters.DeviceConn) error) error {
	dev, err := m.resolve(deviceName)
	if err != nil {
		return err
	}
	m.logger.Debug("cast_command", slog.String("operation", operation), slog.String("device", displayName(dev)))
	return m.withConn(ctx, dev, operation, func(conn adapters.DeviceConn) error {
		if err := call(conn); err != nil {
			return unreachableError(dev, err)
		}
		return nil
	})
}

func (m *Manager) resolve(deviceName string) (domain.Device, error) {
	dev, ok := m.registry.Find(deviceName)
	if !ok {
		return domain.Device{}, toolError(domain.ErrCodeDeviceNotFound,
			fmt.Sprintf("device %q not found. Run discover_devices first.", strings.TrimSpace(deviceName)))
	}
	return dev, nil
}

// withConn dials the device, runs fn, and closes the connection without
// stopping media. The whole exchange is bounded by the command timeout; on
// expiry the in-flight call is abandoned and its connection closed by the
// worker goroutine.
func (m *Manager) withConn(ctx context.Context, dev domain.Device, operation string, fn func(adapters.DeviceConn) error) error {
	if m.dialer == nil {
		return toolError(domain.ErrCodeInternalError, "device dialer is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, m.commandTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		conn, err := m.dialer.Dial(dev.Host, dev.Port)
		if err != nil {
			done <- unreachableError(dev, err)
			return
		}
		defer func() {
			if closeErr := conn.Close(); closeErr != nil {
				m.logger.Warn("cast_conn_close_error",
					slog.String("device", displayName(dev)),
					slog.String("error", closeErr.Error()),
				)
			}
		}()
		done <- fn(conn)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return toolError(domain.ErrCodeDeviceUnreachable,
			fmt.Sprintf("%s against device %q timed out: %v", operation, displayName(dev), ctx.Err()))
	}
}

func normalizeEntry(entry adapters.CastEntry) domain.Device {
	name := strings.TrimSpace(entry.Name)
	friendly := strings.TrimSpace(entry.FriendlyName)
	if friendly == "" {
		friendly = name
	}
	return domain.Device{
		UUID:         strings.TrimSpace(entry.UUID),
		Name:         name,
		FriendlyName: friendly,
		Model:        strings.TrimSpace(entry.Model),
		CastType:     castTypeForModel(entry.Model),
		Host:         entry.Host,
		Port:         entry.Port,
	}
}

func castTypeForModel(model string) string {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "group"):
		return "group"
	case strings.Contains(lower, "speaker"), strings.Contains(lower, "home"), strings.Contains(lower, "mini"), strings.Contains(lower, "audio"):
		return "audio"
	default:
		return "cast"
	}
}

func snapshotStatus(dev domain.Device, state adapters.DeviceState) *domain.DeviceStatus {
	status := &domain.DeviceStatus{
		Name:           dev.Name,
		Model:          dev.Model,
		IsIdle:         state.IsIdle,
		AppID:          state.AppID,
		AppDisplayName: state.AppDisplayName,
		VolumeLevel:    state.VolumeLevel,
		VolumeMuted:    state.VolumeMuted,
	}
	if state.Media != nil {
		status.Media = &domain.MediaStatus{
			ContentID:   state.Media.ContentID,
			ContentType: state.Media.ContentType,
			Title:       state.Media.Title,
			Artist:      state.Media.Artist,
			Album:       state.Media.Album,
			PlayerState: state.Media.PlayerState,
			Duration:    state.Media.Duration,
			CurrentTime: state.Media.CurrentTime,
		}
	}
	return status
}

func displayName(dev domain.Device) string {
	if dev.FriendlyName != "" {
		return dev.FriendlyName
	}
	return dev.Name
}

func unreachableError(dev domain.Device, err error) *domain.ToolError {
	return toolError(domain.ErrCodeDeviceUnreachable,
		fmt.Sprintf("device %q is unreachable: %v", displayName(dev), err))
}

func toolError(code, message string) *domain.ToolError {
	return &domain.ToolError{Code: code, Message: message}
}
