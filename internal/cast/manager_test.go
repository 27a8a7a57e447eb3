package cast

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/monpham/mcp-homecast/internal/adapters"
	"github.com/monpham/mcp-homecast/internal/domain"
	"github.com/monpham/mcp-homecast/internal/registry"
)

type fakeScanner struct {
	entries []adapters.CastEntry
	err     error
	calls   int
}

func (f *fakeScanner) Scan(ctx context.Context) (<-chan adapters.CastEntry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan adapters.CastEntry)
	go func() {
		defer close(out)
		for _, entry := range f.entries {
			select {
			case out <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

type fakeConn struct {
	state      adapters.DeviceState
	refreshErr error
	loadErr    error
	pauseErr   error
	unpauseErr error
	stopErr    error
	volumeErr  error

	mu          sync.Mutex
	loadURL     string
	loadType    string
	volume      float64
	refreshed   int
	pauseCalls  int
	resumeCalls int
	stopCalls   int
	closeCalls  int
}

func (f *fakeConn) Refresh() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	return f.refreshErr
}

func (f *fakeConn) State() adapters.DeviceState { return f.state }

func (f *fakeConn) Load(mediaURL, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadURL = mediaURL
	f.loadType = contentType
	return f.loadErr
}

func (f *fakeConn) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauseCalls++
	return f.pauseErr
}

func (f *fakeConn) Unpause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumeCalls++
	return f.unpauseErr
}

func (f *fakeConn) StopMedia() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.stopErr
}

func (f *fakeConn) SetVolume(level float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = level
	return f.volumeErr
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

type fakeDialer struct {
	conn    *fakeConn
	dialErr error

	mu       sync.Mutex
	dials    int
	lastHost string
	lastPort int
}

func (f *fakeDialer) Dial(host string, port int) (adapters.DeviceConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	f.lastHost = host
	f.lastPort = port
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	if f.conn == nil {
		f.conn = &fakeConn{}
	}
	return f.conn, nil
}

func seededManager(t *testing.T, dialer *fakeDialer, devices ...domain.Device) *Manager {
	t.Helper()
	reg := registry.New()
	reg.Replace(devices, time.Now())
	return NewManager(&fakeScanner{}, dialer, reg, Options{CommandTimeout: 2 * time.Second})
}

func bedroomDevice() domain.Device {
	return domain.Device{
		UUID:         "uuid-1",
		Name:         "Bedroom",
		FriendlyName: "Bedroom Speaker",
		Model:        "Google Home Mini",
		Host:         "192.168.1.40",
		Port:         8009,
	}
}

func toolErrorCode(t *testing.T, err error) string {
	t.Helper()
	var tErr *domain.ToolError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected a tool error, got %v", err)
	}
	return tErr.Code
}

func TestDiscoverReplacesRegistryWholesale(t *testing.T) {
	scanner := &fakeScanner{entries: []adapters.CastEntry{
		{UUID: "u1", Name: "Bedroom", FriendlyName: "Bedroom Speaker", Model: "Google Home Mini", Host: "192.168.1.40", Port: 8009},
		{UUID: "u2", Name: "Living-Room", FriendlyName: "Living Room TV", Model: "Chromecast", Host: "192.168.1.41", Port: 8009},
	}}
	reg := registry.New()
	reg.Replace([]domain.Device{{UUID: "stale", Name: "Old Device"}}, time.Now().Add(-time.Hour))

	mgr := NewManager(scanner, &fakeDialer{}, reg, Options{})
	before := time.Now()

	found, err := mgr.Discover(context.Background(), 1)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(found))
	}

	devices, at := reg.Snapshot()
	if len(devices) != 2 || devices[0].UUID != "u1" || devices[1].UUID != "u2" {
		t.Fatalf("registry not replaced in discovery order: %+v", devices)
	}
	if at.Before(before) {
		t.Fatalf("last discovery %v predates the call start %v", at, before)
	}
	if _, ok := reg.Find("Old Device"); ok {
		t.Fatal("stale device survived the replacement")
	}
}

func TestDiscoverZeroDevicesIsSuccessAndEmptiesRegistry(t *testing.T) {
	reg := registry.New()
	reg.Replace([]domain.Device{{UUID: "stale", Name: "Old Device"}}, time.Now())

	mgr := NewManager(&fakeScanner{}, &fakeDialer{}, reg, Options{})
	found, err := mgr.Discover(context.Background(), 1)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("expected no devices, got %d", len(found))
	}
	if reg.Len() != 0 {
		t.Fatalf("expected registry emptied, got %d entries", reg.Len())
	}
}

func TestDiscoverScanFailureLeavesRegistryUntouched(t *testing.T) {
	reg := registry.New()
	staleAt := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	reg.Replace([]domain.Device{{UUID: "keep", Name: "Keeper"}}, staleAt)

	mgr := NewManager(&fakeScanner{err: errors.New("no network interface")}, &fakeDialer{}, reg, Options{})
	_, err := mgr.Discover(context.Background(), 1)
	if code := toolErrorCode(t, err); code != domain.ErrCodeDiscoveryFailed {
		t.Fatalf("expected DISCOVERY_FAILED, got %s", code)
	}

	devices, at := reg.Snapshot()
	if len(devices) != 1 || devices[0].UUID != "keep" {
		t.Fatalf("registry mutated on scan failure: %+v", devices)
	}
	if !at.Equal(staleAt) {
		t.Fatalf("timestamp mutated on scan failure: %v", at)
	}
}

func TestDiscoverSkipsEntriesWithoutAddressAndDeduplicates(t *testing.T) {
	scanner := &fakeScanner{entries: []adapters.CastEntry{
		{UUID: "u1", Name: "Bedroom", Host: "192.168.1.40", Port: 8009},
		{UUID: "u1", Name: "Bedroom", Host: "192.168.1.40", Port: 8009},
		{UUID: "u2", Name: "Ghost", Host: ""},
	}}
	mgr := NewManager(scanner, &fakeDialer{}, registry.New(), Options{})

	found, err := mgr.Discover(context.Background(), 1)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(found) != 1 || found[0].UUID != "u1" {
		t.Fatalf("expected the single resolvable device, got %+v", found)
	}
}

func TestDiscoverFriendlyNameFallsBackToInternalName(t *testing.T) {
	scanner := &fakeScanner{entries: []adapters.CastEntry{
		{UUID: "u1", Name: "Bedroom", FriendlyName: "", Host: "192.168.1.40", Port: 8009},
	}}
	mgr := NewManager(scanner, &fakeDialer{}, registry.New(), Options{})

	found, err := mgr.Discover(context.Background(), 1)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if found[0].FriendlyName != "Bedroom" {
		t.Fatalf("expected friendly name fallback, got %q", found[0].FriendlyName)
	}
}

func TestFindScenarioFromRegistry(t *testing.T) {
	mgr := seededManager(t, &fakeDialer{}, bedroomDevice())

	if _, err := mgr.Status(context.Background(), "kitchen"); toolErrorCode(t, err) != domain.ErrCodeDeviceNotFound {
		t.Fatal("expected DEVICE_NOT_FOUND for unknown name")
	}
}

func TestPlayNotFoundNeverDials(t *testing.T) {
	dialer := &fakeDialer{}
	mgr := seededManager(t, dialer)

	err := mgr.Play(context.Background(), domain.PlayRequest{DeviceName: "Bedroom", MediaURL: "http://example.com/a.mp3"})
	if code := toolErrorCode(t, err); code != domain.ErrCodeDeviceNotFound {
		t.Fatalf("expected DEVICE_NOT_FOUND, got %s", code)
	}
	if dialer.dials != 0 {
		t.Fatalf("locator miss must not touch the device layer, got %d dials", dialer.dials)
	}
}

func TestPlayLoadsURLWithDefaultsAndClosesConn(t *testing.T) {
	conn := &fakeConn{}
	dialer := &fakeDialer{conn: conn}
	mgr := seededManager(t, dialer, bedroomDevice())

	err := mgr.Play(context.Background(), domain.PlayRequest{
		DeviceName: "bedroom speaker",
		MediaURL:   "http://example.com/song.mp3",
	})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if dialer.lastHost != "192.168.1.40" || dialer.lastPort != 8009 {
		t.Fatalf("dialed %s:%d, want 192.168.1.40:8009", dialer.lastHost, dialer.lastPort)
	}
	if conn.loadURL != "http://example.com/song.mp3" {
		t.Fatalf("unexpected load url %q", conn.loadURL)
	}
	if conn.loadType != "audio/mp3" {
		t.Fatalf("expected default content type audio/mp3, got %q", conn.loadType)
	}
	if conn.closeCalls != 1 {
		t.Fatalf("expected connection closed once, got %d", conn.closeCalls)
	}
}

func TestPlayConnectFailureIsUnreachable(t *testing.T) {
	dialer := &fakeDialer{dialErr: errors.New("connection refused")}
	mgr := seededManager(t, dialer, bedroomDevice())

	err := mgr.Play(context.Background(), domain.PlayRequest{DeviceName: "Bedroom", MediaURL: "http://example.com/a.mp3"})
	if code := toolErrorCode(t, err); code != domain.ErrCodeDeviceUnreachable {
		t.Fatalf("expected DEVICE_UNREACHABLE, got %s", code)
	}
}

func TestPlayLoadFailureIsPlaybackRejected(t *testing.T) {
	dialer := &fakeDialer{conn: &fakeConn{loadErr: errors.New("invalid media")}}
	mgr := seededManager(t, dialer, bedroomDevice())

	err := mgr.Play(context.Background(), domain.PlayRequest{DeviceName: "Bedroom", MediaURL: "http://example.com/a.mp3"})
	if code := toolErrorCode(t, err); code != domain.ErrCodePlaybackRejected {
		t.Fatalf("expected PLAYBACK_REJECTED, got %s", code)
	}
}

func TestTransportCommandsReachConn(t *testing.T) {
	conn := &fakeConn{}
	mgr := seededManager(t, &fakeDialer{conn: conn}, bedroomDevice())
	ctx := context.Background()

	if err := mgr.Pause(ctx, "Bedroom"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := mgr.Resume(ctx, "Bedroom"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := mgr.Stop(ctx, "Bedroom"); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if conn.pauseCalls != 1 || conn.resumeCalls != 1 || conn.stopCalls != 1 {
		t.Fatalf("unexpected call counts: pause=%d resume=%d stop=%d",
			conn.pauseCalls, conn.resumeCalls, conn.stopCalls)
	}
	if conn.closeCalls != 3 {
		t.Fatalf("expected one close per command, got %d", conn.closeCalls)
	}
}

func TestTransportCommandFailureIsUnreachable(t *testing.T) {
	conn := &fakeConn{pauseErr: errors.New("socket closed")}
	mgr := seededManager(t, &fakeDialer{conn: conn}, bedroomDevice())

	err := mgr.Pause(context.Background(), "Bedroom")
	if code := toolErrorCode(t, err); code != domain.ErrCodeDeviceUnreachable {
		t.Fatalf("expected DEVICE_UNREACHABLE, got %s", code)
	}
}

func TestSetVolumeBoundariesAndPassThrough(t *testing.T) {
	conn := &fakeConn{}
	mgr := seededManager(t, &fakeDialer{conn: conn}, bedroomDevice())
	ctx := context.Background()

	for _, level := range []float64{0.0, 1.0, 1.5} {
		if err := mgr.SetVolume(ctx, "Bedroom", level); err != nil {
			t.Fatalf("set volume %v: %v", level, err)
		}
		if conn.volume != level {
			t.Fatalf("volume not passed through unclamped: got %v, want %v", conn.volume, level)
		}
	}
}

func TestSpeakTextDispatchesPlayWithSynthesisURL(t *testing.T) {
	conn := &fakeConn{}
	mgr := seededManager(t, &fakeDialer{conn: conn}, bedroomDevice())

	err := mgr.SpeakText(context.Background(), domain.SpeakRequest{
		DeviceName: "Bedroom Speaker",
		Text:       "Xin chào",
		Language:   "vi-VN",
	})
	if err != nil {
		t.Fatalf("speak: %v", err)
	}

	if !strings.Contains(conn.loadURL, "Xin%20ch%C3%A0o") {
		t.Fatalf("expected percent-encoded text in %q", conn.loadURL)
	}
	if !strings.Contains(conn.loadURL, "tl=vi-VN") {
		t.Fatalf("expected language tag in %q", conn.loadURL)
	}
	if conn.loadType != "audio/mp3" {
		t.Fatalf("expected audio/mp3 content type, got %q", conn.loadType)
	}
}

func TestSpeakTextRejectsEmptyText(t *testing.T) {
	dialer := &fakeDialer{}
	mgr := seededManager(t, dialer, bedroomDevice())

	err := mgr.SpeakText(context.Background(), domain.SpeakRequest{DeviceName: "Bedroom", Text: "   "})
	if err == nil {
		t.Fatal("expected an error for empty text")
	}
	if dialer.dials != 0 {
		t.Fatal("empty text must not reach the device layer")
	}
}

func TestStatusIncludesMediaSessionWhenActive(t *testing.T) {
	conn := &fakeConn{state: adapters.DeviceState{
		AppID:          "CC1AD845",
		AppDisplayName: "Default Media Receiver",
		IsIdle:         false,
		VolumeLevel:    0.4,
		VolumeMuted:    false,
		Media: &adapters.MediaSession{
			ContentID:   "http://example.com/song.mp3",
			ContentType: "audio/mp3",
			Title:       "Song",
			Artist:      "Artist",
			PlayerState: "PLAYING",
			Duration:    180,
			CurrentTime: 42,
		},
	}}
	mgr := seededManager(t, &fakeDialer{conn: conn}, bedroomDevice())

	status, err := mgr.Status(context.Background(), "bedroom")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if conn.refreshed != 1 {
		t.Fatalf("expected one refresh, got %d", conn.refreshed)
	}
	if status.Name != "Bedroom" || status.Model != "Google Home Mini" {
		t.Fatalf("unexpected identity in status: %+v", status)
	}
	if status.VolumeLevel != 0.4 {
		t.Fatalf("unexpected volume: %v", status.VolumeLevel)
	}
	if status.Media == nil || status.Media.PlayerState != "PLAYING" || status.Media.Title != "Song" {
		t.Fatalf("unexpected media status: %+v", status.Media)
	}
}

func TestStatusWithoutMediaSession(t *testing.T) {
	conn := &fakeConn{state: adapters.DeviceState{IsIdle: true, VolumeLevel: 0.2}}
	mgr := seededManager(t, &fakeDialer{conn: conn}, bedroomDevice())

	status, err := mgr.Status(context.Background(), "Bedroom")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.IsIdle {
		t.Fatal("expected idle device")
	}
	if status.Media != nil {
		t.Fatalf("expected no media status, got %+v", status.Media)
	}
}

func TestStatusRefreshFailureIsUnreachable(t *testing.T) {
	conn := &fakeConn{refreshErr: errors.New("timeout")}
	mgr := seededManager(t, &fakeDialer{conn: conn}, bedroomDevice())

	_, err := mgr.Status(context.Background(), "Bedroom")
	if code := toolErrorCode(t, err); code != domain.ErrCodeDeviceUnreachable {
		t.Fatalf("expected DEVICE_UNREACHABLE, got %s", code)
	}
}

type blockingDialer struct{ release chan struct{} }

func (b *blockingDialer) Dial(host string, port int) (adapters.DeviceConn, error) {
	<-b.release
	return nil, errors.New("released")
}

func TestCommandTimeoutSurfacesAsUnreachable(t *testing.T) {
	dialer := &blockingDialer{release: make(chan struct{})}
	defer close(dialer.release)

	reg := registry.New()
	reg.Replace([]domain.Device{bedroomDevice()}, time.Now())
	mgr := NewManager(&fakeScanner{}, dialer, reg, Options{CommandTimeout: 50 * time.Millisecond})

	err := mgr.Pause(context.Background(), "Bedroom")
	if code := toolErrorCode(t, err); code != domain.ErrCodeDeviceUnreachable {
		t.Fatalf("expected DEVICE_UNREACHABLE on timeout, got %s", code)
	}
}

func TestConcurrentDiscoverCallsAreSerialized(t *testing.T) {
	scanner := &fakeScanner{entries: []adapters.CastEntry{
		{UUID: "u1", Name: "Bedroom", Host: "192.168.1.40", Port: 8009},
	}}
	mgr := NewManager(scanner, &fakeDialer{}, registry.New(), Options{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := mgr.Discover(context.Background(), 1); err != nil {
				t.Errorf("discover: %v", err)
			}
		}()
	}
	wg.Wait()

	if scanner.calls != 4 {
		t.Fatalf("expected 4 serialized scans, got %d", scanner.calls)
	}
}
