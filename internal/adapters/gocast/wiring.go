// Package gocast wires the adapter contracts to go-chromecast, keeping the
// library out of every other package.
package gocast

import (
	"context"

	"github.com/vishen/go-chromecast/application"
	castdns "github.com/vishen/go-chromecast/dns"

	"github.com/monpham/mcp-homecast/internal/adapters"
)

// Bundle holds all go-chromecast-backed adapters.
type Bundle struct {
	Scanner adapters.Scanner
	Dialer  adapters.DeviceDialer
}

func NewBundle() Bundle {
	return Bundle{
		Scanner: ScannerAdapter{},
		Dialer:  DialerAdapter{},
	}
}

type ScannerAdapter struct{}

func (ScannerAdapter) Scan(ctx context.Context) (<-chan adapters.CastEntry, error) {
	entries, err := castdns.DiscoverCastDNSEntries(ctx, nil)
	if err != nil {
		return nil, err
	}

	out := make(chan adapters.CastEntry)
	go func() {
		defer close(out)
		for entry := range entries {
			host := ""
			if entry.AddrV4 != nil {
				host = entry.AddrV4.String()
			} else if entry.AddrV6 != nil {
				host = entry.AddrV6.String()
			}

			converted := adapters.CastEntry{
				UUID:         entry.UUID,
				Name:         entry.Name,
				FriendlyName: entry.DeviceName,
				Model:        entry.Device,
				Host:         host,
				Port:         entry.Port,
			}
			select {
			case out <- converted:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

type DialerAdapter struct{}

func (DialerAdapter) Dial(host string, port int) (adapters.DeviceConn, error) {
	app := application.NewApplication(application.WithCacheDisabled(true))
	if err := app.Start(host, port); err != nil {
		return nil, err
	}
	return &ConnAdapter{app: app}, nil
}

type ConnAdapter struct {
	app *application.Application
}

func (c *ConnAdapter) Refresh() error {
	return c.app.Update()
}

func (c *ConnAdapter) State() adapters.DeviceState {
	app, media, volume := c.app.Status()

	state := adapters.DeviceState{IsIdle: true}
	if app != nil {
		state.AppID = app.AppId
		state.AppDisplayName = app.DisplayName
		state.IsIdle = app.IsIdleScreen
	}
	if volume != nil {
		state.VolumeLevel = float64(volume.Level)
		state.VolumeMuted = volume.Muted
	}
	if media != nil {
		state.Media = &adapters.MediaSession{
			ContentID:   media.Media.ContentId,
			ContentType: media.Media.ContentType,
			Title:       media.Media.Metadata.Title,
			Artist:      media.Media.Metadata.Artist,
			PlayerState: media.PlayerState,
			Duration:    float64(media.Media.Duration),
			CurrentTime: float64(media.CurrentTime),
		}
	}
	return state
}

func (c *ConnAdapter) Load(mediaURL, contentType string) error {
	// detach: the load is acknowledged once playback starts; the connection
	// does not babysit the session afterwards.
	return c.app.Load(mediaURL, 0, contentType, false, true, false)
}

func (c *ConnAdapter) Pause() error {
	return c.app.Pause()
}

func (c *ConnAdapter) Unpause() error {
	return c.app.Unpause()
}

func (c *ConnAdapter) StopMedia() error {
	return c.app.StopMedia()
}

func (c *ConnAdapter) SetVolume(level float64) error {
	return c.app.SetVolume(float32(level))
}

func (c *ConnAdapter) Close() error {
	return c.app.Close(false)
}

var (
	_ adapters.Scanner      = ScannerAdapter{}
	_ adapters.DeviceDialer = DialerAdapter{}
	_ adapters.DeviceConn   = (*ConnAdapter)(nil)
)
