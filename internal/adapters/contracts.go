package adapters

import "context"

// CastEntry is one raw mDNS discovery hit, before normalization into a
// domain.Device.
type CastEntry struct {
	UUID         string
	Name         string
	FriendlyName string
	Model        string
	Host         string
	Port         int
}

// Scanner browses the local network for cast endpoints. The returned channel
// is closed when the scan context is done.
type Scanner interface {
	Scan(ctx context.Context) (<-chan CastEntry, error)
}

// MediaSession mirrors the live media status of a device, when one exists.
type MediaSession struct {
	ContentID   string
	ContentType string
	Title       string
	Artist      string
	Album       string
	PlayerState string
	Duration    float64
	CurrentTime float64
}

// DeviceState is the receiver-level state of a connected device.
type DeviceState struct {
	AppID          string
	AppDisplayName string
	IsIdle         bool
	VolumeLevel    float64
	VolumeMuted    bool
	Media          *MediaSession
}

// DeviceConn is an open control channel to one cast device. Refresh must be
// called before State to pull current receiver and media status.
type DeviceConn interface {
	Refresh() error
	State() DeviceState
	Load(mediaURL, contentType string) error
	Pause() error
	Unpause() error
	StopMedia() error
	SetVolume(level float64) error
	Close() error
}

// DeviceDialer opens control channels to discovered devices.
type DeviceDialer interface {
	Dial(host string, port int) (DeviceConn, error)
}
