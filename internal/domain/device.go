package domain

// Device is one cast endpoint found by the most recent discovery pass.
// Identity fields come from the device's mDNS record; runtime state is
// always queried live and never cached here.
type Device struct {
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	FriendlyName string `json:"friendly_name"`
	Model        string `json:"model"`
	Manufacturer string `json:"manufacturer,omitempty"`
	CastType     string `json:"cast_type,omitempty"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
}

// DeviceStatus is a live snapshot of a device's receiver state.
type DeviceStatus struct {
	Name           string       `json:"name"`
	Model          string       `json:"model"`
	IsIdle         bool         `json:"is_idle"`
	AppID          string       `json:"app_id,omitempty"`
	AppDisplayName string       `json:"app_display_name,omitempty"`
	VolumeLevel    float64      `json:"volume_level"`
	VolumeMuted    bool         `json:"volume_muted"`
	Media          *MediaStatus `json:"media,omitempty"`
}

// MediaStatus is present only while the device has an active media session.
type MediaStatus struct {
	ContentID   string  `json:"content_id,omitempty"`
	ContentType string  `json:"content_type,omitempty"`
	Title       string  `json:"title,omitempty"`
	Artist      string  `json:"artist,omitempty"`
	Album       string  `json:"album,omitempty"`
	PlayerState string  `json:"player_state"`
	Duration    float64 `json:"duration,omitempty"`
	CurrentTime float64 `json:"current_time,omitempty"`
}

// PlayRequest asks for a URL to be loaded on a named device.
type PlayRequest struct {
	DeviceName  string `json:"device_name"`
	MediaURL    string `json:"media_url"`
	ContentType string `json:"content_type,omitempty"`
	Title       string `json:"title,omitempty"`
}

// SpeakRequest asks for synthesized speech to be played on a named device.
type SpeakRequest struct {
	DeviceName string `json:"device_name"`
	Text       string `json:"text"`
	Language   string `json:"language,omitempty"`
}
