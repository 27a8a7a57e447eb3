// Package tts builds playable speech-synthesis URLs for cast devices.
package tts

import (
	"net/url"
	"strings"
)

const (
	synthesisEndpoint = "https://translate.google.com/translate_tts"
	DefaultLanguage   = "vi-VN"

	// ContentType is the MIME type the synthesis endpoint serves.
	ContentType = "audio/mp3"
)

// SpeechURL returns a URL that, when fetched, plays the given text in the
// given language. Spaces are encoded as %20 rather than '+' because some
// receivers refuse form-encoded query values in media URLs.
func SpeechURL(text, language string) string {
	if strings.TrimSpace(language) == "" {
		language = DefaultLanguage
	}
	encoded := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return synthesisEndpoint + "?ie=UTF-8&client=tw-ob&tl=" + url.QueryEscape(language) + "&q=" + encoded
}
