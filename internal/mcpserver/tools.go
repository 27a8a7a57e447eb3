package mcpserver

func deviceNameProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "The device name or friendly name. Obtain it by calling 'discover_devices' first.",
	}
}

func deviceOnlySchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"device_name": deviceNameProperty(),
		},
		"required":             []string{"device_name"},
		"additionalProperties": false,
	}
}

func emptySchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": false,
	}
}

func songQuerySchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"song": map[string]any{
				"type":        "string",
				"description": "The song title to search for.",
			},
			"artist": map[string]any{
				"type":        "string",
				"description": "Optional artist name to narrow the search.",
			},
		},
		"required":             []string{"song"},
		"additionalProperties": false,
	}
}

func staticTools() []tool {
	return []tool{
		{
			Name:        "discover_devices",
			Description: "Scan the local network for Google Cast devices (Google Home, Nest speakers, Chromecasts). Always call this first; it replaces the known-device list used by every other device tool.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"timeout": map[string]any{
						"type":        "number",
						"default":     10,
						"description": "Scan duration in seconds. Increase this if devices are slow to respond.",
					},
				},
				"additionalProperties": false,
			},
		},
		{
			Name:        "list_devices",
			Description: "List the cast devices found by the most recent 'discover_devices' call, without rescanning the network.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "get_device_status",
			Description: "Report a cast device's current state: running app, volume, and media metadata (title, artist, position) when something is playing.",
			InputSchema: deviceOnlySchema(),
		},
		{
			Name:        "play_media",
			Description: "Play an audio or video URL on a cast device. The URL must be directly fetchable by the device itself.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"device_name": deviceNameProperty(),
					"media_url": map[string]any{
						"type":        "string",
						"description": "HTTP/HTTPS URL of the media to play.",
					},
					"content_type": map[string]any{
						"type":        "string",
						"default":     "audio/mp3",
						"description": "MIME type of the media. Defaults to audio/mp3.",
					},
					"title": map[string]any{
						"type":        "string",
						"description": "Optional display title for the media.",
					},
				},
				"required":             []string{"device_name", "media_url"},
				"additionalProperties": false,
			},
		},
		{
			Name:        "pause_media",
			Description: "Pause playback on a cast device.",
			InputSchema: deviceOnlySchema(),
		},
		{
			Name:        "resume_media",
			Description: "Resume paused playback on a cast device.",
			InputSchema: deviceOnlySchema(),
		},
		{
			Name:        "stop_media",
			Description: "Stop playback on a cast device and release its media session.",
			InputSchema: deviceOnlySchema(),
		},
		{
			Name:        "set_volume",
			Description: "Set a cast device's volume level.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"device_name": deviceNameProperty(),
					"volume": map[string]any{
						"type":        "number",
						"description": "Volume level between 0.0 and 1.0.",
					},
				},
				"required":             []string{"device_name", "volume"},
				"additionalProperties": false,
			},
		},
		{
			Name:        "speak_text",
			Description: "Speak a text message aloud on a cast device using text-to-speech. Defaults to Vietnamese.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"device_name": deviceNameProperty(),
					"text": map[string]any{
						"type":        "string",
						"description": "The text to speak.",
					},
					"language": map[string]any{
						"type":        "string",
						"default":     "vi-VN",
						"description": "BCP-47 language tag for the voice, e.g. vi-VN or en-US.",
					},
				},
				"required":             []string{"device_name", "text"},
				"additionalProperties": false,
			},
		},
		{
			Name:        "get_gold_price",
			Description: "Get current domestic gold prices (SJC bars and plain rings) from Bao Tin Minh Chau, in VND per tael.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "get_usd_rate",
			Description: "Get the current USD/VND exchange rate from Vietcombank (buy cash, buy transfer, sell).",
			InputSchema: emptySchema(),
		},
		{
			Name:        "get_bitcoin_price",
			Description: "Get the current Bitcoin price in USD and VND with 24h change, from CoinGecko.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "get_weather",
			Description: "Get current weather conditions for a supported Vietnamese city.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"city": map[string]any{
						"type":        "string",
						"default":     "Ho Chi Minh City",
						"enum":        []string{"Cao Lanh", "Ho Chi Minh City"},
						"description": "City to report on. Unrecognized names fall back to Ho Chi Minh City.",
					},
				},
				"additionalProperties": false,
			},
		},
		{
			Name:        "adapter_status",
			Description: "Check whether the music adapter service is reachable.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "search_music",
			Description: "Search the music adapter for a song and return a directly playable audio URL, suitable for 'play_media'.",
			InputSchema: songQuerySchema(),
		},
		{
			Name:        "get_music_stream",
			Description: "Resolve a song to its streaming audio URL and lyric URL via the music adapter.",
			InputSchema: songQuerySchema(),
		},
		{
			Name:        "get_lyrics",
			Description: "Fetch the lyrics of a song via the music adapter.",
			InputSchema: songQuerySchema(),
		},
	}
}
