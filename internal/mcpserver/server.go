// Package mcpserver implements the MCP stdio transport and the tool router.
// It speaks JSON-RPC 2.0 over Content-Length framed or JSON-line messages,
// mirroring on output whichever shape the client sent first.
package mcpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/monpham/mcp-homecast/internal/domain"
)

const protocolVersion = "2024-11-05"

const timestampLayout = "02/01/2006 15:04"

// DeviceController is what the router needs from the cast manager.
type DeviceController interface {
	Discover(ctx context.Context, timeoutSeconds float64) ([]domain.Device, error)
	List() ([]domain.Device, time.Time)
	Status(ctx context.Context, deviceName string) (*domain.DeviceStatus, error)
	Play(ctx context.Context, req domain.PlayRequest) error
	Pause(ctx context.Context, deviceName string) error
	Resume(ctx context.Context, deviceName string) error
	Stop(ctx context.Context, deviceName string) error
	SetVolume(ctx context.Context, deviceName string, level float64) error
	SpeakText(ctx context.Context, req domain.SpeakRequest) error
}

// DataGateway is what the router needs from the data API client.
type DataGateway interface {
	GoldPrice(ctx context.Context) (*domain.GoldReport, error)
	USDRate(ctx context.Context) (*domain.ForexReport, error)
	BitcoinPrice(ctx context.Context) (*domain.CryptoReport, error)
	Weather(ctx context.Context, city string) (*domain.WeatherReport, error)
	AdapterStatus(ctx context.Context) (*domain.AdapterHealth, error)
	SearchMusic(ctx context.Context, song, artist string) (*domain.MusicResult, error)
	MusicStream(ctx context.Context, song, artist string) (*domain.MusicResult, error)
	Lyrics(ctx context.Context, song, artist string) (*domain.LyricsResult, error)
}

// envelope is the single-object result every tool returns: a "success" flag
// plus either payload fields or "error"/"error_code".
type envelope map[string]any

// toolHandler decodes one tool's arguments and runs it. A non-nil error
// means the arguments were malformed and the caller answers with a JSON-RPC
// invalid-params error; tool-level failures come back as envelopes.
type toolHandler func(ctx context.Context, rawArgs json.RawMessage) (envelope, error)

type Server struct {
	in                *bufio.Reader
	out               *bufio.Writer
	serverName        string
	serverVersion     string
	logger            *slog.Logger
	useJSONLineOutput bool
	outputModeLocked  bool
	tools             []tool
	handlers          map[string]toolHandler
	devices           DeviceController
	data              DataGateway
}

type Config struct {
	ServerName    string
	ServerVersion string
	Logger        *slog.Logger
	Devices       DeviceController
	Data          DataGateway
}

func New(in io.Reader, out io.Writer, cfg Config) *Server {
	if cfg.ServerName == "" {
		cfg.ServerName = "mcp-homecast"
	}
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}

	s := &Server{
		in:            bufio.NewReader(in),
		out:           bufio.NewWriter(out),
		serverName:    cfg.ServerName,
		serverVersion: cfg.ServerVersion,
		logger:        cfg.Logger,
		tools:         staticTools(),
		devices:       cfg.Devices,
		data:          cfg.Data,
	}

	// The dispatch table is closed: built once here, never mutated. Every
	// name must also appear in staticTools.
	s.handlers = map[string]toolHandler{
		"discover_devices":  s.handleDiscoverDevices,
		"list_devices":      s.handleListDevices,
		"get_device_status": s.handleDeviceStatus,
		"play_media":        s.handlePlayMedia,
		"pause_media":       s.transportHandler("Paused playback on %s.", DeviceController.Pause),
		"resume_media":      s.transportHandler("Resumed playback on %s.", DeviceController.Resume),
		"stop_media":        s.transportHandler("Stopped playback on %s.", DeviceController.Stop),
		"set_volume":        s.handleSetVolume,
		"speak_text":        s.handleSpeakText,
		"get_gold_price":    s.dataHandler(func(ctx context.Context, g DataGateway) (any, error) { return g.GoldPrice(ctx) }),
		"get_usd_rate":      s.dataHandler(func(ctx context.Context, g DataGateway) (any, error) { return g.USDRate(ctx) }),
		"get_bitcoin_price": s.dataHandler(func(ctx context.Context, g DataGateway) (any, error) { return g.BitcoinPrice(ctx) }),
		"get_weather":       s.handleWeather,
		"adapter_status":    s.handleAdapterStatus,
		"search_music":      s.musicHandler(DataGateway.SearchMusic),
		"get_music_stream":  s.musicHandler(DataGateway.MusicStream),
		"get_lyrics":        s.handleLyrics,
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.logLifecycle(slog.LevelInfo, "mcp_context_done", slog.String("reason", ctx.Err().Error()))
			return ctx.Err()
		default:
		}

		s.logLifecycle(slog.LevelDebug, "mcp_read_wait")
		payload, jsonLineInput, err := readMessage(s.in)
		if err != nil {
			if err == io.EOF {
				s.logLifecycle(slog.LevelInfo, "mcp_stream_eof")
				return nil
			}
			s.logLifecycle(slog.LevelError, "mcp_read_error", slog.String("error", err.Error()))
			return err
		}
		if !s.outputModeLocked {
			s.useJSONLineOutput = jsonLineInput
			s.outputModeLocked = true
			s.logLifecycle(
				slog.LevelDebug,
				"mcp_output_mode",
				slog.String("mode", map[bool]string{true: "jsonline", false: "framed"}[jsonLineInput]),
			)
		}
		s.logLifecycle(slog.LevelDebug, "mcp_message_received", slog.Int("bytes", len(payload)))

		if err := s.handle(ctx, payload); err != nil {
			s.logLifecycle(slog.LevelError, "mcp_handle_error", slog.String("error", err.Error()))
			return err
		}
	}
}

func (s *Server) handle(ctx context.Context, payload []byte) error {
	startedAt := time.Now()

	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logCall("parse", "", startedAt, "-32700")
		return s.send(response{
			JSONRPC: "2.0",
			Error: &responseError{
				Code:    -32700,
				Message: "parse error",
			},
		})
	}

	// Notifications get no response.
	if len(req.ID) == 0 {
		return nil
	}

	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		s.logCall(req.Method, "", startedAt, "-32600")
		return s.send(response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &responseError{
				Code:    -32600,
				Message: "invalid request",
			},
		})
	}

	switch req.Method {
	case "initialize":
		s.logCall("initialize", "", startedAt, "")
		return s.send(response{JSONRPC: "2.0", ID: req.ID, Result: initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
			},
			ServerInfo: map[string]string{
				"name":    s.serverName,
				"version": s.serverVersion,
			},
			Instructions: "Use tools/list to inspect available tools. Call discover_devices before any other device tool.",
		}})
	case "tools/list":
		s.logCall("tools/list", "", startedAt, "")
		return s.send(response{JSONRPC: "2.0", ID: req.ID, Result: toolsListResult{Tools: s.tools}})
	case "tools/call":
		return s.handleToolCall(ctx, req.ID, req.Params)
	default:
		s.logCall(req.Method, "", startedAt, "-32601")
		return s.send(response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &responseError{
				Code:    -32601,
				Message: "method not found",
			},
		})
	}
}

func (s *Server) handleToolCall(ctx context.Context, id json.RawMessage, rawParams json.RawMessage) error {
	startedAt := time.Now()

	params, err := decodeToolCallParams(rawParams)
	if err != nil {
		return s.sendInvalidParams("tools/call", "", startedAt, id)
	}

	handler, ok := s.handlers[params.Name]
	if !ok {
		s.logCall(params.Name, "", startedAt, domain.ErrCodeToolNotFound)
		return s.sendEnvelope(id, failure(
			domain.ErrCodeToolNotFound,
			fmt.Sprintf("unknown tool: %s", params.Name),
		))
	}

	env, err := handler(ctx, params.Arguments)
	if err != nil {
		return s.sendInvalidParams(params.Name, "", startedAt, id)
	}

	s.logCall(params.Name, envString(env, "device_name"), startedAt, envString(env, "error_code"))
	return s.sendEnvelope(id, env)
}

func decodeToolCallParams(raw json.RawMessage) (toolsCallParams, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return toolsCallParams{}, err
	}

	nameRaw, ok := payload["name"]
	if !ok {
		return toolsCallParams{}, fmt.Errorf("missing tool name")
	}

	var name string
	if err := json.Unmarshal(nameRaw, &name); err != nil {
		return toolsCallParams{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return toolsCallParams{}, fmt.Errorf("missing tool name")
	}

	arguments, ok := payload["arguments"]
	if !ok {
		// Some clients flatten arguments into the params object.
		flattened := map[string]json.RawMessage{}
		for key, value := range payload {
			if key == "name" || key == "_meta" {
				continue
			}
			flattened[key] = value
		}
		if len(flattened) > 0 {
			normalized, err := json.Marshal(flattened)
			if err != nil {
				return toolsCallParams{}, err
			}
			arguments = normalized
		}
	}

	if len(bytes.TrimSpace(arguments)) == 0 {
		arguments = json.RawMessage("{}")
	}

	return toolsCallParams{
		Name:      name,
		Arguments: arguments,
	}, nil
}

func (s *Server) handleDiscoverDevices(ctx context.Context, rawArgs json.RawMessage) (envelope, error) {
	if s.devices == nil {
		return failure(domain.ErrCodeInternalError, "device controller is not configured"), nil
	}

	var args struct {
		Timeout *float64 `json:"timeout,omitempty"`
	}
	if err := decodeStrict(rawArgs, &args); err != nil {
		return nil, err
	}
	timeout := 0.0
	if args.Timeout != nil {
		if *args.Timeout < 0 {
			return nil, fmt.Errorf("timeout must not be negative")
		}
		timeout = *args.Timeout
	}

	devices, err := s.devices.Discover(ctx, timeout)
	if err != nil {
		return failureFromError(err), nil
	}

	env := success(fmt.Sprintf("Found %d device(s).", len(devices)))
	env["count"] = len(devices)
	env["devices"] = devices
	return env, nil
}

func (s *Server) handleListDevices(ctx context.Context, rawArgs json.RawMessage) (envelope, error) {
	if s.devices == nil {
		return failure(domain.ErrCodeInternalError, "device controller is not configured"), nil
	}
	if err := decodeStrict(rawArgs, &struct{}{}); err != nil {
		return nil, err
	}

	devices, discoveredAt := s.devices.List()
	if len(devices) == 0 {
		return envelope{
			"success": false,
			"message": "No devices in registry. Run discover_devices first.",
			"count":   0,
		}, nil
	}

	env := success(fmt.Sprintf("%d device(s) in registry.", len(devices)))
	env["count"] = len(devices)
	env["devices"] = devices
	if !discoveredAt.IsZero() {
		env["last_discovery"] = discoveredAt.Format(timestampLayout)
	}
	return env, nil
}

func (s *Server) handleDeviceStatus(ctx context.Context, rawArgs json.RawMessage) (envelope, error) {
	if s.devices == nil {
		return failure(domain.ErrCodeInternalError, "device controller is not configured"), nil
	}

	deviceName, err := decodeDeviceName(rawArgs)
	if err != nil {
		return nil, err
	}

	status, err := s.devices.Status(ctx, deviceName)
	if err != nil {
		return deviceFailure(err, deviceName), nil
	}

	env, err := successPayload(status)
	if err != nil {
		return failure(domain.ErrCodeInternalError, err.Error()), nil
	}
	env["device_name"] = deviceName
	return env, nil
}

func (s *Server) handlePlayMedia(ctx context.Context, rawArgs json.RawMessage) (envelope, error) {
	if s.devices == nil {
		return failure(domain.ErrCodeInternalError, "device controller is not configured"), nil
	}

	var args struct {
		DeviceName  string `json:"device_name"`
		MediaURL    string `json:"media_url"`
		ContentType string `json:"content_type,omitempty"`
		Title       string `json:"title,omitempty"`
	}
	if err := decodeStrict(rawArgs, &args); err != nil {
		return nil, err
	}
	args.DeviceName = strings.TrimSpace(args.DeviceName)
	if args.DeviceName == "" {
		return nil, fmt.Errorf("missing device_name")
	}
	args.MediaURL = strings.TrimSpace(args.MediaURL)
	if args.ContentType == "" {
		args.ContentType = "audio/mp3"
	}

	err := s.devices.Play(ctx, domain.PlayRequest{
		DeviceName:  args.DeviceName,
		MediaURL:    args.MediaURL,
		ContentType: args.ContentType,
		Title:       args.Title,
	})
	if err != nil {
		return deviceFailure(err, args.DeviceName), nil
	}

	env := success(fmt.Sprintf("Playing media on %s.", args.DeviceName))
	env["device_name"] = args.DeviceName
	env["media_url"] = args.MediaURL
	env["content_type"] = args.ContentType
	if args.Title != "" {
		env["title"] = args.Title
	}
	return env, nil
}

// transportHandler builds the handler for the single-device transport
// commands, which differ only in the method called and the ack message.
func (s *Server) transportHandler(messageFormat string, call func(DeviceController, context.Context, string) error) toolHandler {
	return func(ctx context.Context, rawArgs json.RawMessage) (envelope, error) {
		if s.devices == nil {
			return failure(domain.ErrCodeInternalError, "device controller is not configured"), nil
		}

		deviceName, err := decodeDeviceName(rawArgs)
		if err != nil {
			return nil, err
		}

		if err := call(s.devices, ctx, deviceName); err != nil {
			return deviceFailure(err, deviceName), nil
		}

		env := success(fmt.Sprintf(messageFormat, deviceName))
		env["device_name"] = deviceName
		return env, nil
	}
}

func (s *Server) handleSetVolume(ctx context.Context, rawArgs json.RawMessage) (envelope, error) {
	if s.devices == nil {
		return failure(domain.ErrCodeInternalError, "device controller is not configured"), nil
	}

	var args struct {
		DeviceName string   `json:"device_name"`
		Volume     *float64 `json:"volume"`
	}
	if err := decodeStrict(rawArgs, &args); err != nil {
		return nil, err
	}
	args.DeviceName = strings.TrimSpace(args.DeviceName)
	if args.DeviceName == "" {
		return nil, fmt.Errorf("missing device_name")
	}
	if args.Volume == nil {
		return nil, fmt.Errorf("missing volume")
	}

	if err := s.devices.SetVolume(ctx, args.DeviceName, *args.Volume); err != nil {
		return deviceFailure(err, args.DeviceName), nil
	}

	env := success(fmt.Sprintf("Volume on %s set to %.2f.", args.DeviceName, *args.Volume))
	env["device_name"] = args.DeviceName
	env["volume"] = *args.Volume
	return env, nil
}

func (s *Server) handleSpeakText(ctx context.Context, rawArgs json.RawMessage) (envelope, error) {
	if s.devices == nil {
		return failure(domain.ErrCodeInternalError, "device controller is not configured"), nil
	}

	var args struct {
		DeviceName string `json:"device_name"`
		Text       string `json:"text"`
		Language   string `json:"language,omitempty"`
	}
	if err := decodeStrict(rawArgs, &args); err != nil {
		return nil, err
	}
	args.DeviceName = strings.TrimSpace(args.DeviceName)
	if args.DeviceName == "" {
		return nil, fmt.Errorf("missing device_name")
	}

	err := s.devices.SpeakText(ctx, domain.SpeakRequest{
		DeviceName: args.DeviceName,
		Text:       args.Text,
		Language:   args.Language,
	})
	if err != nil {
		return deviceFailure(err, args.DeviceName), nil
	}

	env := success(fmt.Sprintf("Speaking on %s.", args.DeviceName))
	env["device_name"] = args.DeviceName
	if args.Language != "" {
		env["language"] = args.Language
	}
	return env, nil
}

// dataHandler builds the handler for the no-argument data proxy tools.
func (s *Server) dataHandler(fetch func(context.Context, DataGateway) (any, error)) toolHandler {
	return func(ctx context.Context, rawArgs json.RawMessage) (envelope, error) {
		if s.data == nil {
			return failure(domain.ErrCodeInternalError, "data gateway is not configured"), nil
		}
		if err := decodeStrict(rawArgs, &struct{}{}); err != nil {
			return nil, err
		}

		report, err := fetch(ctx, s.data)
		if err != nil {
			return failureFromError(err), nil
		}
		env, err := successPayload(report)
		if err != nil {
			return failure(domain.ErrCodeInternalError, err.Error()), nil
		}
		return env, nil
	}
}

func (s *Server) handleWeather(ctx context.Context, rawArgs json.RawMessage) (envelope, error) {
	if s.data == nil {
		return failure(domain.ErrCodeInternalError, "data gateway is not configured"), nil
	}

	var args struct {
		City string `json:"city,omitempty"`
	}
	if err := decodeStrict(rawArgs, &args); err != nil {
		return nil, err
	}

	report, err := s.data.Weather(ctx, args.City)
	if err != nil {
		return failureFromError(err), nil
	}
	env, err := successPayload(report)
	if err != nil {
		return failure(domain.ErrCodeInternalError, err.Error()), nil
	}
	return env, nil
}

func (s *Server) handleAdapterStatus(ctx context.Context, rawArgs json.RawMessage) (envelope, error) {
	if s.data == nil {
		return failure(domain.ErrCodeInternalError, "data gateway is not configured"), nil
	}
	if err := decodeStrict(rawArgs, &struct{}{}); err != nil {
		return nil, err
	}

	health, err := s.data.AdapterStatus(ctx)
	if err != nil {
		env := failure(domain.ErrCodeUpstreamError, err.Error())
		if health != nil {
			env["adapter_url"] = health.AdapterURL
			env["status"] = health.Status
		}
		return env, nil
	}

	env, err := successPayload(health)
	if err != nil {
		return failure(domain.ErrCodeInternalError, err.Error()), nil
	}
	return env, nil
}

// musicHandler builds the handler for the song-query adapter tools.
func (s *Server) musicHandler(query func(DataGateway, context.Context, string, string) (*domain.MusicResult, error)) toolHandler {
	return func(ctx context.Context, rawArgs json.RawMessage) (envelope, error) {
		if s.data == nil {
			return failure(domain.ErrCodeInternalError, "data gateway is not configured"), nil
		}

		song, artist, err := decodeSongQuery(rawArgs)
		if err != nil {
			return nil, err
		}

		result, err := query(s.data, ctx, song, artist)
		if err != nil {
			return failureFromError(err), nil
		}
		env, err := successPayload(result)
		if err != nil {
			return failure(domain.ErrCodeInternalError, err.Error()), nil
		}
		return env, nil
	}
}

func (s *Server) handleLyrics(ctx context.Context, rawArgs json.RawMessage) (envelope, error) {
	if s.data == nil {
		return failure(domain.ErrCodeInternalError, "data gateway is not configured"), nil
	}

	song, artist, err := decodeSongQuery(rawArgs)
	if err != nil {
		return nil, err
	}

	result, err := s.data.Lyrics(ctx, song, artist)
	if err != nil {
		return failureFromError(err), nil
	}
	env, err := successPayload(result)
	if err != nil {
		return failure(domain.ErrCodeInternalError, err.Error()), nil
	}
	return env, nil
}

func decodeSongQuery(rawArgs json.RawMessage) (song, artist string, err error) {
	var args struct {
		Song   string `json:"song"`
		Artist string `json:"artist,omitempty"`
	}
	if err := decodeStrict(rawArgs, &args); err != nil {
		return "", "", err
	}
	song = strings.TrimSpace(args.Song)
	if song == "" {
		return "", "", fmt.Errorf("missing song")
	}
	return song, strings.TrimSpace(args.Artist), nil
}

func decodeDeviceName(rawArgs json.RawMessage) (string, error) {
	var args struct {
		DeviceName string `json:"device_name"`
	}
	if err := decodeStrict(rawArgs, &args); err != nil {
		return "", err
	}
	name := strings.TrimSpace(args.DeviceName)
	if name == "" {
		return "", fmt.Errorf("missing device_name")
	}
	return name, nil
}

func decodeStrict(raw json.RawMessage, out any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return err
	}
	if decoder.More() {
		return fmt.Errorf("invalid JSON payload")
	}
	var trailing any
	if err := decoder.Decode(&trailing); err != io.EOF {
		return fmt.Errorf("invalid JSON payload")
	}
	return nil
}

func success(message string) envelope {
	return envelope{"success": true, "message": message}
}

func failure(code, message string) envelope {
	return envelope{"success": false, "error": message, "error_code": code}
}

func failureFromError(err error) envelope {
	var tErr *domain.ToolError
	if errors.As(err, &tErr) && tErr != nil {
		env := failure(tErr.Code, tErr.Message)
		if len(tErr.Details) > 0 {
			env["details"] = tErr.Details
		}
		return env
	}
	return failure(domain.ErrCodeInternalError, err.Error())
}

func deviceFailure(err error, deviceName string) envelope {
	env := failureFromError(err)
	env["device_name"] = deviceName
	return env
}

// successPayload flattens the payload's JSON fields into a success envelope.
func successPayload(payload any) (envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	env := envelope{}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	env["success"] = true
	return env, nil
}

func envString(env envelope, key string) string {
	if v, ok := env[key].(string); ok {
		return v
	}
	return ""
}

func (s *Server) sendEnvelope(id json.RawMessage, env envelope) error {
	text, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		env = failure(domain.ErrCodeInternalError, err.Error())
		text, _ = json.MarshalIndent(env, "", "  ")
	}

	isError := false
	if ok, found := env["success"].(bool); found {
		isError = !ok
	}

	return s.send(response{
		JSONRPC: "2.0",
		ID:      id,
		Result: toolCallResult{
			Content:           []toolContent{{Type: "text", Text: string(text)}},
			StructuredContent: env,
			IsError:           isError,
		},
	})
}

func (s *Server) sendInvalidParams(method, deviceName string, startedAt time.Time, id json.RawMessage) error {
	s.logCall(method, deviceName, startedAt, "-32602")
	return s.send(response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &responseError{
			Code:    -32602,
			Message: "invalid params",
		},
	})
}

func (s *Server) logCall(method, deviceName string, startedAt time.Time, errorCode string) {
	if s == nil || s.logger == nil {
		return
	}
	level := slog.LevelInfo
	if strings.TrimSpace(errorCode) != "" {
		level = slog.LevelError
	}

	s.logger.Log(
		context.Background(),
		level,
		"mcp_call",
		slog.String("method", strings.TrimSpace(method)),
		slog.String("device_name", strings.TrimSpace(deviceName)),
		slog.Int64("duration_ms", time.Since(startedAt).Milliseconds()),
		slog.String("error_code", strings.TrimSpace(errorCode)),
	)
}

func (s *Server) send(resp response) error {
	encoded, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	s.logLifecycle(slog.LevelDebug, "mcp_send", slog.Int("bytes", len(encoded)))
	if s.useJSONLineOutput {
		return writeJSONLineMessage(s.out, encoded)
	}
	return writeFramedMessage(s.out, encoded)
}

func (s *Server) logLifecycle(level slog.Level, msg string, attrs ...any) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Log(context.Background(), level, msg, attrs...)
}
