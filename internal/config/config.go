// Package config provides environment-driven configuration for go-narrator commands.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Defaults used when the corresponding environment variable is unset.
const (
	DefaultCamera        = "0"
	DefaultModelPath     = "models/yolov8n.onnx"
	DefaultWebPort       = "8080"
	DefaultLogLevel      = "info"
	DefaultSpeechCommand = "espeak"
)

// Settings collects everything a narrator command needs from its environment.
type Settings struct {
	Camera    string // device index ("0") or a video file path
	ModelPath string // YOLOv8 ONNX model
	WebPort   string // control surface port, empty disables it
	LogLevel  string

	OpenAIKey         string
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	SpeechCommand     string // offline fallback speaker (espeak, say)

	VoiceEnabled  bool // start with voice output on
	Notifications bool // desktop notifications
	Window        bool // show the annotated frame in a local window
}

// Load reads Settings from the environment.
func Load() Settings {
	return Settings{
		Camera:            Env("NARRATOR_CAMERA", DefaultCamera),
		ModelPath:         Env("NARRATOR_MODEL", DefaultModelPath),
		WebPort:           Env("NARRATOR_WEB_PORT", DefaultWebPort),
		LogLevel:          Env("LOG_LEVEL", DefaultLogLevel),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		ElevenLabsKey:     os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID: os.Getenv("ELEVENLABS_VOICE_ID"),
		SpeechCommand:     Env("NARRATOR_SPEECH_COMMAND", DefaultSpeechCommand),
		VoiceEnabled:      Bool("NARRATOR_VOICE", false),
		Notifications:     Bool("NARRATOR_NOTIFY", true),
		Window:            Bool("NARRATOR_WINDOW", true),
	}
}

// HasCloudTTS reports whether at least one hosted TTS provider is configured.
func (s Settings) HasCloudTTS() bool {
	return s.OpenAIKey != "" || (s.ElevenLabsKey != "" && s.ElevenLabsVoiceID != "")
}

// CameraIndex returns the camera as a device index, or false when it is a path.
func (s Settings) CameraIndex() (int, bool) {
	idx, err := strconv.Atoi(s.Camera)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// Env returns the environment variable or the provided default if not set.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Bool parses a boolean environment variable ("1", "true", "yes", "on").
// Unset or unparseable values return def.
func Bool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
