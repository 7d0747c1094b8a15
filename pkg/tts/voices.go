package tts

// ElevenLabsVoices maps friendly preset names to ElevenLabs voice IDs.
// Calm, clearly articulated voices suit short spoken scene summaries.
var ElevenLabsVoices = map[string]string{
	"rachel":    "21m00Tcm4TlvDq8ikWAM", // American female, calm
	"sarah":     "EXAVITQu4vr4xnSDxMaL", // American female, soft
	"charlotte": "XB0fDUnXU5powFXDhCwa", // British female, warm
	"lily":      "pFZP5JQG7iQjIQuC4Bku", // British female, warm
	"josh":      "TxGEqnHWrfWFTfGW9XjX", // American male, deep
	"adam":      "pNInz6obpgDQGcFmaJgB", // American male, deep
}

// DefaultElevenLabsVoice is the default voice preset.
const DefaultElevenLabsVoice = "rachel"

// ResolveElevenLabsVoice returns the voice ID for a preset name,
// or the input unchanged if it's already a voice ID.
func ResolveElevenLabsVoice(name string) string {
	if id, ok := ElevenLabsVoices[name]; ok {
		return id
	}
	return name
}
