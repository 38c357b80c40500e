package speech

import (
	"io"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/virtualtutor/core"
)

const (
	DefaultRate      = 1.0
	DefaultVolume    = 1.0
	DefaultVoiceName = "custom"
)

// Engines
const (
	EngineEdge      = "edge-tts"
	EngineCosyVoice = "cosyvoice"
	EngineGPTSoVITS = "gpt-sovits"
)

var Engines = []string{EngineEdge, EngineCosyVoice, EngineGPTSoVITS}

type Voice struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Lang   string `json:"lang"`
	Engine string `json:"engine,omitempty"`
}

type EngineInfo struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	RequiresReference bool   `json:"requires_reference"`
}

// Model is a TTS model selectable for an avatar.
type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var (
	voicesByEngine = map[string][]Voice{
		EngineEdge: {
			{ID: "zh-CN-XiaoxiaoNeural", Name: "晓晓 (女声)", Lang: "zh-CN"},
			{ID: "zh-CN-YunxiNeural", Name: "云希 (男声)", Lang: "zh-CN"},
			{ID: "zh-CN-YunyangNeural", Name: "云扬 (男声)", Lang: "zh-CN"},
			{ID: "en-US-JennyNeural", Name: "Jenny (Female)", Lang: "en-US"},
			{ID: "en-US-GuyNeural", Name: "Guy (Male)", Lang: "en-US"},
		},
		EngineCosyVoice: {
			{ID: "default", Name: "默认音色", Lang: "zh-CN"},
			{ID: "female", Name: "女声", Lang: "zh-CN"},
			{ID: "male", Name: "男声", Lang: "zh-CN"},
		},
		EngineGPTSoVITS: {
			{ID: "custom", Name: "自定义克隆音色", Lang: "multi"},
		},
	}

	defaultEngines = []EngineInfo{
		{ID: EngineEdge, Name: "Microsoft Edge TTS", Description: "Free online TTS service with high quality"},
		{ID: EngineCosyVoice, Name: "CosyVoice", Description: "High-quality local TTS model"},
		{ID: EngineGPTSoVITS, Name: "GPT-SoVITS", Description: "Voice cloning TTS with custom voice", RequiresReference: true},
	}

	// DefaultModels is served when the TTS service cannot list its models.
	DefaultModels = []Model{
		{ID: "edge-tts", Name: "Edge TTS"},
		{ID: "cosyvoice", Name: "CosyVoice"},
		{ID: "sovits", Name: "GPT-SoVITS"},
		{ID: "tacotron", Name: "Tacotron2"},
	}
)

// DefaultVoices returns the built-in voices of engine; of every engine, tagged with it, when engine is empty.
func DefaultVoices(engine string) []Voice {
	if engine != "" {
		voices := voicesByEngine[engine]
		out := make([]Voice, len(voices))
		copy(out, voices)
		return out
	}
	var all []Voice
	for _, eng := range Engines {
		for _, v := range voicesByEngine[eng] {
			v.Engine = eng
			all = append(all, v)
		}
	}
	return all
}

func DefaultEngines() []EngineInfo {
	out := make([]EngineInfo, len(defaultEngines))
	copy(out, defaultEngines)
	return out
}

// Reference is a reference audio used to clone a voice.
type Reference struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// Request is a text-to-speech synthesis request.
type Request struct {
	Text   string  `json:"text" form:"text" validate:"required,notblank,max=5000"`
	Engine string  `json:"engine" form:"engine"`
	Voice  string  `json:"voice" form:"voice"`
	Rate   float64 `json:"rate" form:"rate" validate:"gte=0.5,lte=2"`
	Volume float64 `json:"volume" form:"volume" validate:"gte=0,lte=1"`

	Reference *Reference `json:"-" form:"-"`
}

// NewRequest returns a Request holding the default rate & volume, ready to be bound.
func NewRequest() Request {
	return Request{Rate: DefaultRate, Volume: DefaultVolume}
}

func (r *Request) Validate(validate *validator.Validate) error {
	r.Engine = core.CleanString(r.Engine)
	r.Voice = core.CleanString(r.Voice)
	return validate.Struct(r)
}

// CloneRequest synthesizes text with the voice of a reference audio.
type CloneRequest struct {
	Text      string `form:"text" validate:"required,notblank,max=5000"`
	VoiceName string `form:"voice_name"`

	Reference Reference `form:"-"`
}

func (r *CloneRequest) Validate(validate *validator.Validate) error {
	r.VoiceName = core.CleanString(r.VoiceName)
	if r.VoiceName == "" {
		r.VoiceName = DefaultVoiceName
	}
	return validate.Struct(r)
}
