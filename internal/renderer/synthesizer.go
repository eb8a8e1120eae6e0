package renderer

import (
	"context"
	"fmt"

	"barberline/pkg/client"
)

const (
	cartesiaTTSPath    = "/tts/bytes"
	cartesiaSampleRate = 8000
)

// Synthesizer turns text into encoded audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	// Extension is the file extension of the produced audio, without a dot.
	Extension() string
}

type CartesiaConfig struct {
	BaseURL string
	APIKey  string
	VoiceID string
	ModelID string
	Version string
}

type cartesiaVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type cartesiaRequest struct {
	ModelID      string         `json:"model_id"`
	Transcript   string         `json:"transcript"`
	Voice        cartesiaVoice  `json:"voice"`
	OutputFormat cartesiaFormat `json:"output_format"`
	Language     string         `json:"language"`
}

// Cartesia calls the Cartesia bytes endpoint and returns WAV audio that
// telephony can play directly.
type Cartesia struct {
	http *client.HttpClient
	cfg  CartesiaConfig
}

func NewCartesia(cfg CartesiaConfig) *Cartesia {
	http := client.NewHttpClient(cfg.BaseURL,
		client.WithHeader("X-API-Key", cfg.APIKey),
		client.WithHeader("Cartesia-Version", cfg.Version),
	)
	return &Cartesia{http: http, cfg: cfg}
}

func (c *Cartesia) Extension() string {
	return "wav"
}

func (c *Cartesia) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := c.http.POST(ctx, cartesiaTTSPath, cartesiaRequest{
		ModelID:    c.cfg.ModelID,
		Transcript: text,
		Voice:      cartesiaVoice{Mode: "id", ID: c.cfg.VoiceID},
		OutputFormat: cartesiaFormat{
			Container:  "wav",
			Encoding:   "pcm_s16le",
			SampleRate: cartesiaSampleRate,
		},
		Language: "en",
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("cartesia returned %d: %s", resp.StatusCode, client.GetErrorMessage(resp))
	}
	if len(resp.Body) == 0 {
		return nil, fmt.Errorf("cartesia returned no audio")
	}
	return resp.Body, nil
}
