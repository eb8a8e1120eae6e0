package client

import (
	"context"

	"barberline/pkg/logger"

	"google.golang.org/genai"
)

func (c *Client) SetGemini(log *logger.Logger, apiKey string) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Fatal("Failed to create Gemini client", "error", err)
	}

	log.Info("Gemini client initialized")
	c.Gemini = client
}
