package client

import (
	"context"
	"time"

	"barberline/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/twilio/twilio-go"
	"go.mongodb.org/mongo-driver/mongo"
	"google.golang.org/genai"
)

// Client holds the process-wide connections to external systems. Each field
// stays nil until its Set* method is called.
type Client struct {
	Mongo  *mongo.Client
	Redis  *redis.Client
	Gemini *genai.Client
	Twilio *twilio.RestClient
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) GracefulShutdown(log *logger.Logger, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if c.Mongo != nil {
		if err := c.Mongo.Disconnect(ctx); err != nil {
			log.Error("Failed to disconnect MongoDB", "error", err)
		} else {
			log.Info("MongoDB disconnected")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Error("Failed to close Redis", "error", err)
		} else {
			log.Info("Redis closed")
		}
	}
}
