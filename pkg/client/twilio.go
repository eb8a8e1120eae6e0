package client

import (
	"barberline/pkg/logger"

	"github.com/twilio/twilio-go"
)

func (c *Client) SetTwilio(log *logger.Logger, accountSID, authToken string) {
	c.Twilio = twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	log.Info("Twilio REST client initialized")
}
