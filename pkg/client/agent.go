package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"barberline/pkg/model"
)

// AgentClient talks to a running agent service over its JSON API.
type AgentClient struct {
	httpClient *HttpClient
}

func NewAgentClient(baseURL string) *AgentClient {
	return &AgentClient{
		httpClient: NewHttpClient(baseURL),
	}
}

type TurnRequest struct {
	CallID    string `json:"call_id"`
	Utterance string `json:"utterance"`
}

func (c *AgentClient) HandleTurn(ctx context.Context, callID, utterance string) (*model.TurnOutcome, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/turns", TurnRequest{CallID: callID, Utterance: utterance})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("turn rejected (%d): %s", resp.StatusCode, GetErrorMessage(resp))
	}

	var outcome model.TurnOutcome
	if err := decodeData(resp, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (c *AgentClient) ListAppointments(ctx context.Context, limit int, offset int64) ([]model.Appointment, error) {
	path := fmt.Sprintf("/api/v1/appointments?limit=%d&offset=%d", limit, offset)
	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("list appointments failed (%d): %s", resp.StatusCode, GetErrorMessage(resp))
	}

	var appointments []model.Appointment
	if err := decodeData(resp, &appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}

func (c *AgentClient) CancelAppointment(ctx context.Context, id string) error {
	path := "/api/v1/appointments/id/" + url.PathEscape(id) + "/cancel"
	resp, err := c.httpClient.POST(ctx, path, nil)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("cancel appointment failed (%d): %s", resp.StatusCode, GetErrorMessage(resp))
	}
	return nil
}

func decodeData(resp *Response, target any) error {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return fmt.Errorf("could not decode response wrapper: %w", err)
	}
	if err := json.Unmarshal(wrapper.Data, target); err != nil {
		return fmt.Errorf("could not decode response data: %w", err)
	}
	return nil
}
