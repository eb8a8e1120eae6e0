package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"barberline/pkg/model"

	"google.golang.org/genai"
)

const answerInstruction = `You are the phone receptionist of a barbershop. Answer the caller's
question in one or two short spoken sentences using ONLY the reference passages.
If the passages do not contain the answer, reply exactly: I don't have that information.
Never invent prices, times or services.`

const classifyInstruction = `Classify the caller's utterance in a barbershop booking call.
Reply with exactly one label and nothing else:
booking_progress - gives or changes a service, name, phone number or preferred time
ancillary_question - asks about prices, hours, services or policies
confirmation - agrees to a proposed appointment (yes, sounds good, book it)
decline - refuses a proposed appointment or asks for another time
out_of_scope - anything unrelated to the barbershop`

var ErrEmptyResponse = errors.New("llm: empty response")

type Gemini struct {
	client     *genai.Client
	chatModel  string
	embedModel string
}

func NewGemini(client *genai.Client, chatModel, embedModel string) *Gemini {
	return &Gemini{
		client:     client,
		chatModel:  chatModel,
		embedModel: embedModel,
	}
}

func (g *Gemini) Complete(ctx context.Context, prompt string, passages []string) (string, error) {
	var b strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&b, "[#%d] %s\n\n", i+1, p)
	}
	b.WriteString("Question: ")
	b.WriteString(prompt)

	resp, err := g.client.Models.GenerateContent(ctx, g.chatModel, genai.Text(b.String()), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(answerInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.2),
		MaxOutputTokens:   160,
	})
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (g *Gemini) ClassifyIntent(ctx context.Context, text, hint string) (model.IntentLabel, error) {
	prompt := "Utterance: " + text
	if hint != "" {
		prompt = "The agent just said: " + hint + "\n" + prompt
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.chatModel, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(classifyInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		MaxOutputTokens:   8,
	})
	if err != nil {
		return model.IntentUnknown, fmt.Errorf("gemini classification: %w", err)
	}
	return model.ParseIntentLabel(resp.Text()), nil
}

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp.Embeddings[0].Values, nil
}
