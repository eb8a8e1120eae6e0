// Command console holds a booking conversation on the terminal: each line
// typed is one caller utterance, an empty line is silence. With -remote the
// turns go to a running agent instead of an in-process one.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"barberline/internal/agent"
	"barberline/pkg/client"
	"barberline/pkg/config"
	"barberline/pkg/logger"
	"barberline/pkg/model"

	"github.com/google/uuid"
)

const ServiceName = "console"

type turnTaker interface {
	HandleTurn(ctx context.Context, callID, utterance string) (model.TurnOutcome, error)
}

type remoteAgent struct {
	client *client.AgentClient
}

func (r remoteAgent) HandleTurn(ctx context.Context, callID, utterance string) (model.TurnOutcome, error) {
	outcome, err := r.client.HandleTurn(ctx, callID, utterance)
	if err != nil {
		return model.TurnOutcome{}, err
	}
	return *outcome, nil
}

func main() {
	remote := flag.String("remote", "", "base URL of a running agent, e.g. http://localhost:8080")
	flag.Parse()

	cfg := config.Load(ServiceName)
	cfg.Log = logger.New(logger.Config{
		Level:   logger.WARN,
		Format:  logger.TEXT,
		Output:  os.Stderr,
		Service: ServiceName,
	})
	ctx := context.Background()
	callID := uuid.NewString()

	if *remote != "" {
		if err := converse(ctx, remoteAgent{client: client.NewAgentClient(*remote)}, callID, os.Stdin, os.Stdout); err != nil {
			cfg.Log.Fatal("Conversation failed", "error", err)
		}
		return
	}

	cfg.SetGemini()
	a, err := agent.Build(ctx, cfg, agent.Options{Source: ServiceName, Memory: true})
	if err != nil {
		cfg.Log.Fatal("Failed to assemble agent", "error", err)
	}
	if err := converse(ctx, a.Machine, callID, os.Stdin, os.Stdout); err != nil {
		cfg.Log.Fatal("Conversation failed", "error", err)
	}
	if session, err := a.Machine.Session(ctx, callID); err == nil {
		fmt.Fprintf(os.Stdout, "-- call %s ended in %s after %d turns\n", callID, session.State, len(session.Turns))
	}
}

func converse(ctx context.Context, taker turnTaker, callID string, in io.Reader, out io.Writer) error {
	outcome, err := taker.HandleTurn(ctx, callID, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "agent> %s\n", outcome.ResponseText)

	scanner := bufio.NewScanner(in)
	for outcome.Continue {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			break
		}
		outcome, err = taker.HandleTurn(ctx, callID, scanner.Text())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "agent> %s\n", outcome.ResponseText)
	}
	return scanner.Err()
}
