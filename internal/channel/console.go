package channel

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/driftloom/loomcore/pkg/models"
)

// Console prompts a human operator on an input/output stream pair
// (typically os.Stdin/os.Stdout). It blocks until a line is read or
// ctx is cancelled.
type Console struct {
	In  io.Reader
	Out io.Writer
}

// NewConsole builds a Console channel over the given streams.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{In: in, Out: out}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Resolve(ctx context.Context, req models.PermissionRequest, display DisplayInfo) (models.ChannelResponse, error) {
	fmt.Fprintf(c.Out, "\nPermission requested: %s\n%s\n", req.ToolName, display.Render())
	fmt.Fprint(c.Out, "Allow? [y/n/a(lways)/never/once/all] ")

	lineCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(c.In).ReadString('\n')
		if err != nil && line == "" {
			errCh <- err
			return
		}
		lineCh <- line
	}()

	select {
	case <-ctx.Done():
		return models.ChannelResponse{RequestID: req.RequestID, Decision: models.ChannelTimeout, Reason: "console prompt cancelled"}, ctx.Err()
	case err := <-errCh:
		if errors.Is(err, io.EOF) {
			return parseConsoleAnswer(req.RequestID, req.ToolName, req.Arguments, ""), nil
		}
		return models.ChannelResponse{}, err
	case line := <-lineCh:
		return parseConsoleAnswer(req.RequestID, req.ToolName, req.Arguments, line), nil
	}
}

// parseConsoleAnswer maps a console line to a ChannelResponse by the
// fixed token table every interactive-console channel implements:
//
//	y / yes       -> allow
//	n / no        -> deny
//	a / always    -> allow_session (with synthesized remember-pattern)
//	never         -> deny_session
//	once          -> allow_once
//	all           -> allow_all
//	other / EOF   -> deny
func parseConsoleAnswer(requestID, toolName string, rawArgs json.RawMessage, line string) models.ChannelResponse {
	answer := strings.ToLower(strings.TrimSpace(line))
	switch answer {
	case "y", "yes":
		return models.ChannelResponse{RequestID: requestID, Decision: models.ChannelAllow}
	case "n", "no":
		return models.ChannelResponse{RequestID: requestID, Decision: models.ChannelDeny, Reason: "declined by operator"}
	case "a", "always":
		return models.ChannelResponse{
			RequestID:       requestID,
			Decision:        models.ChannelAllowSession,
			Remember:        true,
			RememberPattern: rememberPattern(toolName, rawArgs),
		}
	case "never":
		return models.ChannelResponse{RequestID: requestID, Decision: models.ChannelDenySession, Remember: true}
	case "once":
		return models.ChannelResponse{RequestID: requestID, Decision: models.ChannelAllowOnce}
	case "all":
		return models.ChannelResponse{RequestID: requestID, Decision: models.ChannelAllowAll}
	default:
		return models.ChannelResponse{RequestID: requestID, Decision: models.ChannelDeny, Reason: "declined by operator"}
	}
}

// rememberPattern synthesizes the session pattern an allow_session
// response remembers: for CLI-style tools, "<command-head> *"; for
// everything else, the bare tool name.
func rememberPattern(toolName string, rawArgs json.RawMessage) string {
	if toolName != "cli_based_tool" {
		return toolName
	}
	var args struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return toolName
	}
	head := strings.Fields(args.Command)
	if len(head) == 0 {
		return toolName
	}
	return head[0] + " *"
}
