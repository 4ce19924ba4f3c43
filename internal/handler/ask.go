// Package handler implements the ask_supervisor MCP tool: escalate a
// question and block until a human answers.
package handler

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/frontdesk/frontdesk/internal/escalate"
)

type Ask struct {
	Escalation *escalate.Service
}

func NewAsk(esc *escalate.Service) *Ask {
	return &Ask{Escalation: esc}
}

// AskSupervisor files a help request and waits for the supervisor's answer
// or context cancellation. The request survives cancellation: the answer
// still lands in the learned corpus once the supervisor responds.
func (a *Ask) AskSupervisor(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question is required"), nil
	}
	callerID := request.GetString("caller_id", "mcp-client")

	id, ch, err := a.Escalation.Escalate(question, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to escalate question: %w", err)
	}

	select {
	case <-ctx.Done():
		a.Escalation.Forget(id)
		return nil, ctx.Err()
	case answer, ok := <-ch:
		if !ok {
			return mcp.NewToolResultError("request expired before the supervisor answered"), nil
		}
		return mcp.NewToolResultText(answer), nil
	}
}
