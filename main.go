package main

import (
	"log"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/frontdesk/frontdesk/internal/config"
	"github.com/frontdesk/frontdesk/internal/escalate"
	"github.com/frontdesk/frontdesk/internal/gateway"
	"github.com/frontdesk/frontdesk/internal/handler"
	"github.com/frontdesk/frontdesk/internal/lifecycle"
	"github.com/frontdesk/frontdesk/internal/llm"
	"github.com/frontdesk/frontdesk/internal/notify"
	"github.com/frontdesk/frontdesk/internal/resolver"
	"github.com/frontdesk/frontdesk/internal/store"
	"github.com/frontdesk/frontdesk/internal/transcript"
	"github.com/frontdesk/frontdesk/internal/webserver"
)

func main() {
	cfg := config.Load()

	// Parse arguments: --addr and --db override the environment, --mcp
	// additionally serves the ask_supervisor tool on stdio.
	mcpMode := false
	args := os.Args[1:]
	for i, arg := range args {
		switch arg {
		case "--addr":
			if i+1 < len(args) {
				cfg.HTTPAddress = args[i+1]
			}
		case "--db":
			if i+1 < len(args) {
				cfg.DBPath = args[i+1]
			}
		case "--mcp":
			mcpMode = true
		}
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	broker := notify.NewBroker()
	escalation := escalate.NewService(st, broker)
	manager := lifecycle.NewManager(st, broker, escalation)

	model := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelID)
	answers := resolver.New(st, model)
	stt := transcript.NewClient(cfg.STTBaseURL)
	call := gateway.NewHandler(stt, answers, escalation)

	api := webserver.New(st, manager, escalation, broker, call)

	if !mcpMode {
		log.Printf("frontdesk listening on %s", cfg.HTTPAddress)
		if err := http.ListenAndServe(cfg.HTTPAddress, api.Handler()); err != nil {
			log.Fatalf("server error: %v", err)
		}
		return
	}

	go func() {
		log.Printf("frontdesk listening on %s", cfg.HTTPAddress)
		if err := http.ListenAndServe(cfg.HTTPAddress, api.Handler()); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	s := server.NewMCPServer(
		"frontdesk",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	tool := mcp.NewTool("ask_supervisor",
		mcp.WithDescription("Escalate a question to the human supervisor and wait for their answer."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question the assistant could not answer"),
		),
		mcp.WithString("caller_id",
			mcp.Description("Identifier of the calling session or room"),
		),
	)
	s.AddTool(tool, handler.NewAsk(escalation).AskSupervisor)

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
