package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"

	"github.com/comigor/conner-go/internal/chat"
	"github.com/comigor/conner-go/internal/config"
	"github.com/comigor/conner-go/internal/logger"
)

// Agent loop states
const (
	stateIdle           = "Idle"
	stateReadyToCallLLM = "ReadyToCallLLM"
	stateExecutingTools = "ExecutingTools"
	stateDone           = "Done"  // Terminal: successful completion
	stateError          = "Error" // Terminal: error state
)

// Agent loop triggers
const (
	triggerProcessInput            = "ProcessInput"
	triggerLLMRespondedWithContent = "LLMRespondedWithContent"
	triggerLLMRequestedTools       = "LLMRequestedTools"
	triggerToolsExecutionCompleted = "ToolsExecutionCompleted"
	triggerErrorOccurred           = "ErrorOccurred"
)

const (
	maxTurns      = 5 // LLM -> Tool -> LLM = 1 turn
	summaryWindow = 20
)

// MCPClientInterface defines the methods the agent expects from an MCP client.
type MCPClientInterface interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Agent is the OpenAI-backed gateway. Each Send runs a bounded
// LLM/tool loop over the supplied context window.
type Agent struct {
	llm        LLM
	cfg        config.LLMConfig
	mcpClients []MCPClientInterface
	tools      []openai.Tool
	toolOwners map[string]MCPClientInterface
	now        func() time.Time
}

// New creates an agent and connects the configured MCP tool servers.
// Servers that fail to start are logged and skipped.
func New(llm LLM, appCfg config.Config) *Agent {
	a := &Agent{
		llm:        llm,
		cfg:        appCfg.LLM,
		toolOwners: make(map[string]MCPClientInterface),
		now:        func() time.Time { return time.Now().UTC() },
	}
	ctx := context.Background()
	for _, serverCfg := range appCfg.MCPServers {
		c, err := startMCPClient(ctx, serverCfg)
		if err != nil {
			logger.L.Error("Failed to start MCP client", "name", serverCfg.Name, "error", err)
			continue
		}
		a.AddToolServer(ctx, serverCfg.Name, c)
	}
	if len(appCfg.MCPServers) > 0 && len(a.mcpClients) == 0 {
		logger.L.Warn("No MCP clients were successfully initialized despite servers configured.", "length", len(appCfg.MCPServers))
	}
	return a
}

func startMCPClient(ctx context.Context, serverCfg config.MCPServerConfig) (*client.Client, error) {
	var (
		c   *client.Client
		err error
	)
	switch serverCfg.Type {
	case config.ClientTypeSSE:
		var opts []transport.ClientOption
		if len(serverCfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(serverCfg.Headers))
		}
		c, err = client.NewSSEMCPClient(serverCfg.URL, opts...)
	case config.ClientTypeStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(serverCfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(serverCfg.Headers))
		}
		c, err = client.NewStreamableHttpClient(serverCfg.URL, opts...)
	case config.ClientTypeStdio:
		var env []string
		for k, v := range serverCfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		// Stdio clients start their transport on creation.
		return client.NewStdioMCPClient(serverCfg.Command, env, serverCfg.Args...)
	default:
		return nil, fmt.Errorf("unsupported MCP server type %q (want sse, streamable_http or stdio)", serverCfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		if cerr := c.Close(); cerr != nil {
			logger.L.Warn("MCP client close error after start failure", "error", cerr)
		}
		return nil, fmt.Errorf("start transport: %w", err)
	}
	return c, nil
}

// AddToolServer initializes c and registers its tools with the agent.
// Tools whose names are already registered are skipped.
func (a *Agent) AddToolServer(ctx context.Context, name string, c MCPClientInterface) {
	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "conner", Version: Version},
		},
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		logger.L.Error("Failed to initialize MCP client", "name", name, "error", err)
		if cerr := c.Close(); cerr != nil {
			logger.L.Warn("MCP client close error after init failure", "error", cerr)
		}
		return
	}
	a.mcpClients = append(a.mcpClients, c)

	listed, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		logger.L.Warn("Failed to list tools for MCP client", "name", name, "error", err)
		return
	}
	for _, tool := range listed.Tools {
		if _, exists := a.toolOwners[tool.Name]; exists {
			logger.L.Warn("Tool already registered from another server. Skipping.", "tool", tool.Name, "name", name)
			continue
		}
		a.toolOwners[tool.Name] = c
		a.tools = append(a.tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  toolSchema(tool),
			},
		})
		logger.L.Info("Registered tool from MCP server", "tool", tool.Name, "name", name)
	}
}

var emptySchema = json.RawMessage(`{"type": "object", "properties": {}}`)

func toolSchema(tool mcp.Tool) json.RawMessage {
	if len(tool.RawInputSchema) > 0 && string(tool.RawInputSchema) != "null" {
		return tool.RawInputSchema
	}
	if tool.InputSchema.Type == "" && len(tool.InputSchema.Properties) == 0 {
		return emptySchema
	}
	data, err := json.Marshal(tool.InputSchema)
	if err != nil || string(data) == "{}" || string(data) == "null" {
		return emptySchema
	}
	return data
}

// Close shuts down every MCP client.
func (a *Agent) Close() error {
	var errs []error
	for _, c := range a.mcpClients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Agent) systemPrompt(p chat.Personality) string {
	if a.cfg.SystemPrompt != "" {
		return a.cfg.SystemPrompt + " " + guidanceFor(p)
	}
	return SystemPrompt(p)
}

// Send implements Client.
func (a *Agent) Send(ctx context.Context, message string, window []chat.Message, personality chat.Personality) (Reply, error) {
	messages := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: a.systemPrompt(personality),
	}}
	messages = append(messages, toOpenAI(window)...)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	content, err := a.run(ctx, messages, a.tools)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Message: content, Timestamp: a.now()}, nil
}

// Summarize returns a short compassionate summary of msgs.
func (a *Agent) Summarize(ctx context.Context, msgs []chat.Message) (string, error) {
	var b strings.Builder
	for _, m := range chat.Window(msgs, summaryWindow) {
		if m.IsError {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	if b.Len() == 0 {
		return "", errors.New("nothing to summarize")
	}
	prompt := "Please write a brief and compassionate summary of this mental health conversation. " +
		"Highlight the key themes, emotions expressed, and any moments of insight, growth, or positive progress. " +
		"Keep the tone supportive and encouraging. Here's the conversation:\n\n" + b.String()
	return a.run(ctx, []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}}, nil)
}

// toOpenAI maps the context window to chat completion messages. Synthetic
// error replies are not part of the conversation the model should see.
func toOpenAI(window []chat.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(window))
	for _, m := range window {
		if m.IsError {
			continue
		}
		role := openai.ChatMessageRoleUser
		if m.Role == chat.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// run drives the LLM/tool loop to a terminal state.
func (a *Agent) run(ctx context.Context, initial []openai.ChatCompletionMessage, tools []openai.Tool) (string, error) {
	var (
		messages     = initial
		llmResponse  *openai.ChatCompletionResponse
		finalContent string
		lastError    error
		currentTurn  int
	)

	fsm := stateless.NewStateMachineWithMode(stateIdle, stateless.FiringImmediate)

	fsm.Configure(stateIdle).
		Permit(triggerProcessInput, stateReadyToCallLLM)

	// State: ReadyToCallLLM
	// Action: Call LLM with current messages.
	fsm.Configure(stateReadyToCallLLM).
		OnEntry(func(ctx context.Context, _ ...any) error {
			if currentTurn >= maxTurns {
				lastError = errors.New("exceeded maximum interaction turns")
				return fsm.FireCtx(ctx, triggerErrorOccurred)
			}
			currentTurn++
			logger.L.Debug("agent: calling LLM", "turn", currentTurn)

			resp, err := a.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:    a.cfg.Model,
				Messages: messages,
				Tools:    tools,
			})
			if err != nil {
				logger.L.Error("LLM call failed", "error", err)
				lastError = err
				return fsm.FireCtx(ctx, triggerErrorOccurred)
			}
			if len(resp.Choices) == 0 {
				lastError = errors.New("LLM returned no choices")
				return fsm.FireCtx(ctx, triggerErrorOccurred)
			}
			llmResponse = &resp
			if len(resp.Choices[0].Message.ToolCalls) > 0 {
				return fsm.FireCtx(ctx, triggerLLMRequestedTools)
			}
			return fsm.FireCtx(ctx, triggerLLMRespondedWithContent)
		}).
		Permit(triggerLLMRequestedTools, stateExecutingTools).
		Permit(triggerLLMRespondedWithContent, stateDone).
		Permit(triggerErrorOccurred, stateError)

	// State: ExecutingTools
	// Action: Execute requested tools via MCP and feed results back.
	fsm.Configure(stateExecutingTools).
		OnEntry(func(ctx context.Context, _ ...any) error {
			llmMessage := llmResponse.Choices[0].Message
			messages = append(messages, llmMessage)
			for _, call := range llmMessage.ToolCalls {
				messages = append(messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    a.callTool(ctx, call),
					ToolCallID: call.ID,
					Name:       call.Function.Name,
				})
			}
			return fsm.FireCtx(ctx, triggerToolsExecutionCompleted)
		}).
		Permit(triggerToolsExecutionCompleted, stateReadyToCallLLM).
		Permit(triggerErrorOccurred, stateError)

	fsm.Configure(stateDone).
		OnEntry(func(context.Context, ...any) error {
			finalContent = llmResponse.Choices[0].Message.Content
			return nil
		})

	fsm.Configure(stateError).
		OnEntry(func(context.Context, ...any) error {
			if lastError == nil {
				lastError = errors.New("agent reached error state without a specific error")
			}
			return nil
		})

	if err := fsm.FireCtx(ctx, triggerProcessInput); err != nil {
		return "", fmt.Errorf("agent loop: %w", err)
	}

	state, err := fsm.State(ctx)
	if err != nil {
		return "", fmt.Errorf("agent state: %w", err)
	}
	switch state {
	case stateDone:
		if strings.TrimSpace(finalContent) == "" {
			return "", errors.New("LLM returned empty content")
		}
		return finalContent, nil
	case stateError:
		return "", lastError
	default:
		return "", fmt.Errorf("agent ended in unexpected state: %v", state)
	}
}

// callTool executes one tool call and renders its result as text for the LLM.
func (a *Agent) callTool(ctx context.Context, call openai.ToolCall) string {
	owner, ok := a.toolOwners[call.Function.Name]
	if !ok {
		return "Error: tool " + call.Function.Name + " is not available"
	}
	var args map[string]any
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			logger.L.Error("Failed to unmarshal tool arguments", "function", call.Function.Name, "error", err)
			return "Error: Could not parse arguments for tool " + call.Function.Name
		}
	}

	result, err := owner.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: call.Function.Name, Arguments: args},
	})
	if err != nil {
		logger.L.Warn("MCP CallTool failed", "tool", call.Function.Name, "error", err)
		return "Error: tool " + call.Function.Name + " failed: " + err.Error()
	}
	for _, item := range result.Content {
		if text, ok := item.(mcp.TextContent); ok {
			return text.Text
		}
	}
	if result.IsError {
		return "Tool execution resulted in an error without specific text."
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "Tool executed successfully, but result could not be formatted."
	}
	return string(data)
}
