package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// MCPProvider resolves tariff rates by executing an external command
// (typically an MCP client wrapper) that prints JSON like:
// {"rates":{"Unknown":0.28,"CL2":0.19}}
type MCPProvider struct {
	command string
	args    []string
}

type mcpRatesOutput struct {
	Rates map[string]float64 `json:"rates"`
}

func NewMCPProvider(command string, args []string) *MCPProvider {
	return &MCPProvider{command: strings.TrimSpace(command), args: args}
}

func (p *MCPProvider) ChannelRates(ctx context.Context) (map[string]float64, error) {
	if p.command == "" {
		return nil, fmt.Errorf("mcp pricing command is empty")
	}

	cmd := exec.CommandContext(ctx, p.command, p.args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("run mcp pricing command: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}

	raw := strings.TrimSpace(string(out))
	if raw == "" {
		return nil, fmt.Errorf("mcp pricing command produced empty output")
	}

	parsed, err := parseMCPRatesOutput(raw)
	if err != nil {
		return nil, err
	}
	for channel, rate := range parsed.Rates {
		if rate < 0 {
			return nil, fmt.Errorf("mcp pricing returned negative rate for %s: %.6f", channel, rate)
		}
	}

	return parsed.Rates, nil
}

func (p *MCPProvider) Source() string {
	return "mcp"
}

func parseMCPRatesOutput(raw string) (mcpRatesOutput, error) {
	var parsed mcpRatesOutput
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil && parsed.Rates != nil {
		return parsed, nil
	}

	// Allow wrappers that log before final JSON by parsing the last non-empty line.
	lines := strings.Split(raw, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if err := json.Unmarshal([]byte(line), &parsed); err == nil && parsed.Rates != nil {
			return parsed, nil
		}
	}

	return mcpRatesOutput{}, fmt.Errorf("failed to parse mcp pricing output as JSON: %s", raw)
}
