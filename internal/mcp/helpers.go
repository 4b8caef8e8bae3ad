package mcpserver

import (
	"strings"

	"pipecheck/internal/service"
)

// runPayload is the JSON shape every check tool returns.
type runPayload struct {
	RunID    string `json:"runId"`
	Check    string `json:"check"`
	Outcome  string `json:"outcome"`
	ExitCode int    `json:"exitCode"`
	Message  string `json:"message"`
	Report   string `json:"report"`
	Result   any    `json:"result,omitempty"`
}

func payload(rr *service.RunResult) runPayload {
	var b strings.Builder
	rr.Report(&b)
	p := runPayload{
		RunID:    rr.Run.ID,
		Check:    rr.Run.Check,
		Outcome:  string(rr.Outcome()),
		ExitCode: rr.Outcome().ExitCode(),
		Message:  rr.Run.Message,
		Report:   b.String(),
	}
	if rr.Result != nil {
		p.Result = rr.Result
	}
	return p
}

// intArg reads a numeric tool argument; JSON numbers arrive as float64.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}
