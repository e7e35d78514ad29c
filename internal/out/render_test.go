package out

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/config"
	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/model"
)

func TestRenderJSONSelectResultsOnly(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: true,
		Data:    []map[string]any{{"a": 1, "b": 2}},
		Meta:    model.EnvelopeMeta{Timestamp: time.Now()},
	}
	settings := config.Settings{OutputMode: "json", SelectFields: []string{"a"}, ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if len(out) != 1 || out[0]["a"].(float64) != 1 {
		t.Fatalf("unexpected output: %s", buf.String())
	}
	if _, ok := out[0]["b"]; ok {
		t.Fatalf("field projection failed: %s", buf.String())
	}
}

func TestRenderSelectDottedPath(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: true,
		Data: model.QueryResult{
			Module:     "bank",
			Subcommand: "balance",
			Result:     map[string]any{"balance": map[string]any{"denom": "umfx", "amount": "42"}},
		},
	}
	settings := config.Settings{OutputMode: "json", SelectFields: []string{"module", "result.balance.amount", "result.missing"}, ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if out["module"] != "bank" || out["result.balance.amount"] != "42" {
		t.Fatalf("unexpected projection %v", out)
	}
	if _, ok := out["result.missing"]; ok {
		t.Fatalf("missing path should be omitted: %v", out)
	}
}

func TestRenderPlain(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: true,
		Data:    []map[string]any{{"name": "bank", "description": "balances", "extra": map[string]any{"x": 1}}},
		Meta:    model.EnvelopeMeta{Timestamp: time.Now()},
	}
	settings := config.Settings{OutputMode: "plain", ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "name=bank") || !strings.Contains(buf.String(), "extra.x=1") {
		t.Fatalf("unexpected plain output: %s", buf.String())
	}
}

func TestRenderErrorEnvelope(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: false,
		Error: &model.ErrorBody{
			Error:    true,
			Tool:     "query",
			Code:     "UNKNOWN_MODULE",
			ExitCode: 13,
			Message:  "unknown query module: bnak",
			Details:  map[string]any{"suggestions": []string{"bank"}},
		},
	}
	var buf bytes.Buffer
	if err := Render(&buf, env, config.Settings{OutputMode: "json"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	errBody := out["error"].(map[string]any)
	if errBody["error"] != true || errBody["code"] != "UNKNOWN_MODULE" || errBody["exitCode"].(float64) != 13 {
		t.Fatalf("unexpected error body %v", errBody)
	}
	if _, ok := out["data"]; ok {
		t.Fatalf("failure envelope should omit data: %s", buf.String())
	}
}

func TestRenderSelectFansOutOverLists(t *testing.T) {
	env := model.Envelope{
		Success: true,
		Data: model.QueryResult{
			Module:     "staking",
			Subcommand: "validators",
			Result: map[string]any{"validators": []any{
				map[string]any{"operator_address": "manifestvaloper1a", "tokens": "10"},
				map[string]any{"operator_address": "manifestvaloper1b", "tokens": "20"},
			}},
		},
	}
	settings := config.Settings{OutputMode: "json", SelectFields: []string{"result.validators.operator_address", "result.validators.1.tokens", "result.validators.7.tokens"}, ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	addrs, _ := out["result.validators.operator_address"].([]any)
	if len(addrs) != 2 || addrs[1] != "manifestvaloper1b" {
		t.Fatalf("unexpected fan-out projection %v", out)
	}
	if out["result.validators.1.tokens"] != "20" {
		t.Fatalf("unexpected indexed projection %v", out)
	}
	if _, ok := out["result.validators.7.tokens"]; ok {
		t.Fatalf("out-of-range index should be omitted: %v", out)
	}
}

func TestRenderPlainSplitsSoleResultList(t *testing.T) {
	env := model.Envelope{
		Success: true,
		Data: model.QueryResult{
			Module:     "bank",
			Subcommand: "balances",
			Result: map[string]any{
				"balances":   []any{map[string]any{"denom": "umfx", "amount": "5"}, map[string]any{"denom": "uatom", "amount": "7"}},
				"pagination": map[string]any{"next_key": nil},
			},
		},
	}
	var buf bytes.Buffer
	if err := Render(&buf, env, config.Settings{OutputMode: "plain", ResultsOnly: true}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || lines[0] != "amount=5 denom=umfx" || lines[1] != "amount=7 denom=uatom" {
		t.Fatalf("unexpected plain lines: %q", lines)
	}
}

func TestRenderPlainErrorHeader(t *testing.T) {
	env := model.Envelope{
		Success: false,
		Error:   &model.ErrorBody{Error: true, Code: "QUERY_FAILED", Message: "boom"},
		Meta:    model.EnvelopeMeta{Command: "query bank params", ChainID: "manifest-1"},
	}
	var buf bytes.Buffer
	if err := Render(&buf, env, config.Settings{OutputMode: "plain"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	got := strings.TrimSpace(buf.String())
	for _, want := range []string{"code=QUERY_FAILED", "message=boom", "chain_id=manifest-1", "success=false"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}
