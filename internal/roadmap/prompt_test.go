package roadmap

import (
	"strings"
	"testing"
)

func TestBuildPrompt_QuotesQuery(t *testing.T) {
	p := BuildPrompt(`learn "Go" fast`)

	if !strings.Contains(p.User, "\n\"learn \"Go\" fast\"\n") {
		t.Errorf("user prompt does not quote the query: %q", p.User)
	}
	if !strings.Contains(p.User, "respond ONLY with the JSON object") {
		t.Error("user prompt missing JSON-only reminder")
	}
}

func TestBuildPrompt_KeepsNonASCIIQuery(t *testing.T) {
	p := BuildPrompt("学习 Go")

	if !strings.Contains(p.User, `"学习 Go"`) {
		t.Errorf("user prompt escaped the query: %q", p.User)
	}
}

func TestBuildPrompt_SystemDescribesPayload(t *testing.T) {
	p := BuildPrompt("Go")

	for _, field := range []string{`"title"`, `"content"`, `"visual_data"`, `"phases"`, `"milestones"`, `"total_duration"`} {
		if !strings.Contains(p.System, field) {
			t.Errorf("system prompt missing field %s", field)
		}
	}
}

func TestBuildPrompt_PayloadExampleDecodes(t *testing.T) {
	start := strings.Index(systemPrompt, "{")
	end := strings.LastIndex(systemPrompt, "}")
	example := systemPrompt[start : end+1]

	got := Normalize(example, "q")
	if got.Outcome != Structured {
		t.Fatalf("example payload in prompt does not decode: %v", got.DecodeErr)
	}
	if got.VisualData == nil || len(got.VisualData.Phases) != 1 {
		t.Errorf("VisualData = %+v, want one example phase", got.VisualData)
	}
}
