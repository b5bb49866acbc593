package twiml

import (
	"strings"
	"testing"
)

func TestRenderGreetingWithRecord(t *testing.T) {
	resp := (&Response{}).Add(
		Say{Voice: "alice", Language: "en-US", Text: "Hello, how can I help?"},
		Record{Action: "/voice/recording", Method: "POST", MaxLength: 30, Timeout: 5},
	)
	out, err := resp.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	s := string(out)

	if !strings.HasPrefix(s, "<?xml") {
		t.Fatalf("missing XML declaration: %q", s)
	}
	for _, want := range []string{
		"<Response>",
		`<Say voice="alice" language="en-US">Hello, how can I help?</Say>`,
		`action="/voice/recording"`,
		`maxLength="30"`,
		"</Response>",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}

	sayIdx := strings.Index(s, "<Say")
	recIdx := strings.Index(s, "<Record")
	if sayIdx < 0 || recIdx < 0 || sayIdx > recIdx {
		t.Fatalf("verbs out of order:\n%s", s)
	}
}

func TestRenderHangup(t *testing.T) {
	out, err := (&Response{}).Add(
		Say{Text: "Goodbye."},
		Hangup{},
	).Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(out), "<Hangup></Hangup>") {
		t.Fatalf("missing hangup verb:\n%s", out)
	}
}

func TestRenderEscapesText(t *testing.T) {
	out, err := (&Response{}).Add(Say{Text: `press 1 & say "yes" <now>`}).Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	s := string(out)
	if strings.Contains(s, "<now>") {
		t.Fatalf("text not escaped:\n%s", s)
	}
	if !strings.Contains(s, "&amp;") || !strings.Contains(s, "&lt;now&gt;") {
		t.Fatalf("expected escaped entities:\n%s", s)
	}
}

func TestRenderEmptyResponse(t *testing.T) {
	out, err := (&Response{}).Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(out), "<Response></Response>") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
