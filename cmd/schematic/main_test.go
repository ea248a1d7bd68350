package main

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"paperwright/pkg/config"
)

func TestParseReview(t *testing.T) {
	score, feedback, err := parseReview(`{"score": 8.5, "feedback": "Sharpen the axis labels."}`)
	if err != nil {
		t.Fatalf("parseReview: %v", err)
	}
	if score != 8.5 {
		t.Errorf("score = %v, want 8.5", score)
	}
	if feedback != "Sharpen the axis labels." {
		t.Errorf("feedback = %q", feedback)
	}
}

func TestParseReviewFenced(t *testing.T) {
	replies := []string{
		"```json\n{\"score\": 7, \"feedback\": \"ok\"}\n```",
		"```\n{\"score\": 7, \"feedback\": \"ok\"}\n```",
		"  {\"score\": 7, \"feedback\": \"ok\"}  ",
	}
	for _, reply := range replies {
		score, _, err := parseReview(reply)
		if err != nil {
			t.Errorf("parseReview(%q): %v", reply, err)
			continue
		}
		if score != 7 {
			t.Errorf("parseReview(%q) score = %v, want 7", reply, score)
		}
	}
}

func TestParseReviewRejectsBadInput(t *testing.T) {
	if _, _, err := parseReview("the image looks fine to me"); err == nil {
		t.Error("expected error for a prose reply")
	}
	if _, _, err := parseReview(`{"score": 42, "feedback": "x"}`); err == nil {
		t.Error("expected error for an out-of-range score")
	}
}

func TestDecodeDataURL(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	data, err := decodeDataURL(url)
	if err != nil {
		t.Fatalf("decodeDataURL: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("decoded %v, want %v", data, payload)
	}

	if _, err := decodeDataURL("https://example.com/image.png"); err == nil {
		t.Error("expected error for a non-data URL")
	}
	if _, err := decodeDataURL("data:image/png;base64,!!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestWritePlaceholder(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "figures", "flowchart.png")

	if code := writePlaceholder(out, "CONSORT participant flow", "OPENROUTER_API_KEY not set"); code != 0 {
		t.Fatalf("writePlaceholder exit code = %d", code)
	}

	svgPath := filepath.Join(dir, "figures", "flowchart.svg")
	data, err := os.ReadFile(svgPath)
	if err != nil {
		t.Fatalf("placeholder not written with forced .svg extension: %v", err)
	}
	svg := string(data)
	for _, want := range []string{
		"Schematic Placeholder",
		`Prompt: "CONSORT participant flow"`,
		"(OPENROUTER_API_KEY not set)",
	} {
		if !strings.Contains(svg, want) {
			t.Errorf("placeholder missing %q", want)
		}
	}
}

func TestWritePlaceholderTruncatesPrompt(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("x", 150)

	if code := writePlaceholder(filepath.Join(dir, "fig.svg"), long, "generation failed"); code != 0 {
		t.Fatal("writePlaceholder failed")
	}

	data, err := os.ReadFile(filepath.Join(dir, "fig.svg"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), strings.Repeat("x", 100)+"...") {
		t.Error("long prompt not truncated to 100 characters")
	}
	if strings.Contains(string(data), strings.Repeat("x", 101)) {
		t.Error("placeholder contains more than 100 prompt characters")
	}
}

func TestWritePlaceholderEscapesMarkup(t *testing.T) {
	dir := t.TempDir()

	if code := writePlaceholder(filepath.Join(dir, "fig.svg"), `diagram of <A> & "B"`, "generation failed"); code != 0 {
		t.Fatal("writePlaceholder failed")
	}

	data, err := os.ReadFile(filepath.Join(dir, "fig.svg"))
	if err != nil {
		t.Fatal(err)
	}
	svg := string(data)
	if !strings.Contains(svg, "&lt;A&gt; &amp; &quot;B&quot;") {
		t.Errorf("prompt not XML-escaped: %s", svg)
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Setenv(config.EnvSchematicModel, "")
	t.Setenv(config.EnvSchematicReviewModel, "")

	opts := options{iterations: 5}
	applyDefaults(&opts)
	if opts.model != config.DefaultSchematicModel {
		t.Errorf("model = %q, want default", opts.model)
	}
	if opts.reviewModel != config.DefaultSchematicReviewModel {
		t.Errorf("reviewModel = %q, want default", opts.reviewModel)
	}
	if opts.iterations != maxRefinementAttempts {
		t.Errorf("iterations = %d, want cap %d", opts.iterations, maxRefinementAttempts)
	}

	opts = options{}
	applyDefaults(&opts)
	if opts.iterations != config.DefaultSchematicMaxAttempts {
		t.Errorf("iterations = %d, want %d", opts.iterations, config.DefaultSchematicMaxAttempts)
	}
}

func TestApplyDefaultsHonorsEnvironment(t *testing.T) {
	t.Setenv(config.EnvSchematicModel, "openai/gpt-image-1")
	t.Setenv(config.EnvSchematicReviewModel, "gemini-2.5-pro")

	opts := options{}
	applyDefaults(&opts)
	if opts.model != "openai/gpt-image-1" {
		t.Errorf("model = %q, want environment override", opts.model)
	}
	if opts.reviewModel != "gemini-2.5-pro" {
		t.Errorf("reviewModel = %q, want environment override", opts.reviewModel)
	}

	opts = options{model: "explicit-model"}
	applyDefaults(&opts)
	if opts.model != "explicit-model" {
		t.Errorf("model = %q, explicit flag must win over environment", opts.model)
	}
}

func TestWithFeedback(t *testing.T) {
	if got := withFeedback("draw a cell", ""); got != "draw a cell" {
		t.Errorf("withFeedback without feedback changed the prompt: %q", got)
	}
	got := withFeedback("draw a cell", "labels are unreadable")
	if !strings.Contains(got, "draw a cell") || !strings.Contains(got, "labels are unreadable") {
		t.Errorf("withFeedback dropped content: %q", got)
	}
}
