package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"paperwright/pkg/config"
	"paperwright/pkg/logx"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"

	// Refinement is capped at two generate/review cycles regardless of the
	// -iterations flag.
	maxRefinementAttempts = 2

	// Overall deadline for the generate/review loop.
	schematicTimeout = 5 * time.Minute
)

//nolint:gochecknoglobals // CLI-scoped logger
var logger = logx.NewLogger("schematic")

// docTypeThresholds maps document types to review score thresholds.
// Stricter venues demand cleaner figures.
//
//nolint:gochecknoglobals // Static threshold table
var docTypeThresholds = map[string]float64{
	"journal":      8.5,
	"conference":   8.0,
	"thesis":       8.0,
	"grant":        8.0,
	"preprint":     7.5,
	"report":       7.5,
	"poster":       7.0,
	"presentation": 6.5,
	"default":      7.5,
}

//nolint:gochecknoglobals // Shared replacer for SVG text nodes
var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

type options struct {
	prompt      string
	output      string
	docType     string
	model       string
	reviewModel string
	apiKey      string
	iterations  int
	verbose     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.prompt, "prompt", "", "Description of the diagram to generate (positional arguments are joined when empty)")
	flag.StringVar(&opts.output, "o", "", "Output file path (required)")
	flag.StringVar(&opts.output, "output", "", "Output file path (alias for -o)")
	flag.StringVar(&opts.docType, "doc-type", "default", "Document type for the quality threshold: journal, conference, thesis, grant, preprint, report, poster, presentation or default")
	flag.StringVar(&opts.model, "model", "", "Generation model (default "+config.DefaultSchematicModel+")")
	flag.StringVar(&opts.reviewModel, "review-model", "", "Review model (default "+config.DefaultSchematicReviewModel+")")
	flag.StringVar(&opts.apiKey, "api-key", "", "OpenRouter API key (default: "+config.EnvOpenRouterAPIKey+" from secrets or environment)")
	flag.IntVar(&opts.iterations, "iterations", 0, "Maximum refinement attempts (default 2, max 2)")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose output")
	flag.Parse()

	if opts.verbose {
		logx.SetDebugConfig(true, false, "")
	}

	// Run main logic and get exit code so defers execute before os.Exit.
	os.Exit(run(&opts))
}

func run(opts *options) int {
	if opts.prompt == "" {
		opts.prompt = strings.TrimSpace(strings.Join(flag.Args(), " "))
	}
	if opts.prompt == "" || opts.output == "" {
		fmt.Fprintln(os.Stderr, "Usage: schematic -prompt \"<description>\" -o <output path> [-doc-type <type>]")
		flag.Usage()
		return 2
	}

	threshold, ok := docTypeThresholds[opts.docType]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown doc-type %q: must be journal, conference, thesis, grant, preprint, report, poster, presentation or default\n", opts.docType)
		return 2
	}
	applyDefaults(opts)

	apiKey := opts.apiKey
	if apiKey == "" {
		apiKey, _ = config.GetSecret(config.EnvOpenRouterAPIKey)
	}
	if apiKey == "" {
		fmt.Printf("Warning: %s not set. Generating a placeholder image.\n", config.EnvOpenRouterAPIKey)
		return writePlaceholder(opts.output, opts.prompt, config.EnvOpenRouterAPIKey+" not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, schematicTimeout)
	defer cancel()

	out, err := generateWithReview(ctx, opts, apiKey, threshold)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "Interrupted")
			return 1
		}
		logger.Warn("⚠️  Generation failed (%v), falling back to a placeholder", err)
		return writePlaceholder(opts.output, opts.prompt, "generation failed")
	}

	fmt.Printf("Schematic saved to: %s\n", out)
	return 0
}

// applyDefaults fills unset options from the environment, then from the
// built-in defaults. The paperwright CLI exports the project's schematic
// model choices into the environment before the writer agent runs.
func applyDefaults(opts *options) {
	if opts.model == "" {
		opts.model = os.Getenv(config.EnvSchematicModel)
	}
	if opts.model == "" {
		opts.model = config.DefaultSchematicModel
	}
	if opts.reviewModel == "" {
		opts.reviewModel = os.Getenv(config.EnvSchematicReviewModel)
	}
	if opts.reviewModel == "" {
		opts.reviewModel = config.DefaultSchematicReviewModel
	}
	if opts.iterations <= 0 {
		opts.iterations = config.DefaultSchematicMaxAttempts
	}
	if opts.iterations > maxRefinementAttempts {
		opts.iterations = maxRefinementAttempts
	}
}

// generateWithReview runs up to opts.iterations generate/review cycles and
// writes the first accepted image to the output path.
func generateWithReview(ctx context.Context, opts *options, apiKey string, threshold float64) (string, error) {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(openRouterBaseURL),
	)

	// Review is optional: without a Google API key the first image wins.
	reviewKey, _ := config.GetSecret(config.EnvGoogleAPIKey)

	prompt := buildImagePrompt(opts.prompt)
	var feedback string

	for attempt := 1; attempt <= opts.iterations; attempt++ {
		logger.Info("📐 Generating schematic (model %s, attempt %d/%d)", opts.model, attempt, opts.iterations)

		img, err := generateImage(ctx, &client, opts.model, withFeedback(prompt, feedback))
		if err != nil {
			return "", err
		}
		logger.Debug("received %d image bytes", len(img))

		// On the last attempt there is no retry budget left, so the review
		// score could not change the outcome.
		if reviewKey == "" || attempt == opts.iterations {
			return writeImage(opts.output, img)
		}

		score, notes, err := reviewImage(ctx, reviewKey, opts.reviewModel, opts.prompt, img)
		if err != nil {
			logger.Warn("⚠️  Review failed (%v), accepting the image without a score", err)
			return writeImage(opts.output, img)
		}

		logger.Info("🔍 Review score %.1f/10 (threshold %.1f for %s)", score, threshold, opts.docType)
		if score >= threshold {
			return writeImage(opts.output, img)
		}
		logger.Info("🔄 Below threshold, regenerating with reviewer feedback")
		feedback = notes
	}

	return "", fmt.Errorf("no image accepted after %d attempt(s)", opts.iterations)
}

// buildImagePrompt frames the description as a figure-generation task.
func buildImagePrompt(description string) string {
	return "Generate a publication-quality scientific schematic: " + description +
		". Use clean lines, a white background and legible labels. No watermark."
}

func withFeedback(prompt, feedback string) string {
	if feedback == "" {
		return prompt
	}
	return prompt + "\n\nA reviewer scored the previous attempt below the quality bar. Address this feedback: " + feedback
}

// generateImage requests a single image through the OpenRouter chat
// completions endpoint. Image-capable models attach results as base64 data
// URLs in a message field outside the standard response schema.
func generateImage(ctx context.Context, client *openai.Client, model, prompt string) ([]byte, error) {
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}, option.WithJSONSet("modalities", []string{"image", "text"}))
	if err != nil {
		return nil, fmt.Errorf("image generation request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("image generation returned no choices")
	}

	field, ok := resp.Choices[0].Message.JSON.ExtraFields["images"]
	if !ok {
		return nil, fmt.Errorf("model %s returned no images", model)
	}

	var images []struct {
		Type     string `json:"type"`
		ImageURL struct {
			URL string `json:"url"`
		} `json:"image_url"`
	}
	if err := json.Unmarshal([]byte(field.Raw()), &images); err != nil {
		return nil, fmt.Errorf("cannot parse images field: %w", err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("model %s returned an empty images list", model)
	}

	return decodeDataURL(images[0].ImageURL.URL)
}

// decodeDataURL strips a data:<mime>;base64, prefix and decodes the payload.
func decodeDataURL(url string) ([]byte, error) {
	idx := strings.IndexByte(url, ',')
	if idx < 0 || !strings.HasPrefix(url, "data:") {
		return nil, fmt.Errorf("image URL is not a base64 data URL")
	}
	data, err := base64.StdEncoding.DecodeString(url[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("cannot decode image payload: %w", err)
	}
	return data, nil
}

// reviewImage scores the image against the original request. The reviewer is
// instructed to answer with bare JSON; fenced replies are tolerated.
func reviewImage(ctx context.Context, apiKey, model, description string, img []byte) (float64, string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return 0, "", fmt.Errorf("cannot create review client: %w", err)
	}

	instruction := fmt.Sprintf(`You are reviewing a scientific schematic generated for this request:

%s

Score the image from 0 to 10 for accuracy, clarity, label legibility and
publication readiness. Respond with exactly one JSON object and nothing else:
{"score": <number>, "feedback": "<one or two sentences on what to improve>"}`, description)

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: img}},
			{Text: instruction},
		},
	}}

	temperature := float32(0.1)
	result, err := client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: 512,
	})
	if err != nil {
		return 0, "", fmt.Errorf("review call failed: %w", err)
	}

	return parseReview(result.Text())
}

// parseReview extracts the score and feedback from the reviewer's reply.
func parseReview(text string) (float64, string, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	cleaned = strings.TrimSpace(cleaned)

	var review struct {
		Score    float64 `json:"score"`
		Feedback string  `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(cleaned), &review); err != nil {
		return 0, "", fmt.Errorf("reviewer did not return the expected JSON: %w", err)
	}
	if review.Score < 0 || review.Score > 10 {
		return 0, "", fmt.Errorf("reviewer score %.1f is out of range", review.Score)
	}
	return review.Score, review.Feedback, nil
}

// writeImage writes the decoded image to the requested output path.
func writeImage(outputPath string, data []byte) (string, error) {
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("cannot create output directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return "", fmt.Errorf("cannot write image: %w", err)
	}
	return outputPath, nil
}

// writePlaceholder writes a labeled SVG placeholder so document compilation
// can proceed without a generated image. The requested path is kept but its
// extension is forced to .svg to match the contents.
func writePlaceholder(outputPath, prompt, reason string) int {
	svgPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".svg"

	display := prompt
	if runes := []rune(display); len(runes) > 100 {
		display = string(runes[:100]) + "..."
	}

	svg := fmt.Sprintf(`<svg width="800" height="600" xmlns="http://www.w3.org/2000/svg" font-family="sans-serif">
<rect width="100%%" height="100%%" fill="#f0f0f0" />
<g text-anchor="middle">
    <text x="50%%" y="45%%" font-size="24" fill="#888">Schematic Placeholder</text>
    <text x="50%%" y="55%%" font-size="16" fill="#aaa">Prompt: "%s"</text>
    <text x="50%%" y="65%%" font-size="12" fill="#ccc">(%s)</text>
</g>
</svg>`, xmlEscaper.Replace(display), xmlEscaper.Replace(reason))

	if dir := filepath.Dir(svgPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating placeholder SVG: %v\n", err)
			return 1
		}
	}
	if err := os.WriteFile(svgPath, []byte(svg), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating placeholder SVG: %v\n", err)
		return 1
	}

	fmt.Printf("Placeholder schematic saved to: %s\n", svgPath)
	return 0
}
