package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/ncecere/voice_gateway/internal/pipeline"
	"github.com/ncecere/voice_gateway/internal/prompts"
)

type fakeInvoker struct {
	input    *bedrockruntime.InvokeModelInput
	response []byte
	err      error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.response}, nil
}

func testBuilder() *prompts.Builder {
	return prompts.NewBuilder(prompts.Options{
		CompanyName:    "Raqmii",
		CompanyProfile: "Raqmii provides digital services.",
	})
}

func TestRespondExtractsFirstTextSegment(t *testing.T) {
	invoker := &fakeInvoker{
		response: []byte(`{"content":[{"type":"text","text":"Hi there!"}],"usage":{"input_tokens":12,"output_tokens":4}}`),
	}
	adapter := newWithInvoker(invoker, testBuilder(), Options{ModelID: "anthropic.claude-3-sonnet-20240229-v1:0"})

	reply, err := adapter.Respond(context.Background(), "hello")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if reply != "Hi there!" {
		t.Fatalf("reply = %q", reply)
	}

	var req anthropicRequest
	if err := json.Unmarshal(invoker.input.Body, &req); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if req.AnthropicVersion != "bedrock-2023-05-31" {
		t.Fatalf("unexpected anthropic version %q", req.AnthropicVersion)
	}
	if !strings.Contains(req.System, "Raqmii") {
		t.Fatal("system prompt missing company context")
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Fatalf("unexpected messages %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[0].Content[0].Text, "Customer Question: hello") {
		t.Fatal("user prompt missing wrapped question")
	}
	if req.MaxTokens != 1000 {
		t.Fatalf("unexpected max tokens %d", req.MaxTokens)
	}
}

func TestRespondMissingContent(t *testing.T) {
	invoker := &fakeInvoker{response: []byte(`{"content":[]}`)}
	adapter := newWithInvoker(invoker, testBuilder(), Options{ModelID: "m"})

	_, err := adapter.Respond(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error for missing content")
	}
	if pipeline.StepOf(err) != pipeline.StepGeneration {
		t.Fatalf("unexpected step %s", pipeline.StepOf(err))
	}
}

func TestRespondMalformedBody(t *testing.T) {
	invoker := &fakeInvoker{response: []byte(`not json`)}
	adapter := newWithInvoker(invoker, testBuilder(), Options{ModelID: "m"})

	if _, err := adapter.Respond(context.Background(), "hello"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRespondInvokeFailure(t *testing.T) {
	cause := errors.New("throttled")
	invoker := &fakeInvoker{err: cause}
	adapter := newWithInvoker(invoker, testBuilder(), Options{ModelID: "m"})

	_, err := adapter.Respond(context.Background(), "hello")
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if pipeline.StepOf(err) != pipeline.StepGeneration {
		t.Fatalf("unexpected step %s", pipeline.StepOf(err))
	}
}

func TestFirstTextSkipsNonText(t *testing.T) {
	resp := anthropicResponse{Content: []anthropicContent{
		{Type: "tool_use", Text: ""},
		{Type: "text", Text: "  answer  "},
	}}
	if got := resp.FirstText(); got != "answer" {
		t.Fatalf("FirstText = %q", got)
	}
}
