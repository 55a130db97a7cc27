package polly

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	awspolly "github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/ncecere/voice_gateway/internal/config"
	"github.com/ncecere/voice_gateway/internal/pipeline"
	"github.com/ncecere/voice_gateway/internal/storage/blob"
)

type fakePolly struct {
	input *awspolly.SynthesizeSpeechInput
	audio string
	err   error
}

func (f *fakePolly) SynthesizeSpeech(_ context.Context, params *awspolly.SynthesizeSpeechInput, _ ...func(*awspolly.Options)) (*awspolly.SynthesizeSpeechOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &awspolly.SynthesizeSpeechOutput{
		AudioStream: io.NopCloser(strings.NewReader(f.audio)),
	}, nil
}

func testStore(t *testing.T) blob.Store {
	t.Helper()
	ctx := context.Background()
	store, err := blob.New(ctx, config.StorageConfig{Driver: "local", LocalDir: t.TempDir()}, config.AWSConfig{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestChooseVoicePureFunctionOfText(t *testing.T) {
	adapter := newWithAPI(&fakePolly{}, nil, Options{})

	english := adapter.chooseVoice("hello world")
	if english.Voice != types.VoiceId("Joanna") || english.Language != types.LanguageCodeEnUs {
		t.Fatalf("english choice = %+v", english)
	}

	arabic := adapter.chooseVoice("مرحبا بالعالم")
	if arabic.Voice != types.VoiceId("Zayd") || arabic.Language != types.LanguageCodeArAe {
		t.Fatalf("arabic choice = %+v", arabic)
	}

	// A single Arabic rune flips the whole text to the Arabic voice.
	mixed := adapter.chooseVoice("hello م world")
	if mixed.Voice != types.VoiceId("Zayd") {
		t.Fatalf("mixed choice = %+v", mixed)
	}

	for i := 0; i < 3; i++ {
		if got := adapter.chooseVoice("hello world"); got != english {
			t.Fatalf("choice changed between calls: %+v", got)
		}
	}
}

func TestSynthesizeUploadsTimestampedKey(t *testing.T) {
	fake := &fakePolly{audio: "mp3-bytes"}
	adapter := newWithAPI(fake, testStore(t), Options{})
	adapter.now = func() time.Time { return time.Unix(1700000000, 0) }

	url, err := adapter.Synthesize(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if !strings.HasSuffix(url, "response_1700000000.mp3") {
		t.Fatalf("url = %q, want timestamped mp3 key", url)
	}
	if fake.input == nil || *fake.input.Text != "hello world" {
		t.Fatalf("unexpected polly input %+v", fake.input)
	}
	if fake.input.Engine != types.EngineNeural {
		t.Fatalf("engine = %q", fake.input.Engine)
	}
}

func TestSynthesizeFailureIsSynthesisStep(t *testing.T) {
	fake := &fakePolly{err: errors.New("voice unavailable")}
	adapter := newWithAPI(fake, testStore(t), Options{})

	_, err := adapter.Synthesize(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected synthesis error")
	}
	if pipeline.StepOf(err) != pipeline.StepSynthesis {
		t.Fatalf("unexpected step %s", pipeline.StepOf(err))
	}
}

type failingStore struct {
	blob.Store
}

func (failingStore) Put(context.Context, string, io.Reader, blob.PutOptions) (blob.ObjectInfo, error) {
	return blob.ObjectInfo{}, errors.New("bucket gone")
}

func TestSynthesizeUploadFailureIsUploadStep(t *testing.T) {
	adapter := newWithAPI(&fakePolly{audio: "x"}, failingStore{}, Options{})

	_, err := adapter.Synthesize(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected upload error")
	}
	if pipeline.StepOf(err) != pipeline.StepUpload {
		t.Fatalf("unexpected step %s", pipeline.StepOf(err))
	}
}
