// Package polly synthesizes speech with Amazon Polly and stores the
// resulting audio for public playback.
package polly

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awspolly "github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/rs/zerolog"

	"github.com/ncecere/voice_gateway/internal/config"
	"github.com/ncecere/voice_gateway/internal/langid"
	"github.com/ncecere/voice_gateway/internal/observability/logging"
	"github.com/ncecere/voice_gateway/internal/pipeline"
	"github.com/ncecere/voice_gateway/internal/storage/blob"
)

// api covers the single Polly call the adapter makes.
type api interface {
	SynthesizeSpeech(ctx context.Context, params *awspolly.SynthesizeSpeechInput, optFns ...func(*awspolly.Options)) (*awspolly.SynthesizeSpeechOutput, error)
}

// Options select voices for each detected script.
type Options struct {
	EnglishVoice string
	ArabicVoice  string
	Engine       string
	OutputFormat string
}

// Adapter synthesizes speech and uploads it to blob storage.
type Adapter struct {
	client api
	store  blob.Store
	opts   Options
	log    zerolog.Logger
	now    func() time.Time
}

// voiceChoice is the (voice, language, engine) triple for one synthesis call.
type voiceChoice struct {
	Voice    types.VoiceId
	Language types.LanguageCode
	Engine   types.Engine
}

// New creates a Polly adapter from AWS configuration.
func New(ctx context.Context, awsConf config.AWSConfig, store blob.Store, opts Options) (*Adapter, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(awsConf.Region),
	}
	if awsConf.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(awsConf.Profile))
	}
	if awsConf.AccessKeyID != "" && awsConf.SecretAccessKey != "" {
		provider := credentials.NewStaticCredentialsProvider(awsConf.AccessKeyID, awsConf.SecretAccessKey, awsConf.SessionToken)
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(provider))
	}
	base, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newWithAPI(awspolly.NewFromConfig(base), store, opts), nil
}

func newWithAPI(client api, store blob.Store, opts Options) *Adapter {
	if opts.EnglishVoice == "" {
		opts.EnglishVoice = "Joanna"
	}
	if opts.ArabicVoice == "" {
		opts.ArabicVoice = "Zayd"
	}
	if opts.Engine == "" {
		opts.Engine = "neural"
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = "mp3"
	}
	return &Adapter{
		client: client,
		store:  store,
		opts:   opts,
		log:    logging.WithComponent("polly"),
		now:    time.Now,
	}
}

// chooseVoice picks the voice triple for text. Pure function of text
// and the configured voices.
func (a *Adapter) chooseVoice(text string) voiceChoice {
	if langid.Detect(text) == langid.ScriptArabic {
		return voiceChoice{
			Voice:    types.VoiceId(a.opts.ArabicVoice),
			Language: types.LanguageCodeArAe,
			Engine:   types.Engine(a.opts.Engine),
		}
	}
	return voiceChoice{
		Voice:    types.VoiceId(a.opts.EnglishVoice),
		Language: types.LanguageCodeEnUs,
		Engine:   types.Engine(a.opts.Engine),
	}
}

// Synthesize converts text to speech, uploads the audio under a
// timestamped key, and returns the public URL.
func (a *Adapter) Synthesize(ctx context.Context, text string) (string, error) {
	choice := a.chooseVoice(text)

	out, err := a.client.SynthesizeSpeech(ctx, &awspolly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		OutputFormat: types.OutputFormat(a.opts.OutputFormat),
		VoiceId:      choice.Voice,
		Engine:       choice.Engine,
		LanguageCode: choice.Language,
	})
	if err != nil {
		return "", pipeline.Wrap(pipeline.StepSynthesis, err)
	}
	defer out.AudioStream.Close()

	key := fmt.Sprintf("response_%d.%s", a.now().Unix(), a.opts.OutputFormat)
	info, err := a.store.Put(ctx, key, out.AudioStream, blob.PutOptions{ContentType: "audio/mpeg"})
	if err != nil {
		return "", pipeline.Wrap(pipeline.StepUpload, err)
	}

	a.log.Debug().Str("voice", string(choice.Voice)).Str("key", key).Msg("speech synthesized")
	return info.URL, nil
}
