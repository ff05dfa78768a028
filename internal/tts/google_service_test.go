package tts

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/texttospeech/apiv1beta1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tts-vc/pkg/models"
)

type fakeSpeechClient struct {
	synthReq    *texttospeechpb.SynthesizeSpeechRequest
	listReq     *texttospeechpb.ListVoicesRequest
	audio       []byte
	voices      []*texttospeechpb.Voice
	err         error
	hadDeadline bool
	closed      bool
}

func (f *fakeSpeechClient) SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, _ ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	f.synthReq = req
	_, f.hadDeadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &texttospeechpb.SynthesizeSpeechResponse{AudioContent: f.audio}, nil
}

func (f *fakeSpeechClient) ListVoices(_ context.Context, req *texttospeechpb.ListVoicesRequest, _ ...gax.CallOption) (*texttospeechpb.ListVoicesResponse, error) {
	f.listReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &texttospeechpb.ListVoicesResponse{Voices: f.voices}, nil
}

func (f *fakeSpeechClient) Close() error {
	f.closed = true
	return nil
}

func TestGoogleService_Synthesize(t *testing.T) {
	client := &fakeSpeechClient{audio: []byte("ID3-fake-mp3-bytes")}
	service := NewGoogleService(zap.NewNop(), client, 5*time.Second)

	got, err := service.Synthesize(context.Background(), models.SynthesisRequest{
		Text:         "Hello world",
		Voice:        "Leda",
		LanguageCode: "en-US",
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-fake-mp3-bytes"), got)

	req := client.synthReq
	require.NotNil(t, req)
	assert.Equal(t, "Hello world", req.GetInput().GetText())
	assert.Equal(t, "en-US", req.GetVoice().GetLanguageCode())
	assert.Equal(t, "en-US-Chirp3-HD-Leda", req.GetVoice().GetName())
	assert.Equal(t, texttospeechpb.AudioEncoding_MP3, req.GetAudioConfig().GetAudioEncoding())
	assert.True(t, client.hadDeadline)
}

func TestGoogleService_ZeroTimeoutHasNoDeadline(t *testing.T) {
	client := &fakeSpeechClient{audio: []byte("mp3")}
	service := NewGoogleService(zap.NewNop(), client, 0)

	_, err := service.Synthesize(context.Background(), models.SynthesisRequest{Text: "Hi", Voice: "Leda", LanguageCode: "en-US"})
	require.NoError(t, err)
	assert.False(t, client.hadDeadline)
}

func TestGoogleService_SynthesizeAPIError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		code        codes.Code
		clientError bool
	}{
		{
			name:        "неизвестный голос",
			err:         status.Error(codes.InvalidArgument, "Voice 'xx-XX-Chirp3-HD-Nobody' does not exist."),
			code:        codes.InvalidArgument,
			clientError: true,
		},
		{
			name:        "сервис недоступен",
			err:         status.Error(codes.Unavailable, "upstream unavailable"),
			code:        codes.Unavailable,
			clientError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewGoogleService(zap.NewNop(), &fakeSpeechClient{err: tt.err}, time.Second)

			_, err := service.Synthesize(context.Background(), models.SynthesisRequest{Text: "Hi", Voice: "Nobody", LanguageCode: "xx-XX"})
			require.Error(t, err)

			apiErr, ok := AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Equal(t, tt.clientError, apiErr.IsClientError())
		})
	}
}

func TestGoogleService_SynthesizeEmptyAudio(t *testing.T) {
	service := NewGoogleService(zap.NewNop(), &fakeSpeechClient{}, time.Second)

	_, err := service.Synthesize(context.Background(), models.SynthesisRequest{Text: "Hi", Voice: "Leda", LanguageCode: "en-US"})
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestGoogleService_ListVoices(t *testing.T) {
	client := &fakeSpeechClient{voices: []*texttospeechpb.Voice{
		{LanguageCodes: []string{"id-ID"}, Name: "id-ID-Chirp3-HD-Charon", SsmlGender: texttospeechpb.SsmlVoiceGender_MALE, NaturalSampleRateHertz: 24000},
		{LanguageCodes: []string{"id-ID"}, Name: "id-ID-Standard-A", SsmlGender: texttospeechpb.SsmlVoiceGender_FEMALE, NaturalSampleRateHertz: 24000},
		{LanguageCodes: []string{"id-ID"}, Name: "id-ID-Chirp3-HD-Leda", SsmlGender: texttospeechpb.SsmlVoiceGender_FEMALE, NaturalSampleRateHertz: 24000},
	}}
	service := NewGoogleService(zap.NewNop(), client, time.Second)

	voices, err := service.ListVoices(context.Background(), "id-ID")
	require.NoError(t, err)
	assert.Equal(t, "id-ID", client.listReq.GetLanguageCode())

	require.Len(t, voices, 2)
	assert.Equal(t, "id-ID-Chirp3-HD-Charon", voices[0].Name)
	assert.Equal(t, "MALE", voices[0].SSMLGender)
	assert.Equal(t, "FEMALE", voices[1].SSMLGender)
	assert.Equal(t, 24000, voices[1].NaturalSampleRateHertz)

	require.NoError(t, service.Close())
	assert.True(t, client.closed)
}

func TestClientOptions(t *testing.T) {
	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})

	assert.Len(t, clientOptions("us-texttospeech.googleapis.com", "demo-project", tokens), 3)
	assert.Len(t, clientOptions("texttospeech.googleapis.com", "", tokens), 2)
}

func TestVoiceName(t *testing.T) {
	assert.Equal(t, "id-ID-Chirp3-HD-Charon", VoiceName("id-ID", "Charon"))
	assert.True(t, IsKnownVoice(DefaultVoice))
	assert.True(t, IsKnownVoice("Leda"))
	assert.False(t, IsKnownVoice("Puck"))
	assert.True(t, IsKnownLanguage(DefaultLanguage))
	assert.True(t, IsKnownLanguage("en-US"))
	assert.False(t, IsKnownLanguage("ru-RU"))
}
