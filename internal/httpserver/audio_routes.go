package httpserver

import (
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ncecere/voice_gateway/internal/app"
	"github.com/ncecere/voice_gateway/internal/httpserver/httputil"
	"github.com/ncecere/voice_gateway/internal/models"
)

type audioHandler struct {
	container *app.Container
}

func registerAudioRoutes(fiberApp *fiber.App, container *app.Container) {
	h := &audioHandler{container: container}

	group := fiberApp.Group("/audio-processing")
	group.Post("/complete", h.complete)
	group.Post("/upload", h.upload)
	group.Post("/transcribe", h.transcribe)
	group.Post("/generate-response", h.generateResponse)
	group.Post("/synthesize-speech", h.synthesizeSpeech)

	streaming := group.Group("/streaming")
	streaming.Post("/transcribe", h.streamingTranscribe)
	streaming.Post("/complete", h.streamingComplete)
	streaming.Post("/text-to-speech", h.textToSpeech)
}

type textRequest struct {
	Text string `json:"text"`
}

type transcribeRequest struct {
	S3URL string `json:"s3_url"`
}

// audioInput opens the multipart "file" field for in-memory pipeline steps.
func audioInput(c *fiber.Ctx) (models.AudioInput, multipart.File, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return models.AudioInput{}, nil, err
	}
	src, err := fh.Open()
	if err != nil {
		return models.AudioInput{}, nil, err
	}
	return models.AudioInput{
		Reader:      src,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Bytes:       fh.Size,
	}, src, nil
}

// saveUpload spills the multipart "file" field to a temporary path for
// steps that need an on-disk file. The caller removes it via cleanup.
func (h *audioHandler) saveUpload(c *fiber.Ctx) (string, func(), error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, err
	}
	path := filepath.Join(os.TempDir(), uuid.NewString()+filepath.Ext(fh.Filename))
	if err := c.SaveFile(fh, path); err != nil {
		return "", nil, err
	}
	cleanup := func() { os.Remove(path) }
	return path, cleanup, nil
}

func (h *audioHandler) streamingLanguage(c *fiber.Ctx) string {
	if lang := strings.TrimSpace(c.Query("language")); lang != "" {
		return lang
	}
	return h.container.Config.Streaming.Language
}

func (h *audioHandler) complete(c *fiber.Ctx) error {
	audio, src, err := audioInput(c)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "audio file is required")
	}
	defer src.Close()

	result, err := h.container.Pipeline.Complete(c.UserContext(), audio)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(pipelineResponse(result))
}

func (h *audioHandler) upload(c *fiber.Ctx) error {
	audio, src, err := audioInput(c)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "audio file is required")
	}
	defer src.Close()

	url, elapsed, err := h.container.Pipeline.Upload(c.UserContext(), audio)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"audio_url":       url,
		"processing_time": elapsed,
	})
}

func (h *audioHandler) transcribe(c *fiber.Ctx) error {
	var req transcribeRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.S3URL) == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "s3_url is required")
	}

	transcript, elapsed, err := h.container.Pipeline.Transcribe(c.UserContext(), req.S3URL)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"transcription":   transcript,
		"processing_time": elapsed,
	})
}

func (h *audioHandler) generateResponse(c *fiber.Ctx) error {
	var req textRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "text is required")
	}

	reply, elapsed, err := h.container.Pipeline.Respond(c.UserContext(), req.Text)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"response_text":   reply,
		"processing_time": elapsed,
	})
}

func (h *audioHandler) synthesizeSpeech(c *fiber.Ctx) error {
	var req textRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "text is required")
	}

	url, elapsed, err := h.container.Pipeline.Synthesize(c.UserContext(), req.Text)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"response_audio":  url,
		"processing_time": elapsed,
	})
}

func (h *audioHandler) streamingTranscribe(c *fiber.Ctx) error {
	path, cleanup, err := h.saveUpload(c)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "audio file is required")
	}
	defer cleanup()

	transcript, elapsed, err := h.container.Pipeline.StreamingTranscribe(c.UserContext(), path, h.streamingLanguage(c))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	if transcript == "" {
		return httputil.WriteError(c, fiber.StatusUnprocessableEntity, "no transcript recognized")
	}
	return c.JSON(fiber.Map{
		"transcription":   transcript,
		"processing_time": elapsed,
	})
}

func (h *audioHandler) streamingComplete(c *fiber.Ctx) error {
	path, cleanup, err := h.saveUpload(c)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "audio file is required")
	}
	defer cleanup()

	result, err := h.container.Pipeline.StreamingComplete(c.UserContext(), path, h.streamingLanguage(c))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(pipelineResponse(result))
}

func (h *audioHandler) textToSpeech(c *fiber.Ctx) error {
	var req textRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "text is required")
	}

	result, err := h.container.Pipeline.TextToSpeech(c.UserContext(), req.Text)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(pipelineResponse(result))
}

func pipelineResponse(result *models.PipelineResult) fiber.Map {
	resp := fiber.Map{
		"transcription":   result.Transcription,
		"response_text":   result.ResponseText,
		"response_audio":  result.ResponseAudio,
		"processing_time": result.Timings,
		"total_time":      result.TotalSeconds,
	}
	if result.InputAudio != "" {
		resp["input_audio"] = result.InputAudio
	}
	return resp
}
