package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Dombearx/VoiceBot/internal/discord"
	"github.com/Dombearx/VoiceBot/internal/elevenlabs"
	"github.com/Dombearx/VoiceBot/internal/prompt"
	"github.com/Dombearx/VoiceBot/internal/storage"
	"github.com/Dombearx/VoiceBot/internal/voices"
)

// abort writes err as {"detail": ...} with the status it maps to.
func (s *Server) abort(c *gin.Context, err error) {
	status, detail := statusOf(err)
	if status >= 500 {
		s.log.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func badRequest(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": detail})
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, voices.ErrInvalidInput),
		errors.Is(err, prompt.ErrEmptyInput),
		errors.Is(err, storage.ErrInvalidQuery):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, prompt.ErrExternalAPI):
		return http.StatusInternalServerError, "External API failure"
	}

	if status, detail, ok := providerStatus(err); ok {
		return status, detail
	}

	var de *discord.Error
	if errors.As(err, &de) {
		return botStatus(de.Kind), de.Error()
	}
	return http.StatusInternalServerError, "Internal server error"
}

func providerStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, elevenlabs.ErrInvalidRequest):
		return http.StatusBadRequest, elevenlabs.ErrInvalidRequest.Error(), true
	case errors.Is(err, elevenlabs.ErrNotFound):
		return http.StatusNotFound, elevenlabs.ErrNotFound.Error(), true
	case errors.Is(err, elevenlabs.ErrRateLimited):
		return http.StatusTooManyRequests, elevenlabs.ErrRateLimited.Error(), true
	case errors.Is(err, elevenlabs.ErrTimeout):
		return http.StatusGatewayTimeout, elevenlabs.ErrTimeout.Error(), true
	case errors.Is(err, elevenlabs.ErrUnavailable):
		return http.StatusServiceUnavailable, elevenlabs.ErrUnavailable.Error(), true
	case errors.Is(err, elevenlabs.ErrUnauthorized):
		return http.StatusInternalServerError, elevenlabs.ErrUnauthorized.Error(), true
	case errors.Is(err, elevenlabs.ErrForbidden):
		return http.StatusInternalServerError, elevenlabs.ErrForbidden.Error(), true
	case errors.Is(err, elevenlabs.ErrUpstream):
		return http.StatusBadGateway, elevenlabs.ErrUpstream.Error(), true
	}
	return 0, "", false
}

func botStatus(k discord.Kind) int {
	switch k {
	case discord.KindNotInitialized, discord.KindNotReady:
		return http.StatusServiceUnavailable
	case discord.KindChannelNotFound:
		return http.StatusNotFound
	case discord.KindPermissionDenied:
		return http.StatusForbidden
	case discord.KindMalformedID, discord.KindInvalidConfig, discord.KindWrongChannelType:
		return http.StatusBadRequest
	case discord.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
