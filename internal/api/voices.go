package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dombearx/VoiceBot/internal/elevenlabs"
	"github.com/Dombearx/VoiceBot/internal/voices"
)

const defaultTTSTimeoutSecs = 30

type ttsRequest struct {
	VoiceID string `json:"voiceId" binding:"required"`
	Text    string `json:"text" binding:"required"`
	Timeout *int   `json:"timeout" binding:"omitempty,min=1,max=30"`
}

func (s *Server) listVoices(c *gin.Context) {
	list, err := s.deps.Voices.ListVoices(c.Request.Context())
	if err != nil {
		// Listing reports provider throttling as unavailability.
		if errors.Is(err, elevenlabs.ErrRateLimited) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"detail": elevenlabs.ErrRateLimited.Error()})
			return
		}
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

func (s *Server) designVoice(c *gin.Context) {
	var req elevenlabs.DesignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := s.deps.Voices.DesignVoice(c.Request.Context(), req)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) createVoice(c *gin.Context) {
	var req elevenlabs.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	v, err := s.deps.Voices.CreateVoice(c.Request.Context(), req)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (s *Server) deleteVoice(c *gin.Context) {
	if err := s.deps.Voices.DeleteVoice(c.Request.Context(), c.Param("id")); err != nil {
		s.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) textToSpeech(c *gin.Context) {
	var req ttsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	secs := defaultTTSTimeoutSecs
	if req.Timeout != nil {
		secs = *req.Timeout
	}

	audio, err := s.deps.Voices.Speak(c.Request.Context(), voices.SpeechRequest{
		VoiceID: req.VoiceID,
		Text:    req.Text,
		Timeout: time.Duration(secs) * time.Second,
	})
	if err != nil {
		s.abort(c, err)
		return
	}
	c.Data(http.StatusOK, "audio/mpeg", audio)
}
