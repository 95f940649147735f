package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type improveRequest struct {
	Prompt string `json:"prompt"`
}

type descriptionRequest struct {
	VoiceDescription string `json:"voiceDescription"`
}

func (s *Server) improvePrompt(c *gin.Context) {
	var req improveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	out, err := s.deps.Prompts.Improve(c.Request.Context(), req.Prompt)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"improvedPrompt": out})
}

func (s *Server) generateSampleText(c *gin.Context) {
	var req descriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	out, err := s.deps.Prompts.GenerateSampleText(c.Request.Context(), req.VoiceDescription)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sampleText": out})
}

func (s *Server) translate(c *gin.Context) {
	var req descriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	out, err := s.deps.Prompts.Translate(c.Request.Context(), req.VoiceDescription)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"translatedDescription": out})
}
