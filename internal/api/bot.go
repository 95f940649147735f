package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dombearx/VoiceBot/internal/discord"
)

// multipartOverhead leaves room for the form fields around the avatar.
const multipartOverhead = 64 << 10

type connectRequest struct {
	ChannelID string `json:"channelId" binding:"required"`
}

type playRequest struct {
	VoiceID string `json:"voiceId" binding:"required"`
	Text    string `json:"text" binding:"required,max=1000"`
}

func (s *Server) botStatus(c *gin.Context) {
	st, err := s.deps.Bot.Status()
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) botChannels(c *gin.Context) {
	chans, err := s.deps.Bot.ListChannels()
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": chans})
}

func (s *Server) botConnect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	st, err := s.deps.Bot.Connect(req.ChannelID)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) botDisconnect(c *gin.Context) {
	st, err := s.deps.Bot.Disconnect()
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// botConfig takes a multipart form with a nickname field and an optional
// avatar file.
func (s *Server) botConfig(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, discord.MaxAvatarBytes+multipartOverhead)
	if err := c.Request.ParseMultipartForm(discord.MaxAvatarBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(c, fmt.Sprintf("avatar must be at most %d bytes", discord.MaxAvatarBytes))
			return
		}
		badRequest(c, "invalid multipart form: "+err.Error())
		return
	}

	upd := discord.ConfigUpdate{Nickname: c.PostForm("nickname")}

	fh, err := c.FormFile("avatar")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		badRequest(c, "invalid avatar: "+err.Error())
		return
	default:
		data, err := readAvatar(fh)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		upd.Avatar = data
		upd.AvatarContentType = fh.Header.Get("Content-Type")
	}

	cfg, err := s.deps.Bot.UpdateConfig(upd)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func readAvatar(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > discord.MaxAvatarBytes {
		return nil, fmt.Errorf("avatar must be at most %d bytes", discord.MaxAvatarBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("read avatar: %w", err)
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, discord.MaxAvatarBytes+1))
}

func (s *Server) botPlay(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.deps.Bot.PlayAudio(c.Request.Context(), req.VoiceID, req.Text); err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "playing"})
}
