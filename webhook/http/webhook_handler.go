package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v75/github"
	"github.com/rs/zerolog/log"
)

// PushHandler reacts to pushes on the content repository.
type PushHandler interface {
	HandlePushEvent(evt *github.PushEvent) error
}

type WebhookHandler struct {
	webhookSecret []byte
	pushHandler   PushHandler
}

func NewWebhookHandler(secret string, pushHandler PushHandler) (*WebhookHandler, error) {
	if secret == "" {
		return nil, errors.New("webhook secret is not set")
	}

	return &WebhookHandler{
		webhookSecret: []byte(secret),
		pushHandler:   pushHandler,
	}, nil
}

func (h *WebhookHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/webhook/git", h.HandleGitWebhook)
}

func (h *WebhookHandler) HandleGitWebhook(c *gin.Context) {
	payload, err := github.ValidatePayload(c.Request, h.webhookSecret)
	if err != nil {
		log.Warn().Err(err).Msg("Rejected webhook payload")
		c.String(http.StatusBadRequest, "Invalid payload")
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(c.Request), payload)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid event")
		return
	}

	switch evt := event.(type) {
	case *github.PushEvent:
		err = h.pushHandler.HandlePushEvent(evt)
	case *github.PingEvent:
		log.Info().Msg("Received webhook ping")
	default:
		log.Debug().Str("event", github.WebHookType(c.Request)).Msg("Ignoring webhook event")
	}
	if err != nil {
		log.Error().Err(err).Msg("Error handling webhook event")
		c.String(http.StatusInternalServerError, "Error handling event")
		return
	}

	c.Status(http.StatusNoContent)
}
