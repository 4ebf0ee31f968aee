package gmail

import (
	"context"
	"fmt"
	"strings"
	"time"

	queueUsecase "followq-backend/internal/queue/usecase"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Service pulls message metadata from the Gmail API. It is a read-only
// collaborator: the queue never writes mailbox state back through it.
type Service struct {
	clientID     string
	clientSecret string
	refreshToken string
}

func NewService(clientID, clientSecret, refreshToken string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
	}
}

// Enabled reports whether the service has credentials to reach Gmail
func (s *Service) Enabled() bool {
	return s.clientID != "" && s.clientSecret != "" && s.refreshToken != ""
}

func (s *Service) client(ctx context.Context) (*gmail.Service, error) {
	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}
	token := &oauth2.Token{
		RefreshToken: s.refreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now(),
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, config.TokenSource(ctx, token))))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}
	return srv, nil
}

// FetchMetadata retrieves the envelope snapshot for one message. Only the
// metadata format is requested; bodies never leave the mailbox.
func (s *Service) FetchMetadata(ctx context.Context, messageID string) (*queueUsecase.EmailMetadata, error) {
	srv, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", messageID).
		Format("metadata").
		MetadataHeaders("Subject", "From", "To").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve message %s: %v", messageID, err)
	}

	meta := &queueUsecase.EmailMetadata{
		ThreadID: msg.ThreadId,
		Labels:   msg.LabelIds,
	}
	if msg.InternalDate > 0 {
		meta.ReceivedAt = time.UnixMilli(msg.InternalDate)
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "subject":
				meta.Subject = h.Value
			case "from":
				meta.Sender = extractAddress(h.Value)
			case "to":
				meta.Recipient = extractAddress(h.Value)
			}
		}
	}
	return meta, nil
}

// extractAddress reduces "Display Name <addr@host>" to the bare address
func extractAddress(header string) string {
	if start := strings.LastIndex(header, "<"); start >= 0 {
		if end := strings.LastIndex(header, ">"); end > start {
			return strings.TrimSpace(header[start+1 : end])
		}
	}
	return strings.TrimSpace(header)
}
