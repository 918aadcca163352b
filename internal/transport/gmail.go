package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const gmailSendURL = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"

// GmailSender delivers mail through the Gmail API using a refresh-token
// OAuth flow. Sends carry the thread ID so replies land in one conversation.
type GmailSender struct {
	httpClient *http.Client
	from       string
	sendURL    string
}

// NewGmailSender builds a sender from OAuth client credentials and a
// long-lived refresh token obtained during account linking.
func NewGmailSender(ctx context.Context, clientID, clientSecret, refreshToken, from string) (*GmailSender, error) {
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("gmail credentials incomplete")
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/gmail.send"},
	}
	token := &oauth2.Token{RefreshToken: refreshToken}

	return &GmailSender{
		httpClient: conf.Client(ctx, token),
		from:       from,
		sendURL:    gmailSendURL,
	}, nil
}

// Name identifies the channel in logs and audit entries.
func (s *GmailSender) Name() string { return "gmail" }

type gmailSendRequest struct {
	Raw      string `json:"raw"`
	ThreadID string `json:"threadId,omitempty"`
}

type gmailSendResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Send delivers one message and returns the Gmail message and thread IDs.
func (s *GmailSender) Send(ctx context.Context, msg Message) (*SendResult, error) {
	from := msg.From
	if from == "" {
		from = s.from
	}

	raw := buildRFC822(from, msg)
	payload := gmailSendRequest{
		Raw:      base64.URLEncoding.EncodeToString([]byte(raw)),
		ThreadID: msg.ThreadID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal gmail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sendURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create gmail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gmail send: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gmail response: %w", err)
	}

	var sendResp gmailSendResponse
	if err := json.Unmarshal(data, &sendResp); err != nil {
		return nil, fmt.Errorf("parse gmail response: %w", err)
	}
	if sendResp.Error != nil {
		return nil, fmt.Errorf("gmail send failed: %d %s", sendResp.Error.Code, sendResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gmail send failed: status %d", resp.StatusCode)
	}

	return &SendResult{MessageID: sendResp.ID, ThreadID: sendResp.ThreadID}, nil
}

// buildRFC822 assembles the raw MIME message Gmail expects.
func buildRFC822(from string, msg Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", msg.To)
	fmt.Fprintf(&sb, "Subject: %s\r\n", msg.Subject)
	if msg.InReplyTo != "" {
		fmt.Fprintf(&sb, "In-Reply-To: %s\r\n", msg.InReplyTo)
		fmt.Fprintf(&sb, "References: %s\r\n", msg.InReplyTo)
	}
	if msg.UnsubscribeURL != "" {
		fmt.Fprintf(&sb, "List-Unsubscribe: <%s>\r\n", msg.UnsubscribeURL)
	}
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(msg.Body)
	return sb.String()
}
