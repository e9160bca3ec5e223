package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "bchfaucet/internal/errors"
	"bchfaucet/internal/mailer"
)

const (
	defaultContactSubject = "Someone wants to share a document with you."
	resetPayloadTitle     = "Email reset"
)

// fields consumed by the template and never echoed in the key/value listing
var contactReservedKeys = map[string]bool{
	"email":        true,
	"emailList":    true,
	"formMessage":  true,
	"message":      true,
	"payloadTitle": true,
	"subject":      true,
	"to":           true,
}

// ContactService relays contact form submissions by email.
type ContactService interface {
	Send(ctx context.Context, obj map[string]interface{}) error
}

type contactService struct {
	sender           mailer.Sender
	defaultRecipient string
	log              *zap.Logger
	now              func() time.Time
}

// NewContactService creates a contact service delivering through sender.
func NewContactService(sender mailer.Sender, defaultRecipient string, log *zap.Logger) ContactService {
	return &contactService{
		sender:           sender,
		defaultRecipient: defaultRecipient,
		log:              log,
		now:              time.Now,
	}
}

func (s *contactService) Send(ctx context.Context, obj map[string]interface{}) error {
	email, ok := obj["email"].(string)
	if !ok || email == "" {
		return apperrors.NewValidationError("Property 'email' must be a string!")
	}
	if !IsEmail(email) {
		return apperrors.NewValidationError("Property 'email' must be email format!")
	}
	message, ok := obj["formMessage"].(string)
	if !ok || message == "" {
		return apperrors.NewValidationError("Property 'message' must be a string!")
	}
	payload, ok := obj["payloadTitle"].(string)
	if !ok || payload == "" {
		return apperrors.NewValidationError("Property 'payloadTitle' must be a string!")
	}

	to := []string{s.defaultRecipient}
	if raw, present := obj["emailList"]; present && raw != nil {
		list, err := emailList(raw)
		if err != nil {
			return err
		}
		to = list
	}

	subject, _ := obj["subject"].(string)
	if subject == "" {
		subject = defaultContactSubject
	}

	msg := mailer.Message{
		To:      to,
		ReplyTo: email,
		Subject: subject,
		HTML:    s.render(subject, email, payload, message, obj),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.log.Error("contact email failed", zap.Strings("to", to), zap.Error(err))
		return fmt.Errorf("send contact email: %w", err)
	}
	s.log.Info("contact email sent", zap.Strings("to", to))
	return nil
}

func emailList(raw interface{}) ([]string, error) {
	invalid := apperrors.NewValidationError("Property 'emailList' must be a array of emails!")

	items, ok := raw.([]interface{})
	if !ok || len(items) == 0 {
		return nil, invalid
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		addr, ok := item.(string)
		if !ok || !IsEmail(addr) {
			return nil, invalid
		}
		out = append(out, addr)
	}
	return out, nil
}

func (s *contactService) render(subject, sender, payload, message string, obj map[string]interface{}) string {
	fields := map[string]string{
		"message": strings.NewReplacer("\r\n", "<br />", "\n", "<br />", "\r", "<br />").Replace(html.EscapeString(message)),
	}
	for k, v := range obj {
		if contactReservedKeys[k] {
			continue
		}
		fields[k] = html.EscapeString(fmt.Sprint(v))
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "<h3>%s:</h3>\n", html.EscapeString(subject))
	if payload != resetPayloadTitle {
		fmt.Fprintf(&b, "<p>%s would like to share the document <b>%s</b> with you.</p>\n",
			html.EscapeString(sender), html.EscapeString(payload))
	}
	fmt.Fprintf(&b, "<p>\ntime: %s<br/>\n", s.now().Format(time.RFC1123))
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s<br/>\n", html.EscapeString(k), fields[k])
	}
	b.WriteString("</p>")
	return b.String()
}
