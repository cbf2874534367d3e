package mail

import (
	"crypto/tls"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/go-mail-me/pkg/config"
)

// Sender performs exactly one delivery attempt to all receivers in a single
// SMTP session. Implementations must return a *TransportError on failure so
// the retry engine can tell transient from fatal.
type Sender interface {
	Send(receivers []string, msg *Message) error
	GetHost() string
	GetPort() int
}

type smtpSender struct {
	dialer        *gomail.Dialer
	senderAddress string
	senderName    string
	log           *zap.SugaredLogger
}

// NewSender creates an SMTP sender from a resolved configuration.
func NewSender(cfg config.Config, log *zap.SugaredLogger) Sender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.InsecureSkipVerify {
		log.Warnw("InsecureSkipVerify is enabled for mail TLS connection", "host", cfg.Host)
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &smtpSender{
		dialer:        d,
		senderAddress: cfg.SenderAddress,
		senderName:    cfg.SenderName,
		log:           log.Named("sender"),
	}
}

// Send opens one session (connect and authenticate), delivers to every
// receiver, and closes the connection on all exit paths. Failures come back
// classified.
func (s *smtpSender) Send(receivers []string, msg *Message) error {
	gm := gomail.NewMessage()
	gm.SetAddressHeader("From", s.senderAddress, s.senderName)
	gm.SetHeader("To", receivers...)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.Body)
	for _, a := range msg.Attachments {
		data := a.Data
		gm.Attach(a.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}

	sc, err := s.dialer.Dial()
	if err != nil {
		return Classify(fmt.Errorf("connecting to %s:%d: %w", s.GetHost(), s.GetPort(), err))
	}
	defer func() {
		if cerr := sc.Close(); cerr != nil {
			s.log.Debugw("Closing SMTP session failed", "error", cerr)
		}
	}()

	if err := gomail.Send(sc, gm); err != nil {
		return Classify(fmt.Errorf("sending to %d receivers: %w", len(receivers), err))
	}

	s.log.Debugw("Mail sent", "receivers", len(receivers), "subject", msg.Subject)
	return nil
}

func (s *smtpSender) GetHost() string {
	return s.dialer.Host
}

func (s *smtpSender) GetPort() int {
	return s.dialer.Port
}
