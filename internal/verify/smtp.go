package verify

import (
	"context"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// SMTPProber opens a plain SMTP session and issues HELO, MAIL FROM and
// RCPT TO. No message is ever sent.
type SMTPProber struct {
	Port       int
	Timeout    time.Duration
	HeloDomain string
	MailFrom   string
}

// Probe implements Prober.
func (p *SMTPProber) Probe(ctx context.Context, host, addr string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(p.Port)))
	if err != nil {
		return 0, eris.Wrap(err, "verify: dial")
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return 0, eris.Wrap(err, "verify: greeting")
	}
	defer c.Close() //nolint:errcheck

	if err := c.Hello(p.HeloDomain); err != nil {
		return 0, eris.Wrap(err, "verify: helo")
	}
	if err := c.Mail(p.MailFrom); err != nil {
		return 0, eris.Wrap(err, "verify: mail from")
	}

	// Client.Rcpt folds 250 and 252 together, so the reply is read raw.
	id, err := c.Text.Cmd("RCPT TO:<%s>", addr)
	if err != nil {
		return 0, eris.Wrap(err, "verify: rcpt to")
	}
	c.Text.StartResponse(id)
	code, _, err := c.Text.ReadResponse(0)
	c.Text.EndResponse(id)
	if err != nil && code == 0 {
		return 0, eris.Wrap(err, "verify: rcpt reply")
	}

	_ = c.Quit()
	return code, nil
}
