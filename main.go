package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/ptgott/postman/address"
	"github.com/ptgott/postman/mailerr"
	"github.com/ptgott/postman/postman"
	"github.com/ptgott/postman/userconfig"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

func versionString() string {
	return "postman " + version
}

// stringsFlag collects every occurrence of a repeatable flag.
type stringsFlag []string

func (s *stringsFlag) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringsFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	// Log with filename and line number. This writes to stderr, so it should
	// be thread safe.
	// https://github.com/rs/zerolog/blob/7ccd4c940bf8a02fcc5f10e5475f9d3daff04d57/log/log.go#L13
	log.Logger = log.With().Caller().Logger()

	// Cancel the send on an interrupt so the connection gets closed on the
	// way out.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		to      stringsFlag
		attach  stringsFlag
		embed   stringsFlag
		servers stringsFlag
	)
	flag.Var(&to, "to", "recipient address (repeatable)")
	flag.Var(&attach, "attach", "path of a file to attach (repeatable)")
	flag.Var(&embed, "embed", `path of an image referenced as "cid:<filename>" in the body (repeatable)`)
	flag.Var(&servers, "smtp", "relay address as host:port, tried in order (repeatable)")
	subject := flag.String("subject", "", "subject line")
	body := flag.String("body", "", "HTML body")
	bodyFile := flag.String("body-file", "", "path to a file containing the HTML body")
	from := flag.String(
		"from",
		"",
		fmt.Sprintf("sender address (default %v)", userconfig.DefaultSender),
	)
	login := flag.String("login", "", fmt.Sprintf("relay login (default $%v)", userconfig.EnvLogin))
	passwd := flag.String("passwd", "", fmt.Sprintf("relay password (default $%v)", userconfig.EnvPassword))
	important := flag.Bool("important", false, "mark the message as high priority")
	configPath := flag.String(
		"config",
		"",
		"path to a JSON or YAML file containing your configuration",
	)
	verifyDomains := flag.Bool(
		"verify-domains",
		false,
		"drop recipients whose domain has no MX record",
	)
	noEmail := flag.Bool(
		"noemail",
		false,
		"print the message to stdout instead of sending it",
	)
	level := flag.String(
		"level",
		"info",
		`log level: "info", "debug", "warn" or "error"`,
	)
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(versionString())
		return
	}

	switch *level {
	case "debug":
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	case "warn":
		log.Logger = log.Logger.Level(zerolog.WarnLevel)
	case "error":
		log.Logger = log.Logger.Level(zerolog.ErrorLevel)
	default:
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	explicit := userconfig.Meta{
		Sender:        *from,
		Relays:        servers,
		Login:         *login,
		Password:      *passwd,
		VerifyDomains: *verifyDomains,
	}

	r := postman.Request{
		Recipients:  to,
		Subject:     *subject,
		Body:        *body,
		Attachments: attach,
		Embeds:      embed,
		Important:   *important,
	}

	if *bodyFile != "" {
		if *body != "" {
			fail(mailerr.NewInvalidInputError("-body and -body-file can't be used together", nil))
		}
		b, err := os.ReadFile(*bodyFile)
		if err != nil {
			fail(mailerr.NewInvalidInputError(fmt.Sprintf("can't read the body file %v", *bodyFile), err))
		}
		r.Body = string(b)
	}

	var out io.Writer
	if *noEmail {
		out = os.Stdout
	}

	if err := run(ctx, r, *configPath, explicit, out, log.Logger); err != nil {
		fail(err)
	}
	log.Info().Msg("done")
}

// run resolves the configuration and sends r.
func run(ctx context.Context, r postman.Request, configPath string, explicit userconfig.Meta, out io.Writer, l zerolog.Logger) error {
	var file *userconfig.Meta
	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return mailerr.NewConfigurationError(fmt.Sprintf("can't open the config file %v", configPath), err)
		}
		defer f.Close()

		file, err = userconfig.Parse(f)
		if err != nil {
			return mailerr.NewConfigurationError("problem parsing your config", err)
		}
		l.Debug().Str("configPath", configPath).Msg("read the config file")
	}

	c := postman.Config{
		OutputWr: out,
		Logger:   l,
	}

	var (
		m   userconfig.Meta
		err error
	)
	if out != nil {
		// Nothing is delivered, so no relay is needed.
		m, err = userconfig.ResolveWithoutRelays(explicit, file, os.Getenv)
		if err != nil {
			return err
		}
	} else {
		m, err = userconfig.Resolve(explicit, file, os.Getenv)
		if err != nil {
			return err
		}
		c.Email, err = m.EmailConfig()
		if err != nil {
			return err
		}
	}
	c.MaxAttachmentSize = int64(m.MaxAttachmentSize)

	if m.VerifyDomains {
		c.Checker = &address.MXChecker{}
	}

	p, err := postman.New(c)
	if err != nil {
		return err
	}

	r.Sender = m.Sender
	return p.Send(ctx, r)
}

func fail(err error) {
	ev := log.Error()
	var me *mailerr.Error
	if errors.As(err, &me) {
		ev = ev.Str("reason", string(me.Reason))
	}
	ev.Err(err).Msg("could not send the message")
	os.Exit(1)
}
