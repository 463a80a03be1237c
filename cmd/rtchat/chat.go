package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/auth"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/client"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/logging"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/observability"
	"github.com/sdkwork-cloud/openchat-realtime/pkg/protocol"
)

const eventChatMessage = "chat:message"

type chatMessage struct {
	Room string `json:"room"`
	User string `json:"user,omitempty"`
	Text string `json:"text"`
}

type serverError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// printer serializes writes to the terminal
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format+"\n", args...)
}

func runChat(parent context.Context, cfg client.Config, o *options, logger logging.Logger, in io.Reader, out io.Writer) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	setup, err := o.telemetry.Start("rtchat", version, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = setup.Shutdown(shutdownCtx)
	}()

	metrics, err := observability.NewPrometheusMetrics(observability.MetricsConfig{
		ServiceName:    "rtchat",
		ServiceVersion: version,
	})
	if err != nil {
		return err
	}

	clientOpts := []client.Option{
		client.WithLogger(logger),
		client.WithMetrics(metrics),
		client.WithTracer(setup.Tracer),
	}
	if cfg.Token == "" {
		tokenURL, err := tokenEndpoint(cfg.Endpoint)
		if err != nil {
			return err
		}
		// A fresh token is requested on every connect attempt
		clientOpts = append(clientOpts, client.WithTokenProvider(auth.TokenFunc(func(ctx context.Context) (string, error) {
			return fetchToken(ctx, http.DefaultClient, tokenURL, o.user)
		})))
	}

	c, err := client.New(cfg, clientOpts...)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	p := &printer{out: out}
	subscribe(c, p, o.room, cancel)

	g, gctx := errgroup.WithContext(ctx)
	if o.metricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, o.metricsAddr, metrics.Handler(), logger)
		})
	}

	if err := c.Connect(); err != nil {
		return err
	}

	lines := scanLines(in)
	g.Go(func() error {
		defer cancel(nil)
		var pending sync.WaitGroup
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					// Input ended; let what was typed reach the server.
					pending.Wait()
					return nil
				}
				if d := send(c, p, o, line); d != nil {
					pending.Add(1)
					go func() {
						defer pending.Done()
						if err := d.Wait(gctx); err != nil && gctx.Err() == nil {
							p.printf("* delivery failed: %s", err)
						}
					}()
				}
			}
		}
	})

	err = g.Wait()
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return err
}

func subscribe(c *client.Client, p *printer, room string, fail context.CancelCauseFunc) {
	ev := c.Events()
	ev.Connected.Subscribe(func(e client.ConnectedEvent) {
		p.printf("* connected to %s", e.Endpoint)
	})
	ev.Disconnected.Subscribe(func(e client.DisconnectedEvent) {
		if e.WillRetry {
			p.printf("* disconnected (code %d), retrying in %s", e.Code, e.RetryIn.Round(time.Millisecond))
		}
	})
	ev.Reconnecting.Subscribe(func(e client.ReconnectingEvent) {
		p.printf("* reconnecting, attempt %d", e.Attempt)
	})
	ev.ReconnectFailed.Subscribe(func(e client.ReconnectFailedEvent) {
		fail(e.Err)
	})
	ev.MessageExpired.Subscribe(func(e client.ExpiredEvent) {
		p.printf("* message expired before it could be sent")
	})

	client.Handle(c, eventChatMessage, func(m chatMessage, f protocol.Frame) {
		if m.Room != room {
			return
		}
		user := m.User
		if user == "" {
			user = "anonymous"
		}
		p.printf("[%s] %s %s: %s", m.Room, f.Time().Format("15:04:05"), user, m.Text)
	})
	client.Handle(c, "error", func(e serverError, _ protocol.Frame) {
		p.printf("* server error %s: %s", e.Code, e.Message)
	})
}

func send(c *client.Client, p *printer, o *options, line string) *client.Delivery {
	text := strings.TrimSpace(line)
	if text == "" {
		return nil
	}

	var opts []client.SendOption
	if o.requireAck {
		opts = append(opts, client.WithRequireAck())
	}
	d, err := c.Send(eventChatMessage, chatMessage{Room: o.room, User: o.user, Text: text}, opts...)
	if err != nil {
		p.printf("* not sent: %s", err)
		return nil
	}
	return d
}

// scanLines feeds lines from r until EOF. The goroutine ends with the input.
func scanLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler, logger logging.Logger) error {
	r := chi.NewRouter()
	r.Handle("/metrics", handler)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", logging.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
