// Command h2get fetches URLs from one host over a single HTTP/2 connection.
//
//	h2get [-config h2conn.toml] [-socks5 host:port] [-insecure] [-v] http://host:port /path ...
//
// An http URL is spoken as h2c with prior knowledge, an https URL over TLS
// with ALPN "h2".
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"

	"github.com/imroc/h2conn"
	"github.com/imroc/h2conn/internal/netutil"
)

func main() {
	var (
		configFile  = flag.String("config", "", "TOML settings file")
		socks5      = flag.String("socks5", "", "dial through this SOCKS5 proxy")
		insecure    = flag.Bool("insecure", false, "skip TLS certificate verification")
		verbose     = flag.Bool("v", false, "debug log")
		dump        = flag.Bool("dump", false, "dump request and response heads")
		dialTimeout = flag.Duration("dial-timeout", 10*time.Second, "dial timeout")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "usage: h2get [flags] base-url /path ...")
		flag.PrintDefaults()
		os.Exit(2)
	}
	base, err := url.Parse(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("parse base url")
	}
	paths := flag.Args()[1:]

	settings := h2conn.DefaultSettings()
	if *configFile != "" {
		s, err := h2conn.LoadSettings(*configFile)
		if err != nil {
			log.Fatal().Err(err).Msg("load settings")
		}
		settings = s
	}
	if *verbose {
		settings.DebugLog = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conn, err := dial(ctx, base, *socks5, *insecure, *dialTimeout)
	if err != nil {
		log.Fatal().Err(err).Str("url", base.String()).Msg("dial")
	}

	client := h2conn.C().
		SetSettings(settings).
		SetLogger(h2conn.NewLoggerFromZerolog(log))
	if *dump {
		client.EnableDumpWithoutBody()
	}
	sender, c := client.NewConn(conn)

	runErr := make(chan error, 1)
	go func() {
		runErr <- c.Run(ctx)
	}()

	var (
		wg     sync.WaitGroup
		outMu  sync.Mutex
		failed bool
	)
	for _, path := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			body, status, err := get(ctx, sender, base.ResolveReference(&url.URL{Path: path}).String())
			outMu.Lock()
			defer outMu.Unlock()
			if err != nil {
				failed = true
				log.Error().Err(err).Str("path", path).Msg("request failed")
				return
			}
			log.Info().Str("path", path).Int("status", status).Int("bytes", len(body)).Msg("response")
			fmt.Println(body)
		}(path)
	}
	wg.Wait()

	sender.Close()
	if err := <-runErr; err != nil {
		log.Error().Err(err).Msg("connection")
		failed = true
	}
	if failed {
		os.Exit(1)
	}
}

func dial(ctx context.Context, u *url.URL, socks5 string, insecure bool, timeout time.Duration) (net.Conn, error) {
	addr, err := netutil.DialAddr(u)
	if err != nil {
		return nil, err
	}
	var d proxy.ContextDialer = &net.Dialer{Timeout: timeout}
	if socks5 != "" {
		pd, err := proxy.SOCKS5("tcp", socks5, nil, &net.Dialer{Timeout: timeout})
		if err != nil {
			return nil, err
		}
		d = pd.(proxy.ContextDialer)
	}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "http" {
		return conn, nil
	}

	host, _ := netutil.HostPort(u.Scheme, u.Host)
	tconn := tls.Client(conn, &tls.Config{
		ServerName:         host,
		NextProtos:         []string{"h2"},
		InsecureSkipVerify: insecure,
	})
	hsCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := tconn.HandshakeContext(hsCtx); err != nil {
		conn.Close()
		return nil, err
	}
	if proto := tconn.ConnectionState().NegotiatedProtocol; proto != "h2" {
		tconn.Close()
		return nil, fmt.Errorf("server negotiated %q instead of h2", proto)
	}
	return tconn, nil
}

func get(ctx context.Context, sender *h2conn.Sender, target string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", 0, err
	}
	res, err := sender.RoundTrip(req)
	if err != nil {
		return "", 0, err
	}
	body, err := h2conn.BodyOf(res).String()
	return body, res.StatusCode, err
}
