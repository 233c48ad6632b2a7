// Command httpcoreserve is a small file-serving demo wrapped around the
// httpcore server: it binds the configured endpoints and serves files out
// of a root directory, exercising keep-alive, gzip, byte-range and
// spill-to-file body handling end to end. Routing, directory listings and
// anything fancier belong to the embedder, not here.
package main

import (
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nanovarix/httpcore"
	"github.com/nanovarix/httpcore/config"
	hclog "github.com/nanovarix/httpcore/log"
)

func main() {
	fs := pflag.NewFlagSet("httpcoreserve", pflag.ExitOnError)
	config.BindFlags(fs)
	root := fs.String("root", ".", "directory to serve files from")
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, adapter := hclog.New(os.Stderr, cfg.LogLevel)

	absRoot, err := filepath.Abs(*root)
	if err != nil {
		logger.Fatal().Err(err).Str("root", *root).Msg("resolving root directory")
	}

	serverCfg, err := cfg.ServerConfig(fileHandler(absRoot), adapter)
	if err != nil {
		logger.Fatal().Err(err).Msg("building server config")
	}

	srv, err := httpcore.NewServer(serverCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("creating server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		srv.Shutdown()
	}()

	for _, ep := range cfg.Endpoints {
		logger.Info().Str("address", ep.Address).Bool("secure", ep.Secure).Msg("listening")
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("serve failed")
	}
	logger.Info().Msg("stopped")
}

// fileHandler serves GET/HEAD requests for files under root. The body is
// attached as an *os.File stream with a known size, which is exactly the
// seekable shape the response pipeline's byte-range and gzip-autodetect
// steps want.
func fileHandler(root string) httpcore.RequestHandler {
	return func(req *httpcore.Request) *httpcore.Response {
		resp := httpcore.AcquireResponse()

		if !req.Header.IsGet() && !req.Header.IsHead() {
			resp.SetStatusCode(httpcore.StatusMethodNotAllowed)
			resp.Header.SetContentType("text/plain; charset=utf-8")
			resp.SetBodyString("method not allowed\n")
			return resp
		}

		path := filepath.Clean("/" + string(req.URI.Path()))
		full := filepath.Join(root, path)
		if !strings.HasPrefix(full, root) {
			resp.SetStatusCode(httpcore.StatusForbidden)
			resp.Header.SetContentType("text/plain; charset=utf-8")
			resp.SetBodyString("forbidden\n")
			return resp
		}

		f, err := os.Open(full)
		if err != nil {
			resp.SetStatusCode(httpcore.StatusNotFound)
			resp.Header.SetContentType("text/plain; charset=utf-8")
			resp.SetBodyString("not found\n")
			return resp
		}
		fi, err := f.Stat()
		if err != nil || fi.IsDir() {
			f.Close()
			resp.SetStatusCode(httpcore.StatusNotFound)
			resp.Header.SetContentType("text/plain; charset=utf-8")
			resp.SetBodyString("not found\n")
			return resp
		}

		if ct := mime.TypeByExtension(filepath.Ext(full)); ct != "" {
			resp.Header.SetContentType(ct)
		}
		resp.SetStatusCode(httpcore.StatusOK)
		resp.SetBodyStream(f, int(fi.Size()))
		resp.SetCleanup(func() { f.Close() })
		return resp
	}
}
