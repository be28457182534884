package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mnsd/internal/config"
	"mnsd/internal/httpapi"
	"mnsd/internal/mns"
	"mnsd/internal/obex"
)

const shutdownTimeout = 5 * time.Second

func serveCmd(g *globalOptions) *cobra.Command {
	var (
		configPath  string
		httpLogLvl  string
		corsEnabled bool
		fl          config.Config
	)
	defaultAddr := "127.0.0.1:8080"
	if v := os.Getenv("MNSD_ADDR"); v != "" {
		defaultAddr = v
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the notification service and its admin API",
		Example: `  mnsd serve --instances 0,1
  mnsd serve --config /etc/mnsd.yaml --transports stream`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fl.LogLevel, fl.LogFormat = g.logLevel, g.logFormat
			cfg, err := resolveConfig(configPath, fl, changedFlags(cmd))
			if err != nil {
				return err
			}
			log, err := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			httpapi.SetLogger(log)
			if httpLogLvl != "" {
				httpapi.SetRequestLogLevel(httpLogLvl)
			}
			if corsEnabled || len(cfg.CORSOrigins) > 0 {
				httpapi.SetCORSOptions(true, cfg.CORSOrigins,
					[]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
					[]string{"Content-Type", "X-Log-Level"})
			}

			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return fmt.Errorf("admin listen %s: %w", cfg.Addr, err)
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log, ln)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "Config file (.yaml, .yml, .json, .toml)")
	f.StringVar(&fl.Addr, "addr", defaultAddr, "Admin HTTP listen address (defaults MNSD_ADDR)")
	f.StringVar(&fl.StreamAddr, "stream-addr", mns.DefaultStreamAddr, "Stream (RFCOMM-style) listen address")
	f.StringVar(&fl.PacketPath, "packet-path", mns.DefaultPacketPath, "Packet (L2CAP-style) socket path")
	f.StringSliceVar(&fl.Transports, "transports", []string{"stream", "packet"}, "Transport kinds to listen on")
	f.IntVar(&fl.StopTimeoutMS, "stop-timeout-ms", 3000, "Max wait for an acceptor to stop")
	f.IntVar(&fl.MailboxSize, "mailbox-size", 64, "Queue size of websocket event streams")
	f.IntVar(&fl.MaxReportBytes, "max-report-bytes", obex.DefaultMaxBodySize, "Largest event-report body accepted in one PUT")
	f.IntSliceVar(&fl.Instances, "instances", nil, "MAS instance ids registered at startup with a log listener")
	f.StringSliceVar(&fl.CORSOrigins, "cors-origins", nil, "Allowed CORS origins for the admin API")
	f.BoolVar(&corsEnabled, "cors-enabled", false, "Enable CORS on the admin API")
	f.StringVar(&httpLogLvl, "http-log-level", "", "Request log level: off|error|info|debug (defaults MNSD_HTTP_LOG_LEVEL)")
	return cmd
}

// changedFlags maps config keys to whether the user set them on the command
// line. Persistent flags count too.
func changedFlags(cmd *cobra.Command) map[string]bool {
	out := make(map[string]bool)
	for key, flag := range map[string]string{
		"addr":             "addr",
		"log_level":        "log-level",
		"log_format":       "log-format",
		"stream_addr":      "stream-addr",
		"packet_path":      "packet-path",
		"transports":       "transports",
		"stop_timeout_ms":  "stop-timeout-ms",
		"mailbox_size":     "mailbox-size",
		"max_report_bytes": "max-report-bytes",
		"instances":        "instances",
		"cors_origins":     "cors-origins",
	} {
		out[key] = cmd.Flags().Changed(flag)
	}
	return out
}

// resolveConfig layers defaults (the flag defaults in fl), the config file and
// explicitly set flags, in increasing precedence.
func resolveConfig(path string, fl config.Config, changed map[string]bool) (config.Config, error) {
	cfg := fl
	if path != "" {
		fc, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		merge(&cfg, fc, fl, changed)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// merge applies file values unless the matching flag was set explicitly.
func merge(cfg *config.Config, file, fl config.Config, changed map[string]bool) {
	pick := func(key string, fileSet bool, apply func()) {
		if fileSet && !changed[key] {
			apply()
		}
	}
	pick("addr", file.Addr != "", func() { cfg.Addr = file.Addr })
	pick("log_level", file.LogLevel != "", func() { cfg.LogLevel = file.LogLevel })
	pick("log_format", file.LogFormat != "", func() { cfg.LogFormat = file.LogFormat })
	pick("stream_addr", file.StreamAddr != "", func() { cfg.StreamAddr = file.StreamAddr })
	pick("packet_path", file.PacketPath != "", func() { cfg.PacketPath = file.PacketPath })
	pick("transports", len(file.Transports) > 0, func() { cfg.Transports = file.Transports })
	pick("stop_timeout_ms", file.StopTimeoutMS > 0, func() { cfg.StopTimeoutMS = file.StopTimeoutMS })
	pick("mailbox_size", file.MailboxSize > 0, func() { cfg.MailboxSize = file.MailboxSize })
	pick("max_report_bytes", file.MaxReportBytes > 0, func() { cfg.MaxReportBytes = file.MaxReportBytes })
	pick("instances", len(file.Instances) > 0, func() { cfg.Instances = file.Instances })
	pick("cors_origins", len(file.CORSOrigins) > 0, func() { cfg.CORSOrigins = file.CORSOrigins })
}

// transports builds the mns transports named in cfg.Transports.
func transports(cfg config.Config) []mns.Transport {
	var out []mns.Transport
	for _, name := range cfg.Transports {
		switch mns.Kind(name) {
		case mns.KindStream:
			out = append(out, mns.StreamTransport{Address: cfg.StreamAddr})
		case mns.KindPacket:
			out = append(out, mns.PacketTransport{Path: cfg.PacketPath})
		}
	}
	return out
}

// serve runs the service and the admin API on ln until ctx is canceled.
func serve(ctx context.Context, cfg config.Config, log zerolog.Logger, ln net.Listener) error {
	svc := mns.New(mns.Config{
		Transports:    transports(cfg),
		StopTimeout:   time.Duration(cfg.StopTimeoutMS) * time.Millisecond,
		MaxReportSize: cfg.MaxReportBytes,
		Logger:        &log,
	})
	for _, id := range cfg.Instances {
		svc.RegisterCallback(id, mns.NewLogListener(id, log))
	}

	httpapi.SetMailboxSize(cfg.MailboxSize)
	httpapi.SetBaseContext(ctx)
	srv := &http.Server{
		Handler:           httpapi.NewMux(svc),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Strs("transports", cfg.Transports).Ints("instances", cfg.Instances).Msg("mnsd listening")
		errCh <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("admin server: %w", err)
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	if err := svc.Close(); err != nil {
		log.Warn().Err(err).Msg("service close incomplete")
	}
	return serveErr
}
