package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/agui-go/pkg/auth"
	"github.com/theapemachine/agui-go/pkg/metrics"
	"github.com/theapemachine/agui-go/pkg/service"
	"github.com/theapemachine/agui-go/pkg/stores"
	"github.com/theapemachine/agui-go/pkg/stores/s3"
	"github.com/theapemachine/agui-go/pkg/upstream"
)

var (
	portFlag     int
	hostFlag     string
	upstreamFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge service",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
)

func runServe(ctx context.Context) error {
	setLogLevel()

	host := viper.GetString("server.host")
	port := viper.GetInt("server.port")

	opts := []service.Option{
		service.WithAddr(fmt.Sprintf("%s:%d", host, port)),
		service.WithMetrics(metrics.NewBridge()),
	}

	rpcURL := viper.GetString("upstream.rpc")

	if upstreamFlag != "" {
		rpcURL = upstreamFlag
	}

	if rpcURL != "" {
		opts = append(opts, service.WithForwarder(upstream.NewForwarder(rpcURL)))
	}

	if secret := viper.GetString("auth.secret"); secret != "" {
		opts = append(opts, service.WithAuth(auth.NewService(secret)))
	}

	if archive := bucketArchive(ctx); archive != nil {
		opts = append(opts, service.WithArchive(archive))
	}

	srv := service.NewBridgeServer(opts...)

	go sweepLoop(ctx, srv)

	streamURL := viper.GetString("upstream.stream")

	if upstreamFlag != "" {
		streamURL = upstreamFlag + "/events"
	}

	if streamURL != "" {
		listener := upstream.NewListener(streamURL)
		defer listener.Close()

		go func() {
			if err := listener.Listen(ctx, func(kind string, payload []byte) {
				// Ingest already logs drops; nothing left to do with the error.
				_ = srv.Ingest(kind, payload)
			}); err != nil && ctx.Err() == nil {
				log.Error("upstream listener stopped", "url", streamURL, "error", err)
			}
		}()
	} else {
		log.Warn("no upstream stream configured, serving ingest endpoint only")
	}

	log.Info("bridge listening", "host", host, "port", port, "upstream", rpcURL)

	return srv.Start()
}

/*
bucketArchive builds the S3 snapshot archive when an endpoint is
configured, falling back to the in-memory archive otherwise.
*/
func bucketArchive(ctx context.Context) stores.Archiver {
	endpoint := viper.GetString("archive.s3.endpoint")

	if endpoint == "" {
		return nil
	}

	conn, err := s3.NewConn(
		endpoint,
		viper.GetString("archive.s3.accessKey"),
		viper.GetString("archive.s3.secretKey"),
		viper.GetString("archive.s3.bucket"),
		viper.GetBool("archive.s3.useSSL"),
	)

	if err != nil {
		log.Error("s3 archive unavailable, using in-memory archive", "error", err)
		return nil
	}

	if err := conn.EnsureBucket(ctx); err != nil {
		log.Error("s3 bucket unavailable, using in-memory archive", "error", err)
		return nil
	}

	return s3.NewStore(conn)
}

/*
sweepLoop periodically evicts stopped and abandoned sessions from the
live registry and archives their final snapshots.
*/
func sweepLoop(ctx context.Context, srv *service.BridgeServer) {
	interval := viper.GetDuration("archive.sweep.interval")

	if interval <= 0 {
		interval = 10 * time.Minute
	}

	maxAge := viper.GetDuration("archive.sweep.maxAge")

	if maxAge <= 0 {
		maxAge = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, snapshot := range srv.Registry().Sweep(maxAge) {
				srv.Archive().Put(snapshot)
			}
		}
	}
}

func setLogLevel() {
	level, err := log.ParseLevel(viper.GetString("log.level"))

	if err == nil {
		log.SetLevel(level)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 3210, "Port to serve on")
	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "0.0.0.0", "Host address to bind to")
	serveCmd.Flags().StringVarP(&upstreamFlag, "upstream", "u", "", "Base URL of the upstream agent (overrides config)")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

var longServe = `
Run the bridge service: ingest the upstream agent's event stream,
maintain per-session state, and serve the JSON-RPC control surface and
per-session SSE streams to clients.

Examples:
  # Serve on the default port against the configured upstream
  agui-go serve

  # Serve on port 8080 against a local agent
  agui-go serve --port 8080 --upstream http://localhost:9000
`
