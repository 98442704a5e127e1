package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/flarexio/secsearch"
	"github.com/flarexio/secsearch/embedding"
	"github.com/flarexio/secsearch/persistence/chromem"
	"github.com/flarexio/secsearch/persistence/sqlite"
	"github.com/flarexio/secsearch/source"
	"github.com/flarexio/secsearch/source/edgar"
	"github.com/flarexio/secsearch/source/file"

	mcpE "github.com/flarexio/secsearch/mcp"
	httpT "github.com/flarexio/secsearch/transport/http"
	natsT "github.com/flarexio/secsearch/transport/nats"
)

func main() {
	cmd := &cli.Command{
		Name:  "secsearch",
		Usage: "Semantic search over SEC 10-K and 10-Q filings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Path to the SECSearch home, holding config.yaml and data",
			},
			&cli.StringFlag{
				Name:    "source-dir",
				Usage:   "Read filings from a local directory instead of EDGAR",
				Sources: cli.EnvVars("SECSEARCH_SOURCE_DIR"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve the API over NATS and HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "nats",
						Usage:   "NATS server URL, empty to disable",
						Sources: cli.EnvVars("NATS_URL"),
					},
					&cli.StringFlag{
						Name:    "nats-creds",
						Usage:   "NATS user credentials file",
						Sources: cli.EnvVars("NATS_CREDS"),
					},
					&cli.StringFlag{
						Name:  "edge-id",
						Usage: "Edge ID used in the NATS topic",
					},
					&cli.BoolFlag{
						Name:  "http",
						Usage: "Enable HTTP transport",
						Value: true,
					},
					&cli.StringFlag{
						Name:  "http-addr",
						Usage: "HTTP server address",
						Value: ":8080",
					},
				},
				Action: serve,
			},
			{
				Name:      "ingest",
				Usage:     "Ingest filings of one or more tickers, the latest of each form by default",
				ArgsUsage: "TICKER [TICKER...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "forms",
						Usage: "Comma separated form types",
						Value: "10-K,10-Q",
					},
					&cli.IntFlag{
						Name:  "count",
						Usage: "Number of most recent filings per ticker and form",
					},
					&cli.IntFlag{
						Name:  "year",
						Usage: "Only filings from this year",
					},
					&cli.StringFlag{
						Name:  "start",
						Usage: "Only filings on or after this date, YYYY-MM-DD",
					},
					&cli.StringFlag{
						Name:  "end",
						Usage: "Only filings on or before this date, YYYY-MM-DD",
					},
				},
				Action: ingest,
			},
			{
				Name:      "search",
				Usage:     "Search the ingested filings",
				ArgsUsage: "QUERY",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Maximum number of results",
					},
					&cli.StringFlag{
						Name:  "ticker",
						Usage: "Restrict results to a ticker",
					},
					&cli.StringFlag{
						Name:  "form",
						Usage: "Restrict results to a form type",
					},
					&cli.StringFlag{
						Name:  "filing",
						Usage: "Restrict results to a filing key",
					},
					&cli.FloatFlag{
						Name:  "min-similarity",
						Usage: "Drop results below this similarity",
					},
				},
				Action: search,
			},
			{
				Name:  "filings",
				Usage: "Manage registered filings",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "List registered filings",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "ticker",
								Usage: "Only filings of this ticker",
							},
							&cli.StringFlag{
								Name:  "form",
								Usage: "Only filings of this form type",
							},
						},
						Action: listFilings,
					},
					{
						Name:      "remove",
						Usage:     "Remove a filing and its chunks",
						ArgsUsage: "FILING_KEY",
						Action:    removeFiling,
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show registry and index status",
				Action: status,
			},
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

func homePath(cmd *cli.Command) (string, error) {
	path := cmd.String("path")
	if path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".flarex", "secsearch"), nil
}

func resolve(base string, path string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(base, path)
}

// newService builds the local service and returns the filing source it
// ingests from, nil when none is configured.
func newService(ctx context.Context, cmd *cli.Command, opts ...secsearch.ServiceOption) (secsearch.Service, source.Source, error) {
	path, err := homePath(cmd)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := secsearch.LoadConfig(filepath.Join(path, "config.yaml"))
	if err != nil {
		return nil, nil, err
	}

	log, err := secsearch.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}

	zap.ReplaceGlobals(log)

	cfg.Vector.Path = resolve(path, cfg.Vector.Path)
	cfg.Registry.Path = resolve(path, cfg.Registry.Path)

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, nil, err
	}

	vector, err := chromem.NewChromemVectorDB(cfg.Vector)
	if err != nil {
		return nil, nil, err
	}

	registry, err := sqlite.NewRegistry(cfg.Registry)
	if err != nil {
		return nil, nil, err
	}

	var src source.Source
	switch dir := cmd.String("source-dir"); {
	case dir != "":
		src = file.NewSource(dir)

	case cfg.EDGAR.IdentityName != "" && cfg.EDGAR.IdentityEmail != "":
		src, err = edgar.NewSource(cfg.EDGAR)
		if err != nil {
			registry.Close()
			return nil, nil, err
		}
	}

	svc, err := secsearch.NewService(ctx, cfg, src, embedder, vector, registry, opts...)
	if err != nil {
		registry.Close()
		return nil, nil, err
	}

	return secsearch.LoggingMiddleware(log)(svc), src, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	svc, _, err := newService(ctx, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	log := zap.L()

	endpoints := secsearch.MakeEndpoints(svc)

	natsURL := cmd.String("nats")
	httpEnabled := cmd.Bool("http")

	if natsURL == "" && !httpEnabled {
		return errors.New("no transport enabled")
	}

	// Add NATS Transport
	if natsURL != "" {
		path, err := homePath(cmd)
		if err != nil {
			return err
		}

		edgeID := cmd.String("edge-id")
		if edgeID == "" {
			if idBytes, err := os.ReadFile(filepath.Join(path, "id")); err == nil {
				edgeID = strings.TrimSpace(string(idBytes))
			}
		}

		natsCreds := cmd.String("nats-creds")
		if natsCreds == "" {
			natsCreds = filepath.Join(path, "user.creds")
		}

		opts := []nats.Option{
			nats.Name("SECSearch Server - " + edgeID),
		}

		if _, err := os.Stat(natsCreds); err == nil {
			opts = append(opts, nats.UserCredentials(natsCreds))
		}

		nc, err := nats.Connect(natsURL, opts...)
		if err != nil {
			return err
		}
		defer nc.Drain()

		srv, err := micro.AddService(nc, micro.Config{
			Name:    "secsearch",
			Version: "1.0.0",
		})

		if err != nil {
			return err
		}
		defer srv.Stop()

		topic := "secsearch"
		if edgeID != "" {
			topic = "edges." + edgeID + ".secsearch"
		}

		root := srv.AddGroup(topic)
		if err := natsT.AddEndpoints(root, endpoints); err != nil {
			return err
		}

		log.Info("nats transport ready", zap.String("topic", topic))
	}

	if httpEnabled {
		r := gin.Default()
		httpT.AddRouters(r, endpoints)
		httpT.AddStreamableRouters(r, mcpE.MakeEndpoints(svc))

		httpAddr := cmd.String("http-addr")
		go r.Run(httpAddr)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sign := <-quit

	log.Info("graceful shutdown", zap.String("signal", sign.String()))
	return nil
}

func ingest(ctx context.Context, cmd *cli.Command) error {
	tickers := cmd.Args().Slice()
	if len(tickers) == 0 {
		return errors.New("at least one ticker is required")
	}

	forms, err := secsearch.ParseFormTypes(cmd.String("forms"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	progress := func(filingKey string, state secsearch.State) {
		fmt.Fprintf(os.Stderr, "%s: %s\n", filingKey, state)
	}

	svc, src, err := newService(ctx, cmd, secsearch.WithProgress(progress))
	if err != nil {
		return err
	}
	defer svc.Close()

	reqs := make([]secsearch.IngestRequest, 0, len(tickers)*len(forms))
	for _, ticker := range tickers {
		for _, form := range forms {
			reqs = append(reqs, secsearch.IngestRequest{
				Ticker:    ticker,
				FormType:  string(form),
				Count:     int(cmd.Int("count")),
				Year:      int(cmd.Int("year")),
				StartDate: cmd.String("start"),
				EndDate:   cmd.String("end"),
			})
		}
	}

	reqs, err = secsearch.SelectFilings(ctx, src, reqs)
	if err != nil {
		return err
	}

	outcomes := secsearch.IngestBatch(ctx, svc, reqs)
	if err := printJSON(outcomes); err != nil {
		return err
	}

	for _, o := range outcomes {
		if o.Error != "" && !o.Skipped {
			return errors.New("some filings failed to ingest")
		}
	}

	return nil
}

func search(ctx context.Context, cmd *cli.Command) error {
	text := strings.Join(cmd.Args().Slice(), " ")

	q := secsearch.Query{
		Text:      text,
		TopK:      int(cmd.Int("top-k")),
		Ticker:    cmd.String("ticker"),
		FormType:  cmd.String("form"),
		FilingKey: cmd.String("filing"),
	}

	if cmd.IsSet("min-similarity") {
		minSimilarity := cmd.Float("min-similarity")
		q.MinSimilarity = &minSimilarity
	}

	svc, _, err := newService(ctx, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	results, err := svc.Search(ctx, q)
	if err != nil {
		return err
	}

	return printJSON(results)
}

func listFilings(ctx context.Context, cmd *cli.Command) error {
	svc, _, err := newService(ctx, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	filings, err := svc.ListFilings(ctx, secsearch.ListFilingsRequest{
		Ticker:   cmd.String("ticker"),
		FormType: cmd.String("form"),
	})
	if err != nil {
		return err
	}

	return printJSON(filings)
}

func removeFiling(ctx context.Context, cmd *cli.Command) error {
	filingKey := cmd.Args().First()
	if filingKey == "" {
		return errors.New("filing key is required")
	}

	svc, _, err := newService(ctx, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.RemoveFiling(ctx, filingKey)
	if err != nil {
		return err
	}

	return printJSON(result)
}

func status(ctx context.Context, cmd *cli.Command) error {
	svc, _, err := newService(ctx, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	status, err := svc.Status(ctx)
	if err != nil {
		return err
	}

	return printJSON(status)
}
