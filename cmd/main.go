// jobmate marketplace client
//
// Runs one user session against the marketplace backend:
//   - feed:  one-shot filtered fetch, prints the feed
//   - post:  pays the posting fee on-chain, then creates the job
//   - serve: exposes the session over gRPC for the UI, refreshes the feed on a schedule
//
// Optional stores: PostgreSQL keeps the consumed-receipt journal across
// restarts, Redis receives EVENT_PAYMENT_* and EVENT_JOB_POSTED.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"jobmate/marketplace-client/internal/app"
	"jobmate/marketplace-client/internal/backend"
	"jobmate/marketplace-client/internal/config"
	"jobmate/marketplace-client/internal/db"
	"jobmate/marketplace-client/internal/events"
	"jobmate/marketplace-client/internal/feed"
	"jobmate/marketplace-client/internal/grpcserver"
	"jobmate/marketplace-client/internal/ledger"
	"jobmate/marketplace-client/internal/logger"
	"jobmate/marketplace-client/internal/model"
	"jobmate/marketplace-client/internal/payment"
	"jobmate/marketplace-client/internal/presenter"
	"jobmate/marketplace-client/internal/scheduler"
	"jobmate/marketplace-client/internal/session"
	"jobmate/marketplace-client/internal/submission"
	"jobmate/marketplace-client/internal/wallet"
)

const (
	version = "1.0.0"
	service = "marketplace-client"
)

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not read .env")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[%s] Config error: %v", service, err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("[%s] Logger error: %v", service, err)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := build(ctx, cfg)
	if err != nil {
		log.Fatalf("[%s] Startup error: %v", service, err)
	}
	defer rt.close()

	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "feed":
		err = runFeed(ctx, rt, args)
	case "post":
		err = runPost(ctx, rt, args)
	case "serve":
		err = runServe(ctx, rt, args)
	default:
		usage()
		rt.close()
		os.Exit(2)
	}
	if err != nil {
		rt.close()
		log.Fatalf("[%s] %s: %v", service, os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <feed|post|serve> [flags]\n", os.Args[0])
}

// ─── Wiring ──────────────────────────────────────────────────────────────────

type runtime struct {
	cfg     *config.Config
	client  *app.Client
	closers []func()
}

func (r *runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

func build(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	sess, err := session.FromToken(cfg.Session.Token)
	if err != nil {
		return nil, err
	}
	if sess.Identity != nil {
		log.WithField("user", sess.Identity.ID).Info("session loaded")
	} else {
		log.Info("anonymous session")
	}

	api := backend.NewClient(cfg.Backend.URL, cfg.BackendTimeout())

	// ── Redis (optional) ─────────────────────────────────────────────────────
	var rc events.Client
	if cfg.Storage.RedisURL != "" {
		rdb, err := db.NewRedisClient(ctx, cfg.Storage.RedisURL)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = rdb.Close() })
		rc = rdb
		log.Info("Redis connected ✓")
	}
	pub := events.NewPublisher(rc)

	// ── PostgreSQL (optional) ────────────────────────────────────────────────
	subOpts := []submission.Option{submission.WithNotifier(pub)}
	if cfg.Storage.DatabaseURL != "" {
		pool, err := db.NewPostgresPool(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		store := ledger.NewStore(pool)
		if err := store.Migrate(ctx); err != nil {
			rt.close()
			return nil, err
		}
		subOpts = append(subOpts, submission.WithJournal(store))
		log.Info("PostgreSQL connected ✓")
	}

	// ── Wallet (optional) ────────────────────────────────────────────────────
	var capability wallet.Capability
	if cfg.Chain.PrivateKey != "" {
		kw, err := wallet.DialKeyed(ctx, cfg.Chain.RPCURL, cfg.Chain.PrivateKey, cfg.Chain.ChainID)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.closers = append(rt.closers, kw.Close)
		capability = kw
	} else {
		log.Warn("WALLET_PRIVATE_KEY not set, payments are unavailable")
	}

	pay := payment.NewOrchestrator(wallet.NewGateway(capability), cfg.RecipientAddress(), cfg.AmountWei(),
		payment.WithNotifier(pub))
	sub := submission.NewCoordinator(api, sess, subOpts...)
	fd := feed.NewCoordinator(api, sess, feed.Options{
		Debounce:        cfg.Debounce(),
		SuggestionLimit: cfg.Feed.SuggestionLimit,
		Threshold:       cfg.Feed.Threshold,
		RecommendLimit:  cfg.Feed.RecommendLimit,
	})
	rt.closers = append(rt.closers, fd.Close)

	rt.client = app.New(fd, pay, sub, sess, cfg.Chain.AmountETH, presenter.FeedOptions{
		ExplorerTxURL:  cfg.Chain.ExplorerTxURL,
		Threshold:      cfg.Feed.Threshold,
		RecommendLimit: cfg.Feed.RecommendLimit,
	})
	return rt, nil
}

// ─── feed ────────────────────────────────────────────────────────────────────

func runFeed(ctx context.Context, rt *runtime, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ExitOnError)
	q := fs.String("q", "", "free-text query")
	skills := fs.String("skills", "", "comma-separated skills")
	location := fs.String("location", "", "location")
	tags := fs.String("tags", "", "comma-separated tags")
	asJSON := fs.Bool("json", false, "print the view as JSON")
	recommend := fs.Bool("recommend", true, "show the recommendations panel")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := rt.client
	for field, value := range map[feed.Field]string{
		feed.FieldQuery:    *q,
		feed.FieldSkills:   *skills,
		feed.FieldLocation: *location,
		feed.FieldTags:     *tags,
	} {
		if err := c.Feed.SetFilter(field, value); err != nil {
			return err
		}
	}
	if err := c.Feed.FetchJobs(ctx); err != nil {
		log.WithError(err).Debug("fetch failed")
	}

	view := c.FeedView(*recommend, true)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	printFeed(view)
	return nil
}

func printFeed(v presenter.FeedView) {
	switch v.Status {
	case presenter.StatusError:
		fmt.Println(v.Error)
		return
	case presenter.StatusEmpty:
		fmt.Println("No jobs found.")
		return
	}

	if v.ShowRecommendations {
		if v.RecommendationHint != "" {
			fmt.Println(v.RecommendationHint)
		}
		for _, r := range v.Recommended {
			fmt.Printf("★ %s (%s) %s\n", r.Title, r.Match, r.Location)
		}
		fmt.Println()
	}
	for _, card := range v.Cards {
		fmt.Printf("%s  [%s]  %s  %s\n", card.Title, card.Budget, card.Location, card.Salary)
		if len(card.Skills) > 0 {
			fmt.Printf("  skills: %s\n", strings.Join(card.Skills, ", "))
		}
		if card.CreatorName != "" {
			fmt.Printf("  by %s %s\n", card.CreatorName, card.Posted)
		}
		if card.PaymentURL != "" {
			fmt.Printf("  payment: %s\n", card.PaymentURL)
		}
	}
	fmt.Printf("\n%s jobs\n", humanize.Comma(int64(len(v.Cards))))
}

// ─── post ────────────────────────────────────────────────────────────────────

func runPost(ctx context.Context, rt *runtime, args []string) error {
	fs := flag.NewFlagSet("post", flag.ExitOnError)
	form := model.DraftForm{}
	fs.StringVar(&form.Title, "title", "", "job title")
	fs.StringVar(&form.Description, "description", "", "job description")
	fs.StringVar(&form.Skills, "skills", "", "comma-separated skills")
	fs.StringVar(&form.Budget, "budget", "", "budget in ETH")
	fs.StringVar(&form.Salary, "salary", "", "yearly salary (optional)")
	fs.StringVar(&form.Location, "location", "", "location (empty for remote)")
	fs.StringVar(&form.Tags, "tags", "", "comma-separated tags")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Refuse a bad draft before any money moves.
	draft, err := model.ParseDraftForm(form)
	if err != nil {
		return err
	}
	if err := submission.ValidateDraft(draft.Sanitized()); err != nil {
		return err
	}

	if draft.IsRemote() {
		fmt.Println("Location: Remote")
	}

	c := rt.client
	fmt.Println(c.PostView().FeeNotice)
	receipt, err := c.Pay(ctx)
	if err != nil {
		return err
	}
	view := c.PostView()
	fmt.Println(view.PaymentBanner)
	log.WithFields(log.Fields{"tx": receipt.TxHash, "wallet": view.Wallet}).Info("payment confirmed")

	job, err := c.Post(ctx, form)
	if err != nil {
		return err
	}
	fmt.Printf("Job posted successfully! id=%s\n", job.ID)
	return nil
}

// ─── serve ───────────────────────────────────────────────────────────────────

func runServe(ctx context.Context, rt *runtime, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	grpcPort := fs.String("grpc-port", rt.cfg.Server.GRPCPort, "gRPC listen port")
	httpPort := fs.String("http-port", rt.cfg.Server.HTTPPort, "health endpoint port")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// ── Scheduler ────────────────────────────────────────────────────────────
	sched := scheduler.New(rt.client.Feed, rt.cfg.RefreshSpec())
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	// ── gRPC server ──────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", ":"+*grpcPort)
	if err != nil {
		return errors.Wrapf(err, "listen on :%s", *grpcPort)
	}
	gs := grpc.NewServer()
	grpcserver.Register(gs, grpcserver.NewServer(rt.client))
	go func() {
		log.Infof("[%s] v%s gRPC listening on :%s", service, version, *grpcPort)
		if err := gs.Serve(lis); err != nil {
			log.WithError(err).Error("gRPC server error")
		}
	}()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	srv := &http.Server{
		Addr:         ":" + *httpPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("[%s] health endpoint on :%s", service, *httpPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server error")
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	<-ctx.Done()
	log.Infof("[%s] Shutting down…", service)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown error")
	}
	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		gs.Stop()
	}
	log.Infof("[%s] Stopped.", service)
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": service,
		"version": version,
	})
}
