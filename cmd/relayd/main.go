// relayd is the client-side half of the BPO handoff protocol. It connects to
// the routing engine's worker event stream, watches for transferTo stamps,
// and exposes the two intercepted desk actions (transfer, accept) as local
// endpoints the agent desk host calls instead of the engine directly.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fvmach/BPO-Assignment/internal/engine"
	"github.com/fvmach/BPO-Assignment/internal/relay"
	"github.com/fvmach/BPO-Assignment/internal/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	engineURL := os.Getenv("ENGINE_URL")
	if engineURL == "" {
		engineURL = "http://localhost:8461"
	}
	workspaceSid := os.Getenv("ENGINE_WORKSPACE_SID")
	workerSid := os.Getenv("WORKER_SID")
	workflowSid := os.Getenv("ATTRIBUTION_WORKFLOW_SID")
	if workspaceSid == "" || workerSid == "" || workflowSid == "" {
		slog.Error("ENGINE_WORKSPACE_SID, WORKER_SID, and ATTRIBUTION_WORKFLOW_SID are required")
		os.Exit(1)
	}
	functionsURL := os.Getenv("FUNCTIONS_URL")
	if functionsURL == "" {
		functionsURL = "http://localhost:8080"
	}
	listen := os.Getenv("LISTEN_ADDR")
	if listen == "" {
		listen = "127.0.0.1:9090"
	}

	engineClient := engine.NewClient(engineURL, workspaceSid)
	functions := relay.NewFunctionsClient(functionsURL, workerSid, []byte(os.Getenv("SIGNING_KEY")))

	ledger := relay.NewLedger()
	rotator := relay.NewRotator()
	notifier := relay.LogNotifier{Log: logger}

	interceptor := relay.NewInterceptor(engineClient, functions, ledger, rotator, workflowSid, logger)
	finalizer := relay.NewFinalizer(engineClient, functions, notifier, workerSid, logger)
	watcher := relay.NewWatcher(engineClient, ledger, interceptor.Transfer, logger)

	subscriber := stream.NewSubscriber(engineClient.EventsURL(workerSid), watcher.HandleEvent, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /actions/transfer", actionHandler(func(ctx context.Context, body []byte) error {
		var req relay.TransferRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return errBadRequest
		}
		return interceptor.Transfer(ctx, req)
	}))
	mux.HandleFunc("POST /actions/accept", actionHandler(func(ctx context.Context, body []byte) error {
		var req relay.AcceptRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return errBadRequest
		}
		return finalizer.Accept(ctx, req)
	}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{Addr: listen, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return subscriber.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("Starting relay action server", "addr", listen, "worker_sid", workerSid)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("relayd stopped", "error", err)
		os.Exit(1)
	}
}

var errBadRequest = errors.New("invalid JSON")

// actionHandler adapts an intercepted desk action to a local HTTP endpoint.
func actionHandler(action func(ctx context.Context, body []byte) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(r)
		if err != nil {
			http.Error(w, `{"success":false,"error":"could not read body"}`, http.StatusBadRequest)
			return
		}
		if err := action(r.Context(), body); err != nil {
			if errors.Is(err, errBadRequest) {
				http.Error(w, `{"success":false,"error":"invalid JSON"}`, http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 1<<20))
}
