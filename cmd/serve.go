package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/claims-cli/internal/model"
	"github.com/sells-group/claims-cli/internal/pipeline"
)

var (
	servePort    int
	serveOffline bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the adjudication HTTP server",
	Long:  "Starts an HTTP server that adjudicates claims submitted to POST /adjudicate.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP server port (0 = config default)")
	serveCmd.Flags().BoolVar(&serveOffline, "offline", false, "use stub collaborators instead of live services")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := buildEnv(ctx, serveOffline, true)
	if err != nil {
		return err
	}
	defer env.Close()

	batch := pipeline.NewBatch(env.Executor,
		pipeline.WithStore(env.Store),
		pipeline.WithAnomalyFields(cfg.Anomaly.Fields, cfg.Anomaly.StdFloor),
		pipeline.WithConcurrency(cfg.Batch.Concurrency),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/adjudicate", func(w http.ResponseWriter, req *http.Request) {
		serveAdjudicate(w, req, batch)
	})

	port := cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	zap.L().Info("starting adjudication server", zap.String("addr", addr))

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down adjudication server")
		_ = srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "adjudication server")
	}
	return nil
}

// adjudicateRequest is a batch of raw claim records. Each record maps
// column names to values, exactly as a CSV row would.
type adjudicateRequest struct {
	Claims []map[string]string `json:"claims"`
}

type adjudicateResponse struct {
	RunID     string             `json:"run_id,omitempty"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Results   []adjudicateResult `json:"results"`
}

type adjudicateResult struct {
	ClaimID    string              `json:"claim_id"`
	Decision   model.Decision      `json:"decision"`
	FraudScore float64             `json:"fraud_score"`
	Anomaly    model.AnomalyResult `json:"anomaly"`
	Escalated  bool                `json:"escalated"`
	Trace      []string            `json:"trace"`
	Error      string              `json:"error,omitempty"`
}

func serveAdjudicate(w http.ResponseWriter, req *http.Request, batch *pipeline.Batch) {
	var body adjudicateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(body.Claims) == 0 {
		http.Error(w, "no claims in request", http.StatusBadRequest)
		return
	}

	claims := make([]model.Claim, 0, len(body.Claims))
	for _, record := range body.Claims {
		claims = append(claims, model.NewClaim(record))
	}

	result, err := batch.Process(req.Context(), claims, "http")
	if err != nil {
		zap.L().Error("serve: batch failed", zap.Error(err))
		http.Error(w, "adjudication failed", http.StatusInternalServerError)
		return
	}

	resp := adjudicateResponse{
		RunID:     result.RunID,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Results:   make([]adjudicateResult, 0, len(result.States)),
	}
	for _, st := range result.States {
		resp.Results = append(resp.Results, adjudicateResult{
			ClaimID:    st.Claim.DisplayID(),
			Decision:   st.Decision,
			FraudScore: st.Fraud.Score,
			Anomaly:    st.Anomaly,
			Escalated:  st.Escalation.Required,
			Trace:      st.Trace,
			Error:      st.Error,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		zap.L().Warn("serve: encode response", zap.Error(err))
	}
}
