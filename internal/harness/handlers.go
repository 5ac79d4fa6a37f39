package harness

import (
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"trailnotify/internal/logging"
	"trailnotify/internal/notifier"
	"trailnotify/internal/rules"
	"trailnotify/internal/types"
)

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	Rules     int    `json:"rules"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, healthResponse{
		Status:    "ok",
		Version:   s.Build.Version,
		Commit:    s.Build.Commit,
		BuildTime: s.Build.BuildTime,
		Rules:     len(s.Rules),
	})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	table := s.Rules
	if table == nil {
		table = []rules.Rule{}
	}
	JSON(w, r, http.StatusOK, map[string]any{"rules": table})
}

// handleInvoke runs the body, a CloudWatch Logs subscription event, through
// the pipeline. An envelope without data is acknowledged with an empty
// summary, as the Lambda handler does.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var ev events.CloudwatchLogsEvent
	if err := DecodeJSON(w, r, &ev); err != nil {
		Error(w, r, err)
		return
	}

	logger := logging.NewAdapter(s.Logger).With("request_id", types.GetRequestID(r.Context()))
	ctx := types.WithLogger(r.Context(), logger)

	if ev.AWSLogs.Data == "" {
		logger.Info("skipping: no records in event")
		JSON(w, r, http.StatusOK, &notifier.Summary{})
		return
	}

	summary, err := s.Pipeline.ProcessData(ctx, ev.AWSLogs.Data)
	if err != nil {
		var de *types.DecodeError
		if errors.As(err, &de) {
			Error(w, r, decodeFailure(de))
			return
		}
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, summary)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	Error(w, r, types.NewAppError(types.ErrCodeNotFound, "route not found: "+r.Method+" "+r.URL.Path, nil))
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	appErr := types.NewAppError(types.ErrCodeMethodNotAllowed, "method not allowed: "+r.Method+" "+r.URL.Path, nil)
	Error(w, r, appErr)
}
