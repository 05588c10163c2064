package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aescanero/batchflow/internal/application/orchestrator"
	"github.com/aescanero/batchflow/pkg/domain"
	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/record"
)

// JobSubmitResponse represents a job submission response
type JobSubmitResponse struct {
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submitted_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// AttributeInfo describes one schema attribute
type AttributeInfo struct {
	Name string         `json:"name"`
	Type graph.AttrType `json:"type"`
	Key  bool           `json:"key,omitempty"`
}

// GraphSummary describes the shared graph
type GraphSummary struct {
	Nodes              int             `json:"nodes"`
	Relations          int             `json:"relations"`
	Version            uint64          `json:"version"`
	NodeAttributes     []AttributeInfo `json:"node_attributes"`
	RelationAttributes []AttributeInfo `json:"relation_attributes"`
}

func abort(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// handleHealth reports the worker pool health
func (s *Server) handleHealth(c *gin.Context) {
	checks := gin.H{"orchestrator": "ok"}
	status, code := "healthy", http.StatusOK

	if s.pool != nil {
		health := s.pool.Health().GetStatus()
		checks["workers"] = health
		if !health.Healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleListStages lists the registered stages with their defaults
func (s *Server) handleListStages(c *gin.Context) {
	stages := s.stages.List()
	c.JSON(http.StatusOK, gin.H{
		"stages": stages,
		"total":  len(stages),
	})
}

// handleGetGraph summarizes the shared graph
func (s *Server) handleGetGraph(c *gin.Context) {
	store := s.manager.Store()
	snap := store.Snapshot()

	c.JSON(http.StatusOK, GraphSummary{
		Nodes:              snap.NodeCount(),
		Relations:          snap.RelationCount(),
		Version:            store.Version(),
		NodeAttributes:     attributeInfos(snap.Attributes(graph.KindNode)),
		RelationAttributes: attributeInfos(snap.Attributes(graph.KindRelation)),
	})
}

func attributeInfos(attrs []graph.Attribute) []AttributeInfo {
	out := make([]AttributeInfo, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, AttributeInfo{Name: a.Name, Type: a.Type, Key: a.Key})
	}
	return out
}

// handleGetRecords pages through the shared graph as a record set
func (s *Server) handleGetRecords(c *gin.Context) {
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	page := record.All(s.manager.Store().Snapshot()).Slice(offset, limit)

	c.Header("Content-Type", "application/json; charset=utf-8")
	c.Status(http.StatusOK)
	if err := record.Encode(c.Writer, page); err != nil {
		s.logger.Error("failed to encode records", zap.Error(err))
	}
}

// handleAddRecords loads a record set into the shared graph
func (s *Server) handleAddRecords(c *gin.Context) {
	rs, err := record.Decode(c.Request.Body)
	if err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	res, err := record.Load(c.Request.Context(), s.manager.Store(), rs)
	if err != nil {
		s.logger.Error("failed to load records", zap.Error(err))
		abort(c, http.StatusUnprocessableEntity, "LOAD_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"rows":          rs.Len(),
		"nodes_created": res.NodesCreated,
		"finalize":      res.Finalize,
	})
}

// handleSubmitJob handles job submission
func (s *Server) handleSubmitJob(c *gin.Context) {
	var spec domain.JobSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	jobID, err := s.manager.SubmitJob(c.Request.Context(), spec)
	if err != nil {
		s.logger.Error("failed to submit job", zap.Error(err))
		abort(c, http.StatusUnprocessableEntity, "SUBMISSION_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusCreated, JobSubmitResponse{
		JobID:       jobID,
		Status:      string(domain.ExecutionStatusSubmitted),
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleListJobs lists every known job
func (s *Server) handleListJobs(c *gin.Context) {
	jobs, err := s.manager.ListJobs(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list jobs", zap.Error(err))
		abort(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		return
	}
	if jobs == nil {
		jobs = []*domain.JobState{}
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// handleGetJob returns a job's state with live progress
func (s *Server) handleGetJob(c *gin.Context) {
	jobID := c.Param("id")

	state, err := s.manager.GetStatus(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			abort(c, http.StatusNotFound, "NOT_FOUND", "Job not found")
			return
		}
		s.logger.Error("failed to get job", zap.String("job_id", jobID), zap.Error(err))
		abort(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		return
	}

	c.JSON(http.StatusOK, state)
}

// handleCancelJob handles job cancellation
func (s *Server) handleCancelJob(c *gin.Context) {
	jobID := c.Param("id")

	if err := s.manager.CancelJob(c.Request.Context(), jobID); err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			abort(c, http.StatusNotFound, "NOT_FOUND", "Job not found")
		case errors.Is(err, orchestrator.ErrJobTerminal):
			abort(c, http.StatusConflict, "CANCELLATION_FAILED", err.Error())
		default:
			abort(c, http.StatusInternalServerError, "CANCELLATION_FAILED", err.Error())
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":       jobID,
		"status":       "cancelling",
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}
