package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kulbirminhas-aiinitiative/maestro-platform-sub014/pkg/domain"
)

// RunSubmitRequest represents a run submission request. Graph carries the
// serialized graph document produced by Graph.ToMap.
type RunSubmitRequest struct {
	Graph         map[string]interface{} `json:"graph" binding:"required"`
	GlobalContext map[string]interface{} `json:"global_context"`
}

// RunSubmitResponse represents a run submission response
type RunSubmitResponse struct {
	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
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

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSubmitRun handles run submission
func (s *Server) handleSubmitRun(c *gin.Context) {
	var req RunSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	graph, err := domain.GraphFromMap(req.Graph)
	if err != nil {
		s.logger.Error("invalid graph document", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_GRAPH",
				Message: err.Error(),
			},
		})
		return
	}

	executionID, err := s.orchestrator.SubmitRun(c.Request.Context(), graph, req.GlobalContext)
	if err != nil {
		s.logger.Error("failed to submit run", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "SUBMISSION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, RunSubmitResponse{
		ExecutionID: executionID,
		WorkflowID:  graph.ID,
		Status:      string(domain.RunStatusRunning),
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleListRuns handles listing checkpointed runs
func (s *Server) handleListRuns(c *gin.Context) {
	workflowID := c.Query("workflow_id")

	ids, err := s.orchestrator.ListRuns(c.Request.Context(), workflowID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "LIST_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"executions": ids,
		"total":      len(ids),
	})
}

// handleGetRun handles getting the latest checkpointed run state
func (s *Server) handleGetRun(c *gin.Context) {
	executionID := c.Param("id")

	state, err := s.orchestrator.GetStatus(c.Request.Context(), executionID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Execution not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, state)
}

// handleGetSummary handles getting the final run summary
func (s *Server) handleGetSummary(c *gin.Context) {
	executionID := c.Param("id")

	summary, err := s.orchestrator.GetSummary(executionID)
	if err != nil {
		if errors.Is(err, domain.ErrExecutionNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: ErrorDetail{
					Code:    "NOT_FOUND",
					Message: "Execution not found",
				},
			})
			return
		}
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_COMPLETED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// handleCancelRun handles run cancellation
func (s *Server) handleCancelRun(c *gin.Context) {
	executionID := c.Param("id")

	if err := s.orchestrator.CancelRun(c.Request.Context(), executionID); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{
				Code:    "CANCELLATION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"execution_id": executionID,
		"status":       string(domain.RunStatusCancelled),
		"cancelled_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleResumeRun handles resuming a checkpointed run
func (s *Server) handleResumeRun(c *gin.Context) {
	executionID := c.Param("id")

	if err := s.orchestrator.ResumeRun(c.Request.Context(), executionID); err != nil {
		status := http.StatusConflict
		if errors.Is(err, domain.ErrExecutionNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{
			Error: ErrorDetail{
				Code:    "RESUME_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"execution_id": executionID,
		"status":       string(domain.RunStatusRunning),
		"resumed_at":   time.Now().UTC().Format(time.RFC3339),
	})
}
