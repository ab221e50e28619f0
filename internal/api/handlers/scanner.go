package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sphincs.io/sphincs/internal/governance/audit"
	apperrors "sphincs.io/sphincs/internal/pkg/errors"
	"sphincs.io/sphincs/internal/pkg/logger"
)

// RunScan handles POST /scanner/run.
func (s *Server) RunScan(c *gin.Context) {
	if s.scans == nil {
		_ = c.Error(apperrors.New(apperrors.CodeScanEnqueueFail, "scanner is not available", http.StatusServiceUnavailable))
		return
	}

	actor := actorFromCtx(c)
	res, err := s.scans.Dispatch(c.Request.Context(), actor)
	if err != nil {
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeScanEnqueueFail, "could not start scan", http.StatusInternalServerError))
		return
	}
	logger.Info("on-demand scan requested",
		zap.String("actor", actor),
		zap.String("mode", res.Mode),
		zap.Int64("job_id", res.JobID),
		zap.Bool("duplicate", res.Duplicate),
	)
	s.record(c, audit.ActionScanRun, audit.ResourceScanner, strconv.FormatInt(res.JobID, 10), map[string]any{
		"mode":      res.Mode,
		"duplicate": res.Duplicate,
	})
	c.JSON(http.StatusAccepted, res)
}
