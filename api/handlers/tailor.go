package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/tailorflow/api"
	"github.com/BaSui01/tailorflow/tailor"
	"github.com/BaSui01/tailorflow/types"
	wf "github.com/BaSui01/tailorflow/workflow"
)

// =============================================================================
// ✂️ 简历定制 Handler
// =============================================================================

// TailorRunner 运行定制流水线，tailor.Pipeline 实现了它
type TailorRunner interface {
	Run(ctx context.Context, document, jobDescription string, threshold float64) (*tailor.Bundle, error)
	Graph(threshold float64) (*wf.Graph, error)
}

// TailorHandler 简历定制处理器
type TailorHandler struct {
	runner    TailorRunner
	threshold float64
	timeout   time.Duration
	logger    *zap.Logger
}

// NewTailorHandler 创建定制处理器。threshold 为请求未指定时的合规阈值，
// timeout 为单次运行的上限（0 表示只受请求上下文约束）。
func NewTailorHandler(runner TailorRunner, threshold float64, timeout time.Duration, logger *zap.Logger) *TailorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TailorHandler{
		runner:    runner,
		threshold: threshold,
		timeout:   timeout,
		logger:    logger.With(zap.String("handler", "tailor")),
	}
}

// HandleTailor 处理定制请求
// @Summary 定制简历
// @Description 针对职位描述定制 LaTeX 简历
// @Tags 定制
// @Accept json
// @Produce json
// @Param request body api.TailorRequest true "定制请求"
// @Success 200 {object} Response "定制结果"
// @Failure 400 {object} Response "无效请求"
// @Failure 502 {object} Response "协作方失败，data 中带部分结果"
// @Failure 504 {object} Response "运行超时，data 中带部分结果"
// @Security ApiKeyAuth
// @Router /api/v1/tailor [post]
func (h *TailorHandler) HandleTailor(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.TailorRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	threshold := h.threshold
	if req.ComplianceThreshold != nil {
		threshold = *req.ComplianceThreshold
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	bundle, err := h.runner.Run(ctx, req.Document, req.JobDescription, threshold)
	if err != nil {
		apiErr := ToError(err)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) &&
			(errors.Is(err, context.DeadlineExceeded) || apiErr.Code == types.ErrInternalError) {
			apiErr = types.NewError(types.ErrTimeout, "tailoring run timed out").
				WithPhase(apiErr.Phase).
				WithCause(err)
		}
		if bundle != nil {
			WriteErrorWithData(w, r, apiErr, api.NewTailorResponse(bundle), h.logger)
			return
		}
		WriteError(w, r, apiErr, h.logger)
		return
	}

	h.logger.Info("tailoring run completed",
		zap.String("run_id", bundle.RunID),
		zap.Float64("threshold", threshold),
		zap.Float64("score", bundle.Score()),
		zap.Int("phases", len(bundle.Visited)),
		zap.Duration("duration", time.Since(start)),
	)

	WriteSuccess(w, r, api.NewTailorResponse(bundle))
}

// HandleGraph 返回指定阈值下的阶段图结构
// @Summary 阶段图
// @Tags 定制
// @Produce json
// @Param threshold query number false "合规阈值"
// @Success 200 {object} Response "阶段图"
// @Router /api/v1/graph [get]
func (h *TailorHandler) HandleGraph(w http.ResponseWriter, r *http.Request) {
	threshold := h.threshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || v < 0 || v > 100 {
			WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest,
				"threshold must be a number in 0..100", h.logger)
			return
		}
		threshold = v
	}

	g, err := h.runner.Graph(threshold)
	if err != nil {
		WriteError(w, r, ToError(err), h.logger)
		return
	}
	WriteSuccess(w, r, api.NewGraphResponse(g))
}
