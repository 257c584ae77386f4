package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/tailorflow/api"
	"github.com/BaSui01/tailorflow/internal/runstore"
	"github.com/BaSui01/tailorflow/tailor"
	"github.com/BaSui01/tailorflow/types"
	wf "github.com/BaSui01/tailorflow/workflow"
)

// =============================================================================
// 📜 运行记录 Handler
// =============================================================================

// RunReader 读取持久化的运行记录，runstore.Store 实现了它
type RunReader interface {
	Get(ctx context.Context, id string) (*runstore.RunRecord, error)
	List(ctx context.Context, opts runstore.ListOptions) ([]runstore.RunRecord, error)
}

// RunsHandler 运行记录查询处理器
type RunsHandler struct {
	store   RunReader
	history *wf.ExecutionHistoryStore
	logger  *zap.Logger
}

// NewRunsHandler 创建运行记录处理器。store 或 history 为 nil 时对应端点返回 503。
func NewRunsHandler(store RunReader, history *wf.ExecutionHistoryStore, logger *zap.Logger) *RunsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunsHandler{
		store:   store,
		history: history,
		logger:  logger.With(zap.String("handler", "runs")),
	}
}

// HandleList 列出运行记录
// @Summary 运行记录列表
// @Tags 运行
// @Produce json
// @Param status query string false "completed 或 failed"
// @Param limit query int false "每页条数（最大 100）"
// @Param offset query int false "偏移"
// @Success 200 {object} Response "运行记录"
// @Security ApiKeyAuth
// @Router /api/v1/runs [get]
func (h *RunsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.unavailable(w, r, "run store is disabled")
		return
	}

	q := r.URL.Query()
	opts := runstore.ListOptions{Status: q.Get("status")}
	switch opts.Status {
	case "", string(wf.ExecutionStatusCompleted), string(wf.ExecutionStatusFailed):
	default:
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest,
			"status must be completed or failed", h.logger)
		return
	}

	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "limit must be a non-negative integer", h.logger)
		return
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "offset must be a non-negative integer", h.logger)
		return
	}

	runs, err := h.store.List(r.Context(), opts)
	if err != nil {
		WriteError(w, r, ToError(err), h.logger)
		return
	}
	if runs == nil {
		runs = []runstore.RunRecord{}
	}

	WriteSuccess(w, r, api.RunListResponse[runstore.RunRecord]{
		Runs:   runs,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// HandleGet 按 ID 读取运行记录
// @Summary 运行记录
// @Tags 运行
// @Produce json
// @Param id path string true "运行 ID"
// @Success 200 {object} Response "运行记录"
// @Failure 404 {object} Response "不存在"
// @Security ApiKeyAuth
// @Router /api/v1/runs/{id} [get]
func (h *RunsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.unavailable(w, r, "run store is disabled")
		return
	}

	id := r.PathValue("id")
	rec, err := h.store.Get(r.Context(), id)
	if errors.Is(err, runstore.ErrNotFound) {
		WriteErrorMessage(w, r, http.StatusNotFound, types.ErrNotFound, "run "+id+" not found", h.logger)
		return
	}
	if err != nil {
		WriteError(w, r, ToError(err), h.logger)
		return
	}
	WriteSuccess(w, r, rec)
}

// HandleHistory 返回运行的逐阶段执行轨迹。轨迹只保存在内存中，重启后丢失。
// @Summary 执行轨迹
// @Tags 运行
// @Produce json
// @Param id path string true "运行 ID"
// @Success 200 {object} Response "执行轨迹"
// @Failure 404 {object} Response "不存在"
// @Security ApiKeyAuth
// @Router /api/v1/runs/{id}/history [get]
func (h *RunsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.unavailable(w, r, "execution history is disabled")
		return
	}

	id := r.PathValue("id")
	hist, ok := h.history.Get(id)
	if !ok {
		WriteErrorMessage(w, r, http.StatusNotFound, types.ErrNotFound, "no history for run "+id, h.logger)
		return
	}
	WriteSuccess(w, r, hist)
}

// HandleListHistory 列出内存中的执行轨迹，按开始时间升序
// @Summary 执行轨迹列表
// @Tags 运行
// @Produce json
// @Param status query string false "running、completed 或 failed"
// @Param graph query string false "阶段图名称，默认为定制流水线"
// @Param limit query int false "每页条数（最大 100）"
// @Param offset query int false "偏移"
// @Success 200 {object} Response "执行轨迹"
// @Security ApiKeyAuth
// @Router /api/v1/history [get]
func (h *RunsHandler) HandleListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.unavailable(w, r, "execution history is disabled")
		return
	}

	q := r.URL.Query()
	graph := q.Get("graph")
	if graph == "" {
		graph = tailor.GraphName
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "limit must be a non-negative integer", h.logger)
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "offset must be a non-negative integer", h.logger)
		return
	}

	var runs []*wf.ExecutionHistory
	switch status := wf.ExecutionStatus(q.Get("status")); status {
	case "":
		runs = h.history.ListByGraph(graph)
	case wf.ExecutionStatusRunning, wf.ExecutionStatusCompleted, wf.ExecutionStatusFailed:
		for _, hist := range h.history.ListByStatus(status) {
			if hist.Graph == graph {
				runs = append(runs, hist)
			}
		}
	default:
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest,
			"status must be running, completed or failed", h.logger)
		return
	}

	if limit <= 0 || limit > maxHistoryPage {
		limit = maxHistoryPage
	}
	runs = page(runs, offset, limit)

	WriteSuccess(w, r, api.RunListResponse[*wf.ExecutionHistory]{
		Runs:   runs,
		Limit:  limit,
		Offset: offset,
	})
}

const maxHistoryPage = 100

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (h *RunsHandler) unavailable(w http.ResponseWriter, r *http.Request, msg string) {
	WriteErrorMessage(w, r, http.StatusServiceUnavailable, types.ErrServiceUnavailable, msg, h.logger)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid integer")
	}
	return v, nil
}
