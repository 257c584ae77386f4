package api

import (
	"time"

	"github.com/BaSui01/tailorflow/tailor"
	wf "github.com/BaSui01/tailorflow/workflow"
)

// =============================================================================
// 定制请求类型
// =============================================================================

// TailorRequest 定制请求
// @Description 简历定制请求结构
type TailorRequest struct {
	// LaTeX 简历原文
	Document string `json:"document" binding:"required"`
	// 目标职位描述
	JobDescription string `json:"job_description" binding:"required"`
	// 合规阈值（0-100），省略时使用服务端默认值
	ComplianceThreshold *float64 `json:"compliance_threshold,omitempty" example:"90"`
}

// TailorResponse 定制响应
// @Description 简历定制结果
type TailorResponse struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Threshold  float64   `json:"threshold"`
	Score      *float64  `json:"score,omitempty"`
	Document   string    `json:"document,omitempty"`
	Visited    []string  `json:"visited"`
	Messages   []Message `json:"messages"`
	FellBack   []string  `json:"fell_back,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	ErrorCode  string    `json:"error_code,omitempty"`
	ErrorPhase string    `json:"error_phase,omitempty"`
	Added      []string  `json:"added_keywords,omitempty"`
}

// Message 阶段日志
type Message struct {
	Phase string `json:"phase"`
	Text  string `json:"text"`
}

// NewTailorResponse 把 Bundle 投影为响应体
func NewTailorResponse(b *tailor.Bundle) *TailorResponse {
	if b == nil {
		return nil
	}
	resp := &TailorResponse{
		RunID:      b.RunID,
		Status:     string(b.Status),
		Threshold:  b.Threshold,
		StartedAt:  b.StartedAt,
		DurationMS: b.Duration.Milliseconds(),
		Visited:    make([]string, 0, len(b.Visited)),
		Messages:   make([]Message, 0, len(b.Messages)),
	}
	for _, id := range b.Visited {
		resp.Visited = append(resp.Visited, string(id))
	}
	for _, m := range b.Messages {
		resp.Messages = append(resp.Messages, Message{Phase: string(m.Phase), Text: m.Text})
	}
	if b.ComplianceResult != nil {
		score := b.ComplianceResult.Value
		resp.Score = &score
	}
	if b.TailoredDocument != nil {
		resp.Document = b.TailoredDocument.Content
	}
	for _, r := range []*tailor.SectionResult{b.WorkExperienceResult, b.SkillsResult} {
		if r != nil && r.FellBack {
			resp.FellBack = append(resp.FellBack, r.Section)
		}
	}
	if b.RefinementResult != nil {
		resp.Added = b.RefinementResult.Added
	}
	if b.Error != nil {
		resp.ErrorCode = string(b.Error.Code)
		resp.ErrorPhase = b.Error.Phase
	}
	return resp
}

// RunListResponse 运行记录列表
type RunListResponse[T any] struct {
	Runs   []T `json:"runs"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// =============================================================================
// 阶段图描述
// =============================================================================

// GraphResponse 阶段图结构
type GraphResponse struct {
	Name     string      `json:"name"`
	Entry    string      `json:"entry"`
	Nodes    []GraphNode `json:"nodes"`
	Disabled []string    `json:"disabled,omitempty"`
}

// GraphNode 阶段图节点
type GraphNode struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"`
	Rule     string     `json:"rule"`
	Next     []string   `json:"next,omitempty"`
	Branches [][]string `json:"branches,omitempty"`
}

// NewGraphResponse 描述一张已构建的阶段图
func NewGraphResponse(g *wf.Graph) *GraphResponse {
	resp := &GraphResponse{
		Name:  g.Name(),
		Entry: string(g.Entry()),
	}
	for _, id := range g.Disabled() {
		resp.Disabled = append(resp.Disabled, string(id))
	}
	for _, id := range g.Order() {
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		node := GraphNode{
			ID:   string(id),
			Kind: string(n.Kind),
			Rule: n.Rule.String(),
		}
		for _, next := range g.Edges(id) {
			node.Next = append(node.Next, string(next))
		}
		if n.Group != nil {
			for _, br := range n.Group.Branches {
				ids := make([]string, 0, len(br.Phases))
				for _, pid := range br.IDs() {
					ids = append(ids, string(pid))
				}
				node.Branches = append(node.Branches, ids)
			}
		}
		resp.Nodes = append(resp.Nodes, node)
	}
	return resp
}
