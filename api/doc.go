// Package api 定义 tailorflow HTTP API 的请求与响应类型。
//
// # API 概览
//
//   - POST /api/v1/tailor          针对职位描述定制 LaTeX 简历
//   - GET  /api/v1/graph           查看指定阈值下的阶段图
//   - GET  /api/v1/runs            列出持久化的运行记录
//   - GET  /api/v1/runs/{id}       读取单条运行记录
//   - GET  /api/v1/runs/{id}/history  读取逐阶段执行轨迹（仅内存）
//   - GET  /healthz, /ready, /version
//
// 指标在独立端口的 /metrics 暴露。
//
// # 认证
//
// 配置了 server.api_keys 时，/api/v1 下的端点需要 X-API-Key 请求头：
//
//	X-API-Key: your-api-key
//
// # 基础 URL
//
//	http://localhost:8080
package api
