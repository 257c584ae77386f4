// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 TailorFlow 的命令行与 HTTP 服务入口。

# 概述

cmd/tailorflow 装配简历定制流水线（tailor.Pipeline）及其周边设施：
Redis 分析缓存、运行记录存储、Prometheus 指标与 OpenTelemetry 追踪。
Redis 与数据库不可用时降级运行，只记录警告。

# 子命令

  - run      单次定制，文档写到 stdout 或 --out，摘要写到 stderr
  - serve    启动 API 服务器与独立端口的 metrics 服务器
  - version  显示构建信息
  - health   请求 /ready 检查服务就绪状态

# 中间件链

Recovery、RequestID、SecurityHeaders、OTelTracing、RequestLogger、
MetricsMiddleware、CORS、BodyLimit、RateLimiter（基于 IP）、
APIKeyAuth（仅 /api/ 路径，X-API-Key 头）。

# 退出码

run 命令：0 成功，1 运行失败，2 参数或输入无效。
*/
package main
