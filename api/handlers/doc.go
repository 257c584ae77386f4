// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 tailorflow HTTP API 的请求处理器实现。

# 概述

所有 Handler 都是标准 net/http 处理函数，路由由 cmd/tailorflow 使用
Go 1.22 的方法 + 路径模式注册。响应统一使用 Response 信封。

# 核心类型

  - TailorHandler：运行定制流水线；失败时 error 与部分结果一起返回
  - RunsHandler：查询 runstore 中的运行记录与内存执行轨迹
  - HealthHandler：存活与就绪检查，区分关键与非关键依赖
  - Response：统一 JSON 响应结构（success + data + error + request_id）
  - ResponseWriter：包装 http.ResponseWriter 以捕获状态码

# 错误映射

INVALID_REQUEST→400，UNAUTHORIZED→401，NOT_FOUND→404，RATE_LIMITED→429，
COLLABORATOR_FAILURE→502，SERVICE_UNAVAILABLE→503，TIMEOUT→504，
其余（含 ROUTING_FAILURE、CONFIGURATION）→500。
*/
package handlers
