// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package server 提供 HTTP 服务器生命周期管理，支持非阻塞启动与优雅关闭。

# 核心类型

  - Manager：封装 net/http.Server，持有监听器与异步错误通道，
    提供 Start/Shutdown/Errors 等生命周期方法。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小与关闭超时。

# 多服务器编排

tailorflow serve 同时运行 API 服务器与独立端口上的 metrics 服务器。
Run 启动全部 Manager，在 ctx 结束（通常来自 signal.NotifyContext）
或任一服务器异常退出时统一优雅关闭。
*/
package server
