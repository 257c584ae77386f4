// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、工作流、
缓存与数据库四个维度。

# 概述

Collector 通过 promauto 自动注册到默认 Registry，所有指标按
namespace 隔离。Collector 实现 workflow.Observer，可直接交给
workflow.WithObserver，引擎每完成一个阶段、每做一次路由、每结束一次
运行都会回调它。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 工作流指标：阶段执行次数与耗时（按 graph/phase/kind/outcome）、
    路由决策计数（按 from/to）、运行次数与耗时（按 status）。
  - 缓存指标：分析缓存命中与未命中，按 cache_type 分组。
  - 数据库指标：连接数 Gauge 与查询耗时 Histogram。
*/
package metrics
