// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 tailorflow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 workflow、tailor、api
等上层模块提供统一的错误契约与 context 传播工具。

# 核心类型

  - Error / ErrorCode：结构化错误体系，含 Phase、HTTP 状态码、Retryable 标记
  - COLLABORATOR_FAILURE / VALIDATION_FAILURE / ROUTING_FAILURE / CONFIGURATION
：工作流错误分类

# 主要能力

  - Context 传播：WithTraceID / WithRunID / WithRequestID
  - 错误工具链：AsError / GetErrorCode / IsRetryable
*/
package types
