// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package local 提供不依赖 LLM 的确定性协作者实现，
// 让 CLI 与 HTTP 服务可以端到端运行。
package local
