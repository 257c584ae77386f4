// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package config 提供 TailorFlow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → TAILORFLOW_ 前缀环境变量 的顺序加载，
// 覆盖 server、pipeline、redis、database、log、telemetry 六个部分。
// 配置在启动时读取一次，运行中不重载。
package config
