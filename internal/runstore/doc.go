// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package runstore 把每次定制运行的摘要持久化到关系数据库。
//
// Store 实现 tailor.Recorder，流水线结束后写入一条 RunRecord：
// 状态、合规分数、访问过的阶段、消息、回退的章节与错误信息。
// 表结构通过 GORM AutoMigrate 创建，底层连接由 internal/database 管理。
package runstore
