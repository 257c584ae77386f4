// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
包 cache 提供基于 Redis 的缓存管理能力，以及分析阶段的结果缓存。

# 概述

Manager 封装 go-redis 客户端，负责连接生命周期、健康检查与命中统计。
AnalysisCache 包装简历分析、职位分析等协作者，以输入内容的 SHA-256
作为键缓存 JSON 结果。同一份简历重复定制时不再重复分析。

# 核心类型

  - Manager：缓存管理器，提供 Get/Set/Delete 与 GetJSON/SetJSON。
  - Config：地址、密码、键前缀、默认 TTL、连接池与健康检查间隔。
  - AnalysisCache：泛型协作者包装，结构上满足 tailor.Collaborator。
  - HitRecorder：命中与未命中指标的接收者。

# 错误语义

ErrCacheMiss 表示未命中，可用 IsCacheMiss 判断。AnalysisCache 遇到
Redis 故障时记录警告并直接调用内部协作者，协作者错误不会写入缓存。
*/
package cache
