// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
包 database 提供基于 GORM 的数据库连接池管理，支持健康检查、
连接数上报与事务重试，是运行记录存储的底座。

# 概述

Open 按驱动名选择方言：sqlite 使用纯 Go 的 glebarez/sqlite，
postgres 使用 gorm.io/driver/postgres。PoolManager 统一管理连接
生命周期，后台健康检查定时探活并通过 StatsReporter 上报连接数。

# 主要能力

  - 连接池调优：MaxIdleConns/MaxOpenConns/ConnMaxLifetime。
    sqlite 固定为单连接。
  - 健康检查：PingContext 探活，关闭后自动退出。
  - 事务管理：WithTransaction 单次执行，WithTransactionRetry
    对死锁、序列化失败、database is locked 等错误指数退避重试。
*/
package database
