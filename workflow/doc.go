// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package workflow 提供基于状态机的多阶段流水线引擎。

# 概述

一次运行（run）从不可变的 Inputs 出发，依次经过若干 Phase。每个 Phase
只读取引擎交给它的 State 快照，并返回一个 Delta；只有 Engine 会通过
Merge 把 Delta 合并回 State。路由由声明式的 RoutingRule 决定，失败的
Delta 总是先走隐式的 error 边。

# 核心接口与类型

  - State / Inputs：运行状态与只读输入，结果按 Slot 存放
  - Delta / Outcome：阶段输出，Outcome 为 next 或 error
  - Merge / Reducer：槽位后写覆盖，消息日志追加
  - Phase / Registry：阶段接口与 id 注册表，DeclareSlot 固定槽位类型
  - RoutingRule：Unconditional / Thresholded（>= 包含边界）/ Terminal
  - GraphBuilder：声明图、禁用阶段、校验槽位与环
  - GroupCoordinator：并行组，两条分支在协程池上并发执行，快速失败
  - Engine：驱动图直到 end 或 error，记录 ExecutionHistory

# 校验规则

  - 每个槽位在图中只能有一个写入者
  - 并行组恰好两条分支，分支间写集合不相交，且不读取对方的写入
  - 被禁用的阶段由前驱直接连到下一个启用的阶段
  - 步数上限为节点数加一，超过即 ROUTING_FAILURE
*/
package workflow
