// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package tailor 定义简历定制流水线：阶段、协作者接口与运行入口。

# 概述

Pipeline 把十个阶段注册到 workflow.Registry，并按固定拓扑构建图：

	resume-analysis → job-analysis → orchestration
	  → section-customization（工作经历 ∥ 技能，两条分支并行）
	  → compliance-verification
	  → 分数 >= 阈值：resume-generation
	  → 分数 <  阈值：refinement → resume-generation

每个阶段只调用一个 Collaborator，输入输出都是 State 的类型化投影。
协作者出错即 COLLABORATOR_FAILURE，运行停止；不做引擎级重试。

# 自我修正

定制阶段会用 CheckFragment 检查 LaTeX 片段。不合格时带澄清说明重试一次，
仍不合格则回退为原始段落文本，并记录一条 VALIDATION_FAILURE 消息。

# 协作者装饰器

  - WithTimeout：为单次调用设置超时
  - RateLimited：基于 golang.org/x/time/rate 的调用限流
*/
package tailor
