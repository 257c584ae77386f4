// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 tailorflow 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext，自动注册 Cleanup 防止泄漏
  - 断言工具: AssertPhasesEqual 比较访问路径
  - 异步断言: AssertEventuallyTrue
  - 数据工具: MessageTexts 提取运行日志文本

# 子包

  - testutil/mocks: MockCollaborator[I, O]，支持 Builder 模式、
    按序响应、延迟与错误注入
  - testutil/fixtures: 预置简历与职位描述

# 使用示例

	ctx := testutil.TestContext(t)
	scorer := mocks.NewMockCollaborator[tailor.ComplianceInput, tailor.ComplianceResult]().
		WithResponse(tailor.ComplianceResult{Value: 95})
	bundle, err := pipeline.Run(ctx, fixtures.MinimalResume, fixtures.MinimalJob, 90)
	require.NoError(t, err)
	testutil.AssertPhasesEqual(t, expectedPath, bundle.Visited)
*/
package testutil
