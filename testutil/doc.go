// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 GuardFlow 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertMessagesEqual / AssertFailurePaths / AssertJSONEqual /
    AssertErrorCode
  - 数据工具: MustJSON / Ptr / WaitForChannel

# 子包

  - testutil/mocks: ScriptedBackend，按调用序号返回预设输出，
    同时实现同步与异步后端接口，支持错误注入与延迟
  - testutil/fixtures: 测试数据工厂，提供单字段、订单与元数据 schema
    及其典型原始输出

# 使用示例

	ctx := testutil.TestContext(t)
	backend := mocks.NewScriptedBackend(fixtures.PizzaThreeWords, fixtures.PizzaTwoWords)
	res, err := runner.New(backend, nil).Run(ctx, in)
	testutil.AssertFailurePaths(t, res.Failures)
*/
package testutil
