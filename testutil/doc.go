// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 soundsort 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertJSONEqual / AssertEventuallyTrue
  - 异步等待: WaitFor / WaitForChannel

# 子包

  - fixtures: 特征张量与请求体工厂，带标签编码的张量
  - mocks: MockInferencer，可注入错误、panic 与阻塞闸门，记录每次批调用
*/
package testutil
