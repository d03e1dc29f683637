// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 是各服务商后端适配器的公共基础层，子包 anthropic、openai、
gemini 分别基于官方 SDK 实现 llm.Backend。

# 核心类型

  - Config - 所有适配器共享的配置（APIKey、BaseURL、Model、MaxTokens、Temperature、Timeout）
  - Turn - 去掉系统消息后的对话轮次

# 核心函数

  - SplitConversation - 将 llm.Request 展开为系统提示与交替的对话轮次
  - ChooseModel / ChooseMaxTokens / ChooseTemperature - 按请求 > 配置 > 默认选择参数
  - Config.ResolveAPIKey - 配置缺省时回退到环境变量

SDK 内置重试均被关闭，重试统一由 llm/retry 负责。
*/
package providers
