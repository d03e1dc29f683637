// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 guardflow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 schema、validation、
runner、guard 等上层模块提供统一的类型契约，以避免循环依赖。

# 核心类型

  - Error / ErrorCode - 结构化错误体系，含 Retryable、Provider、Path 标记
  - Message / Role    - 对话消息，用于消息历史模式的 reask
  - Context 传播      - WithCallID / CallID，重试日志据此关联会话

# 主要能力

  - 错误工具链：AsError / IsErrorCode / IsRetryable / IsConfigurationError
  - 常用错误构造：NewConfigurationError / NewMissingMetadataError / NewTransportError
*/
package types
