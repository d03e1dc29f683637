// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 定义文本生成后端的接入契约。

# 概述

运行器只依赖本包的 [Backend] 与 [AsyncBackend]，具体服务商适配位于
llm/providers 子包，重试策略位于 llm/retry，熔断位于 llm/circuitbreaker，
llm/factory 按服务商名称组装完整的包装链。

# 核心类型

  - [Request]：一次请求，包含系统指令、用户提示、可选消息历史与 [Config]
  - [Backend]：阻塞式发送，返回原始文本
  - [AsyncBackend]：异步发送，通过通道交付恰好一个 [Response]
  - [RateLimitedBackend]：基于令牌桶的限流包装

# 错误

后端错误统一归一为 types.Error，见 [ClassifyError] 与 [MapHTTPError]。
限流、超时与 5xx 标记为可重试。
*/
package llm
