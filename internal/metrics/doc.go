// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的校验会话指标采集能力，覆盖
会话、轮次、校验器、后端与历史存储五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离。

# 核心类型

  - Collector：指标收集器，同时实现 validation.Observer，
    可直接挂到校验引擎上统计每个校验器的结果。

# 主要能力

  - 会话指标：按最终状态统计会话数与耗时。
  - 轮次指标：按 pass/fail/error 统计轮次，单独统计重问次数。
  - 校验器指标：按 validator/action 统计结果。
  - 后端指标：请求总数与耗时，按 backend 分组。
  - 存储指标：历史存储操作耗时与失败次数。
*/
package metrics
