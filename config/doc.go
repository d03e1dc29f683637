// Package config 提供 GuardFlow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（GUARDFLOW_*）的顺序叠加，
// 并可转换为 history、llm/providers、llm/factory 所需的配置结构。
package config
