/*
Package schema 定义结构化输出的 schema 树。

# 概述

Node 是一个封闭的标签联合：scalar、object、list、choice。每个节点携带
有序的验证器引用（ID、参数、OnFail 策略）以及可选的必需元数据键。
Build 对整棵树做不变量检查（无环、字段名唯一、判别值唯一），通过
验证器注册表解析所有引用，并返回不可变的 Tree，可被多个会话并发读取。

# 主要能力

  - 构建器：String / Integer / Float / Bool / Date / Time / DateTime / Object / List / Choice
  - Tree.Project - 为 reask 生成仅包含失败路径的精简树
  - Tree.JSONSchema - 渲染为 JSON Schema 用于提示词
  - LoadYAML / LoadDocument - 从 YAML 构建 schema 与初始提示
*/
package schema
