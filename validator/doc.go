/*
Package validator 定义字段级验证器契约与注册表。

# 概述

每个验证器接收已完成类型转换的节点值和调用方元数据，返回四种结果之一：
Pass、FailFix（附修正值）、FailReask（需要重新请求）、FailFatal（中断会话）。
结果与节点上配置的 OnFail 策略组合后（Resolve）得到引擎实际采取的动作。

# 注册表

Registry 将字符串标识符映射到工厂函数，进程启动时由 init 注册内置验证器；
schema 构建阶段按标识符解析，运行期不再修改。

# 内置验证器

  - two-words、length、regex-match、valid-choices、valid-range
  - lower-case、upper-case、one-line、ends-with、format
  - metadata-choices - 演示 RequiredMetadataKeys 的元数据依赖
*/
package validator
