/*
包 history 记录每次会话的完整轮次历史并提供可插拔的持久化。

# 概述

[Call] 是一次会话的只追加历史，[Iteration] 记录单个轮次：发出的请求、
原始输出、解析与校验结果、产生的重问请求以及耗时。会话结束后调用
[Call.Close]，此后再追加返回 CALL_CLOSED 错误。

# 存储后端

  - [MemoryStore]：进程内存储，适合开发与测试
  - [FileStore]：每个调用一个 JSON 文件，原子写入
  - [RedisStore]：键值 + 有序集合索引，支持 TTL
  - [SQLStore]：基于 gorm，支持 PostgreSQL / MySQL / SQLite

通过 [NewStore] 按 [StoreConfig] 创建。
*/
package history
