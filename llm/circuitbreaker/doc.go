// Package circuitbreaker 为 llm.Backend 提供熔断保护。
//
// 连续 Threshold 次传输类故障后熔断打开，期间请求直接返回 CIRCUIT_OPEN；
// ResetTimeout 后进入半开状态放行试探请求，成功则关闭，失败则重新打开。
package circuitbreaker
