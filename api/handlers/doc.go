// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 soundsortd HTTP API 的请求处理器实现。

# 核心类型

  - ClassifyHandler：解析 safetensors 请求体，校验归一化后提交给调度器，
    等待结果并返回 JSON 字符串标签；可选接入标签缓存
  - HealthHandler：存活与就绪检查（/health, /healthz, /ready）及版本信息
  - HealthCheck：可插拔健康检查接口（调度器、Redis 等）
  - Response：统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo：结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter：包装 http.ResponseWriter 以捕获状态码

# 错误映射

ErrorCode → HTTP 状态码在 mapErrorCodeToHTTPStatus 中集中处理：
校验错误 400，请求体过大 413，限流 429，批处理与推理错误 500，
调度器关闭 503。
*/
package handlers
