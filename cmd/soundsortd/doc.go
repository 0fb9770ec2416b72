// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 soundsortd 分类服务的程序入口。

# 概述

soundsortd 加载 ONNX 音频分类模型，通过 HTTP 接收 safetensors 格式的
fbank 特征，由动态批处理调度器合批推理，返回 "Speech"、"Music" 或
"Noise" 标签。程序支持 YAML 配置与 SOUNDSORT_ 环境变量覆盖、结构化日志
（zap）、Prometheus 指标与 OpenTelemetry 追踪。

# 核心类型

  - Server：组装调度器、可选标签缓存、HTTP 与 Metrics 双端口及优雅关闭
  - Middleware：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、version、health（探测 /ready）
  - 路由：POST / 与 POST /api/v1/classify；GET /health、/healthz、
    /ready、/readyz、/version
  - 中间件链：Recovery、RequestID、OTelTracing、MetricsMiddleware、
    SecurityHeaders、RequestLogger、CORS、RateLimiter、APIKeyAuth；
    分类路由额外经过 AdmissionLimit 准入许可
  - 优雅关闭：信号监听 → 关闭 HTTP → 关闭调度器（完成当前批次）→
    关闭 Metrics → 缓存 → 推理引擎 → 遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
