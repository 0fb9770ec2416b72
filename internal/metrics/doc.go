// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的服务指标采集能力，覆盖
HTTP、调度器、标签缓存与准入控制四个维度。

# 核心类型

  - Collector：指标收集器，使用 promauto 注册到指定 namespace，
    同时实现 batch.Observer，可直接交给调度器。

# 主要能力

  - HTTP 指标：请求总数与耗时，按 method/path/status 分组，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 调度器指标：队列深度 Gauge、批大小、窗口时长与推理耗时 Histogram，
    以及按标签（speech/music/noise）或错误码分组的结果计数。
  - 缓存指标：命中与未命中计数，按 cache_type 分组。
  - 准入指标：因并发许可耗尽被拒绝的请求数。
*/
package metrics
