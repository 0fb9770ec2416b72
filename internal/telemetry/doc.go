// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 soundsortd 提供集中式的 TracerProvider 与可选的 MeterProvider。
// 调度器为每个批次创建 batch.execute span，HTTP 中间件为每个请求创建 span。
// 开启指标导出时，BatchMetrics 作为调度器观察者通过 OTLP 上报批次指标。
// 当遥测功能禁用时，使用 noop 实现，不连接任何外部服务。
package telemetry
