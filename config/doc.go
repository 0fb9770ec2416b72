// Package config 提供 soundsortd 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（SOUNDSORT_ 前缀）的顺序叠加，
// 包含 server、scheduler、model、cache、log、telemetry 六个部分。
// Config.Validate 汇总所有校验错误，启动时一次性报告。
package config
