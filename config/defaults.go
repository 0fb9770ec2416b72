// =============================================================================
// 📦 soundsort 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置；model.path 没有默认值，需显式配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Scheduler: DefaultSchedulerConfig(),
		Model:     DefaultModelConfig(),
		Cache:     DefaultCacheConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    0,
		RateLimitBurst:  200,
		MaxInFlight:     1024,
		MaxBodyBytes:    64 << 20,
	}
}

// DefaultSchedulerConfig 一次处理一个请求，窗口 100ms
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		BatchSize: 1,
		MaxWait:   100 * time.Millisecond,
	}
}

// DefaultModelConfig 返回 AudioSet 标签空间的默认模型配置
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		InputName:  "fbank",
		OutputName: "logits",
		NumClasses: 527,
	}
}

// DefaultCacheConfig 缓存默认关闭
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: false,
		Addr:    "localhost:6379",
		DB:      0,
		TTL:     24 * time.Hour,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		Insecure:     true,
		ServiceName:  "soundsortd",
		SampleRate:   0.1,
	}
}
