// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动、
优雅关闭与系统信号监听。

# 核心类型

  - Manager：封装 http.Server 与 net.Listener，提供
    Start/Shutdown/Errors/Addr 等生命周期方法。
  - Config：名称、监听地址、读写与空闲超时、最大请求头大小、
    优雅关闭超时。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务；监听 ":0" 时
    Addr 返回实际端口。
  - 优雅关闭：Shutdown 在配置的超时内排空请求。
  - 信号等待：WaitForSignal 监听 SIGINT/SIGTERM 与各服务器的异步错误，
    只负责等待，关闭顺序（先停 HTTP，再停调度器）由调用方控制。
*/
package server
