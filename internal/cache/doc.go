// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的标签缓存。

相同的 fbank 特征归一化后得到相同的摘要（feature.Features.Digest），
命中时服务端直接返回标签，不再经过调度器；未命中时请求照常排队，
推理成功后写回缓存。

# 核心类型

  - Manager：封装 go-redis 客户端，负责连接校验、健康检查与关闭，
    提供 Get/Set/Delete/Ping 基础操作。
  - LabelCache：以 "soundsort:label:<digest>" 为键存取 types.Label，
    存储中的非法值按未命中处理。
*/
package cache
