// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 soundsort 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 feature、batch、inference、
policy、api 等上层模块提供统一的类型契约。

# 核心类型

  - Label：分类结果（Speech / Music / Noise），JSON 形式为字符串字面量
  - Error / ErrorCode：结构化错误体系，含 HTTP 状态码与 Retryable 标记

# 错误分类

  - VALIDATION_ERROR：输入张量形状或元素类型不符，入队前同步返回
  - STACK_ERROR：批内张量无法堆叠，转换为整批的 INFERENCE_ERROR
  - INFERENCE_ERROR：推理引擎调用失败，仅影响当前批次

IsCode 沿 Cause 链查找错误码，因此包装后的 STACK_ERROR 仍可被识别。
*/
package types
