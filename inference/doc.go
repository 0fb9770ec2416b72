// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package inference 包装不透明的模型调用：把一批特征堆叠为
// [n, 1024, 128] 张量，执行一次前向计算，逐元素 sigmoid 后按输入顺序拆分。
//
// 形状不一致返回 STACK_ERROR；引擎报错、panic 或输出长度不合法返回
// INFERENCE_ERROR。具体引擎见子包 onnx。
package inference
