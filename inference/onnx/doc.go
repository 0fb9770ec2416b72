// Package onnx 基于 github.com/yalue/onnxruntime_go 实现 inference.Engine。
//
// 运行时环境按引用计数初始化与销毁；会话使用动态输入，
// 每次 Forward 按批大小创建 [batch, frames, bins] 输入与
// [batch, NumClasses] 输出张量。
package onnx
