// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package policy 将模型的激活向量映射为 Speech、Music、Noise 标签。

模型输出 AudioSet 527 类的 sigmoid 分数，本包只看其中三个下标：
Speech = 0，Music = 137，Noise = 513。

判定规则：

  - Speech 与 Music 都低于 0.5 时，结果为 Noise；
  - 否则取三个分数中严格最大者，平分时按 Speech、Music、Noise 顺序取先者。

向量长度不足 514 或分数非有限值时返回错误，调用方只让该条请求失败。
所有函数均为纯函数。
*/
package policy
