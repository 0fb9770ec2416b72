// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package feature 负责 fbank 特征张量的编解码、校验与归一化。

# 概述

客户端以 safetensors 格式提交名为 fbank 的二维 float32 张量
（形状 [frames, 128]）。本包在入队前同步完成全部预处理：

 1. Validate：二维且第二维为 128，否则 "shape mismatch"；
    元素类型必须为 F32，否则 "unsupported element type"。
 2. Fit：时间轴截断或尾部补零到 1024 帧。
 3. Normalize：x' = (x - Mean) / (Std * 2)。

Fit 必须先于 Normalize：补零行在归一化后等于 -Mean / (Std * 2)。
所有步骤均为纯函数，返回新切片，不修改输入。

# 核心类型

  - Tensor：线上原始张量（dtype、shape、小端字节）
  - Features：预处理后的不可变 [1024, 128] 特征
  - Bundle：safetensors 命名张量集合
*/
package feature
