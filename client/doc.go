// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package client 提供 soundsortd 分类接口的 Go 客户端。

# 概述

Client 把 fbank 特征张量编码为 safetensors 请求体，POST 到
/api/v1/classify，并把 JSON 字符串响应解码为 types.Label。
非 200 响应中的错误信封 {success:false,error:{code,message}}
会被还原为 *types.Error，调用方可用 types.IsCode 判断错误类型。

# 用法

	c := client.New("http://localhost:8080", client.WithAPIKey(key))
	label, err := c.Classify(ctx, fbank)
*/
package client
