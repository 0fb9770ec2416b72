// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package batch 提供动态批处理准入调度：把并发到达的分类请求聚合为
有界批次，在窗口截止前送入一次推理调用，并把每条结果恰好一次地
送回发起方。

# 概述

生产者（每个 HTTP 请求一个）调用 Submit：张量在调用方的 goroutine 中
同步完成校验与归一化，失败立即返回 VALIDATION_ERROR，不会入队。
成功的请求追加到调度器私有的 FIFO 队列，并返回 Completion。

唯一的 worker 按周期收集批次：

 1. 记录窗口起点；
 2. 批未满且未到 MaxWait 时，从队首取至多 BatchSize-已收集 条；
    队列为空则阻塞在入队通知与窗口计时器上，不轮询；
 3. 批满或窗口截止即结束收集，批可以不满甚至为空；
 4. 空批直接进入下一周期，不调用推理；
 5. 非空批执行一次 StackAndInfer，逐条应用标签策略并分发。
    堆叠失败、推理失败或 panic 时，本批每条请求都收到 INFERENCE_ERROR，
    调度继续进行。

推理调用完全串行；队列锁只在入队和取出时持有。

# 核心类型

  - Scheduler：队列、worker 与统计
  - Completion：单次写入、单次读取的结果槽；重复写入返回
    ErrCompletionResolved，结果被取走后再 Wait 返回 ErrCompletionConsumed
  - Inferencer / Classifier / Observer：推理、标签策略与指标的注入点

# 使用方式

	s, _ := batch.NewScheduler(batch.Config{BatchSize: 8, MaxWait: 100 * time.Millisecond},
		inference.NewAdapter(engine, logger), batch.WithLogger(logger))
	_ = s.Start(ctx)
	defer s.Close()

	c, err := s.Submit(tensor)
	if err != nil {
		return err
	}
	label, err := c.Wait(ctx)
*/
package batch
