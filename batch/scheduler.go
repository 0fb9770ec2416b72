package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/soundsort/feature"
	"github.com/BaSui01/soundsort/policy"
	"github.com/BaSui01/soundsort/types"
)

const instrumentationName = "github.com/BaSui01/soundsort/batch"

var (
	ErrSchedulerClosed = errors.New("scheduler closed")
	ErrAlreadyStarted  = errors.New("scheduler already started")
)

// Inferencer 对一批特征执行一次推理，返回与输入顺序一致的激活向量
type Inferencer interface {
	StackAndInfer(ctx context.Context, items []feature.Features) ([][]float32, error)
}

// Classifier 把单条激活向量映射为标签
type Classifier func(activations []float32) (types.Label, error)

// Observer 接收调度器的运行指标
type Observer interface {
	ObserveQueueDepth(depth int)
	ObserveBatch(size int, window, inference time.Duration)
	ObserveOutcome(label types.Label, err error)
}

// Observers 把事件依次转发给多个观察者
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type multiObserver []Observer

func (m multiObserver) ObserveQueueDepth(depth int) {
	for _, o := range m {
		o.ObserveQueueDepth(depth)
	}
}

func (m multiObserver) ObserveBatch(size int, window, inference time.Duration) {
	for _, o := range m {
		o.ObserveBatch(size, window, inference)
	}
}

func (m multiObserver) ObserveOutcome(label types.Label, err error) {
	for _, o := range m {
		o.ObserveOutcome(label, err)
	}
}

type nopObserver struct{}

func (nopObserver) ObserveQueueDepth(int)                           {}
func (nopObserver) ObserveBatch(int, time.Duration, time.Duration) {}
func (nopObserver) ObserveOutcome(types.Label, error)              {}

// Config 调度参数
type Config struct {
	BatchSize int           `yaml:"batch_size" json:"batch_size"`
	MaxWait   time.Duration `yaml:"max_wait" json:"max_wait"`
}

// DefaultConfig 返回默认调度参数
func DefaultConfig() Config {
	return Config{
		BatchSize: 1,
		MaxWait:   100 * time.Millisecond,
	}
}

// Validate 检查调度参数
func (c Config) Validate() error {
	var errs []error
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize))
	}
	if c.MaxWait <= 0 {
		errs = append(errs, fmt.Errorf("max wait must be positive, got %s", c.MaxWait))
	}
	return errors.Join(errs...)
}

// Option 配置 Scheduler
type Option func(*Scheduler)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver 设置指标观察者
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClassifier 替换默认的标签策略
func WithClassifier(c Classifier) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.classify = c
		}
	}
}

// WithTracerProvider 使用指定的 TracerProvider，默认取全局
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Scheduler) {
		if tp != nil {
			s.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// Scheduler 是动态批处理准入调度器：
// 多个生产者并发 Submit，唯一的 worker 按窗口收集批次并串行调用推理。
type Scheduler struct {
	cfg      Config
	infer    Inferencer
	classify Classifier
	queue    *queue
	observer Observer
	tracer   trace.Tracer
	logger   *zap.Logger

	mu      sync.Mutex
	started bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	submitted atomic.Int64
	batches   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// NewScheduler 创建调度器，需调用 Start 启动 worker。
// Start 之前提交的请求会留在队列中。
func NewScheduler(cfg Config, infer Inferencer, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}
	if infer == nil {
		return nil, errors.New("inferencer is required")
	}

	s := &Scheduler{
		cfg:      cfg,
		infer:    infer,
		classify: policy.Classify,
		queue:    newQueue(),
		observer: nopObserver{},
		tracer:   otel.Tracer(instrumentationName),
		logger:   zap.NewNop(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "scheduler"))
	return s, nil
}

// =============================================================================
// 🎯 准入
// =============================================================================

// Submit 同步校验并归一化张量，成功后入队。
// 校验失败直接返回 VALIDATION_ERROR，请求不会进入队列。
func (s *Scheduler) Submit(t feature.Tensor) (*Completion, error) {
	if s.closed.Load() {
		return nil, ErrSchedulerClosed
	}
	f, err := feature.Prepare(t)
	if err != nil {
		return nil, err
	}
	return s.SubmitFeatures(f)
}

// SubmitFeatures 准入已经 Prepare 过的特征
func (s *Scheduler) SubmitFeatures(f feature.Features) (*Completion, error) {
	if f.Len() == 0 {
		return nil, types.ValidationError("features are empty")
	}

	c := newCompletion()
	if !s.queue.push(&request{features: f, completion: c, enqueued: time.Now()}) {
		return nil, ErrSchedulerClosed
	}
	s.submitted.Add(1)
	s.observer.ObserveQueueDepth(s.queue.len())
	return c, nil
}

// Classify 提交并等待结果。ctx 只约束等待，不会撤回已准入的请求。
func (s *Scheduler) Classify(ctx context.Context, t feature.Tensor) (types.Label, error) {
	c, err := s.Submit(t)
	if err != nil {
		return types.LabelUnknown, err
	}
	return c.Wait(ctx)
}

// =============================================================================
// 🔄 生命周期
// =============================================================================

// Start 启动唯一的 worker。ctx 结束等同于 Close。
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrSchedulerClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)

	s.logger.Info("scheduler started",
		zap.Int("batch_size", s.cfg.BatchSize),
		zap.Duration("max_wait", s.cfg.MaxWait),
	)
	return nil
}

// Close 停止 worker 并等待其退出。
// 正在执行的批次会完成；仍在队列中的请求收到 ErrSchedulerClosed。
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasClosed := s.closed.Swap(true)
	if !s.started {
		if !wasClosed {
			s.reject(s.queue.close(), ErrSchedulerClosed)
			close(s.done)
		}
		return nil
	}
	s.cancel()
	<-s.done
	if !wasClosed {
		s.logger.Info("scheduler stopped")
	}
	return nil
}

// Running 报告 worker 是否在运行
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.closed.Load()
}

// Done 在 worker 退出后关闭
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// =============================================================================
// ⚙️ Worker
// =============================================================================

func (s *Scheduler) run(ctx context.Context) {
	defer func() {
		s.closed.Store(true)
		s.reject(s.queue.close(), ErrSchedulerClosed)
		close(s.done)
	}()

	for ctx.Err() == nil {
		batch, window, ok := s.collect(ctx)
		if !ok {
			return
		}
		if len(batch) == 0 {
			continue
		}
		s.execute(ctx, batch, window)
	}
}

// collect 在一个窗口内收集至多 BatchSize 条请求。
// 窗口从周期开始计时；队列为空时阻塞等待入队通知或窗口截止。
func (s *Scheduler) collect(ctx context.Context) ([]*request, time.Duration, bool) {
	windowStart := time.Now()
	deadline := windowStart.Add(s.cfg.MaxWait)
	timer := time.NewTimer(s.cfg.MaxWait)
	defer timer.Stop()

	batch := make([]*request, 0, s.cfg.BatchSize)
	for len(batch) < s.cfg.BatchSize && time.Now().Before(deadline) {
		if items := s.queue.drain(s.cfg.BatchSize - len(batch)); len(items) > 0 {
			batch = append(batch, items...)
			continue
		}

		select {
		case <-s.queue.ready():
		case <-timer.C:
			return batch, time.Since(windowStart), true
		case <-ctx.Done():
			s.reject(batch, ErrSchedulerClosed)
			return nil, 0, false
		}
	}
	return batch, time.Since(windowStart), true
}

// execute 对一个非空批次执行推理并分发结果。
// 任何失败只影响本批次，每条请求都收到 INFERENCE_ERROR。
func (s *Scheduler) execute(ctx context.Context, batch []*request, window time.Duration) {
	// 已取出的批次必须完成，不随 Close 取消
	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "batch.execute",
		trace.WithAttributes(
			attribute.Int("batch.size", len(batch)),
			attribute.Int("batch.capacity", s.cfg.BatchSize),
		))
	defer span.End()

	s.batches.Add(1)
	s.observer.ObserveQueueDepth(s.queue.len())
	s.logger.Debug("executing batch",
		zap.Int("size", len(batch)),
		zap.Int("remaining", s.queue.len()),
		zap.Duration("window", window),
	)

	items := make([]feature.Features, len(batch))
	for i, r := range batch {
		items[i] = r.features
	}

	start := time.Now()
	activations, err := s.stackAndInfer(ctx, items)
	inference := time.Since(start)
	s.observer.ObserveBatch(len(batch), window, inference)

	if err == nil && len(activations) != len(batch) {
		err = fmt.Errorf("inferencer returned %d results for %d items", len(activations), len(batch))
	}
	if err != nil {
		if types.GetErrorCode(err) != types.ErrInference {
			err = types.InferenceError("batch inference failed", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch inference failed")
		s.logger.Error("batch failed",
			zap.Int("size", len(batch)),
			zap.Duration("inference", inference),
			zap.Error(err),
		)
		for _, r := range batch {
			s.dispatch(r, types.LabelUnknown, err)
		}
		return
	}

	for i, r := range batch {
		label, cerr := s.classify(activations[i])
		if cerr != nil {
			s.dispatch(r, types.LabelUnknown, types.InferenceError("label policy failed", cerr))
			continue
		}
		s.dispatch(r, label, nil)
	}
}

func (s *Scheduler) stackAndInfer(ctx context.Context, items []feature.Features) (out [][]float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("inferencer panic: %v", r)
		}
	}()
	return s.infer.StackAndInfer(ctx, items)
}

// dispatch 把结果写入请求自己的 Completion
func (s *Scheduler) dispatch(r *request, label types.Label, err error) {
	if rerr := r.completion.resolve(label, err); rerr != nil {
		s.logger.DPanic("completion resolved twice",
			zap.String("request_id", r.completion.ID()),
			zap.Error(rerr),
		)
		return
	}
	if err != nil {
		s.failed.Add(1)
	} else {
		s.completed.Add(1)
	}
	s.observer.ObserveOutcome(label, err)
}

// reject 终结未进入批次的请求，不计入批次统计
func (s *Scheduler) reject(rs []*request, err error) {
	for _, r := range rs {
		if rerr := r.completion.resolve(types.LabelUnknown, err); rerr != nil {
			s.logger.DPanic("completion resolved twice",
				zap.String("request_id", r.completion.ID()),
				zap.Error(rerr),
			)
			continue
		}
		s.rejected.Add(1)
		s.observer.ObserveOutcome(types.LabelUnknown, err)
	}
}

// =============================================================================
// 📊 统计
// =============================================================================

// Stats 调度器统计
type Stats struct {
	Submitted int64 `json:"submitted"`
	Batches   int64 `json:"batches"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
	Queued    int   `json:"queued"`
}

// Stats 返回当前统计
func (s *Scheduler) Stats() Stats {
	return Stats{
		Submitted: s.submitted.Load(),
		Batches:   s.batches.Load(),
		Completed: s.completed.Load(),
		Failed:    s.failed.Load(),
		Rejected:  s.rejected.Load(),
		Queued:    s.queue.len(),
	}
}

// BatchEfficiency 返回平均批大小
func (s Stats) BatchEfficiency() float64 {
	if s.Batches == 0 {
		return 0
	}
	return float64(s.Completed+s.Failed) / float64(s.Batches)
}
