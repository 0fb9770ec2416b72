package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/soundsort/types"
)

const (
	// maxOpenFiles 同时在途的文件数上限
	maxOpenFiles = 128

	featureExt = ".safetensors"
)

// classifier 发送已编码的特征文件并返回标签
type classifier interface {
	ClassifyBody(ctx context.Context, body []byte) (types.Label, error)
}

type sortMode int

const (
	sortCopy sortMode = iota + 1
	sortMove
)

func (m sortMode) String() string {
	if m == sortMove {
		return "move"
	}
	return "copy"
}

// labelDirs 每个标签的目标目录，空字符串表示该标签的文件留在原处
type labelDirs struct {
	speech string
	music  string
	noise  string
}

func (d labelDirs) empty() bool {
	return d.speech == "" && d.music == "" && d.noise == ""
}

func (d labelDirs) dirFor(label types.Label) string {
	switch label {
	case types.LabelSpeech:
		return d.speech
	case types.LabelMusic:
		return d.music
	case types.LabelNoise:
		return d.noise
	default:
		return ""
	}
}

// sortAction 分类完成后对文件执行的操作
type sortAction struct {
	mode sortMode
	dirs labelDirs
}

// targetPath 返回 path 在 label 对应目录下的目标路径；未配置目录时返回 false
func (a *sortAction) targetPath(path string, label types.Label) (string, bool) {
	dir := a.dirs.dirFor(label)
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, filepath.Base(path)), true
}

// isTargetDir 报告 path 是否为某个标签的目标目录
func (a *sortAction) isTargetDir(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, dir := range []string{a.dirs.speech, a.dirs.music, a.dirs.noise} {
		if dir == "" {
			continue
		}
		if d, err := filepath.Abs(dir); err == nil && d == abs {
			return true
		}
	}
	return false
}

// apply 将文件复制或移动到标签目录；文件已在目标位置时不做任何操作
func (a *sortAction) apply(path string, label types.Label) error {
	target, ok := a.targetPath(path, label)
	if !ok {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
	}
	if sameFile(path, target) {
		return nil
	}
	if a.mode == sortMove {
		return moveFile(path, target)
	}
	return copyFile(path, target)
}

// labeler 遍历特征文件并发请求分类
type labeler struct {
	classifier classifier
	action     *sortAction
	out        io.Writer
	logger     *zap.Logger
	limit      int

	outMu sync.Mutex
}

// Run 处理单个文件，或遍历目录下所有 .safetensors 文件。
// 任一文件失败时取消其余请求并返回该错误。
func (l *labeler) Run(ctx context.Context, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return l.process(ctx, root)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.limit)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if path != root && l.action != nil && l.action.isTargetDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isFeatureFile(path) {
			return nil
		}
		g.Go(func() error { return l.process(ctx, path) })
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return walkErr
}

func (l *labeler) process(ctx context.Context, path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	l.logger.Debug("labelling", zap.String("path", path), zap.Int("bytes", len(body)))
	label, err := l.classifier.ClassifyBody(ctx, body)
	if err != nil {
		return fmt.Errorf("label %s: %w", path, err)
	}

	l.outMu.Lock()
	fmt.Fprintf(l.out, "%s: %s\n", path, label)
	l.outMu.Unlock()

	if l.action == nil {
		return nil
	}
	if err := l.action.apply(path, label); err != nil {
		return fmt.Errorf("%s %s: %w", l.action.mode, path, err)
	}
	return nil
}

func isFeatureFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), featureExt)
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

// moveFile 先尝试 rename，跨文件系统时退化为复制后删除
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
