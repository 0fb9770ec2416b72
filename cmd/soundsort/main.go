// soundsort 是 soundsortd 的命令行客户端：把 fbank 特征文件发送给服务分类，
// 并可按标签把文件复制或移动到对应目录。
//
// 使用方法:
//
//	soundsort label <path> [--addr host:port]
//	soundsort label copy <path> --speech-dir s/ --music-dir m/ --noise-dir n/
//	soundsort label move <path> --speech-dir s/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
